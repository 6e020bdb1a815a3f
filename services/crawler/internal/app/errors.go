package app

import (
	"errors"
	"fmt"
)

// ErrSelectorNotFound indicates the configured CSS selector matched
// nothing on the fetched page.
var ErrSelectorNotFound = errors.New("content selector not found")

// FetchError reports a non-2xx response from a watched source.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}
