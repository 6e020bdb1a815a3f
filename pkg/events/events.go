// Package events carries legal-update notifications between services over
// RabbitMQ.
package events

import "time"

// LegalUpdateEvent is published by the crawler when a watched source changes
// and consumed by the notify service.
type LegalUpdateEvent struct {
	UpdateID    string    `json:"updateId"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	DetectedAt  time.Time `json:"detectedAt"`
	IsNew       bool      `json:"isNew"`
}
