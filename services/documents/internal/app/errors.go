package app

import "errors"

var (
	// ErrDocumentNotFound indicates the document does not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDocumentForbidden indicates the document belongs to another user.
	ErrDocumentForbidden = errors.New("document forbidden")
	// ErrUnsupportedFileType indicates the upload extension is not accepted.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrEmbeddingUnavailable indicates the query could not be embedded, so
	// semantic search cannot run.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
)
