package app

import "errors"

var (
	// ErrInvalidInput marks caller mistakes that map to a 400 response.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotDirectory is returned when an ingest target path does not exist
	// or is not a directory.
	ErrNotDirectory = errors.New("path is not a directory")

	// ErrDocumentNotFound is returned when no chunks exist for a document id.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrBatchTooLarge is returned when a batch request exceeds the
	// configured question limit before any question is processed.
	ErrBatchTooLarge = errors.New("too many questions in batch")
)
