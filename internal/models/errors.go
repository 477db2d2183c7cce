package models

import "errors"

var (
	// ErrValidation signals a malformed request (empty query, bad parameters).
	ErrValidation = errors.New("validation error")
	// ErrUnsupportedFile signals a file type the ingestion pipeline does not accept.
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrNoText signals a document with no extractable text.
	ErrNoText = errors.New("no extractable text")
	// ErrNotInitialized signals a pipeline component that was never constructed.
	ErrNotInitialized = errors.New("service not initialized")
	// ErrEmbedding signals that the embedding model failed to encode input.
	ErrEmbedding = errors.New("embedding error")
	// ErrIndex signals a failed storage operation on a collection.
	ErrIndex = errors.New("index error")
	// ErrDuplicateID signals two records with the same id in one add call.
	ErrDuplicateID = errors.New("duplicate record id")
	// ErrDimensionMismatch signals a vector whose length differs from the collection dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrLLM signals that the completion service was unreachable or rejected the request.
	ErrLLM = errors.New("llm error")
)
