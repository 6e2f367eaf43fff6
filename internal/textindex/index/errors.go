package index

import "errors"

var (
	// ErrNotFound is returned by the indexer when attempting to look up
	// a document that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMissingInstanceID is returned when attempting to index a document
	// that does not carry a positive instance id.
	ErrMissingInstanceID = errors.New("document does not provide a valid instance ID")

	// ErrAlreadyIndexed is returned by Add when a document with the same
	// key is already present in the index.
	ErrAlreadyIndexed = errors.New("document already indexed")

	// ErrEmptyQuery is returned when parsing a query without any text.
	ErrEmptyQuery = errors.New("empty query")

	// ErrUnknownField is returned when a query names a field that is not
	// searchable.
	ErrUnknownField = errors.New("unknown query field")
)
