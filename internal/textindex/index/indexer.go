package index

import "fmt"

// Indexer should be implemented by objects that can store and search
// Cranfield documents.
type Indexer interface {
	// Add inserts a document that is known not to be in the index.
	Add(doc *Document) error

	// Update replaces the document stored under key with doc, or inserts
	// doc if no such document exists.
	Update(key string, doc *Document) error

	// FindByID looks up a document by its instance id.
	FindByID(instanceID int) (*Document, error)

	// Search runs q against the index and returns at most limit hits in
	// descending score order. A limit <= 0 returns every matching hit.
	Search(q Query, limit int) (*Hits, error)

	// DocCount returns the number of documents in the index.
	DocCount() (uint64, error)

	// Close releases any resources held by the index.
	Close() error
}

// Mode selects how an indexing run treats an existing index.
type Mode uint8

const (
	// CreateFresh discards any previous index contents and adds every
	// document.
	CreateFresh Mode = iota

	// CreateOrAppend keeps the existing index and replaces documents by
	// instance id.
	CreateOrAppend
)

func (m Mode) String() string {
	switch m {
	case CreateFresh:
		return "create"
	case CreateOrAppend:
		return "create-or-append"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Hit is a single search result.
type Hit struct {
	// Instance id of the matching document.
	InstanceID int

	// Relevance score assigned by the ranking function.
	Score float64

	// Stored title of the matching document (if available).
	Title string
}

// Hits is an ordered page of search results.
type Hits struct {
	// The total number of documents matching the query, which may exceed
	// the number of collected hits.
	Total uint64

	// The collected hits, best first.
	Items []Hit
}
