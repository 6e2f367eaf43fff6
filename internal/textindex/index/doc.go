package index

import (
	"strconv"

	"github.com/mycok/cranfield/internal/cranfield"
)

// Names of the indexed fields.
const (
	FieldInstanceID    = "InstanceID"
	FieldTitle         = "Title"
	FieldAuthor        = "Author"
	FieldBibliographic = "Bibliographic"
	FieldWords         = "Words"
)

// DefaultQueryFields lists the fields searched when no field is specified.
var DefaultQueryFields = []string{FieldWords, FieldTitle}

// Document describes a Cranfield record as stored by the index.
type Document struct {
	// The position of the record in the collection. Used as the index key.
	InstanceID int

	// The document title (if available).
	Title string

	// The document author(s) (if available).
	Author string

	// The bibliographic reference, indexed as a single exact-match term.
	Bibliographic string

	// The document body.
	Words string
}

// Key returns the identifier the document is stored under.
func (d *Document) Key() string {
	return KeyFor(d.InstanceID)
}

// KeyFor returns the index key of the document with the given instance id.
func KeyFor(instanceID int) string {
	return strconv.Itoa(instanceID)
}

// FromCranfield converts a parsed collection record into an index document.
func FromCranfield(doc *cranfield.Document) *Document {
	return &Document{
		InstanceID:    doc.InstanceID,
		Title:         doc.Title,
		Author:        doc.Author,
		Bibliographic: doc.Bibliographic,
		Words:         doc.Words,
	}
}
