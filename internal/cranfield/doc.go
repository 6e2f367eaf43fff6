package cranfield

// Document describes a single record of a Cranfield-formatted collection.
type Document struct {
	// The position of the record in the collection, starting at 1. A zero
	// value marks text that appeared before the first .I marker.
	InstanceID int

	// The document title (text found between the .T and .A markers).
	Title string

	// The author line(s) (text found between the .A and .B markers).
	Author string

	// The bibliographic reference (text found between the .B and .W
	// markers). Stored for exact matching only.
	Bibliographic string

	// The document body.
	Words string
}

// Field identifies the Document field that receives buffered text when a
// section marker is reached.
type Field uint8

const (
	// FieldNone discards the buffered text.
	FieldNone Field = iota
	// FieldTitle flushes the buffer into Document.Title.
	FieldTitle
	// FieldAuthor flushes the buffer into Document.Author.
	FieldAuthor
	// FieldBibliographic flushes the buffer into Document.Bibliographic.
	FieldBibliographic
	// FieldWords flushes the buffer into Document.Words.
	FieldWords
)

func (d *Document) set(f Field, text string) {
	switch f {
	case FieldTitle:
		d.Title = text
	case FieldAuthor:
		d.Author = text
	case FieldBibliographic:
		d.Bibliographic = text
	case FieldWords:
		d.Words = text
	}
}
