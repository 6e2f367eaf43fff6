package cranfield

// Section identifies the part of a Cranfield record that is currently
// being read.
type Section uint8

const (
	// SectionNone is the state before any marker has been seen.
	SectionNone Section = iota
	// SectionIndex follows a .I marker.
	SectionIndex
	// SectionTitle follows a .T marker.
	SectionTitle
	// SectionAuthor follows a .A marker.
	SectionAuthor
	// SectionBibliographic follows a .B marker.
	SectionBibliographic
	// SectionBody follows a .W marker.
	SectionBody
)

var sectionNames = map[Section]string{
	SectionNone:          "none",
	SectionIndex:         ".I",
	SectionTitle:         ".T",
	SectionAuthor:        ".A",
	SectionBibliographic: ".B",
	SectionBody:          ".W",
}

func (s Section) String() string {
	if name, ok := sectionNames[s]; ok {
		return name
	}

	return "unknown"
}

// markers maps the two character line prefix of every section marker to
// the section it opens.
var markers = map[string]Section{
	".I": SectionIndex,
	".T": SectionTitle,
	".A": SectionAuthor,
	".B": SectionBibliographic,
	".W": SectionBody,
}

// expectedPredecessor lists the section each marker normally follows.
var expectedPredecessor = map[Section]Section{
	SectionTitle:         SectionIndex,
	SectionAuthor:        SectionTitle,
	SectionBibliographic: SectionAuthor,
	SectionBody:          SectionBibliographic,
}

// Transition describes the effect of a single input line on the parser.
type Transition struct {
	// The section the parser is in after the line.
	Next Section

	// True if the line is a section marker rather than free text.
	Marker bool

	// The field receiving the buffered text. Only meaningful for markers.
	Flush Field

	// True if the line completes the current document and opens a new one.
	Emit bool

	// True if the marker arrived after a section other than the one it
	// normally follows.
	OutOfOrder bool
}

// classify returns the section opened by line, if the line is a marker.
// Only the first two characters are considered.
func classify(line string) (Section, bool) {
	if len(line) < 2 {
		return SectionNone, false
	}

	s, ok := markers[line[:2]]

	return s, ok
}

// Step computes the transition caused by line while the parser is in
// section state. It has no side effects.
func Step(state Section, line string) Transition {
	next, ok := classify(line)
	if !ok {
		return Transition{Next: state}
	}

	t := Transition{Next: next, Marker: true}
	switch next {
	case SectionIndex:
		t.Flush = FieldWords
		t.Emit = true
	case SectionTitle:
		t.Flush = FieldNone
	case SectionAuthor:
		t.Flush = FieldTitle
	case SectionBibliographic:
		t.Flush = FieldAuthor
	case SectionBody:
		t.Flush = FieldBibliographic
	}

	if want, ok := expectedPredecessor[next]; ok && state != want {
		t.OutOfOrder = true
	}

	return t
}
