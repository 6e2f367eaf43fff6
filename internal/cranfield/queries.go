package cranfield

import (
	"bufio"
	"io"
)

// Query is a single record of a Cranfield-formatted query file.
type Query struct {
	// 1-based position of the query in the file. It matches the query
	// numbering of the relevance judgments, not the number printed after
	// the .I marker.
	ID int

	// The query text, with lines joined by single spaces.
	Text string
}

// QueryReader reads the records of a Cranfield query file. The first line
// of the input is treated as a header; every .I marker starts a new query
// and every other marker line is skipped.
type QueryReader struct {
	scanner *bufio.Scanner

	headerRead bool
	open       bool
	nextID     int
	buf        []string

	query   Query
	done    bool
	lastErr error
}

// NewQueryReader returns a reader for the query records in r.
func NewQueryReader(r io.Reader) *QueryReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	return &QueryReader{scanner: scanner, nextID: 1}
}

// Next advances to the next query. It returns false once the input is
// exhausted or a read error occurs.
func (qr *QueryReader) Next() bool {
	if qr.done {
		return false
	}

	for qr.scanner.Scan() {
		line := qr.scanner.Text()
		section, isMarker := classify(line)

		if !qr.headerRead {
			qr.headerRead = true
			if section == SectionIndex {
				qr.open = true
			}

			continue
		}

		if section == SectionIndex {
			completed := qr.complete()
			qr.open = true

			if completed {
				return true
			}

			continue
		}

		if isMarker {
			continue
		}

		qr.open = true
		qr.buf = append(qr.buf, line)
	}

	qr.done = true
	if err := qr.scanner.Err(); err != nil {
		qr.lastErr = err
		return false
	}

	return qr.complete()
}

// Query returns the query read by the last call to Next.
func (qr *QueryReader) Query() Query {
	return qr.query
}

// Error returns the last read error encountered by the reader.
func (qr *QueryReader) Error() error {
	return qr.lastErr
}

func (qr *QueryReader) complete() bool {
	if !qr.open {
		return false
	}

	qr.query = Query{ID: qr.nextID, Text: joinBuffer(qr.buf)}
	qr.nextID++
	qr.open = false
	qr.buf = nil

	return true
}
