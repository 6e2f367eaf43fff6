package cranfield

import (
	"bufio"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Maximum length of a single input line.
const maxLineSize = 1024 * 1024

// Parser turns a Cranfield-formatted text stream into a sequence of
// documents. It reads lazily: each call to Next consumes only as much input
// as needed to complete one document.
//
// Text found before the first .I marker is collected into a document with
// a zero InstanceID. The parser emits it like any other document and leaves
// it to the caller to reject it.
type Parser struct {
	scanner *bufio.Scanner
	logger  *logrus.Entry

	state  Section
	nextID int
	line   int

	cur *Document
	buf []string

	doc       *Document
	done      bool
	lastErr   error
	anomalies int
}

// NewParser returns a parser reading from r. Diagnostics about malformed
// input are reported to logger; a nil logger discards them.
func NewParser(r io.Reader, logger *logrus.Entry) *Parser {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return &Parser{
		scanner: scanner,
		logger:  logger,
		nextID:  1,
	}
}

// Next advances the parser to the next complete document. It returns false
// when the input is exhausted or a read error occurs.
func (p *Parser) Next() bool {
	if p.done {
		return false
	}

	for p.scanner.Scan() {
		p.line++
		line := p.scanner.Text()
		t := Step(p.state, line)

		if !t.Marker {
			if p.cur == nil {
				if strings.TrimSpace(line) == "" {
					continue
				}
				p.openOrphan(line)
			}
			p.buf = append(p.buf, line)

			continue
		}

		if t.Emit {
			completed := p.flush(FieldWords)
			p.cur = &Document{InstanceID: p.nextID}
			p.nextID++
			p.state = t.Next

			if completed != nil {
				p.doc = completed
				return true
			}

			continue
		}

		if p.cur == nil {
			p.openOrphan(line)
		}
		if t.OutOfOrder {
			p.anomalies++
			p.logger.WithFields(logrus.Fields{
				"line":     p.line,
				"marker":   t.Next.String(),
				"previous": p.state.String(),
			}).Warn("section marker out of order")
		}

		if t.Flush != FieldNone {
			p.cur.set(t.Flush, joinBuffer(p.buf))
		}
		p.buf = nil
		p.state = t.Next
	}

	p.done = true
	if err := p.scanner.Err(); err != nil {
		p.lastErr = err
		return false
	}

	// The last document has no trailing .I marker to complete it.
	if completed := p.flush(FieldWords); completed != nil {
		p.doc = completed
		return true
	}

	return false
}

// Document returns the document completed by the last call to Next. The
// parser does not retain or modify it afterwards.
func (p *Parser) Document() *Document {
	return p.doc
}

// Error returns the last read error encountered by the parser.
func (p *Parser) Error() error {
	return p.lastErr
}

// Anomalies returns the number of malformed constructs seen so far.
func (p *Parser) Anomalies() int {
	return p.anomalies
}

// flush moves the buffered text into field f of the open document and
// hands the document over. It returns nil if no document is open.
func (p *Parser) flush(f Field) *Document {
	if p.cur == nil {
		p.buf = nil
		return nil
	}

	completed := p.cur
	completed.set(f, joinBuffer(p.buf))
	p.cur = nil
	p.buf = nil

	return completed
}

func (p *Parser) openOrphan(line string) {
	p.anomalies++
	p.logger.WithFields(logrus.Fields{
		"line": p.line,
		"text": line,
	}).Warn("content before the first .I marker")

	p.cur = &Document{}
}

func joinBuffer(buf []string) string {
	return strings.TrimSpace(strings.Join(buf, " "))
}
