// Package qrels rewrites Cranfield relevance judgments into the four column
// layout expected by TREC evaluation tools by inserting a constant iteration
// field after the query id.
package qrels

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrMalformedLine is returned for judgment lines that contain no space
// separating the query id from the rest of the record.
var ErrMalformedLine = errors.New("malformed relevance judgment line")

// iteration is inserted after the first field of every line.
const iteration = "0 "

// Normalize inserts the iteration token right after the first space of
// line. Lines without a space are rejected with ErrMalformedLine.
func Normalize(line string) (string, error) {
	offset := strings.IndexByte(line, ' ')
	if offset < 0 {
		return "", ErrMalformedLine
	}
	offset++

	return line[:offset] + iteration + line[offset:], nil
}

// Options tunes the behaviour of Rewrite.
type Options struct {
	// Skip malformed lines with a warning instead of failing.
	SkipMalformed bool

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

// Stats summarizes a completed rewrite.
type Stats struct {
	Written int
	Skipped int
}

// Rewrite normalizes every line read from r and writes the result to w,
// one line per judgment.
func Rewrite(r io.Reader, w io.Writer, opts Options) (Stats, error) {
	var stats Stats

	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	scanner := bufio.NewScanner(r)
	out := bufio.NewWriter(w)

	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line, err := Normalize(scanner.Text())
		if err != nil {
			if !opts.SkipMalformed {
				return stats, fmt.Errorf("line %d: %w", lineNo, err)
			}

			logger.WithFields(logrus.Fields{
				"line": lineNo,
				"text": scanner.Text(),
			}).Warn("skipping malformed relevance judgment")
			stats.Skipped++

			continue
		}

		if _, err = out.WriteString(line + "\n"); err != nil {
			return stats, fmt.Errorf("write: %w", err)
		}
		stats.Written++
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read: %w", err)
	}

	if err := out.Flush(); err != nil {
		return stats, fmt.Errorf("write: %w", err)
	}

	return stats, nil
}
