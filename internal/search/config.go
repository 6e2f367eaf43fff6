package search

import (
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/mycok/cranfield/internal/metrics"
	"github.com/mycok/cranfield/internal/textindex/index"
)

//go:generate mockgen -package mocks -destination mocks/mock.go github.com/mycok/cranfield/internal/search Searcher

// ErrInvalidPageSize is returned when a session is configured with fewer
// than one result per page.
var ErrInvalidPageSize = errors.New("there must be at least 1 hit per page")

const (
	defaultNumHits = 20
	defaultRunID   = "STANDARD"

	// Number of pages fetched by the first search of an interactive query.
	prefetchPages = 5

	// Number of hits requested by each benchmark search.
	benchmarkHits = 100
)

// Searcher is implemented by indexes that can run ranked queries.
type Searcher interface {
	// Search returns at most limit hits for q, best first. A limit <= 0
	// returns every matching hit.
	Search(q index.Query, limit int) (*index.Hits, error)
}

// Config defines configurations for a query session.
type Config struct {
	// The index to query.
	Searcher Searcher

	// Fields (and their boosts) each query is matched against. Defaults
	// to index.DefaultQueryFields.
	Fields []index.FieldBoost

	// The ranking function to request from the index.
	Ranking index.Ranking

	// Results per page in interactive mode.
	PageSize int

	// Run lines written per query in batch mode. Defaults to 20.
	NumHits int

	// Label written as the last token of every run line. Defaults to
	// STANDARD.
	RunID string

	// Print document ids and scores instead of ids and titles.
	Raw bool

	// If positive, every query is first run Repeat times and the elapsed
	// time is reported.
	Repeat int

	// If set, the session runs exactly this query once instead of reading
	// queries from its input.
	Query string

	// Source of queries and paging commands in interactive mode.
	In io.Reader

	// Destination of console output.
	Out io.Writer

	// Clock used for timing searches. Defaults to the wall clock.
	Clock clock.Clock

	// Optional collectors for query metrics.
	Metrics *metrics.Metrics

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (config *Config) validate() error {
	var err error

	if config.Searcher == nil {
		err = multierror.Append(err, fmt.Errorf("searcher not provided"))
	}

	if config.PageSize < 1 {
		err = multierror.Append(err, ErrInvalidPageSize)
	}

	if config.NumHits < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid number of hits per query %d", config.NumHits))
	} else if config.NumHits == 0 {
		config.NumHits = defaultNumHits
	}

	if config.Repeat < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid repeat count %d", config.Repeat))
	}

	if len(config.Fields) == 0 {
		for _, f := range index.DefaultQueryFields {
			config.Fields = append(config.Fields, index.FieldBoost{Field: f, Boost: 1})
		}
	}

	if config.RunID == "" {
		config.RunID = defaultRunID
	}

	if config.In == nil {
		config.In = eofReader{}
	}

	if config.Out == nil {
		config.Out = io.Discard
	}

	if config.Clock == nil {
		config.Clock = clock.WallClock
	}

	if config.Logger == nil {
		config.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
