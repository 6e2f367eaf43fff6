package search

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"

	"github.com/mycok/cranfield/internal/cranfield"
	"github.com/mycok/cranfield/internal/textindex/index"
)

// RunLine is a single line of a TREC run file.
type RunLine struct {
	QueryID int
	DocID   int
	Rank    int
	Score   float64
	RunID   string
}

// String formats the line as "queryId Q0 docId rank score runId".
func (l RunLine) String() string {
	return fmt.Sprintf("%d Q0 %d %d %s %s", l.QueryID, l.DocID, l.Rank, formatScore(l.Score), l.RunID)
}

// BatchStats summarizes a batch run.
type BatchStats struct {
	// Queries submitted to the index.
	Queries int

	// Queries skipped because they had no text.
	Skipped int

	// Queries whose search failed.
	Failed int

	// Run lines written.
	Lines int
}

type querySource interface {
	Next() bool
	Query() cranfield.Query
	Error() error
}

// singleQuery yields one query with id 1.
type singleQuery struct {
	text string
	done bool
}

func (sq *singleQuery) Next() bool {
	if sq.done {
		return false
	}
	sq.done = true

	return true
}

func (sq *singleQuery) Query() cranfield.Query { return cranfield.Query{ID: 1, Text: sq.text} }
func (sq *singleQuery) Error() error           { return nil }

// RunBatch reads Cranfield-formatted queries from queries and writes up to
// NumHits run lines per query to results. Each line is echoed to the
// console. If the session has a fixed query, only that query is run and
// queries is not read.
//
// A failed search is logged and skipped. Write errors and cancellation
// abort the run; lines produced so far are still written.
func (s *Session) RunBatch(ctx context.Context, queries io.Reader, results io.Writer) (stats BatchStats, errs error) {
	var src querySource = cranfield.NewQueryReader(queries)
	if s.cfg.Query != "" {
		src = &singleQuery{text: s.cfg.Query}
	}

	// Lines written before an early return still reach results.
	out := bufio.NewWriter(results)
	defer func() {
		if err := out.Flush(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("write run lines: %w", err))
		}
	}()

	for src.Next() {
		if err := ctx.Err(); err != nil {
			return stats, multierror.Append(errs, err)
		}

		cq := src.Query()
		logger := s.cfg.Logger.WithField("query_id", cq.ID)

		q, err := s.parse(cq.Text)
		if errors.Is(err, index.ErrEmptyQuery) {
			stats.Skipped++
			logger.Warn("skipping empty query")

			continue
		} else if err != nil {
			return stats, multierror.Append(errs, err)
		}

		fmt.Fprintf(s.cfg.Out, "Searching for: %s\n", q)
		s.countQuery("batch")

		if err = s.benchmark(q); err != nil {
			stats.Failed++
			logger.WithField("err", err).Error("benchmark failed")
			errs = multierror.Append(errs, err)

			continue
		}

		hits, err := s.search(q, s.cfg.NumHits)
		if err != nil {
			stats.Failed++
			logger.WithField("err", err).Error("search failed")
			errs = multierror.Append(errs, err)

			continue
		}
		stats.Queries++

		for i, hit := range hits.Items {
			line := RunLine{
				QueryID: cq.ID,
				DocID:   hit.InstanceID,
				Rank:    i + 1,
				Score:   hit.Score,
				RunID:   s.cfg.RunID,
			}.String()

			fmt.Fprintln(s.cfg.Out, line)
			if _, err = fmt.Fprintln(out, line); err != nil {
				return stats, multierror.Append(errs, fmt.Errorf("write run line: %w", err))
			}
			stats.Lines++
		}
	}

	if err := src.Error(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("read queries: %w", err))
	}

	return stats, errs
}
