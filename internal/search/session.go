// Package search runs queries against a Cranfield index, either in batch
// mode producing TREC run lines or interactively with a paged result view.
package search

import (
	"bufio"
	"fmt"
	"strconv"

	"github.com/mycok/cranfield/internal/textindex/index"
)

// Session executes queries against a single index.
type Session struct {
	cfg   Config
	lines *bufio.Scanner
}

// New creates and returns a fully configured query session.
func New(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("search: config validation failed: %w", err)
	}

	return &Session{
		cfg:   cfg,
		lines: bufio.NewScanner(cfg.In),
	}, nil
}

func (s *Session) parse(text string) (index.Query, error) {
	q, err := index.ParseWeightedQuery(s.cfg.Fields, text)
	if err != nil {
		return index.Query{}, err
	}
	q.Ranking = s.cfg.Ranking

	return q, nil
}

// search runs q and records its latency and hit count.
func (s *Session) search(q index.Query, limit int) (*index.Hits, error) {
	start := s.cfg.Clock.Now()
	hits, err := s.cfg.Searcher.Search(q, limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q.Expression, err)
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.SearchLatency.WithLabelValues(q.Ranking.String()).
			Observe(s.cfg.Clock.Now().Sub(start).Seconds())
		s.cfg.Metrics.SearchHitsCount.Observe(float64(hits.Total))
	}

	return hits, nil
}

// benchmark runs q Repeat times, discards the results and prints the
// elapsed time.
func (s *Session) benchmark(q index.Query) error {
	if s.cfg.Repeat <= 0 {
		return nil
	}

	start := s.cfg.Clock.Now()
	for i := 0; i < s.cfg.Repeat; i++ {
		if _, err := s.cfg.Searcher.Search(q, benchmarkHits); err != nil {
			return fmt.Errorf("benchmark %q: %w", q.Expression, err)
		}
	}
	elapsed := s.cfg.Clock.Now().Sub(start)

	fmt.Fprintf(s.cfg.Out, "Time: %dms\n", elapsed.Milliseconds())

	return nil
}

func (s *Session) countQuery(mode string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.QueriesTotal.WithLabelValues(mode, s.cfg.Ranking.String()).Inc()
	}
}

func (s *Session) readLine() (string, bool) {
	if !s.lines.Scan() {
		return "", false
	}

	return s.lines.Text(), true
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 32)
}
