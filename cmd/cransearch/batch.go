package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/mycok/cranfield/internal/search"
)

// runBatch runs every query in queriesPath and writes the run file to
// resultPath, creating its directory if needed.
func runBatch(ctx context.Context, sess *search.Session, queriesPath, resultPath string, logger *logrus.Entry) error {
	queries, err := os.Open(queriesPath)
	if err != nil {
		return fmt.Errorf("open queries: %w", err)
	}
	defer func() { _ = queries.Close() }()

	if dir := filepath.Dir(resultPath); dir != "." {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create result directory: %w", err)
		}
	}

	results, err := os.Create(resultPath)
	if err != nil {
		return fmt.Errorf("create result file: %w", err)
	}

	stats, runErr := sess.RunBatch(ctx, queries, results)
	if err = results.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close result file: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"queries": stats.Queries,
		"skipped": stats.Skipped,
		"failed":  stats.Failed,
		"lines":   stats.Lines,
		"result":  resultPath,
	}).Info("batch run complete")

	return runErr
}
