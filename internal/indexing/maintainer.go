// Package indexing feeds parsed Cranfield documents into a search index.
package indexing

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/mycok/cranfield/internal/cranfield"
	"github.com/mycok/cranfield/internal/textindex/index"
)

// DocumentSource is implemented by types that produce parsed documents,
// such as cranfield.Parser.
type DocumentSource interface {
	// Next advances to the next document and returns false when no more
	// documents are available or an error occurs.
	Next() bool

	// Document returns the current document.
	Document() *cranfield.Document

	// Error returns the last error observed by the source.
	Error() error
}

// Stats summarizes an indexing run.
type Stats struct {
	// Documents written to the index.
	Indexed int

	// Documents rejected because they carry no instance id.
	Rejected int

	// Documents that could not be written.
	Failed int
}

// Maintainer writes documents to an index using the add or replace
// primitive selected by its mode.
type Maintainer struct {
	cfg Config
}

// New creates and returns a fully configured maintainer.
func New(cfg Config) (*Maintainer, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("indexing: config validation failed: %w", err)
	}

	return &Maintainer{cfg: cfg}, nil
}

// Mode returns the mode the maintainer was configured with.
func (m *Maintainer) Mode() index.Mode {
	return m.cfg.Mode
}

// IndexDocument performs a single write for doc. Documents without an
// instance id are rejected with index.ErrMissingInstanceID.
func (m *Maintainer) IndexDocument(doc *cranfield.Document) error {
	idxDoc := index.FromCranfield(doc)
	logger := m.cfg.Logger.WithFields(logrus.Fields{
		"instance_id": idxDoc.InstanceID,
		"title":       idxDoc.Title,
	})

	if idxDoc.InstanceID <= 0 {
		return fmt.Errorf("index document: %w", index.ErrMissingInstanceID)
	}

	var (
		op  string
		err error
	)

	switch m.cfg.Mode {
	case index.CreateFresh:
		// The index started empty, no old copy of the document can exist.
		op = "add"
		logger.Info("adding")
		err = m.cfg.IndexAPI.Add(idxDoc)
	default:
		op = "update"
		logger.Info("updating")
		err = m.cfg.IndexAPI.Update(idxDoc.Key(), idxDoc)
	}

	if err != nil {
		if m.cfg.Metrics != nil {
			m.cfg.Metrics.DocsFailedTotal.Inc()
		}

		return fmt.Errorf("index document %d: %w", idxDoc.InstanceID, err)
	}

	if m.cfg.Metrics != nil {
		m.cfg.Metrics.DocsIndexedTotal.WithLabelValues(op).Inc()
	}

	return nil
}

// Run indexes every document produced by src. Failed documents are logged
// and skipped unless the maintainer is configured to abort; every failure
// is part of the returned error. Documents without an instance id are
// logged and counted as rejected.
func (m *Maintainer) Run(ctx context.Context, src DocumentSource) (Stats, error) {
	var (
		stats Stats
		errs  error
	)

	for src.Next() {
		if err := ctx.Err(); err != nil {
			return stats, multierror.Append(errs, err)
		}

		doc := src.Document()

		err := m.IndexDocument(doc)
		switch {
		case err == nil:
			stats.Indexed++

			continue
		case errors.Is(err, index.ErrMissingInstanceID):
			// Malformed input rather than a write failure.
			stats.Rejected++
			m.cfg.Logger.WithField("title", doc.Title).Warn("skipping document without instance id")

			continue
		default:
			stats.Failed++
			m.cfg.Logger.WithField("err", err).Error("failed to index document")
		}

		errs = multierror.Append(errs, err)
		if m.cfg.AbortOnError {
			return stats, errs
		}
	}

	if err := src.Error(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("read documents: %w", err))
	}

	return stats, errs
}
