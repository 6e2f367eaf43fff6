package indexing

import (
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/mycok/cranfield/internal/metrics"
	"github.com/mycok/cranfield/internal/textindex/index"
)

//go:generate mockgen -package mocks -destination mocks/mock.go github.com/mycok/cranfield/internal/indexing IndexAPI

// IndexAPI defines the minimum set of index methods the maintainer needs.
type IndexAPI interface {
	// Add inserts a document that is known not to be in the index.
	Add(doc *index.Document) error

	// Update replaces the document stored under key with doc, or inserts
	// doc if no such document exists.
	Update(key string, doc *index.Document) error
}

// Config defines configurations for the index maintainer.
type Config struct {
	// API for writing documents to the index.
	IndexAPI IndexAPI

	// Fixed for the whole run; selects Add or Update for every document.
	Mode index.Mode

	// Stop at the first document that cannot be written instead of
	// skipping it.
	AbortOnError bool

	// Optional collectors for indexing metrics.
	Metrics *metrics.Metrics

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (config *Config) validate() error {
	var err error

	if config.IndexAPI == nil {
		err = multierror.Append(err, fmt.Errorf("index API not provided"))
	}

	if config.Mode != index.CreateFresh && config.Mode != index.CreateOrAppend {
		err = multierror.Append(err, fmt.Errorf("invalid indexing mode %s", config.Mode))
	}

	if config.Logger == nil {
		config.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}
