// Package store resolves index URIs to a concrete index.Indexer.
//
// Supported URIs:
//
//	in-memory://                      a throw-away bleve index
//	es://node1:9200,...,nodeN:9200/name an elasticsearch index
//	bleve:///path/to/index            an on-disk bleve index
//	path/to/index                     an on-disk bleve index
package store

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mycok/cranfield/internal/textindex/index"
	"github.com/mycok/cranfield/internal/textindex/store/bleveindex"
	"github.com/mycok/cranfield/internal/textindex/store/es"
)

// Options describes how to open the index behind a URI.
type Options struct {
	URI       string
	Mode      index.Mode
	ReadOnly  bool
	Analyzer  string
	StopWords []string
	Logger    *logrus.Entry
}

// Open returns the index referenced by opts.URI.
func Open(opts Options) (index.Indexer, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("index URI must be specified with -index")
	}

	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	if !strings.Contains(opts.URI, "://") {
		return openBleve(opts.URI, opts)
	}

	u, err := url.Parse(opts.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse index URI: %w", err)
	}

	switch u.Scheme {
	case "in-memory":
		opts.Logger.Info("using in-memory index store")

		return bleveindex.NewBleveIndexer(bleveindex.Config{
			Analyzer:  opts.Analyzer,
			StopWords: opts.StopWords,
			Logger:    opts.Logger,
		})
	case "bleve":
		return openBleve(u.Host+u.Path, opts)
	case "es":
		nodes := strings.Split(u.Host, ",")
		for i := 0; i < len(nodes); i++ {
			nodes[i] = "http://" + nodes[i]
		}
		opts.Logger.WithField("nodes", nodes).Info("using ES index store")

		return es.NewElasticsearchIndexer(es.Config{
			Nodes:     nodes,
			IndexName: strings.Trim(u.Path, "/"),
			Mode:      opts.Mode,
			ReadOnly:  opts.ReadOnly,
			Analyzer:  opts.Analyzer,
			StopWords: opts.StopWords,
			Logger:    opts.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported index URI scheme: %q", u.Scheme)
	}
}

func openBleve(path string, opts Options) (index.Indexer, error) {
	if path == "" {
		return nil, fmt.Errorf("index URI %q does not name a path", opts.URI)
	}

	opts.Logger.WithField("path", path).Info("using on-disk index store")

	return bleveindex.NewBleveIndexer(bleveindex.Config{
		Path:      path,
		Mode:      opts.Mode,
		ReadOnly:  opts.ReadOnly,
		Analyzer:  opts.Analyzer,
		StopWords: opts.StopWords,
		Logger:    opts.Logger,
	})
}
