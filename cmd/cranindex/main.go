package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/mycok/cranfield/internal/cli"
	"github.com/mycok/cranfield/internal/config"
	"github.com/mycok/cranfield/internal/cranfield"
	"github.com/mycok/cranfield/internal/indexing"
	"github.com/mycok/cranfield/internal/metrics"
	"github.com/mycok/cranfield/internal/store"
	"github.com/mycok/cranfield/internal/textindex/index"
)

const appName = "cranindex"

const usage = `Usage: cranindex [-index INDEX_PATH] -docs DOCS_PATH [-update]

Indexes the Cranfield collection in DOCS_PATH into the index at INDEX_PATH,
which can then be searched with cransearch.

`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, clock.WallClock))
}

func run(args []string, stdout, stderr io.Writer, clk clock.Clock) (exitCode int) {
	logger := logrus.NewEntry(logrus.New())
	defer func() {
		if r := recover(); r != nil {
			exitCode = cli.ReportPanic(logger, r)
		}
	}()

	defaults := config.Default()
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var (
		configPath  = fs.String("config", "", "YAML file with default settings")
		indexURI    = fs.String("index", defaults.Index.URI, "Index directory or URI. [supported URI's: in-memory://, es://node1:9200,...,nodeN:9200/name]")
		docsPath    = fs.String("docs", "", "Cranfield collection file to index (required)")
		update      = fs.Bool("update", false, "Replace documents in an existing index instead of creating a new one")
		analyzer    = fs.String("analyzer", defaults.Index.Analyzer, "Text analyzer for a new index: standard, english or custom")
		stopWords   = fs.String("stopwords", "", "Stop word file for the custom analyzer")
		failFast    = fs.Bool("fail-fast", false, "Stop at the first document that cannot be indexed")
		metricsFile = fs.String("metrics-file", "", "Write run metrics to this node-exporter textfile")
		verbose     = fs.Bool("v", false, "Enable debug logging")
	)

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}

		return 1
	}

	if *docsPath == "" {
		fs.Usage()

		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)

		return 1
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "index":
			cfg.Index.URI = *indexURI
		case "analyzer":
			cfg.Index.Analyzer = *analyzer
		case "stopwords":
			cfg.Index.StopWordsFile = *stopWords
		case "metrics-file":
			cfg.Metrics.Textfile = *metricsFile
		}
	})

	if err = cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)

		return 1
	}

	if logger, err = cli.NewLogger(appName, cfg.Logging, *verbose, stderr); err != nil {
		fmt.Fprintln(stderr, err)

		return 1
	}

	docs, err := os.Open(*docsPath)
	if err != nil {
		absPath, _ := filepath.Abs(*docsPath)
		fmt.Fprintf(stdout, "Document directory '%s' does not exist or is not readable, please check the path\n", absPath)
		logger.WithField("err", err).Debug("opening documents")

		return 1
	}
	defer func() { _ = docs.Close() }()

	var stopList []string
	if cfg.Index.StopWordsFile != "" {
		if stopList, err = config.LoadStopWords(cfg.Index.StopWordsFile); err != nil {
			logger.WithField("err", err).Error("shutting down due to an error")

			return 1
		}
	}

	mode := index.CreateFresh
	if *update {
		mode = index.CreateOrAppend
	}

	ctx, cancelFn := cli.SignalContext(logger)
	defer cancelFn()

	start := clk.Now()
	fmt.Fprintf(stdout, "Indexing to directory '%s'...\n", cfg.Index.URI)

	idx, err := store.Open(store.Options{
		URI:       cfg.Index.URI,
		Mode:      mode,
		Analyzer:  cfg.Index.Analyzer,
		StopWords: stopList,
		Logger:    logger.WithField("component", "index"),
	})
	if err != nil {
		logger.WithField("err", err).Error("shutting down due to an error")

		return 1
	}

	m := metrics.New()
	defer cli.FlushMetrics(m, cfg.Metrics.Textfile, logger)

	maintainer, err := indexing.New(indexing.Config{
		IndexAPI:     idx,
		Mode:         mode,
		AbortOnError: *failFast,
		Metrics:      m,
		Logger:       logger.WithField("mode", mode.String()),
	})
	if err != nil {
		_ = idx.Close()
		logger.WithField("err", err).Error("shutting down due to an error")

		return 1
	}

	parser := cranfield.NewParser(docs, logger.WithField("docs", *docsPath))
	stats, runErr := maintainer.Run(ctx, parser)

	if err = idx.Close(); err != nil {
		logger.WithField("err", err).Error("failed to close index")
		exitCode = 1
	}

	logger.WithFields(logrus.Fields{
		"indexed":   stats.Indexed,
		"rejected":  stats.Rejected,
		"failed":    stats.Failed,
		"anomalies": parser.Anomalies(),
	}).Info("indexing complete")
	fmt.Fprintf(stdout, "%d total milliseconds\n", clk.Now().Sub(start).Milliseconds())

	if runErr != nil {
		logger.WithField("err", runErr).Error("some documents were not indexed")

		return 1
	}

	return exitCode
}
