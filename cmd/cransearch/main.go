package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/mycok/cranfield/internal/cli"
	"github.com/mycok/cranfield/internal/config"
	"github.com/mycok/cranfield/internal/metrics"
	"github.com/mycok/cranfield/internal/search"
	"github.com/mycok/cranfield/internal/store"
)

const appName = "cransearch"

const usage = `Usage: cransearch [-result file] [-index dir] [-field f] [-repeat n] [-queries file] [-query string] [-raw] [-paging hitsPerPage] [-bm25]

With -queries, every query in the Cranfield query file is run and the top
hits are written to the result file as TREC run lines. Otherwise queries
are read from standard input and shown a page at a time. The ranking
function is tf-idf unless -bm25 is set.

`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, clock.WallClock))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer, clk clock.Clock) (exitCode int) {
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
		field       = fs.String("field", "", "Comma-separated fields to search (default Words,Title)")
		result      = fs.String("result", defaults.Search.Result, "Run file written in batch mode")
		queries     = fs.String("queries", "", "Cranfield query file; enables batch mode")
		query       = fs.String("query", "", "Run this single query and exit")
		repeat      = fs.Int("repeat", 0, "Run each search this many times first and report the elapsed time")
		raw         = fs.Bool("raw", false, "Print document ids and scores only")
		bm25        = fs.Bool("bm25", false, "Rank with BM25 instead of tf-idf")
		paging      = fs.Int("paging", defaults.Search.PageSize, "Results per page")
		hits        = fs.Int("hits", defaults.Search.Hits, "Run lines written per query in batch mode")
		runID       = fs.String("runid", defaults.Search.RunID, "Run label written to every run line")
		metricsFile = fs.String("metrics-file", "", "Write run metrics to this node-exporter textfile")
		verbose     = fs.Bool("v", false, "Enable debug logging")
	)

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}

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
		case "field":
			cfg.Search.Fields = nil
			for _, name := range strings.Split(*field, ",") {
				cfg.Search.Fields = append(cfg.Search.Fields, config.FieldConfig{Name: strings.TrimSpace(name), Boost: 1})
			}
		case "result":
			cfg.Search.Result = *result
		case "bm25":
			if *bm25 {
				cfg.Search.Ranking = "bm25"
			}
		case "paging":
			cfg.Search.PageSize = *paging
		case "hits":
			cfg.Search.Hits = *hits
		case "runid":
			cfg.Search.RunID = *runID
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

	// Validate already rejected unknown ranking names.
	ranking, _ := cfg.Search.RankingFunc()

	ctx, cancelFn := cli.SignalContext(logger)
	defer cancelFn()

	idx, err := store.Open(store.Options{
		URI:      cfg.Index.URI,
		ReadOnly: true,
		Analyzer: cfg.Index.Analyzer,
		Logger:   logger.WithField("component", "index"),
	})
	if err != nil {
		logger.WithField("err", err).Error("shutting down due to an error")

		return 1
	}
	defer func() { _ = idx.Close() }()

	m := metrics.New()
	defer cli.FlushMetrics(m, cfg.Metrics.Textfile, logger)

	sess, err := search.New(search.Config{
		Searcher: idx,
		Fields:   cfg.Search.QueryFields(),
		Ranking:  ranking,
		PageSize: cfg.Search.PageSize,
		NumHits:  cfg.Search.Hits,
		RunID:    cfg.Search.RunID,
		Raw:      *raw,
		Repeat:   *repeat,
		Query:    *query,
		In:       stdin,
		Out:      stdout,
		Clock:    clk,
		Metrics:  m,
		Logger:   logger.WithField("ranking", ranking.String()),
	})
	if err != nil {
		fmt.Fprintln(stderr, err)

		return 1
	}

	if *queries == "" {
		if err = sess.RunInteractive(ctx); err != nil {
			logger.WithField("err", err).Error("shutting down due to an error")

			return 1
		}

		return 0
	}

	if err = runBatch(ctx, sess, *queries, cfg.Search.Result, logger); err != nil {
		logger.WithField("err", err).Error("batch run incomplete")

		return 1
	}

	return 0
}
