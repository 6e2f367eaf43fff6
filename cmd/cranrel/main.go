package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/mycok/cranfield/internal/cli"
	"github.com/mycok/cranfield/internal/config"
	"github.com/mycok/cranfield/internal/qrels"
)

const appName = "cranrel"

const usage = "Usage is: cranrel [-skip-malformed] cranrel_input_location cranrel_output_location\n"

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) (exitCode int) {
	logger := logrus.NewEntry(logrus.New())
	defer func() {
		if r := recover(); r != nil {
			exitCode = cli.ReportPanic(logger, r)
		}
	}()

	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var (
		skipMalformed = fs.Bool("skip-malformed", false, "Skip lines without a space instead of failing")
		verbose       = fs.Bool("v", false, "Enable debug logging")
	)

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}

		return 1
	}

	if fs.NArg() != 2 {
		fs.Usage()

		return 1
	}

	var err error
	if logger, err = cli.NewLogger(appName, config.Default().Logging, *verbose, stderr); err != nil {
		fmt.Fprintln(stderr, err)

		return 1
	}

	if err = rewrite(fs.Arg(0), fs.Arg(1), *skipMalformed, logger); err != nil {
		logger.WithField("err", err).Error("failed to normalize relevance judgments")

		return 1
	}

	return 0
}

func rewrite(inPath, outPath string, skipMalformed bool, logger *logrus.Entry) error {
	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}

	stats, err := qrels.Rewrite(in, out, qrels.Options{
		SkipMalformed: skipMalformed,
		Logger:        logger,
	})
	if cerr := out.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%s: %w", inPath, err)
	}

	logger.WithFields(logrus.Fields{
		"written": stats.Written,
		"skipped": stats.Skipped,
		"output":  outPath,
	}).Info("relevance judgments normalized")

	return nil
}
