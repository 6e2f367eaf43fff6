// Package cli holds the process plumbing shared by the command-line tools:
// the root logger, signal handling, panic recovery and metrics output.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mycok/cranfield/internal/config"
	"github.com/mycok/cranfield/internal/metrics"
)

// NewLogger instantiates the root logger of a tool. Every entry carries the
// tool name, the host and an id unique to this run.
func NewLogger(app string, cfg config.LoggingConfig, verbose bool, out io.Writer) (*logrus.Entry, error) {
	rootLogger := logrus.New()
	rootLogger.SetOutput(out)

	if cfg.Format == "json" {
		rootLogger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if verbose {
		level = logrus.DebugLevel
	}
	rootLogger.SetLevel(level)

	host, _ := os.Hostname()

	return rootLogger.WithFields(logrus.Fields{
		"app":  app,
		"host": host,
		"run":  uuid.New().String(),
	}), nil
}

// SignalContext returns a context that is cancelled when the process
// receives SIGINT or SIGHUP.
func SignalContext(logger *logrus.Entry) (context.Context, context.CancelFunc) {
	ctx, cancelFn := context.WithCancel(context.Background())

	go func() {
		signalChan := make(chan os.Signal, 1)
		signal.Notify(signalChan, syscall.SIGINT, syscall.SIGHUP)
		defer signal.Stop(signalChan)

		select {
		case s := <-signalChan:
			logger.WithField("signal", s.String()).Info("shutting down due to os signal")
			cancelFn()
		case <-ctx.Done():
		}
	}()

	return ctx, cancelFn
}

// ReportPanic logs a value recovered from a panic and returns the exit
// code the process should terminate with.
func ReportPanic(logger *logrus.Entry, r interface{}) int {
	logger.WithField("panic", r).Error("shutting down due to an unexpected error")

	return 1
}

// FlushMetrics writes m to the textfile at path. An empty path is a no-op.
func FlushMetrics(m *metrics.Metrics, path string, logger *logrus.Entry) {
	if path == "" {
		return
	}

	if err := m.WriteTextfile(path); err != nil {
		logger.WithField("err", err).Warn("failed to write metrics")
	}
}
