// Package config loads the settings shared by the cranindex and cransearch
// tools from an optional YAML file. Command-line flags override the file.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/mycok/cranfield/internal/textindex/index"
)

// Config is the top-level configuration.
type Config struct {
	Index   IndexConfig   `yaml:"index"`
	Search  SearchConfig  `yaml:"search"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// IndexConfig describes where the index lives and how new indexes analyze
// text.
type IndexConfig struct {
	// Directory or URI of the index (see package store).
	URI string `yaml:"uri"`

	// One of standard, english or custom.
	Analyzer string `yaml:"analyzer"`

	// File with one stop word per line, used by the custom analyzer.
	StopWordsFile string `yaml:"stopWordsFile"`
}

// FieldConfig is a searchable field and its query weight.
type FieldConfig struct {
	Name  string  `yaml:"name"`
	Boost float64 `yaml:"boost"`
}

// SearchConfig controls query execution and output.
type SearchConfig struct {
	Fields   []FieldConfig `yaml:"fields"`
	Ranking  string        `yaml:"ranking"`
	PageSize int           `yaml:"pageSize"`
	Hits     int           `yaml:"hits"`
	RunID    string        `yaml:"runId"`
	Result   string        `yaml:"result"`
}

// LoggingConfig controls the log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls where metrics are written on exit.
type MetricsConfig struct {
	// Node-exporter textfile path. Empty disables metrics output.
	Textfile string `yaml:"textfile"`
}

// Load reads the YAML file at path (if provided) on top of the defaults and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err = dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			URI:      "index",
			Analyzer: "english",
		},
		Search: SearchConfig{
			Fields: []FieldConfig{
				{Name: index.FieldWords, Boost: 1},
				{Name: index.FieldTitle, Boost: 1},
			},
			Ranking:  index.RankingTFIDF.String(),
			PageSize: 10,
			Hits:     20,
			RunID:    "STANDARD",
			Result:   "results/results.txt",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var err error

	if c.Index.URI == "" {
		err = multierror.Append(err, fmt.Errorf("index URI must be specified"))
	}

	switch c.Index.Analyzer {
	case "standard", "english", "custom":
	default:
		err = multierror.Append(err, fmt.Errorf("unknown analyzer %q", c.Index.Analyzer))
	}

	if len(c.Search.Fields) == 0 {
		err = multierror.Append(err, fmt.Errorf("at least one search field must be specified"))
	}
	for _, f := range c.Search.Fields {
		if f.Boost <= 0 {
			err = multierror.Append(err, fmt.Errorf("field %q: boost must be positive", f.Name))
		}
	}

	if _, rerr := c.Search.RankingFunc(); rerr != nil {
		err = multierror.Append(err, rerr)
	}

	if c.Search.PageSize < 1 {
		err = multierror.Append(err, fmt.Errorf("there must be at least 1 hit per page"))
	}

	if c.Search.Hits < 1 {
		err = multierror.Append(err, fmt.Errorf("hits per query must be at least 1"))
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		err = multierror.Append(err, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}

	return err
}

// QueryFields converts the configured fields to query field boosts.
func (s SearchConfig) QueryFields() []index.FieldBoost {
	fields := make([]index.FieldBoost, 0, len(s.Fields))
	for _, f := range s.Fields {
		fields = append(fields, index.FieldBoost{Field: f.Name, Boost: f.Boost})
	}

	return fields
}

// RankingFunc returns the configured ranking function.
func (s SearchConfig) RankingFunc() (index.Ranking, error) {
	switch strings.ToLower(s.Ranking) {
	case "bm25":
		return index.RankingBM25, nil
	case "tf-idf", "tfidf", "":
		return index.RankingTFIDF, nil
	default:
		return 0, fmt.Errorf("unknown ranking function %q", s.Ranking)
	}
}

// LoadStopWords reads a stop word file. Blank lines and lines starting
// with # are ignored.
func LoadStopWords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading stop words: %w", err)
	}
	defer func() { _ = f.Close() }()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		words = append(words, strings.ToLower(word))
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stop words: %w", err)
	}

	return words, nil
}
