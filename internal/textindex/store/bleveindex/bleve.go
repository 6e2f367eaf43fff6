package bleveindex

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/search"
	"github.com/blevesearch/bleve/search/query"
	"github.com/sirupsen/logrus"

	"github.com/mycok/cranfield/internal/textindex/index"
)

// Compile-time check to ensure BleveIndexer implements Indexer.
var _ index.Indexer = (*BleveIndexer)(nil)

// Config defines how a bleve index is opened.
type Config struct {
	// Directory holding the index. An empty path keeps the index in
	// memory.
	Path string

	// How to treat an existing index at Path.
	Mode index.Mode

	// Open an existing index without write access. Mode is ignored.
	ReadOnly bool

	// Analyzer applied to text fields of newly created indexes. Existing
	// indexes keep the analyzer they were created with.
	Analyzer string

	// Stop words for AnalyzerCustom.
	StopWords []string

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

// BleveIndexer is an Indexer implementation backed by a bleve index.
type BleveIndexer struct {
	idx    bleve.Index
	logger *logrus.Entry

	mu    sync.Mutex
	stats map[string]fieldStats
}

// NewBleveIndexer opens or creates the index described by cfg.
func NewBleveIndexer(cfg Config) (*BleveIndexer, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	idx, err := openIndex(cfg)
	if err != nil {
		return nil, err
	}

	return &BleveIndexer{
		idx:    idx,
		logger: cfg.Logger,
		stats:  make(map[string]fieldStats),
	}, nil
}

// NewInMemoryBleveIndexer creates an empty index that lives in memory.
func NewInMemoryBleveIndexer(analyzer string) (*BleveIndexer, error) {
	return NewBleveIndexer(Config{Analyzer: analyzer})
}

func openIndex(cfg Config) (bleve.Index, error) {
	logger := cfg.Logger.WithField("path", cfg.Path)

	if cfg.ReadOnly {
		logger.Debug("opening index read-only")

		idx, err := bleve.OpenUsing(cfg.Path, map[string]interface{}{"read_only": true})
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}

		return idx, nil
	}

	im, err := newIndexMapping(cfg.Analyzer, cfg.StopWords)
	if err != nil {
		return nil, fmt.Errorf("index mapping: %w", err)
	}

	if cfg.Path == "" {
		logger.Debug("creating in-memory index")

		return bleve.NewMemOnly(im)
	}

	if cfg.Mode == index.CreateOrAppend {
		idx, err := bleve.Open(cfg.Path)
		if err == nil {
			logger.Info("appending to existing index")

			return idx, nil
		}

		if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			return nil, fmt.Errorf("open index: %w", err)
		}
	} else if err := removeIndex(cfg.Path); err != nil {
		return nil, err
	}

	logger.WithField("analyzer", im.DefaultAnalyzer).Info("creating new index")

	idx, err := bleve.New(cfg.Path, im)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	return idx, nil
}

// removeIndex deletes the index at path so a new one can be created in its
// place. Paths that hold anything other than a bleve index are left alone.
func removeIndex(path string) error {
	entries, err := os.ReadDir(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("remove previous index: %w", err)
	}

	if len(entries) != 0 {
		prev, err := bleve.Open(path)
		if err != nil {
			return fmt.Errorf("remove previous index: %q is not an index: %w", path, err)
		}
		if err = prev.Close(); err != nil {
			return fmt.Errorf("remove previous index: %w", err)
		}
	}

	if err = os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove previous index: %w", err)
	}

	return nil
}

// Close the indexer and release any allocated resources.
func (i *BleveIndexer) Close() error {
	return i.idx.Close()
}

// Add inserts a document that is not yet part of the index.
func (i *BleveIndexer) Add(doc *index.Document) error {
	if doc.InstanceID <= 0 {
		return fmt.Errorf("add: %w", index.ErrMissingInstanceID)
	}

	existing, err := i.idx.Document(doc.Key())
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("add %s: %w", doc.Key(), index.ErrAlreadyIndexed)
	}

	return i.write(doc, "add")
}

// Update replaces the document stored under key, or inserts doc if no such
// document exists.
func (i *BleveIndexer) Update(key string, doc *index.Document) error {
	if doc.InstanceID <= 0 {
		return fmt.Errorf("update: %w", index.ErrMissingInstanceID)
	}

	if key != doc.Key() {
		if err := i.idx.Delete(key); err != nil {
			return fmt.Errorf("update: %w", err)
		}
	}

	return i.write(doc, "update")
}

func (i *BleveIndexer) write(doc *index.Document, op string) error {
	bdoc, err := i.makeBleveDoc(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.idx.Index(doc.Key(), bdoc); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// Collection statistics change with every write.
	i.stats = make(map[string]fieldStats)

	return nil
}

// FindByID looks up a document by its instance id.
func (i *BleveIndexer) FindByID(instanceID int) (*index.Document, error) {
	req := bleve.NewSearchRequestOptions(
		bleve.NewDocIDQuery([]string{index.KeyFor(instanceID)}), 1, 0, false,
	)
	req.Fields = []string{"*"}

	sr, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("find by id: %w", err)
	}

	if len(sr.Hits) != 1 {
		return nil, fmt.Errorf("find by id: %w", index.ErrNotFound)
	}

	hit := sr.Hits[0]

	return &index.Document{
		InstanceID:    instanceID,
		Title:         stringField(hit, index.FieldTitle),
		Author:        stringField(hit, index.FieldAuthor),
		Bibliographic: stringField(hit, index.FieldBibliographic),
		Words:         stringField(hit, index.FieldWords),
	}, nil
}

// DocCount returns the number of documents in the index.
func (i *BleveIndexer) DocCount() (uint64, error) {
	return i.idx.DocCount()
}

// Search the index for a particular query and return up to limit hits.
func (i *BleveIndexer) Search(q index.Query, limit int) (*index.Hits, error) {
	if len(q.Fields) == 0 {
		return nil, fmt.Errorf("search: %w", index.ErrUnknownField)
	}

	total, err := i.idx.DocCount()
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	// BM25 re-scores the complete match set before truncating it.
	size := limit
	if size <= 0 || q.Ranking == index.RankingBM25 {
		size = int(total)
	}

	req := bleve.NewSearchRequestOptions(buildQuery(q), size, 0, false)
	req.SortBy([]string{"-_score", "_id"})
	req.Fields = []string{index.FieldTitle}

	if q.Ranking == index.RankingBM25 {
		req.IncludeLocations = true
		for _, f := range q.Fields {
			if hasLength(f.Field) {
				req.Fields = append(req.Fields, lengthField(f.Field))
			}
		}
	}

	sr, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := &index.Hits{
		Total: sr.Total,
		Items: make([]index.Hit, 0, len(sr.Hits)),
	}

	var scorer *bm25Scorer
	if q.Ranking == index.RankingBM25 {
		if scorer, err = i.newBM25Scorer(q); err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
	}

	for _, match := range sr.Hits {
		instanceID, err := strconv.Atoi(match.ID)
		if err != nil {
			return nil, fmt.Errorf("search: malformed document key %q: %w", match.ID, err)
		}

		score := match.Score
		if scorer != nil {
			if score, err = scorer.score(match); err != nil {
				return nil, fmt.Errorf("search: %w", err)
			}
		}

		hits.Items = append(hits.Items, index.Hit{
			InstanceID: instanceID,
			Score:      score,
			Title:      stringField(match, index.FieldTitle),
		})
	}

	if scorer != nil {
		sort.SliceStable(hits.Items, func(a, b int) bool {
			return hits.Items[a].Score > hits.Items[b].Score
		})
	}

	if limit > 0 && len(hits.Items) > limit {
		hits.Items = hits.Items[:limit]
	}

	return hits, nil
}

// buildQuery matches the query expression against every requested field,
// combining the per-field matches and the terms within them with OR.
func buildQuery(q index.Query) query.Query {
	disjuncts := make([]query.Query, 0, len(q.Fields))
	for _, f := range q.Fields {
		mq := bleve.NewMatchQuery(q.Expression)
		mq.SetField(f.Field)
		mq.Operator = query.MatchQueryOperatorOr
		if f.Boost > 0 {
			mq.SetBoost(f.Boost)
		}
		disjuncts = append(disjuncts, mq)
	}

	return bleve.NewDisjunctionQuery(disjuncts...)
}

func (i *BleveIndexer) makeBleveDoc(doc *index.Document) (bleveDoc, error) {
	bdoc := bleveDoc{
		InstanceID:    doc.InstanceID,
		Title:         doc.Title,
		Author:        doc.Author,
		Bibliographic: doc.Bibliographic,
		Words:         doc.Words,
	}

	var err error
	if bdoc.TitleLength, err = i.analyzedLength(index.FieldTitle, doc.Title); err != nil {
		return bdoc, err
	}
	if bdoc.AuthorLength, err = i.analyzedLength(index.FieldAuthor, doc.Author); err != nil {
		return bdoc, err
	}
	if bdoc.WordsLength, err = i.analyzedLength(index.FieldWords, doc.Words); err != nil {
		return bdoc, err
	}

	return bdoc, nil
}

// analyzedLength returns the number of tokens the field's analyzer
// produces for text.
func (i *BleveIndexer) analyzedLength(field, text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	m := i.idx.Mapping()
	analyzer := m.AnalyzerNamed(m.AnalyzerNameForPath(field))
	if analyzer == nil {
		return 0, fmt.Errorf("no analyzer for field %q", field)
	}

	return len(analyzer.Analyze([]byte(text))), nil
}

func hasLength(field string) bool {
	for _, f := range rankedFields {
		if f == field {
			return true
		}
	}

	return false
}

func stringField(match *search.DocumentMatch, field string) string {
	switch v := match.Fields[field].(type) {
	case string:
		return v
	case []interface{}:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}

	return ""
}

func numericField(match *search.DocumentMatch, field string) float64 {
	switch v := match.Fields[field].(type) {
	case float64:
		return v
	case []interface{}:
		if len(v) > 0 {
			if f, ok := v[0].(float64); ok {
				return f
			}
		}
	}

	return 0
}
