package es

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/mycok/cranfield/internal/textindex/index"
)

// Compile-time check to ensure ElasticsearchIndexer implements Indexer.
var _ index.Indexer = (*ElasticsearchIndexer)(nil)

// The name of the elasticsearch index used when none is configured.
const defaultIndexName = "cranfield"

// Elasticsearch refuses to return more than this many hits per request.
const maxResultWindow = 10000

// Sub-field of every text field that is scored with tf-idf instead of the
// default BM25 similarity.
const tfidfSubField = "tfidf"

// Painless port of classic tf-idf scoring.
const tfidfScript = "double tf = Math.sqrt(doc.freq); " +
	"double idf = Math.log((field.docCount+1.0)/(term.docFreq+1.0)) + 1.0; " +
	"double norm = 1/Math.sqrt(doc.length); " +
	"return query.boost * tf * idf * norm;"

type esSearchRes struct {
	Hits esSearchResHits `json:"hits"`
}

type esSearchResHits struct {
	Total   esTotal        `json:"total"`
	HitList []esHitWrapper `json:"hits"`
}

type esTotal struct {
	Count uint64 `json:"value"`
}

type esHitWrapper struct {
	ID        string        `json:"_id"`
	Score     float64       `json:"_score"`
	DocSource esDoc         `json:"_source"`
	Sort      []interface{} `json:"sort"`
}

type esGetRes struct {
	Found     bool  `json:"found"`
	DocSource esDoc `json:"_source"`
}

type esCountRes struct {
	Count uint64 `json:"count"`
}

type esDoc struct {
	InstanceID    int    `json:"InstanceID"`
	Title         string `json:"Title"`
	Author        string `json:"Author"`
	Bibliographic string `json:"Bibliographic"`
	Words         string `json:"Words"`
}

type esErrorRes struct {
	Error esError `json:"error"`
}

// esError satisfies the Error interface by implementing Error() string function.
type esError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (e esError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Reason)
}

// Config defines how the elasticsearch index is reached and prepared.
type Config struct {
	// Addresses of the elasticsearch nodes.
	Nodes []string

	// Name of the elasticsearch index. Defaults to "cranfield".
	IndexName string

	// How to treat an existing index.
	Mode index.Mode

	// Skip index creation and never delete the index.
	ReadOnly bool

	// Analyzer for text fields: "standard", "english" or "custom".
	Analyzer string

	// Stop words for the custom analyzer.
	StopWords []string

	// Make every write visible to searches before returning.
	SyncUpdates bool

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

// ElasticsearchIndexer uses an elasticsearch instance to store and search
// documents.
type ElasticsearchIndexer struct {
	es        *elasticsearch.Client
	indexName string
	refresh   string
	logger    *logrus.Entry
}

// NewElasticsearchIndexer creates and returns a text indexer that
// uses an elasticsearch instance to index and query documents.
func NewElasticsearchIndexer(cfg Config) (*ElasticsearchIndexer, error) {
	if cfg.IndexName == "" {
		cfg.IndexName = defaultIndexName
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Nodes})
	if err != nil {
		return nil, err
	}

	i := &ElasticsearchIndexer{
		es:        es,
		indexName: cfg.IndexName,
		refresh:   "false",
		logger:    cfg.Logger.WithField("es_index", cfg.IndexName),
	}
	if cfg.SyncUpdates {
		i.refresh = "true"
	}

	if cfg.ReadOnly {
		return i, nil
	}

	if cfg.Mode == index.CreateFresh {
		if err := i.deleteIndex(); err != nil {
			return nil, err
		}
	}

	if err := i.createIndex(cfg.Analyzer, cfg.StopWords); err != nil {
		return nil, err
	}

	return i, nil
}

// Close makes pending writes visible to searches.
func (i *ElasticsearchIndexer) Close() error {
	res, err := i.es.Indices.Refresh(i.es.Indices.Refresh.WithIndex(i.indexName))
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err := unmarshalResponse(res, nil); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return nil
}

// Add inserts a document that is not yet part of the index.
func (i *ElasticsearchIndexer) Add(doc *index.Document) error {
	if doc.InstanceID <= 0 {
		return fmt.Errorf("add: %w", index.ErrMissingInstanceID)
	}

	body, err := encodeDoc(doc)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	res, err := i.es.Create(i.indexName, doc.Key(), body, i.es.Create.WithRefresh(i.refresh))
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	if res.StatusCode == http.StatusConflict {
		_ = res.Body.Close()
		return fmt.Errorf("add %s: %w", doc.Key(), index.ErrAlreadyIndexed)
	}

	if err := unmarshalResponse(res, nil); err != nil {
		return fmt.Errorf("add: %w", err)
	}

	return nil
}

// Update replaces the document stored under key, or inserts doc if no such
// document exists.
func (i *ElasticsearchIndexer) Update(key string, doc *index.Document) error {
	if doc.InstanceID <= 0 {
		return fmt.Errorf("update: %w", index.ErrMissingInstanceID)
	}

	if key != doc.Key() {
		res, err := i.es.Delete(i.indexName, key, i.es.Delete.WithRefresh(i.refresh))
		if err != nil {
			return fmt.Errorf("update: %w", err)
		}
		if res.StatusCode != http.StatusNotFound {
			if err := unmarshalResponse(res, nil); err != nil {
				return fmt.Errorf("update: %w", err)
			}
		} else {
			_ = res.Body.Close()
		}
	}

	body, err := encodeDoc(doc)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	res, err := i.es.Index(
		i.indexName, body,
		i.es.Index.WithDocumentID(doc.Key()),
		i.es.Index.WithRefresh(i.refresh),
	)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	if err := unmarshalResponse(res, nil); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	return nil
}

// FindByID looks up a document by its instance id.
func (i *ElasticsearchIndexer) FindByID(instanceID int) (*index.Document, error) {
	res, err := i.es.Get(i.indexName, index.KeyFor(instanceID))
	if err != nil {
		return nil, fmt.Errorf("find by id: %w", err)
	}

	if res.StatusCode == http.StatusNotFound {
		_ = res.Body.Close()
		return nil, fmt.Errorf("find by id: %w", index.ErrNotFound)
	}

	var getRes esGetRes
	if err := unmarshalResponse(res, &getRes); err != nil {
		return nil, fmt.Errorf("find by id: %w", err)
	}

	if !getRes.Found {
		return nil, fmt.Errorf("find by id: %w", index.ErrNotFound)
	}

	return mapEsDoc(&getRes.DocSource), nil
}

// DocCount returns the number of documents in the index.
func (i *ElasticsearchIndexer) DocCount() (uint64, error) {
	res, err := i.es.Count(i.es.Count.WithIndex(i.indexName))
	if err != nil {
		return 0, fmt.Errorf("doc count: %w", err)
	}

	var countRes esCountRes
	if err := unmarshalResponse(res, &countRes); err != nil {
		return 0, fmt.Errorf("doc count: %w", err)
	}

	return countRes.Count, nil
}

// Search the index for a particular query and return up to limit hits.
func (i *ElasticsearchIndexer) Search(q index.Query, limit int) (*index.Hits, error) {
	if len(q.Fields) == 0 {
		return nil, fmt.Errorf("search: %w", index.ErrUnknownField)
	}

	fields := make([]string, 0, len(q.Fields))
	for _, f := range q.Fields {
		name := f.Field
		if q.Ranking == index.RankingTFIDF && f.Field != index.FieldBibliographic {
			name += "." + tfidfSubField
		}

		boost := f.Boost
		if boost <= 0 {
			boost = 1
		}
		fields = append(fields, name+"^"+strconv.FormatFloat(boost, 'f', -1, 64))
	}

	pageSize := maxResultWindow
	if limit > 0 && limit < pageSize {
		pageSize = limit
	}

	// Results beyond the result window are fetched page by page, resuming
	// after the sort values of the last hit seen.
	var (
		hits  = &index.Hits{}
		after []interface{}
	)
	for {
		searchRes, err := i.runSearch(searchBody(q.Expression, fields, pageSize, after))
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		hits.Total = searchRes.Hits.Total.Count

		for _, h := range searchRes.Hits.HitList {
			instanceID, err := strconv.Atoi(h.ID)
			if err != nil {
				return nil, fmt.Errorf("search: malformed document key %q: %w", h.ID, err)
			}

			hits.Items = append(hits.Items, index.Hit{
				InstanceID: instanceID,
				Score:      h.Score,
				Title:      h.DocSource.Title,
			})
		}

		page := searchRes.Hits.HitList
		if len(page) < pageSize || (limit > 0 && len(hits.Items) >= limit) {
			break
		}

		after = page[len(page)-1].Sort
		if limit > 0 && limit-len(hits.Items) < pageSize {
			pageSize = limit - len(hits.Items)
		}
	}

	return hits, nil
}

// searchBody builds a multi_match request over fields. Ties in score are
// broken by instance id so that search_after can resume a result list.
func searchBody(expression string, fields []string, size int, after []interface{}) map[string]interface{} {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"type":     "most_fields",
				"operator": "or",
				"query":    expression,
				"fields":   fields,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"_score": "desc"},
			map[string]interface{}{index.FieldInstanceID: "asc"},
		},
		"_source":          []string{index.FieldTitle},
		"track_total_hits": true,
		"size":             size,
	}
	if after != nil {
		body["search_after"] = after
	}

	return body
}

func (i *ElasticsearchIndexer) deleteIndex() error {
	res, err := i.es.Indices.Delete(
		[]string{i.indexName},
		i.es.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("failed to delete ES index: %w", err)
	}

	if err := unmarshalResponse(res, nil); err != nil {
		return fmt.Errorf("failed to delete ES index: %w", err)
	}

	i.logger.Info("deleted previous index")

	return nil
}

func (i *ElasticsearchIndexer) createIndex(analyzer string, stopWords []string) error {
	settings, err := indexSettings(analyzer, stopWords)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(settings); err != nil {
		return fmt.Errorf("failed to create ES index: %w", err)
	}

	res, err := i.es.Indices.Create(i.indexName, i.es.Indices.Create.WithBody(&buf))
	if err != nil {
		return fmt.Errorf("failed to create ES index: %w", err)
	}

	err = unmarshalResponse(res, nil)

	var esErr esError
	if errors.As(err, &esErr) && esErr.Type == "resource_already_exists_exception" {
		i.logger.Info("appending to existing index")
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to create ES index: %w", err)
	}

	i.logger.Info("created new index")

	return nil
}

// indexSettings builds the index body: analysis chain, the tf-idf
// similarity and the field mappings.
func indexSettings(analyzer string, stopWords []string) (map[string]interface{}, error) {
	var analyzerName string
	analysis := map[string]interface{}{}

	switch analyzer {
	case "", "standard":
		analyzerName = "standard"
	case "english":
		analyzerName = "english"
	case "custom":
		analyzerName = "cranfield"

		var stop interface{} = "_english_"
		if len(stopWords) > 0 {
			stop = stopWords
		}

		analysis["filter"] = map[string]interface{}{
			"cranfield_stop": map[string]interface{}{
				"type":      "stop",
				"stopwords": stop,
			},
			"cranfield_possessive": map[string]interface{}{
				"type":     "stemmer",
				"language": "possessive_english",
			},
		}
		analysis["analyzer"] = map[string]interface{}{
			"cranfield": map[string]interface{}{
				"type":      "custom",
				"tokenizer": "standard",
				"filter": []string{
					"lowercase", "cranfield_possessive", "cranfield_stop", "porter_stem",
				},
			},
		}
	default:
		return nil, fmt.Errorf("unsupported analyzer %q", analyzer)
	}

	textField := map[string]interface{}{
		"type":     "text",
		"analyzer": analyzerName,
		"fields": map[string]interface{}{
			tfidfSubField: map[string]interface{}{
				"type":       "text",
				"analyzer":   analyzerName,
				"similarity": "scripted_tfidf",
			},
		},
	}

	settings := map[string]interface{}{
		"number_of_shards": 1,
		"similarity": map[string]interface{}{
			"scripted_tfidf": map[string]interface{}{
				"type":   "scripted",
				"script": map[string]interface{}{"source": tfidfScript},
			},
		},
	}
	if len(analysis) > 0 {
		settings["analysis"] = analysis
	}

	return map[string]interface{}{
		"settings": settings,
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				index.FieldInstanceID:    map[string]interface{}{"type": "integer"},
				index.FieldTitle:         textField,
				index.FieldAuthor:        textField,
				index.FieldBibliographic: map[string]interface{}{"type": "keyword"},
				index.FieldWords:         textField,
			},
		},
	}, nil
}

func unmarshalResponse(res *esapi.Response, to interface{}) error {
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		var errRes esErrorRes

		if err := json.NewDecoder(res.Body).Decode(&errRes); err != nil {
			return err
		}

		return errRes.Error
	}

	if to == nil {
		return nil
	}

	return json.NewDecoder(res.Body).Decode(to)
}

func (i *ElasticsearchIndexer) runSearch(searchQuery map[string]interface{}) (*esSearchRes, error) {
	var buf bytes.Buffer

	if err := json.NewEncoder(&buf).Encode(searchQuery); err != nil {
		return nil, err
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(context.Background()),
		i.es.Search.WithIndex(i.indexName),
		i.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, err
	}

	var esRes esSearchRes
	if err = unmarshalResponse(res, &esRes); err != nil {
		return nil, err
	}

	return &esRes, nil
}

func encodeDoc(doc *index.Document) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(makeEsDoc(doc)); err != nil {
		return nil, err
	}

	return &buf, nil
}

func mapEsDoc(d *esDoc) *index.Document {
	return &index.Document{
		InstanceID:    d.InstanceID,
		Title:         d.Title,
		Author:        d.Author,
		Bibliographic: d.Bibliographic,
		Words:         d.Words,
	}
}

func makeEsDoc(d *index.Document) esDoc {
	return esDoc{
		InstanceID:    d.InstanceID,
		Title:         d.Title,
		Author:        d.Author,
		Bibliographic: d.Bibliographic,
		Words:         d.Words,
	}
}
