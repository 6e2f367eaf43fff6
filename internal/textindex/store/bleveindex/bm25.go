package bleveindex

import (
	"fmt"
	"math"
	"sort"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/search"

	"github.com/mycok/cranfield/internal/textindex/index"
)

// Okapi BM25 parameters, matching the defaults of common engines.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type fieldStats struct {
	docCount  float64
	avgLength float64
}

// bm25Scorer re-scores bleve matches with Okapi BM25. Term frequencies come
// from the match term locations, document frequencies from the field
// dictionaries and document lengths from the stored length fields.
type bm25Scorer struct {
	idx    *BleveIndexer
	fields []index.FieldBoost
	stats  map[string]fieldStats
	idf    map[string]float64
}

func (i *BleveIndexer) newBM25Scorer(q index.Query) (*bm25Scorer, error) {
	s := &bm25Scorer{
		idx:    i,
		fields: q.Fields,
		stats:  make(map[string]fieldStats, len(q.Fields)),
		idf:    make(map[string]float64),
	}

	for _, f := range q.Fields {
		st, err := i.fieldStats(f.Field)
		if err != nil {
			return nil, err
		}
		s.stats[f.Field] = st
	}

	return s, nil
}

func (s *bm25Scorer) score(match *search.DocumentMatch) (float64, error) {
	var total float64

	for _, f := range s.fields {
		termLocations := match.Locations[f.Field]
		if len(termLocations) == 0 {
			continue
		}

		st := s.stats[f.Field]
		docLength := 1.0
		if hasLength(f.Field) {
			docLength = numericField(match, lengthField(f.Field))
		}

		norm := 1.0
		if st.avgLength > 0 {
			norm = 1 - bm25B + bm25B*docLength/st.avgLength
		}

		boost := f.Boost
		if boost <= 0 {
			boost = 1
		}

		// Sum in a fixed order so equal inputs give identical scores.
		terms := make([]string, 0, len(termLocations))
		for term := range termLocations {
			terms = append(terms, term)
		}
		sort.Strings(terms)

		for _, term := range terms {
			idf, err := s.inverseDocFrequency(f.Field, term, st.docCount)
			if err != nil {
				return 0, err
			}

			tf := float64(len(termLocations[term]))
			total += boost * idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
		}
	}

	return total, nil
}

func (s *bm25Scorer) inverseDocFrequency(field, term string, docCount float64) (float64, error) {
	key := field + "\x00" + term
	if idf, ok := s.idf[key]; ok {
		return idf, nil
	}

	df, err := s.idx.docFrequency(field, term)
	if err != nil {
		return 0, err
	}

	n := float64(df)
	idf := math.Log(1 + (docCount-n+0.5)/(n+0.5))
	s.idf[key] = idf

	return idf, nil
}

// fieldStats returns the document count and average analyzed length of
// field. Results are cached until the next write.
func (i *BleveIndexer) fieldStats(field string) (fieldStats, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if st, ok := i.stats[field]; ok {
		return st, nil
	}

	count, err := i.idx.DocCount()
	if err != nil {
		return fieldStats{}, fmt.Errorf("field stats: %w", err)
	}

	st := fieldStats{docCount: float64(count), avgLength: 1}

	if hasLength(field) && count > 0 {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
		req.Fields = []string{lengthField(field)}

		sr, err := i.idx.Search(req)
		if err != nil {
			return fieldStats{}, fmt.Errorf("field stats: %w", err)
		}

		var sum float64
		for _, match := range sr.Hits {
			sum += numericField(match, lengthField(field))
		}
		st.avgLength = sum / float64(count)
	}

	i.stats[field] = st

	return st, nil
}

func (i *BleveIndexer) docFrequency(field, term string) (uint64, error) {
	dict, err := i.idx.FieldDictRange(field, []byte(term), []byte(term))
	if err != nil {
		return 0, fmt.Errorf("field dictionary: %w", err)
	}
	defer func() { _ = dict.Close() }()

	for {
		entry, err := dict.Next()
		if err != nil {
			return 0, fmt.Errorf("field dictionary: %w", err)
		}
		if entry == nil {
			return 0, nil
		}
		if entry.Term == term {
			return entry.Count, nil
		}
	}
}
