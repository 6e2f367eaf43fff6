package index

import (
	"fmt"
	"strings"
)

// Ranking selects the function used to score matching documents.
type Ranking uint8

const (
	// RankingTFIDF scores documents with classic tf-idf weighting.
	RankingTFIDF Ranking = iota

	// RankingBM25 scores documents with Okapi BM25.
	RankingBM25
)

func (r Ranking) String() string {
	if r == RankingBM25 {
		return "bm25"
	}

	return "tf-idf"
}

// FieldBoost pairs a searchable field with its query weight.
type FieldBoost struct {
	Field string
	Boost float64
}

// Query defines properties for a search query.
type Query struct {
	// The fields to match the expression against. A document matches if
	// any term of the expression occurs in any of the fields.
	Fields []FieldBoost

	// Value to search for. It is analyzed with each field's analyzer
	// and never interpreted as query syntax.
	Expression string

	// The ranking function to score matches with.
	Ranking Ranking
}

// String renders the query as field:expression clauses.
func (q Query) String() string {
	clauses := make([]string, 0, len(q.Fields))
	for _, f := range q.Fields {
		clause := fmt.Sprintf("%s:(%s)", f.Field, q.Expression)
		if f.Boost != 0 && f.Boost != 1 {
			clause = fmt.Sprintf("%s^%g", clause, f.Boost)
		}
		clauses = append(clauses, clause)
	}

	return strings.Join(clauses, " OR ")
}

var searchableFields = map[string]struct{}{
	FieldTitle:         {},
	FieldAuthor:        {},
	FieldBibliographic: {},
	FieldWords:         {},
}

// ParseQuery builds a query matching text against each of fieldNames with
// OR as the combining operator. Every field gets a boost of 1.
func ParseQuery(fieldNames []string, text string) (Query, error) {
	fields := make([]FieldBoost, 0, len(fieldNames))
	for _, name := range fieldNames {
		fields = append(fields, FieldBoost{Field: name, Boost: 1})
	}

	return ParseWeightedQuery(fields, text)
}

// ParseWeightedQuery works like ParseQuery but uses per-field boosts.
func ParseWeightedQuery(fields []FieldBoost, text string) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, ErrEmptyQuery
	}

	if len(fields) == 0 {
		return Query{}, fmt.Errorf("parse query: no fields: %w", ErrUnknownField)
	}

	for _, f := range fields {
		if _, ok := searchableFields[f.Field]; !ok {
			return Query{}, fmt.Errorf("parse query: %q: %w", f.Field, ErrUnknownField)
		}
	}

	return Query{Fields: fields, Expression: text}, nil
}
