package bleveindex

import (
	"fmt"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/analysis/lang/en"
	"github.com/blevesearch/bleve/analysis/token/lowercase"
	"github.com/blevesearch/bleve/analysis/token/porter"
	"github.com/blevesearch/bleve/analysis/token/stop"
	"github.com/blevesearch/bleve/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/analysis/tokenmap"
	"github.com/blevesearch/bleve/mapping"

	"github.com/mycok/cranfield/internal/textindex/index"
)

// Supported analyzers.
const (
	// AnalyzerStandard tokenizes on unicode word boundaries, lower-cases
	// and removes English stop words.
	AnalyzerStandard = "standard"

	// AnalyzerEnglish additionally strips possessives and stems tokens.
	AnalyzerEnglish = "english"

	// AnalyzerCustom is AnalyzerEnglish with a configurable stop word list.
	AnalyzerCustom = "custom"
)

const (
	customAnalyzerName   = "cranfield"
	customStopMapName    = "cranfield_stop_words"
	customStopFilterName = "cranfield_stop"
)

// Suffix of the numeric fields holding the analyzed length of a text field.
const lengthSuffix = "Length"

// rankedFields lists the text fields whose length is recorded for BM25.
var rankedFields = []string{index.FieldTitle, index.FieldAuthor, index.FieldWords}

type bleveDoc struct {
	InstanceID    int
	Title         string
	Author        string
	Bibliographic string
	Words         string

	TitleLength  int
	AuthorLength int
	WordsLength  int
}

func lengthField(field string) string {
	return field + lengthSuffix
}

func newIndexMapping(analyzer string, stopWords []string) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	var analyzerName string
	switch analyzer {
	case "", AnalyzerStandard:
		analyzerName = standard.Name
	case AnalyzerEnglish:
		analyzerName = en.AnalyzerName
	case AnalyzerCustom:
		if err := addCustomAnalyzer(im, stopWords); err != nil {
			return nil, err
		}
		analyzerName = customAnalyzerName
	default:
		return nil, fmt.Errorf("unsupported analyzer %q", analyzer)
	}
	im.DefaultAnalyzer = analyzerName

	textField := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = analyzerName
		fm.Store = true
		fm.IncludeTermVectors = true

		return fm
	}

	exactField := bleve.NewTextFieldMapping()
	exactField.Analyzer = keyword.Name
	exactField.Store = true
	exactField.IncludeInAll = false

	numericField := func() *mapping.FieldMapping {
		fm := bleve.NewNumericFieldMapping()
		fm.Store = true
		fm.IncludeInAll = false

		return fm
	}

	dm := bleve.NewDocumentStaticMapping()
	dm.AddFieldMappingsAt(index.FieldInstanceID, numericField())
	dm.AddFieldMappingsAt(index.FieldTitle, textField())
	dm.AddFieldMappingsAt(index.FieldAuthor, textField())
	dm.AddFieldMappingsAt(index.FieldBibliographic, exactField)
	dm.AddFieldMappingsAt(index.FieldWords, textField())
	for _, f := range rankedFields {
		dm.AddFieldMappingsAt(lengthField(f), numericField())
	}

	im.DefaultMapping = dm

	return im, nil
}

// addCustomAnalyzer registers an English analyzer whose stop word list can
// be replaced. Without stop words the built-in English list is used.
func addCustomAnalyzer(im *mapping.IndexMappingImpl, stopWords []string) error {
	stopFilter := en.StopName

	if len(stopWords) > 0 {
		tokens := make([]interface{}, 0, len(stopWords))
		for _, w := range stopWords {
			tokens = append(tokens, w)
		}

		err := im.AddCustomTokenMap(customStopMapName, map[string]interface{}{
			"type":   tokenmap.Name,
			"tokens": tokens,
		})
		if err != nil {
			return fmt.Errorf("stop word map: %w", err)
		}

		err = im.AddCustomTokenFilter(customStopFilterName, map[string]interface{}{
			"type":           stop.Name,
			"stop_token_map": customStopMapName,
		})
		if err != nil {
			return fmt.Errorf("stop word filter: %w", err)
		}
		stopFilter = customStopFilterName
	}

	err := im.AddCustomAnalyzer(customAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
			en.PossessiveName,
			stopFilter,
			porter.Name,
		},
	})
	if err != nil {
		return fmt.Errorf("custom analyzer: %w", err)
	}

	return nil
}
