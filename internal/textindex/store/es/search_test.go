package es

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sirupsen/logrus"
	check "gopkg.in/check.v1"

	"github.com/mycok/cranfield/internal/textindex/index"
)

var _ = check.Suite(new(SearchPagingTestSuite))

// SearchPagingTestSuite runs searches against canned search responses.
type SearchPagingTestSuite struct{}

// pagedTransport answers the n-th search request with the n-th page and
// records every request body.
type pagedTransport struct {
	total  int
	pages  [][]esHitWrapper
	bodies []map[string]interface{}
}

func (t *pagedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body map[string]interface{}
	if req.Body != nil {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return nil, err
		}
	}
	t.bodies = append(t.bodies, body)

	var page []esHitWrapper
	if n := len(t.bodies) - 1; n < len(t.pages) {
		page = t.pages[n]
	}

	data, err := json.Marshal(esSearchRes{Hits: esSearchResHits{
		Total:   esTotal{Count: uint64(t.total)},
		HitList: page,
	}})
	if err != nil {
		return nil, err
	}

	return &http.Response{
		StatusCode: http.StatusOK,
		Header: http.Header{
			"Content-Type":      []string{"application/json"},
			"X-Elastic-Product": []string{"Elasticsearch"},
		},
		Body:    io.NopCloser(bytes.NewReader(data)),
		Request: req,
	}, nil
}

func makeHits(from, n int) []esHitWrapper {
	hits := make([]esHitWrapper, 0, n)
	for id := from; id < from+n; id++ {
		hits = append(hits, esHitWrapper{
			ID:    strconv.Itoa(id),
			Score: 1,
			Sort:  []interface{}{1, id},
		})
	}

	return hits
}

func (s *SearchPagingTestSuite) indexer(c *check.C, t *pagedTransport) *ElasticsearchIndexer {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Transport: t})
	c.Assert(err, check.IsNil)

	return &ElasticsearchIndexer{
		es:        client,
		indexName: "cranfield-test",
		refresh:   "false",
		logger:    logrus.NewEntry(logrus.New()),
	}
}

func (s *SearchPagingTestSuite) TestUnlimitedSearchPagesPastResultWindow(c *check.C) {
	t := &pagedTransport{
		total: maxResultWindow + 3,
		pages: [][]esHitWrapper{makeHits(1, maxResultWindow), makeHits(maxResultWindow+1, 3)},
	}

	q, err := index.ParseQuery(index.DefaultQueryFields, "flow")
	c.Assert(err, check.IsNil)

	hits, err := s.indexer(c, t).Search(q, 0)
	c.Assert(err, check.IsNil)
	c.Assert(hits.Total, check.Equals, uint64(maxResultWindow+3))
	c.Assert(hits.Items, check.HasLen, maxResultWindow+3)
	c.Assert(hits.Items[maxResultWindow+2].InstanceID, check.Equals, maxResultWindow+3)

	c.Assert(t.bodies, check.HasLen, 2)
	_, first := t.bodies[0]["search_after"]
	c.Assert(first, check.Equals, false)
	c.Assert(t.bodies[1]["search_after"], check.DeepEquals, []interface{}{float64(1), float64(maxResultWindow)})
}

func (s *SearchPagingTestSuite) TestLimitedSearchIsSingleRequest(c *check.C) {
	t := &pagedTransport{total: 40, pages: [][]esHitWrapper{makeHits(1, 5)}}

	q, err := index.ParseQuery(index.DefaultQueryFields, "flow")
	c.Assert(err, check.IsNil)

	hits, err := s.indexer(c, t).Search(q, 5)
	c.Assert(err, check.IsNil)
	c.Assert(hits.Total, check.Equals, uint64(40))
	c.Assert(hits.Items, check.HasLen, 5)
	c.Assert(t.bodies, check.HasLen, 1)
	c.Assert(t.bodies[0]["size"], check.Equals, float64(5))
}
