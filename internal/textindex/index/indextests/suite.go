package indextests

import (
	"errors"
	"fmt"

	"github.com/mycok/cranfield/internal/textindex/index"

	check "gopkg.in/check.v1"
)

// BaseSuite defines a set of re-usable indexer related tests that can
// be executed against any concrete type that implements the index.Indexer interface.
type BaseSuite struct {
	idx index.Indexer
}

// SetIndexer configures the test-suite to run all tests against an instance
// of index.Indexer.
func (s *BaseSuite) SetIndexer(idx index.Indexer) {
	s.idx = idx
}

// TestAddDocument verifies the insert logic for new and duplicate documents.
func (s *BaseSuite) TestAddDocument(c *check.C) {
	doc := &index.Document{
		InstanceID:    1,
		Title:         "experimental investigation of the aerodynamics of a wing",
		Author:        "brenckman,m.",
		Bibliographic: "j. ae. scs. 25, 1958, 324.",
		Words:         "experimental investigation of the aerodynamics of a wing in a slipstream",
	}

	err := s.idx.Add(doc)
	c.Assert(err, check.IsNil)

	err = s.idx.Add(doc)
	c.Assert(errors.Is(err, index.ErrAlreadyIndexed), check.Equals, true)

	// Insert a document without an ID.
	err = s.idx.Add(&index.Document{Words: "orphaned text"})
	c.Assert(errors.Is(err, index.ErrMissingInstanceID), check.Equals, true)

	count, err := s.idx.DocCount()
	c.Assert(err, check.IsNil)
	c.Assert(count, check.Equals, uint64(1))
}

// TestUpdateDocument verifies that updates replace documents by key and
// insert unknown ones.
func (s *BaseSuite) TestUpdateDocument(c *check.C) {
	doc := &index.Document{InstanceID: 3, Title: "original title", Words: "original body"}
	c.Assert(s.idx.Add(doc), check.IsNil)

	updated := &index.Document{InstanceID: 3, Title: "updated title", Words: "updated body"}
	c.Assert(s.idx.Update(updated.Key(), updated), check.IsNil)

	got, err := s.idx.FindByID(3)
	c.Assert(err, check.IsNil)
	c.Assert(got, check.DeepEquals, updated)

	inserted := &index.Document{InstanceID: 4, Words: "brand new body"}
	c.Assert(s.idx.Update(inserted.Key(), inserted), check.IsNil)

	count, err := s.idx.DocCount()
	c.Assert(err, check.IsNil)
	c.Assert(count, check.Equals, uint64(2))

	err = s.idx.Update("0", &index.Document{Words: "orphaned text"})
	c.Assert(errors.Is(err, index.ErrMissingInstanceID), check.Equals, true)
}

// TestFindByID verifies the document lookup logic.
func (s *BaseSuite) TestFindByID(c *check.C) {
	doc := &index.Document{
		InstanceID:    12,
		Title:         "simple shear flow past a flat plate",
		Author:        "ting-yili",
		Bibliographic: "department of aeronautical engineering",
		Words:         "in the study of high-speed viscous flow past a two-dimensional body",
	}
	c.Assert(s.idx.Add(doc), check.IsNil)

	got, err := s.idx.FindByID(12)
	c.Assert(err, check.IsNil)
	c.Assert(got, check.DeepEquals, doc, check.Commentf("document returned by FindByID does not match the inserted document"))

	_, err = s.idx.FindByID(13)
	c.Assert(errors.Is(err, index.ErrNotFound), check.Equals, true)
}

// TestSearchOrdering verifies that hits come back in descending score order
// and that limits only truncate the collected hits.
func (s *BaseSuite) TestSearchOrdering(c *check.C) {
	s.indexCorpus(c)

	for _, ranking := range []index.Ranking{index.RankingTFIDF, index.RankingBM25} {
		q, err := index.ParseQuery(index.DefaultQueryFields, "supersonic")
		c.Assert(err, check.IsNil)
		q.Ranking = ranking

		hits, err := s.idx.Search(q, 0)
		c.Assert(err, check.IsNil)
		c.Assert(hits.Total, check.Equals, uint64(10), check.Commentf("ranking %s", ranking))
		c.Assert(hits.Items, check.HasLen, 10)

		for i := 1; i < len(hits.Items); i++ {
			c.Assert(hits.Items[i-1].Score >= hits.Items[i].Score, check.Equals, true)
		}

		// The document mentioning the term most often in the shortest
		// body ranks first.
		c.Assert(hits.Items[0].InstanceID, check.Equals, 1)
		c.Assert(hits.Items[0].Title, check.Equals, "doc 1")

		limited, err := s.idx.Search(q, 3)
		c.Assert(err, check.IsNil)
		c.Assert(limited.Total, check.Equals, uint64(10))
		c.Assert(limited.Items, check.DeepEquals, hits.Items[:3])
	}
}

// TestSearchFields verifies that only the requested fields are matched.
func (s *BaseSuite) TestSearchFields(c *check.C) {
	c.Assert(s.idx.Add(&index.Document{InstanceID: 1, Title: "heat transfer", Words: "cylinder"}), check.IsNil)
	c.Assert(s.idx.Add(&index.Document{InstanceID: 2, Title: "cylinder", Words: "heat transfer"}), check.IsNil)

	q, err := index.ParseQuery([]string{index.FieldTitle}, "heat")
	c.Assert(err, check.IsNil)

	hits, err := s.idx.Search(q, 10)
	c.Assert(err, check.IsNil)
	c.Assert(hits.Total, check.Equals, uint64(1))
	c.Assert(hits.Items[0].InstanceID, check.Equals, 1)

	q, err = index.ParseQuery(index.DefaultQueryFields, "heat")
	c.Assert(err, check.IsNil)

	hits, err = s.idx.Search(q, 10)
	c.Assert(err, check.IsNil)
	c.Assert(hits.Total, check.Equals, uint64(2))
}

// TestSearchNoMatches verifies searches without results.
func (s *BaseSuite) TestSearchNoMatches(c *check.C) {
	s.indexCorpus(c)

	q, err := index.ParseQuery(index.DefaultQueryFields, "hypersonic")
	c.Assert(err, check.IsNil)

	hits, err := s.idx.Search(q, 10)
	c.Assert(err, check.IsNil)
	c.Assert(hits.Total, check.Equals, uint64(0))
	c.Assert(hits.Items, check.HasLen, 0)
}

// indexCorpus adds 20 documents. Odd-numbered documents mention
// "supersonic" with decreasing frequency and increasing length.
func (s *BaseSuite) indexCorpus(c *check.C) {
	for i := 1; i <= 20; i++ {
		doc := &index.Document{
			InstanceID: i,
			Title:      fmt.Sprintf("doc %d", i),
			Words:      "boundary layer flow",
		}

		if i%2 == 1 {
			repeat := 10 - i/2
			for j := 0; j < repeat; j++ {
				doc.Words += " supersonic"
			}
			for j := 0; j < i; j++ {
				doc.Words += " wing"
			}
		}

		c.Assert(s.idx.Add(doc), check.IsNil)
	}
}
