package indexing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/testutil"
	check "gopkg.in/check.v1"

	"github.com/mycok/cranfield/internal/cranfield"
	"github.com/mycok/cranfield/internal/indexing/mocks"
	"github.com/mycok/cranfield/internal/metrics"
	"github.com/mycok/cranfield/internal/textindex/index"
	"github.com/mycok/cranfield/internal/textindex/store/bleveindex"
)

var _ = check.Suite(new(MaintainerTestSuite))

type MaintainerTestSuite struct{}

// Register gocheck with the go test runner.
func Test(t *testing.T) {
	check.TestingT(t)
}

const twoDocs = `.I 1
.T
first title
.A
someone
.B
j. ae. sc. 25, 1958
.W
first body
.I 2
.T
second title
.A
.B
.W
second body
`

func (s *MaintainerTestSuite) TestConfigValidation(c *check.C) {
	_, err := New(Config{Mode: index.Mode(9)})
	c.Assert(err, check.ErrorMatches, "(?s).*index API not provided.*invalid indexing mode.*")
}

func (s *MaintainerTestSuite) TestCreateFreshAddsEveryDocument(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	api := mocks.NewMockIndexAPI(ctrl)
	gomock.InOrder(
		api.EXPECT().Add(docMatcher{id: 1, title: "first title", biblio: "j. ae. sc. 25, 1958", words: "first body"}).Return(nil),
		api.EXPECT().Add(docMatcher{id: 2, title: "second title", words: "second body"}).Return(nil),
	)

	m := metrics.New()
	mt, err := New(Config{IndexAPI: api, Mode: index.CreateFresh, Metrics: m})
	c.Assert(err, check.IsNil)

	stats, err := mt.Run(context.TODO(), cranfield.NewParser(strings.NewReader(twoDocs), nil))
	c.Assert(err, check.IsNil)
	c.Assert(stats, check.DeepEquals, Stats{Indexed: 2})
	c.Assert(testutil.ToFloat64(m.DocsIndexedTotal.WithLabelValues("add")), check.Equals, 2.0)
}

func (s *MaintainerTestSuite) TestCreateOrAppendReplacesByKey(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	api := mocks.NewMockIndexAPI(ctrl)
	gomock.InOrder(
		api.EXPECT().Update("1", docMatcher{id: 1, title: "first title", biblio: "j. ae. sc. 25, 1958", words: "first body"}).Return(nil),
		api.EXPECT().Update("2", docMatcher{id: 2, title: "second title", words: "second body"}).Return(nil),
	)

	mt, err := New(Config{IndexAPI: api, Mode: index.CreateOrAppend})
	c.Assert(err, check.IsNil)
	c.Assert(mt.Mode(), check.Equals, index.CreateOrAppend)

	stats, err := mt.Run(context.TODO(), cranfield.NewParser(strings.NewReader(twoDocs), nil))
	c.Assert(err, check.IsNil)
	c.Assert(stats.Indexed, check.Equals, 2)
}

func (s *MaintainerTestSuite) TestFailedDocumentIsSkipped(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	writeErr := errors.New("disk full")
	api := mocks.NewMockIndexAPI(ctrl)
	gomock.InOrder(
		api.EXPECT().Add(gomock.Any()).Return(writeErr),
		api.EXPECT().Add(gomock.Any()).Return(nil),
	)

	m := metrics.New()
	mt, err := New(Config{IndexAPI: api, Mode: index.CreateFresh, Metrics: m})
	c.Assert(err, check.IsNil)

	stats, err := mt.Run(context.TODO(), cranfield.NewParser(strings.NewReader(twoDocs), nil))
	c.Assert(stats, check.DeepEquals, Stats{Indexed: 1, Failed: 1})
	c.Assert(errors.Is(err, writeErr), check.Equals, true)
	c.Assert(testutil.ToFloat64(m.DocsFailedTotal), check.Equals, 1.0)

	merr, ok := err.(*multierror.Error)
	c.Assert(ok, check.Equals, true)
	c.Assert(merr.Errors, check.HasLen, 1)
}

func (s *MaintainerTestSuite) TestAbortOnError(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	api := mocks.NewMockIndexAPI(ctrl)
	api.EXPECT().Add(gomock.Any()).Return(index.ErrAlreadyIndexed).Times(1)

	mt, err := New(Config{IndexAPI: api, Mode: index.CreateFresh, AbortOnError: true})
	c.Assert(err, check.IsNil)

	stats, err := mt.Run(context.TODO(), cranfield.NewParser(strings.NewReader(twoDocs), nil))
	c.Assert(errors.Is(err, index.ErrAlreadyIndexed), check.Equals, true)
	c.Assert(stats, check.DeepEquals, Stats{Failed: 1})
}

func (s *MaintainerTestSuite) TestOrphanTextIsRejected(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	api := mocks.NewMockIndexAPI(ctrl)
	api.EXPECT().Update("1", gomock.Any()).Return(nil)

	mt, err := New(Config{IndexAPI: api, Mode: index.CreateOrAppend})
	c.Assert(err, check.IsNil)

	input := "stray text\n.I 1\n.T\ntitle\n.A\n.B\n.W\nbody\n"
	stats, err := mt.Run(context.TODO(), cranfield.NewParser(strings.NewReader(input), nil))
	c.Assert(err, check.IsNil)
	c.Assert(stats, check.DeepEquals, Stats{Indexed: 1, Rejected: 1})

	err = mt.IndexDocument(&cranfield.Document{Title: "stray"})
	c.Assert(errors.Is(err, index.ErrMissingInstanceID), check.Equals, true)
}

func (s *MaintainerTestSuite) TestCancelledContext(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	mt, err := New(Config{IndexAPI: mocks.NewMockIndexAPI(ctrl), Mode: index.CreateFresh})
	c.Assert(err, check.IsNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = mt.Run(ctx, cranfield.NewParser(strings.NewReader(twoDocs), nil))
	c.Assert(errors.Is(err, context.Canceled), check.Equals, true)
}

func (s *MaintainerTestSuite) TestAppendTwiceKeepsOneCopy(c *check.C) {
	idx, err := bleveindex.NewInMemoryBleveIndexer(bleveindex.AnalyzerStandard)
	c.Assert(err, check.IsNil)
	defer func() { _ = idx.Close() }()

	mt, err := New(Config{IndexAPI: idx, Mode: index.CreateOrAppend})
	c.Assert(err, check.IsNil)

	for i := 0; i < 2; i++ {
		_, err = mt.Run(context.TODO(), cranfield.NewParser(strings.NewReader(twoDocs), nil))
		c.Assert(err, check.IsNil)
	}

	count, err := idx.DocCount()
	c.Assert(err, check.IsNil)
	c.Assert(count, check.Equals, uint64(2))
}

func (s *MaintainerTestSuite) TestFreshAddTwiceFails(c *check.C) {
	idx, err := bleveindex.NewInMemoryBleveIndexer(bleveindex.AnalyzerStandard)
	c.Assert(err, check.IsNil)
	defer func() { _ = idx.Close() }()

	mt, err := New(Config{IndexAPI: idx, Mode: index.CreateFresh})
	c.Assert(err, check.IsNil)

	doc := &cranfield.Document{InstanceID: 7, Title: "t"}
	c.Assert(mt.IndexDocument(doc), check.IsNil)
	c.Assert(errors.Is(mt.IndexDocument(doc), index.ErrAlreadyIndexed), check.Equals, true)
}

// docMatcher implements gomock.Matcher. It compares the fields of the
// document handed to the mocked index with the expected values.
type docMatcher struct {
	id     int
	title  string
	biblio string
	words  string
}

func (m docMatcher) Matches(x interface{}) bool {
	doc, ok := x.(*index.Document)
	if !ok {
		return false
	}

	return m.id == doc.InstanceID &&
		m.title == doc.Title &&
		m.biblio == doc.Bibliographic &&
		m.words == doc.Words
}

func (m docMatcher) String() string {
	return "matches document " + index.KeyFor(m.id)
}
