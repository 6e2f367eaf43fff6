package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	check "gopkg.in/check.v1"

	"github.com/mycok/cranfield/internal/metrics"
	"github.com/mycok/cranfield/internal/search/mocks"
	"github.com/mycok/cranfield/internal/textindex/index"
)

var _ = check.Suite(new(BatchTestSuite))
var _ = check.Suite(new(InteractiveTestSuite))

// Register gocheck with the go test runner.
func Test(t *testing.T) {
	check.TestingT(t)
}

type BatchTestSuite struct{}

const twoQueries = `.I 001
.W
what similarity laws must be obeyed when constructing
aeroelastic models of heated high speed aircraft .
.I 002
.W
what are the structural and aeroelastic problems associated with flight
of high speed aircraft .
`

func (s *BatchTestSuite) TestConfigValidation(c *check.C) {
	_, err := New(Config{PageSize: 0, NumHits: -1, Repeat: -2})
	c.Assert(errors.Is(err, ErrInvalidPageSize), check.Equals, true)
	c.Assert(err, check.ErrorMatches, "(?s).*searcher not provided.*invalid number of hits.*invalid repeat count.*")
}

func (s *BatchTestSuite) TestRunLines(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	searcher := mocks.NewMockSearcher(ctrl)
	gomock.InOrder(
		searcher.EXPECT().Search(
			queryMatcher{expr: "what similarity laws must be obeyed when constructing aeroelastic models of heated high speed aircraft .", ranking: index.RankingBM25},
			20,
		).Return(&index.Hits{Total: 2, Items: []index.Hit{{InstanceID: 5, Score: 0.9}, {InstanceID: 2, Score: 0.5}}}, nil),
		searcher.EXPECT().Search(
			queryMatcher{expr: "what are the structural and aeroelastic problems associated with flight of high speed aircraft .", ranking: index.RankingBM25},
			20,
		).Return(&index.Hits{Total: 1, Items: []index.Hit{{InstanceID: 7, Score: 0.25}}}, nil),
	)

	var console, results bytes.Buffer
	m := metrics.New()
	sess, err := New(Config{
		Searcher: searcher,
		Ranking:  index.RankingBM25,
		PageSize: 10,
		Out:      &console,
		Metrics:  m,
	})
	c.Assert(err, check.IsNil)

	stats, err := sess.RunBatch(context.TODO(), strings.NewReader(twoQueries), &results)
	c.Assert(err, check.IsNil)
	c.Assert(stats, check.DeepEquals, BatchStats{Queries: 2, Lines: 3})

	c.Assert(results.String(), check.Equals,
		"1 Q0 5 1 0.9 STANDARD\n"+
			"1 Q0 2 2 0.5 STANDARD\n"+
			"2 Q0 7 1 0.25 STANDARD\n")
	c.Assert(console.String(), check.Matches, "(?s)Searching for: Words:\\(what similarity.*1 Q0 5 1 0.9 STANDARD\n.*")
	c.Assert(testutil.ToFloat64(m.QueriesTotal.WithLabelValues("batch", "bm25")), check.Equals, 2.0)
}

func (s *BatchTestSuite) TestEmptyQueryKeepsNumbering(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	searcher := mocks.NewMockSearcher(ctrl)
	gomock.InOrder(
		searcher.EXPECT().Search(queryMatcher{expr: "foo"}, 5).
			Return(&index.Hits{Total: 1, Items: []index.Hit{{InstanceID: 1, Score: 1}}}, nil),
		searcher.EXPECT().Search(queryMatcher{expr: "bar"}, 5).
			Return(&index.Hits{Total: 1, Items: []index.Hit{{InstanceID: 9, Score: 2}}}, nil),
	)

	var results bytes.Buffer
	sess, err := New(Config{Searcher: searcher, PageSize: 10, NumHits: 5, RunID: "run-a"})
	c.Assert(err, check.IsNil)

	input := ".I 1\n.W\nfoo\n.I 2\n.W\n.I 3\n.W\nbar\n"
	stats, err := sess.RunBatch(context.TODO(), strings.NewReader(input), &results)
	c.Assert(err, check.IsNil)
	c.Assert(stats, check.DeepEquals, BatchStats{Queries: 2, Skipped: 1, Lines: 2})
	c.Assert(results.String(), check.Equals, "1 Q0 1 1 1 run-a\n3 Q0 9 1 2 run-a\n")
}

func (s *BatchTestSuite) TestFailedSearchIsSkipped(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	searchErr := errors.New("index unavailable")
	searcher := mocks.NewMockSearcher(ctrl)
	gomock.InOrder(
		searcher.EXPECT().Search(gomock.Any(), 20).Return(nil, searchErr),
		searcher.EXPECT().Search(gomock.Any(), 20).
			Return(&index.Hits{Total: 1, Items: []index.Hit{{InstanceID: 3, Score: 0.5}}}, nil),
	)

	var results bytes.Buffer
	sess, err := New(Config{Searcher: searcher, PageSize: 10})
	c.Assert(err, check.IsNil)

	stats, err := sess.RunBatch(context.TODO(), strings.NewReader(twoQueries), &results)
	c.Assert(errors.Is(err, searchErr), check.Equals, true)
	c.Assert(stats, check.DeepEquals, BatchStats{Queries: 1, Failed: 1, Lines: 1})
	c.Assert(results.String(), check.Equals, "2 Q0 3 1 0.5 STANDARD\n")
}

func (s *BatchTestSuite) TestCancelledRunKeepsWrittenLines(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	searcher := mocks.NewMockSearcher(ctrl)
	searcher.EXPECT().Search(gomock.Any(), 20).Times(1).DoAndReturn(
		func(index.Query, int) (*index.Hits, error) {
			cancel()
			return &index.Hits{Total: 1, Items: []index.Hit{{InstanceID: 5, Score: 0.9}}}, nil
		},
	)

	var results bytes.Buffer
	sess, err := New(Config{Searcher: searcher, PageSize: 10})
	c.Assert(err, check.IsNil)

	stats, err := sess.RunBatch(ctx, strings.NewReader(twoQueries), &results)
	c.Assert(errors.Is(err, context.Canceled), check.Equals, true)
	c.Assert(stats.Lines, check.Equals, 1)
	c.Assert(results.String(), check.Equals, "1 Q0 5 1 0.9 STANDARD\n")
}

func (s *BatchTestSuite) TestSingleQuery(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	searcher := mocks.NewMockSearcher(ctrl)
	searcher.EXPECT().Search(queryMatcher{expr: "shock waves"}, 20).
		Return(&index.Hits{Total: 1, Items: []index.Hit{{InstanceID: 4, Score: 1.5}}}, nil)

	var results bytes.Buffer
	sess, err := New(Config{Searcher: searcher, PageSize: 10, Query: "shock waves"})
	c.Assert(err, check.IsNil)

	_, err = sess.RunBatch(context.TODO(), strings.NewReader(twoQueries), &results)
	c.Assert(err, check.IsNil)
	c.Assert(results.String(), check.Equals, "1 Q0 4 1 1.5 STANDARD\n")
}

func (s *BatchTestSuite) TestRepeatBenchmark(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	clk := testclock.NewClock(time.Unix(0, 0))
	searcher := mocks.NewMockSearcher(ctrl)
	searcher.EXPECT().Search(gomock.Any(), benchmarkHits).Times(3).DoAndReturn(
		func(index.Query, int) (*index.Hits, error) {
			clk.Advance(2 * time.Millisecond)
			return &index.Hits{}, nil
		},
	)
	searcher.EXPECT().Search(gomock.Any(), 20).Return(&index.Hits{}, nil)

	var console bytes.Buffer
	sess, err := New(Config{
		Searcher: searcher,
		PageSize: 10,
		Repeat:   3,
		Query:    "flow",
		Out:      &console,
		Clock:    clk,
	})
	c.Assert(err, check.IsNil)

	_, err = sess.RunBatch(context.TODO(), nil, &bytes.Buffer{})
	c.Assert(err, check.IsNil)
	c.Assert(console.String(), check.Matches, "(?s).*Time: 6ms\n.*")
}

func (s *BatchTestSuite) TestRunLineFormat(c *check.C) {
	line := RunLine{QueryID: 12, DocID: 486, Rank: 3, Score: 11.734567, RunID: "bm25"}
	c.Assert(line.String(), check.Equals, "12 Q0 486 3 11.734567 bm25")
}

type InteractiveTestSuite struct{}

func hitList(n int) []index.Hit {
	hits := make([]index.Hit, n)
	for i := range hits {
		hits[i] = index.Hit{InstanceID: i + 1, Score: float64(n - i), Title: fmt.Sprintf("title %d", i+1)}
	}

	return hits
}

func (s *InteractiveTestSuite) TestPagingForward(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	searcher := mocks.NewMockSearcher(ctrl)
	searcher.EXPECT().Search(queryMatcher{expr: "flow"}, 50).
		Return(&index.Hits{Total: 23, Items: hitList(23)}, nil)

	var console bytes.Buffer
	sess, err := New(Config{
		Searcher: searcher,
		PageSize: 10,
		In:       strings.NewReader("flow\nn\nn\nn\nq\n\n"),
		Out:      &console,
	})
	c.Assert(err, check.IsNil)
	c.Assert(sess.RunInteractive(context.TODO()), check.IsNil)

	out := console.String()
	c.Assert(out, check.Matches, "(?s)Enter query: \nSearching for: Words:\\(flow\\) OR Title:\\(flow\\)\n23 total matching documents\n1\\. 1\n   Title: title 1\n.*")
	c.Assert(strings.Contains(out, "21. 21\n   Title: title 21\n"), check.Equals, true)
	c.Assert(strings.Contains(out, "23. 23\n"), check.Equals, true)
	c.Assert(strings.Contains(out, "24. "), check.Equals, false)
	c.Assert(strings.Count(out, "No more pages."), check.Equals, 1)
	c.Assert(strings.Count(out, "21. 21"), check.Equals, 1)
	c.Assert(strings.HasSuffix(out,
		"Press (p)revious page, (q)uit or enter number to jump to a page.\n"+
			"No more pages.\n"+
			"Press (p)revious page, (q)uit or enter number to jump to a page.\n"+
			"Enter query: \n"), check.Equals, true)
}

func (s *InteractiveTestSuite) TestPagingBackAndJump(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	searcher := mocks.NewMockSearcher(ctrl)
	searcher.EXPECT().Search(gomock.Any(), 50).Return(&index.Hits{Total: 23, Items: hitList(23)}, nil)

	var console bytes.Buffer
	sess, err := New(Config{
		Searcher: searcher,
		PageSize: 10,
		In:       strings.NewReader("flow\np\n3\n4\n0\nabc\n2\nq\n"),
		Out:      &console,
	})
	c.Assert(err, check.IsNil)
	c.Assert(sess.RunInteractive(context.TODO()), check.IsNil)

	out := console.String()
	c.Assert(strings.Count(out, "Already at the first page."), check.Equals, 1)
	c.Assert(strings.Count(out, "No such page"), check.Equals, 3)
	c.Assert(strings.Count(out, "21. 21"), check.Equals, 1)
	c.Assert(strings.Count(out, "11. 11"), check.Equals, 1)
	c.Assert(strings.Count(out, "1. 1\n"), check.Equals, 1)
}

func (s *InteractiveTestSuite) TestCollectRemainingHits(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	searcher := mocks.NewMockSearcher(ctrl)
	gomock.InOrder(
		searcher.EXPECT().Search(gomock.Any(), 10).Return(&index.Hits{Total: 15, Items: hitList(15)[:10]}, nil),
		searcher.EXPECT().Search(gomock.Any(), 0).Return(&index.Hits{Total: 15, Items: hitList(15)}, nil),
	)

	var console bytes.Buffer
	sess, err := New(Config{
		Searcher: searcher,
		PageSize: 2,
		In:       strings.NewReader("flow\n6\n8\nq\n"),
		Out:      &console,
	})
	c.Assert(err, check.IsNil)
	c.Assert(sess.RunInteractive(context.TODO()), check.IsNil)

	out := console.String()
	c.Assert(strings.Contains(out, "11. 11\n   Title: title 11\n12. 12\n"), check.Equals, true)
	c.Assert(strings.Contains(out, "15. 15\n"), check.Equals, true)
}

func (s *InteractiveTestSuite) TestSingleShotShowsFirstPage(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	searcher := mocks.NewMockSearcher(ctrl)
	searcher.EXPECT().Search(queryMatcher{expr: "boundary layer"}, 15).
		Return(&index.Hits{Total: 23, Items: hitList(15)}, nil)

	var console bytes.Buffer
	sess, err := New(Config{
		Searcher: searcher,
		PageSize: 3,
		Query:    "boundary layer",
		In:       strings.NewReader("n\n"),
		Out:      &console,
	})
	c.Assert(err, check.IsNil)
	c.Assert(sess.RunInteractive(context.TODO()), check.IsNil)

	c.Assert(console.String(), check.Equals,
		"Searching for: Words:(boundary layer) OR Title:(boundary layer)\n"+
			"23 total matching documents\n"+
			"1. 1\n   Title: title 1\n"+
			"2. 2\n   Title: title 2\n"+
			"3. 3\n   Title: title 3\n")
}

func (s *InteractiveTestSuite) TestRawOutput(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	searcher := mocks.NewMockSearcher(ctrl)
	searcher.EXPECT().Search(gomock.Any(), 50).
		Return(&index.Hits{Total: 2, Items: []index.Hit{{InstanceID: 5, Score: 0.9}, {InstanceID: 2, Score: 0.5}}}, nil)

	var console bytes.Buffer
	sess, err := New(Config{
		Searcher: searcher,
		PageSize: 10,
		Raw:      true,
		In:       strings.NewReader("lift\n"),
		Out:      &console,
	})
	c.Assert(err, check.IsNil)
	c.Assert(sess.RunInteractive(context.TODO()), check.IsNil)

	out := console.String()
	c.Assert(strings.Contains(out, "doc=5 score=0.9\ndoc=2 score=0.5\n"), check.Equals, true)
	c.Assert(strings.Contains(out, "Press (q)uit or enter number to jump to a page.\n"), check.Equals, true)
}

func (s *InteractiveTestSuite) TestNoMatches(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	searcher := mocks.NewMockSearcher(ctrl)
	searcher.EXPECT().Search(gomock.Any(), 50).Return(&index.Hits{}, nil)

	var console bytes.Buffer
	sess, err := New(Config{
		Searcher: searcher,
		PageSize: 10,
		In:       strings.NewReader("zzz\n"),
		Out:      &console,
	})
	c.Assert(err, check.IsNil)
	c.Assert(sess.RunInteractive(context.TODO()), check.IsNil)
	c.Assert(strings.Contains(console.String(), "0 total matching documents\nEnter query: \n"), check.Equals, true)
}

func (s *InteractiveTestSuite) TestUnknownField(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	sess, err := New(Config{
		Searcher: mocks.NewMockSearcher(ctrl),
		PageSize: 10,
		Fields:   []index.FieldBoost{{Field: "Abstract", Boost: 1}},
		Query:    "flow",
	})
	c.Assert(err, check.IsNil)
	c.Assert(errors.Is(sess.RunInteractive(context.TODO()), index.ErrUnknownField), check.Equals, true)
}

func (s *InteractiveTestSuite) TestParseCommand(c *check.C) {
	specs := []struct {
		line string
		cmd  command
		page int
	}{
		{"", cmdQuit, 0},
		{"quit", cmdQuit, 0},
		{"next", cmdNext, 0},
		{" p ", cmdPrev, 0},
		{"7", cmdJump, 7},
		{"-1", cmdJump, -1},
		{"x", cmdInvalid, 0},
	}

	for i, spec := range specs {
		cmd, page := parseCommand(spec.line)
		c.Assert(cmd, check.Equals, spec.cmd, check.Commentf("case %d", i))
		c.Assert(page, check.Equals, spec.page, check.Commentf("case %d", i))
	}
}

func (s *InteractiveTestSuite) TestPagerBounds(c *check.C) {
	p := newPager(10, 23)
	c.Assert(p.prev(), check.Equals, false)
	c.Assert(p.next(), check.Equals, true)
	c.Assert(p.next(), check.Equals, true)

	start, end := p.window()
	c.Assert([]int{start, end}, check.DeepEquals, []int{20, 23})
	c.Assert(p.next(), check.Equals, false)

	c.Assert(p.jump(3), check.Equals, true)
	c.Assert(p.jump(4), check.Equals, false)
	c.Assert(p.jump(0), check.Equals, false)
	c.Assert(p.jump(922337203685477582), check.Equals, false)

	start, end = p.window()
	c.Assert([]int{start, end}, check.DeepEquals, []int{20, 23})
	c.Assert(newPager(10, 0).jump(1), check.Equals, false)
}

func (s *InteractiveTestSuite) TestHugePageNumberIsRejected(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	searcher := mocks.NewMockSearcher(ctrl)
	searcher.EXPECT().Search(gomock.Any(), 50).Return(&index.Hits{Total: 23, Items: hitList(23)}, nil)

	var console bytes.Buffer
	sess, err := New(Config{
		Searcher: searcher,
		PageSize: 10,
		In:       strings.NewReader("flow\n922337203685477582\nq\n"),
		Out:      &console,
	})
	c.Assert(err, check.IsNil)
	c.Assert(sess.RunInteractive(context.TODO()), check.IsNil)
	c.Assert(strings.Count(console.String(), "No such page"), check.Equals, 1)
}

// queryMatcher implements gomock.Matcher. It compares the expression and
// ranking of the query handed to the mocked searcher.
type queryMatcher struct {
	expr    string
	ranking index.Ranking
}

func (m queryMatcher) Matches(x interface{}) bool {
	q, ok := x.(index.Query)
	if !ok {
		return false
	}

	return q.Expression == m.expr && q.Ranking == m.ranking
}

func (m queryMatcher) String() string {
	return fmt.Sprintf("matches query %q (%s)", m.expr, m.ranking)
}
