package cranfield

import (
	"strings"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(new(QueryReaderTestSuite))

type QueryReaderTestSuite struct{}

func readQueries(c *check.C, input string) []Query {
	qr := NewQueryReader(strings.NewReader(input))

	var queries []Query
	for qr.Next() {
		queries = append(queries, qr.Query())
	}
	c.Assert(qr.Error(), check.IsNil)

	return queries
}

func (s *QueryReaderTestSuite) TestReadQueries(c *check.C) {
	input := `.I 001
.W
what similarity laws must be obeyed when constructing aeroelastic models
of heated high speed aircraft .
.I 002
.W
what are the structural and aeroelastic problems associated with flight
of high speed aircraft .
`
	queries := readQueries(c, input)

	c.Assert(queries, check.DeepEquals, []Query{
		{ID: 1, Text: "what similarity laws must be obeyed when constructing aeroelastic models of heated high speed aircraft ."},
		{ID: 2, Text: "what are the structural and aeroelastic problems associated with flight of high speed aircraft ."},
	})
}

func (s *QueryReaderTestSuite) TestIDsIgnoreEmbeddedNumbers(c *check.C) {
	queries := readQueries(c, ".I 001\n.W\none\n.I 004\n.W\ntwo\n.I 008\n.W\nthree")

	c.Assert(queries, check.HasLen, 3)
	c.Assert(queries[2].ID, check.Equals, 3)
	c.Assert(queries[2].Text, check.Equals, "three")
}

func (s *QueryReaderTestSuite) TestEmptyQueryKeepsID(c *check.C) {
	queries := readQueries(c, ".I 1\n.W\n.I 2\n.W\nsecond")

	c.Assert(queries, check.DeepEquals, []Query{
		{ID: 1, Text: ""},
		{ID: 2, Text: "second"},
	})
}

func (s *QueryReaderTestSuite) TestEmptyInput(c *check.C) {
	c.Assert(readQueries(c, ""), check.HasLen, 0)
	c.Assert(readQueries(c, ".I 1\n"), check.DeepEquals, []Query{{ID: 1}})
}
