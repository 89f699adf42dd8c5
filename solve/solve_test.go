package solve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/fieldgraph/gateway/bind"
	"github.com/fieldgraph/gateway/schema"
	"github.com/fieldgraph/gateway/solve"
)

const testSDL = `
enum join__Graph {
  ACCOUNTS @join__graph(name: "accounts", url: "http://accounts")
  REVIEWS @join__graph(name: "reviews", url: "http://reviews")
}

type Query {
  me: User @join__field(graph: ACCOUNTS)
}

type Mutation {
  addReview(body: String): Review @join__field(graph: REVIEWS)
  renameUser(name: String): User @join__field(graph: ACCOUNTS)
}

type User
  @join__type(graph: ACCOUNTS, key: "id")
  @join__type(graph: REVIEWS, key: "id")
{
  id: ID!
  name: String
  reviews: [Review!] @join__field(graph: REVIEWS)
}

type Review @join__type(graph: REVIEWS, key: "id") {
  id: ID!
  body: String
}
`

func mustBind(t *testing.T, v *schema.View, query string) *bind.BoundOperation {
	t.Helper()
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	require.NoError(t, err)
	op, err := bind.Bind(v, doc, "")
	require.NoError(t, err)
	return op
}

func TestSolve_SingleSubgraphStaysInOnePartition(t *testing.T) {
	v, err := schema.Build(testSDL)
	require.NoError(t, err)

	op := mustBind(t, v, `query { me { id name } }`)
	sol, err := solve.Solve(v, op)
	require.NoError(t, err)

	meField := sol.Root.Selection.Fields[0]
	require.NotNil(t, meField.Child)
	assert.Equal(t, "accounts", meField.Child.Subgraph)
	require.Len(t, meField.Child.Selection.Fields, 1)
	inner := meField.Child.Selection.Fields[0]
	require.NotNil(t, inner.Selection)
	assert.Len(t, inner.Selection.Fields, 2)
}

func TestSolve_CrossSubgraphFieldForksPartition(t *testing.T) {
	v, err := schema.Build(testSDL)
	require.NoError(t, err)

	op := mustBind(t, v, `query { me { id reviews { id body } } }`)
	sol, err := solve.Solve(v, op)
	require.NoError(t, err)

	meField := sol.Root.Selection.Fields[0]
	accountsPartition := meField.Child
	require.NotNil(t, accountsPartition)

	require.Len(t, accountsPartition.Selection.Fields, 1)
	require.NotNil(t, accountsPartition.Selection.Fields[0].Selection)
	var reviewsField *solve.PartitionField
	for _, f := range accountsPartition.Selection.Fields[0].Selection.Fields {
		if f.Name == "reviews" {
			reviewsField = f
		}
	}
	require.NotNil(t, reviewsField)
	require.NotNil(t, reviewsField.Child)
	assert.Equal(t, "reviews", reviewsField.Child.Subgraph)
	assert.Equal(t, accountsPartition, reviewsField.Child.Parent)
}

func TestSolve_MutationFieldsGetSequenced(t *testing.T) {
	v, err := schema.Build(testSDL)
	require.NoError(t, err)

	op := mustBind(t, v, `mutation { addReview(body: "hi") { id } renameUser(name: "x") { id } }`)
	sol, err := solve.Solve(v, op)
	require.NoError(t, err)

	first := sol.Root.Selection.Fields[0].Child
	second := sol.Root.Selection.Fields[1].Child
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, 0, first.Sequence)
	assert.Equal(t, 1, second.Sequence)
}
