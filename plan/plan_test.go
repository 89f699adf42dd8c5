package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/fieldgraph/gateway/bind"
	"github.com/fieldgraph/gateway/plan"
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

func buildPlan(t *testing.T, query string) (*schema.View, *plan.Result) {
	t.Helper()
	v, err := schema.Build(testSDL)
	require.NoError(t, err)

	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	require.NoError(t, err)

	op, err := bind.Bind(v, doc, "")
	require.NoError(t, err)

	sol, err := solve.Solve(v, op)
	require.NoError(t, err)

	res, err := plan.Build(sol)
	require.NoError(t, err)
	return v, res
}

func TestBuild_TwoPlansForCrossSubgraphQuery(t *testing.T) {
	_, res := buildPlan(t, `query { me { id name reviews { id body } } }`)

	require.Len(t, res.Plans, 2)

	root := res.ByID(res.Plans[0].ID)
	require.Equal(t, -1, root.ParentPlanID)
	require.Equal(t, "accounts", root.Subgraph)

	require.Len(t, root.Root, 1)
	var reviewsShape *plan.Shape
	for _, s := range root.Root[0].Children {
		if s.FieldName == "reviews" {
			reviewsShape = s
		}
	}
	require.NotNil(t, reviewsShape)
	assert.GreaterOrEqual(t, reviewsShape.ChildPlanID, 0)

	child := res.ByID(reviewsShape.ChildPlanID)
	require.NotNil(t, child)
	assert.Equal(t, "reviews", child.Subgraph)
	assert.Equal(t, root.ID, child.ParentPlanID)
}

func TestBuild_SkipDirectiveProducesModifierRule(t *testing.T) {
	_, res := buildPlan(t, `query ($omit: Boolean!) { me { id name @skip(if: $omit) } }`)

	require.NotEmpty(t, res.Modifiers)
	found := false
	for _, m := range res.Modifiers {
		if m.Kind == plan.ModifierSkipInclude && m.Variable == "omit" && m.Negate {
			found = true
		}
	}
	assert.True(t, found)
}
