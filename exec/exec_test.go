package exec_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/fieldgraph/gateway/bind"
	"github.com/fieldgraph/gateway/entitycache"
	"github.com/fieldgraph/gateway/exec"
	"github.com/fieldgraph/gateway/modify"
	"github.com/fieldgraph/gateway/plan"
	"github.com/fieldgraph/gateway/schema"
	"github.com/fieldgraph/gateway/solve"
	"github.com/fieldgraph/gateway/store"
	"github.com/fieldgraph/gateway/transport"
)

const testSDL = `
enum join__Graph {
  ACCOUNTS @join__graph(name: "accounts", url: "http://accounts")
  REVIEWS @join__graph(name: "reviews", url: "http://reviews")
  PROFILES @join__graph(name: "profiles", url: "http://profiles")
}

type Query {
  me: User @join__field(graph: ACCOUNTS)
}

type Mutation {
  renameMe(name: String!): User @join__field(graph: ACCOUNTS)
}

type User
  @join__type(graph: ACCOUNTS, key: "id")
  @join__type(graph: REVIEWS, key: "id")
{
  id: ID!
  name: String @join__field(graph: ACCOUNTS)
  reviews: [Review!] @join__field(graph: REVIEWS)
}

type Review
  @join__type(graph: REVIEWS, key: "id")
  @join__type(graph: PROFILES, key: "id")
{
  id: ID!
  body: String
  user: Author @join__field(graph: PROFILES)
}

type Author @join__type(graph: PROFILES, key: "id") {
  id: ID!
}
`

type fakeClient struct {
	responses map[string]string
	calls     []*transport.Request
}

func (f *fakeClient) Execute(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	f.calls = append(f.calls, req)
	body, ok := f.responses[req.Subgraph.Name]
	if !ok {
		return nil, fmt.Errorf("no canned response for subgraph %s", req.Subgraph.Name)
	}
	var resp transport.Response
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func mustPlan(t *testing.T, query string) (*schema.View, *plan.Result, *bind.BoundOperation) {
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
	return v, res, op
}

func TestExecutor_SingleSubgraphQuery(t *testing.T) {
	view, res, op := mustPlan(t, `query { me { id name } }`)

	client := &fakeClient{responses: map[string]string{
		"accounts": `{"data":{"me":{"id":"1","name":"Ada"}}}`,
	}}

	st := store.New()
	mods, err := modify.Evaluate(res, modify.Variables{}, modify.AuthContext{})
	require.NoError(t, err)

	e := exec.New(view, client, transport.NewLimiter(4, 16), st, res, op, modify.Variables{}, modify.AuthContext{}, mods)
	rootID, err := e.Run(context.Background())
	require.NoError(t, err)

	result, errs := store.Shape(res.ByID(res.Plans[0].ID).Root, rootID, st, mods, res)
	require.Empty(t, errs)

	me := result["me"].(map[string]interface{})
	assert.Equal(t, "1", me["id"])
	assert.Equal(t, "Ada", me["name"])
}

func TestExecutor_CrossSubgraphEntityJoin(t *testing.T) {
	view, res, op := mustPlan(t, `query { me { id name reviews { id body } } }`)

	client := &fakeClient{responses: map[string]string{
		"accounts": `{"data":{"me":{"__typename":"User","id":"1","name":"Ada"}}}`,
		"reviews":  `{"data":{"_entities":[{"reviews":[{"id":"r1","body":"Great"}]}]}}`,
	}}

	st := store.New()
	mods, err := modify.Evaluate(res, modify.Variables{}, modify.AuthContext{})
	require.NoError(t, err)

	e := exec.New(view, client, transport.NewLimiter(4, 16), st, res, op, modify.Variables{}, modify.AuthContext{}, mods)
	rootID, err := e.Run(context.Background())
	require.NoError(t, err)

	var rootPlan *plan.Plan
	for _, pl := range res.Plans {
		if pl.ParentPlanID == -1 {
			rootPlan = pl
		}
	}
	require.NotNil(t, rootPlan)

	result, errs := store.Shape(rootPlan.Root, rootID, st, mods, res)
	require.Empty(t, errs)

	me := result["me"].(map[string]interface{})
	assert.Equal(t, "1", me["id"])
	reviews := me["reviews"].([]interface{})
	require.Len(t, reviews, 1)
	assert.Equal(t, "Great", reviews[0].(map[string]interface{})["body"])

	var sawRepresentations bool
	for _, call := range client.calls {
		if call.Subgraph.Name == "reviews" {
			vars, ok := call.Variables["representations"].([]map[string]interface{})
			require.True(t, ok)
			require.Len(t, vars, 1)
			assert.Equal(t, "1", vars[0]["id"])
			sawRepresentations = true
		}
	}
	assert.True(t, sawRepresentations)
}

func TestExecutor_EntityCacheHitSkipsSubgraphCallAndPopulatesStore(t *testing.T) {
	view, res, op := mustPlan(t, `query { me { id name reviews { id body } } }`)

	client := &fakeClient{responses: map[string]string{
		"accounts": `{"data":{"me":{"__typename":"User","id":"1","name":"Ada"}}}`,
		"reviews":  `{"data":{"_entities":[{"reviews":[{"id":"r1","body":"Great"}]}]}}`,
	}}

	cache := entitycache.NewMemoryBackend()
	var reviewsPlan *plan.Plan
	for _, pl := range res.Plans {
		if pl.Subgraph == "reviews" {
			reviewsPlan = pl
		}
	}
	require.NotNil(t, reviewsPlan)
	fp := entitycache.Fingerprint("reviews", "User", map[string]interface{}{"__typename": "User", "id": "1"}, reviewsPlan.Root)
	require.NoError(t, cache.Set(context.Background(), fp, map[string]interface{}{"reviews": []interface{}{
		map[string]interface{}{"id": "r1", "body": "Cached"},
	}}, 0))

	st := store.New()
	mods, err := modify.Evaluate(res, modify.Variables{}, modify.AuthContext{})
	require.NoError(t, err)

	e := exec.New(view, client, transport.NewLimiter(4, 16), st, res, op, modify.Variables{}, modify.AuthContext{}, mods)
	e.EntityCache = cache
	rootID, err := e.Run(context.Background())
	require.NoError(t, err)

	var rootPlan *plan.Plan
	for _, pl := range res.Plans {
		if pl.ParentPlanID == -1 {
			rootPlan = pl
		}
	}
	result, errs := store.Shape(rootPlan.Root, rootID, st, mods, res)
	require.Empty(t, errs)

	me := result["me"].(map[string]interface{})
	reviews := me["reviews"].([]interface{})
	require.Len(t, reviews, 1)
	assert.Equal(t, "Cached", reviews[0].(map[string]interface{})["body"])

	for _, call := range client.calls {
		assert.NotEqual(t, "reviews", call.Subgraph.Name)
	}
}

func TestExecutor_MutationRunsStrictlySequenced(t *testing.T) {
	view, res, op := mustPlan(t, `mutation { renameMe(name: "Bea") { id name } }`)

	client := &fakeClient{responses: map[string]string{
		"accounts": `{"data":{"renameMe":{"id":"1","name":"Bea"}}}`,
	}}

	st := store.New()
	mods, err := modify.Evaluate(res, modify.Variables{}, modify.AuthContext{})
	require.NoError(t, err)

	e := exec.New(view, client, transport.NewLimiter(4, 16), st, res, op, modify.Variables{}, modify.AuthContext{}, mods)
	rootID, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, client.calls, 1)
	assert.False(t, client.calls[0].Idempotent)

	result, errs := store.Shape(res.Plans[0].Root, rootID, st, mods, res)
	require.Empty(t, errs)
	renamed := result["renameMe"].(map[string]interface{})
	assert.Equal(t, "Bea", renamed["name"])
}

func TestExecutor_SubgraphFailureNullBubbles(t *testing.T) {
	view, res, op := mustPlan(t, `query { me { id name } }`)

	client := &fakeClient{responses: map[string]string{}}

	st := store.New()
	mods, err := modify.Evaluate(res, modify.Variables{}, modify.AuthContext{})
	require.NoError(t, err)

	e := exec.New(view, client, transport.NewLimiter(4, 16), st, res, op, modify.Variables{}, modify.AuthContext{}, mods)
	rootID, err := e.Run(context.Background())
	require.NoError(t, err)

	result, _ := store.Shape(res.Plans[0].Root, rootID, st, mods, res)
	assert.Nil(t, result["me"])
	require.NotEmpty(t, st.Errors())
	assert.Equal(t, "SUBGRAPH_REQUEST_ERROR", st.Errors()[0].Code)
	assert.Empty(t, st.Errors()[0].Path)
}

// TestExecutor_EntityJoinFailureAttachesIndexedPath covers a profiles
// subgraph outage after reviews has already returned a list of
// reviews: each review's "user" join must null-bubble with its own
// indexed path, not one bare plan-level error.
func TestExecutor_EntityJoinFailureAttachesIndexedPath(t *testing.T) {
	view, res, op := mustPlan(t, `query { me { id reviews { id body user { id } } } }`)

	client := &fakeClient{responses: map[string]string{
		"accounts": `{"data":{"me":{"__typename":"User","id":"1"}}}`,
		"reviews": `{"data":{"_entities":[{"reviews":[
			{"id":"r1","body":"Great","__typename":"Review"},
			{"id":"r2","body":"Meh","__typename":"Review"}
		]}]}}`,
	}}

	st := store.New()
	mods, err := modify.Evaluate(res, modify.Variables{}, modify.AuthContext{})
	require.NoError(t, err)

	e := exec.New(view, client, transport.NewLimiter(4, 16), st, res, op, modify.Variables{}, modify.AuthContext{}, mods)
	rootID, err := e.Run(context.Background())
	require.NoError(t, err)

	var rootPlan *plan.Plan
	for _, pl := range res.Plans {
		if pl.ParentPlanID == -1 {
			rootPlan = pl
		}
	}
	require.NotNil(t, rootPlan)

	result, _ := store.Shape(rootPlan.Root, rootID, st, mods, res)
	me := result["me"].(map[string]interface{})
	reviews := me["reviews"].([]interface{})
	require.Len(t, reviews, 2)
	assert.Nil(t, reviews[0].(map[string]interface{})["user"])
	assert.Nil(t, reviews[1].(map[string]interface{})["user"])

	require.NotEmpty(t, st.Errors())
	var sawIndex0, sawIndex1 bool
	for _, storeErr := range st.Errors() {
		if storeErr.Code != "SUBGRAPH_REQUEST_ERROR" || len(storeErr.Path) < 3 {
			continue
		}
		if storeErr.Path[0].Key != "me" || storeErr.Path[1].Key != "reviews" || !storeErr.Path[2].IsIndex {
			continue
		}
		switch storeErr.Path[2].Index {
		case 0:
			sawIndex0 = true
		case 1:
			sawIndex1 = true
		}
		assert.Equal(t, "user", storeErr.Path[3].Key)
	}
	assert.True(t, sawIndex0, "expected an error at me.reviews[0].user")
	assert.True(t, sawIndex1, "expected an error at me.reviews[1].user")
}

// TestExecutor_SuppressedFieldOmittedFromSubgraphQuery covers spec
// scenario 5: a field suppressed by @skip must never reach the
// subgraph's own request text, not just the final shaped response.
func TestExecutor_SuppressedFieldOmittedFromSubgraphQuery(t *testing.T) {
	view, res, op := mustPlan(t, `query($omit: Boolean!) { me { id name @skip(if: $omit) } }`)

	client := &fakeClient{responses: map[string]string{
		"accounts": `{"data":{"me":{"id":"1"}}}`,
	}}

	st := store.New()
	vars := modify.Variables{"omit": true}
	mods, err := modify.Evaluate(res, vars, modify.AuthContext{})
	require.NoError(t, err)

	e := exec.New(view, client, transport.NewLimiter(4, 16), st, res, op, vars, modify.AuthContext{}, mods)
	_, err = e.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, client.calls, 1)
	assert.NotRegexp(t, `\bname\b`, client.calls[0].Query)
}
