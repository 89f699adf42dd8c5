package federation_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldgraph/gateway/config"
	"github.com/fieldgraph/gateway/federation"
	"github.com/fieldgraph/gateway/schema"
	"github.com/fieldgraph/gateway/transport"
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
  name: String @join__field(graph: ACCOUNTS)
  reviews: [Review!] @join__field(graph: REVIEWS)
}

type Review @join__type(graph: REVIEWS, key: "id") {
  id: ID!
  body: String
}
`

type fakeClient struct {
	responses map[string]string
	errs      map[string]error
	calls     []*transport.Request
}

func (f *fakeClient) Execute(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	f.calls = append(f.calls, req)
	if err, ok := f.errs[req.Subgraph.Name]; ok {
		return nil, err
	}
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

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Subgraphs = map[string]config.Subgraph{
		"accounts": {URL: "http://accounts"},
		"reviews":  {URL: "http://reviews"},
	}
	return cfg
}

func mustGateway(t *testing.T, client transport.Client) *federation.Gateway {
	t.Helper()
	view, err := schema.Build(testSDL)
	require.NoError(t, err)
	return federation.NewGateway(testConfig(), view, client)
}

func TestGateway_Execute_SingleSubgraphRootField(t *testing.T) {
	client := &fakeClient{responses: map[string]string{
		"accounts": `{"data":{"me":{"__typename":"User","id":"1","name":"Ada"}}}`,
	}}
	gw := mustGateway(t, client)

	resp := gw.Execute(context.Background(), &federation.Request{Document: `query { me { id name } }`})

	require.Empty(t, resp.Errors)
	me, ok := resp.Data["me"].(map[string]interface{})
	if !ok {
		t.Fatal("bad value", spew.Sdump(resp.Data))
	}
	assert.Equal(t, "1", me["id"])
	assert.Equal(t, "Ada", me["name"])
}

func TestGateway_Execute_EntityJoinAcrossSubgraphs(t *testing.T) {
	client := &fakeClient{responses: map[string]string{
		"accounts": `{"data":{"me":{"__typename":"User","id":"1","name":"Ada"}}}`,
		"reviews":  `{"data":{"_entities":[{"reviews":[{"id":"r1","body":"Great"}]}]}}`,
	}}
	gw := mustGateway(t, client)

	resp := gw.Execute(context.Background(), &federation.Request{Document: `query { me { id name reviews { id body } } }`})

	require.Empty(t, resp.Errors)
	me := resp.Data["me"].(map[string]interface{})
	reviews := me["reviews"].([]interface{})
	require.Len(t, reviews, 1)
	assert.Equal(t, "Great", reviews[0].(map[string]interface{})["body"])
}

func TestGateway_Execute_SubgraphFailureNullBubblesAndReportsError(t *testing.T) {
	client := &fakeClient{
		responses: map[string]string{"accounts": `{"data":{"me":{"__typename":"User","id":"1","name":"Ada"}}}`},
		errs:      map[string]error{"reviews": fmt.Errorf("connection refused")},
	}
	gw := mustGateway(t, client)

	resp := gw.Execute(context.Background(), &federation.Request{Document: `query { me { id reviews { id } } }`})

	require.NotEmpty(t, resp.Errors)
	me := resp.Data["me"].(map[string]interface{})
	assert.Nil(t, me["reviews"])
}

func TestGateway_Execute_ParseErrorReturnsNoData(t *testing.T) {
	gw := mustGateway(t, &fakeClient{})

	resp := gw.Execute(context.Background(), &federation.Request{Document: `query { me { `})

	require.Len(t, resp.Errors, 1)
	assert.Nil(t, resp.Data)
	assert.Equal(t, federation.CodeParseError, resp.Errors[0].Extensions["code"])
}

func TestGateway_Execute_DepthLimitRejectsBeforeAnySubgraphCall(t *testing.T) {
	client := &fakeClient{responses: map[string]string{
		"accounts": `{"data":{"me":{"__typename":"User","id":"1"}}}`,
	}}
	view, err := schema.Build(testSDL)
	require.NoError(t, err)
	cfg := testConfig()
	cfg.OperationLimits.Depth = 1
	gw := federation.NewGateway(cfg, view, client)

	resp := gw.Execute(context.Background(), &federation.Request{Document: `query { me { id } }`})

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, federation.CodeQueryTooDeep, resp.Errors[0].Extensions["code"])
	assert.Empty(t, client.calls)
}

func TestGateway_Execute_ForwardsIncomingHeaderToSubgraph(t *testing.T) {
	client := &fakeClient{responses: map[string]string{
		"accounts": `{"data":{"me":{"__typename":"User","id":"1"}}}`,
	}}
	view, err := schema.Build(testSDL)
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Headers = []config.HeaderRule{{Action: config.HeaderForward, Name: "X-Request-Id"}}
	gw := federation.NewGateway(cfg, view, client)

	req := &federation.Request{
		Document: `query { me { id } }`,
		Headers:  http.Header{"X-Request-Id": []string{"abc-123"}},
	}
	resp := gw.Execute(context.Background(), req)

	require.Empty(t, resp.Errors)
	require.Len(t, client.calls, 1)
	assert.Equal(t, "abc-123", client.calls[0].Headers.Get("X-Request-Id"))
}

func TestGateway_Execute_EntityCacheHitAvoidsSubgraphCall(t *testing.T) {
	client := &fakeClient{responses: map[string]string{
		"accounts": `{"data":{"me":{"__typename":"User","id":"1"}}}`,
		"reviews":  `{"data":{"_entities":[{"reviews":[{"id":"r1","body":"Great"}]}]}}`,
	}}
	view, err := schema.Build(testSDL)
	require.NoError(t, err)
	cfg := testConfig()
	cfg.EntityCaching.Enabled = true
	cfg.EntityCaching.TTL = time.Minute
	gw := federation.NewGateway(cfg, view, client)

	ctx := context.Background()
	doc := `query { me { id reviews { id body } } }`

	first := gw.Execute(ctx, &federation.Request{Document: doc})
	require.Empty(t, first.Errors)

	client.responses["reviews"] = `{"data":{"_entities":[{"reviews":[{"id":"stale","body":"stale"}]}]}}`
	second := gw.Execute(ctx, &federation.Request{Document: doc})
	require.Empty(t, second.Errors)

	me := second.Data["me"].(map[string]interface{})
	reviews := me["reviews"].([]interface{})
	assert.Equal(t, "Great", reviews[0].(map[string]interface{})["body"])
}
