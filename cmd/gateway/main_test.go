package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldgraph/gateway/config"
	"github.com/fieldgraph/gateway/federation"
	"github.com/fieldgraph/gateway/schema"
	"github.com/fieldgraph/gateway/transport"
)

const handlerTestSDL = `
enum join__Graph {
  ACCOUNTS @join__graph(name: "accounts", url: "http://accounts")
}

type Query {
  me: User @join__field(graph: ACCOUNTS)
}

type User @join__type(graph: ACCOUNTS, key: "id") {
  id: ID!
  name: String @join__field(graph: ACCOUNTS)
}
`

type canned struct{ body string }

func (c *canned) Execute(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	var resp transport.Response
	if err := json.Unmarshal([]byte(c.body), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func mustTestGateway(t *testing.T) *federation.Gateway {
	t.Helper()
	view, err := schema.Build(handlerTestSDL)
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Subgraphs = map[string]config.Subgraph{"accounts": {URL: "http://accounts"}}
	client := &canned{body: `{"data":{"me":{"__typename":"User","id":"1","name":"Ada"}}}`}
	return federation.NewGateway(cfg, view, client)
}

func TestGraphqlHandler_RejectsNonPost(t *testing.T) {
	gw := mustTestGateway(t)
	req := httptest.NewRequest(http.MethodGet, "/graphql", nil)
	rec := httptest.NewRecorder()

	graphqlHandler(gw)(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGraphqlHandler_RejectsMalformedBody(t *testing.T) {
	gw := mustTestGateway(t)
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()

	graphqlHandler(gw)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGraphqlHandler_ExecutesQueryAndEncodesResponse(t *testing.T) {
	gw := mustTestGateway(t)
	body := `{"query":"query { me { id name } }"}`
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	rec := httptest.NewRecorder()

	graphqlHandler(gw)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp federation.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp.Errors)
	me := resp.Data["me"].(map[string]interface{})
	assert.Equal(t, "Ada", me["name"])
}

func TestAuthFromHeaders_NoAuthorizationMeansUnauthenticated(t *testing.T) {
	auth := authFromHeaders(http.Header{})
	assert.False(t, auth.Authenticated)
	assert.Empty(t, auth.Scopes)
}

func TestAuthFromHeaders_ReadsBearerAndScopes(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer sometoken")
	h.Set("X-Auth-Scopes", "read:users,write:reviews")

	auth := authFromHeaders(h)

	assert.True(t, auth.Authenticated)
	assert.Equal(t, []string{"read:users", "write:reviews"}, auth.Scopes)
}

func TestEnsureRequestID_GeneratesWhenAbsent(t *testing.T) {
	h := http.Header{}
	ensureRequestID(h)
	assert.NotEmpty(t, h.Get("X-Request-Id"))
}

func TestEnsureRequestID_PreservesExisting(t *testing.T) {
	h := http.Header{"X-Request-Id": []string{"caller-supplied"}}
	ensureRequestID(h)
	assert.Equal(t, "caller-supplied", h.Get("X-Request-Id"))
}

func TestLoadConfig_MissingFileFallsBackToDefault(t *testing.T) {
	cfg, err := loadConfig("/nonexistent/path/to/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, config.Default().Concurrency, cfg.Concurrency)
}
