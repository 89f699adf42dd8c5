package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldgraph/gateway/schema"
)

func TestHTTPClient_SendsQueryVariablesAndOperationName(t *testing.T) {
	var gotBody requestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"me":{"id":"1"}}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(nil)
	resp, err := c.Execute(context.Background(), &Request{
		Subgraph:      &schema.Subgraph{Name: "accounts", URL: srv.URL},
		Query:         "query Op($id: ID!) { me { id } }",
		OperationName: "Op",
		Variables:     map[string]interface{}{"id": "1"},
		Idempotent:    true,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"me":{"id":"1"}}`, string(resp.Data))
	assert.Equal(t, "Op", gotBody.OperationName)
	assert.Equal(t, "1", gotBody.Variables["id"])
}

func TestHTTPClient_RetriesOn5xxThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(nil)
	resp, err := c.Execute(context.Background(), &Request{
		Subgraph: &schema.Subgraph{
			Name: "accounts", URL: srv.URL,
			Retry: schema.RetryPolicy{MaxAttempts: 5, InitialInterval: 1, MaxInterval: 2},
		},
		Query:      "query { ok }",
		Idempotent: true,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Data))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestHTTPClient_DoesNotRetryMutationsByDefault(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(nil)
	_, err := c.Execute(context.Background(), &Request{
		Subgraph: &schema.Subgraph{
			Name: "accounts", URL: srv.URL,
			Retry: schema.RetryPolicy{MaxAttempts: 5, InitialInterval: 1, MaxInterval: 2},
		},
		Query:      "mutation { createThing { id } }",
		Idempotent: false,
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestHTTPClient_PermanentOn4xx(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHTTPClient(nil)
	_, err := c.Execute(context.Background(), &Request{
		Subgraph: &schema.Subgraph{
			Name: "accounts", URL: srv.URL,
			Retry: schema.RetryPolicy{MaxAttempts: 5, InitialInterval: 1, MaxInterval: 2},
		},
		Query:      "query { ok }",
		Idempotent: true,
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}
