package config_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldgraph/gateway/config"
)

func TestLoad_FillsDefaultsForOmittedFields(t *testing.T) {
	cfg, err := config.Load([]byte(`
subgraphs:
  accounts:
    url: http://accounts.internal
    timeout: 2s
`))
	require.NoError(t, err)

	assert.True(t, cfg.Graph.Introspection)
	assert.Equal(t, 1000, cfg.OperationCaching.Limit)
	assert.Equal(t, "memory", cfg.EntityCaching.Storage)
	assert.Equal(t, 16, cfg.OperationLimits.Depth)
	assert.Equal(t, 100, cfg.Concurrency.Global)
	assert.Equal(t, 10, cfg.Concurrency.DefaultSubgraph)

	sub, ok := cfg.Subgraphs["accounts"]
	require.True(t, ok)
	assert.Equal(t, "http://accounts.internal", sub.URL)
	assert.Equal(t, 2*time.Second, sub.Timeout)
	assert.Equal(t, 0, sub.Concurrency)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	cfg, err := config.Load([]byte(`
graph:
  introspection: false
operation_caching:
  limit: 50
`))
	require.NoError(t, err)

	assert.False(t, cfg.Graph.Introspection)
	assert.Equal(t, 50, cfg.OperationCaching.Limit)
}

func TestApplyHeaderRules_ForwardsNamedHeader(t *testing.T) {
	incoming := http.Header{"X-Request-Id": []string{"abc"}}
	rules := []config.HeaderRule{{Action: config.HeaderForward, Name: "X-Request-Id"}}

	out := config.ApplyHeaderRules(rules, incoming)
	assert.Equal(t, "abc", out.Get("X-Request-Id"))
}

func TestApplyHeaderRules_LastWriteWinsPerHeaderName(t *testing.T) {
	incoming := http.Header{}
	rules := []config.HeaderRule{
		{Action: config.HeaderInsert, Name: "X-Env", Value: "staging"},
		{Action: config.HeaderInsert, Name: "X-Env", Value: "production"},
	}

	out := config.ApplyHeaderRules(rules, incoming)
	assert.Equal(t, "production", out.Get("X-Env"))
}

func TestApplyHeaderRules_RemoveByPattern(t *testing.T) {
	incoming := http.Header{}
	rules := []config.HeaderRule{
		{Action: config.HeaderInsert, Name: "X-Internal-Debug", Value: "1"},
		{Action: config.HeaderInsert, Name: "X-Request-Id", Value: "abc"},
		{Action: config.HeaderRemove, Pattern: "^X-Internal-"},
	}

	out := config.ApplyHeaderRules(rules, incoming)
	assert.Empty(t, out.Get("X-Internal-Debug"))
	assert.Equal(t, "abc", out.Get("X-Request-Id"))
}

func TestApplyHeaderRules_RenameDuplicate(t *testing.T) {
	incoming := http.Header{"Authorization": []string{"Bearer abc"}}
	rules := []config.HeaderRule{
		{Action: config.HeaderRenameDuplicate, Name: "Authorization", RenameTo: "X-Forwarded-Authorization"},
	}

	out := config.ApplyHeaderRules(rules, incoming)
	assert.Equal(t, "Bearer abc", out.Get("X-Forwarded-Authorization"))
}
