// Package config mirrors the enumerated configuration surface (spec
// section 6): graph introspection, operation/entity caching, per-
// subgraph transport policy, header forwarding, authentication
// providers, operation limits, and telemetry. Loading is YAML, parsed
// with gopkg.in/yaml.v3 (already in the dependency graph, promoted here
// from indirect to directly exercised).
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the whole process-scoped configuration tree.
type Config struct {
	Graph            GraphConfig            `yaml:"graph"`
	OperationCaching OperationCachingConfig `yaml:"operation_caching"`
	EntityCaching    EntityCachingConfig    `yaml:"entity_caching"`
	Subgraphs        map[string]Subgraph    `yaml:"subgraphs"`
	Headers          []HeaderRule           `yaml:"headers"`
	Authentication   AuthenticationConfig   `yaml:"authentication"`
	OperationLimits  OperationLimitsConfig  `yaml:"operation_limits"`
	Telemetry        TelemetryConfig        `yaml:"telemetry"`
	Concurrency      ConcurrencyConfig      `yaml:"concurrency"`
}

// ConcurrencyConfig governs the executor's concurrency permits (spec
// section 5's resource model, section 6's "configurable per-subgraph
// limit"): a global ceiling on in-flight subgraph calls, and the
// default per-subgraph ceiling a subgraph entry can override via its
// own `concurrency` field.
type ConcurrencyConfig struct {
	Global          int `yaml:"global"`
	DefaultSubgraph int `yaml:"default_subgraph"`
}

type GraphConfig struct {
	Introspection bool `yaml:"introspection"`
}

type OperationCachingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Limit          int     `yaml:"limit"`
	WarmOnReload   bool    `yaml:"warm_on_reload"`
	WarmingPercent float64 `yaml:"warming_percent"`
	Redis          string  `yaml:"redis,omitempty"`
}

type EntityCachingConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	Storage string        `yaml:"storage"`
	Redis   string        `yaml:"redis,omitempty"`
}

// RetryPolicy configures transport.HTTPClient's backoff.Retry call for
// one subgraph.
type RetryPolicy struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	RetryMutations  bool          `yaml:"retry_mutations"`
}

// Subgraph is one entry of `subgraphs.<name>`.
type Subgraph struct {
	URL         string            `yaml:"url"`
	Timeout     time.Duration     `yaml:"timeout"`
	Retry       RetryPolicy       `yaml:"retry"`
	CacheTTL    time.Duration     `yaml:"cache_ttl"`
	Headers     map[string]string `yaml:"headers"`
	// Concurrency overrides Concurrency.DefaultSubgraph for this one
	// subgraph; 0 means "use the default".
	Concurrency int `yaml:"concurrency"`
}

// HeaderAction is one of the four header-forwarding actions spec
// section 6 names.
type HeaderAction string

const (
	HeaderForward         HeaderAction = "forward"
	HeaderInsert          HeaderAction = "insert"
	HeaderRemove          HeaderAction = "remove"
	HeaderRenameDuplicate HeaderAction = "rename_duplicate"
)

// HeaderRule is one entry of the global `headers` forwarding list.
// Rules apply in declaration order, last write wins per header name
// (SPEC_FULL.md section 4's supplemented evaluation-order decision —
// spec section 6 names the actions but not their precedence).
type HeaderRule struct {
	Action   HeaderAction `yaml:"action"`
	Name     string       `yaml:"name,omitempty"`
	Value    string       `yaml:"value,omitempty"`
	Pattern  string       `yaml:"pattern,omitempty"`
	RenameTo string       `yaml:"rename_to,omitempty"`
}

type AuthProvider struct {
	Name         string        `yaml:"name"`
	JWKSURL      string        `yaml:"jwks_url"`
	Issuer       string        `yaml:"issuer"`
	Audience     string        `yaml:"audience"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type AuthenticationConfig struct {
	Providers []AuthProvider `yaml:"providers"`
}

type OperationLimitsConfig struct {
	Depth      int `yaml:"depth"`
	Height     int `yaml:"height"`
	Complexity int `yaml:"complexity"`
	Aliases    int `yaml:"aliases"`
	RootFields int `yaml:"root_fields"`
}

type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
	Endpoint       string `yaml:"endpoint,omitempty"`
}

// Default returns a Config with the gateway's out-of-the-box defaults,
// for Load to unmarshal over.
func Default() *Config {
	return &Config{
		Graph: GraphConfig{Introspection: true},
		OperationCaching: OperationCachingConfig{
			Enabled: true,
			Limit:   1000,
		},
		EntityCaching: EntityCachingConfig{
			Storage: "memory",
		},
		OperationLimits: OperationLimitsConfig{
			Depth:      16,
			Height:     1000,
			Complexity: 10000,
			Aliases:    30,
			RootFields: 20,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "federation-gateway",
		},
		Concurrency: ConcurrencyConfig{
			Global:          100,
			DefaultSubgraph: 10,
		},
	}
}

// Load parses YAML configuration text over Default(), so any field the
// document omits keeps its default value.
func Load(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
