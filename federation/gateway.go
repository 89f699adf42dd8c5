// Package federation wires the read-only schema view, the operation
// cache, the concurrent executor, and the response shaper into the
// single entrypoint spec section 3 describes: Gateway.Execute takes
// one GraphQL-over-HTTP request and returns its GraphQL-over-HTTP
// response, classifying every fatal failure into spec section 7's
// error taxonomy.
package federation

import (
	"context"
	"sort"
	"time"

	"github.com/fieldgraph/gateway/config"
	"github.com/fieldgraph/gateway/entitycache"
	"github.com/fieldgraph/gateway/exec"
	"github.com/fieldgraph/gateway/logger"
	"github.com/fieldgraph/gateway/modify"
	"github.com/fieldgraph/gateway/opcache"
	"github.com/fieldgraph/gateway/plan"
	"github.com/fieldgraph/gateway/schema"
	"github.com/fieldgraph/gateway/store"
	"github.com/fieldgraph/gateway/telemetry"
	"github.com/fieldgraph/gateway/transport"
)

// Gateway holds everything one process needs to answer requests
// against a single (possibly hot-reloadable) supergraph.
type Gateway struct {
	Schema      *schema.Store
	OpCache     *opcache.Cache
	EntityCache entitycache.Backend

	Transport transport.Client
	Limiter   *transport.Limiter
	Telemetry telemetry.Hook
	Logger    logger.Logger

	limits         config.OperationLimitsConfig
	entityCacheTTL int64 // milliseconds, schema.Subgraph.CacheTTL units
}

// NewGateway builds a Gateway from a loaded Config and an already-built
// schema.View, merging the config's per-subgraph transport policy and
// header rules onto the view's subgraphs (spec section 6: the
// supergraph SDL names subgraphs and their URLs, everything else about
// how to call them is config, not schema).
func NewGateway(cfg *config.Config, view *schema.View, client transport.Client) *Gateway {
	mergeSubgraphConfig(view, cfg)

	limiter := transport.NewLimiter(cfg.Concurrency.DefaultSubgraph, cfg.Concurrency.Global)
	for name, csub := range cfg.Subgraphs {
		if csub.Concurrency > 0 {
			limiter.SetLimit(name, csub.Concurrency)
		}
	}

	var entityCache entitycache.Backend
	if cfg.EntityCaching.Enabled {
		entityCache = entitycache.NewMemoryBackend()
	}

	opCache := opcache.New(cfg.OperationCaching.Limit, 0, opcache.Default, nil)

	return &Gateway{
		Schema:         schema.NewStore(view),
		OpCache:        opCache,
		EntityCache:    entityCache,
		Transport:      client,
		Limiter:        limiter,
		Telemetry:      telemetry.NoopHook{},
		Logger:         logger.Noop,
		limits:         cfg.OperationLimits,
		entityCacheTTL: cfg.EntityCaching.TTL.Milliseconds(),
	}
}

// mergeSubgraphConfig applies a loaded Config's per-subgraph transport
// policy and header-forwarding rules onto a schema.View's subgraphs in
// place. Global header rules (cfg.Headers) are prepended to each
// subgraph's own rules, so a subgraph-specific rule can still override
// a global one for the same header name (transport.ApplyHeaderRules's
// last-write-wins evaluation order).
func mergeSubgraphConfig(view *schema.View, cfg *config.Config) {
	globalRules := make([]schema.HeaderRule, len(cfg.Headers))
	for i, r := range cfg.Headers {
		globalRules[i] = r.ToSchema()
	}

	for name, sub := range view.Subgraphs {
		csub, ok := cfg.Subgraphs[name]
		if !ok {
			sub.Headers = append([]schema.HeaderRule(nil), globalRules...)
			continue
		}

		sub.Timeout = csub.Timeout.Milliseconds()
		sub.CacheTTL = csub.CacheTTL.Milliseconds()
		sub.Retry = schema.RetryPolicy{
			MaxAttempts:     csub.Retry.MaxAttempts,
			InitialInterval: csub.Retry.InitialInterval.Milliseconds(),
			MaxInterval:     csub.Retry.MaxInterval.Milliseconds(),
			RetryMutations:  csub.Retry.RetryMutations,
		}

		rules := append([]schema.HeaderRule(nil), globalRules...)
		names := make([]string, 0, len(csub.Headers))
		for headerName := range csub.Headers {
			names = append(names, headerName)
		}
		sort.Strings(names)
		for _, headerName := range names {
			rules = append(rules, schema.HeaderRule{
				Action: schema.HeaderInsert,
				Name:   headerName,
				Value:  csub.Headers[headerName],
			})
		}
		sub.Headers = rules
	}
}

// Execute runs one request to completion: compile (cache-checked),
// validate variables, evaluate modifiers, run the plan concurrently,
// then shape the response. Every fatal failure short-circuits to a
// Response carrying only Errors, per spec section 7's surface taxonomy
// (Validation/Planning errors never reach the executor).
func (g *Gateway) Execute(ctx context.Context, req *Request) *Response {
	view := g.Schema.Load()

	compiled, err := g.OpCache.Get(ctx, view, view.Version, req.Document, req.OperationName)
	if err != nil {
		g.log().Warn("operation compile failed", "operation", req.OperationName, "error", err.Error())
		return &Response{Errors: []GraphQLError{classifyError(err)}}
	}

	if err := checkLimits(g.limits, compiled.Operation); err != nil {
		g.log().Warn("operation rejected by limits", "operation", req.OperationName, "error", err.Error())
		return &Response{Errors: []GraphQLError{classifyError(err)}}
	}

	vars, err := modify.ValidateVariables(view, compiled.Operation.Variables, req.Variables)
	if err != nil {
		g.log().Warn("variable validation failed", "operation", req.OperationName, "error", err.Error())
		return &Response{Errors: []GraphQLError{classifyError(err)}}
	}

	auth := modify.AuthContext{Authenticated: req.Auth.Authenticated, Scopes: req.Auth.Scopes}

	mods, err := modify.Evaluate(compiled.Result, vars, auth)
	if err != nil {
		g.log().Warn("modifier evaluation failed", "operation", req.OperationName, "error", err.Error())
		return &Response{Errors: []GraphQLError{classifyError(err)}}
	}

	st := store.New()
	e := exec.New(view, g.Transport, g.Limiter, st, compiled.Result, compiled.Operation, vars, auth, mods)
	e.EntityCache = g.EntityCache
	e.EntityCacheTTL = time.Duration(g.entityCacheTTL) * time.Millisecond
	e.Telemetry = g.hook()
	e.Logger = g.log()
	e.IncomingHeaders = req.Headers

	rootID, err := e.Run(ctx)
	if err != nil {
		g.log().Error("executor run failed", "operation", req.OperationName, "error", err.Error())
		return &Response{Errors: []GraphQLError{newError(CodeInternalServerError, err.Error())}}
	}

	data, shapeErrs := store.Shape(rootShapes(compiled.Result), rootID, st, mods, compiled.Result)
	errs := append(storeErrorsToGraphQL(st.Errors()), storeErrorsToGraphQL(shapeErrs)...)

	return &Response{Data: data, Errors: errs}
}

func (g *Gateway) hook() telemetry.Hook {
	if g.Telemetry == nil {
		return telemetry.NoopHook{}
	}
	return g.Telemetry
}

func (g *Gateway) log() logger.Logger {
	if g.Logger == nil {
		return logger.Noop
	}
	return g.Logger
}

// rootShapes concatenates the Root shape lists of every top-level plan
// (ParentPlanID == -1): a single operation can fan its root selection
// across more than one subgraph, and the executor writes every one of
// those plans' results onto the same root object (exec.Executor.Run),
// so the shaper needs all of them to render the complete response.
func rootShapes(result *plan.Result) []*plan.Shape {
	var out []*plan.Shape
	for _, pl := range result.Plans {
		if pl.ParentPlanID == -1 {
			out = append(out, pl.Root...)
		}
	}
	return out
}

