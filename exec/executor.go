// Package exec implements the concurrent executor (spec section 4.6):
// given a plan.Result, it issues one subgraph request per Plan, honors
// the dependency edges between them, and streams every response into a
// shared store.Store for the shaper to read back.
package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fieldgraph/gateway/bind"
	"github.com/fieldgraph/gateway/entitycache"
	"github.com/fieldgraph/gateway/logger"
	"github.com/fieldgraph/gateway/modify"
	"github.com/fieldgraph/gateway/plan"
	"github.com/fieldgraph/gateway/schema"
	"github.com/fieldgraph/gateway/store"
	"github.com/fieldgraph/gateway/telemetry"
	"github.com/fieldgraph/gateway/transport"
)

// Executor runs one bound, solved, planned operation to completion.
type Executor struct {
	View      *schema.View
	Transport transport.Client
	Limiter   *transport.Limiter
	Store     *store.Store
	Result    *plan.Result
	Operation *bind.BoundOperation
	Variables modify.Variables
	Auth      modify.AuthContext
	Mods      *modify.QueryModifications

	// EntityCache is consulted once per representation on every entity
	// plan before issuing a subgraph request (spec section 4.9); nil
	// disables entity caching entirely. EntityCacheTTL governs how long
	// a freshly-fetched fragment is written back for.
	EntityCache    entitycache.Backend
	EntityCacheTTL time.Duration

	// Telemetry wraps the operation and each plan in a span; nil
	// disables it (see telemetry.NoopHook for why call sites never need
	// a nil check).
	Telemetry telemetry.Hook

	// Logger receives one Warn per subgraph-level failure this executor
	// records (recordPlanError/recordSubgraphErrors); nil falls back to
	// logger.Noop.
	Logger logger.Logger

	// IncomingHeaders are the ingress request's headers, consulted by
	// each subgraph's header-forwarding rules (schema.Subgraph.Headers,
	// already merged from global + per-subgraph config by
	// federation.Gateway) to build that subgraph's outgoing headers.
	IncomingHeaders http.Header
}

func New(view *schema.View, client transport.Client, limiter *transport.Limiter, st *store.Store, result *plan.Result, op *bind.BoundOperation, vars modify.Variables, auth modify.AuthContext, mods *modify.QueryModifications) *Executor {
	return &Executor{
		View: view, Transport: client, Limiter: limiter, Store: st,
		Result: result, Operation: op, Variables: vars, Auth: auth, Mods: mods,
		Telemetry: telemetry.NoopHook{}, Logger: logger.Noop,
	}
}

func (e *Executor) hook() telemetry.Hook {
	if e.Telemetry == nil {
		return telemetry.NoopHook{}
	}
	return e.Telemetry
}

func (e *Executor) log() logger.Logger {
	if e.Logger == nil {
		return logger.Noop
	}
	return e.Logger
}

// Run executes the whole plan, returning the id of the root response
// object the shaper should walk. Per-subgraph failures are recorded as
// store errors and null-bubble through the shaper rather than aborting
// the operation (spec section 4.6 "Failure semantics"); Run itself only
// returns an error when the schema has no root type for the
// operation's kind.
func (e *Executor) Run(ctx context.Context) (int, error) {
	rootDef := e.View.RootType(e.Operation.Kind.String())
	if rootDef == nil {
		return 0, fmt.Errorf("exec: no root type for operation kind %s", e.Operation.Kind)
	}
	rootID := e.Store.NewObject(rootDef.Name)

	ctx, stopOperation := e.hook().StartOperation(ctx, e.Operation.Name, e.Operation.Kind.String())
	defer func() { stopOperation(len(e.Store.Errors())) }()

	var topLevel []*plan.Plan
	for _, pl := range e.Result.Plans {
		if pl.ParentPlanID == -1 {
			topLevel = append(topLevel, pl)
		}
	}

	// The root object has no response path of its own — a root-plan
	// failure reports "one error per root plan" with no path (spec
	// section 8's boundary behavior), not a path into the root object.
	rootAnchor := []Anchor{{ObjectID: rootID}}

	// Mutation root fields execute strictly in source order (spec
	// section 4.3 step 5b / section 5's ordering guarantee); each
	// root plan's own entity-join subtree is allowed to run
	// concurrently, but the next mutation's root request only starts
	// once the previous one (and everything it unlocked) has finished,
	// so a later mutation can never race ahead of an earlier one's
	// side effects.
	if e.Operation.Kind == bind.OperationMutation {
		sort.Slice(topLevel, func(i, j int) bool { return topLevel[i].Sequence < topLevel[j].Sequence })
		for _, pl := range topLevel {
			if err := e.runSubtree(ctx, pl, rootAnchor); err != nil {
				return rootID, err
			}
		}
		return rootID, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, pl := range topLevel {
		pl := pl
		g.Go(func() error { return e.runSubtree(gctx, pl, rootAnchor) })
	}
	return rootID, g.Wait()
}

// runSubtree executes one plan against the given anchor objects, then
// fans out to every plan that depends on it, concurrently, scoping
// each dependent to just the anchor objects its own boundary shape
// touched. Per-failure store errors are recorded at the precise point
// of failure inside runOne's callees, against exactly the anchors that
// failed, rather than here against the whole incoming set.
func (e *Executor) runSubtree(ctx context.Context, pl *plan.Plan, anchors []Anchor) error {
	if err := e.runOne(ctx, pl, anchors); err != nil {
		return nil
	}

	children := e.childrenOf(pl.ID)
	if len(children) == 0 {
		return nil
	}

	// An entity plan's anchors end at the boundary key that handed it
	// its objects; pl.Root's own shapes start from the objects, so walk
	// from the object paths to avoid repeating that key.
	objects := anchors
	if pl.ParentPlanID != -1 {
		objects = make([]Anchor, len(anchors))
		for i, a := range anchors {
			objects[i] = a
			if len(a.Path) > 0 {
				objects[i].Path = a.Path[:len(a.Path)-1]
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, child := range children {
		child := child
		childAnchors := collectAnchors(e.Store, pl.Root, objects, child.ID)
		if len(childAnchors) == 0 {
			continue
		}
		g.Go(func() error { return e.runSubtree(gctx, child, childAnchors) })
	}
	return g.Wait()
}

func (e *Executor) runOne(ctx context.Context, pl *plan.Plan, anchors []Anchor) error {
	sub := e.View.Subgraphs[pl.Subgraph]
	if sub == nil {
		err := fmt.Errorf("exec: unknown subgraph %q", pl.Subgraph)
		e.recordPlanError(pl, anchors, err)
		return err
	}

	ctx, stopPlan := e.hook().StartPlan(ctx, pl.ID, pl.Subgraph)

	var err error
	if pl.ParentPlanID == -1 {
		err = e.runRootPlan(ctx, sub, pl, anchors)
	} else {
		err = e.runEntityPlan(ctx, sub, pl, anchors)
	}
	stopPlan(err)
	if err != nil {
		return err
	}

	e.resolveDeferred(pl)
	return nil
}

func (e *Executor) runRootPlan(ctx context.Context, sub *schema.Subgraph, pl *plan.Plan, anchors []Anchor) error {
	rootID := anchors[0].ObjectID

	release, err := e.Limiter.Acquire(ctx, pl.Subgraph)
	if err != nil {
		e.recordPlanError(pl, anchors, err)
		return err
	}
	defer release()

	query := buildRequestQuery(pl, e.Result, e.View, e.Operation, e.Variables, e.Mods)
	idempotent := e.Operation.Kind != bind.OperationMutation

	resp, err := e.Transport.Execute(ctx, &transport.Request{
		Subgraph:      sub,
		Query:         query,
		OperationName: planOperationName(pl),
		Headers:       transport.ApplyHeaderRules(sub.Headers, e.IncomingHeaders),
		Idempotent:    idempotent,
	})
	if err != nil {
		e.recordPlanError(pl, anchors, err)
		return err
	}
	e.recordSubgraphErrors(pl, anchors, resp)

	data, err := decodeBody(resp)
	if err != nil {
		e.recordPlanError(pl, anchors, err)
		return err
	}
	decodeInto(e.Store, pl.Root, rootID, data)
	return nil
}

// runEntityPlan executes an `_entities(representations:)` plan,
// consulting the entity cache per representation first (spec section
// 4.9): a hit is written directly into the response store, a miss
// joins a reduced subgraph call scoped to just the miss set, and every
// fetched fragment is written back to the cache with EntityCacheTTL.
func (e *Executor) runEntityPlan(ctx context.Context, sub *schema.Subgraph, pl *plan.Plan, anchors []Anchor) error {
	keys := e.View.KeyFieldSet(pl.EntityType, pl.Subgraph)
	reps := make([]map[string]interface{}, len(anchors))
	for i, a := range anchors {
		reps[i] = store.Representation(e.Store, a.ObjectID, keys)
	}

	missAnchors, missReps := anchors, reps
	if e.EntityCache != nil {
		missAnchors, missReps = nil, nil
		for i, a := range anchors {
			fp := entitycache.Fingerprint(pl.Subgraph, pl.EntityType, reps[i], pl.Root)
			fragment, ok, err := e.EntityCache.Get(ctx, fp)
			if err != nil || !ok {
				missAnchors = append(missAnchors, a)
				missReps = append(missReps, reps[i])
				continue
			}
			decodeInto(e.Store, pl.Root, a.ObjectID, fragment)
		}
	}

	if len(missAnchors) == 0 {
		return nil
	}

	release, err := e.Limiter.Acquire(ctx, pl.Subgraph)
	if err != nil {
		e.recordPlanError(pl, missAnchors, err)
		return err
	}
	defer release()

	query := buildRequestQuery(pl, e.Result, e.View, e.Operation, e.Variables, e.Mods)
	resp, err := e.Transport.Execute(ctx, &transport.Request{
		Subgraph:      sub,
		Query:         query,
		OperationName: planOperationName(pl),
		Variables:     map[string]interface{}{"representations": missReps},
		Headers:       transport.ApplyHeaderRules(sub.Headers, e.IncomingHeaders),
		Idempotent:    true,
	})
	if err != nil {
		e.recordPlanError(pl, missAnchors, err)
		return err
	}
	e.recordSubgraphErrors(pl, missAnchors, resp)

	data, err := decodeBody(resp)
	if err != nil {
		e.recordPlanError(pl, missAnchors, err)
		return err
	}

	entities, _ := data["_entities"].([]interface{})
	for i, a := range missAnchors {
		if i >= len(entities) {
			break
		}
		obj, ok := entities[i].(map[string]interface{})
		if !ok {
			continue
		}
		decodeInto(e.Store, pl.Root, a.ObjectID, obj)
		if e.EntityCache != nil {
			fp := entitycache.Fingerprint(pl.Subgraph, pl.EntityType, missReps[i], pl.Root)
			_ = e.EntityCache.Set(ctx, fp, obj, e.EntityCacheTTL)
		}
	}
	return nil
}

func decodeBody(resp *transport.Response) (map[string]interface{}, error) {
	if len(resp.Data) == 0 {
		return nil, nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// recordSubgraphErrors re-attaches every GraphQL error a subgraph
// returned alongside (partial) data to the response path it actually
// belongs to (spec section 4.6 step 5). Root plans forward ge.Path
// as-is, since the subgraph query IS the root selection. Entity plans
// follow the Apollo Federation convention of prefixing the path with
// ["_entities", <index into the representations sent>, ...]; anchors
// must be exactly the representation slice sent with this request, in
// the same order, so index lines up with the anchor it names.
func (e *Executor) recordSubgraphErrors(pl *plan.Plan, anchors []Anchor, resp *transport.Response) {
	for _, ge := range resp.Errors {
		e.log().Warn("subgraph returned error", "subgraph", pl.Subgraph, "plan", pl.ID, "message", ge.Message)
		e.Store.AddError(store.Error{
			Message:    ge.Message,
			Path:       resolveGraphQLErrorPath(pl, anchors, ge.Path),
			Code:       "SUBGRAPH_REQUEST_ERROR",
			Extensions: ge.Extensions,
		})
	}
}

// resolveGraphQLErrorPath converts a subgraph's own error path (decoded
// from JSON, so each element is a string field key or a float64 index)
// into a store.Path rooted at the gateway's own response.
func resolveGraphQLErrorPath(pl *plan.Plan, anchors []Anchor, gePath []interface{}) store.Path {
	if pl.ParentPlanID == -1 {
		return convertGraphQLPath(gePath)
	}
	if len(gePath) < 2 {
		return nil
	}
	idx, ok := gePath[1].(float64)
	if !ok || int(idx) < 0 || int(idx) >= len(anchors) {
		return nil
	}
	// The anchor path ends at the boundary key, which the entity's own
	// error path (after "_entities", idx) repeats as its first segment.
	base := anchors[int(idx)].Path
	if len(base) > 0 {
		base = base[:len(base)-1]
	}
	return append(append(store.Path(nil), base...), convertGraphQLPath(gePath[2:])...)
}

func convertGraphQLPath(raw []interface{}) store.Path {
	out := make(store.Path, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case string:
			out = append(out, store.PathSegment{Key: t})
		case float64:
			out = append(out, store.PathSegment{Index: int(t), IsIndex: true})
		}
	}
	return out
}

// resolveDeferred re-checks every response-time @authorized rule
// belonging to pl now that its anchor object(s) exist in the store.
// Like the query-time gate, this applies the same authentication
// check rather than inspecting a per-field policy (see DESIGN.md's C6
// entry on why: no policy engine exists anywhere in the retrieved
// pack to ground a richer check on).
func (e *Executor) resolveDeferred(pl *plan.Plan) {
	for _, d := range e.Mods.Deferred {
		if d.PlanID == pl.ID && !e.Auth.Authenticated {
			e.Mods.Suppress(d.ShapeID)
		}
	}
}

func (e *Executor) childrenOf(planID int) []*plan.Plan {
	var out []*plan.Plan
	for _, pl := range e.Result.Plans {
		if pl.ParentPlanID == planID {
			out = append(out, pl)
		}
	}
	return out
}

// recordPlanError records a whole-plan failure (transport error, rate
// limiter cancellation, malformed response body) as one store.Error per
// affected anchor, each localized to that anchor's own response path
// (spec section 7: "subgraph errors are localized to the paths their
// plans would have written") — a plan fetching N list entities that
// fails outright produces N distinct errors, not one generic one. With
// no anchors to attribute to (an unknown-subgraph plan with no parent
// object yet), a single pathless error is recorded instead.
func (e *Executor) recordPlanError(pl *plan.Plan, anchors []Anchor, err error) {
	e.log().Warn("plan failed", "subgraph", pl.Subgraph, "plan", pl.ID, "anchors", len(anchors), "error", err.Error())
	if len(anchors) == 0 {
		e.Store.AddError(store.Error{
			Message: err.Error(),
			Code:    "SUBGRAPH_REQUEST_ERROR",
			Extensions: map[string]interface{}{
				"subgraph": pl.Subgraph,
				"plan":     pl.ID,
			},
		})
		return
	}
	for _, a := range anchors {
		e.Store.AddError(store.Error{
			Message: err.Error(),
			Path:    a.Path,
			Code:    "SUBGRAPH_REQUEST_ERROR",
			Extensions: map[string]interface{}{
				"subgraph": pl.Subgraph,
				"plan":     pl.ID,
			},
		})
	}
}
