// Package plan lowers a solve.Solution into a flat list of executable
// Plans with attached Shapes (spec section 4.4): each Plan is one
// subgraph round trip, and each Shape describes how to walk that
// round trip's response into the shared response store.
package plan

import (
	"github.com/fieldgraph/gateway/bind"
	"github.com/fieldgraph/gateway/schema"
)

// Plan is one subgraph round trip: the query partition lowered into an
// executable unit with its dependency and (for mutations) sequence
// edges resolved to concrete plan ids.
type Plan struct {
	ID       int
	Subgraph string

	// ParentPlanID is -1 for the operation's top-level plans (those
	// whose parent in the solve DAG was the virtual root partition);
	// otherwise the Plan that must resolve the parent entity first.
	ParentPlanID int

	// EntityType is the concrete type name this plan resolves fields
	// on via `_entities(representations:)`. Empty for top-level plans
	// (ParentPlanID == -1), which instead query root fields directly.
	EntityType string

	// Path is the response-key path from the operation root to the
	// field whose subgraph switch created this plan (for a top-level
	// plan, the root field's own response key), carried straight from
	// solve.Partition.Path.
	// The executor's own anchor tracking (exec.Anchor) fills in the
	// runtime list indices this static path can't know; Path is what's
	// left once an anchor's own accumulated path is stripped back to
	// the plan boundary, useful for diagnostics and for plans with no
	// anchors of their own to report against.
	Path []string

	// Sequence is -1 unless this plan is a top-level mutation plan, in
	// which case it's the plan's position in the strict execution
	// order (spec section 4.3 step 5b / section 4.4 "mutation
	// sequence edges").
	Sequence int

	// Requires is the FieldSet this plan needs supplied as an
	// _entities representation by ParentPlanID.
	Requires *schema.FieldSet

	// Root is the top-level shape list this plan fetches (each a
	// direct field of the entity/root type it's anchored on).
	Root []*Shape
}

// Shape is a (response-key, expected-type, list-wrapping, child-shape)
// tuple (spec section 4.4). A Shape with a non-empty Discriminator
// describes a polymorphic position: which concrete-type shape list to
// walk is decided by the store at response-shaping time from the
// object's __typename.
type Shape struct {
	ID          int
	ResponseKey string
	FieldName   string
	TypeName    string
	List        bool
	NonNull     bool

	// Children is the shape list for this field's own selection, when
	// it's resolved by the SAME plan.
	Children []*Shape

	// ChildPlanID is >= 0 when this field's subselection is resolved
	// by a different plan (a partition boundary); Children is empty
	// in that case — the shaper attaches the child plan's Root shapes
	// directly once that plan completes.
	ChildPlanID int

	// Discriminator maps concrete type name to the shape list used
	// when the response object's __typename is that type (polymorphic
	// positions only; nil for monomorphic fields).
	Discriminator map[string][]*Shape

	// Modifiers references ModifierRule.ID entries that can suppress
	// this shape from the response (spec section 4.4 "Modifiers").
	Modifiers []int

	// Args carries the field's own arguments forward from the bound
	// operation so the executor can render them back into the
	// subgraph request's query text; a variable reference is rendered
	// as its resolved value, not forwarded as a variable.
	Args map[string]*bind.Argument
}

// ModifierKind distinguishes the query-time and response-time
// modifier families spec section 4.4 describes.
type ModifierKind int

const (
	ModifierSkipInclude ModifierKind = iota
	ModifierAuthenticated
	ModifierRequiresScopes
	ModifierAuthorized
)

// ModifierRule is one declarative suppression rule attached to a
// Shape. Query-time rules (SkipInclude, Authenticated, RequiresScopes,
// and an @authorized application with no parent-context arguments) are
// resolved to a bitset once variables are known (modify.Evaluate).
// Response-time rules (Deferred == true: @authorized WITH parent
// context) hold a rule id and impacted shape so they can be re-checked
// once the parent object exists in the response store.
type ModifierRule struct {
	ID      int
	Kind    ModifierKind
	ShapeID int
	Plan    int

	// Skip/Include: Negate tells @skip from @include; Variable
	// non-empty means the condition comes from a variable, else
	// Literal holds the condition directly.
	Negate   bool // true for @skip, false for @include
	Variable string
	Literal  bool

	RequiredScopes []string

	Deferred bool
}

// Result is everything plan.Build produces for one bound, solved
// operation: the flat plan list (dependency order, not necessarily
// execution order — exec.Executor.Run derives that) and every modifier
// rule discovered while lowering shapes.
type Result struct {
	Plans         []*Plan
	Modifiers     []*ModifierRule
	OperationKind bind.OperationKind
}

// ByID returns the plan with the given id, or nil.
func (r *Result) ByID(id int) *Plan {
	for _, p := range r.Plans {
		if p.ID == id {
			return p
		}
	}
	return nil
}
