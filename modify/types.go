// Package modify validates runtime variable values against their
// declared types and evaluates query-time modifier rules (spec
// section 4.5) into the bitset plan execution consults.
package modify

import "fmt"

// Variables is the runtime value map, already JSON-decoded by the
// ingress layer (numbers as float64/json.Number, objects as
// map[string]interface{}, per the host's JSON decoder).
type Variables map[string]interface{}

// AuthContext is the minimal per-request identity the @authenticated
// and @requiresScopes modifiers evaluate against. Supplying it is an
// external-collaborator concern (spec section 1); the gateway only
// consumes it.
type AuthContext struct {
	Authenticated bool
	Scopes        []string
}

// VariableError reports a variable that fails validation against its
// declared type (spec section 4.5: "missing non-null -> error", "one-of
// input object rules enforced").
type VariableError struct {
	Name   string
	Detail string
}

func (e *VariableError) Error() string {
	return fmt.Sprintf("variable $%s: %s", e.Name, e.Detail)
}

// QueryModifications is the result of evaluating every query-time
// modifier rule once request variables and auth context are known.
// Response-time (@authorized-with-parent-context) rules are carried
// through unevaluated for the executor to re-check once parent objects
// exist in the response store.
type QueryModifications struct {
	suppressed map[int]bool
	Deferred   []DeferredCheck
}

// DeferredCheck is one @authorized rule that needs a parent object in
// hand before it can be decided.
type DeferredCheck struct {
	RuleID  int
	ShapeID int
	PlanID  int
}

// Suppressed reports whether the field described by the given shape id
// should be elided from the response; the shaper omits a suppressed
// field entirely, whether or not the field is non-null.
func (m *QueryModifications) Suppressed(shapeID int) bool {
	return m != nil && m.suppressed[shapeID]
}

// Suppress marks a shape id suppressed after the fact — used by the
// executor to resolve a DeferredCheck once the parent object it needed
// exists in the response store (spec section 4.5's response-time
// @authorized family).
func (m *QueryModifications) Suppress(shapeID int) {
	if m.suppressed == nil {
		m.suppressed = make(map[int]bool)
	}
	m.suppressed[shapeID] = true
}
