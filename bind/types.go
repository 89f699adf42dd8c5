// Package bind consumes a parsed GraphQL query document (vektah/gqlparser/v2
// ast.QueryDocument) and a schema.View, and produces a BoundOperation: a
// selection tree where every field has been resolved against the
// supergraph, every fragment spread has been expanded onto the fields
// it applies to (never duplicated), and every argument name has been
// checked against the field's declared arguments. Argument values are
// not checked against the argument's declared type.
package bind

import "github.com/fieldgraph/gateway/schema"

// OperationKind mirrors the three GraphQL root operation kinds.
type OperationKind int

const (
	OperationQuery OperationKind = iota
	OperationMutation
	OperationSubscription
)

func (k OperationKind) String() string {
	switch k {
	case OperationMutation:
		return "mutation"
	case OperationSubscription:
		return "subscription"
	default:
		return "query"
	}
}

// BoundOperation is the validated, fragment-expanded form of one
// executable operation within a request document.
type BoundOperation struct {
	Kind         OperationKind
	Name         string
	RootType     string
	Selection    *SelectionSet
	Variables    map[string]*VariableDefinition
	NormalizedText string
	Complexity   int
}

// VariableDefinition is a declared `$name: Type = default` from the
// operation signature.
type VariableDefinition struct {
	Name    string
	Type    *schema.TypeRef
	Default *Value
}

// SelectionSet is a normalized selection: fields hold every concrete
// selection made directly on the enclosing type, keyed by response
// key (alias or name) with no duplicates. TypeFragments, when
// non-empty, means the enclosing type is abstract (interface/union)
// and each entry describes the additional fields selected only when
// the runtime object is of that concrete type.
type SelectionSet struct {
	ParentType    string
	Fields        []*BoundField
	TypeFragments map[string]*SelectionSet
}

// FieldByKey looks up a field already merged into this selection set
// by its response key.
func (s *SelectionSet) FieldByKey(key string) *BoundField {
	if s == nil {
		return nil
	}
	for _, f := range s.Fields {
		if f.ResponseKey == key {
			return f
		}
	}
	return nil
}

// BoundField is one selected field, resolved against the schema.
type BoundField struct {
	ResponseKey string // alias, or Name if unaliased
	Name        string
	ParentType  string
	Def         *schema.FieldDefinition // nil for __typename
	Args        map[string]*Argument
	Selection   *SelectionSet // nil for scalar/enum leaves
	Directives  []Directive
	Location    Location
}

// Argument is one resolved field argument: either a literal Value or a
// reference to a declared variable (resolved at execution time by the
// modify package).
type Argument struct {
	Name     string
	Variable string // non-empty if this argument forwards a variable
	Literal  *Value // non-nil if this argument is a literal
}

// ValueKind mirrors gqlparser's ast.ValueKind enumeration for literal
// argument/default values captured off the AST.
type ValueKind int

const (
	ValueVariable ValueKind = iota
	ValueInt
	ValueFloat
	ValueString
	ValueBoolean
	ValueNull
	ValueEnum
	ValueList
	ValueObject
)

// Value is a literal (or variable-reference) value captured from the
// query text, kept in AST-adjacent form so modify.EvaluateArguments can
// coerce it against the declared argument/variable type at request time.
type Value struct {
	Kind     ValueKind
	Raw      string
	Variable string
	Children []*ObjectField
	Items    []*Value
}

// ObjectField is one field of an object-literal Value.
type ObjectField struct {
	Name  string
	Value *Value
}

// Directive is a directive application retained on a bound field for
// later evaluation by the modify package (@skip, @include,
// @authenticated, @requiresScopes, @authorized all flow through here —
// see spec section 4.5 and SPEC_FULL.md section 4 on how they compose).
type Directive struct {
	Name string
	Args map[string]*Argument
}

// Location is a source position, carried on validation errors.
type Location struct {
	Line   int
	Column int
}
