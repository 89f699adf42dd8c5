// Package schema holds the read-only, indexed view of a federated
// supergraph: the set of type definitions, field definitions, and the
// per-subgraph metadata (resolvability, @requires, @provides) that the
// solver and planner consult to decide which subgraph should resolve
// each field.
//
// Everything here is built once, by Build, and never mutated afterward;
// readers of a *View observe a single consistent snapshot for the
// lifetime of a request even while a newer View is being built for a
// hot-reload (see Store).
package schema

import "fmt"

// Kind identifies which concrete shape a Definition has.
type Kind int

const (
	KindObject Kind = iota
	KindInterface
	KindUnion
	KindEnum
	KindInputObject
	KindScalar
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "OBJECT"
	case KindInterface:
		return "INTERFACE"
	case KindUnion:
		return "UNION"
	case KindEnum:
		return "ENUM"
	case KindInputObject:
		return "INPUT_OBJECT"
	case KindScalar:
		return "SCALAR"
	default:
		return "UNKNOWN"
	}
}

// TypeRef describes a field or argument type: nullable-wrapping and
// list-wrapping around an inner named definition.
type TypeRef struct {
	NonNull bool
	List    *TypeRef // non-nil for list types; Name/NonNull below describe the element
	Name    string   // name of the inner Definition, empty when List != nil
}

func (t *TypeRef) String() string {
	if t == nil {
		return "<nil>"
	}
	var s string
	if t.List != nil {
		s = fmt.Sprintf("[%s]", t.List.String())
	} else {
		s = t.Name
	}
	if t.NonNull {
		s += "!"
	}
	return s
}

// InnerName returns the name of the named type at the bottom of any
// list/non-null wrapping.
func (t *TypeRef) InnerName() string {
	for t.List != nil {
		t = t.List
	}
	return t.Name
}

// Definition is a named type in the supergraph: an object, interface,
// union, enum, input object, or scalar.
type Definition struct {
	Name      string
	Kind      Kind
	Directives []Directive

	// Object / Interface
	Fields map[string]*FieldDefinition
	// Interfaces this object/interface implements.
	Interfaces []string
	// Interface: concrete object types implementing it.
	Implementors []string

	// Union
	PossibleTypes []string

	// Enum
	EnumValues []string

	// InputObject
	InputFields map[string]*TypeRef
	// OneOf is true when an InputObject is declared "@oneOf": exactly
	// one of InputFields may be set on any value of this type.
	OneOf bool

	// Keys maps subgraph name to the @key FieldSet that subgraph
	// requires in an `_entities(representations:)` call to resolve this
	// entity (Object/Interface only; nil elsewhere).
	Keys map[string]*FieldSet
}

// Directive is a directive application with its argument values, used
// both for join-spec directives (@join__field, @join__type, ...) on
// schema definitions and for composition directives (@authenticated,
// @requiresScopes, @authorized, @inaccessible, @tag, @shareable,
// @override) that affect planning.
type Directive struct {
	Name string
	Args map[string]interface{}
}

// Argument describes a single argument a field accepts.
type Argument struct {
	Name string
	Type *TypeRef
}

// FieldSet is a recursive selection used to express @key, @requires, and
// @provides: a set of field names, each optionally with its own nested
// FieldSet (for selecting into a sub-object).
type FieldSet struct {
	Fields []FieldSetEntry
}

// FieldSetEntry is one field (and optional sub-selection) within a FieldSet.
type FieldSetEntry struct {
	Name string
	Sub  *FieldSet
}

// Empty reports whether the field set selects nothing.
func (fs *FieldSet) Empty() bool {
	return fs == nil || len(fs.Fields) == 0
}

// Names returns the top-level field names in the set.
func (fs *FieldSet) Names() []string {
	if fs == nil {
		return nil
	}
	names := make([]string, 0, len(fs.Fields))
	for _, f := range fs.Fields {
		names = append(names, f.Name)
	}
	return names
}

// FieldDefinition describes one field of an Object or Interface
// definition: its type, arguments, and the per-subgraph federation
// metadata the solver needs to decide where to resolve it.
type FieldDefinition struct {
	Parent string // owning Definition.Name
	Name   string
	Type   *TypeRef
	Args   map[string]*Argument

	// Services lists every subgraph that can resolve this field directly.
	Services map[string]bool

	// Requires maps subgraph name to the FieldSet that subgraph needs
	// supplied by a parent partition before it can resolve this field
	// (the @requires directive).
	Requires map[string]*FieldSet

	// Provides maps subgraph name to the FieldSet that resolving this
	// field also makes available on the returned entity, without an
	// additional subgraph hop (the @provides directive).
	Provides map[string]*FieldSet

	// Shareable is true if @shareable allows more than one subgraph to
	// resolve this field without it being considered ambiguous.
	Shareable bool

	// Inaccessible records @inaccessible on the field. Neither the
	// binder nor the shaper reads it, so such a field is still
	// queryable and still appears in responses.
	Inaccessible bool

	Directives []Directive
}

// Subgraph describes one federated GraphQL service: identity, transport
// endpoint, and the resiliency policy the executor applies to calls
// against it.
type Subgraph struct {
	Name      string
	URL       string
	Headers   []HeaderRule
	Timeout   int64 // milliseconds
	Retry     RetryPolicy
	CacheTTL  int64 // milliseconds, copied from config; the executor's entity cache does not read it
}

// HeaderRuleAction is one of Forward/Insert/Remove/RenameDuplicate.
type HeaderRuleAction int

const (
	HeaderForward HeaderRuleAction = iota
	HeaderInsert
	HeaderRemove
	HeaderRenameDuplicate
)

// HeaderRule is one entry of a subgraph's (or the global) header
// forwarding configuration. Rules are applied in declaration order;
// later rules for the same header name win (see transport.ApplyHeaderRules).
type HeaderRule struct {
	Action  HeaderRuleAction
	Name    string
	Value   string
	Pattern string
	Rename  string
}

// RetryPolicy configures bounded exponential-backoff retries for calls
// to a subgraph.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval int64 // milliseconds
	MaxInterval     int64 // milliseconds
	RetryMutations  bool
}
