package schema

import (
	"sort"
	"sync/atomic"

	"github.com/samsarahq/go/oops"
)

// View is the immutable, indexed supergraph used by the binder, solver,
// and planner. It is built once by Build and shared by reference
// (see Store for hot-reload semantics).
type View struct {
	QueryType        string
	MutationType     string
	SubscriptionType string

	Definitions map[string]*Definition
	Subgraphs   map[string]*Subgraph

	// SubgraphNames is Subgraphs' keys, sorted, for deterministic
	// iteration wherever the solver needs a stable tie-break.
	SubgraphNames []string

	// Version is a content fingerprint of the supergraph SDL this View
	// was built from — part of the operation cache key (spec section
	// 4.8) so a hot-reload with a changed schema never serves a plan
	// compiled against the previous one.
	Version string
}

// BuildError describes a structural problem discovered while validating
// the supergraph at load time (spec.md 4.1: "all invariants validated at
// schema-load time").
type BuildError struct {
	Directive string
	Detail    string
}

func (e *BuildError) Error() string {
	return oops.Errorf("schema build error at %s: %s", e.Directive, e.Detail).Error()
}

// Definition looks up a named type, or nil if it doesn't exist.
func (v *View) Definition(name string) *Definition {
	return v.Definitions[name]
}

// Field looks up a field definition on a named parent type.
func (v *View) Field(parent, name string) *FieldDefinition {
	def := v.Definitions[parent]
	if def == nil {
		return nil
	}
	return def.Fields[name]
}

// RootType returns the Definition for the given operation kind
// ("query", "mutation", "subscription").
func (v *View) RootType(operationKind string) *Definition {
	switch operationKind {
	case "query":
		return v.Definitions[v.QueryType]
	case "mutation":
		return v.Definitions[v.MutationType]
	case "subscription":
		return v.Definitions[v.SubscriptionType]
	default:
		return nil
	}
}

// KeyFieldSet returns the @key FieldSet the given subgraph requires to
// resolve the named entity type via `_entities`, or nil if that
// subgraph doesn't own a key for it.
func (v *View) KeyFieldSet(typeName, subgraph string) *FieldSet {
	def := v.Definitions[typeName]
	if def == nil || def.Keys == nil {
		return nil
	}
	return def.Keys[subgraph]
}

// ResolvableIn reports whether the field can be resolved directly by
// the given subgraph.
func (f *FieldDefinition) ResolvableIn(subgraph string) bool {
	return f != nil && f.Services[subgraph]
}

// RequiresFor returns the FieldSet the given subgraph needs supplied by
// a parent partition to resolve this field, or nil if it needs nothing
// extra.
func (f *FieldDefinition) RequiresFor(subgraph string) *FieldSet {
	if f == nil || f.Requires == nil {
		return nil
	}
	return f.Requires[subgraph]
}

// ProvidesFor returns the FieldSet made available on the returned entity
// as a side effect of resolving this field in the given subgraph.
func (f *FieldDefinition) ProvidesFor(subgraph string) *FieldSet {
	if f == nil || f.Provides == nil {
		return nil
	}
	return f.Provides[subgraph]
}

// ServiceNames returns the sorted list of subgraphs able to resolve this
// field directly — sorted so callers get deterministic tie-breaks for
// free (spec.md 4.3: "stable id ordering").
func (f *FieldDefinition) ServiceNames() []string {
	names := make([]string, 0, len(f.Services))
	for name, ok := range f.Services {
		if ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// IsSubtypeOf reports whether the object/interface named objName is a
// member of the interface or union named abstractName.
func (v *View) IsSubtypeOf(objName, abstractName string) bool {
	abstract := v.Definitions[abstractName]
	if abstract == nil {
		return false
	}
	switch abstract.Kind {
	case KindUnion:
		for _, t := range abstract.PossibleTypes {
			if t == objName {
				return true
			}
		}
	case KindInterface:
		for _, t := range abstract.Implementors {
			if t == objName {
				return true
			}
		}
	}
	return false
}

// PossibleTypes returns every concrete object type conforming to the
// named interface or union (or, for an object, just itself).
func (v *View) PossibleTypes(name string) []string {
	def := v.Definitions[name]
	if def == nil {
		return nil
	}
	switch def.Kind {
	case KindUnion:
		out := append([]string(nil), def.PossibleTypes...)
		sort.Strings(out)
		return out
	case KindInterface:
		out := append([]string(nil), def.Implementors...)
		sort.Strings(out)
		return out
	default:
		return []string{name}
	}
}

// Store holds the process-scoped schema handle, atomically replaced on
// hot-reload so that readers observe a consistent snapshot for the
// lifetime of one request (spec.md 9, "Global mutable state").
type Store struct {
	current atomic.Pointer[View]
}

func NewStore(initial *View) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

func (s *Store) Load() *View {
	return s.current.Load()
}

func (s *Store) Replace(v *View) {
	s.current.Store(v)
}
