// Package solve implements the query solver (spec section 4.3): given a
// bind.BoundOperation and a schema.View, it assigns every field to the
// subgraph that should resolve it and emits a DAG of query partitions
// connected by data-dependency edges.
package solve

import (
	"github.com/fieldgraph/gateway/bind"
	"github.com/fieldgraph/gateway/schema"
)

// Partition is a contiguous region of the selection tree resolved by a
// single subgraph in a single request. Partitions form a DAG: a child
// partition depends on its Parent having already resolved the entity
// its Requires FieldSet is drawn from.
type Partition struct {
	ID         int
	Subgraph   string
	ParentType string // the entity type this partition resolves fields on

	// Path is the response-key path from the operation root to the
	// field whose subgraph switch created this partition (empty for
	// the root partition).
	Path []string

	// Requires is the FieldSet the subgraph needs supplied (as an
	// _entities representation) by Parent before this partition can
	// run; nil for the root partition.
	Requires *schema.FieldSet

	Selection *PartitionSelection

	Parent   *Partition
	Children []*Partition

	// Sequence is set only on mutation-root partitions: source order
	// among top-level mutation fields, which GraphQL mutation
	// semantics make observable (spec section 4.3 step 5b).
	Sequence int
}

// PartitionSelection mirrors bind.SelectionSet for the fields one
// partition fetches; a field whose subselection moves to another
// partition carries that partition in its Child.
type PartitionSelection struct {
	ParentType    string
	Fields        []*PartitionField
	TypeFragments map[string]*PartitionSelection
}

// PartitionField is one field assigned to the enclosing partition,
// plus (if its own return type needed a different subgraph) the child
// partition covering its subselection.
type PartitionField struct {
	ResponseKey string
	Name        string
	Def         *schema.FieldDefinition
	Bound       *bind.BoundField

	// Selection is non-nil when the field's subselection is resolved
	// by the SAME partition (same subgraph, no boundary crossed).
	Selection *PartitionSelection

	// Child is non-nil when the field's subselection needed a
	// different subgraph, in which case Selection is nil and the
	// field's result is filled in by executing Child.
	Child *Partition
}

// Solution is the root of the partition DAG plus bookkeeping the
// planner needs next.
type Solution struct {
	Root        *Partition
	OperationKind bind.OperationKind
}

// SolveError is the failure taxonomy for solve.Solve (spec section 4.3).
type SolveError struct {
	Kind         SolveErrorKind
	MissingField string
	Path         []string
	Type         string
}

type SolveErrorKind int

const (
	Unsatisfiable SolveErrorKind = iota
	NoResolver
)

func (e *SolveError) Error() string {
	switch e.Kind {
	case NoResolver:
		return "solve: no resolver for type " + e.Type
	default:
		return "solve: unsatisfiable, missing field " + e.MissingField
	}
}
