package solve

import (
	"github.com/fieldgraph/gateway/bind"
	"github.com/fieldgraph/gateway/schema"
)

// Solve assigns every selected field to a subgraph and emits the
// partition DAG (spec section 4.3). It implements the described
// Steiner-tree-style selection as a single-pass greedy grower: fields
// are visited once, in query order, and assigned to whichever
// resolvable subgraph is cheapest given the partition already in
// progress at that point in the tree. Because growth only ever moves
// from an already-placed parent field to its children, the result
// can never contain a dependency cycle — post-processing step 5(c)
// (cycle splitting) has nothing to do by construction.
func Solve(view *schema.View, op *bind.BoundOperation) (*Solution, error) {
	s := &solver{view: view}
	root := s.newPartition("", nil, nil)
	root.ParentType = op.RootType

	sel, err := s.solveSelection(op.Selection, root, "")
	if err != nil {
		return nil, err
	}
	root.Selection = sel

	if op.Kind == bind.OperationMutation {
		assignMutationSequence(root)
	}

	return &Solution{Root: root, OperationKind: op.Kind}, nil
}

type solver struct {
	view   *schema.View
	nextID int
}

func (s *solver) newPartition(subgraph string, parent *Partition, requires *schema.FieldSet) *Partition {
	p := &Partition{ID: s.nextID, Subgraph: subgraph, Parent: parent, Requires: requires}
	s.nextID++
	if parent != nil {
		parent.Children = append(parent.Children, p)
	}
	return p
}

// solveSelection assigns every field of sel to a partition. homePartition
// is the partition already resolving the enclosing object (its
// subgraph is homeSubgraph); fields resolvable there stay put, fields
// that need a different subgraph fork a new (or reused, for siblings
// landing on the same subgraph) child partition.
func (s *solver) solveSelection(sel *bind.SelectionSet, homePartition *Partition, homeSubgraph string) (*PartitionSelection, error) {
	if sel == nil {
		return nil, nil
	}

	out := &PartitionSelection{ParentType: sel.ParentType}
	pool := map[string]*Partition{homeSubgraph: homePartition}

	for _, f := range sel.Fields {
		if f.Name == "__typename" {
			// Assigned to whichever partition already touches the
			// parent (spec section 4.3 step 5d): the home partition.
			out.Fields = append(out.Fields, &PartitionField{ResponseKey: f.ResponseKey, Name: f.Name})
			continue
		}

		candidates := f.Def.ServiceNames()
		if len(candidates) == 0 {
			return nil, &SolveError{Kind: NoResolver, Type: sel.ParentType, MissingField: f.Name, Path: []string{f.ResponseKey}}
		}
		chosen := chooseService(homeSubgraph, candidates, f.Def)

		if chosen == homeSubgraph {
			pf := &PartitionField{ResponseKey: f.ResponseKey, Name: f.Name, Def: f.Def, Bound: f}
			childSel, err := s.solveSelection(f.Selection, homePartition, chosen)
			if err != nil {
				return nil, err
			}
			pf.Selection = childSel
			out.Fields = append(out.Fields, pf)
			continue
		}

		child, ok := pool[chosen]
		if !ok {
			child = s.newPartition(chosen, homePartition, f.Def.RequiresFor(chosen))
			child.ParentType = sel.ParentType
			child.Path = append(append([]string{}, homePartition.Path...), f.ResponseKey)
			child.Selection = &PartitionSelection{ParentType: sel.ParentType}
			pool[chosen] = child
		}

		childField := &PartitionField{ResponseKey: f.ResponseKey, Name: f.Name, Def: f.Def, Bound: f}
		childSel, err := s.solveSelection(f.Selection, child, chosen)
		if err != nil {
			return nil, err
		}
		childField.Selection = childSel
		child.Selection.Fields = append(child.Selection.Fields, childField)

		out.Fields = append(out.Fields, &PartitionField{ResponseKey: f.ResponseKey, Name: f.Name, Def: f.Def, Bound: f, Child: child})
	}

	if len(sel.TypeFragments) > 0 {
		out.TypeFragments = make(map[string]*PartitionSelection, len(sel.TypeFragments))
		for typeName, tf := range sel.TypeFragments {
			sub, err := s.solveSelection(tf, homePartition, homeSubgraph)
			if err != nil {
				return nil, err
			}
			out.TypeFragments[typeName] = sub
		}
	}

	return out, nil
}

// chooseService picks the cheapest candidate subgraph for a field
// given the subgraph already in progress (spec section 4.3 step 2's
// cost model, collapsed to its two dominant terms: reuse is free, a
// new hop costs a flat penalty plus one unit per field it additionally
// requires). Candidates arrive pre-sorted alphabetically
// (schema.FieldDefinition.ServiceNames), so a strict less-than keeps
// the alphabetically earliest name on a cost tie — the @shareable
// tie-break spec section 9 calls for.
func chooseService(currentSubgraph string, candidates []string, fd *schema.FieldDefinition) string {
	best := candidates[0]
	bestCost := serviceCost(currentSubgraph, best, fd)
	for _, c := range candidates[1:] {
		cost := serviceCost(currentSubgraph, c, fd)
		if cost < bestCost {
			best, bestCost = c, cost
		}
	}
	return best
}

const newHopCost = 10

func serviceCost(currentSubgraph, candidate string, fd *schema.FieldDefinition) int {
	if candidate == currentSubgraph {
		return 0
	}
	cost := newHopCost
	if reqs := fd.RequiresFor(candidate); reqs != nil {
		cost += len(reqs.Names())
	}
	if prov := fd.ProvidesFor(currentSubgraph); prov != nil && !prov.Empty() {
		cost -= 1 // a @provides shortcut on the field we just resolved makes staying attractive
	}
	return cost
}

// assignMutationSequence numbers each distinct top-level mutation
// partition in source order (spec section 4.3 step 5b: mutation field
// order is observable).
func assignMutationSequence(root *Partition) {
	if root.Selection == nil {
		return
	}
	seq := 0
	seen := make(map[*Partition]bool)
	for _, f := range root.Selection.Fields {
		if f.Child == nil || seen[f.Child] {
			continue
		}
		f.Child.Sequence = seq
		seq++
		seen[f.Child] = true
	}
}
