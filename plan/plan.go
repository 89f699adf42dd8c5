package plan

import (
	"github.com/fieldgraph/gateway/bind"
	"github.com/fieldgraph/gateway/solve"
)

// Build lowers a solved partition DAG into a flat Result (spec section
// 4.4). Every non-virtual partition becomes exactly one Plan; the
// virtual root partition (solve.Partition with an empty Subgraph) only
// ever appears as ParentPlanID == -1 on its immediate children.
func Build(sol *solve.Solution) (*Result, error) {
	b := &builder{
		result:          &Result{OperationKind: sol.OperationKind},
		planByPartition: make(map[*solve.Partition]*Plan),
	}

	var order []*solve.Partition
	var walk func(*solve.Partition)
	walk = func(p *solve.Partition) {
		order = append(order, p)
		for _, c := range p.Children {
			walk(c)
		}
	}
	walk(sol.Root)

	nextPlanID := 0
	for _, part := range order {
		if part.Subgraph == "" {
			continue
		}
		pl := &Plan{ID: nextPlanID, Subgraph: part.Subgraph, Requires: part.Requires, Sequence: -1, Path: part.Path}
		nextPlanID++
		b.planByPartition[part] = pl
		b.result.Plans = append(b.result.Plans, pl)
	}

	for _, part := range order {
		pl := b.planByPartition[part]
		if pl == nil {
			continue
		}

		if parentPlan, ok := b.planByPartition[part.Parent]; ok {
			pl.ParentPlanID = parentPlan.ID
			pl.EntityType = part.ParentType
		} else {
			pl.ParentPlanID = -1
		}

		if sol.OperationKind == bind.OperationMutation && part.Parent == sol.Root {
			pl.Sequence = part.Sequence
		}

		pl.Root = b.buildShapeList(part.Selection, pl.ID)
	}

	return b.result, nil
}

type builder struct {
	result          *Result
	planByPartition map[*solve.Partition]*Plan
	nextShapeID     int
	nextModID       int
}

func (b *builder) buildShapeList(sel *solve.PartitionSelection, planID int) []*Shape {
	if sel == nil {
		return nil
	}
	shapes := make([]*Shape, 0, len(sel.Fields))
	for _, f := range sel.Fields {
		shapes = append(shapes, b.buildShape(f, planID))
	}
	return shapes
}

func (b *builder) buildShape(f *solve.PartitionField, planID int) *Shape {
	sh := &Shape{ID: b.nextShapeID, ResponseKey: f.ResponseKey, FieldName: f.Name, ChildPlanID: -1}
	b.nextShapeID++

	if f.Name == "__typename" {
		sh.TypeName = "String"
		sh.NonNull = true
		return sh
	}

	if f.Def != nil && f.Def.Type != nil {
		sh.List = f.Def.Type.List != nil
		sh.NonNull = f.Def.Type.NonNull
		sh.TypeName = f.Def.Type.InnerName()
	}

	switch {
	case f.Child != nil:
		if childPlan, ok := b.planByPartition[f.Child]; ok {
			sh.ChildPlanID = childPlan.ID
		}
	case f.Selection != nil && len(f.Selection.TypeFragments) > 0:
		sh.Discriminator = make(map[string][]*Shape, len(f.Selection.TypeFragments))
		for typeName, tf := range f.Selection.TypeFragments {
			sh.Discriminator[typeName] = b.buildShapeList(tf, planID)
		}
	case f.Selection != nil:
		sh.Children = b.buildShapeList(f.Selection, planID)
	}

	if f.Bound != nil {
		sh.Modifiers = b.collectModifiers(f.Bound, sh.ID, planID)
		sh.Args = f.Bound.Args
	}

	return sh
}

// collectModifiers turns the directive applications retained on a bound
// field into ModifierRule records (spec section 4.4 "Modifiers";
// SPEC_FULL.md section 4 on @authenticated/@requiresScopes composing
// with @skip/@include into the same suppressed-field bitset).
//
// An @authorized application is treated as response-time (Deferred)
// whenever it carries arguments — the common shape for
// "@authorized(fields: \"...\")" rules that need a parent object to
// evaluate — and query-time otherwise.
func (b *builder) collectModifiers(bf *bind.BoundField, shapeID, planID int) []int {
	var ids []int
	add := func(rule *ModifierRule) {
		rule.ID = b.nextModID
		b.nextModID++
		b.result.Modifiers = append(b.result.Modifiers, rule)
		ids = append(ids, rule.ID)
	}

	for _, d := range bf.Directives {
		switch d.Name {
		case "skip", "include":
			rule := &ModifierRule{Kind: ModifierSkipInclude, ShapeID: shapeID, Plan: planID, Negate: d.Name == "skip"}
			if arg := d.Args["if"]; arg != nil {
				if arg.Variable != "" {
					rule.Variable = arg.Variable
				} else if arg.Literal != nil {
					rule.Literal = arg.Literal.Raw == "true"
				}
			}
			add(rule)

		case "authenticated":
			add(&ModifierRule{Kind: ModifierAuthenticated, ShapeID: shapeID, Plan: planID})

		case "requiresScopes":
			rule := &ModifierRule{Kind: ModifierRequiresScopes, ShapeID: shapeID, Plan: planID}
			if arg := d.Args["scopes"]; arg != nil && arg.Literal != nil {
				for _, item := range arg.Literal.Items {
					if item != nil {
						rule.RequiredScopes = append(rule.RequiredScopes, item.Raw)
					}
				}
			}
			add(rule)

		case "authorized":
			add(&ModifierRule{Kind: ModifierAuthorized, ShapeID: shapeID, Plan: planID, Deferred: len(d.Args) > 0})
		}
	}

	return ids
}
