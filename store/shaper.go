package store

import (
	"sort"

	"github.com/fieldgraph/gateway/modify"
	"github.com/fieldgraph/gateway/plan"
)

// Shape walks a plan's root shapes against the root object the
// executor seeded for the operation, producing the final response map
// plus every error collected along the way, sorted by path (spec
// section 4.7). Suppressed fields (modify.QueryModifications) are
// omitted from the result entirely, matching scenario 5's "subgraph
// request omits `a` entirely; response omits `a`".
//
// result is the full plan.Result the shapes were built from, needed to
// resolve a cross-plan boundary (Shape.ChildPlanID >= 0): the handoff
// field's own Children live on the child plan's Root, not on the
// boundary shape itself (see exec/anchors.go's collectAnchors doc
// comment on why the child plan writes straight onto the same anchor
// object instead of a nested one).
//
// This implementation applies one simplification to the spec's
// wrapping model: a single Shape.NonNull flag governs both the list
// wrapper and its element type (the schema's `[T!]!` vs `[T]!` vs
// `[T!]` distinction collapses to one bit here), since nothing else in
// this tree distinguishes them either. @defer is out of this
// synchronous shaper's scope (see the Open Question decisions in
// DESIGN.md).
func Shape(shapes []*plan.Shape, rootObjectID int, st *Store, mods *modify.QueryModifications, result *plan.Result) (map[string]interface{}, []Error) {
	out := map[string]interface{}{}
	var errs []Error

	for _, sh := range shapes {
		if mods.Suppressed(sh.ID) {
			continue
		}
		val, ok := st.Get(rootObjectID, sh.ResponseKey)
		v, fieldErrs := shapeFieldValue(sh, val, ok, st, mods, result, Path{{Key: sh.ResponseKey}})
		errs = append(errs, fieldErrs...)
		out[sh.ResponseKey] = v
	}

	sort.SliceStable(errs, func(i, j int) bool { return lessPath(errs[i].Path, errs[j].Path) })
	return out, errs
}

// shapeFieldValue renders one field's value and reports whether a
// non-null violation at or below it requires the caller to bubble
// Null up one more level.
func shapeFieldValue(sh *plan.Shape, val Value, present bool, st *Store, mods *modify.QueryModifications, result *plan.Result, path Path) (interface{}, []Error) {
	if !present || val.Kind == KindNull {
		if sh.NonNull {
			return nil, []Error{{Message: "non-null field resolved to null", Path: path, Code: "INTERNAL_SERVER_ERROR"}}
		}
		return nil, nil
	}

	switch val.Kind {
	case KindScalar:
		return val.Scalar, nil

	case KindList:
		out := make([]interface{}, len(val.List))
		var errs []Error
		bubbled := false
		for i, item := range val.List {
			itemPath := appendPath(path, PathSegment{Index: i, IsIndex: true})
			v, ierrs := shapeFieldValue(withoutList(sh), item, true, st, mods, result, itemPath)
			errs = append(errs, ierrs...)
			if v == nil && sh.NonNull {
				bubbled = true
			}
			out[i] = v
		}
		if bubbled {
			return nil, errs
		}
		return out, errs

	case KindObject:
		return shapeObject(sh, val.Object, st, mods, result, path)

	default:
		return nil, nil
	}
}

// resolveBoundary substitutes a cross-plan boundary shape (Children
// empty, ChildPlanID pointing elsewhere) with its real shape from the
// child plan's Root, matched by response key — the two are siblings in
// the solved partition DAG by construction (solve.solveSelection adds
// one PartitionField to each side of the fork), so exactly one match
// is expected.
func resolveBoundary(sh *plan.Shape, result *plan.Result) *plan.Shape {
	if sh.ChildPlanID < 0 || result == nil {
		return sh
	}
	child := result.ByID(sh.ChildPlanID)
	if child == nil {
		return sh
	}
	for _, s := range child.Root {
		if s.ResponseKey == sh.ResponseKey {
			return s
		}
	}
	return sh
}

func shapeObject(sh *plan.Shape, objectID int, st *Store, mods *modify.QueryModifications, result *plan.Result, path Path) (interface{}, []Error) {
	sh = resolveBoundary(sh, result)

	children := sh.Children
	if sh.Discriminator != nil {
		typeName := st.TypeName(objectID)
		tc, ok := sh.Discriminator[typeName]
		if !ok {
			err := Error{Message: "no matching concrete type for polymorphic field (" + typeName + ")", Path: path, Code: "INTERNAL_SERVER_ERROR"}
			if sh.NonNull {
				return nil, []Error{err}
			}
			return nil, []Error{err}
		}
		children = tc
	}

	out := map[string]interface{}{}
	var errs []Error
	bubbled := false
	for _, child := range children {
		if mods.Suppressed(child.ID) {
			continue
		}
		val, ok := st.Get(objectID, child.ResponseKey)
		v, childErrs := shapeFieldValue(child, val, ok, st, mods, result, appendPath(path, PathSegment{Key: child.ResponseKey}))
		errs = append(errs, childErrs...)
		if v == nil && child.NonNull {
			bubbled = true
		}
		out[child.ResponseKey] = v
	}
	if bubbled {
		return nil, errs
	}
	return out, errs
}

// withoutList returns a shallow copy of sh describing one list element
// (same child/discriminator structure, List cleared so recursion
// bottoms out instead of expecting another array).
func withoutList(sh *plan.Shape) *plan.Shape {
	cp := *sh
	cp.List = false
	return &cp
}

func appendPath(p Path, seg PathSegment) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = seg
	return out
}

func lessPath(a, b Path) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i].IsIndex != b[i].IsIndex {
			return !a[i].IsIndex
		}
		if a[i].IsIndex {
			if a[i].Index != b[i].Index {
				return a[i].Index < b[i].Index
			}
			continue
		}
		if a[i].Key != b[i].Key {
			return a[i].Key < b[i].Key
		}
	}
	return len(a) < len(b)
}
