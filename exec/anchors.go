package exec

import (
	"github.com/fieldgraph/gateway/plan"
	"github.com/fieldgraph/gateway/store"
)

// Anchor pairs an object already written to the store with the
// response path that reaches it — the same path the shaper would
// walk to render it. Carrying the path alongside the id lets a
// subgraph failure attach its store.Error at the exact response
// position the failed plan would have written to (spec section 4.6
// step 5 / section 7's "subgraph errors are localized to the paths
// their plans would have written"), including the list index a
// boundary crossing under a `[T]` field needs.
type Anchor struct {
	ObjectID int
	Path     store.Path
}

// collectAnchors walks a parent plan's own shape tree (never crossing
// into an already-resolved child plan) starting from its root object
// ids, looking for the selection level where childPlanID takes over.
// The boundary always lives on the entity itself (a @join__field moving
// to a different subgraph never changes which object is the entity),
// so the anchor objects for childPlanID are simply the object ids
// already in scope at the selection level where the boundary shape
// appears — never a value read out of the boundary field itself, since
// nothing was ever requested there (see query.go's renderSelection).
// Each returned Anchor's Path is its parent's Path plus the field keys
// and list indices walked to reach it, ending at the boundary shape's
// own response key.
func collectAnchors(st *store.Store, shapes []*plan.Shape, anchors []Anchor, childPlanID int) []Anchor {
	var out []Anchor
	for _, sh := range shapes {
		if sh.ChildPlanID == childPlanID {
			for _, a := range anchors {
				out = append(out, Anchor{ObjectID: a.ObjectID, Path: appendPath(a.Path, store.PathSegment{Key: sh.ResponseKey})})
			}
		}
	}

	for _, sh := range shapes {
		if sh.ChildPlanID >= 0 {
			continue
		}
		if sh.Discriminator == nil && len(sh.Children) == 0 {
			continue
		}
		for _, a := range anchors {
			val, ok := st.Get(a.ObjectID, sh.ResponseKey)
			if !ok || val.Kind == store.KindNull {
				continue
			}
			objs := objectAnchors(val, appendPath(a.Path, store.PathSegment{Key: sh.ResponseKey}))
			if len(objs) == 0 {
				continue
			}
			if sh.Discriminator != nil {
				byType := make(map[string][]Anchor)
				for _, o := range objs {
					t := st.TypeName(o.ObjectID)
					byType[t] = append(byType[t], o)
				}
				for typeName, group := range byType {
					if cs, ok := sh.Discriminator[typeName]; ok {
						out = append(out, collectAnchors(st, cs, group, childPlanID)...)
					}
				}
				continue
			}
			out = append(out, collectAnchors(st, sh.Children, objs, childPlanID)...)
		}
	}
	return dedupeAnchors(out)
}

// objectAnchors flattens a stored field's value into the objects it
// holds, tagging each with the path segment (a list index, for a
// KindList) needed to reach it from base.
func objectAnchors(v store.Value, base store.Path) []Anchor {
	switch v.Kind {
	case store.KindObject:
		return []Anchor{{ObjectID: v.Object, Path: base}}
	case store.KindList:
		var out []Anchor
		for i, item := range v.List {
			out = append(out, objectAnchors(item, appendPath(base, store.PathSegment{Index: i, IsIndex: true}))...)
		}
		return out
	default:
		return nil
	}
}

func appendPath(p store.Path, seg store.PathSegment) store.Path {
	out := make(store.Path, len(p)+1)
	copy(out, p)
	out[len(p)] = seg
	return out
}

func dedupeAnchors(anchors []Anchor) []Anchor {
	if len(anchors) < 2 {
		return anchors
	}
	seen := make(map[int]bool, len(anchors))
	out := anchors[:0]
	for _, a := range anchors {
		if !seen[a.ObjectID] {
			seen[a.ObjectID] = true
			out = append(out, a)
		}
	}
	return out
}
