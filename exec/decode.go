package exec

import (
	"github.com/fieldgraph/gateway/plan"
	"github.com/fieldgraph/gateway/store"
)

// decodeInto writes one subgraph response object's fields into an
// already-allocated arena object, following shapes to know which
// fields are themselves objects/lists that need their own arena slots
// (spec section 4.6 step 5 "stream-deserialize directly into the
// store", collapsed here into one decode pass since the whole
// response body is already in memory by the time transport returns).
func decodeInto(st *store.Store, shapes []*plan.Shape, objectID int, data map[string]interface{}) {
	if data == nil {
		return
	}
	for _, sh := range shapes {
		if sh.FieldName == "__typename" {
			continue
		}
		raw, ok := data[sh.ResponseKey]
		if !ok {
			continue
		}
		st.Set(objectID, sh.ResponseKey, decodeValue(st, sh, raw))
	}
}

func decodeValue(st *store.Store, sh *plan.Shape, raw interface{}) store.Value {
	if raw == nil {
		return store.Value{Kind: store.KindNull}
	}

	if sh.List {
		arr, ok := raw.([]interface{})
		if !ok {
			return store.Value{Kind: store.KindNull}
		}
		elem := shapeWithoutList(sh)
		list := make([]store.Value, len(arr))
		for i, item := range arr {
			list[i] = decodeValue(st, elem, item)
		}
		return store.Value{Kind: store.KindList, List: list}
	}

	switch {
	case sh.Discriminator != nil || len(sh.Children) > 0:
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return store.Value{Kind: store.KindNull}
		}
		typeName, _ := obj["__typename"].(string)
		if typeName == "" {
			typeName = sh.TypeName
		}
		id := st.NewObject(typeName)
		children := sh.Children
		if sh.Discriminator != nil {
			children = sh.Discriminator[typeName]
		}
		decodeInto(st, children, id, obj)
		return store.Value{Kind: store.KindObject, Object: id}

	default:
		return store.Value{Kind: store.KindScalar, Scalar: raw}
	}
}

// shapeWithoutList returns a shallow copy of sh describing one list
// element, mirroring store.withoutList's same simplification (one
// NonNull flag for both list and element nullability).
func shapeWithoutList(sh *plan.Shape) *plan.Shape {
	cp := *sh
	cp.List = false
	return &cp
}
