package store

import "github.com/fieldgraph/gateway/schema"

// Representation builds the `{__typename, ...key-fields}` object the
// executor sends as one element of an `_entities(representations:)`
// array, by reading the key FieldSet straight off the arena object a
// parent plan already wrote (spec section 6's subgraph transport
// contract, section 4.6 step 2 "Gather representations").
func Representation(st *Store, objectID int, keyFields *schema.FieldSet) map[string]interface{} {
	rep := map[string]interface{}{"__typename": st.TypeName(objectID)}
	fillFieldSet(st, objectID, keyFields, rep)
	return rep
}

func fillFieldSet(st *Store, objectID int, fs *schema.FieldSet, out map[string]interface{}) {
	if fs == nil {
		return
	}
	for _, entry := range fs.Fields {
		val, ok := st.Get(objectID, entry.Name)
		if !ok {
			continue
		}
		switch {
		case entry.Sub != nil && val.Kind == KindObject:
			sub := map[string]interface{}{}
			fillFieldSet(st, val.Object, entry.Sub, sub)
			out[entry.Name] = sub
		case val.Kind == KindScalar:
			out[entry.Name] = val.Scalar
		}
	}
}
