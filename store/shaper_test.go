package store_test

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldgraph/gateway/modify"
	"github.com/fieldgraph/gateway/plan"
	"github.com/fieldgraph/gateway/store"
)

func TestShape_NullBubblesToNearestNullableAncestor(t *testing.T) {
	st := store.New()
	root := st.NewObject("Query")
	user := st.NewObject("User")
	st.Set(root, "user", store.Value{Kind: store.KindObject, Object: user})
	st.Set(user, "id", store.Value{Kind: store.KindScalar, Scalar: "1"})
	// "name" deliberately left unwritten to simulate a subgraph failure.

	shapes := []*plan.Shape{
		{ID: 1, ResponseKey: "user", FieldName: "user", ChildPlanID: -1, Children: []*plan.Shape{
			{ID: 2, ResponseKey: "id", FieldName: "id", NonNull: true, ChildPlanID: -1},
			{ID: 3, ResponseKey: "name", FieldName: "name", NonNull: true, ChildPlanID: -1},
		}},
	}

	mods := &modify.QueryModifications{}
	result, errs := store.Shape(shapes, root, st, mods, nil)

	require.Len(t, errs, 1)
	assert.Nil(t, result["user"])
}

func TestShape_PolymorphicDiscriminator(t *testing.T) {
	st := store.New()
	root := st.NewObject("Query")
	cat := st.NewObject("Cat")
	st.Set(root, "pet", store.Value{Kind: store.KindObject, Object: cat})
	st.Set(cat, "meow", store.Value{Kind: store.KindScalar, Scalar: true})

	shapes := []*plan.Shape{
		{ID: 1, ResponseKey: "pet", FieldName: "pet", ChildPlanID: -1, Discriminator: map[string][]*plan.Shape{
			"Cat": {{ID: 2, ResponseKey: "meow", FieldName: "meow", ChildPlanID: -1}},
			"Dog": {{ID: 3, ResponseKey: "bark", FieldName: "bark", ChildPlanID: -1}},
		}},
	}

	mods := &modify.QueryModifications{}
	result, errs := store.Shape(shapes, root, st, mods, nil)

	require.Empty(t, errs)
	pet := result["pet"].(map[string]interface{})
	assert.Equal(t, true, pet["meow"])
}

func TestShape_SuppressedFieldOmitted(t *testing.T) {
	st := store.New()
	root := st.NewObject("Query")
	st.Set(root, "a", store.Value{Kind: store.KindScalar, Scalar: "x"})
	st.Set(root, "b", store.Value{Kind: store.KindScalar, Scalar: "y"})

	shapes := []*plan.Shape{
		{ID: 1, ResponseKey: "a", FieldName: "a", ChildPlanID: -1},
		{ID: 2, ResponseKey: "b", FieldName: "b", ChildPlanID: -1},
	}

	res, err := modify.Evaluate(&plan.Result{Modifiers: []*plan.ModifierRule{
		{ID: 10, Kind: plan.ModifierSkipInclude, ShapeID: 1, Negate: false, Literal: false},
	}}, modify.Variables{}, modify.AuthContext{})
	require.NoError(t, err)

	result, errs := store.Shape(shapes, root, st, res, nil)
	require.Empty(t, errs)
	_, present := result["a"]
	assert.False(t, present)
	assert.Equal(t, "y", result["b"])
}

func TestShape_NestedObjectMatchesExpectedStructure(t *testing.T) {
	st := store.New()
	root := st.NewObject("Query")
	user := st.NewObject("User")
	st.Set(root, "user", store.Value{Kind: store.KindObject, Object: user})
	st.Set(user, "id", store.Value{Kind: store.KindScalar, Scalar: "1"})
	st.Set(user, "name", store.Value{Kind: store.KindScalar, Scalar: "Ada"})

	shapes := []*plan.Shape{
		{ID: 1, ResponseKey: "user", FieldName: "user", ChildPlanID: -1, Children: []*plan.Shape{
			{ID: 2, ResponseKey: "id", FieldName: "id", NonNull: true, ChildPlanID: -1},
			{ID: 3, ResponseKey: "name", FieldName: "name", ChildPlanID: -1},
		}},
	}

	mods := &modify.QueryModifications{}
	result, errs := store.Shape(shapes, root, st, mods, nil)
	require.Empty(t, errs)

	want := map[string]interface{}{
		"user": map[string]interface{}{"id": "1", "name": "Ada"},
	}
	if diff := pretty.Compare(want, result); diff != "" {
		t.Errorf("shaped result mismatch (-want +got):\n%s", diff)
	}
}
