package entitycache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldgraph/gateway/entitycache"
	"github.com/fieldgraph/gateway/plan"
)

func reviewsShape() []*plan.Shape {
	return []*plan.Shape{
		{ResponseKey: "reviews", FieldName: "reviews", List: true, Children: []*plan.Shape{
			{ResponseKey: "id", FieldName: "id"},
			{ResponseKey: "body", FieldName: "body"},
		}},
	}
}

func TestFingerprint_StableAcrossKeyValueOrdering(t *testing.T) {
	a := map[string]interface{}{"id": "1", "region": "us"}
	b := map[string]interface{}{"region": "us", "id": "1"}

	fp1 := entitycache.Fingerprint("reviews", "User", a, reviewsShape())
	fp2 := entitycache.Fingerprint("reviews", "User", b, reviewsShape())
	assert.Equal(t, fp1, fp2)
}

func TestFingerprint_DiffersOnKeyValue(t *testing.T) {
	fp1 := entitycache.Fingerprint("reviews", "User", map[string]interface{}{"id": "1"}, reviewsShape())
	fp2 := entitycache.Fingerprint("reviews", "User", map[string]interface{}{"id": "2"}, reviewsShape())
	assert.NotEqual(t, fp1, fp2)
}

func TestFingerprint_DiffersOnSelectionShape(t *testing.T) {
	full := reviewsShape()
	idOnly := []*plan.Shape{
		{ResponseKey: "reviews", FieldName: "reviews", List: true, Children: []*plan.Shape{
			{ResponseKey: "id", FieldName: "id"},
		}},
	}
	fp1 := entitycache.Fingerprint("reviews", "User", map[string]interface{}{"id": "1"}, full)
	fp2 := entitycache.Fingerprint("reviews", "User", map[string]interface{}{"id": "1"}, idOnly)
	assert.NotEqual(t, fp1, fp2)
}

func TestFingerprint_IgnoresTypenameInKeyValues(t *testing.T) {
	fp1 := entitycache.Fingerprint("reviews", "User", map[string]interface{}{"id": "1"}, reviewsShape())
	fp2 := entitycache.Fingerprint("reviews", "User", map[string]interface{}{"id": "1", "__typename": "User"}, reviewsShape())
	assert.Equal(t, fp1, fp2)
}

func TestMemoryBackend_GetSetRoundTrip(t *testing.T) {
	b := entitycache.NewMemoryBackend()
	fragment := map[string]interface{}{"body": "Great"}

	require.NoError(t, b.Set(context.Background(), "k1", fragment, 0))

	got, ok, err := b.Get(context.Background(), "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fragment, got)
}

func TestMemoryBackend_EntryExpiresAfterTTL(t *testing.T) {
	b := entitycache.NewMemoryBackend()
	require.NoError(t, b.Set(context.Background(), "k1", map[string]interface{}{"body": "Great"}, 10*time.Millisecond))

	time.Sleep(20 * time.Millisecond)

	_, ok, err := b.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, b.Len())
}

func TestMemoryBackend_MissReturnsFalse(t *testing.T) {
	b := entitycache.NewMemoryBackend()
	_, ok, err := b.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
