package results

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyupulker/showrun/internal/types"
)

func TestGenerateResultKey_DeterministicAcrossKeyOrder(t *testing.T) {
	k1, err := GenerateResultKey("pack-a", map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	k2, err := GenerateResultKey("pack-a", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 16)
}

func TestGenerateResultKey_DropsNilValues(t *testing.T) {
	k1, err := GenerateResultKey("pack-a", map[string]any{"a": 1, "b": nil})
	require.NoError(t, err)
	k2, err := GenerateResultKey("pack-a", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestGenerateResultKey_DiffersByPackID(t *testing.T) {
	k1, err := GenerateResultKey("pack-a", map[string]any{"a": 1})
	require.NoError(t, err)
	k2, err := GenerateResultKey("pack-b", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestMemoryProvider_StoreGetRoundTrip(t *testing.T) {
	p := NewMemoryProvider()
	r := types.StoredResult{Key: "k1", PackID: "p1", Collectibles: map[string]any{"x": 1}}

	stored, err := p.Store(r)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)

	got, ok, err := p.Get("k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, got.Collectibles["x"])
}

func TestMemoryProvider_StoreTwiceIncrementsVersion(t *testing.T) {
	p := NewMemoryProvider()
	_, err := p.Store(types.StoredResult{Key: "k1"})
	require.NoError(t, err)
	second, err := p.Store(types.StoredResult{Key: "k1"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
}

func TestMemoryProvider_Delete(t *testing.T) {
	p := NewMemoryProvider()
	_, err := p.Store(types.StoredResult{Key: "k1"})
	require.NoError(t, err)

	ok, err := p.Delete("k1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Delete("k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryProvider_ListNewestFirstAndPaginated(t *testing.T) {
	p := NewMemoryProvider()
	base := time.Now()
	_, _ = p.Store(types.StoredResult{Key: "k1", StoredAt: base})
	_, _ = p.Store(types.StoredResult{Key: "k2", StoredAt: base.Add(time.Minute)})
	_, _ = p.Store(types.StoredResult{Key: "k3", StoredAt: base.Add(2 * time.Minute)})

	out, err := p.List(ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "k3", out[0].Key)
	assert.Equal(t, "k2", out[1].Key)
}

func TestMemoryProvider_FilterUnknownKey(t *testing.T) {
	p := NewMemoryProvider()
	_, err := p.Filter(FilterOptions{Key: "missing"})
	require.Error(t, err)
}

func TestApplyFilter_JMESPathAndSortAndPaginate(t *testing.T) {
	collectibles := map[string]any{
		"items": []any{
			map[string]any{"name": "b", "score": float64(2)},
			map[string]any{"name": "a", "score": float64(3)},
			map[string]any{"name": "c", "score": float64(1)},
		},
	}
	res, err := ApplyFilter(collectibles, FilterOptions{JMESPath: "items", SortBy: "score", Limit: 2})
	require.NoError(t, err)
	arr, ok := res.Data.([]any)
	require.True(t, ok)
	require.Len(t, arr, 2)
	assert.Equal(t, "c", arr[0].(map[string]any)["name"])
	assert.Equal(t, "b", arr[1].(map[string]any)["name"])
	require.NotNil(t, res.Total)
	assert.Equal(t, 3, *res.Total)
}

func TestApplyFilter_InvalidJMESPath(t *testing.T) {
	_, err := ApplyFilter(map[string]any{}, FilterOptions{JMESPath: "][[invalid"})
	require.Error(t, err)
}

func TestApplyFilter_NonArrayResultSkipsSortAndPagination(t *testing.T) {
	res, err := ApplyFilter(map[string]any{"count": float64(5)}, FilterOptions{JMESPath: "count"})
	require.NoError(t, err)
	assert.Equal(t, float64(5), res.Data)
	assert.Nil(t, res.Total)
}
