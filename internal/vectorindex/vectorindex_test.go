package vectorindex

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, capacity int) *Index {
	t.Helper()
	ix, err := New(Config{Dimensions: 4, Capacity: capacity})
	require.NoError(t, err)
	return ix
}

func unit(x, y, z, w float32) []float32 {
	return normalizeVec([]float32{x, y, z, w})
}

func normalizeVec(v []float32) []float32 {
	var sumSq float32
	for _, x := range v {
		sumSq += x * x
	}
	if sumSq == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(float64(sumSq)))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Dimensions: 0})
	require.Error(t, err)

	ix, err := New(Config{Dimensions: 8})
	require.NoError(t, err)
	assert.Equal(t, DefaultCapacity, ix.Capacity())
	assert.Equal(t, 8, ix.Dimensions())
	assert.Equal(t, 0, ix.Len())
}

func TestIndex_InsertAndQuery(t *testing.T) {
	ix := newTestIndex(t, 100)

	require.NoError(t, ix.Insert(1, unit(1, 0, 0, 0)))
	require.NoError(t, ix.Insert(2, unit(0, 1, 0, 0)))
	require.NoError(t, ix.Insert(3, unit(0.9, 0.1, 0, 0)))
	assert.Equal(t, 3, ix.Len())

	results := ix.Query(unit(1, 0, 0, 0), 2)
	require.Len(t, results, 2)
	assert.Equal(t, uint64(1), results[0].ID, "exact match first")
	assert.Equal(t, uint64(3), results[1].ID, "near neighbor second")
	assert.InDelta(t, 0, results[0].Distance, 1e-5)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestIndex_QueryEdgeCases(t *testing.T) {
	ix := newTestIndex(t, 100)

	assert.Empty(t, ix.Query(unit(1, 0, 0, 0), 5), "empty index yields no results")
	assert.Empty(t, ix.Query(unit(1, 0, 0, 0), 0), "k=0 yields no results")
	assert.Empty(t, ix.Query(unit(1, 0, 0, 0), -3))

	require.NoError(t, ix.Insert(1, unit(1, 0, 0, 0)))
	results := ix.Query(unit(1, 0, 0, 0), 50)
	assert.Len(t, results, 1, "k larger than the index returns everything once")
}

func TestIndex_TieBreakByLowerID(t *testing.T) {
	ix := newTestIndex(t, 100)

	// Identical vectors under different ids: equal distance, lower id wins.
	v := unit(0, 0, 1, 0)
	require.NoError(t, ix.Insert(7, v))
	require.NoError(t, ix.Insert(3, v))
	require.NoError(t, ix.Insert(5, v))

	results := ix.Query(v, 3)
	require.Len(t, results, 3)
	assert.Equal(t, uint64(3), results[0].ID)
	assert.Equal(t, uint64(5), results[1].ID)
	assert.Equal(t, uint64(7), results[2].ID)
}

func TestIndex_DuplicateID(t *testing.T) {
	ix := newTestIndex(t, 100)

	require.NoError(t, ix.Insert(1, unit(1, 0, 0, 0)))
	err := ix.Insert(1, unit(0, 1, 0, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, ix.Len())
}

func TestIndex_DimensionCheck(t *testing.T) {
	ix := newTestIndex(t, 100)
	err := ix.Insert(1, []float32{1, 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")
}

func TestIndex_CapacityExceeded(t *testing.T) {
	ix := newTestIndex(t, 2)

	require.NoError(t, ix.Insert(1, unit(1, 0, 0, 0)))
	require.NoError(t, ix.Insert(2, unit(0, 1, 0, 0)))

	err := ix.Insert(3, unit(0, 0, 1, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 2, ix.Len(), "the failed insert must not be retained")
}

func TestIndex_Reindex(t *testing.T) {
	ix := newTestIndex(t, 2)
	require.NoError(t, ix.Insert(1, unit(1, 0, 0, 0)))
	require.NoError(t, ix.Insert(2, unit(0, 1, 0, 0)))
	require.ErrorIs(t, ix.Insert(3, unit(0, 0, 1, 0)), ErrCapacityExceeded)

	// Shrinking below the current element count is rejected.
	require.Error(t, ix.Reindex(1))

	require.NoError(t, ix.Reindex(10))
	assert.Equal(t, 10, ix.Capacity())

	// The rebuilt graph still answers queries and accepts new elements.
	require.NoError(t, ix.Insert(3, unit(0, 0, 1, 0)))
	results := ix.Query(unit(0, 0, 1, 0), 1)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(3), results[0].ID)
}

func TestIndex_InsertCopiesVector(t *testing.T) {
	ix := newTestIndex(t, 100)

	v := unit(1, 0, 0, 0)
	require.NoError(t, ix.Insert(1, v))
	v[0] = -1 // caller mutation must not reach the index

	results := ix.Query(unit(1, 0, 0, 0), 1)
	require.Len(t, results, 1)
	assert.InDelta(t, 0, results[0].Distance, 1e-5)
}

func TestIndex_ExportLoadRoundTrip(t *testing.T) {
	ix := newTestIndex(t, 50)
	require.NoError(t, ix.Insert(1, unit(1, 0, 0, 0)))
	require.NoError(t, ix.Insert(2, unit(0, 1, 0, 0)))
	require.NoError(t, ix.Insert(9, unit(0.5, 0.5, 0, 0)))

	var buf bytes.Buffer
	require.NoError(t, ix.Export(&buf))

	loaded, err := Load(&buf, Config{Dimensions: 4})
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())
	assert.Equal(t, 50, loaded.Capacity(), "persisted capacity survives the round trip")

	want := ix.Query(unit(1, 0.2, 0, 0), 3)
	got := loaded.Query(unit(1, 0.2, 0, 0), 3)
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.InDelta(t, want[i].Distance, got[i].Distance, 1e-6)
	}
}

func TestLoad_CapacityResolution(t *testing.T) {
	exported := func(t *testing.T) []byte {
		t.Helper()
		ix := newTestIndex(t, 50)
		require.NoError(t, ix.Insert(1, unit(1, 0, 0, 0)))
		var buf bytes.Buffer
		require.NoError(t, ix.Export(&buf))
		return buf.Bytes()
	}

	t.Run("unconfigured adopts persisted", func(t *testing.T) {
		// A persisted capacity below the default must survive: the reloaded
		// index has to fill up exactly where the saved instance would have.
		loaded, err := Load(bytes.NewReader(exported(t)), Config{Dimensions: 4})
		require.NoError(t, err)
		assert.Equal(t, 50, loaded.Capacity())
	})

	t.Run("larger configured wins", func(t *testing.T) {
		loaded, err := Load(bytes.NewReader(exported(t)), Config{Dimensions: 4, Capacity: 200})
		require.NoError(t, err)
		assert.Equal(t, 200, loaded.Capacity())
	})

	t.Run("smaller configured defers to persisted", func(t *testing.T) {
		loaded, err := Load(bytes.NewReader(exported(t)), Config{Dimensions: 4, Capacity: 10})
		require.NoError(t, err)
		assert.Equal(t, 50, loaded.Capacity())
	})
}

func TestLoad_RejectsBadArtifacts(t *testing.T) {
	t.Run("bad magic", func(t *testing.T) {
		_, err := Load(bytes.NewReader([]byte("NOPE....")), Config{Dimensions: 4})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad magic")
	})

	t.Run("truncated", func(t *testing.T) {
		ix := newTestIndex(t, 50)
		require.NoError(t, ix.Insert(1, unit(1, 0, 0, 0)))

		var buf bytes.Buffer
		require.NoError(t, ix.Export(&buf))
		truncated := buf.Bytes()[:buf.Len()-5]

		_, err := Load(bytes.NewReader(truncated), Config{Dimensions: 4})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "truncated")
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		ix := newTestIndex(t, 50)
		require.NoError(t, ix.Insert(1, unit(1, 0, 0, 0)))

		var buf bytes.Buffer
		require.NoError(t, ix.Export(&buf))

		_, err := Load(&buf, Config{Dimensions: 8})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dimensions")
	})
}
