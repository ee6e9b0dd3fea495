package agentdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/agentdb/api/schemas"
	"github.com/xkilldash9x/agentdb/internal/vectorindex"
)

func seedCorpus(t *testing.T, db *Database) {
	t.Helper()
	storeN(t, db,
		schemas.StoreInput{Action: "fill", Selector: "#email", URL: "https://site.com/signup",
			Value: "user@example.com", Success: true,
			Metadata: schemas.Metadata{"engine": "formfiller", "retried": true, "attempt": 2.0}},
		schemas.StoreInput{Action: "click", Selector: "#submit", URL: "https://site.com/signup", Success: false,
			Metadata: schemas.Metadata{"errorCode": "TIMEOUT"}},
		schemas.StoreInput{Action: "navigate", URL: "https://site.com/"},
	)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	db := newTestDatabase(t, 100)
	seedCorpus(t, db)

	require.NoError(t, db.Save(dir))
	assert.FileExists(t, filepath.Join(dir, patternsFileName))
	assert.FileExists(t, filepath.Join(dir, vectorsFileName))

	loaded, err := Load(dir, Config{}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	if diff := cmp.Diff(db.Patterns(), loaded.Patterns()); diff != "" {
		t.Fatalf("reloaded corpus differs (-saved +loaded):\n%s", diff)
	}

	// Queries behave identically on the reloaded store.
	qctx := schemas.QueryContext{Action: "fill", Selector: "#email", URL: "https://site.com/signup"}
	want := db.FindSimilar(qctx, 3, nil)
	got := loaded.FindSimilar(qctx, 3, nil)
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].Pattern.ID, got[i].Pattern.ID)
		assert.InDelta(t, want[i].Similarity, got[i].Similarity, 1e-6)
	}

	// Id assignment continues where the saved instance left off.
	id, err := loaded.Store(schemas.StoreInput{Action: "click", Selector: "#next"})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), id)
}

func TestSave_Overwrite(t *testing.T) {
	dir := t.TempDir()
	db := newTestDatabase(t, 100)
	seedCorpus(t, db)

	require.NoError(t, db.Save(dir))
	storeN(t, db, schemas.StoreInput{Action: "click", Selector: "#later", Success: true})
	require.NoError(t, db.Save(dir))

	loaded, err := Load(dir, Config{}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Len())
}

func TestLoad_FreshWhenBothArtifactsMissing(t *testing.T) {
	dir := t.TempDir()

	db, err := Load(dir, Config{}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 0, db.Len())

	id, err := db.Store(schemas.StoreInput{Action: "click", Selector: "#a"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
}

func TestLoad_OneArtifactMissing(t *testing.T) {
	for _, missing := range []string{patternsFileName, vectorsFileName} {
		t.Run(missing, func(t *testing.T) {
			dir := t.TempDir()
			db := newTestDatabase(t, 100)
			seedCorpus(t, db)
			require.NoError(t, db.Save(dir))

			require.NoError(t, os.Remove(filepath.Join(dir, missing)))

			_, err := Load(dir, Config{}, nil, zaptest.NewLogger(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInconsistentPersistence)
		})
	}
}

func TestLoad_CorruptArtifacts(t *testing.T) {
	t.Run("unparseable metadata", func(t *testing.T) {
		dir := t.TempDir()
		db := newTestDatabase(t, 100)
		seedCorpus(t, db)
		require.NoError(t, db.Save(dir))

		require.NoError(t, os.WriteFile(filepath.Join(dir, patternsFileName), []byte("{not json"), 0o644))

		_, err := Load(dir, Config{}, nil, zaptest.NewLogger(t))
		assert.ErrorIs(t, err, ErrInconsistentPersistence)
	})

	t.Run("truncated vectors", func(t *testing.T) {
		dir := t.TempDir()
		db := newTestDatabase(t, 100)
		seedCorpus(t, db)
		require.NoError(t, db.Save(dir))

		path := filepath.Join(dir, vectorsFileName)
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, raw[:len(raw)-16], 0o644))

		_, err = Load(dir, Config{}, nil, zaptest.NewLogger(t))
		assert.ErrorIs(t, err, ErrInconsistentPersistence)
	})

	t.Run("vector count disagrees with records", func(t *testing.T) {
		dir := t.TempDir()
		db := newTestDatabase(t, 100)
		seedCorpus(t, db)
		require.NoError(t, db.Save(dir))

		// Replace the vector artifact with an empty index of matching
		// dimensionality: structurally valid, semantically inconsistent.
		empty, err := vectorindex.New(vectorindex.Config{Dimensions: db.Dimensions()})
		require.NoError(t, err)
		f, err := os.Create(filepath.Join(dir, vectorsFileName))
		require.NoError(t, err)
		require.NoError(t, empty.Export(f))
		require.NoError(t, f.Close())

		_, err = Load(dir, Config{}, nil, zaptest.NewLogger(t))
		assert.ErrorIs(t, err, ErrInconsistentPersistence)
	})
}

func TestLoad_DimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)

	db, err := New(Config{}, stubEmbedder{dims: 16}, logger)
	require.NoError(t, err)
	_, err = db.Store(schemas.StoreInput{Action: "click", Selector: "#a"})
	require.NoError(t, err)
	require.NoError(t, db.Save(dir))

	// The default embedder produces a different dimensionality than the
	// saved corpus; vectors are never truncated or padded to fit.
	_, err = Load(dir, Config{}, nil, logger)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestLoad_RepairsNextID(t *testing.T) {
	dir := t.TempDir()
	db := newTestDatabase(t, 100)
	seedCorpus(t, db)
	require.NoError(t, db.Save(dir))

	// A corpus written by a buggy or older implementation may carry a
	// nextId at or below an assigned id; loading repairs it.
	path := filepath.Join(dir, patternsFileName)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc metadataDocument
	require.NoError(t, jsonCodec.Unmarshal(raw, &doc))
	doc.NextID = 1
	fixed, err := jsonCodec.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, fixed, 0o644))

	loaded, err := Load(dir, Config{}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	id, err := loaded.Store(schemas.StoreInput{Action: "click", Selector: "#a"})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), id, "nextId must never collide with an existing id")
}

func TestPatternWithID_TupleEncoding(t *testing.T) {
	pair := PatternWithID{ID: 7, Pattern: schemas.ActionPattern{ID: 7, Action: "click", Success: true}}

	data, err := jsonCodec.Marshal(pair)
	require.NoError(t, err)
	assert.Equal(t, byte('['), data[0], "pairs serialize as [id, pattern] tuples")

	var decoded PatternWithID
	require.NoError(t, jsonCodec.Unmarshal(data, &decoded))
	assert.Equal(t, pair, decoded)

	var bad PatternWithID
	assert.Error(t, bad.UnmarshalJSON([]byte(`[1]`)), "tuples must have exactly two elements")
	assert.Error(t, bad.UnmarshalJSON([]byte(`{"id":1}`)))
}
