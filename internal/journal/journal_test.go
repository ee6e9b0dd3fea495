package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/agentdb/internal/agentdb"
	"github.com/xkilldash9x/agentdb/internal/config"
)

func TestParseEntry(t *testing.T) {
	t.Run("well formed", func(t *testing.T) {
		input, ok, err := ParseEntry(`{"action":"fill","selector":"#email","url":"https://site.com","value":"x","success":true,"metadata":{"engine":"ext"}}`)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "fill", input.Action)
		assert.Equal(t, "#email", input.Selector)
		assert.Equal(t, "https://site.com", input.URL)
		assert.True(t, input.Success)
		assert.Equal(t, "ext", input.Metadata["engine"])
	})

	t.Run("blank line", func(t *testing.T) {
		_, ok, err := ParseEntry("   \t  ")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, ok, err := ParseEntry(`{"action":`)
		require.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("missing action", func(t *testing.T) {
		_, ok, err := ParseEntry(`{"selector":"#email","success":true}`)
		require.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown keys ignored", func(t *testing.T) {
		input, ok, err := ParseEntry(`{"action":"click","extra":"field","nested":{"a":1}}`)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "click", input.Action)
	})
}

func TestNewWatcher_RequiresPath(t *testing.T) {
	logger := zaptest.NewLogger(t)
	db, err := agentdb.New(agentdb.Config{}, nil, logger)
	require.NoError(t, err)

	_, err = NewWatcher(config.JournalConfig{}, db, logger)
	require.Error(t, err)
}

func TestWatcher_IngestsFromStart(t *testing.T) {
	logger := zaptest.NewLogger(t)
	db, err := agentdb.New(agentdb.Config{}, nil, logger)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "actions.jsonl")
	lines := "" +
		`{"action":"fill","selector":"#email","success":true}` + "\n" +
		"\n" + // blank lines are skipped silently
		`{"action":` + "\n" + // malformed lines are logged and skipped
		`{"selector":"#orphan"}` + "\n" + // entries without an action too
		`{"action":"click","selector":"#submit","success":false}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))

	watcher, err := NewWatcher(config.JournalConfig{Path: path, FromStart: true}, db, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	// The tail keeps following the file, so wait for the entries and then
	// shut the watcher down.
	require.Eventually(t, func() bool { return db.Len() == 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}

	p, ok := db.Get(1)
	require.True(t, ok)
	assert.Equal(t, "fill", p.Action)
	assert.True(t, p.Success)

	p, ok = db.Get(2)
	require.True(t, ok)
	assert.Equal(t, "click", p.Action)
	assert.False(t, p.Success)
}
