// Package journal ingests a JSONL action log written by out-of-process
// automation engines. It is the writer-side companion of the shared-path
// deployment model: engines that cannot hold the Database in-process append
// lines to a journal file, and one designated watcher process replays them
// through Store.
package journal

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hpcloud/tail"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentdb/api/schemas"
	"github.com/xkilldash9x/agentdb/internal/agentdb"
	"github.com/xkilldash9x/agentdb/internal/config"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is one journal line. It mirrors the store's input shape; unknown
// JSON keys are ignored so engines may journal richer records.
type Entry struct {
	Action   string           `json:"action"`
	Selector string           `json:"selector,omitempty"`
	URL      string           `json:"url,omitempty"`
	Value    string           `json:"value,omitempty"`
	Success  bool             `json:"success"`
	Metadata schemas.Metadata `json:"metadata,omitempty"`
}

// ParseEntry decodes one journal line into a store input. Blank lines are
// reported as empty inputs with ok=false; malformed JSON or a missing
// action is an error.
func ParseEntry(line string) (schemas.StoreInput, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return schemas.StoreInput{}, false, nil
	}

	var entry Entry
	if err := jsonCodec.UnmarshalFromString(line, &entry); err != nil {
		return schemas.StoreInput{}, false, fmt.Errorf("malformed journal line: %w", err)
	}
	if entry.Action == "" {
		return schemas.StoreInput{}, false, fmt.Errorf("journal line is missing an action")
	}
	return schemas.StoreInput{
		Action:   entry.Action,
		Selector: entry.Selector,
		URL:      entry.URL,
		Value:    entry.Value,
		Success:  entry.Success,
		Metadata: entry.Metadata,
	}, true, nil
}

// Watcher follows a journal file and appends each entry to the store.
type Watcher struct {
	db     *agentdb.Database
	logger *zap.Logger
	cfg    config.JournalConfig
}

// NewWatcher creates a Watcher for the configured journal path.
func NewWatcher(cfg config.JournalConfig, db *agentdb.Database, logger *zap.Logger) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("journal path is not configured")
	}
	return &Watcher{
		db:     db,
		logger: logger.Named("journal"),
		cfg:    cfg,
	}, nil
}

// Run tails the journal until the context is canceled, storing every
// well-formed entry. Malformed lines are logged and skipped — a single bad
// writer must not stall the ingest. Capacity errors stop the run, since
// every following store would fail the same way until a reindex.
func (w *Watcher) Run(ctx context.Context) error {
	location := &tail.SeekInfo{Whence: io.SeekEnd}
	if w.cfg.FromStart {
		location = &tail.SeekInfo{Whence: io.SeekStart}
	}

	t, err := tail.TailFile(w.cfg.Path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: location,
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail journal %s: %w", w.cfg.Path, err)
	}
	defer func() {
		_ = t.Stop()
	}()

	w.logger.Info("Following action journal.",
		zap.String("path", w.cfg.Path),
		zap.Bool("from_start", w.cfg.FromStart))

	stored, skipped := 0, 0
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Journal ingest stopped.",
				zap.Int("stored", stored), zap.Int("skipped", skipped))
			return ctx.Err()

		case line, ok := <-t.Lines:
			if !ok {
				w.logger.Info("Journal closed.",
					zap.Int("stored", stored), zap.Int("skipped", skipped))
				return nil
			}
			if line.Err != nil {
				return fmt.Errorf("journal read failed: %w", line.Err)
			}

			input, ok, err := ParseEntry(line.Text)
			if err != nil {
				skipped++
				w.logger.Warn("Skipping malformed journal entry.",
					zap.Error(err),
					zap.String("error_code", string(agentdb.ErrCodeMalformedEntry)))
				continue
			}
			if !ok {
				continue
			}

			if _, err := w.db.Store(input); err != nil {
				// Capacity exhaustion needs operator action (reindex);
				// swallowing it here would drop every subsequent entry.
				return fmt.Errorf("journal ingest stopped after %d entries: %w", stored, err)
			}
			stored++
		}
	}
}
