// Package agentdb implements the shared action-pattern store: a growing
// corpus of recorded automation actions indexed by a semantic embedding, so
// collaborators can retrieve the k most similar past actions and their
// success history before attempting an uncertain selector.
//
// One Database handle is constructed at startup and injected into every
// collaborator; there is no hidden global instance. All operations are
// synchronous and in-memory. Only Save and Load touch disk, on a
// caller-controlled cadence.
package agentdb

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/agentdb/api/schemas"
	"github.com/xkilldash9x/agentdb/internal/embedding"
	"github.com/xkilldash9x/agentdb/internal/vectorindex"
)

// Config holds the construction parameters of a Database.
type Config struct {
	// Index configures the ANN layer. Dimensions defaults to the
	// embedder's output length and must match it when set explicitly.
	Index vectorindex.Config
}

// Database is the aggregate root: one vector index, one ordered
// id -> ActionPattern map, and the nextID counter. Safe for concurrent use
// within a single process; cross-process sharing of the on-disk artifacts
// requires a designated writer (the store provides no file locking).
type Database struct {
	logger   *zap.Logger
	embedder embedding.Embedder

	mu       sync.RWMutex
	index    *vectorindex.Index
	patterns map[uint64]schemas.ActionPattern
	order    []uint64
	nextID   uint64
}

// New creates an empty Database. A nil embedder selects the default
// deterministic hashing embedder.
func New(cfg Config, embedder embedding.Embedder, logger *zap.Logger) (*Database, error) {
	if embedder == nil {
		embedder = embedding.NewHashingEmbedder()
	}
	if cfg.Index.Dimensions == 0 {
		cfg.Index.Dimensions = embedder.Dimensions()
	}
	if cfg.Index.Dimensions != embedder.Dimensions() {
		return nil, fmt.Errorf("index is configured for %d dimensions but the embedder produces %d",
			cfg.Index.Dimensions, embedder.Dimensions())
	}

	index, err := vectorindex.New(cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}

	return &Database{
		logger:   logger.Named("agentdb"),
		embedder: embedder,
		index:    index,
		patterns: make(map[uint64]schemas.ActionPattern),
		nextID:   1,
	}, nil
}

// Store records one automation action. It assigns the next sequential id,
// computes the embedding from (action, selector, url) only, inserts it into
// the vector index, then appends the full record. The insert is
// all-or-nothing: if the index rejects the vector (capacity exceeded), no
// record is retained and the id is not consumed.
func (db *Database) Store(input schemas.StoreInput) (uint64, error) {
	vec := db.embedder.Embed(input.Action, input.Selector, input.URL)

	pattern := schemas.ActionPattern{
		Action:    input.Action,
		Selector:  input.Selector,
		URL:       input.URL,
		Value:     input.Value,
		Success:   input.Success,
		Timestamp: time.Now().UTC(),
		Metadata:  cloneMetadata(input.Metadata),
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	return db.appendLocked(pattern, vec)
}

// appendLocked assigns an id and commits the pattern to index and record
// map. Caller must hold db.mu for writing.
func (db *Database) appendLocked(pattern schemas.ActionPattern, vec []float32) (uint64, error) {
	id := db.nextID
	if err := db.index.Insert(id, vec); err != nil {
		return 0, fmt.Errorf("failed to index pattern: %w", err)
	}

	pattern.ID = id
	db.patterns[id] = pattern
	db.order = append(db.order, id)
	db.nextID++

	db.logger.Debug("Recorded action pattern.",
		zap.Uint64("id", id),
		zap.String("action", pattern.Action),
		zap.Bool("success", pattern.Success))
	return id, nil
}

// Get returns the pattern stored under id, if any.
func (db *Database) Get(id uint64) (schemas.ActionPattern, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	p, ok := db.patterns[id]
	return p, ok
}

// Patterns returns a snapshot of the whole corpus in insertion order.
func (db *Database) Patterns() []schemas.ActionPattern {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]schemas.ActionPattern, 0, len(db.order))
	for _, id := range db.order {
		out = append(out, db.patterns[id])
	}
	return out
}

// Len returns the number of stored patterns.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.patterns)
}

// Capacity returns the vector index's declared maximum element count.
func (db *Database) Capacity() int {
	return db.index.Capacity()
}

// Dimensions returns the embedding dimensionality the store was built for.
func (db *Database) Dimensions() int {
	return db.index.Dimensions()
}

// Reindex grows the vector index to the new capacity, rebuilding the graph
// from all stored vectors. Required after Store starts failing with
// ErrCapacityExceeded.
func (db *Database) Reindex(newCapacity int) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.index.Reindex(newCapacity); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	db.logger.Info("Rebuilt vector index.",
		zap.Int("capacity", newCapacity),
		zap.Int("elements", len(db.patterns)))
	return nil
}

// cloneMetadata shallow-copies a metadata map so later mutation by the
// caller cannot reach into the stored record.
func cloneMetadata(m schemas.Metadata) schemas.Metadata {
	if m == nil {
		return nil
	}
	out := make(schemas.Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
