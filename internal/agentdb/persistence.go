package agentdb

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/agentdb/api/schemas"
	"github.com/xkilldash9x/agentdb/internal/embedding"
	"github.com/xkilldash9x/agentdb/internal/vectorindex"
)

// FormatVersion is the version stamp written into the JSON metadata
// artifact.
const FormatVersion = 1

const (
	patternsFileName = "patterns.json"
	vectorsFileName  = "vectors.bin"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// PatternWithID is one element of the patternsWithIds array, serialized as
// the two-element tuple [id, pattern] for compatibility with corpora
// exported by other store implementations.
type PatternWithID struct {
	ID      uint64
	Pattern schemas.ActionPattern
}

// MarshalJSON encodes the pair as [id, pattern].
func (p PatternWithID) MarshalJSON() ([]byte, error) {
	return jsonCodec.Marshal([2]interface{}{p.ID, p.Pattern})
}

// UnmarshalJSON decodes the [id, pattern] tuple form.
func (p *PatternWithID) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := jsonCodec.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("pattern tuple has %d elements, want 2", len(raw))
	}
	if err := jsonCodec.Unmarshal(raw[0], &p.ID); err != nil {
		return fmt.Errorf("invalid pattern id: %w", err)
	}
	if err := jsonCodec.Unmarshal(raw[1], &p.Pattern); err != nil {
		return fmt.Errorf("invalid pattern body: %w", err)
	}
	return nil
}

// metadataDocument is the top-level shape of the JSON artifact.
type metadataDocument struct {
	Version         int             `json:"version"`
	Dimensions      int             `json:"dimensions"`
	NextID          uint64          `json:"nextId"`
	SavedAt         time.Time       `json:"savedAt"`
	PatternsWithIDs []PatternWithID `json:"patternsWithIds"`
}

// Save writes the two on-disk artifacts into dir: the JSON metadata
// document and the binary vector-index artifact. Both are written via a
// temp-file rename so a crash never leaves a half-written artifact beside a
// stale one. Save is caller-triggered; the store never saves implicitly.
func (db *Database) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	doc := metadataDocument{
		Version:         FormatVersion,
		Dimensions:      db.index.Dimensions(),
		NextID:          db.nextID,
		SavedAt:         time.Now().UTC(),
		PatternsWithIDs: db.pairsLocked(),
	}

	var g errgroup.Group
	g.Go(func() error {
		return writeAtomic(filepath.Join(dir, patternsFileName), func(w io.Writer) error {
			return jsonCodec.NewEncoder(w).Encode(doc)
		})
	})
	g.Go(func() error {
		return writeAtomic(filepath.Join(dir, vectorsFileName), db.index.Export)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	db.logger.Info("Saved database.",
		zap.String("dir", dir),
		zap.Int("patterns", len(db.patterns)))
	return nil
}

// pairsLocked snapshots the record map in insertion order. Caller must hold
// db.mu.
func (db *Database) pairsLocked() []PatternWithID {
	pairs := make([]PatternWithID, 0, len(db.order))
	for _, id := range db.order {
		pairs = append(pairs, PatternWithID{ID: id, Pattern: db.patterns[id]})
	}
	return pairs
}

// writeAtomic writes through a temp file in the same directory and renames
// it into place.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Load reads a Database from dir. Both artifacts absent means a fresh,
// empty database; exactly one absent or unreadable is
// ErrInconsistentPersistence, and a persisted dimensionality that disagrees
// with the runtime embedder is ErrDimensionMismatch. Vectors are never
// silently truncated or padded to fit.
func Load(dir string, cfg Config, embedder embedding.Embedder, logger *zap.Logger) (*Database, error) {
	if embedder == nil {
		embedder = embedding.NewHashingEmbedder()
	}

	patternsPath := filepath.Join(dir, patternsFileName)
	vectorsPath := filepath.Join(dir, vectorsFileName)

	patternsExists := fileExists(patternsPath)
	vectorsExists := fileExists(vectorsPath)

	switch {
	case !patternsExists && !vectorsExists:
		logger.Named("agentdb").Info("No persisted database found, starting fresh.", zap.String("dir", dir))
		return New(cfg, embedder, logger)
	case patternsExists != vectorsExists:
		present, missing := patternsFileName, vectorsFileName
		if vectorsExists {
			present, missing = vectorsFileName, patternsFileName
		}
		return nil, fmt.Errorf("%w: %s exists but %s is missing in %s",
			ErrInconsistentPersistence, present, missing, dir)
	}

	raw, err := os.ReadFile(patternsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrInconsistentPersistence, patternsPath, err)
	}
	var doc metadataDocument
	if err := jsonCodec.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInconsistentPersistence, patternsPath, err)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported metadata version %d", ErrInconsistentPersistence, doc.Version)
	}
	if doc.Dimensions != embedder.Dimensions() {
		return nil, fmt.Errorf("%w: persisted %d, runtime %d",
			ErrDimensionMismatch, doc.Dimensions, embedder.Dimensions())
	}

	cfg.Index.Dimensions = embedder.Dimensions()
	f, err := os.Open(vectorsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrInconsistentPersistence, vectorsPath, err)
	}
	defer f.Close()

	index, err := vectorindex.Load(f, cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load %s: %v", ErrInconsistentPersistence, vectorsPath, err)
	}
	if index.Len() != len(doc.PatternsWithIDs) {
		return nil, fmt.Errorf("%w: %d vectors but %d records",
			ErrInconsistentPersistence, index.Len(), len(doc.PatternsWithIDs))
	}

	db, err := New(cfg, embedder, logger)
	if err != nil {
		return nil, err
	}
	db.index = index

	maxID := uint64(0)
	for _, pair := range doc.PatternsWithIDs {
		pattern := pair.Pattern
		pattern.ID = pair.ID
		db.patterns[pair.ID] = pattern
		db.order = append(db.order, pair.ID)
		if pair.ID > maxID {
			maxID = pair.ID
		}
	}
	db.nextID = doc.NextID
	if db.nextID <= maxID {
		db.nextID = maxID + 1
	}

	db.logger.Info("Loaded database.",
		zap.String("dir", dir),
		zap.Int("patterns", len(db.patterns)),
		zap.Uint64("next_id", db.nextID))
	return db, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
