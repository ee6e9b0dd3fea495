package agentdb

import (
	"fmt"

	"go.uber.org/zap"
)

// ExportTrainingData returns the corpus as JSON, the same [[id, pattern],
// ...] shape the metadata artifact uses for patternsWithIds. The output is
// meant for sharing a corpus between instances, not for backup — the ids it
// carries are informational only.
func (db *Database) ExportTrainingData() ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	data, err := jsonCodec.Marshal(db.pairsLocked())
	if err != nil {
		return nil, fmt.Errorf("failed to export training data: %w", err)
	}
	return data, nil
}

// ImportTrainingData appends every pattern in an exported corpus, assigning
// fresh ids regardless of the ids in the payload so merged corpora can never
// collide. Original outcomes, timestamps, and metadata are preserved;
// embeddings are recomputed locally. Returns the number of patterns
// imported; a capacity error mid-import keeps what was already appended and
// is surfaced to the caller.
func (db *Database) ImportTrainingData(data []byte) (int, error) {
	var pairs []PatternWithID
	if err := jsonCodec.Unmarshal(data, &pairs); err != nil {
		return 0, fmt.Errorf("failed to parse training data: %w", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	imported := 0
	for _, pair := range pairs {
		pattern := pair.Pattern
		pattern.Metadata = cloneMetadata(pattern.Metadata)
		vec := db.embedder.Embed(pattern.Action, pattern.Selector, pattern.URL)
		if _, err := db.appendLocked(pattern, vec); err != nil {
			return imported, fmt.Errorf("import stopped after %d of %d patterns: %w",
				imported, len(pairs), err)
		}
		imported++
	}

	db.logger.Info("Imported training data.", zap.Int("patterns", imported))
	return imported, nil
}
