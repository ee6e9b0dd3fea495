// Package vectorindex provides approximate nearest neighbor search over
// pattern embeddings using a Hierarchical Navigable Small World graph.
//
// The index is append-only: ids are inserted exactly once and never removed.
// Alongside the graph it keeps a shadow map of id -> vector, which is the
// source of truth for persistence and for rebuilding the graph when the
// index is grown past its declared capacity.
package vectorindex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

var (
	// ErrCapacityExceeded is returned by Insert once the index holds its
	// declared maximum element count. Further inserts require Reindex.
	ErrCapacityExceeded = errors.New("vector index capacity exceeded")
	// ErrDuplicateID is returned when an id is inserted twice. Ids are
	// assigned once by the record store and never reused.
	ErrDuplicateID = errors.New("duplicate vector id")
)

const (
	// DefaultCapacity is the pre-declared maximum element count used when
	// the configuration does not specify one.
	DefaultCapacity = 10000

	binaryMagic   = "ADBX"
	binaryVersion = uint32(1)
)

// Result pairs a pattern id with its cosine distance to the query vector.
// Distance is in [0,2]; 0 means an identical direction.
type Result struct {
	ID       uint64
	Distance float32
}

// Config holds the tunables of the HNSW graph.
type Config struct {
	// Dimensions is the fixed vector length. Immutable for the index's life.
	Dimensions int
	// Capacity is the maximum element count before Insert starts failing
	// with ErrCapacityExceeded. Default: DefaultCapacity.
	Capacity int
	// M is the maximum number of neighbors per node. Default: 16.
	M int
	// EfSearch is the number of candidates considered during search.
	// Default: 100.
	EfSearch int
	// Ml is the level generation factor. Default: 0.25.
	Ml float64
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.M <= 0 {
		c.M = 16
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 100
	}
	if c.Ml <= 0 {
		c.Ml = 0.25
	}
	return c
}

// Index is an HNSW-backed approximate nearest neighbor index over pattern
// embeddings. Safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	cfg     Config
	graph   *hnsw.Graph[uint64]
	vectors map[uint64][]float32
}

// New creates an empty index for the given configuration.
func New(cfg Config) (*Index, error) {
	cfg = cfg.withDefaults()
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector index requires a positive dimensionality, got %d", cfg.Dimensions)
	}
	return &Index{
		cfg:     cfg,
		graph:   newGraph(cfg),
		vectors: make(map[uint64][]float32),
	}, nil
}

func newGraph(cfg Config) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.M = cfg.M
	g.EfSearch = cfg.EfSearch
	g.Ml = cfg.Ml
	g.Distance = hnsw.CosineDistance
	return g
}

// Insert adds the vector under the given id. It fails with ErrDuplicateID if
// the id is already present, ErrCapacityExceeded when the index is full, and
// a plain error when the vector has the wrong length.
func (ix *Index) Insert(id uint64, vector []float32) error {
	if len(vector) != ix.cfg.Dimensions {
		return fmt.Errorf("vector has %d dimensions, index is built for %d", len(vector), ix.cfg.Dimensions)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, exists := ix.vectors[id]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	if len(ix.vectors) >= ix.cfg.Capacity {
		return fmt.Errorf("%w: %d elements, reindex required", ErrCapacityExceeded, ix.cfg.Capacity)
	}

	cp := make([]float32, len(vector))
	copy(cp, vector)

	ix.vectors[id] = cp
	ix.graph.Add(hnsw.MakeNode(id, cp))
	return nil
}

// Query returns up to k candidates ordered by ascending cosine distance,
// equal distances resolving to the lower id first. An empty index or a
// non-positive k yields an empty slice, never an error.
func (ix *Index) Query(vector []float32, k int) []Result {
	if k <= 0 {
		return []Result{}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.vectors) == 0 {
		return []Result{}
	}
	if k > len(ix.vectors) {
		k = len(ix.vectors)
	}

	nodes := ix.graph.Search(vector, k)

	results := make([]Result, 0, len(nodes))
	for _, n := range nodes {
		results = append(results, Result{
			ID:       n.Key,
			Distance: hnsw.CosineDistance(vector, n.Value),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Len returns the number of vectors in the index.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Capacity returns the declared maximum element count.
func (ix *Index) Capacity() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.cfg.Capacity
}

// Dimensions returns the fixed vector length the index was built for.
func (ix *Index) Dimensions() int {
	return ix.cfg.Dimensions
}

// Reindex rebuilds the graph with a new capacity from all stored vectors.
// This is the only way to grow a full index. The new capacity must cover
// the vectors already present.
func (ix *Index) Reindex(newCapacity int) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if newCapacity < len(ix.vectors) {
		return fmt.Errorf("new capacity %d is below the current element count %d", newCapacity, len(ix.vectors))
	}

	ix.cfg.Capacity = newCapacity
	ix.rebuildLocked()
	return nil
}

// rebuildLocked reconstructs the graph from the shadow map in ascending id
// order, keeping rebuilds reproducible. Caller must hold ix.mu for writing.
func (ix *Index) rebuildLocked() {
	ids := ix.sortedIDsLocked()
	g := newGraph(ix.cfg)
	for _, id := range ids {
		g.Add(hnsw.MakeNode(id, ix.vectors[id]))
	}
	ix.graph = g
}

func (ix *Index) sortedIDsLocked() []uint64 {
	ids := make([]uint64, 0, len(ix.vectors))
	for id := range ix.vectors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// -- Binary Serialization --

// Export writes the index as a binary artifact: a fixed header followed by
// the (id, vector) pairs in ascending id order. The graph itself is not
// serialized; Load reconstructs it from the vectors, which is the same
// rebuild Reindex performs.
func (ix *Index) Export(w io.Writer) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if _, err := w.Write([]byte(binaryMagic)); err != nil {
		return fmt.Errorf("failed to write index header: %w", err)
	}
	header := []interface{}{
		binaryVersion,
		uint32(ix.cfg.Dimensions),
		uint64(ix.cfg.Capacity),
		uint64(len(ix.vectors)),
	}
	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("failed to write index header: %w", err)
		}
	}

	buf := make([]byte, 8+4*ix.cfg.Dimensions)
	for _, id := range ix.sortedIDsLocked() {
		binary.LittleEndian.PutUint64(buf[:8], id)
		for i, v := range ix.vectors[id] {
			binary.LittleEndian.PutUint32(buf[8+4*i:], math.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("failed to write vector %d: %w", id, err)
		}
	}
	return nil
}

// Load reads an artifact produced by Export and rebuilds the graph.
// The stored dimensionality must match cfg.Dimensions; a mismatch is
// reported, never silently truncated or padded. The persisted capacity is
// kept unless cfg.Capacity demands a larger one.
func Load(r io.Reader, cfg Config) (*Index, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("failed to read index header: %w", err)
	}
	if string(magic) != binaryMagic {
		return nil, fmt.Errorf("not a vector index artifact (bad magic %q)", magic)
	}

	var (
		version  uint32
		dims     uint32
		capacity uint64
		count    uint64
	)
	for _, field := range []interface{}{&version, &dims, &capacity, &count} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("failed to read index header: %w", err)
		}
	}
	if version != binaryVersion {
		return nil, fmt.Errorf("unsupported index artifact version %d", version)
	}
	if int(dims) != cfg.Dimensions {
		return nil, fmt.Errorf("persisted index has %d dimensions, runtime is configured for %d", dims, cfg.Dimensions)
	}
	// Resolve capacity before defaults kick in: an unconfigured capacity
	// adopts the persisted one even when it is below DefaultCapacity, so a
	// reloaded index fills up exactly where the saved instance would have.
	if cfg.Capacity <= 0 || int(capacity) > cfg.Capacity {
		cfg.Capacity = int(capacity)
	}

	ix, err := New(cfg)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 8+4*cfg.Dimensions)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("truncated index artifact at vector %d of %d: %w", i, count, err)
		}
		id := binary.LittleEndian.Uint64(buf[:8])
		vec := make([]float32, cfg.Dimensions)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[8+4*j:]))
		}
		ix.vectors[id] = vec
		ix.graph.Add(hnsw.MakeNode(id, vec))
	}
	return ix, nil
}
