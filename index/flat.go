package index

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/claimsight/claimsight/chunker"
)

// Flat is an exact nearest-neighbour index over squared L2 distance. Rows
// and metadata are parallel slices: row i of vectors always describes
// meta[i], and row positions are renumbered on every rebuild so they stay
// contiguous. The backing storage has no native delete, so DeleteDocument
// reconstructs the whole index from the retained rows.
type Flat struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
	meta      []chunker.Chunk

	indexPath    string
	metadataPath string
	logger       *log.Logger
}

type flatSnapshot struct {
	Dimension int
	Vectors   [][]float32
}

// NewFlat loads an existing snapshot from indexPath/metadataPath or starts
// empty when neither artifact exists. A partial or unreadable snapshot is an
// error: the caller should treat it as fatal rather than silently reindex.
func NewFlat(dimension int, indexPath, metadataPath string, logger *log.Logger) (*Flat, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}
	if logger == nil {
		logger = log.Default()
	}

	f := &Flat{
		dimension:    dimension,
		indexPath:    indexPath,
		metadataPath: metadataPath,
		logger:       logger,
	}

	_, indexErr := os.Stat(indexPath)
	_, metaErr := os.Stat(metadataPath)

	switch {
	case os.IsNotExist(indexErr) && os.IsNotExist(metaErr):
		logger.Printf("created new vector index with dimension %d", dimension)
		return f, nil
	case indexErr != nil || metaErr != nil:
		return nil, fmt.Errorf("vector index artifacts are inconsistent: index=%v metadata=%v", indexErr, metaErr)
	}

	if err := f.load(); err != nil {
		return nil, err
	}
	logger.Printf("loaded vector index with %d vectors", len(f.vectors))
	return f, nil
}

func (f *Flat) load() error {
	file, err := os.Open(f.indexPath)
	if err != nil {
		return fmt.Errorf("open index snapshot: %w", err)
	}
	defer file.Close()

	var snapshot flatSnapshot
	if err := gob.NewDecoder(file).Decode(&snapshot); err != nil {
		return fmt.Errorf("decode index snapshot: %w", err)
	}
	if snapshot.Dimension != f.dimension {
		return fmt.Errorf("index snapshot dimension %d does not match configured %d", snapshot.Dimension, f.dimension)
	}

	data, err := os.ReadFile(f.metadataPath)
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}
	var meta []chunker.Chunk
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	if len(snapshot.Vectors) != len(meta) {
		return fmt.Errorf("index snapshot has %d rows but metadata has %d entries", len(snapshot.Vectors), len(meta))
	}

	f.vectors = snapshot.Vectors
	f.meta = meta
	return nil
}

func (f *Flat) Add(_ context.Context, vectors [][]float32, chunks []chunker.Chunk) error {
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: %d vectors for %d chunks", ErrDimensionMismatch, len(vectors), len(chunks))
	}
	for i, vec := range vectors {
		if len(vec) != f.dimension {
			return fmt.Errorf("%w: vector %d has width %d, index dimension is %d", ErrDimensionMismatch, i, len(vec), f.dimension)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range vectors {
		row := make([]float32, f.dimension)
		copy(row, vectors[i])
		f.vectors = append(f.vectors, row)
		f.meta = append(f.meta, chunks[i])
	}

	f.logger.Printf("added %d chunks to vector index, total %d", len(chunks), len(f.vectors))
	return nil
}

func (f *Flat) Search(_ context.Context, query []float32, topK int, docIDs []string) ([]Match, error) {
	if len(query) != f.dimension {
		return nil, fmt.Errorf("%w: query has width %d, index dimension is %d", ErrDimensionMismatch, len(query), f.dimension)
	}
	if topK <= 0 {
		return []Match{}, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.vectors) == 0 {
		return []Match{}, nil
	}

	distances := make([]float64, len(f.vectors))
	for i, row := range f.vectors {
		var sum float64
		for j := range row {
			d := float64(row[j]) - float64(query[j])
			sum += d * d
		}
		distances[i] = sum
	}

	order := make([]int, len(distances))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return distances[order[a]] < distances[order[b]]
	})

	// The backing structure filters post-hoc, so over-fetch candidates
	// when restricting by document and take what survives the filter.
	var filter map[string]struct{}
	searchK := topK
	if len(docIDs) > 0 {
		filter = make(map[string]struct{}, len(docIDs))
		for _, id := range docIDs {
			filter[id] = struct{}{}
		}
		searchK = topK * 10
	}
	if searchK > len(order) {
		searchK = len(order)
	}

	results := make([]Match, 0, topK)
	for _, idx := range order[:searchK] {
		if filter != nil {
			if _, ok := filter[f.meta[idx].DocID]; !ok {
				continue
			}
		}
		results = append(results, Match{
			Chunk:      f.meta[idx],
			Similarity: 1 / (1 + distances[idx]),
		})
		if len(results) >= topK {
			break
		}
	}

	return results, nil
}

func (f *Flat) DeleteDocument(_ context.Context, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	keep := make([]int, 0, len(f.meta))
	for i, m := range f.meta {
		if m.DocID != docID {
			keep = append(keep, i)
		}
	}

	if len(keep) == len(f.meta) {
		f.logger.Printf("no chunks found for doc_id %s", docID)
		return nil
	}

	vectors := make([][]float32, 0, len(keep))
	meta := make([]chunker.Chunk, 0, len(keep))
	for _, i := range keep {
		vectors = append(vectors, f.vectors[i])
		meta = append(meta, f.meta[i])
	}
	f.vectors = vectors
	f.meta = meta

	f.logger.Printf("deleted chunks for doc_id %s, %d remaining", docID, len(f.vectors))
	return nil
}

func (f *Flat) ChunksByDoc(_ context.Context, docID string) ([]chunker.Chunk, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	chunks := make([]chunker.Chunk, 0)
	for _, m := range f.meta {
		if m.DocID == docID {
			chunks = append(chunks, m)
		}
	}
	return chunks, nil
}

func (f *Flat) Stats(_ context.Context) (Stats, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	docs := make(map[string]struct{}, len(f.meta))
	for _, m := range f.meta {
		docs[m.DocID] = struct{}{}
	}

	var size int64
	if info, err := os.Stat(f.indexPath); err == nil {
		size = info.Size()
	}

	return Stats{
		TotalChunks:    len(f.vectors),
		TotalDocuments: len(docs),
		EmbeddingDim:   f.dimension,
		IndexSizeBytes: size,
	}, nil
}

// Save writes the vector snapshot and the metadata list together; the two
// artifacts are only meaningful as a pair.
func (f *Flat) Save(_ context.Context) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(f.indexPath), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.metadataPath), 0o755); err != nil {
		return fmt.Errorf("create metadata directory: %w", err)
	}

	file, err := os.Create(f.indexPath)
	if err != nil {
		return fmt.Errorf("create index snapshot: %w", err)
	}
	if err := gob.NewEncoder(file).Encode(flatSnapshot{Dimension: f.dimension, Vectors: f.vectors}); err != nil {
		file.Close()
		return fmt.Errorf("encode index snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close index snapshot: %w", err)
	}

	meta := f.meta
	if meta == nil {
		meta = []chunker.Chunk{}
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(f.metadataPath, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	f.logger.Printf("saved vector index with %d vectors", len(f.vectors))
	return nil
}

var _ Store = (*Flat)(nil)
