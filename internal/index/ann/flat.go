package ann

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
)

const vectorMagic = uint32(0x414e4e31) // "ANN1"

// FlatIndex is a brute-force cosine nearest-neighbor reader over a binary
// vector artifact and its id map. The artifact is written offline; the
// reader loads it lazily on first search and keeps it in memory.
type FlatIndex struct {
	vectorPath string
	idMapPath  string
	logger     *slog.Logger

	loadOnce sync.Once
	loadErr  error

	dim     int
	vectors [][]float32
	norms   []float64
	ids     []string
}

func NewFlatIndex(vectorPath, idMapPath string, logger *slog.Logger) *FlatIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlatIndex{vectorPath: vectorPath, idMapPath: idMapPath, logger: logger}
}

// Search returns the k nearest stored vectors by cosine distance, nearest
// first. Distance is 1 - cosine similarity. Implements ports.VectorSearcher.
func (f *FlatIndex) Search(queryVector []float32, k int) ([]ports.Neighbor, error) {
	if err := f.ensureLoaded(); err != nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "ann.search", err)
	}
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}
	if len(queryVector) != f.dim {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ann.search",
			fmt.Errorf("query dimension %d, index dimension %d", len(queryVector), f.dim))
	}

	queryNorm := vectorNorm(queryVector)
	if queryNorm == 0 {
		return nil, nil
	}

	neighbors := make([]ports.Neighbor, 0, len(f.vectors))
	for i, stored := range f.vectors {
		if f.norms[i] == 0 {
			continue
		}
		cos := dot(queryVector, stored) / (queryNorm * f.norms[i])
		neighbors = append(neighbors, ports.Neighbor{ID: f.ids[i], Distance: 1 - cos})
	}

	sort.SliceStable(neighbors, func(a, b int) bool {
		return neighbors[a].Distance < neighbors[b].Distance
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// ensureLoaded reads the artifact exactly once. Concurrent first searches
// block on the same load instead of duplicating it.
func (f *FlatIndex) ensureLoaded() error {
	f.loadOnce.Do(func() {
		f.loadErr = f.load()
		if f.loadErr != nil {
			f.logger.Warn("ann index load failed", "path", f.vectorPath, "error", f.loadErr)
			return
		}
		f.logger.Info("ann index loaded", "vectors", len(f.vectors), "dim", f.dim)
	})
	return f.loadErr
}

func (f *FlatIndex) load() error {
	raw, err := os.ReadFile(f.vectorPath)
	if err != nil {
		return fmt.Errorf("read vectors: %w", err)
	}
	if len(raw) < 12 {
		return fmt.Errorf("vector file truncated: %d bytes", len(raw))
	}
	if magic := binary.LittleEndian.Uint32(raw[0:4]); magic != vectorMagic {
		return fmt.Errorf("bad vector file magic %#x", magic)
	}
	dim := int(binary.LittleEndian.Uint32(raw[4:8]))
	count := int(binary.LittleEndian.Uint32(raw[8:12]))
	if dim <= 0 {
		return fmt.Errorf("bad vector dimension %d", dim)
	}
	want := 12 + 4*dim*count
	if len(raw) != want {
		return fmt.Errorf("vector file size %d, want %d for %d x %d", len(raw), want, count, dim)
	}

	idsRaw, err := os.ReadFile(f.idMapPath)
	if err != nil {
		return fmt.Errorf("read id map: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(idsRaw, &ids); err != nil {
		return fmt.Errorf("decode id map: %w", err)
	}
	if len(ids) != count {
		return fmt.Errorf("id map has %d entries, vector file has %d", len(ids), count)
	}

	vectors := make([][]float32, count)
	norms := make([]float64, count)
	offset := 12
	for i := 0; i < count; i++ {
		vec := make([]float32, dim)
		for j := 0; j < dim; j++ {
			bits := binary.LittleEndian.Uint32(raw[offset : offset+4])
			vec[j] = math.Float32frombits(bits)
			offset += 4
		}
		vectors[i] = vec
		norms[i] = vectorNorm(vec)
	}

	f.dim = dim
	f.vectors = vectors
	f.norms = norms
	f.ids = ids
	return nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func vectorNorm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
