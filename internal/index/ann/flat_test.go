package ann

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
)

func writeTestArtifact(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	vectorPath := filepath.Join(dir, "vectors.bin")
	idMapPath := filepath.Join(dir, "ids.json")

	ids := []string{"doc-a", "doc-b", "doc-c"}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	}
	if err := WriteArtifact(vectorPath, idMapPath, ids, vectors); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return vectorPath, idMapPath
}

func TestFlatIndexOrdersByCosineDistance(t *testing.T) {
	vectorPath, idMapPath := writeTestArtifact(t)
	index := NewFlatIndex(vectorPath, idMapPath, nil)

	neighbors, err := index.Search([]float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(neighbors) != 3 {
		t.Fatalf("expected 3 neighbors, got %d", len(neighbors))
	}
	if neighbors[0].ID != "doc-a" {
		t.Fatalf("nearest should be doc-a, got %s", neighbors[0].ID)
	}
	if neighbors[0].Distance > 1e-9 {
		t.Fatalf("identical vector should have distance 0, got %f", neighbors[0].Distance)
	}
	if neighbors[1].ID != "doc-c" {
		t.Fatalf("second nearest should be doc-c, got %s", neighbors[1].ID)
	}
	if neighbors[1].Distance >= neighbors[2].Distance {
		t.Fatalf("distances not ascending: %f >= %f", neighbors[1].Distance, neighbors[2].Distance)
	}
}

func TestFlatIndexLimitsToK(t *testing.T) {
	vectorPath, idMapPath := writeTestArtifact(t)
	index := NewFlatIndex(vectorPath, idMapPath, nil)

	neighbors, err := index.Search([]float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(neighbors) != 1 || neighbors[0].ID != "doc-b" {
		t.Fatalf("expected [doc-b], got %+v", neighbors)
	}
}

func TestFlatIndexRejectsDimensionMismatch(t *testing.T) {
	vectorPath, idMapPath := writeTestArtifact(t)
	index := NewFlatIndex(vectorPath, idMapPath, nil)

	_, err := index.Search([]float32{1, 0}, 3)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestFlatIndexMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	index := NewFlatIndex(filepath.Join(dir, "missing.bin"), filepath.Join(dir, "missing.json"), nil)

	_, err := index.Search([]float32{1, 0, 0}, 3)
	if !domain.IsKind(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected index unavailable error, got %v", err)
	}
}

func TestFlatIndexRejectsCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	vectorPath := filepath.Join(dir, "vectors.bin")
	idMapPath := filepath.Join(dir, "ids.json")
	if err := os.WriteFile(vectorPath, []byte("not a vector file"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(idMapPath, []byte(`["doc-a"]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	index := NewFlatIndex(vectorPath, idMapPath, nil)
	_, err := index.Search([]float32{1, 0, 0}, 1)
	if err == nil || !domain.IsKind(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected index unavailable error, got %v", err)
	}
}

func TestFlatIndexLoadsOnceUnderConcurrency(t *testing.T) {
	vectorPath, idMapPath := writeTestArtifact(t)
	index := NewFlatIndex(vectorPath, idMapPath, nil)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := 0; i < len(errs); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = index.Search([]float32{0.5, 0.5, 0}, 2)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("concurrent search failed: %v", err)
		}
	}
}

func TestWriteArtifactValidatesShape(t *testing.T) {
	dir := t.TempDir()
	err := WriteArtifact(filepath.Join(dir, "v.bin"), filepath.Join(dir, "i.json"),
		[]string{"a", "b"}, [][]float32{{1, 0}, {1, 0, 0}})
	if err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		t.Fatalf("shape validation should fail before touching the filesystem: %v", err)
	}
}
