package ann

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// WriteArtifact produces the paired (vectors, id map) files read by
// FlatIndex. Offline batch step: no locking, callers run it before the
// service starts. Every vector must have the same dimension.
func WriteArtifact(vectorPath, idMapPath string, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ann: %d ids for %d vectors", len(ids), len(vectors))
	}
	dim := 0
	for i, vec := range vectors {
		if i == 0 {
			dim = len(vec)
		}
		if len(vec) != dim || len(vec) == 0 {
			return fmt.Errorf("ann: vector %d has dimension %d, want %d", i, len(vec), dim)
		}
	}

	buf := make([]byte, 12, 12+4*dim*len(vectors))
	binary.LittleEndian.PutUint32(buf[0:4], vectorMagic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(dim))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(vectors)))
	scratch := make([]byte, 4)
	for _, vec := range vectors {
		for _, value := range vec {
			binary.LittleEndian.PutUint32(scratch, math.Float32bits(value))
			buf = append(buf, scratch...)
		}
	}

	if err := writeAtomic(vectorPath, buf); err != nil {
		return fmt.Errorf("ann: write vectors: %w", err)
	}
	idsRaw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("ann: encode id map: %w", err)
	}
	if err := writeAtomic(idMapPath, idsRaw); err != nil {
		return fmt.Errorf("ann: write id map: %w", err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".ann-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
