package content

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
)

var indexableExtensions = map[string]bool{
	".md":  true,
	".txt": true,
}

// LocalCorpus serves the lexical index from a directory tree of markdown
// and plain-text files. Implements ports.CorpusProvider.
type LocalCorpus struct {
	basePath string
}

func NewLocalCorpus(basePath string) (*LocalCorpus, error) {
	if basePath == "" {
		basePath = "./data/corpus"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create corpus dir: %w", err)
	}
	return &LocalCorpus{basePath: basePath}, nil
}

func (c *LocalCorpus) List(ctx context.Context) ([]ports.CorpusFile, error) {
	var files []ports.CorpusFile
	err := filepath.WalkDir(c.basePath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") && path != c.basePath {
				return fs.SkipDir
			}
			return nil
		}
		if !indexableExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		relative, err := filepath.Rel(c.basePath, path)
		if err != nil {
			return err
		}
		files = append(files, ports.CorpusFile{
			Path:    filepath.ToSlash(relative),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus: %w", err)
	}
	return files, nil
}

func (c *LocalCorpus) Read(_ context.Context, path string) (string, error) {
	full := filepath.Join(c.basePath, filepath.FromSlash(path))
	if !strings.HasPrefix(filepath.Clean(full), filepath.Clean(c.basePath)) {
		return "", fmt.Errorf("corpus path escapes base dir: %s", path)
	}
	raw, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("read corpus file: %w", err)
	}
	return string(raw), nil
}
