package lexical

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75

	titleBoostWeight    = 0.7
	recencyHalfLife     = 365 * 24 * time.Hour
	recencyDefaultBoost = 0.5
)

var isoDatePattern = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)

// Chunk is one indexed unit of text. Immutable between rebuilds.
type Chunk struct {
	ID       string
	Title    string
	Body     string
	Path     string
	TokenLen int
	ModTime  time.Time
}

type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

type posting struct {
	chunk int
	tf    int
}

// snapshot is one fully built index generation. Readers hold a reference to
// a snapshot and never observe in-place mutation.
type snapshot struct {
	chunks    []Chunk
	postings  map[string][]posting
	docFreq   map[string]int
	norms     []float64
	avgDl     float64
	fileCount int
}

// Index serves BM25 scoring over a corpus of chunked source files. Rebuilds
// are lazy: a search that observes a changed file count builds a fresh
// snapshot and swaps it in atomically.
type Index struct {
	provider ports.CorpusProvider
	window   int

	buildMu sync.Mutex
	snap    atomic.Pointer[snapshot]
}

func NewIndex(provider ports.CorpusProvider, chunkWindow int) *Index {
	if chunkWindow <= 0 {
		chunkWindow = defaultChunkWindow
	}
	ix := &Index{
		provider: provider,
		window:   chunkWindow,
	}
	ix.snap.Store(&snapshot{
		postings: map[string][]posting{},
		docFreq:  map[string]int{},
	})
	return ix
}

// Search returns up to maxCandidates chunks ordered by descending score.
// An empty query (no tokens of minimum length) yields an empty result.
// Build failures leave the previous snapshot serving.
func (ix *Index) Search(ctx context.Context, query, pathFilter string, maxCandidates int) []ScoredChunk {
	if maxCandidates <= 0 {
		return nil
	}
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	snap := ix.ensureFresh(ctx)
	if len(snap.chunks) == 0 {
		return nil
	}

	queryTokenSet := make(map[string]struct{}, len(queryTokens))
	for _, token := range queryTokens {
		queryTokenSet[token] = struct{}{}
	}

	scores := make(map[int]float64)
	for token := range queryTokenSet {
		postings, ok := snap.postings[token]
		if !ok {
			continue
		}
		df := snap.docFreq[token]
		idf := math.Log((float64(len(snap.chunks))-float64(df)+0.5)/(float64(df)+0.5) + 1)
		for _, p := range postings {
			tf := float64(p.tf)
			scores[p.chunk] += idf * (tf * (bm25K1 + 1)) / (tf + snap.norms[p.chunk])
		}
	}

	out := make([]ScoredChunk, 0, len(scores))
	for chunkIdx, score := range scores {
		chunk := snap.chunks[chunkIdx]
		if pathFilter != "" && !strings.Contains(chunk.Path, pathFilter) {
			continue
		}
		score += titleBoostWeight * OverlapRatio(queryTokenSet, TokenSet(chunk.Title))
		score += recencyBoost(chunk.Body, time.Now())
		out = append(out, ScoredChunk{Chunk: chunk, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}

// ensureFresh rebuilds when the eligible file count changed since the last
// build. Only one goroutine builds; the rest serve the current snapshot.
func (ix *Index) ensureFresh(ctx context.Context) *snapshot {
	current := ix.snap.Load()

	files, err := ix.provider.List(ctx)
	if err != nil {
		slog.Warn("lexical_corpus_list_failed", "error", err)
		return current
	}
	if len(files) == current.fileCount {
		return current
	}

	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	// Another goroutine may have rebuilt while we waited.
	current = ix.snap.Load()
	if len(files) == current.fileCount {
		return current
	}

	fresh, err := ix.build(ctx, files)
	if err != nil {
		slog.Warn("lexical_index_build_failed", "error", err, "files", len(files))
		return current
	}

	ix.snap.Store(fresh)
	slog.Info("lexical_index_rebuilt",
		"files", fresh.fileCount,
		"chunks", len(fresh.chunks),
		"terms", len(fresh.postings),
	)
	return fresh
}

func (ix *Index) build(ctx context.Context, files []ports.CorpusFile) (*snapshot, error) {
	snap := &snapshot{
		postings:  map[string][]posting{},
		docFreq:   map[string]int{},
		fileCount: len(files),
	}

	for _, file := range files {
		text, err := ix.provider.Read(ctx, file.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file.Path, err)
		}

		title := strings.TrimSuffix(filepath.Base(file.Path), filepath.Ext(file.Path))
		for i, raw := range splitDocument(title, text, ix.window) {
			tokens := Tokenize(raw.body)
			chunkIdx := len(snap.chunks)
			snap.chunks = append(snap.chunks, Chunk{
				ID:       fmt.Sprintf("%s#%d", file.Path, i),
				Title:    raw.title,
				Body:     raw.body,
				Path:     file.Path,
				TokenLen: len(tokens),
				ModTime:  file.ModTime,
			})

			tfs := make(map[string]int, len(tokens))
			for _, token := range tokens {
				tfs[token]++
			}
			for token, tf := range tfs {
				snap.postings[token] = append(snap.postings[token], posting{chunk: chunkIdx, tf: tf})
				snap.docFreq[token]++
			}
		}
	}

	totalLen := 0
	for _, chunk := range snap.chunks {
		totalLen += chunk.TokenLen
	}
	if len(snap.chunks) > 0 {
		snap.avgDl = float64(totalLen) / float64(len(snap.chunks))
	}

	snap.norms = make([]float64, len(snap.chunks))
	for i, chunk := range snap.chunks {
		dl := float64(chunk.TokenLen)
		if snap.avgDl > 0 {
			snap.norms[i] = bm25K1 * (1 - bm25B + bm25B*dl/snap.avgDl)
		} else {
			snap.norms[i] = bm25K1
		}
	}
	return snap, nil
}

// recencyBoost decays exponentially over ~365 days from an ISO date embedded
// in the body. Bodies without a date get a neutral default.
func recencyBoost(body string, now time.Time) float64 {
	match := isoDatePattern.FindString(body)
	if match == "" {
		return recencyDefaultBoost
	}
	parsed, err := time.Parse("2006-01-02", match)
	if err != nil {
		return recencyDefaultBoost
	}
	age := now.Sub(parsed)
	if age < 0 {
		age = 0
	}
	return math.Exp(-age.Hours() / recencyHalfLife.Hours())
}
