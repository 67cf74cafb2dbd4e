package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
)

// CrossEncoder delegates pair scoring to a remotely served model. Any load
// or inference failure drops the whole list to the heuristic scorer; the
// degradation is logged once per process, not per query.
type CrossEncoder struct {
	baseURL    string
	model      string
	httpClient *http.Client
	fallback   *Heuristic
	logger     *slog.Logger

	degradedOnce sync.Once
}

func NewCrossEncoder(baseURL, model string, timeout time.Duration, fallback *Heuristic, logger *slog.Logger) *CrossEncoder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if fallback == nil {
		fallback = NewHeuristic()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CrossEncoder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		fallback:   fallback,
		logger:     logger,
	}
}

func (c *CrossEncoder) Name() string {
	return "cross_encoder"
}

func (c *CrossEncoder) Score(ctx context.Context, query, title, content string) (float64, error) {
	request := map[string]any{
		"model": c.model,
		"query": query,
		"text":  title + "\n" + content,
	}
	var response struct {
		Score float64 `json:"score"`
	}
	if err := c.postJSON(ctx, "/v1/score", request, &response); err != nil {
		c.noteDegraded(err)
		return c.fallback.Score(ctx, query, title, content)
	}
	if response.Score < 0 {
		return 0, nil
	}
	if response.Score > 1 {
		return 1, nil
	}
	return response.Score, nil
}

// Rerank scores the list remotely in one call. On failure it reranks with
// the heuristic instead, so the caller always gets a usable ordering.
func (c *CrossEncoder) Rerank(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	docs := make([]string, len(candidates))
	for i, candidate := range candidates {
		docs[i] = candidate.Title + "\n" + candidate.Snippet
	}
	request := map[string]any{
		"model":     c.model,
		"query":     query,
		"documents": docs,
	}
	var response struct {
		Scores []float64 `json:"scores"`
	}
	if err := c.postJSON(ctx, "/v1/rerank", request, &response); err != nil {
		c.noteDegraded(err)
		return c.fallback.Rerank(ctx, query, candidates)
	}
	if len(response.Scores) != len(candidates) {
		c.noteDegraded(fmt.Errorf("got %d scores for %d documents", len(response.Scores), len(candidates)))
		return c.fallback.Rerank(ctx, query, candidates)
	}

	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].Score = response.Scores[i]
	}
	sortCandidates(out)
	return out, nil
}

func (c *CrossEncoder) noteDegraded(err error) {
	c.degradedOnce.Do(func() {
		c.logger.Warn("cross-encoder unavailable, using heuristic fallback", "error", err)
	})
}

func (c *CrossEncoder) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrBackendDegraded, "rerank.post", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = resp.Status
		}
		return domain.WrapError(domain.ErrBackendDegraded, "rerank.post", fmt.Errorf("%s", msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode rerank response: %w", err)
	}
	return nil
}
