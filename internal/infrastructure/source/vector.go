package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
)

// VectorSource embeds the query and searches a Qdrant-compatible vector
// store. Payloads carry the display fields alongside each point.
type VectorSource struct {
	baseURL    string
	collection string
	embedder   ports.Embedder
	httpClient *http.Client
}

func NewVectorSource(baseURL, collection string, embedder ports.Embedder, timeout time.Duration) *VectorSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VectorSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		embedder:   embedder,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *VectorSource) Name() domain.Source {
	return domain.SourceVector
}

func (s *VectorSource) Fetch(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "vector.embed", err)
	}

	reqBody := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal vector search body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/collections/%s/points/search", s.baseURL, s.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create vector search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "vector.search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, domain.WrapError(domain.ErrTemporary, "vector.search", fmt.Errorf("status %s", resp.Status))
	}

	var response struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode vector search response: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(response.Result))
	for i, point := range response.Result {
		candidate := domain.Candidate{
			ID:     fmt.Sprintf("%v", point.ID),
			Source: domain.SourceVector,
			Score:  point.Score,
			Rank:   i + 1,
		}
		if title, ok := point.Payload["title"].(string); ok {
			candidate.Title = title
		}
		if text, ok := point.Payload["text"].(string); ok {
			candidate.Snippet = snippet(text, 280)
		}
		if pageURL, ok := point.Payload["url"].(string); ok && pageURL != "" {
			candidate.Metadata = map[string]string{"url": pageURL}
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}
