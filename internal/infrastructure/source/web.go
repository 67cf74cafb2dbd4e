package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
)

// WebSource queries an external web-search service over HTTP.
type WebSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewWebSource(baseURL, apiKey string, timeout time.Duration) *WebSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *WebSource) Name() domain.Source {
	return domain.SourceWeb
}

func (s *WebSource) Fetch(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&limit=%s",
		s.baseURL, url.QueryEscape(query), strconv.Itoa(k))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create web search request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "web.search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = resp.Status
		}
		return nil, domain.WrapError(domain.ErrTemporary, "web.search", fmt.Errorf("%s", msg))
	}

	var response struct {
		Results []struct {
			URL     string  `json:"url"`
			Title   string  `json:"title"`
			Snippet string  `json:"snippet"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode web search response: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(response.Results))
	for i, result := range response.Results {
		if i >= k {
			break
		}
		candidates = append(candidates, domain.Candidate{
			ID:      result.URL,
			Title:   result.Title,
			Snippet: result.Snippet,
			Source:  domain.SourceWeb,
			Score:   result.Score,
			Rank:    i + 1,
			Metadata: map[string]string{
				"url": result.URL,
			},
		})
	}
	return candidates, nil
}
