package domain

import (
	"net/url"
	"strings"
)

type Source string

const (
	SourceLexical Source = "lexical"
	SourceWeb     Source = "web"
	SourceVector  Source = "vector"
	SourceGraph   Source = "graph"
)

// Candidate is the unit passed between fusion, diversification and reranking.
// Stages produce new slices instead of mutating shared ones.
type Candidate struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Snippet  string            `json:"snippet"`
	Source   Source            `json:"source"`
	Score    float64           `json:"score"`
	Rank     int               `json:"rank"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (c Candidate) URL() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata["url"]
}

// DedupKey identifies the same underlying document across sources:
// the canonical URL when one is present, the candidate id otherwise.
func (c Candidate) DedupKey() string {
	if u := c.URL(); u != "" {
		return CanonicalURL(u)
	}
	return c.ID
}

// CanonicalURL strips tracking query parameters and fragments so that the
// same page fetched from different sources deduplicates to one key.
func CanonicalURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parsed.Fragment = ""

	query := parsed.Query()
	for param := range query {
		if isTrackingParam(param) {
			query.Del(param)
		}
	}
	parsed.RawQuery = query.Encode()

	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	if parsed.Path != "/" {
		parsed.Path = strings.TrimRight(parsed.Path, "/")
	}
	return parsed.String()
}

func isTrackingParam(name string) bool {
	name = strings.ToLower(name)
	if strings.HasPrefix(name, "utm_") {
		return true
	}
	switch name {
	case "fbclid", "gclid", "yclid", "ref", "mc_cid", "mc_eid":
		return true
	}
	return false
}
