package source

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
)

const graphQuery = `
CALL db.index.fulltext.queryNodes($index, $query) YIELD node, score
RETURN node.id AS id, node.title AS title, node.summary AS snippet, node.url AS url, score
ORDER BY score DESC
LIMIT $limit
`

// GraphSource retrieves entities from a Neo4j knowledge graph through a
// full-text index.
type GraphSource struct {
	driver    neo4j.DriverWithContext
	database  string
	indexName string
}

func NewGraphSource(driver neo4j.DriverWithContext, database, indexName string) *GraphSource {
	if indexName == "" {
		indexName = "entity_search"
	}
	return &GraphSource{driver: driver, database: database, indexName: indexName}
}

func OpenGraphDriver(uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	return driver, nil
}

func (s *GraphSource) Name() domain.Source {
	return domain.SourceGraph
}

func (s *GraphSource) Fetch(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	records, err := session.Run(ctx, graphQuery, map[string]any{
		"index": s.indexName,
		"query": query,
		"limit": k,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "graph.search", err)
	}

	var candidates []domain.Candidate
	rank := 0
	for records.Next(ctx) {
		values := records.Record().AsMap()
		rank++

		candidate := domain.Candidate{
			ID:     stringValue(values, "id"),
			Source: domain.SourceGraph,
			Rank:   rank,
		}
		candidate.Title = stringValue(values, "title")
		candidate.Snippet = stringValue(values, "snippet")
		if score, ok := values["score"].(float64); ok {
			candidate.Score = score
		}
		if pageURL := stringValue(values, "url"); pageURL != "" {
			candidate.Metadata = map[string]string{"url": pageURL}
		}
		if candidate.ID == "" {
			candidate.ID = fmt.Sprintf("graph-%d", rank)
		}
		candidates = append(candidates, candidate)
	}
	if err := records.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "graph.search", err)
	}
	return candidates, nil
}

func stringValue(values map[string]any, key string) string {
	if value, ok := values[key].(string); ok {
		return value
	}
	return ""
}
