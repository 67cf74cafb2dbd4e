package bandit

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
)

// TileFor buckets a query context into one of nine tiles. The hash is
// deterministic so the same context always lands on the same tile.
func TileFor(qctx domain.QueryContext) int {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(qctx.Intent))))
	h.Write([]byte{'|'})
	h.Write([]byte(qctx.Complexity))
	h.Write([]byte{'|', flagByte(qctx.Recency), flagByte(qctx.OfficialOnly)})
	return int(h.Sum32() % domain.TileCount)
}

func flagByte(flag bool) byte {
	if flag {
		return '1'
	}
	return '0'
}

// TileKey is the persisted identifier of a tile.
func TileKey(tile int) string {
	return fmt.Sprintf("tile_%d", tile)
}

// DeriveContext classifies a raw query into the allocator's context space.
// Recency sensitivity comes from the configured keyword list.
func DeriveContext(query string, recencyKeywords []string, officialOnly bool) domain.QueryContext {
	lowered := strings.ToLower(query)

	recency := false
	for _, keyword := range recencyKeywords {
		if keyword != "" && strings.Contains(lowered, strings.ToLower(keyword)) {
			recency = true
			break
		}
	}

	words := len(strings.Fields(query))
	complexity := domain.ComplexitySimple
	switch {
	case words > 12:
		complexity = domain.ComplexityComplex
	case words > 5:
		complexity = domain.ComplexityAmbiguous
	}

	return domain.QueryContext{
		Intent:       "qa",
		Complexity:   complexity,
		Recency:      recency,
		OfficialOnly: officialOnly,
	}
}
