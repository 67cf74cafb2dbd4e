package lexical

import "testing"

func TestTokenizeLowercasesAndDropsShortTokens(t *testing.T) {
	tokens := Tokenize("Go is a Systems-Language, v2")
	want := []string{"go", "is", "systems", "language", "v2"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %v", len(want), tokens)
	}
	for i, token := range want {
		if tokens[i] != token {
			t.Fatalf("token %d: expected %q, got %q", i, token, tokens[i])
		}
	}
}

func TestTokenizeMixedScript(t *testing.T) {
	tokens := Tokenize("Kubernetes кластер 配置指南")
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %v", tokens)
	}
	if tokens[1] != "кластер" {
		t.Fatalf("expected cyrillic token preserved, got %q", tokens[1])
	}
}

func TestOverlapRatio(t *testing.T) {
	query := TokenSet("alpha beta gamma")
	doc := TokenSet("alpha gamma delta")

	ratio := OverlapRatio(query, doc)
	if ratio < 0.66 || ratio > 0.67 {
		t.Fatalf("expected ratio ~2/3, got %f", ratio)
	}
	if OverlapRatio(nil, doc) != 0 {
		t.Fatalf("expected zero overlap for empty query")
	}
}
