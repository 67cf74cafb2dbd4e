package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/adaptive-retrieval/internal/config"
	"github.com/kirillkom/adaptive-retrieval/internal/index/ann"
	"github.com/kirillkom/adaptive-retrieval/internal/infrastructure/content"
	"github.com/kirillkom/adaptive-retrieval/internal/infrastructure/embed"
)

// Builds the vector reranker's artifact from the local corpus. Run it after
// corpus changes; the api process picks the new files up on restart.
func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	corpus, err := content.NewLocalCorpus(cfg.CorpusPath)
	if err != nil {
		log.Fatalf("corpus error: %v", err)
	}
	files, err := corpus.List(ctx)
	if err != nil {
		log.Fatalf("corpus listing error: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("corpus at %s is empty", cfg.CorpusPath)
	}

	embedder := embed.NewOllamaEmbedder(cfg.EmbedURL, cfg.EmbedModel, 60*time.Second)

	ids := make([]string, 0, len(files))
	texts := make([]string, 0, len(files))
	for _, file := range files {
		body, err := corpus.Read(ctx, file.Path)
		if err != nil {
			log.Printf("skipping %s: %v", file.Path, err)
			continue
		}
		ids = append(ids, file.Path)
		texts = append(texts, body)
	}

	const batchSize = 16
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := embedder.Embed(ctx, texts[start:end])
		if err != nil {
			log.Fatalf("embedding batch %d error: %v", start/batchSize, err)
		}
		vectors = append(vectors, batch...)
	}

	if err := ann.WriteArtifact(cfg.ANNVectorsPath, cfg.ANNIDMapPath, ids, vectors); err != nil {
		log.Fatalf("artifact write error: %v", err)
	}
	log.Printf("wrote %d vectors to %s", len(vectors), cfg.ANNVectorsPath)
}
