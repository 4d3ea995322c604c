package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"virtualta/config"
	"virtualta/internal/adapter/embedding"
	"virtualta/internal/adapter/retriever"
	"virtualta/internal/adapter/store"
	"virtualta/internal/port"
	"virtualta/internal/usecase"
)

func main() {
	rootDir := flag.String("dir", ".", "Directory holding virtualta.yaml and the indexes")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run cmd/benchmark/main.go -dir . -q \"query\"")
		fmt.Println("\nTests:")
		fmt.Println("  1. Embedding infrastructure (model connection, saved indexes)")
		fmt.Println("  2. Semantic similarity (query vs results)")
		fmt.Println("  3. Source mix (how many hits come from course pages vs the forum)")
		os.Exit(1)
	}

	if err := config.LoadDotEnv(filepath.Join(*rootDir, ".env")); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadFromDir(*rootDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	embedder, err := setupEmbedder(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Semantic search not available: %v\n", err)
		os.Exit(1)
	}

	paths, err := cfg.IndexPaths()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading index paths: %v\n", err)
		os.Exit(1)
	}
	for i, p := range paths {
		if !filepath.IsAbs(p) {
			paths[i] = filepath.Join(*rootDir, p)
		}
	}
	index, err := usecase.NewIndexLoader(store.NewBoltIndexStore(), embedder.ModelName(), nil).Load(paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading indexes: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("SEMANTIC SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Records loaded: %d\n", index.Len())
	fmt.Printf("Model: %s (%s)\n", cfg.Embedding.Model, cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", index.Dimension())
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	results, err := retriever.NewSemanticRetriever(index, embedder).Search(context.Background(), *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		os.Exit(1)
	}

	fmt.Printf("Top %d semantic matches:\n\n", len(results))

	totalScore := 0.0
	forum := 0
	for i, r := range results {
		preview := []rune(r.Chunk.Text)
		if len(preview) > 150 {
			preview = append(preview[:150], []rune("...")...)
		}
		text := strings.ReplaceAll(string(preview), "\n", " ")

		similarity := r.Score
		totalScore += similarity

		rating := "LOW"
		if similarity > 0.7 {
			rating = "HIGH"
		} else if similarity > 0.5 {
			rating = "GOOD"
		} else if similarity > 0.3 {
			rating = "OK"
		}

		if strings.Contains(r.Chunk.Metadata.Source, "/t/") {
			forum++
		}

		fmt.Printf("%d. [%s %.3f] %s\n", i+1, rating, similarity, label(r.Chunk.Metadata.Title, r.Chunk.Metadata.Source))
		fmt.Printf("   %s\n\n", text)
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)
	fmt.Printf("  Forum hits:         %d of %d\n", forum, len(results))

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - semantic search working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need better embeddings or re-indexing")
	}
}

func label(title, source string) string {
	switch {
	case title != "" && source != "":
		return title + " <" + source + ">"
	case title != "":
		return title
	case source != "":
		return source
	default:
		return "(untitled)"
	}
}

func setupEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "", "openai":
		key, err := cfg.APIKey()
		if err != nil {
			return nil, err
		}
		return embedding.NewOpenAIEmbedder(embedding.Config{
			BaseURL:    cfg.Provider.EmbeddingURL,
			APIKey:     key,
			Model:      cfg.Embedding.Model,
			Timeout:    cfg.Service.RequestTimeout,
			MaxRetries: cfg.Provider.MaxRetries,
		})
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Embedding.Provider)
	}
}
