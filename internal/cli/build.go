package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"virtualta/internal/adapter/chunker"
	"virtualta/internal/adapter/source"
	"virtualta/internal/adapter/store"
	"virtualta/internal/domain"
	"virtualta/internal/port"
	"virtualta/internal/usecase"
)

var (
	buildInputs []string
	buildOut    string
)

var buildCmd = &cobra.Command{
	Use:   "build <collection>",
	Short: "Chunk, embed and save one collection's index",
	Long: `Load the raw JSON documents of a collection, split them with the
collection's chunk profile, embed the chunks in batches and save the index.

An existing index at the output location is replaced only after the new
one has been written completely.

Examples:
  virtualta build course
  virtualta build discourse --input 'data/discourse/**/*.json' --out data/index/discourse`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringSliceVarP(&buildInputs, "input", "i", nil, "source files or glob patterns (default from config)")
	buildCmd.Flags().StringVarP(&buildOut, "out", "o", "", "index directory (default from config)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	name := args[0]
	col, err := cfg.Collection(name)
	if err != nil {
		return err
	}

	inputs := buildInputs
	if len(inputs) == 0 {
		inputs = col.Sources
	}
	patterns := make([]string, len(inputs))
	for i, p := range inputs {
		patterns[i] = resolvePath(p)
	}
	out := resolvePath(col.IndexPath)
	if buildOut != "" {
		out = resolvePath(buildOut)
	}

	files, err := source.Expand(patterns)
	if err != nil {
		return err
	}
	docs, err := source.LoadFiles(source.Format(col.Format), files)
	if err != nil {
		return err
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	chk := chunker.NewRecursiveChunker(col.ChunkSize, col.Overlap)
	builder := usecase.NewIndexBuilder(chk, embedder, cfg.Embedding.BatchSize)

	chunks := builder.Chunk(docs)
	if len(chunks) == 0 {
		return fmt.Errorf("no content to index in %d file(s)", len(files))
	}
	fmt.Printf("Loaded %d documents from %d file(s), %d chunks\n", len(docs), len(files), len(chunks))

	bar := progressbar.NewOptions(len(chunks),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
	builder.WithProgress(func(embedded, total int) {
		_ = bar.Set(embedded)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	index, err := builder.BuildChunks(ctx, chunks)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	info := domain.IndexInfo{
		Collection:     name,
		EmbeddingModel: embedder.ModelName(),
		ChunkSize:      chk.ChunkSize(),
		Overlap:        chk.Overlap(),
		BuiltAt:        time.Now().UTC().Format(time.RFC3339),
	}
	if err := writeIndex(store.NewBoltIndexStore(), out, info, index); err != nil {
		return err
	}

	logger.Info("index built", "collection", name, "records", index.Len(), "dimension", index.Dimension(), "duration", time.Since(start))
	fmt.Printf("\nBuild complete:\n")
	fmt.Printf("  Collection: %s\n", name)
	fmt.Printf("  Records:    %d\n", index.Len())
	fmt.Printf("  Dimension:  %d\n", index.Dimension())
	fmt.Printf("  Duration:   %s\n", formatDuration(time.Since(start)))
	fmt.Printf("\nIndex stored at: %s\n", store.IndexPath(out))
	return nil
}

// writeIndex saves a built index under dir. An index without records is
// refused so that a bad input glob cannot replace a working index.
func writeIndex(w port.IndexWriter, dir string, info domain.IndexInfo, index *store.VectorIndex) error {
	if index.Len() == 0 {
		return fmt.Errorf("refusing to save an empty index to %s", dir)
	}
	info.Dimension = index.Dimension()
	if err := w.Save(dir, info, index.Records()); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
