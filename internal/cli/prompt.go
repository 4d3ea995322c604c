package cli

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"text/template"

	"github.com/spf13/cobra"

	"virtualta/internal/domain"
	"virtualta/internal/usecase"
)

//go:embed templates/*.txt
var promptTemplates embed.FS

var (
	promptQuery string
	promptTopK  int
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the prompt the chat model would receive",
	Long: `Retrieve context for a question and print the system and user prompt
that would be sent to the chat model, followed by the retrieved chunks and
their scores. The chat model is not called.

Examples:
  virtualta prompt -q "How do I submit GA2?"
  virtualta prompt -q "docker vs podman" -k 10`,
	Args: cobra.NoArgs,
	RunE: runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().StringVarP(&promptQuery, "query", "q", "", "question (required)")
	promptCmd.Flags().IntVarP(&promptTopK, "top-k", "k", 0, "number of chunks (default from config)")
	promptCmd.MarkFlagRequired("query")
}

type PromptData struct {
	System   string
	Question string
	Chunks   []domain.ScoredChunk
}

func runPrompt(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	retr, _, err := loadRetriever(cfg, embedder)
	if err != nil {
		return err
	}

	topK := cfg.Retrieve.TopK
	if promptTopK > 0 {
		topK = promptTopK
	}
	chunks, err := retr.Search(context.Background(), promptQuery, topK)
	if err != nil {
		return err
	}

	out, err := renderPrompt(PromptData{
		System:   usecase.SystemPrompt(chunks),
		Question: promptQuery,
		Chunks:   chunks,
	})
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func renderPrompt(data PromptData) (string, error) {
	tmplContent, err := promptTemplates.ReadFile("templates/prompt.txt")
	if err != nil {
		return "", fmt.Errorf("template not found: %w", err)
	}

	tmpl, err := template.New("prompt").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).Parse(string(tmplContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}
