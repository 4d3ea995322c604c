package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	queryText string
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Answer one question from the terminal",
	Long: `Answer a single question with the same pipeline the HTTP server uses.

Examples:
  virtualta query -q "Should I use Docker or Podman?"
  virtualta query -q "When is the GA4 deadline?" --json`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "question (required)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	uc, err := newQueryUseCase(GetConfig())
	if err != nil {
		return err
	}

	resp, err := uc.Ask(context.Background(), queryText)
	if err != nil {
		return err
	}

	if queryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Println(resp.Response)
	if len(resp.Links) > 0 {
		fmt.Println("\nSources:")
		for i, l := range resp.Links {
			fmt.Printf("  [%d] %s\n", i+1, l)
		}
	}
	if len(resp.Images) > 0 {
		fmt.Println("\nImages:")
		for _, img := range resp.Images {
			fmt.Printf("  - %s\n", img)
		}
	}
	return nil
}
