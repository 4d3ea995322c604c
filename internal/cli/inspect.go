package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"virtualta/internal/adapter/store"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <dir>",
	Short: "Show a saved index's metadata",
	Long: `Print the metadata of a saved index without loading its records.

Examples:
  virtualta inspect data/index/course
  virtualta inspect data/index/discourse --json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON")
}

func runInspect(cmd *cobra.Command, args []string) error {
	dir := resolvePath(args[0])

	info, err := store.NewBoltIndexStore().Inspect(dir)
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	if inspectJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Printf("Index:           %s\n", store.IndexPath(dir))
	fmt.Printf("Schema version:  %d\n", info.SchemaVersion)
	fmt.Printf("Collection:      %s\n", info.Collection)
	fmt.Printf("Embedding model: %s\n", info.EmbeddingModel)
	fmt.Printf("Dimension:       %d\n", info.Dimension)
	fmt.Printf("Chunk size:      %d\n", info.ChunkSize)
	fmt.Printf("Overlap:         %d\n", info.Overlap)
	fmt.Printf("Records:         %d\n", info.RecordCount)
	fmt.Printf("Built at:        %s\n", info.BuiltAt)
	return nil
}
