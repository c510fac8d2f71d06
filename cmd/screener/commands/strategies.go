package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/scans"
)

// strategiesCmd represents the strategies command
var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List registered strategies",
	Long: `Lists every registered strategy with its default parameters.

Example:
  go run ./cmd/screener strategies
  go run ./cmd/screener strategies --json`,
	RunE: runStrategies,
}

var strategiesJSON bool

func init() {
	rootCmd.AddCommand(strategiesCmd)
	strategiesCmd.Flags().BoolVar(&strategiesJSON, "json", false, "print as JSON")
}

func runStrategies(cmd *cobra.Command, args []string) error {
	infos := scans.Default().Infos()

	if strategiesJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	PrintHeader("Strategies")
	for _, info := range infos {
		fmt.Printf("📊 %s  (%s)\n", info.ID, info.Name)
		fmt.Printf("   %s\n", info.Description)
		if len(info.DefaultParams) > 0 {
			fmt.Printf("   params: %s\n", formatParams(info.DefaultParams))
		}
		fmt.Println()
	}
	return nil
}

func formatParams(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, " ")
}
