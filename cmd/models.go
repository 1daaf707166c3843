package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datalens/internal/ai"
	"github.com/KaramelBytes/datalens/internal/utils"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect or update the model catalog used for context-window checks and cost estimates",
	Example: `  datalens models show --provider anthropic
  datalens models sync --file ./models.json --merge
  datalens models fetch --url https://example.com/models.json --output models.json`,
}

var (
	showProvider string
	showJSON     bool
)

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := ai.Catalog()
		keys := make([]string, 0, len(cat))
		for k, m := range cat {
			if showProvider != "" && m.Provider != showProvider {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := cmd.OutOrStdout()
		if showJSON {
			sel := make(map[string]ai.ModelInfo, len(keys))
			for _, k := range keys {
				sel[k] = cat[k]
			}
			b, err := utils.PrettyJSON(sel)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		c := loadedConfig()
		current := selectModel(c, "")
		for _, k := range keys {
			m := cat[k]
			mark := " "
			if k == current {
				mark = "*"
			}
			fmt.Fprintf(out, "%s %-36s %-10s ctx=%-8d in=$%.4f/1K out=$%.4f/1K\n", mark, k, m.Provider, m.ContextTokens, m.InputPerK, m.OutputPerK)
		}
		return nil
	},
}

var (
	syncPath  string
	syncMerge bool
)

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load model catalog/pricing from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return fmt.Errorf("--file is required")
		}
		m, err := ai.LoadCatalogFromJSON(syncPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		if syncMerge {
			ai.MergeCatalog(m)
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Merged %d models from file\n", len(m))
		} else {
			ai.OverrideCatalog(m)
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Replaced model catalog with %d models from file\n", len(m))
		}
		return nil
	},
}

var (
	fetchURL    string
	fetchOutput string
	fetchMerge  bool
)

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch model catalog/pricing JSON from a URL and apply it",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := fetchURL
		merge := fetchMerge
		if url == "" {
			c := loadedConfig()
			url = c.ModelsCatalogURL
			if !cmd.Flags().Changed("merge") {
				merge = c.ModelsMerge
			}
		}
		if url == "" {
			return fmt.Errorf("--url is required (or set models_catalog_url)")
		}
		m, err := fetchAndApplyCatalog(url, merge)
		if err != nil {
			return err
		}
		if fetchOutput != "" {
			data, err := utils.PrettyJSON(m)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(fetchOutput, data); err != nil {
				return fmt.Errorf("write file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved catalog to %s\n", fetchOutput)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Applied %d models from %s\n", len(m), url)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsSyncCmd)
	modelsCmd.AddCommand(modelsFetchCmd)

	modelsShowCmd.Flags().StringVar(&showProvider, "provider", "", "only list models of this provider")
	modelsShowCmd.Flags().BoolVar(&showJSON, "json", false, "print the catalog as JSON (the format sync and fetch accept)")

	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to JSON catalog file")
	modelsSyncCmd.Flags().BoolVar(&syncMerge, "merge", false, "merge into existing catalog instead of replacing")

	modelsFetchCmd.Flags().StringVar(&fetchURL, "url", "", "URL to JSON catalog file (default: models_catalog_url)")
	modelsFetchCmd.Flags().StringVar(&fetchOutput, "output", "", "optional path to save the fetched JSON")
	modelsFetchCmd.Flags().BoolVar(&fetchMerge, "merge", false, "merge into existing catalog instead of replacing")
}
