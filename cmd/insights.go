package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datalens/internal/insight"
)

var (
	insOutputPath string
	insJSON       bool
	insRuntime    runtimeOptions
	insIngest     ingestOptions
)

var insightsCmd = &cobra.Command{
	Use:   "insights <file>",
	Short: "Ask the configured model for insights about a dataset",
	Example: `  datalens insights sales.csv
  datalens insights sales.xlsx --provider anthropic --model claude-3-5-haiku-latest --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		res, err := loadTable(cmd.Context(), args[0], insIngest, out)
		if err != nil {
			return err
		}
		adapter, err := buildAdapter(loadedConfig(), insRuntime)
		if err != nil {
			return err
		}
		p, err := adapter.GenerateInsights(cmd.Context(), res.Table)
		if err != nil {
			return err
		}
		return writeOutput(insightText(p), p, outputOptions{JSON: insJSON, OutputPath: insOutputPath, Writer: out})
	},
}

func insightText(p *insight.Payload) string {
	var b strings.Builder
	b.WriteString("=== AI Insights ===\n")
	b.WriteString(p.Summary + "\n")
	list := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s:\n", title)
		for i, s := range items {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, s)
		}
	}
	list("Key findings", p.KeyFindings)
	list("Recommendations", p.Recommendations)
	list("Data quality notes", p.DataQualityNotes)
	if len(p.Metrics) > 0 {
		b.WriteString("\nKey metrics:\n")
		for _, m := range p.Metrics {
			fmt.Fprintf(&b, "  - %s: %s\n", m.Name, m.Value)
		}
	}
	return b.String()
}

func addRuntimeFlags(cmd *cobra.Command, o *runtimeOptions) {
	cmd.Flags().StringVar(&o.Provider, "provider", "", "LLM provider: openai | openrouter | anthropic | ollama (overrides config)")
	cmd.Flags().StringVar(&o.Model, "model", "", "model name (overrides config)")
	cmd.Flags().StringVar(&o.OllamaHost, "ollama-host", "", "Ollama host URL (overrides config)")
}

func init() {
	rootCmd.AddCommand(insightsCmd)
	insightsCmd.Flags().StringVarP(&insOutputPath, "output", "o", "", "optional path to write the insights")
	insightsCmd.Flags().BoolVar(&insJSON, "json", false, "emit the insight payload as JSON")
	addRuntimeFlags(insightsCmd, &insRuntime)
	addIngestFlags(insightsCmd, &insIngest)
}
