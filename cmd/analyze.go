package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datalens/internal/analysis"
	"github.com/KaramelBytes/datalens/internal/ingest"
)

var (
	anaOutputPath string
	anaJSON       bool
	anaIngest     ingestOptions
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Load a CSV/TSV/XLSX/JSON file and print a concise summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		out := cmd.OutOrStdout()
		res, err := loadTable(cmd.Context(), path, anaIngest, out)
		if err != nil {
			return err
		}
		rep := analysis.Summarize(res.Table)
		rep.Name = filepath.Base(path)

		var b strings.Builder
		fmt.Fprintf(&b, "✓ Loaded %s (%s, %s): %s rows × %d columns\n",
			rep.Name, res.Format, res.Encoding, analysis.Thousands(rep.Rows), rep.Columns)
		for _, line := range inferenceNotes(res.Inferences) {
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
		b.WriteString(rep.Markdown())

		return writeOutput(b.String(), rep, outputOptions{JSON: anaJSON, OutputPath: anaOutputPath, Writer: out})
	},
}

// inferenceNotes describes each type change normalization made, and each
// date-like column it could not convert.
func inferenceNotes(infs []ingest.Inference) []string {
	var out []string
	for _, inf := range infs {
		switch {
		case inf.Promoted:
			out = append(out, fmt.Sprintf("✓ %s: %s → %s (%d/%d values parsed)",
				inf.Column, analysis.TypeLabel(inf.From), analysis.TypeLabel(inf.To), inf.Parsed, inf.NonNull))
		case inf.Step == "timestamp":
			out = append(out, fmt.Sprintf("⚠ %s: looks like a date column but no value parsed; kept as %s",
				inf.Column, analysis.TypeLabel(inf.From)))
		}
	}
	return out
}

func addIngestFlags(cmd *cobra.Command, o *ingestOptions) {
	cmd.Flags().StringVar(&o.Delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | 'pipe'")
	cmd.Flags().IntVar(&o.MaxRows, "max-rows", 0, "maximum rows to keep (0 = unlimited)")
	cmd.Flags().StringSliceVar(&o.Encodings, "encodings", nil, "CSV encodings to try in order (overrides config)")
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the analysis")
	analyzeCmd.Flags().BoolVar(&anaJSON, "json", false, "emit the summary report as JSON")
	addIngestFlags(analyzeCmd, &anaIngest)
}
