package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datalens/internal/insight"
	"github.com/KaramelBytes/datalens/internal/table"
	"github.com/KaramelBytes/datalens/internal/utils"
)

var (
	askJSON    bool
	askRuntime runtimeOptions
	askIngest  ingestOptions
)

var askCmd = &cobra.Command{
	Use:   "ask <file> <question>",
	Short: "Answer a natural-language question about a dataset",
	Example: `  datalens ask sales.csv "which region has the highest revenue?"
  datalens ask orders.json "total order value" --json`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args[1:], " "))
		if question == "" {
			return fmt.Errorf("question is required")
		}
		out := cmd.OutOrStdout()
		res, err := loadTable(cmd.Context(), args[0], askIngest, out)
		if err != nil {
			return err
		}
		adapter, err := buildAdapter(loadedConfig(), askRuntime)
		if err != nil {
			return err
		}
		qr, err := adapter.ProcessQuery(cmd.Context(), res.Table, question)
		if err != nil {
			return err
		}
		return writeOutput(answerText(qr), qr, outputOptions{JSON: askJSON, Writer: out})
	},
}

func answerText(qr *insight.QueryResult) string {
	var b strings.Builder
	b.WriteString(qr.Answer + "\n")
	if d := qr.Data; d != nil && d.Table != nil {
		title := string(d.Operation)
		if d.Label != "" {
			title += " (" + d.Label + ")"
		}
		fmt.Fprintf(&b, "\n%s:\n", title)
		if d.Unfiltered {
			fmt.Fprintf(&b, "⚠ %s\n", d.Note)
		}
		b.WriteString(tableMarkdown(d.Table))
	}
	if qr.Chart != nil {
		fmt.Fprintf(&b, "\n✓ Suggested chart: %s\n", qr.Chart.Title)
	}
	if qr.AdditionalInsights != "" {
		fmt.Fprintf(&b, "\n%s\n", qr.AdditionalInsights)
	}
	return b.String()
}

func tableMarkdown(t *table.Table) string {
	rows := make([][]string, t.Len())
	for i := range rows {
		row := t.Row(i)
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = table.Format(v)
		}
		rows[i] = cells
	}
	return utils.MarkdownTable(t.Names(), rows)
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askJSON, "json", false, "emit the full query result as JSON")
	addRuntimeFlags(askCmd, &askRuntime)
	addIngestFlags(askCmd, &askIngest)
}
