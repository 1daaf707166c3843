package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datalens/internal/export"
	"github.com/KaramelBytes/datalens/internal/insight"
	"github.com/KaramelBytes/datalens/internal/utils"
)

var (
	expFormat   string
	expOut      string
	expInsights bool
	expRuntime  runtimeOptions
	expIngest   ingestOptions
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export a normalized dataset as CSV, XLSX or JSON, or an analysis report as Markdown or HTML",
	Example: `  datalens export sales.csv --format xlsx
  datalens export sales.csv --format md --insights --out report.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		f, err := export.ParseFormat(expFormat)
		if err != nil {
			return fmt.Errorf("%w (use csv|xlsx|json|md|html)", err)
		}
		res, err := loadTable(cmd.Context(), args[0], expIngest, out)
		if err != nil {
			return err
		}

		var p *insight.Payload
		if expInsights {
			adapter, err := buildAdapter(loadedConfig(), expRuntime)
			if err != nil {
				return err
			}
			p, err = adapter.GenerateInsights(cmd.Context(), res.Table)
			if err != nil {
				return err
			}
		}

		w := export.NewWriter()
		data, err := w.Export(f, res.Table, p)
		if err != nil {
			return err
		}
		path := expOut
		if path == "" {
			path = f.Filename(filepath.Base(args[0]), w.Clock.Now())
		}
		if err := utils.SafeWriteFile(path, data); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(out, "✓ Exported %d rows to %s\n", res.Table.Len(), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&expFormat, "format", "f", "csv", "export format: csv | xlsx | json | md | html")
	exportCmd.Flags().StringVar(&expOut, "out", "", "output path (default: <name>_data_export_<timestamp>.<ext>)")
	exportCmd.Flags().BoolVar(&expInsights, "insights", false, "include AI insights in md/html reports")
	addRuntimeFlags(exportCmd, &expRuntime)
	addIngestFlags(exportCmd, &expIngest)
}
