package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datalens/internal/chart"
	"github.com/KaramelBytes/datalens/internal/utils"
)

var (
	chReq        chart.Request
	chKind       string
	chAuto       bool
	chDashboard  bool
	chOutputPath string
	chIngest     ingestOptions
)

var chartCmd = &cobra.Command{
	Use:   "chart <file>",
	Short: "Build a chart specification (JSON) from a dataset",
	Example: `  datalens chart sales.csv --kind bar --x region --y revenue
  datalens chart sales.csv --kind histogram --x revenue --bins 20
  datalens chart sales.csv --auto -o charts.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		res, err := loadTable(cmd.Context(), args[0], chIngest, out)
		if err != nil {
			return err
		}
		t := res.Table

		var v any
		switch {
		case chAuto:
			charts, warnings := chart.Auto(t)
			for _, w := range warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %s\n", w)
			}
			v = charts
		case chDashboard:
			v = chart.Dashboard(t)
		default:
			if chKind == "" {
				return fmt.Errorf("--kind is required (one of %s), or use --auto", kindList())
			}
			req := chReq
			req.Kind = chart.Kind(strings.ToLower(chKind))
			spec, err := chart.Build(t, req)
			if err != nil {
				return err
			}
			v = spec
		}
		b, err := utils.PrettyJSON(v)
		if err != nil {
			return err
		}
		return writeOutput(string(b), nil, outputOptions{OutputPath: chOutputPath, Writer: out})
	},
}

func kindList() string {
	names := make([]string, len(chart.Kinds))
	for i, k := range chart.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.Flags().StringVar(&chKind, "kind", "", "chart kind: line | bar | scatter | histogram | correlation")
	chartCmd.Flags().StringVar(&chReq.X, "x", "", "x column")
	chartCmd.Flags().StringVar(&chReq.Y, "y", "", "y column")
	chartCmd.Flags().StringVar(&chReq.Color, "color", "", "optional color column")
	chartCmd.Flags().StringVar(&chReq.Size, "size", "", "optional numeric size column (scatter)")
	chartCmd.Flags().IntVar(&chReq.Bins, "bins", 0, fmt.Sprintf("histogram bins (default %d, max %d)", chart.DefaultBins, chart.MaxBins))
	chartCmd.Flags().StringVar(&chReq.Title, "title", "", "chart title")
	chartCmd.Flags().BoolVar(&chAuto, "auto", false, "build the automatic chart bundle")
	chartCmd.Flags().BoolVar(&chDashboard, "dashboard", false, "build the dashboard charts")
	chartCmd.Flags().StringVarP(&chOutputPath, "output", "o", "", "optional path to write the JSON")
	addIngestFlags(chartCmd, &chIngest)
}
