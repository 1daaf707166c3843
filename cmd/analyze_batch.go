package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/datalens/internal/analysis"
	"github.com/KaramelBytes/datalens/internal/ingest"
	"github.com/KaramelBytes/datalens/internal/utils"
)

var (
	abOutDir string
	abQuiet  bool
	abJobs   int
	abIngest ingestOptions
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple CSV/TSV/XLSX/JSON files with progress, optionally writing one summary per file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}

		// Files are loaded and summarized in parallel; output is written in
		// input order so collision suffixes stay stable.
		loadedConfig()
		results := make([]batchResult, len(files))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(max(abJobs, 1))
		for i, path := range files {
			g.Go(func() error {
				r := &results[i]
				res, err := loadTable(ctx, path, abIngest, &r.notes)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				rep := analysis.Summarize(res.Table)
				rep.Name = filepath.Base(path)
				r.markdown = rep.Markdown()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		total := len(files)
		for i, path := range files {
			r := &results[i]
			if !abQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
				_, _ = r.notes.WriteTo(out)
			}
			if abOutDir == "" {
				if !abQuiet {
					fmt.Fprintln(out, r.markdown)
				}
				continue
			}
			outFile := summaryPath(abOutDir, path)
			if outFile != filepath.Join(abOutDir, stem(path)+".summary.md") && !abQuiet {
				fmt.Fprintf(out, "⚠ Detected existing summary, writing to %s to avoid overwrite.\n", filepath.Base(outFile))
			}
			if err := utils.SafeWriteFile(outFile, []byte(r.markdown)); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
			if !abQuiet {
				fmt.Fprintf(out, "✓ Wrote %s\n", outFile)
			}
		}
		return nil
	},
}

type batchResult struct {
	notes    bytes.Buffer
	markdown string
}

// expandInputs resolves globs, keeps literal paths that exist, drops
// duplicates and sorts the result. Glob matches in unsupported formats are
// skipped.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			if len(matches) > 1 && !ingest.Supported(m) {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// summaryPath picks <dir>/<stem>.summary.md, or the first free
// <stem>__N.summary.md when that exists.
func summaryPath(dir, path string) string {
	base := stem(path)
	outFile := filepath.Join(dir, base+".summary.md")
	if _, err := os.Stat(outFile); err != nil {
		return outFile
	}
	for idx := 2; ; idx++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s__%d.summary.md", base, idx))
		if _, err := os.Stat(cand); os.IsNotExist(err) {
			return cand
		}
	}
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "", "directory to write <name>.summary.md files (prints to stdout if empty)")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
	analyzeBatchCmd.Flags().IntVar(&abJobs, "jobs", 4, "files to analyze in parallel")
	addIngestFlags(analyzeBatchCmd, &abIngest)
}
