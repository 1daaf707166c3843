package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/datalens/internal/ai"
	cfgpkg "github.com/KaramelBytes/datalens/internal/config"
	"github.com/KaramelBytes/datalens/internal/ingest"
	"github.com/KaramelBytes/datalens/internal/insight"
	"github.com/KaramelBytes/datalens/internal/utils"
)

// loadedConfig returns the loaded configuration, or defaults when loading failed
// or was skipped.
func loadedConfig() *cfgpkg.Global {
	if cfg == nil {
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return &cfgpkg.Global{Provider: ai.ProviderOpenAI, RetryMaxAttempts: 1}
		}
		cfg = c
	}
	return cfg
}

type ingestOptions struct {
	Delimiter string
	MaxRows   int
	Encodings []string
}

func (o ingestOptions) resolve(c *cfgpkg.Global) (ingest.Options, error) {
	opt := c.IngestOptions()
	if len(o.Encodings) > 0 {
		opt.Encodings = o.Encodings
	}
	if o.MaxRows > 0 {
		opt.MaxRows = o.MaxRows
	}
	switch o.Delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	case "|", "pipe":
		opt.Delimiter = '|'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", o.Delimiter)
	}
	return opt, nil
}

// loadTable reads and normalizes a local file, reporting warnings to w.
func loadTable(ctx context.Context, path string, o ingestOptions, w io.Writer) (*ingest.Result, error) {
	opt, err := o.resolve(loadedConfig())
	if err != nil {
		return nil, err
	}
	res, err := ingest.ReadFile(ctx, path, opt)
	if err != nil {
		return nil, err
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "⚠ %s\n", warn)
	}
	logger.Debug("dataset loaded",
		"file", filepath.Base(path),
		"format", res.Format,
		"encoding", res.Encoding,
		"rows", res.Table.Len(),
		"columns", res.Table.Width(),
	)
	return res, nil
}

type runtimeOptions struct {
	Provider   string
	Model      string
	OllamaHost string
}

// buildAdapter resolves provider and model (flag > config > default) and
// wires the insight adapter. A missing API key only surfaces on first call.
func buildAdapter(c *cfgpkg.Global, opts runtimeOptions) (*insight.Adapter, error) {
	rc := *c
	if p := strings.ToLower(strings.TrimSpace(opts.Provider)); p != "" {
		if p == "local" {
			p = ai.ProviderOllama
		}
		rc.Provider = p
	}
	if rc.Provider == "" {
		rc.Provider = ai.ProviderOpenAI
	}
	if h := strings.TrimSpace(opts.OllamaHost); h != "" {
		rc.OllamaHost = h
	}
	rt, err := rc.Runtime()
	if err != nil {
		return nil, err
	}
	return &insight.Adapter{
		Runtime:     rt,
		Model:       selectModel(&rc, opts.Model),
		MaxTokens:   rc.MaxTokens,
		Temperature: rc.Temperature,
		Logger:      logger,
	}, nil
}

// selectModel picks flag > config > the provider's default model.
func selectModel(c *cfgpkg.Global, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c.Model != "" {
		return c.Model
	}
	return ai.DefaultModelFor(c.Provider)
}

type outputOptions struct {
	JSON       bool
	OutputPath string
	Writer     io.Writer
}

// writeOutput prints text, or v as JSON, and optionally saves the same
// content to OutputPath.
func writeOutput(text string, v any, opts outputOptions) error {
	content := []byte(text)
	if opts.JSON {
		b, err := utils.PrettyJSON(v)
		if err != nil {
			return err
		}
		content = b
	}
	if opts.OutputPath != "" {
		if err := utils.SafeWriteFile(opts.OutputPath, content); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(opts.Writer, "✓ Wrote %s\n", opts.OutputPath)
		return nil
	}
	fmt.Fprintln(opts.Writer, strings.TrimRight(string(content), "\n"))
	return nil
}
