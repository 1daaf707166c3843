package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datalens/internal/server"
	"github.com/KaramelBytes/datalens/internal/session"
)

var (
	srvAddr    string
	srvRuntime runtimeOptions
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := loadedConfig()
		adapter, err := buildAdapter(c, srvRuntime)
		if err != nil {
			return err
		}
		addr := c.ListenAddr
		if srvAddr != "" {
			addr = srvAddr
		}
		srv := server.New(server.Options{
			Store:          session.NewStore(c.SessionTTL(), nil),
			Adapter:        adapter,
			Ingest:         c.IngestOptions(),
			MaxUploadBytes: c.MaxUploadBytes(),
			Logger:         logger,
		})
		logger.Info("starting datalens", "provider", c.Provider, "model", adapter.Model, "session_ttl", c.SessionTTL())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&srvAddr, "addr", "", "listen address (overrides config listen_addr)")
	addRuntimeFlags(serveCmd, &srvRuntime)
}
