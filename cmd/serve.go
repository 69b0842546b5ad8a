package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xolan/mondo/internal/config"
	"github.com/xolan/mondo/internal/server"
)

var addrFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Share the configured store over HTTP",
	Long: `Run an HTTP server exposing the configured store, so other mondo
installations can use it with store.backend = "remote".

Clients receive live updates through long-polling. The server stops cleanly
on Ctrl+C.

Examples:
  mondo serve                  Listen on server.addr (default :8080)
  mondo serve --addr :9090`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (overrides server.addr)")
}

func serve(cmd *cobra.Command) {
	ctx := cmd.Context()
	a, ok := openApp(ctx, false)
	if !ok {
		return
	}
	defer a.Close()

	cfg := a.Config.Get()
	if cfg.Store.Backend == config.BackendRemote {
		fail("Cannot serve a remote store", nil, "Point store.backend at jsonl, redis, postgres or memory")
		return
	}

	addr := addrFlag
	if addr == "" {
		addr = cfg.Server.Addr
	}

	srv := server.New(a.Store, server.WithLogger(a.Logger))
	_, _ = fmt.Fprintf(deps.Stdout, "Serving the %s store on %s\n", cfg.Store.Backend, addr)
	if err := srv.Serve(ctx, addr); err != nil {
		fail("Server stopped", err, "Check that the address is free")
		return
	}
	_, _ = fmt.Fprintln(deps.Stdout, "Server stopped")
}
