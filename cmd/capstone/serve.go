package main

import (
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/capstone-tracker/internal/logging"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP/JSON API",
		Long: `Serve the HTTP/JSON API until interrupted.

The listen address comes from --addr, then ` + "`CAPSTONE_ADDR`" + `, then http.addr in
the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp()
			if err != nil {
				return err
			}
			defer app.Close()
			if addr != "" {
				app.Config.HTTP.Addr = addr
			}

			ln, err := net.Listen("tcp", app.Config.HTTP.Addr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", app.Config.HTTP.Addr, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.ServeHTTP(ctx, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, host:port")
	return cmd
}

func newMCPCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP over stdio",
		Long: `Serve the tracker as an MCP server on stdin/stdout.

Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "capstone": {
        "command": "capstone",
        "args": ["mcp"]
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			logging.Info("MCP", "serving on stdio (data dir %s)", app.Config.Database.DataDir)
			return server.ServeStdio(app.MCPServer())
		},
	}
}
