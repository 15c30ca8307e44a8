package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agrotrace/agrocheck/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the compliance check API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		go e.Monitor.Run(ctx)

		srv := server.New(cfg.Server, e.Orchestrator, e.Registry, e.Auth, e.Monitor, e.Pool)
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
