package main

import (
	"github.com/spf13/cobra"

	"github.com/iammorganparry/clive/apps/understanding/internal/mcp"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP over stdio, forwarding tool calls to a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			server := mcp.NewServer(mcp.Options{
				ServerURL: cfg.ServerURL,
				UserID:    cfg.UserID,
				APIKey:    cfg.APIKey,
				Timeout:   cfg.RequestTimeout,
				Version:   version,
				Logger:    newLogger(cmd.ErrOrStderr(), cfg.LogLevel),
			})
			return server.Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
