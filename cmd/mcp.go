package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"looper/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server exposing loop status and history",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an agent query looper natively for live session state,
session history, and the structured event log. Configure in Claude
Code with:

  {
    "mcpServers": {
      "looper": { "command": "looper", "args": ["mcp"] }
    }
  }

Available tools: looper_status, looper_history, looper_log_tail`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}

		srv := mcp.NewServer(s, viper.GetString("logs_dir"))

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return srv.ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
