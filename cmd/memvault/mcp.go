package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/memvault/memvault/internal/mcp"
	"github.com/memvault/memvault/pkg/audit"
)

var mcpPolicyDir string

func init() {
	rootCmd.AddCommand(serveMCPCmd)
	serveMCPCmd.Flags().StringVar(&mcpPolicyDir, "policy-dir", "", "Directory holding mcp-policy.yaml (default: archive directory)")
}

// serveMCPCmd starts the MCP server for AI coding assistant integration.
var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Serve the archive to AI assistants over MCP",
	Long: `Start an MCP server exposing read-only credential tools over stdio.

Available tools:
  - credential_list:   List credentials with metadata (no values)
  - credential_get:    Get one credential; sensitive values are masked
  - credential_search: Search credentials (values never matched)

Authentication:
  Set MEMVAULT_PASSPHRASE before starting the server. The variable is
  read once and immediately cleared from the environment.

Policy:
  Create mcp-policy.yaml (mode 0600) next to the archive to allow
  plaintext reveal for specific credential titles. Without a policy
  file every sensitive value stays masked.

Example MCP configuration:
  {
    "mcpServers": {
      "memvault": {
        "type": "stdio",
        "command": "/path/to/memvault",
        "args": ["serve-mcp"],
        "env": {
          "MEMVAULT_PASSPHRASE": "your-master-passphrase"
        }
      }
    }
  }`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer()
	},
}

func runMCPServer() error {
	opts := &mcp.ServerOptions{
		ArchivePath: cfg.ArchivePath,
		PolicyDir:   mcpPolicyDir,
	}
	if cfg.AuditLog != "" {
		opts.Audit = audit.NewLogger(cfg.AuditLog)
	}

	server, err := mcp.NewServer(opts)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
		server.Close()
	}()

	if err := server.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
