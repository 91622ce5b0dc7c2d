// Package mcp exposes an open credential repository to agent hosts over the
// Model Context Protocol. Tools are read-only and sensitive field values are
// redacted unless the local policy file explicitly allows a credential.
package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memvault/memvault/pkg/audit"
	"github.com/memvault/memvault/pkg/session"
)

// Server serves repository tools over MCP stdio transport.
type Server struct {
	server  *mcp.Server
	manager *session.Manager
	policy  *Policy
	audit   *audit.Logger
}

// ServerOptions configure the MCP server.
type ServerOptions struct {
	// ArchivePath is the encrypted archive to open.
	ArchivePath string

	// Passphrase unlocks the archive. If empty, the server reads
	// MEMVAULT_PASSPHRASE from the environment and unsets it.
	Passphrase string

	// PolicyDir is the directory holding the policy file. Defaults to the
	// archive's directory.
	PolicyDir string

	// Audit receives access events, including denied reveal attempts.
	Audit *audit.Logger
}

// NewServer opens the archive and builds an MCP server around the session.
func NewServer(opts *ServerOptions) (*Server, error) {
	if opts == nil || opts.ArchivePath == "" {
		return nil, fmt.Errorf("mcp: archive path is required")
	}

	policyDir := opts.PolicyDir
	if policyDir == "" {
		policyDir = filepath.Dir(opts.ArchivePath)
	}
	policy, err := LoadPolicy(policyDir)
	if err != nil {
		// Without a policy every sensitive value stays redacted.
		if err != ErrPolicyNotFound {
			log.Printf("warning: policy not loaded, sensitive values stay redacted: %v", err)
		}
		policy = nil
	}

	passphrase := opts.Passphrase
	if passphrase == "" {
		passphrase = os.Getenv("MEMVAULT_PASSPHRASE")
		os.Unsetenv("MEMVAULT_PASSPHRASE")
	}
	if passphrase == "" {
		return nil, fmt.Errorf("mcp: no passphrase provided: set MEMVAULT_PASSPHRASE")
	}

	managerOpts := []session.Option{session.WithAuditSource(audit.SourceMCP)}
	if opts.Audit != nil {
		managerOpts = append(managerOpts, session.WithAudit(opts.Audit))
	}
	manager := session.NewManager(managerOpts...)
	if err := manager.Open(opts.ArchivePath, passphrase); err != nil {
		return nil, fmt.Errorf("mcp: open archive: %w", err)
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "memvault",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		server:  mcpServer,
		manager: manager,
		policy:  policy,
		audit:   opts.Audit,
	}
	s.registerTools()
	return s, nil
}

// registerTools registers the read-only repository tools. Write tools are
// deliberately absent; mutation goes through the CLI or the bridge.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "credential_list",
		Description: "List stored credentials with metadata. Returns titles, types, tags, folders, and field names. Does NOT return field values.",
	}, s.handleCredentialList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "credential_get",
		Description: "Get one credential by id or title. Sensitive field values are masked unless the local policy file allows this credential.",
	}, s.handleCredentialGet)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "credential_search",
		Description: "Search credentials by text, tags, type, folder, or favorite flag. Sensitive values never participate in matching and are not returned.",
	}, s.handleCredentialSearch)
}

// Run serves MCP over stdio until the context ends, then closes the session
// without saving.
func (s *Server) Run(ctx context.Context) error {
	defer s.manager.Lock()
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close discards the session.
func (s *Server) Close() error {
	s.manager.Lock()
	return nil
}
