package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memvault/memvault/pkg/audit"
	"github.com/memvault/memvault/pkg/model"
	"github.com/memvault/memvault/pkg/repo"
)

// CredentialListInput filters credential_list.
type CredentialListInput struct {
	Tag    string `json:"tag,omitempty"`
	Type   string `json:"type,omitempty"`
	Folder string `json:"folder,omitempty"`
}

// CredentialListOutput is the credential_list result.
type CredentialListOutput struct {
	Credentials []CredentialSummary `json:"credentials"`
}

// CredentialSummary is credential metadata without any field values.
type CredentialSummary struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Type       string   `json:"type"`
	Tags       []string `json:"tags,omitempty"`
	Folder     string   `json:"folder,omitempty"`
	Favorite   bool     `json:"favorite,omitempty"`
	FieldNames []string `json:"field_names,omitempty"`
	HasNotes   bool     `json:"has_notes"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

// CredentialGetInput selects one credential by id or exact title.
type CredentialGetInput struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
}

// CredentialGetOutput is the credential_get result. Sensitive values arrive
// masked unless the policy allows this credential.
type CredentialGetOutput struct {
	ID       string                `json:"id"`
	Title    string                `json:"title"`
	Type     string                `json:"type"`
	Tags     []string              `json:"tags,omitempty"`
	Folder   string                `json:"folder,omitempty"`
	Favorite bool                  `json:"favorite,omitempty"`
	Notes    string                `json:"notes,omitempty"`
	Fields   map[string]FieldValue `json:"fields"`
	Redacted bool                  `json:"redacted"`
}

// FieldValue is one field as exposed over MCP.
type FieldValue struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Sensitive bool   `json:"sensitive"`
	Masked    bool   `json:"masked"`
}

// CredentialSearchInput mirrors the repository query.
type CredentialSearchInput struct {
	Text          string   `json:"text,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Type          string   `json:"type,omitempty"`
	Folder        string   `json:"folder,omitempty"`
	FavoritesOnly bool     `json:"favorites_only,omitempty"`
}

// handleCredentialList returns metadata for all credentials, optionally
// filtered. Field values are never included.
func (s *Server) handleCredentialList(_ context.Context, _ *mcp.CallToolRequest, input CredentialListInput) (*mcp.CallToolResult, CredentialListOutput, error) {
	q := repo.Query{Type: input.Type, Folder: input.Folder}
	if input.Tag != "" {
		q.Tags = []string{input.Tag}
	}
	records, err := s.manager.SearchCredentials(q)
	if err != nil {
		return nil, CredentialListOutput{}, fmt.Errorf("list credentials: %w", err)
	}

	out := CredentialListOutput{Credentials: make([]CredentialSummary, 0, len(records))}
	for _, rec := range records {
		out.Credentials = append(out.Credentials, summarize(rec))
	}
	return nil, out, nil
}

// handleCredentialGet returns one credential. Sensitive field values are
// masked unless the policy names the credential; a policy miss is recorded
// in the audit trail as a denied access.
func (s *Server) handleCredentialGet(_ context.Context, _ *mcp.CallToolRequest, input CredentialGetInput) (*mcp.CallToolResult, CredentialGetOutput, error) {
	if input.ID == "" && input.Title == "" {
		return nil, CredentialGetOutput{}, errors.New("id or title is required")
	}

	rec, err := s.lookup(input)
	if err != nil {
		return nil, CredentialGetOutput{}, err
	}

	reveal := s.policy.AllowsReveal(rec.Title)
	out := CredentialGetOutput{
		ID:       rec.ID,
		Title:    rec.Title,
		Type:     rec.Type,
		Tags:     rec.Tags,
		Folder:   rec.FolderPath,
		Favorite: rec.Favorite,
		Notes:    rec.Notes,
		Fields:   make(map[string]FieldValue, len(rec.Fields)),
	}

	for name, f := range rec.Fields {
		fv := FieldValue{Type: string(f.Type), Value: f.Value, Sensitive: f.Sensitive}
		if f.Sensitive && !reveal {
			fv.Value = maskValue(f.Value)
			fv.Masked = true
			out.Redacted = true
		}
		out.Fields[name] = fv
	}

	if out.Redacted && s.audit != nil {
		// The call still succeeds with masked values; the denial only covers
		// the plaintext.
		_ = s.audit.LogDenied(audit.OpAccessDenied, audit.SourceMCP, rec.ID, "sensitive values not allowed by policy")
	}
	return nil, out, nil
}

// handleCredentialSearch runs the repository query and returns summaries.
func (s *Server) handleCredentialSearch(_ context.Context, _ *mcp.CallToolRequest, input CredentialSearchInput) (*mcp.CallToolResult, CredentialListOutput, error) {
	records, err := s.manager.SearchCredentials(repo.Query{
		Text:          input.Text,
		Tags:          input.Tags,
		Type:          input.Type,
		Folder:        input.Folder,
		FavoritesOnly: input.FavoritesOnly,
	})
	if err != nil {
		return nil, CredentialListOutput{}, fmt.Errorf("search credentials: %w", err)
	}

	out := CredentialListOutput{Credentials: make([]CredentialSummary, 0, len(records))}
	for _, rec := range records {
		out.Credentials = append(out.Credentials, summarize(rec))
	}
	return nil, out, nil
}

func (s *Server) lookup(input CredentialGetInput) (*model.CredentialRecord, error) {
	if input.ID != "" {
		rec, err := s.manager.GetCredential(input.ID)
		if err != nil {
			return nil, fmt.Errorf("get credential: %w", err)
		}
		return rec, nil
	}

	records, err := s.manager.ListCredentials()
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	for _, rec := range records {
		if strings.EqualFold(rec.Title, input.Title) {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("credential %q not found", input.Title)
}

func summarize(rec *model.CredentialRecord) CredentialSummary {
	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	return CredentialSummary{
		ID:         rec.ID,
		Title:      rec.Title,
		Type:       rec.Type,
		Tags:       rec.Tags,
		Folder:     rec.FolderPath,
		Favorite:   rec.Favorite,
		FieldNames: names,
		HasNotes:   rec.Notes != "",
		CreatedAt:  time.Unix(rec.CreatedAt, 0).UTC().Format(time.RFC3339),
		UpdatedAt:  time.Unix(rec.UpdatedAt, 0).UTC().Format(time.RFC3339),
	}
}

// maskValue shortens a secret to a recognizable shape without exposing it.
//
//	length 1-4: all asterisks
//	length 5-8: last 2 visible
//	length 9+:  last 4 visible
func maskValue(value string) string {
	length := len(value)
	switch {
	case length == 0:
		return ""
	case length <= 4:
		return strings.Repeat("*", length)
	case length <= 8:
		return strings.Repeat("*", length-2) + value[length-2:]
	default:
		return strings.Repeat("*", length-4) + value[length-4:]
	}
}
