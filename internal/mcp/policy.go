package mcp

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PolicyFileName is the policy file name inside the policy directory.
const PolicyFileName = "mcp-policy.yaml"

// Policy controls what the MCP tools may reveal. Absent or unreadable policy
// means every sensitive value stays redacted.
type Policy struct {
	Version int `yaml:"version"`

	// RevealAllowed lists credential titles whose sensitive field values may
	// be returned in plaintext. Entries support glob patterns ("ci/*").
	RevealAllowed []string `yaml:"reveal_allowed"`
}

// Policy load errors.
var (
	ErrPolicyNotFound       = errors.New("mcp: policy file not found")
	ErrPolicyInsecure       = errors.New("mcp: policy file has insecure permissions")
	ErrPolicySymlink        = errors.New("mcp: policy file is a symlink")
	ErrPolicyNotOwnedByUser = errors.New("mcp: policy file not owned by current user")
)

// LoadPolicy loads the policy from dir. The file must be a regular file with
// 0600 permissions owned by the current user; the open uses O_NOFOLLOW and
// the checks run on the opened descriptor so a swap between check and read
// cannot widen access.
func LoadPolicy(dir string) (*Policy, error) {
	policyPath := filepath.Join(dir, PolicyFileName)

	f, err := openPolicyFile(policyPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("mcp: stat policy file: %w", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		return nil, fmt.Errorf("%w: %o (expected 0600)", ErrPolicyInsecure, perm)
	}
	if err := checkFileOwnership(info); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("mcp: read policy file: %w", err)
	}

	var policy Policy
	if err := yaml.Unmarshal(content, &policy); err != nil {
		return nil, fmt.Errorf("mcp: parse policy file: %w", err)
	}
	if policy.Version != 1 {
		return nil, fmt.Errorf("mcp: unsupported policy version: %d", policy.Version)
	}
	return &policy, nil
}

// AllowsReveal reports whether sensitive values of the named credential may
// be returned in plaintext. A nil policy allows nothing.
func (p *Policy) AllowsReveal(title string) bool {
	if p == nil {
		return false
	}
	for _, pattern := range p.RevealAllowed {
		if matchTitle(title, pattern) {
			return true
		}
	}
	return false
}

// matchTitle matches a credential title against a policy entry,
// case-insensitively, with glob support.
func matchTitle(title, pattern string) bool {
	title = strings.ToLower(title)
	pattern = strings.ToLower(pattern)
	if ok, err := filepath.Match(pattern, title); err == nil && ok {
		return true
	}
	return title == pattern
}
