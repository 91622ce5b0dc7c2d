package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/memvault/memvault/pkg/model"
)

// DuplicateGroup represents a group of credentials sharing the same password.
type DuplicateGroup struct {
	// CredentialIDs contains the credential ids with duplicate values.
	CredentialIDs []string `json:"credential_ids,omitempty"`
	// FieldNames contains the field names involved (usually "password").
	FieldNames []string `json:"field_names,omitempty"`
	// Count is the number of occurrences.
	Count int `json:"count"`
}

type duplicateEntry struct {
	credentialID string
	fieldName    string
	hash         string
}

// FindDuplicates scans all password-bearing fields for duplicate values.
// Comparison uses HMAC-SHA256 with a session-local random key, so raw values
// never leave the record set and hashes are worthless across sessions.
// Groups come back sorted by count, most duplicated first.
func (a *Analyzer) FindDuplicates(records []*model.CredentialRecord, includeIDs bool, limit int) ([]DuplicateGroup, error) {
	if a.hmacKey == nil {
		a.hmacKey = make([]byte, 32)
		if _, err := rand.Read(a.hmacKey); err != nil {
			return nil, fmt.Errorf("security: generate session key: %w", err)
		}
	}

	var entries []duplicateEntry
	for _, rec := range records {
		for name, f := range rec.Fields {
			if !IsPasswordField(name, f) {
				continue
			}
			value := strings.TrimSpace(f.Value)
			if value == "" {
				continue
			}
			entries = append(entries, duplicateEntry{
				credentialID: rec.ID,
				fieldName:    name,
				hash:         a.valueHash(value),
			})
		}
	}

	hashGroups := make(map[string][]duplicateEntry)
	for _, e := range entries {
		hashGroups[e.hash] = append(hashGroups[e.hash], e)
	}

	var groups []DuplicateGroup
	for _, members := range hashGroups {
		if len(members) <= 1 {
			continue
		}
		group := DuplicateGroup{Count: len(members)}
		if includeIDs {
			sort.Slice(members, func(i, j int) bool {
				return members[i].credentialID < members[j].credentialID
			})
			for _, m := range members {
				group.CredentialIDs = append(group.CredentialIDs, m.credentialID)
				group.FieldNames = append(group.FieldNames, m.fieldName)
			}
		}
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return strings.Join(groups[i].CredentialIDs, ",") < strings.Join(groups[j].CredentialIDs, ",")
	})

	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups, nil
}

// valueHash computes HMAC-SHA256 of a value with the session key.
func (a *Analyzer) valueHash(value string) string {
	h := hmac.New(sha256.New, a.hmacKey)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}
