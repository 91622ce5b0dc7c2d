// Package importer parses exports from other password managers into
// credential records. Supported formats: 1Password CSV, Bitwarden JSON, and
// LastPass CSV.
package importer

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/memvault/memvault/pkg/model"
)

// Source identifies the export format.
type Source string

// Supported sources.
const (
	Source1Password Source = "1password"
	SourceBitwarden Source = "bitwarden"
	SourceLastPass  Source = "lastpass"
)

// Result contains the outcome of one import.
type Result struct {
	// Records are the successfully parsed credentials, not yet added to a
	// repository.
	Records []*model.CredentialRecord

	// Warnings are non-fatal issues encountered during parsing.
	Warnings []string

	// Skipped are items left out, with reasons.
	Skipped []SkippedItem
}

// SkippedItem is an export entry that produced no record.
type SkippedItem struct {
	Name   string
	Reason string
}

// Parser turns raw export bytes into a Result.
type Parser interface {
	Parse(data []byte) (*Result, error)
	Source() Source
}

// GetParser returns a parser for the given source.
func GetParser(source Source) (Parser, error) {
	switch source {
	case Source1Password:
		return &OnePasswordParser{}, nil
	case SourceBitwarden:
		return &BitwardenParser{}, nil
	case SourceLastPass:
		return &LastPassParser{}, nil
	default:
		return nil, fmt.Errorf("importer: unsupported source: %s", source)
	}
}

// ValidSources returns the accepted source names.
func ValidSources() []string {
	return []string{
		string(Source1Password),
		string(SourceBitwarden),
		string(SourceLastPass),
	}
}

// cleanTitle normalizes an export name into a usable title, clamped to the
// model limit.
func cleanTitle(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	if len(name) > model.MaxTitleLength {
		name = name[:model.MaxTitleLength]
	}
	return name
}

// fallbackTitle builds a title for nameless entries from the URL hostname,
// or a numbered placeholder.
func fallbackTitle(url string, counter int) string {
	if host := hostname(url); host != "" {
		return host
	}
	return fmt.Sprintf("Imported item %d", counter)
}

func hostname(url string) string {
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	if idx := strings.IndexAny(url, "/:"); idx != -1 {
		url = url[:idx]
	}
	return strings.TrimPrefix(url, "www.")
}

// cleanTags trims, de-duplicates, and clamps tags to the model limits.
// Overlong tags are truncated rather than dropped.
func cleanTags(tags []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if len(tag) > model.MaxTagLength {
			tag = tag[:model.MaxTagLength]
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
		if len(out) == model.MaxTagsPerCredential {
			break
		}
	}
	return out
}

// clampNotes truncates notes to the model limit.
func clampNotes(notes string) string {
	if len(notes) > model.MaxNotesLength {
		return notes[:model.MaxNotesLength]
	}
	return notes
}

// decodeHTMLEntities decodes the entities LastPass leaves in exports.
func decodeHTMLEntities(s string) string {
	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&apos;", "'",
	)
	return r.Replace(s)
}

// setIfNonEmpty adds a field only when the exported value carries data.
func setIfNonEmpty(rec *model.CredentialRecord, name string, ft model.FieldType, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if len(value) > model.MaxFieldValueLength {
		value = value[:model.MaxFieldValueLength]
	}
	rec.SetField(name, model.NewField(ft, value))
}
