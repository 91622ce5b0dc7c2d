package repo

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/memvault/memvault/pkg/model"
)

// Query filters records for Search. Zero-valued fields do not constrain the
// result.
type Query struct {
	// Text matches case-insensitively against title, tags, notes, and
	// non-sensitive field values.
	Text string

	// Tags must all be present on a matching record.
	Tags []string

	// Type restricts to one credential type.
	Type string

	// Folder restricts to records whose folder path equals or is nested
	// under the given path.
	Folder string

	// FavoritesOnly restricts to favorite records.
	FavoritesOnly bool
}

// Search returns copies of all records matching the query.
//
// Sensitive field values are deliberately excluded from text matching so a
// query can never echo secret material into logs or result previews; a
// password-only search will not find its record.
func (r *Repository) Search(q Query) []*model.CredentialRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := normalize(q.Text)

	var out []*model.CredentialRecord
	for _, rec := range r.credentials {
		if matches(rec, q, needle) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

func matches(rec *model.CredentialRecord, q Query, needle string) bool {
	if q.Type != "" && rec.Type != q.Type {
		return false
	}
	if q.FavoritesOnly && !rec.Favorite {
		return false
	}
	if q.Folder != "" {
		if rec.FolderPath != q.Folder && !strings.HasPrefix(rec.FolderPath, q.Folder+"/") {
			return false
		}
	}
	for _, tag := range q.Tags {
		if !rec.HasTag(tag) {
			return false
		}
	}
	if needle == "" {
		return true
	}

	if strings.Contains(normalize(rec.Title), needle) {
		return true
	}
	if strings.Contains(normalize(rec.Notes), needle) {
		return true
	}
	for _, tag := range rec.Tags {
		if strings.Contains(normalize(tag), needle) {
			return true
		}
	}
	for _, f := range rec.Fields {
		if f.Sensitive {
			continue
		}
		if strings.Contains(normalize(f.Value), needle) {
			return true
		}
		if f.Label != "" && strings.Contains(normalize(f.Label), needle) {
			return true
		}
	}
	return false
}

// normalize folds a string for matching: NFKC normalization then lowercase,
// so full-width and composed forms compare equal to their plain spellings.
func normalize(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}
