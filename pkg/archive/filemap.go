package archive

import (
	"sort"
	"strings"
)

// Canonical repository paths inside an archive.
const (
	// MetadataPath is the repository metadata entry.
	MetadataPath = "metadata.yml"

	// CredentialsPrefix is the directory holding credential records.
	CredentialsPrefix = "credentials/"

	// RecordFileName is the per-credential record file.
	RecordFileName = "record.yml"

	// IndexPath is the optional credential index entry.
	IndexPath = "index.yml"

	// AttachmentsPrefix is the directory holding binary attachments.
	AttachmentsPrefix = "attachments/"
)

// FileMap is the decrypted contents of an archive: repository-relative path
// to raw bytes. It is the exchange format between the repository manager and
// the archive codec.
type FileMap map[string][]byte

// RecordPath returns the canonical record path for a credential id.
func RecordPath(id string) string {
	return CredentialsPrefix + id + "/" + RecordFileName
}

// CredentialIDFromPath extracts the credential id from a canonical record
// path. Returns "" if the path is not of the form
// credentials/{id}/record.yml.
func CredentialIDFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, CredentialsPrefix)
	if !ok {
		return ""
	}
	id, file, ok := strings.Cut(rest, "/")
	if !ok || id == "" || file != RecordFileName {
		return ""
	}
	return id
}

// Clone returns a deep copy of the map.
func (m FileMap) Clone() FileMap {
	out := make(FileMap, len(m))
	for path, data := range m {
		out[path] = append([]byte(nil), data...)
	}
	return out
}

// Paths returns the entry paths in sorted order.
func (m FileMap) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// RecordPaths returns the canonical credential record paths in sorted order.
func (m FileMap) RecordPaths() []string {
	var paths []string
	for p := range m {
		if CredentialIDFromPath(p) != "" {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}
