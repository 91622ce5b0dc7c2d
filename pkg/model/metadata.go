package model

import "time"

// Repository format identity. Written into metadata.yml and checked (and
// repaired when absent) during validation.
const (
	// FormatVersion is the repository format version.
	FormatVersion = "1.0"

	// FormatTag identifies the in-memory repository archive layout.
	FormatTag = "memory-v1"

	// StructureVersion tracks the on-disk directory layout; bumped by
	// legacy-layout migration.
	StructureVersion = "1.0"

	// Generator is the tag this implementation writes into new archives.
	Generator = "memvault"
)

// RepositoryMetadata is the content of metadata.yml.
type RepositoryMetadata struct {
	// Version is the repository format version.
	Version string `yaml:"version" json:"version"`

	// Format identifies the archive layout.
	Format string `yaml:"format" json:"format"`

	// CreatedAt is the repository creation time in Unix seconds.
	CreatedAt int64 `yaml:"created_at" json:"created_at"`

	// LastModified is the last save time in Unix seconds. Recomputed on
	// every serialization.
	LastModified int64 `yaml:"last_modified" json:"last_modified"`

	// CredentialCount is the number of live records. Recomputed on every
	// serialization and never trusted from disk.
	CredentialCount int `yaml:"credential_count" json:"credential_count"`

	// StructureVersion tracks the directory layout version.
	StructureVersion string `yaml:"structure_version" json:"structure_version"`

	// Generator names the implementation that wrote the archive.
	Generator string `yaml:"generator" json:"generator"`
}

// NewRepositoryMetadata creates metadata for a fresh, empty repository.
func NewRepositoryMetadata() RepositoryMetadata {
	now := time.Now().Unix()
	return RepositoryMetadata{
		Version:          FormatVersion,
		Format:           FormatTag,
		CreatedAt:        now,
		LastModified:     now,
		CredentialCount:  0,
		StructureVersion: StructureVersion,
		Generator:        Generator,
	}
}
