package repo

import (
	"fmt"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/memvault/memvault/pkg/archive"
	"github.com/memvault/memvault/pkg/model"
)

// LoadWarning records a non-fatal problem encountered while loading a
// FileMap, typically a malformed record that was skipped.
type LoadWarning struct {
	Path    string
	Message string
}

// Repository is the in-memory credential index.
//
// All operations are safe for concurrent use, but callers sharing one
// repository across goroutines must still serialize logically dependent
// call sequences themselves.
type Repository struct {
	mu          sync.RWMutex
	credentials map[string]*model.CredentialRecord
	metadata    model.RepositoryMetadata
	warnings    []LoadWarning
	dirty       bool
}

// New creates an empty repository with fresh metadata.
func New() *Repository {
	return &Repository{
		credentials: make(map[string]*model.CredentialRecord),
		metadata:    model.NewRepositoryMetadata(),
	}
}

// Load replaces the index with the contents of a FileMap.
//
// metadata.yml failing to parse is fatal and returns ErrSerialization with
// the index untouched. Individual records that fail to parse or validate are
// skipped and reported via Warnings; duplicate ids keep the first occurrence
// (by path order) and skip the rest.
func (r *Repository) Load(files archive.FileMap) error {
	metaRaw, ok := files[archive.MetadataPath]
	if !ok {
		return fmt.Errorf("%w: %s missing", ErrSerialization, archive.MetadataPath)
	}
	var meta model.RepositoryMetadata
	if err := yaml.Unmarshal(metaRaw, &meta); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSerialization, archive.MetadataPath, err)
	}

	credentials := make(map[string]*model.CredentialRecord)
	var warnings []LoadWarning

	for _, path := range files.RecordPaths() {
		pathID := archive.CredentialIDFromPath(path)

		var rec model.CredentialRecord
		if err := yaml.Unmarshal(files[path], &rec); err != nil {
			warnings = append(warnings, LoadWarning{Path: path, Message: fmt.Sprintf("unparseable record: %v", err)})
			continue
		}
		if rec.ID == "" || rec.Title == "" || rec.Type == "" {
			warnings = append(warnings, LoadWarning{Path: path, Message: "record missing id, title, or credential_type"})
			continue
		}
		if rec.ID != pathID {
			warnings = append(warnings, LoadWarning{Path: path, Message: fmt.Sprintf("record id %q does not match directory %q", rec.ID, pathID)})
			continue
		}
		if _, exists := credentials[rec.ID]; exists {
			warnings = append(warnings, LoadWarning{Path: path, Message: fmt.Sprintf("duplicate credential id %q", rec.ID)})
			continue
		}
		credentials[rec.ID] = &rec
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.credentials = credentials
	r.metadata = meta
	r.warnings = warnings
	r.dirty = false
	return nil
}

// Warnings returns the problems recorded by the last Load.
func (r *Repository) Warnings() []LoadWarning {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]LoadWarning(nil), r.warnings...)
}

// Add inserts a record, assigning an id and timestamps when absent. Returns
// the record id.
func (r *Repository) Add(rec *model.CredentialRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("%w: nil record", ErrValidation)
	}

	stored := rec.Clone()
	if stored.ID == "" {
		stored.ID = model.NewID()
	}
	now := time.Now().Unix()
	if stored.CreatedAt == 0 {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	if err := stored.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.credentials[stored.ID]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, stored.ID)
	}
	r.credentials[stored.ID] = stored
	r.dirty = true
	return stored.ID, nil
}

// Get returns a copy of the record with the given id.
func (r *Repository) Get(id string) (*model.CredentialRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.credentials[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCredentialNotFound, id)
	}
	return rec.Clone(), nil
}

// Update replaces the record with the given id. The stored creation
// timestamp is preserved; the update timestamp is refreshed.
func (r *Repository) Update(id string, rec *model.CredentialRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.credentials[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCredentialNotFound, id)
	}

	stored := rec.Clone()
	stored.ID = id
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now().Unix()

	if err := stored.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	r.credentials[id] = stored
	r.dirty = true
	return nil
}

// Delete removes the record with the given id.
func (r *Repository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.credentials[id]; !ok {
		return fmt.Errorf("%w: %s", ErrCredentialNotFound, id)
	}
	delete(r.credentials, id)
	r.dirty = true
	return nil
}

// List returns copies of all records. Order is unspecified; callers must not
// depend on it surviving a save/load cycle.
func (r *Repository) List() []*model.CredentialRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.CredentialRecord, 0, len(r.credentials))
	for _, rec := range r.credentials {
		out = append(out, rec.Clone())
	}
	return out
}

// Count returns the number of live records.
func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.credentials)
}

// IsDirty reports whether the index has unsaved changes.
func (r *Repository) IsDirty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dirty
}

// MarkSaved clears the dirty flag after a successful persist.
func (r *Repository) MarkSaved() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = false
}

// MarkDirty flags unsaved changes, used when load-time repairs modified the
// contents.
func (r *Repository) MarkDirty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = true
}

// Metadata returns a copy of the repository metadata.
func (r *Repository) Metadata() model.RepositoryMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metadata
}

// Clear drops all records and resets metadata. Used when a session closes.
func (r *Repository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credentials = make(map[string]*model.CredentialRecord)
	r.metadata = model.NewRepositoryMetadata()
	r.warnings = nil
	r.dirty = false
}

// ToFileMap serializes the index to canonical archive paths. The metadata
// credential count and last-modified timestamp are recomputed; every encode
// completes before the result map is assembled, so an encoding failure
// leaves no partial output and no index mutation.
func (r *Repository) ToFileMap() (archive.FileMap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	type encoded struct {
		path string
		data []byte
	}
	entries := make([]encoded, 0, len(r.credentials))
	for id, rec := range r.credentials {
		data, err := yaml.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: record %s: %v", ErrSerialization, id, err)
		}
		entries = append(entries, encoded{path: archive.RecordPath(id), data: data})
	}

	meta := r.metadata
	meta.CredentialCount = len(r.credentials)
	meta.LastModified = time.Now().Unix()
	if meta.Version == "" {
		meta.Version = model.FormatVersion
	}
	if meta.Format == "" {
		meta.Format = model.FormatTag
	}
	metaRaw, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrSerialization, err)
	}

	files := make(archive.FileMap, len(entries)+1)
	files[archive.MetadataPath] = metaRaw
	for _, e := range entries {
		files[e.path] = e.data
	}

	r.metadata = meta
	return files, nil
}
