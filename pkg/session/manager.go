// Package session manages the lifecycle of an encrypted credential archive:
// create, open, save, save-as, lock, and close, plus CRUD delegation to the
// in-memory repository while a session is active.
//
// A manager holds at most one open repository. The master passphrase stays
// in memory only while the session is open and is wiped on every path that
// ends it, including error paths during open.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/memvault/memvault/pkg/archive"
	"github.com/memvault/memvault/pkg/audit"
	"github.com/memvault/memvault/pkg/crypto"
	"github.com/memvault/memvault/pkg/model"
	"github.com/memvault/memvault/pkg/repo"
	"github.com/memvault/memvault/pkg/security"
	"github.com/memvault/memvault/pkg/validate"
)

// Info describes the current session for status surfaces.
type Info struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Open  bool   `json:"open"`
	Dirty bool   `json:"dirty"`
	Count int    `json:"count"`
}

// CreateOptions control repository creation.
type CreateOptions struct {
	// AllowWeak skips the passphrase strength gate.
	AllowWeak bool
}

// Manager owns one repository session at a time.
type Manager struct {
	mu       sync.Mutex
	provider archive.FileOperationProvider
	codec    archive.Codec
	audit    *audit.Logger

	repository *repo.Repository
	path       string
	secret     *crypto.MasterKey
	sessionID  string
	warnings   []string
	source     string
}

// Option configures a Manager.
type Option func(*Manager)

// WithProvider replaces the default desktop file provider.
func WithProvider(p archive.FileOperationProvider) Option {
	return func(m *Manager) { m.provider = p }
}

// WithCodec replaces the default container codec.
func WithCodec(c archive.Codec) Option {
	return func(m *Manager) { m.codec = c }
}

// WithAudit attaches an audit logger. Session lifecycle and credential
// operations are recorded when set.
func WithAudit(l *audit.Logger) Option {
	return func(m *Manager) { m.audit = l }
}

// WithAuditSource overrides the source tag on audit events, e.g.
// audit.SourceMCP when the manager is driven by an agent host.
func WithAuditSource(source string) Option {
	return func(m *Manager) { m.source = source }
}

// NewManager creates a manager with the desktop provider and the container
// codec unless options say otherwise.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		provider: archive.NewDesktopProvider(),
		codec:    archive.NewContainerCodec(),
		source:   audit.SourceCLI,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create initializes a new, empty repository at path and leaves it open.
// Fails if an archive already exists there, or if the passphrase is rated
// weak and opts.AllowWeak is false.
func (m *Manager) Create(path, passphrase string, opts CreateOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.repository != nil {
		return ErrRepositoryOpen
	}
	if passphrase == "" {
		return ErrPassphraseEmpty
	}
	if !opts.AllowWeak && security.EvaluatePassphrase(passphrase) == security.PasswordWeak {
		return ErrWeakPassphrase
	}
	if m.provider.Exists(path) {
		return fmt.Errorf("%w: %s", ErrRepositoryExists, path)
	}

	if err := m.provider.Lock(path); err != nil {
		return fmt.Errorf("session: lock %s: %w", path, err)
	}

	repository := repo.New()
	files, err := repository.ToFileMap()
	if err != nil {
		m.provider.Unlock(path)
		return err
	}
	data, err := m.codec.Create(files, passphrase)
	if err != nil {
		m.provider.Unlock(path)
		return fmt.Errorf("session: encrypt archive: %w", err)
	}
	if err := m.provider.WriteArchive(path, data); err != nil {
		m.provider.Unlock(path)
		return fmt.Errorf("%w: write %s: %v", repo.ErrFileOperation, path, err)
	}

	m.beginSession(repository, path, passphrase)
	m.checkCloudPath(path)
	m.logSuccess(audit.OpRepoCreate, "")
	return nil
}

// Open reads, decrypts, repairs, and loads the archive at path.
//
// A wrong passphrase surfaces as archive.ErrInvalidPassword; structural
// damage the repair pass cannot fix surfaces as archive.ErrCorruptedArchive.
// Repairs applied during open mark the session dirty so the fixed layout is
// persisted on the next save.
func (m *Manager) Open(path, passphrase string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.repository != nil {
		return ErrRepositoryOpen
	}

	data, err := m.provider.ReadArchive(path)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: read %s: %v", repo.ErrFileOperation, path, err)
	}

	files, err := m.codec.Extract(data, passphrase)
	if err != nil {
		m.logError(audit.OpRepoOpenFailed, "", err)
		return err
	}

	report := validate.Repair(files)
	if !report.IsValid() {
		return fmt.Errorf("%w: %d unrepairable issues", archive.ErrCorruptedArchive, len(report.CriticalIssues()))
	}

	if err := m.provider.Lock(path); err != nil {
		return fmt.Errorf("session: lock %s: %w", path, err)
	}

	repository := repo.New()
	if err := repository.Load(files); err != nil {
		m.provider.Unlock(path)
		return err
	}
	if report.RepairsApplied > 0 {
		repository.MarkDirty()
	}

	m.beginSession(repository, path, passphrase)
	for _, issue := range report.Issues {
		m.warnings = append(m.warnings, fmt.Sprintf("%s: %s", issue.Path, issue.Message))
	}
	for _, w := range repository.Warnings() {
		m.warnings = append(m.warnings, fmt.Sprintf("%s: %s", w.Path, w.Message))
	}
	m.checkCloudPath(path)
	m.logSuccess(audit.OpRepoOpen, "")
	return nil
}

// OpenFromFiles loads an already-decrypted file layout into a session. Hosts
// whose native layer performs the codec work use this together with ToFiles;
// such a session has no backing path, so Save is unavailable.
func (m *Manager) OpenFromFiles(files archive.FileMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.repository != nil {
		return ErrRepositoryOpen
	}

	report := validate.Repair(files)
	if !report.IsValid() {
		return fmt.Errorf("%w: %d unrepairable issues", archive.ErrCorruptedArchive, len(report.CriticalIssues()))
	}

	repository := repo.New()
	if err := repository.Load(files); err != nil {
		return err
	}
	if report.RepairsApplied > 0 {
		repository.MarkDirty()
	}

	m.beginSession(repository, "", "")
	for _, issue := range report.Issues {
		m.warnings = append(m.warnings, fmt.Sprintf("%s: %s", issue.Path, issue.Message))
	}
	for _, w := range repository.Warnings() {
		m.warnings = append(m.warnings, fmt.Sprintf("%s: %s", w.Path, w.Message))
	}
	m.logSuccess(audit.OpRepoOpen, "")
	return nil
}

// ToFiles serializes the open repository to its file layout and marks the
// session saved. The host is responsible for encrypting and persisting the
// result.
func (m *Manager) ToFiles() (archive.FileMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.repository == nil {
		return nil, repo.ErrNotInitialized
	}
	files, err := m.repository.ToFileMap()
	if err != nil {
		return nil, err
	}
	m.repository.MarkSaved()
	m.logSuccess(audit.OpRepoSave, "")
	return files, nil
}

// beginSession installs the open repository state. The passphrase is handed
// to a crypto.MasterKey, which owns it until endSession destroys it. Caller
// holds m.mu.
func (m *Manager) beginSession(repository *repo.Repository, path, passphrase string) {
	m.repository = repository
	m.path = path
	m.secret = crypto.NewMasterKeyFromBytes([]byte(passphrase))
	m.sessionID = uuid.NewString()
	m.warnings = nil
	if m.audit != nil && passphrase != "" {
		// Key the log to this repository's passphrase so refs stay stable
		// across sessions. Failure disables auditing, not the session.
		if secret, err := m.secret.Bytes(); err == nil {
			_ = m.audit.SetHMACKey(secret)
		}
	}
}

// checkCloudPath records a warning when the archive lives inside a
// cloud-synced directory, where concurrent sync can corrupt the file.
func (m *Manager) checkCloudPath(path string) {
	if archive.IsCloudPath(path) {
		m.warnings = append(m.warnings,
			fmt.Sprintf("%s: archive is in a cloud-synced location; pause sync before saving", path))
	}
}

// Save encrypts and writes the repository back to its path. A clean session
// saves nothing and succeeds. The dirty flag clears only after the write
// lands.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if m.repository == nil {
		return repo.ErrNotInitialized
	}
	if !m.repository.IsDirty() {
		return nil
	}
	if m.path == "" {
		return ErrNoArchivePath
	}

	files, err := m.repository.ToFileMap()
	if err != nil {
		return err
	}
	secret, err := m.secret.Bytes()
	if err != nil {
		return err
	}
	data, err := m.codec.Create(files, string(secret))
	if err != nil {
		return fmt.Errorf("session: encrypt archive: %w", err)
	}
	if err := m.provider.WriteArchive(m.path, data); err != nil {
		m.logError(audit.OpRepoSave, "", err)
		return fmt.Errorf("%w: write %s: %v", repo.ErrFileOperation, m.path, err)
	}

	m.repository.MarkSaved()
	m.logSuccess(audit.OpRepoSave, "")
	return nil
}

// SaveAs writes the repository to a new path under a new passphrase and
// repoints the session there. The current path and passphrase stay in effect
// until the new archive is fully written.
func (m *Manager) SaveAs(path, passphrase string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.repository == nil {
		return repo.ErrNotInitialized
	}
	if passphrase == "" {
		return ErrPassphraseEmpty
	}
	if path != m.path && m.provider.Exists(path) {
		return fmt.Errorf("%w: %s", ErrRepositoryExists, path)
	}

	files, err := m.repository.ToFileMap()
	if err != nil {
		return err
	}
	data, err := m.codec.Create(files, passphrase)
	if err != nil {
		return fmt.Errorf("session: encrypt archive: %w", err)
	}

	newPath := path != m.path
	if newPath {
		if err := m.provider.Lock(path); err != nil {
			return fmt.Errorf("session: lock %s: %w", path, err)
		}
	}
	if err := m.provider.WriteArchive(path, data); err != nil {
		if newPath {
			m.provider.Unlock(path)
		}
		return fmt.Errorf("%w: write %s: %v", repo.ErrFileOperation, path, err)
	}

	if newPath {
		if m.path != "" {
			m.provider.Unlock(m.path)
		}
		m.path = path
	}
	m.secret.Destroy()
	m.secret = crypto.NewMasterKeyFromBytes([]byte(passphrase))
	m.repository.MarkSaved()
	m.checkCloudPath(path)
	m.logSuccess(audit.OpRepoSave, "")
	return nil
}

// Close ends the session. With save true, unsaved changes are written first
// and a failed save leaves the session open. The passphrase is wiped and the
// path lock released.
func (m *Manager) Close(save bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.repository == nil {
		return repo.ErrNotInitialized
	}
	if save {
		if err := m.saveLocked(); err != nil {
			return err
		}
	}

	m.logSuccess(audit.OpRepoClose, "")
	m.endSession()
	return nil
}

// Lock discards the in-memory repository and passphrase without saving.
// Unsaved changes are lost.
func (m *Manager) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.repository == nil {
		return
	}
	m.logSuccess(audit.OpRepoClose, "")
	m.endSession()
}

// endSession wipes session state. Caller holds m.mu.
func (m *Manager) endSession() {
	if m.secret != nil {
		m.secret.Destroy()
		m.secret = nil
	}
	m.repository.Clear()
	m.repository = nil
	if m.path != "" {
		m.provider.Unlock(m.path)
	}
	m.path = ""
	m.sessionID = ""
	m.warnings = nil
}

// IsOpen reports whether a repository is loaded.
func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repository != nil
}

// IsDirty reports whether the session has unsaved changes.
func (m *Manager) IsDirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repository != nil && m.repository.IsDirty()
}

// Path returns the open archive path, or "" when closed.
func (m *Manager) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

// Warnings returns non-fatal problems from the last open or save-as:
// repaired defects, skipped records, and cloud-location notices.
func (m *Manager) Warnings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.warnings...)
}

// SessionInfo returns a snapshot of the session state.
func (m *Manager) SessionInfo() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := Info{ID: m.sessionID, Path: m.path}
	if m.repository != nil {
		info.Open = true
		info.Dirty = m.repository.IsDirty()
		info.Count = m.repository.Count()
	}
	return info
}

// Metadata returns the repository metadata of the open session.
func (m *Manager) Metadata() (model.RepositoryMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.repository == nil {
		return model.RepositoryMetadata{}, repo.ErrNotInitialized
	}
	return m.repository.Metadata(), nil
}

// AddCredential inserts a record and returns its id.
func (m *Manager) AddCredential(rec *model.CredentialRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.repository == nil {
		return "", repo.ErrNotInitialized
	}
	id, err := m.repository.Add(rec)
	if err != nil {
		return "", err
	}
	m.logSuccess(audit.OpCredentialAdd, id)
	return id, nil
}

// GetCredential returns a copy of the record with the given id.
func (m *Manager) GetCredential(id string) (*model.CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.repository == nil {
		return nil, repo.ErrNotInitialized
	}
	rec, err := m.repository.Get(id)
	if err != nil {
		return nil, err
	}
	m.logSuccess(audit.OpCredentialGet, id)
	return rec, nil
}

// UpdateCredential replaces the record with the given id.
func (m *Manager) UpdateCredential(id string, rec *model.CredentialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.repository == nil {
		return repo.ErrNotInitialized
	}
	if err := m.repository.Update(id, rec); err != nil {
		return err
	}
	m.logSuccess(audit.OpCredentialUpdate, id)
	return nil
}

// DeleteCredential removes the record with the given id.
func (m *Manager) DeleteCredential(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.repository == nil {
		return repo.ErrNotInitialized
	}
	if err := m.repository.Delete(id); err != nil {
		return err
	}
	m.logSuccess(audit.OpCredentialDelete, id)
	return nil
}

// ListCredentials returns copies of all records.
func (m *Manager) ListCredentials() ([]*model.CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.repository == nil {
		return nil, repo.ErrNotInitialized
	}
	return m.repository.List(), nil
}

// SearchCredentials runs a query against the open repository.
func (m *Manager) SearchCredentials(q repo.Query) ([]*model.CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.repository == nil {
		return nil, repo.ErrNotInitialized
	}
	return m.repository.Search(q), nil
}

// ChangePassphrase re-encrypts the archive in place under a new passphrase.
func (m *Manager) ChangePassphrase(passphrase string, opts CreateOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.repository == nil {
		return repo.ErrNotInitialized
	}
	if passphrase == "" {
		return ErrPassphraseEmpty
	}
	if !opts.AllowWeak && security.EvaluatePassphrase(passphrase) == security.PasswordWeak {
		return ErrWeakPassphrase
	}

	files, err := m.repository.ToFileMap()
	if err != nil {
		return err
	}
	data, err := m.codec.Create(files, passphrase)
	if err != nil {
		return fmt.Errorf("session: encrypt archive: %w", err)
	}
	if err := m.provider.WriteArchive(m.path, data); err != nil {
		return fmt.Errorf("%w: write %s: %v", repo.ErrFileOperation, m.path, err)
	}

	m.secret.Destroy()
	m.secret = crypto.NewMasterKeyFromBytes([]byte(passphrase))
	m.repository.MarkSaved()
	m.logSuccess(audit.OpRepoSave, "")
	return nil
}

// Analyze runs the security analyzer over the open repository.
func (m *Manager) Analyze(includeIDs bool) (*security.HealthReport, error) {
	records, err := m.ListCredentials()
	if err != nil {
		return nil, err
	}
	return security.NewAnalyzer().Analyze(records, includeIDs)
}

func (m *Manager) logSuccess(op, name string) {
	if m.audit == nil {
		return
	}
	// Audit failures never block the operation that triggered them.
	_ = m.audit.LogSuccess(op, m.source, name)
}

func (m *Manager) logError(op, name string, err error) {
	if m.audit == nil {
		return
	}
	_ = m.audit.LogError(op, m.source, name, "error", err.Error())
}
