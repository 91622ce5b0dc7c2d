// Package audit records repository and credential operations to an
// append-only JSONL log protected by an HMAC chain, so gaps and rewrites are
// detectable after the fact.
//
// Credential ids never appear in the log directly; they are HMACed with a
// key derived from the master passphrase, which keeps the log useless
// without the repository it belongs to.
package audit

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"
)

// MinDiskSpace is the free space floor below which audit writes fail rather
// than fill the disk.
const MinDiskSpace = 1024 * 1024

// Operation types.
const (
	OpRepoCreate     = "repo.create"
	OpRepoOpen       = "repo.open"
	OpRepoOpenFailed = "repo.open_failed"
	OpRepoSave       = "repo.save"
	OpRepoClose      = "repo.close"

	OpCredentialAdd    = "credential.add"
	OpCredentialGet    = "credential.get"
	OpCredentialUpdate = "credential.update"
	OpCredentialDelete = "credential.delete"
	OpCredentialList   = "credential.list"
	OpCredentialSearch = "credential.search"

	OpImport = "repo.import"
	OpExport = "repo.export"

	OpAccessDenied = "credential.access_denied"
)

// Source identifies where the operation originated.
const (
	SourceCLI    = "cli"
	SourceMCP    = "mcp"
	SourceBridge = "bridge"
)

// Result indicates the outcome of an operation.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultDenied  = "denied"
)

// ErrKeyNotSet is returned when logging is attempted before SetHMACKey.
var ErrKeyNotSet = errors.New("audit: HMAC key not set")

// Event is a single audit log record.
type Event struct {
	Version   int    `json:"v"`
	ID        string `json:"id"`
	Timestamp string `json:"ts"` // RFC 3339, nanosecond precision

	Operation string `json:"op"`
	// Ref is the HMAC of the credential id the operation touched, if any.
	Ref string `json:"ref,omitempty"`

	Actor  Actor      `json:"actor"`
	Result string     `json:"result"`
	Error  *ErrorInfo `json:"error,omitempty"`

	Context map[string]any `json:"ctx,omitempty"`

	Chain Chain `json:"chain"`
}

// Actor describes who performed the operation.
type Actor struct {
	Type      string `json:"type"` // user | agent
	Source    string `json:"source"`
	SessionID string `json:"session_id"`
}

// ErrorInfo carries error details for failed operations.
type ErrorInfo struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Chain links a record to its predecessor for tamper detection.
type Chain struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
	HMAC     string `json:"hmac"`
}

// Logger appends events to monthly JSONL files under a directory, keeping
// the HMAC chain state in a sidecar file across runs.
type Logger struct {
	mu        sync.Mutex
	path      string
	hmacKey   []byte
	sequence  int64
	prevHash  string
	sessionID string
	keySet    bool
}

// NewLogger creates a logger writing under path. Events are rejected until
// SetHMACKey is called.
func NewLogger(path string) *Logger {
	return &Logger{
		path:      path,
		prevHash:  "genesis",
		sessionID: newSessionID(),
	}
}

// SetHMACKey derives the log HMAC key from the master passphrase via
// HKDF-SHA256 and restores persisted chain state.
func (l *Logger) SetHMACKey(masterKey []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := hkdf.New(sha256.New, masterKey, nil, []byte("memvault-audit-v1"))
	l.hmacKey = make([]byte, 32)
	if _, err := r.Read(l.hmacKey); err != nil {
		return fmt.Errorf("audit: derive HMAC key: %w", err)
	}
	l.keySet = true

	if err := l.loadChainState(); err != nil {
		// First run, or the sidecar is gone. Start a fresh chain; Verify
		// reports the discontinuity if records exist.
		l.sequence = 0
		l.prevHash = "genesis"
	}
	return nil
}

// Log records one event.
func (l *Logger) Log(op, source, result, credentialID string, errInfo *ErrorInfo, ctx map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.keySet {
		return ErrKeyNotSet
	}
	if err := os.MkdirAll(l.path, 0700); err != nil {
		return fmt.Errorf("audit: create directory: %w", err)
	}
	if err := l.checkDiskSpace(); err != nil {
		return err
	}

	event := Event{
		Version:   1,
		ID:        newEventID(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Operation: op,
		Actor: Actor{
			Type:      "user",
			Source:    source,
			SessionID: l.sessionID,
		},
		Result:  result,
		Error:   errInfo,
		Context: ctx,
	}
	if credentialID != "" {
		mac := hmac.New(sha256.New, l.hmacKey)
		mac.Write([]byte(credentialID))
		event.Ref = hex.EncodeToString(mac.Sum(nil))
	}

	l.sequence++
	event.Chain.Sequence = l.sequence
	event.Chain.PrevHash = l.prevHash

	mac := hmac.New(sha256.New, l.hmacKey)
	mac.Write(recordData(&event))
	event.Chain.HMAC = hex.EncodeToString(mac.Sum(nil))
	l.prevHash = event.Chain.HMAC

	if err := l.writeEvent(&event); err != nil {
		return err
	}
	return l.saveChainState()
}

// LogSuccess records a successful operation.
func (l *Logger) LogSuccess(op, source, credentialID string) error {
	return l.Log(op, source, ResultSuccess, credentialID, nil, nil)
}

// LogError records a failed operation.
func (l *Logger) LogError(op, source, credentialID, code, message string) error {
	return l.Log(op, source, ResultError, credentialID, &ErrorInfo{Code: code, Message: message}, nil)
}

// LogDenied records a policy denial.
func (l *Logger) LogDenied(op, source, credentialID, reason string) error {
	return l.Log(op, source, ResultDenied, credentialID, nil, map[string]any{"reason": reason})
}

// recordData serializes the HMAC-covered fields of an event. Context keys
// are sorted so the digest is deterministic.
func recordData(event *Event) []byte {
	var ctx bytes.Buffer
	if event.Context != nil {
		keys := make([]string, 0, len(event.Context))
		for k := range event.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&ctx, "%s=%v|", k, event.Context[k])
		}
	}

	errData := ""
	if event.Error != nil {
		errData = event.Error.Code + "|" + event.Error.Message
	}

	return []byte(fmt.Sprintf("%d|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%d|%s",
		event.Version,
		event.ID,
		event.Timestamp,
		event.Operation,
		event.Ref,
		event.Actor.Type,
		event.Actor.Source,
		event.Actor.SessionID,
		event.Result,
		errData,
		ctx.String(),
		event.Chain.Sequence,
		event.Chain.PrevHash,
	))
}

// writeEvent appends an event to the current month's log file.
func (l *Logger) writeEvent(event *Event) error {
	name := time.Now().UTC().Format("2006-01") + ".jsonl"
	f, err := os.OpenFile(filepath.Join(l.path, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("audit: open log file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: write event: %w", err)
	}
	return nil
}

type chainState struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
}

func (l *Logger) loadChainState() error {
	data, err := os.ReadFile(filepath.Join(l.path, "audit.meta"))
	if err != nil {
		return err
	}
	var state chainState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	l.sequence = state.Sequence
	l.prevHash = state.PrevHash
	return nil
}

func (l *Logger) saveChainState() error {
	data, err := json.Marshal(chainState{Sequence: l.sequence, PrevHash: l.prevHash})
	if err != nil {
		return fmt.Errorf("audit: marshal chain state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.path, "audit.meta"), data, 0600); err != nil {
		return fmt.Errorf("audit: save chain state: %w", err)
	}
	return nil
}

func newSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("session-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// newEventID builds a time-sortable id: 48 bits of Unix millis plus 80
// random bits, hex encoded.
func newEventID() string {
	ts := time.Now().UnixMilli()
	id := make([]byte, 16)
	for i := 5; i >= 0; i-- {
		id[i] = byte(ts & 0xff)
		ts >>= 8
	}
	if _, err := rand.Read(id[6:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(id)
}

// VerifyResult contains the results of chain verification.
type VerifyResult struct {
	Valid           bool     `json:"valid"`
	RecordsTotal    int      `json:"records_total"`
	RecordsVerified int      `json:"records_verified"`
	Errors          []string `json:"errors,omitempty"`
}

// Verify walks every log file in chronological order and checks sequence
// continuity, chain linkage, and per-record HMACs.
func (l *Logger) Verify() (*VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.keySet {
		return nil, ErrKeyNotSet
	}

	files, err := l.logFiles()
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Valid: true}
	expectedPrev := "genesis"
	var expectedSeq int64 = 1

	for _, file := range files {
		events, err := readLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("audit: read %s: %w", file, err)
		}
		for i := range events {
			event := &events[i]
			result.RecordsTotal++

			if event.Chain.Sequence != expectedSeq {
				result.Valid = false
				result.Errors = append(result.Errors, fmt.Sprintf(
					"sequence gap at record %s: expected %d, got %d",
					event.ID, expectedSeq, event.Chain.Sequence))
			}
			if event.Chain.PrevHash != expectedPrev {
				result.Valid = false
				result.Errors = append(result.Errors, fmt.Sprintf(
					"chain broken at record %s: expected prev %s, got %s",
					event.ID, expectedPrev, event.Chain.PrevHash))
			}

			mac := hmac.New(sha256.New, l.hmacKey)
			mac.Write(recordData(event))
			if event.Chain.HMAC != hex.EncodeToString(mac.Sum(nil)) {
				result.Valid = false
				result.Errors = append(result.Errors, fmt.Sprintf(
					"HMAC mismatch at record %s: possible tampering", event.ID))
			}

			expectedPrev = event.Chain.HMAC
			expectedSeq++
		}
	}

	result.RecordsVerified = result.RecordsTotal
	return result, nil
}

// ListEvents returns events, oldest first. limit caps the result to the
// most recent n events; since filters out anything at or before that time.
func (l *Logger) ListEvents(limit int, since time.Time) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.allEvents()
	if err != nil {
		return nil, err
	}

	if !since.IsZero() {
		filtered := events[:0]
		for _, event := range events {
			ts, err := time.Parse(time.RFC3339Nano, event.Timestamp)
			if err != nil {
				continue
			}
			if ts.After(since) {
				filtered = append(filtered, event)
			}
		}
		events = filtered
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// Path returns the audit log directory.
func (l *Logger) Path() string {
	return l.path
}

// Export renders events in the given format, "json" or "csv", optionally
// bounded by since and until.
func (l *Logger) Export(format string, since, until time.Time) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.allEvents()
	if err != nil {
		return nil, err
	}

	var filtered []Event
	for _, event := range events {
		ts, err := time.Parse(time.RFC3339Nano, event.Timestamp)
		if err != nil {
			continue
		}
		if !since.IsZero() && ts.Before(since) {
			continue
		}
		if !until.IsZero() && ts.After(until) {
			continue
		}
		filtered = append(filtered, event)
	}

	switch format {
	case "json":
		return json.MarshalIndent(filtered, "", "  ")
	case "csv":
		return formatCSV(filtered)
	default:
		return nil, fmt.Errorf("audit: unsupported format: %s", format)
	}
}

func formatCSV(events []Event) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"timestamp", "operation", "result", "ref"}); err != nil {
		return nil, err
	}
	for _, event := range events {
		ref := event.Ref
		if len(ref) > 16 {
			ref = ref[:16] + "..."
		}
		if err := w.Write([]string{event.Timestamp, event.Operation, event.Result, ref}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// Prune deletes events older than the given age and returns how many were
// removed. Files that become empty are deleted; partially pruned files are
// rewritten atomically.
func (l *Logger) Prune(olderThan time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	files, err := l.logFiles()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, file := range files {
		events, err := readLogFile(file)
		if err != nil {
			return deleted, fmt.Errorf("audit: read %s: %w", file, err)
		}

		var remaining []Event
		for _, event := range events {
			ts, err := time.Parse(time.RFC3339Nano, event.Timestamp)
			if err != nil || ts.After(cutoff) {
				remaining = append(remaining, event)
				continue
			}
			deleted++
		}
		if len(remaining) == len(events) {
			continue
		}

		if len(remaining) == 0 {
			if err := os.Remove(file); err != nil {
				return deleted, fmt.Errorf("audit: delete %s: %w", file, err)
			}
			continue
		}
		if err := rewriteLogFile(file, remaining); err != nil {
			return deleted, fmt.Errorf("audit: rewrite %s: %w", file, err)
		}
	}
	return deleted, nil
}

// PrunePreview counts the events Prune would delete.
func (l *Logger) PrunePreview(olderThan time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	events, err := l.allEvents()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, event := range events {
		ts, err := time.Parse(time.RFC3339Nano, event.Timestamp)
		if err != nil {
			continue
		}
		if ts.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

// logFiles lists the monthly log files in chronological order. The
// YYYY-MM.jsonl naming makes lexical order chronological.
func (l *Logger) logFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(l.path, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("audit: list log files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func (l *Logger) allEvents() ([]Event, error) {
	files, err := l.logFiles()
	if err != nil {
		return nil, err
	}
	var events []Event
	for _, file := range files {
		fileEvents, err := readLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("audit: read %s: %w", file, err)
		}
		events = append(events, fileEvents...)
	}
	return events, nil
}

func readLogFile(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var events []Event
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("parse line: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

func rewriteLogFile(path string, events []Event) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
