// Package bridge is the foreign-call boundary for embedding hosts. Commands
// and results cross as JSON byte slices, binary file content as base64, and
// no call ever panics across the boundary.
package bridge

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/memvault/memvault/pkg/archive"
	"github.com/memvault/memvault/pkg/model"
	"github.com/memvault/memvault/pkg/repo"
	"github.com/memvault/memvault/pkg/session"
)

// Command names accepted by Handle.
const (
	CmdOpen          = "open"
	CmdCreate        = "create"
	CmdSave          = "save"
	CmdSaveAs        = "save_as"
	CmdClose         = "close"
	CmdLock          = "lock"
	CmdAdd           = "add"
	CmdGet           = "get"
	CmdUpdate        = "update"
	CmdDelete        = "delete"
	CmdList          = "list"
	CmdSearch        = "search"
	CmdIsDirty       = "is_dirty"
	CmdSessionInfo   = "session_info"
	CmdOpenFromFiles = "open_from_files"
	CmdToFiles       = "to_files"
)

// request is the envelope every call arrives in.
type request struct {
	Cmd    string          `json:"cmd"`
	Params json.RawMessage `json:"params,omitempty"`
}

// response is the envelope every call returns in.
type response struct {
	Status string      `json:"status"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Bridge wraps a session manager for hosts that cannot link Go directly.
type Bridge struct {
	mu      sync.Mutex
	manager *session.Manager
	lastErr string
}

// New creates a bridge around its own session manager.
func New(opts ...session.Option) *Bridge {
	return &Bridge{manager: session.NewManager(opts...)}
}

// NewWithManager wraps an existing manager, for hosts that share one session
// between the bridge and in-process callers.
func NewWithManager(m *session.Manager) *Bridge {
	return &Bridge{manager: m}
}

// LastError returns the error text of the most recent failed call, or "".
func (b *Bridge) LastError() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Handle dispatches one JSON-encoded command and returns a JSON response.
// The returned slice is always valid JSON, even for malformed input.
func (b *Bridge) Handle(requestJSON []byte) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []byte
	func() {
		defer func() {
			if r := recover(); r != nil {
				out = b.fail(fmt.Sprintf("internal error: %v", r))
			}
		}()
		out = b.dispatch(requestJSON)
	}()
	return out
}

func (b *Bridge) dispatch(requestJSON []byte) []byte {
	var req request
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return b.fail(fmt.Sprintf("invalid request: %v", err))
	}

	switch req.Cmd {
	case CmdOpen:
		return b.handleOpen(req.Params)
	case CmdCreate:
		return b.handleCreate(req.Params)
	case CmdSave:
		return b.result(b.manager.Save(), nil)
	case CmdSaveAs:
		return b.handleSaveAs(req.Params)
	case CmdClose:
		return b.handleClose(req.Params)
	case CmdLock:
		b.manager.Lock()
		return b.ok(nil)
	case CmdAdd:
		return b.handleAdd(req.Params)
	case CmdGet:
		return b.handleGet(req.Params)
	case CmdUpdate:
		return b.handleUpdate(req.Params)
	case CmdDelete:
		return b.handleDelete(req.Params)
	case CmdList:
		return b.handleList()
	case CmdSearch:
		return b.handleSearch(req.Params)
	case CmdIsDirty:
		return b.ok(map[string]bool{"dirty": b.manager.IsDirty()})
	case CmdSessionInfo:
		return b.ok(b.manager.SessionInfo())
	case CmdOpenFromFiles:
		return b.handleOpenFromFiles(req.Params)
	case CmdToFiles:
		return b.handleToFiles()
	default:
		return b.fail(fmt.Sprintf("unknown command: %q", req.Cmd))
	}
}

type pathParams struct {
	Path       string `json:"path"`
	Passphrase string `json:"passphrase"`
	AllowWeak  bool   `json:"allow_weak,omitempty"`
}

func (b *Bridge) handleOpen(params json.RawMessage) []byte {
	var p pathParams
	if err := b.decode(params, &p); err != nil {
		return b.fail(err.Error())
	}
	if err := b.manager.Open(p.Path, p.Passphrase); err != nil {
		return b.failErr(err)
	}
	return b.ok(map[string]interface{}{"warnings": b.manager.Warnings()})
}

func (b *Bridge) handleCreate(params json.RawMessage) []byte {
	var p pathParams
	if err := b.decode(params, &p); err != nil {
		return b.fail(err.Error())
	}
	err := b.manager.Create(p.Path, p.Passphrase, session.CreateOptions{AllowWeak: p.AllowWeak})
	return b.result(err, nil)
}

func (b *Bridge) handleSaveAs(params json.RawMessage) []byte {
	var p pathParams
	if err := b.decode(params, &p); err != nil {
		return b.fail(err.Error())
	}
	return b.result(b.manager.SaveAs(p.Path, p.Passphrase), nil)
}

func (b *Bridge) handleClose(params json.RawMessage) []byte {
	var p struct {
		Save bool `json:"save"`
	}
	if len(params) > 0 {
		if err := b.decode(params, &p); err != nil {
			return b.fail(err.Error())
		}
	}
	return b.result(b.manager.Close(p.Save), nil)
}

func (b *Bridge) handleAdd(params json.RawMessage) []byte {
	var p struct {
		Record *model.CredentialRecord `json:"record"`
	}
	if err := b.decode(params, &p); err != nil {
		return b.fail(err.Error())
	}
	if p.Record == nil {
		return b.fail("record is required")
	}
	id, err := b.manager.AddCredential(p.Record)
	if err != nil {
		return b.failErr(err)
	}
	return b.ok(map[string]string{"id": id})
}

func (b *Bridge) handleGet(params json.RawMessage) []byte {
	var p struct {
		ID string `json:"id"`
	}
	if err := b.decode(params, &p); err != nil {
		return b.fail(err.Error())
	}
	rec, err := b.manager.GetCredential(p.ID)
	if err != nil {
		return b.failErr(err)
	}
	return b.ok(rec)
}

func (b *Bridge) handleUpdate(params json.RawMessage) []byte {
	var p struct {
		ID     string                  `json:"id"`
		Record *model.CredentialRecord `json:"record"`
	}
	if err := b.decode(params, &p); err != nil {
		return b.fail(err.Error())
	}
	if p.Record == nil {
		return b.fail("record is required")
	}
	return b.result(b.manager.UpdateCredential(p.ID, p.Record), nil)
}

func (b *Bridge) handleDelete(params json.RawMessage) []byte {
	var p struct {
		ID string `json:"id"`
	}
	if err := b.decode(params, &p); err != nil {
		return b.fail(err.Error())
	}
	return b.result(b.manager.DeleteCredential(p.ID), nil)
}

func (b *Bridge) handleList() []byte {
	records, err := b.manager.ListCredentials()
	if err != nil {
		return b.failErr(err)
	}
	return b.ok(map[string]interface{}{"credentials": records})
}

func (b *Bridge) handleSearch(params json.RawMessage) []byte {
	var p struct {
		Text          string   `json:"text,omitempty"`
		Tags          []string `json:"tags,omitempty"`
		Type          string   `json:"type,omitempty"`
		Folder        string   `json:"folder,omitempty"`
		FavoritesOnly bool     `json:"favorites_only,omitempty"`
	}
	if len(params) > 0 {
		if err := b.decode(params, &p); err != nil {
			return b.fail(err.Error())
		}
	}
	records, err := b.manager.SearchCredentials(repo.Query{
		Text:          p.Text,
		Tags:          p.Tags,
		Type:          p.Type,
		Folder:        p.Folder,
		FavoritesOnly: p.FavoritesOnly,
	})
	if err != nil {
		return b.failErr(err)
	}
	return b.ok(map[string]interface{}{"credentials": records})
}

func (b *Bridge) handleOpenFromFiles(params json.RawMessage) []byte {
	var p struct {
		Files map[string]string `json:"files"`
	}
	if err := b.decode(params, &p); err != nil {
		return b.fail(err.Error())
	}
	files := make(archive.FileMap, len(p.Files))
	for path, encoded := range p.Files {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return b.fail(fmt.Sprintf("invalid base64 content for %q: %v", path, err))
		}
		files[path] = data
	}
	if err := b.manager.OpenFromFiles(files); err != nil {
		return b.failErr(err)
	}
	return b.ok(map[string]interface{}{"warnings": b.manager.Warnings()})
}

func (b *Bridge) handleToFiles() []byte {
	files, err := b.manager.ToFiles()
	if err != nil {
		return b.failErr(err)
	}
	encoded := make(map[string]string, len(files))
	for path, data := range files {
		encoded[path] = base64.StdEncoding.EncodeToString(data)
	}
	return b.ok(map[string]interface{}{"files": encoded})
}

func (b *Bridge) decode(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("missing params")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("invalid params: %v", err)
	}
	return nil
}

// result collapses the common error-or-empty-result pattern.
func (b *Bridge) result(err error, result interface{}) []byte {
	if err != nil {
		return b.failErr(err)
	}
	return b.ok(result)
}

func (b *Bridge) ok(result interface{}) []byte {
	b.lastErr = ""
	out, err := json.Marshal(response{Status: "ok", Result: result})
	if err != nil {
		return b.fail(fmt.Sprintf("encode response: %v", err))
	}
	return out
}

func (b *Bridge) failErr(err error) []byte {
	return b.fail(err.Error())
}

func (b *Bridge) fail(msg string) []byte {
	b.lastErr = msg
	out, err := json.Marshal(response{Status: "error", Error: msg})
	if err != nil {
		// A plain string always marshals; this is unreachable in practice.
		return []byte(`{"status":"error","error":"encode failure"}`)
	}
	return out
}
