package bridge

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/memvault/memvault/pkg/archive"
	"github.com/memvault/memvault/pkg/session"
)

const testPassphrase = "correct-horse-battery-staple"

func newTestBridge() *Bridge {
	return New(session.WithProvider(archive.NewMockProvider()))
}

func call(t *testing.T, b *Bridge, cmd string, params interface{}) map[string]interface{} {
	t.Helper()
	resp := rawCall(t, b, cmd, params)
	if resp["status"] != "ok" {
		t.Fatalf("%s failed: %v", cmd, resp["error"])
	}
	result, _ := resp["result"].(map[string]interface{})
	return result
}

func callExpectError(t *testing.T, b *Bridge, cmd string, params interface{}) string {
	t.Helper()
	resp := rawCall(t, b, cmd, params)
	if resp["status"] != "error" {
		t.Fatalf("%s succeeded, expected error", cmd)
	}
	msg, _ := resp["error"].(string)
	if msg == "" {
		t.Fatalf("%s error response has no message", cmd)
	}
	return msg
}

func rawCall(t *testing.T, b *Bridge, cmd string, params interface{}) map[string]interface{} {
	t.Helper()
	req := map[string]interface{}{"cmd": cmd}
	if params != nil {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(b.Handle(data), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	return resp
}

func TestHandleMalformedRequest(t *testing.T) {
	b := newTestBridge()
	var resp map[string]interface{}
	if err := json.Unmarshal(b.Handle([]byte("{not json")), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp["status"] != "error" {
		t.Errorf("status = %v, want error", resp["status"])
	}
	if b.LastError() == "" {
		t.Error("LastError not set after failure")
	}
}

func TestHandleUnknownCommand(t *testing.T) {
	b := newTestBridge()
	callExpectError(t, b, "explode", nil)
}

func TestCreateAndCRUDLifecycle(t *testing.T) {
	b := newTestBridge()

	call(t, b, CmdCreate, map[string]interface{}{
		"path": "/vault/test.mv", "passphrase": testPassphrase,
	})

	result := call(t, b, CmdAdd, map[string]interface{}{
		"record": map[string]interface{}{
			"title": "GitHub",
			"type":  "login",
			"fields": map[string]interface{}{
				"username": map[string]interface{}{"field_type": "username", "value": "octocat", "sensitive": false},
			},
		},
	})
	id, _ := result["id"].(string)
	if id == "" {
		t.Fatal("add returned no id")
	}

	resp := rawCall(t, b, CmdGet, map[string]interface{}{"id": id})
	if resp["status"] != "ok" {
		t.Fatalf("get failed: %v", resp["error"])
	}
	rec, _ := resp["result"].(map[string]interface{})
	if rec["title"] != "GitHub" {
		t.Errorf("title = %v", rec["title"])
	}

	dirty := call(t, b, CmdIsDirty, nil)
	if dirty["dirty"] != true {
		t.Error("session not dirty after add")
	}

	call(t, b, CmdSave, nil)
	dirty = call(t, b, CmdIsDirty, nil)
	if dirty["dirty"] != false {
		t.Error("session dirty after save")
	}

	listResult := call(t, b, CmdList, nil)
	creds, _ := listResult["credentials"].([]interface{})
	if len(creds) != 1 {
		t.Fatalf("list returned %d records, want 1", len(creds))
	}

	searchResult := call(t, b, CmdSearch, map[string]interface{}{"text": "github"})
	creds, _ = searchResult["credentials"].([]interface{})
	if len(creds) != 1 {
		t.Fatalf("search returned %d records, want 1", len(creds))
	}

	call(t, b, CmdDelete, map[string]interface{}{"id": id})
	callExpectError(t, b, CmdGet, map[string]interface{}{"id": id})

	call(t, b, CmdClose, map[string]interface{}{"save": true})
	callExpectError(t, b, CmdList, nil)
}

func TestOpenAfterCreate(t *testing.T) {
	provider := archive.NewMockProvider()
	b := New(session.WithProvider(provider))

	call(t, b, CmdCreate, map[string]interface{}{
		"path": "/vault/test.mv", "passphrase": testPassphrase,
	})
	call(t, b, CmdAdd, map[string]interface{}{
		"record": map[string]interface{}{"title": "Mail", "type": "login"},
	})
	call(t, b, CmdSave, nil)
	call(t, b, CmdClose, nil)

	callExpectError(t, b, CmdOpen, map[string]interface{}{
		"path": "/vault/test.mv", "passphrase": "wrong",
	})

	call(t, b, CmdOpen, map[string]interface{}{
		"path": "/vault/test.mv", "passphrase": testPassphrase,
	})
	listResult := call(t, b, CmdList, nil)
	creds, _ := listResult["credentials"].([]interface{})
	if len(creds) != 1 {
		t.Fatalf("list returned %d records after reopen", len(creds))
	}
}

func TestCreateWeakPassphraseRejected(t *testing.T) {
	b := newTestBridge()
	callExpectError(t, b, CmdCreate, map[string]interface{}{
		"path": "/vault/test.mv", "passphrase": "short",
	})
	call(t, b, CmdCreate, map[string]interface{}{
		"path": "/vault/test.mv", "passphrase": "short", "allow_weak": true,
	})
}

func TestUpdateRecord(t *testing.T) {
	b := newTestBridge()
	call(t, b, CmdCreate, map[string]interface{}{
		"path": "/vault/test.mv", "passphrase": testPassphrase,
	})
	result := call(t, b, CmdAdd, map[string]interface{}{
		"record": map[string]interface{}{"title": "Old", "type": "login"},
	})
	id := result["id"].(string)

	call(t, b, CmdUpdate, map[string]interface{}{
		"id":     id,
		"record": map[string]interface{}{"title": "New", "type": "login"},
	})

	resp := rawCall(t, b, CmdGet, map[string]interface{}{"id": id})
	rec, _ := resp["result"].(map[string]interface{})
	if rec["title"] != "New" {
		t.Errorf("title = %v, want New", rec["title"])
	}
}

func TestFileMapRoundTrip(t *testing.T) {
	src := newTestBridge()
	call(t, src, CmdCreate, map[string]interface{}{
		"path": "/vault/test.mv", "passphrase": testPassphrase,
	})
	call(t, src, CmdAdd, map[string]interface{}{
		"record": map[string]interface{}{"title": "Router", "type": "login"},
	})

	files := call(t, src, CmdToFiles, nil)["files"].(map[string]interface{})
	if len(files) < 2 {
		t.Fatalf("to_files returned %d entries", len(files))
	}
	for path, encoded := range files {
		if _, err := base64.StdEncoding.DecodeString(encoded.(string)); err != nil {
			t.Errorf("entry %s is not valid base64: %v", path, err)
		}
	}

	dst := newTestBridge()
	call(t, dst, CmdOpenFromFiles, map[string]interface{}{"files": files})
	listResult := call(t, dst, CmdList, nil)
	creds, _ := listResult["credentials"].([]interface{})
	if len(creds) != 1 {
		t.Fatalf("list returned %d records after file map open", len(creds))
	}

	// A file-backed save has nowhere to go; hosts persist via to_files.
	call(t, dst, CmdAdd, map[string]interface{}{
		"record": map[string]interface{}{"title": "Extra", "type": "login"},
	})
	callExpectError(t, dst, CmdSave, nil)
	call(t, dst, CmdToFiles, nil)
}

func TestOpenFromFilesInvalidBase64(t *testing.T) {
	b := newTestBridge()
	callExpectError(t, b, CmdOpenFromFiles, map[string]interface{}{
		"files": map[string]interface{}{"metadata.yml": "!!not-base64!!"},
	})
}

func TestLastErrorClearsOnSuccess(t *testing.T) {
	b := newTestBridge()
	callExpectError(t, b, CmdGet, map[string]interface{}{"id": "missing"})
	if b.LastError() == "" {
		t.Fatal("LastError empty after failure")
	}
	call(t, b, CmdCreate, map[string]interface{}{
		"path": "/vault/test.mv", "passphrase": testPassphrase,
	})
	if b.LastError() != "" {
		t.Errorf("LastError = %q after success", b.LastError())
	}
}

func TestSessionInfo(t *testing.T) {
	b := newTestBridge()
	resp := rawCall(t, b, CmdSessionInfo, nil)
	if resp["status"] != "ok" {
		t.Fatalf("session_info failed: %v", resp["error"])
	}
	info, _ := resp["result"].(map[string]interface{})
	if info["open"] == true {
		t.Error("session reported open before create")
	}

	call(t, b, CmdCreate, map[string]interface{}{
		"path": "/vault/test.mv", "passphrase": testPassphrase,
	})
	resp = rawCall(t, b, CmdSessionInfo, nil)
	info, _ = resp["result"].(map[string]interface{})
	if info["open"] != true {
		t.Error("session reported closed after create")
	}
	if fmt.Sprint(info["path"]) != "/vault/test.mv" {
		t.Errorf("path = %v", info["path"])
	}
}
