package main

import (
	"strings"
	"testing"

	"github.com/memvault/memvault/pkg/archive"
	"github.com/memvault/memvault/pkg/model"
	"github.com/memvault/memvault/pkg/session"
)

func newOpenManager(t *testing.T, titles ...string) *session.Manager {
	t.Helper()
	m := session.NewManager(session.WithProvider(archive.NewMockProvider()))
	if err := m.Create("/vault.mv", "correct-horse-battery-staple", session.CreateOptions{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(m.Lock)
	for _, title := range titles {
		rec := model.NewCredentialRecord(title, "login")
		rec.SetField("password", model.NewPasswordField("a-long-enough-password"))
		if _, err := m.AddCredential(rec); err != nil {
			t.Fatalf("AddCredential %q: %v", title, err)
		}
	}
	return m
}

func TestFindByTitleExactMatch(t *testing.T) {
	m := newOpenManager(t, "GitHub", "GitLab")

	rec, err := findByTitle(m, "github")
	if err != nil {
		t.Fatalf("findByTitle: %v", err)
	}
	if rec.Title != "GitHub" {
		t.Errorf("Title = %q, want GitHub", rec.Title)
	}
}

func TestFindByTitleAmbiguousListsMatchesSorted(t *testing.T) {
	m := newOpenManager(t, "Zulu Bank", "Alpha Bank", "Mike Bank")

	_, err := findByTitle(m, "*bank")
	if err == nil {
		t.Fatal("expected an ambiguity error")
	}
	// The listing order must not depend on map iteration.
	want := "Alpha Bank, Mike Bank, Zulu Bank"
	if !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want it to contain %q", err, want)
	}
}
