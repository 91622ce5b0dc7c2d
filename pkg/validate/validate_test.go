package validate

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/memvault/memvault/pkg/archive"
	"github.com/memvault/memvault/pkg/model"
)

func metadataBytes(t *testing.T) []byte {
	t.Helper()
	raw, err := yaml.Marshal(model.NewRepositoryMetadata())
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	return raw
}

func recordBytes(t *testing.T, rec *model.CredentialRecord) []byte {
	t.Helper()
	raw, err := yaml.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	return raw
}

func TestValidateCleanRepository(t *testing.T) {
	rec := model.NewCredentialRecord("GitHub", "login")
	files := archive.FileMap{
		archive.MetadataPath:       metadataBytes(t),
		archive.RecordPath(rec.ID): recordBytes(t, rec),
	}

	report := Validate(files)
	if !report.IsValid() {
		t.Fatalf("clean repository flagged invalid: %+v", report.Issues)
	}
	if report.CredentialsFound != 1 {
		t.Errorf("CredentialsFound = %d, want 1", report.CredentialsFound)
	}
	if len(report.Issues) != 0 {
		t.Errorf("unexpected issues: %+v", report.Issues)
	}
}

func TestValidateMissingMetadata(t *testing.T) {
	rec := model.NewCredentialRecord("GitHub", "login")
	files := archive.FileMap{
		archive.RecordPath(rec.ID): recordBytes(t, rec),
	}

	report := Validate(files)
	if report.IsValid() {
		t.Fatal("missing metadata should be critical")
	}
	if len(files) != 1 {
		t.Errorf("Validate modified the map: %v", files.Paths())
	}
}

func TestRepairSynthesizesMetadata(t *testing.T) {
	rec := model.NewCredentialRecord("GitHub", "login")
	files := archive.FileMap{
		archive.RecordPath(rec.ID): recordBytes(t, rec),
	}

	report := Repair(files)
	if !report.IsValid() {
		t.Fatalf("repair did not clear the metadata issue: %+v", report.Issues)
	}
	if report.RepairsApplied == 0 {
		t.Error("RepairsApplied = 0, want at least 1")
	}

	raw, ok := files[archive.MetadataPath]
	if !ok {
		t.Fatal("metadata.yml was not synthesized")
	}
	var meta model.RepositoryMetadata
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("unmarshal synthesized metadata: %v", err)
	}
	if meta.Format != model.FormatTag || meta.Version != model.FormatVersion {
		t.Errorf("synthesized metadata = %+v", meta)
	}
}

func TestRepairInjectsMissingFormatFields(t *testing.T) {
	rec := model.NewCredentialRecord("GitHub", "login")
	files := archive.FileMap{
		archive.MetadataPath:       []byte("created_at: 1700000000\n"),
		archive.RecordPath(rec.ID): recordBytes(t, rec),
	}

	report := Repair(files)
	if !report.IsValid() {
		t.Fatalf("unexpected critical issues: %+v", report.CriticalIssues())
	}

	var meta model.RepositoryMetadata
	if err := yaml.Unmarshal(files[archive.MetadataPath], &meta); err != nil {
		t.Fatalf("unmarshal repaired metadata: %v", err)
	}
	if meta.Format != model.FormatTag {
		t.Errorf("Format = %q, want %q", meta.Format, model.FormatTag)
	}
	if meta.Version != model.FormatVersion {
		t.Errorf("Version = %q, want %q", meta.Version, model.FormatVersion)
	}
	if meta.StructureVersion != model.StructureVersion {
		t.Errorf("StructureVersion = %q, want %q", meta.StructureVersion, model.StructureVersion)
	}
	if meta.CreatedAt != 1700000000 {
		t.Errorf("CreatedAt = %d, repair should not touch existing fields", meta.CreatedAt)
	}
}

func TestValidateUnparseableMetadata(t *testing.T) {
	files := archive.FileMap{
		archive.MetadataPath: []byte("{not yaml: ["),
	}

	for _, pass := range []func(archive.FileMap) *Report{Validate, Repair} {
		report := pass(files.Clone())
		if report.IsValid() {
			t.Error("unparseable metadata should stay critical")
		}
	}
}

func TestRepairMigratesLegacyLayout(t *testing.T) {
	rec := model.NewCredentialRecord("Old Mail", "login")
	legacy := archive.CredentialsPrefix + rec.ID + ".yml"
	files := archive.FileMap{
		archive.MetadataPath: metadataBytes(t),
		legacy:               recordBytes(t, rec),
	}

	report := Repair(files)
	if !report.IsValid() {
		t.Fatalf("unexpected critical issues: %+v", report.CriticalIssues())
	}
	if _, exists := files[legacy]; exists {
		t.Error("legacy path still present after migration")
	}
	if _, exists := files[archive.RecordPath(rec.ID)]; !exists {
		t.Error("migrated record missing at canonical path")
	}
	if report.CredentialsFound != 1 {
		t.Errorf("CredentialsFound = %d, want 1", report.CredentialsFound)
	}
}

func TestValidateReportsLegacyLayoutWithoutMigrating(t *testing.T) {
	rec := model.NewCredentialRecord("Old Mail", "login")
	legacy := archive.CredentialsPrefix + rec.ID + ".yml"
	files := archive.FileMap{
		archive.MetadataPath: metadataBytes(t),
		legacy:               recordBytes(t, rec),
	}

	report := Validate(files)
	if _, exists := files[legacy]; !exists {
		t.Error("Validate must not move entries")
	}
	found := false
	for _, issue := range report.Issues {
		if issue.Path == legacy && !issue.Repaired {
			found = true
		}
	}
	if !found {
		t.Errorf("no issue reported for legacy path: %+v", report.Issues)
	}
}

func TestRepairRecoversIDFromDirectory(t *testing.T) {
	id := model.NewID()
	rec := model.NewCredentialRecord("GitHub", "login")
	rec.ID = ""
	files := archive.FileMap{
		archive.MetadataPath:   metadataBytes(t),
		archive.RecordPath(id): recordBytes(t, rec),
	}

	report := Repair(files)
	if !report.IsValid() {
		t.Fatalf("unexpected critical issues: %+v", report.CriticalIssues())
	}
	var got model.CredentialRecord
	if err := yaml.Unmarshal(files[archive.RecordPath(id)], &got); err != nil {
		t.Fatalf("unmarshal repaired record: %v", err)
	}
	if got.ID != id {
		t.Errorf("ID = %q, want %q", got.ID, id)
	}
}

func TestValidateIDDirectoryMismatch(t *testing.T) {
	rec := model.NewCredentialRecord("GitHub", "login")
	otherDir := model.NewID()
	files := archive.FileMap{
		archive.MetadataPath:         metadataBytes(t),
		archive.RecordPath(otherDir): recordBytes(t, rec),
	}

	report := Validate(files)
	if report.IsValid() {
		t.Fatal("id/directory mismatch should be critical")
	}
	if report.CredentialsFound != 0 {
		t.Errorf("CredentialsFound = %d, want 0", report.CredentialsFound)
	}
}

func TestValidateDuplicateID(t *testing.T) {
	rec := model.NewCredentialRecord("GitHub", "login")
	other := rec.Clone()
	otherDir := model.NewID()
	// Second directory claims the first record's id.
	files := archive.FileMap{
		archive.MetadataPath:       metadataBytes(t),
		archive.RecordPath(rec.ID): recordBytes(t, rec),
		archive.RecordPath(otherDir): func() []byte {
			raw, _ := yaml.Marshal(other)
			return raw
		}(),
	}

	report := Validate(files)
	if report.IsValid() {
		t.Fatal("duplicate id should be critical")
	}
	var msgs []string
	for _, issue := range report.CriticalIssues() {
		msgs = append(msgs, issue.Message)
	}
	if len(msgs) == 0 || !strings.Contains(strings.Join(msgs, " "), "does not match") {
		t.Errorf("critical issues = %v", msgs)
	}
	// Only the record living in its own directory counts.
	if report.CredentialsFound != 1 {
		t.Errorf("CredentialsFound = %d, want 1", report.CredentialsFound)
	}
}

func TestValidateRecordMissingTitle(t *testing.T) {
	rec := model.NewCredentialRecord("", "login")
	files := archive.FileMap{
		archive.MetadataPath:       metadataBytes(t),
		archive.RecordPath(rec.ID): recordBytes(t, rec),
	}

	report := Validate(files)
	if !report.IsValid() {
		t.Fatal("missing title is a warning, not critical")
	}
	if report.CredentialsFound != 0 {
		t.Errorf("CredentialsFound = %d, want 0", report.CredentialsFound)
	}
}

func TestValidateNonConformingPath(t *testing.T) {
	files := archive.FileMap{
		archive.MetadataPath:            metadataBytes(t),
		"credentials/not-a-uuid/extra":  []byte("x"),
		"credentials/also-bad/nested/f": []byte("y"),
	}

	report := Validate(files)
	if report.IsValid() {
		t.Fatal("non-conforming credential paths should be critical")
	}
}

func TestRepairIsIdempotent(t *testing.T) {
	rec := model.NewCredentialRecord("Old Mail", "login")
	noID := model.NewCredentialRecord("Keyless", "note")
	noIDDir := noID.ID
	noID.ID = ""
	files := archive.FileMap{
		archive.CredentialsPrefix + rec.ID + ".yml": recordBytes(t, rec),
		archive.RecordPath(noIDDir):                 recordBytes(t, noID),
	}

	first := Repair(files)
	if !first.IsValid() {
		t.Fatalf("first pass left critical issues: %+v", first.CriticalIssues())
	}
	if first.RepairsApplied == 0 {
		t.Fatal("first pass applied no repairs")
	}

	second := Repair(files)
	if second.RepairsApplied != 0 {
		t.Errorf("second pass applied %d repairs, want 0: %+v", second.RepairsApplied, second.Issues)
	}
	if second.CredentialsFound != 2 {
		t.Errorf("CredentialsFound = %d, want 2", second.CredentialsFound)
	}
}
