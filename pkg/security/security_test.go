package security

import (
	"testing"

	"github.com/memvault/memvault/pkg/model"
)

func TestPasswordStrengthLevels(t *testing.T) {
	tests := []struct {
		value string
		want  PasswordStrength
	}{
		{"", PasswordWeak},
		{"short", PasswordWeak},
		{"1234567", PasswordWeak},
		{"12345678", PasswordFair},
		{"thirteenchars", PasswordFair},
		{"fourteen-chars", PasswordGood},
		{"nineteen-characters", PasswordGood},
		{"twenty-characters-ok", PasswordStrong},
	}
	for _, tt := range tests {
		if got := EvaluatePassphrase(tt.value); got != tt.want {
			t.Errorf("EvaluatePassphrase(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestTOTPSecretStrength(t *testing.T) {
	tests := []struct {
		value string
		want  PasswordStrength
	}{
		{"SHORTKEY", PasswordWeak},
		{"SIXTEENCHARSECRT", PasswordFair},
		{"TWENTYCHARACTERSECRT", PasswordGood},
		{"THIRTYTWOCHARACTERSECRETKEYAB234", PasswordStrong},
	}
	for _, tt := range tests {
		if got := FieldStrength(tt.value, model.FieldTypeTOTPSecret); got != tt.want {
			t.Errorf("FieldStrength(%q, totp_secret) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestIsPasswordField(t *testing.T) {
	tests := []struct {
		name  string
		field model.Field
		want  bool
	}{
		{"password", model.NewPasswordField("x"), true},
		{"otp", model.NewTOTPField("x"), true},
		{"api_secret", model.NewTextField("x"), true},
		{"username", model.NewUsernameField("x"), false},
		{"notes", model.NewTextField("x"), false},
		{"cvv", model.NewField(model.FieldTypeCVV, "123"), false},
	}
	for _, tt := range tests {
		if got := IsPasswordField(tt.name, tt.field); got != tt.want {
			t.Errorf("IsPasswordField(%q, %s) = %v, want %v", tt.name, tt.field.Type, got, tt.want)
		}
	}
}

func loginRecord(t *testing.T, title, username, password string) *model.CredentialRecord {
	t.Helper()
	rec := model.NewCredentialRecord(title, "login")
	rec.SetField("username", model.NewUsernameField(username))
	rec.SetField("password", model.NewPasswordField(password))
	return rec
}

func TestFindDuplicates(t *testing.T) {
	a := NewAnalyzer()
	records := []*model.CredentialRecord{
		loginRecord(t, "GitHub", "alice", "shared-password-one"),
		loginRecord(t, "GitLab", "alice", "shared-password-one"),
		loginRecord(t, "Bank", "alice", "completely-different-pw"),
	}

	groups, err := a.FindDuplicates(records, true, 0)
	if err != nil {
		t.Fatalf("FindDuplicates: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if groups[0].Count != 2 {
		t.Errorf("Count = %d, want 2", groups[0].Count)
	}
	if len(groups[0].CredentialIDs) != 2 {
		t.Errorf("CredentialIDs = %v, want 2 entries", groups[0].CredentialIDs)
	}
}

func TestFindDuplicatesWithoutIDs(t *testing.T) {
	a := NewAnalyzer()
	records := []*model.CredentialRecord{
		loginRecord(t, "A", "u", "same-password-here"),
		loginRecord(t, "B", "u", "same-password-here"),
	}

	groups, err := a.FindDuplicates(records, false, 0)
	if err != nil {
		t.Fatalf("FindDuplicates: %v", err)
	}
	if len(groups) != 1 || groups[0].Count != 2 {
		t.Fatalf("groups = %+v", groups)
	}
	if groups[0].CredentialIDs != nil {
		t.Errorf("CredentialIDs should be withheld, got %v", groups[0].CredentialIDs)
	}
}

func TestAnalyzeEmptyRepository(t *testing.T) {
	report, err := NewAnalyzer().Analyze(nil, false)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.Overall != 100 {
		t.Errorf("Overall = %d, want 100", report.Overall)
	}
	if len(report.Issues) != 0 {
		t.Errorf("Issues = %+v, want none", report.Issues)
	}
}

func TestAnalyzeFlagsWeakAndDuplicate(t *testing.T) {
	records := []*model.CredentialRecord{
		loginRecord(t, "GitHub", "alice", "weak"),
		loginRecord(t, "GitLab", "alice", "reused-password-abc"),
		loginRecord(t, "Bank", "alice", "reused-password-abc"),
	}

	report, err := NewAnalyzer().Analyze(records, true)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.Overall >= 100 {
		t.Errorf("Overall = %d, want < 100", report.Overall)
	}

	var weak, dup int
	for _, issue := range report.Issues {
		switch issue.Type {
		case IssueWeakPassword:
			weak++
		case IssueDuplicatePassword:
			dup++
		}
	}
	if weak != 1 {
		t.Errorf("weak issues = %d, want 1", weak)
	}
	if dup != 1 {
		t.Errorf("duplicate issues = %d, want 1", dup)
	}
	if len(report.Suggestions) == 0 {
		t.Error("expected suggestions for detected issues")
	}
}

func TestAnalyzeFlagsStaleCredential(t *testing.T) {
	old := loginRecord(t, "Legacy", "bob", "an-old-but-long-password")
	old.UpdatedAt = 1000 // far in the past

	report, err := NewAnalyzer().WithStaleDays(90).Analyze([]*model.CredentialRecord{old}, false)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	found := false
	for _, issue := range report.Issues {
		if issue.Type == IssueStaleCredential {
			found = true
		}
	}
	if !found {
		t.Errorf("no stale issue in %+v", report.Issues)
	}
	if report.Components.FreshnessScore != 0 {
		t.Errorf("FreshnessScore = %d, want 0", report.Components.FreshnessScore)
	}
}

func TestAnalyzeCoverage(t *testing.T) {
	incomplete := model.NewCredentialRecord("Visa", "credit_card")

	report, err := NewAnalyzer().Analyze([]*model.CredentialRecord{incomplete}, false)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.Components.CoverageScore != 0 {
		t.Errorf("CoverageScore = %d, want 0", report.Components.CoverageScore)
	}

	found := false
	for _, issue := range report.Issues {
		if issue.Type == IssueMissingField {
			found = true
		}
	}
	if !found {
		t.Errorf("no missing-field issue in %+v", report.Issues)
	}
}

func TestAnalyzeMaxIssues(t *testing.T) {
	records := []*model.CredentialRecord{
		loginRecord(t, "A", "u", "weak1"),
		loginRecord(t, "B", "u", "weak2"),
		loginRecord(t, "C", "u", "weak3"),
	}

	report, err := NewAnalyzer().WithMaxIssues(1).Analyze(records, false)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(report.Issues) != 1 {
		t.Errorf("len(Issues) = %d, want 1", len(report.Issues))
	}
	if !report.Truncated {
		t.Error("Truncated = false, want true")
	}
}
