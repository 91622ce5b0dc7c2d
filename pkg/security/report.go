package security

import (
	"strconv"
	"time"

	"github.com/memvault/memvault/pkg/model"
)

// HealthReport represents the overall security assessment of a repository.
type HealthReport struct {
	// Overall is the total score (0-100).
	Overall int `json:"overall"`
	// Components breaks down the score into categories.
	Components ScoreComponents `json:"components"`
	// Issues contains the detected security issues.
	Issues []Issue `json:"issues"`
	// Suggestions provides actionable recommendations.
	Suggestions []string `json:"suggestions"`
	// Truncated indicates the issue list was cut at the analyzer's limit.
	Truncated bool `json:"truncated"`
}

// ScoreComponents breaks down the health score into categories.
// Each component contributes up to 25 points.
type ScoreComponents struct {
	// StrengthScore is based on average password strength (0-25).
	StrengthScore int `json:"strength"`
	// UniquenessScore is based on the fraction of unique passwords (0-25).
	UniquenessScore int `json:"uniqueness"`
	// FreshnessScore is based on the fraction of recently rotated
	// password-bearing credentials (0-25).
	FreshnessScore int `json:"freshness"`
	// CoverageScore is based on template required-field coverage (0-25).
	CoverageScore int `json:"coverage"`
}

// IssueType identifies the type of security issue.
type IssueType string

const (
	// IssueWeakPassword indicates a password with insufficient strength.
	IssueWeakPassword IssueType = "weak"
	// IssueDuplicatePassword indicates passwords reused across credentials.
	IssueDuplicatePassword IssueType = "duplicate"
	// IssueStaleCredential indicates a password not rotated within the
	// staleness window.
	IssueStaleCredential IssueType = "stale"
	// IssueMissingField indicates a template-required field is absent.
	IssueMissingField IssueType = "missing_field"
)

// Severity indicates the urgency of a security issue.
type Severity string

const (
	// SeverityWarning should be addressed soon.
	SeverityWarning Severity = "warning"
	// SeverityInfo is informational only.
	SeverityInfo Severity = "info"
)

// Issue represents a detected security problem.
type Issue struct {
	// Type identifies the category of issue.
	Type IssueType `json:"type"`
	// Severity indicates urgency.
	Severity Severity `json:"severity"`
	// CredentialID is the affected credential (may be empty for privacy).
	CredentialID string `json:"credential_id,omitempty"`
	// CredentialIDs is used for duplicate issues.
	CredentialIDs []string `json:"credential_ids,omitempty"`
	// FieldName is the specific field with the issue.
	FieldName string `json:"field_name,omitempty"`
	// Description explains the issue.
	Description string `json:"description"`
	// Suggestion provides remediation guidance.
	Suggestion string `json:"suggestion,omitempty"`
}

// Analyzer computes health reports over a set of credential records.
type Analyzer struct {
	hmacKey   []byte // session-local key for duplicate detection
	staleDays int
	maxIssues int
}

// NewAnalyzer creates an analyzer with the default staleness window of a
// year and no issue limit.
func NewAnalyzer() *Analyzer {
	return &Analyzer{staleDays: 365}
}

// WithStaleDays sets the rotation window after which a password counts as
// stale.
func (a *Analyzer) WithStaleDays(days int) *Analyzer {
	a.staleDays = days
	return a
}

// WithMaxIssues caps the number of issues reported. Zero means unlimited.
func (a *Analyzer) WithMaxIssues(n int) *Analyzer {
	a.maxIssues = n
	return a
}

// Analyze computes the full health report. When includeIDs is false, issues
// carry no credential ids, which keeps the report safe to forward.
func (a *Analyzer) Analyze(records []*model.CredentialRecord, includeIDs bool) (*HealthReport, error) {
	if len(records) == 0 {
		return &HealthReport{
			Overall: 100,
			Components: ScoreComponents{
				StrengthScore:   25,
				UniquenessScore: 25,
				FreshnessScore:  25,
				CoverageScore:   25,
			},
			Issues:      []Issue{},
			Suggestions: []string{},
		}, nil
	}

	strengthScore, weakIssues := a.strengthScore(records, includeIDs)
	uniquenessScore, dupIssues, err := a.uniquenessScore(records, includeIDs)
	if err != nil {
		return nil, err
	}
	freshnessScore, staleIssues := a.freshnessScore(records, includeIDs)
	coverageScore, coverageIssues := a.coverageScore(records, includeIDs)

	issues := make([]Issue, 0, len(weakIssues)+len(dupIssues)+len(staleIssues)+len(coverageIssues))
	issues = append(issues, weakIssues...)
	issues = append(issues, dupIssues...)
	issues = append(issues, staleIssues...)
	issues = append(issues, coverageIssues...)

	truncated := false
	if a.maxIssues > 0 && len(issues) > a.maxIssues {
		issues = issues[:a.maxIssues]
		truncated = true
	}

	return &HealthReport{
		Overall: strengthScore + uniquenessScore + freshnessScore + coverageScore,
		Components: ScoreComponents{
			StrengthScore:   strengthScore,
			UniquenessScore: uniquenessScore,
			FreshnessScore:  freshnessScore,
			CoverageScore:   coverageScore,
		},
		Issues:      issues,
		Suggestions: suggestions(issues),
		Truncated:   truncated,
	}, nil
}

// strengthScore evaluates password strength across all credentials.
func (a *Analyzer) strengthScore(records []*model.CredentialRecord, includeIDs bool) (int, []Issue) {
	var issues []Issue
	totalPoints := 0
	passwordCount := 0

	for _, rec := range records {
		for name, f := range rec.Fields {
			if !IsPasswordField(name, f) || f.Value == "" {
				continue
			}

			passwordCount++
			strength := FieldStrength(f.Value, f.Type)
			totalPoints += strength.Points()

			if strength == PasswordWeak {
				issue := Issue{
					Type:        IssueWeakPassword,
					Severity:    SeverityWarning,
					FieldName:   name,
					Description: "password has insufficient strength (" + strconv.Itoa(len(f.Value)) + " characters)",
					Suggestion:  "use a longer password (14+ characters recommended)",
				}
				if includeIDs {
					issue.CredentialID = rec.ID
				}
				issues = append(issues, issue)
			}
		}
	}

	// No password fields at all: component does not apply.
	if passwordCount == 0 {
		return 25, issues
	}

	score := totalPoints / passwordCount
	if score > 25 {
		score = 25
	}
	return score, issues
}

// uniquenessScore evaluates password reuse across credentials.
func (a *Analyzer) uniquenessScore(records []*model.CredentialRecord, includeIDs bool) (int, []Issue, error) {
	duplicates, err := a.FindDuplicates(records, includeIDs, 0)
	if err != nil {
		return 0, nil, err
	}

	hashes := make(map[string]bool)
	total := 0
	for _, rec := range records {
		for name, f := range rec.Fields {
			if !IsPasswordField(name, f) || f.Value == "" {
				continue
			}
			total++
			hashes[a.valueHash(f.Value)] = true
		}
	}
	if total == 0 {
		return 25, nil, nil
	}

	var issues []Issue
	for _, dup := range duplicates {
		issue := Issue{
			Type:        IssueDuplicatePassword,
			Severity:    SeverityWarning,
			Description: strconv.Itoa(dup.Count) + " credentials share the same password",
			Suggestion:  "use a unique password for each credential",
		}
		if includeIDs {
			issue.CredentialIDs = dup.CredentialIDs
		}
		issues = append(issues, issue)
	}

	return len(hashes) * 25 / total, issues, nil
}

// freshnessScore evaluates how recently password-bearing credentials were
// updated.
func (a *Analyzer) freshnessScore(records []*model.CredentialRecord, includeIDs bool) (int, []Issue) {
	cutoff := time.Now().AddDate(0, 0, -a.staleDays).Unix()

	var issues []Issue
	withPassword := 0
	fresh := 0

	for _, rec := range records {
		hasPassword := false
		for name, f := range rec.Fields {
			if IsPasswordField(name, f) && f.Value != "" {
				hasPassword = true
				break
			}
		}
		if !hasPassword {
			continue
		}

		withPassword++
		if rec.UpdatedAt >= cutoff {
			fresh++
			continue
		}

		issue := Issue{
			Type:        IssueStaleCredential,
			Severity:    SeverityInfo,
			Description: "password not rotated in over " + strconv.Itoa(a.staleDays) + " days",
			Suggestion:  "rotate long-lived passwords periodically",
		}
		if includeIDs {
			issue.CredentialID = rec.ID
		}
		issues = append(issues, issue)
	}

	if withPassword == 0 {
		return 25, issues
	}
	return fresh * 25 / withPassword, issues
}

// coverageScore checks template required fields for credentials whose type
// matches a built-in template. Untemplated types count as covered.
func (a *Analyzer) coverageScore(records []*model.CredentialRecord, includeIDs bool) (int, []Issue) {
	var issues []Issue
	covered := 0

	for _, rec := range records {
		tmpl, err := model.TemplateByName(rec.Type)
		if err != nil {
			covered++
			continue
		}
		if err := tmpl.CheckRecord(rec); err != nil {
			issue := Issue{
				Type:        IssueMissingField,
				Severity:    SeverityInfo,
				Description: err.Error(),
				Suggestion:  "fill in the template's required fields",
			}
			if includeIDs {
				issue.CredentialID = rec.ID
			}
			issues = append(issues, issue)
			continue
		}
		covered++
	}

	return covered * 25 / len(records), issues
}

// suggestions creates actionable recommendations based on detected issues.
func suggestions(issues []Issue) []string {
	seen := make(map[IssueType]bool)
	for _, issue := range issues {
		seen[issue.Type] = true
	}

	var out []string
	if seen[IssueWeakPassword] {
		out = append(out, "Update weak passwords with stronger alternatives (14+ characters)")
	}
	if seen[IssueDuplicatePassword] {
		out = append(out, "Replace reused passwords with unique values")
	}
	if seen[IssueStaleCredential] {
		out = append(out, "Rotate passwords that have not changed in a long time")
	}
	if seen[IssueMissingField] {
		out = append(out, "Complete credentials that are missing template fields")
	}
	return out
}
