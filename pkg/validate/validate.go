// Package validate inspects a repository FileMap for structural and format
// conformance and can repair recoverable defects in place.
//
// The policy favors maximal data recovery over strict rejection: a partially
// damaged archive yields as many credentials as possible rather than an
// all-or-nothing failure, because the credential store is irreplaceable user
// data. Repair is idempotent; a second pass over repaired output performs no
// new repairs.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/memvault/memvault/pkg/archive"
	"github.com/memvault/memvault/pkg/model"
)

// Severity classifies a validation issue.
type Severity string

// Issue severities.
const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Issue is one defect found during validation.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
	Repaired bool
}

// Report aggregates the findings of one validation or repair pass.
type Report struct {
	Issues           []Issue
	CredentialsFound int
	RepairsApplied   int
}

// IsValid reports whether the map is loadable: no critical issue remains
// unrepaired. Warnings and info issues do not block a load.
func (r *Report) IsValid() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityCritical && !issue.Repaired {
			return false
		}
	}
	return true
}

// CriticalIssues returns the unrepaired critical issues.
func (r *Report) CriticalIssues() []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == SeverityCritical && !issue.Repaired {
			out = append(out, issue)
		}
	}
	return out
}

func (r *Report) add(sev Severity, path, message string) {
	r.Issues = append(r.Issues, Issue{Severity: sev, Path: path, Message: message})
}

func (r *Report) addRepaired(sev Severity, path, message string) {
	r.Issues = append(r.Issues, Issue{Severity: sev, Path: path, Message: message, Repaired: true})
	r.RepairsApplied++
}

// flatRecordRegex matches the legacy flat layout credentials/{uuid}.yml.
var flatRecordRegex = regexp.MustCompile(`^credentials/([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})\.yml$`)

// Validate checks the map without modifying it.
func Validate(files archive.FileMap) *Report {
	return run(files, false)
}

// Repair checks the map and fixes recoverable defects in place: missing or
// incomplete metadata is synthesized, legacy flat record files are moved to
// the current layout, and records missing an id recover it from their
// directory name.
func Repair(files archive.FileMap) *Report {
	return run(files, true)
}

func run(files archive.FileMap, repair bool) *Report {
	report := &Report{}

	meta, metaOK := checkMetadata(files, report, repair)
	migrated := checkLegacyLayout(files, report, repair)
	checkStructure(files, report)
	checkRecords(files, report, repair)

	if repair && metaOK && migrated {
		// A migrated layout gets the current structure version.
		if meta.StructureVersion != model.StructureVersion {
			meta.StructureVersion = model.StructureVersion
			writeMetadata(files, meta)
		}
	}

	return report
}

// checkMetadata validates metadata.yml, injecting defaults for missing but
// inferable fields when repairing. Returns the parsed metadata and whether
// it is usable.
func checkMetadata(files archive.FileMap, report *Report, repair bool) (model.RepositoryMetadata, bool) {
	raw, ok := files[archive.MetadataPath]
	if !ok {
		if !repair {
			report.add(SeverityCritical, archive.MetadataPath, "metadata.yml is missing")
			return model.RepositoryMetadata{}, false
		}
		// Synthesize metadata for an archive that predates it.
		meta := model.NewRepositoryMetadata()
		writeMetadata(files, meta)
		report.addRepaired(SeverityCritical, archive.MetadataPath, "metadata.yml was missing; synthesized defaults")
		return meta, true
	}

	var meta model.RepositoryMetadata
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		report.add(SeverityCritical, archive.MetadataPath, fmt.Sprintf("metadata.yml is unparseable: %v", err))
		return model.RepositoryMetadata{}, false
	}

	changed := false
	if meta.Format == "" {
		if repair {
			meta.Format = model.FormatTag
			changed = true
			report.addRepaired(SeverityWarning, archive.MetadataPath, fmt.Sprintf("missing format tag; injected %q", model.FormatTag))
		} else {
			report.add(SeverityWarning, archive.MetadataPath, "missing format tag")
		}
	}
	if meta.Version == "" {
		if repair {
			meta.Version = model.FormatVersion
			changed = true
			report.addRepaired(SeverityWarning, archive.MetadataPath, fmt.Sprintf("missing version; injected %q", model.FormatVersion))
		} else {
			report.add(SeverityWarning, archive.MetadataPath, "missing version")
		}
	}
	if meta.StructureVersion == "" {
		if repair {
			meta.StructureVersion = model.StructureVersion
			changed = true
			report.addRepaired(SeverityInfo, archive.MetadataPath, fmt.Sprintf("missing structure_version; injected %q", model.StructureVersion))
		} else {
			report.add(SeverityInfo, archive.MetadataPath, "missing structure_version")
		}
	}

	if changed {
		writeMetadata(files, meta)
	}
	return meta, true
}

func writeMetadata(files archive.FileMap, meta model.RepositoryMetadata) {
	// Marshalling a plain struct does not fail.
	raw, _ := yaml.Marshal(meta)
	files[archive.MetadataPath] = raw
}

// checkLegacyLayout migrates flat credentials/{uuid}.yml files into the
// id-keyed directory layout. Returns whether any migration happened.
func checkLegacyLayout(files archive.FileMap, report *Report, repair bool) bool {
	var flat []string
	for path := range files {
		if flatRecordRegex.MatchString(path) {
			flat = append(flat, path)
		}
	}
	sort.Strings(flat)

	migrated := false
	for _, path := range flat {
		id := flatRecordRegex.FindStringSubmatch(path)[1]
		target := archive.RecordPath(id)
		if !repair {
			report.add(SeverityWarning, path, fmt.Sprintf("legacy flat record layout; expected %s", target))
			continue
		}
		if _, exists := files[target]; exists {
			report.add(SeverityCritical, path, fmt.Sprintf("legacy record conflicts with existing %s", target))
			continue
		}
		files[target] = files[path]
		delete(files, path)
		report.addRepaired(SeverityWarning, path, fmt.Sprintf("migrated legacy record to %s", target))
		migrated = true
	}
	return migrated
}

// checkStructure reports credential entries that do not follow the canonical
// credentials/{uuid}/record.yml shape. These are excluded from load and not
// auto-fixable.
func checkStructure(files archive.FileMap, report *Report) {
	for _, path := range files.Paths() {
		if !strings.HasPrefix(path, archive.CredentialsPrefix) {
			if path != archive.MetadataPath && path != archive.IndexPath &&
				!strings.HasPrefix(path, archive.AttachmentsPrefix) {
				report.add(SeverityInfo, path, "unrecognized entry outside the repository layout")
			}
			continue
		}
		if flatRecordRegex.MatchString(path) {
			// Reported by the legacy layout check.
			continue
		}
		id := archive.CredentialIDFromPath(path)
		if id == "" {
			report.add(SeverityCritical, path, "non-conforming credential path; entry will not be loaded")
			continue
		}
		if !model.ValidID(id) {
			report.add(SeverityCritical, path, fmt.Sprintf("credential directory %q is not a UUID", id))
		}
	}
}

// checkRecords validates record content: the id/title/type triad and id
// agreement with the directory name. A record claiming another entry's id
// shows up here as an id mismatch against its own directory, so a separate
// cross-entry uniqueness pass is not needed.
func checkRecords(files archive.FileMap, report *Report, repair bool) {
	for _, path := range files.RecordPaths() {
		dirID := archive.CredentialIDFromPath(path)
		if !model.ValidID(dirID) {
			continue // already reported by checkStructure
		}

		var rec model.CredentialRecord
		if err := yaml.Unmarshal(files[path], &rec); err != nil {
			report.add(SeverityWarning, path, fmt.Sprintf("unparseable record, will be dropped: %v", err))
			continue
		}

		if rec.ID == "" {
			if repair {
				// The directory name carries the id; restore it.
				rec.ID = dirID
				raw, _ := yaml.Marshal(&rec)
				files[path] = raw
				report.addRepaired(SeverityWarning, path, "record missing id; recovered from directory name")
			} else {
				report.add(SeverityWarning, path, "record missing id")
			}
		} else if rec.ID != dirID {
			report.add(SeverityCritical, path, fmt.Sprintf("record id %q does not match directory %q", rec.ID, dirID))
			continue
		}

		if rec.Title == "" {
			report.add(SeverityWarning, path, "record missing title, will be dropped")
			continue
		}
		if rec.Type == "" {
			report.add(SeverityWarning, path, "record missing credential_type, will be dropped")
			continue
		}

		report.CredentialsFound++
	}
}
