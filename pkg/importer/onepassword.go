package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/memvault/memvault/pkg/model"
)

// OnePasswordParser parses 1Password CSV exports.
type OnePasswordParser struct{}

// Source returns the parser's format identifier.
func (p *OnePasswordParser) Source() Source {
	return Source1Password
}

// Parse converts a 1Password CSV export into credential records. Expected
// columns: Title, Website, Username, Password, OTPAuth, Favorite, Archived,
// Tags, Notes.
func (p *OnePasswordParser) Parse(data []byte) (*Result, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("importer: failed to read 1password CSV header: %w", err)
	}
	cols := columnIndex(header)
	if _, ok := cols["title"]; !ok {
		return nil, errors.New("importer: 1password CSV missing title column")
	}

	result := &Result{}
	rowNum := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		rec, skip := p.parseRow(row, cols, rowNum)
		if skip != nil {
			result.Skipped = append(result.Skipped, *skip)
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

func (p *OnePasswordParser) parseRow(row []string, cols map[string]int, rowNum int) (*model.CredentialRecord, *SkippedItem) {
	get := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	title := cleanTitle(get("title"))
	website := get("website")
	if title == "" {
		title = fallbackTitle(website, rowNum)
	}

	if strings.EqualFold(get("archived"), "true") {
		return nil, &SkippedItem{Name: title, Reason: "archived"}
	}

	rec := model.NewCredentialRecord(title, "login")
	setIfNonEmpty(rec, "url", model.FieldTypeURL, website)
	setIfNonEmpty(rec, "username", model.FieldTypeUsername, get("username"))
	setIfNonEmpty(rec, "password", model.FieldTypePassword, get("password"))
	setIfNonEmpty(rec, "totp", model.FieldTypeTOTPSecret, normalizeTOTP(get("otpauth")))

	notes := get("notes")
	if len(rec.Fields) == 0 && notes == "" {
		return nil, &SkippedItem{Name: title, Reason: "empty entry"}
	}

	rec.Notes = clampNotes(notes)
	rec.Favorite = strings.EqualFold(get("favorite"), "true")
	if tags := get("tags"); tags != "" {
		rec.Tags = cleanTags(strings.Split(tags, ","))
	}
	return rec, nil
}
