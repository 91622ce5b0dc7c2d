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

// lastpassSecureNoteURL marks secure note rows in LastPass exports.
const lastpassSecureNoteURL = "http://sn"

// LastPassParser parses LastPass CSV exports.
type LastPassParser struct{}

// Source returns the parser's format identifier.
func (p *LastPassParser) Source() Source {
	return SourceLastPass
}

// Parse converts a LastPass CSV export into credential records. Expected
// columns: url, username, password, totp, extra, name, grouping, fav.
func (p *LastPassParser) Parse(data []byte) (*Result, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("importer: failed to read lastpass CSV header: %w", err)
	}
	cols := columnIndex(header)
	if _, ok := cols["url"]; !ok {
		return nil, errors.New("importer: lastpass CSV missing url column")
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

func (p *LastPassParser) parseRow(row []string, cols map[string]int, rowNum int) (*model.CredentialRecord, *SkippedItem) {
	get := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return decodeHTMLEntities(row[idx])
	}

	url := get("url")
	name := get("name")
	extra := get("extra")

	title := cleanTitle(name)
	if title == "" {
		title = fallbackTitle(url, rowNum)
	}

	var rec *model.CredentialRecord
	if url == lastpassSecureNoteURL {
		rec = model.NewCredentialRecord(title, "secure_note")
	} else {
		rec = model.NewCredentialRecord(title, "login")
		setIfNonEmpty(rec, "url", model.FieldTypeURL, url)
		setIfNonEmpty(rec, "username", model.FieldTypeUsername, get("username"))
		setIfNonEmpty(rec, "password", model.FieldTypePassword, get("password"))
		setIfNonEmpty(rec, "totp", model.FieldTypeTOTPSecret, normalizeTOTP(get("totp")))
	}

	if len(rec.Fields) == 0 && extra == "" {
		return nil, &SkippedItem{Name: title, Reason: "empty entry"}
	}

	rec.Notes = clampNotes(extra)
	rec.Favorite = get("fav") == "1"
	if grouping := get("grouping"); grouping != "" {
		rec.FolderPath = folderPath(grouping)
	}
	return rec, nil
}

// columnIndex maps lowercased header names to column positions.
func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}
