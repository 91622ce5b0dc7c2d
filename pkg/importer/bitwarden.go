package importer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/memvault/memvault/pkg/model"
)

// Bitwarden item types.
const (
	bitwardenTypeLogin      = 1
	bitwardenTypeSecureNote = 2
	bitwardenTypeCard       = 3
	bitwardenTypeIdentity   = 4
)

// Bitwarden custom field types.
const (
	bitwardenFieldText    = 0
	bitwardenFieldHidden  = 1
	bitwardenFieldBoolean = 2
)

// BitwardenParser parses Bitwarden unencrypted JSON exports.
type BitwardenParser struct{}

type bitwardenExport struct {
	Encrypted bool              `json:"encrypted"`
	Folders   []bitwardenFolder `json:"folders"`
	Items     []bitwardenItem   `json:"items"`
}

type bitwardenFolder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type bitwardenItem struct {
	ID       string             `json:"id"`
	FolderID string             `json:"folderId"`
	Type     int                `json:"type"`
	Name     string             `json:"name"`
	Notes    string             `json:"notes"`
	Favorite bool               `json:"favorite"`
	Fields   []bitwardenField   `json:"fields"`
	Login    *bitwardenLogin    `json:"login"`
	Card     *bitwardenCard     `json:"card"`
	Identity *bitwardenIdentity `json:"identity"`
}

type bitwardenField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  int    `json:"type"`
}

type bitwardenLogin struct {
	URIs     []bitwardenURI `json:"uris"`
	Username string         `json:"username"`
	Password string         `json:"password"`
	TOTP     string         `json:"totp"`
}

type bitwardenURI struct {
	URI string `json:"uri"`
}

type bitwardenCard struct {
	CardholderName string `json:"cardholderName"`
	Brand          string `json:"brand"`
	Number         string `json:"number"`
	ExpMonth       string `json:"expMonth"`
	ExpYear        string `json:"expYear"`
	Code           string `json:"code"`
}

type bitwardenIdentity struct {
	Title      string `json:"title"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Company    string `json:"company"`
	Username   string `json:"username"`
	Passport   string `json:"passportNumber"`
	SSN        string `json:"ssn"`
	License    string `json:"licenseNumber"`
}

// Source returns the parser's format identifier.
func (p *BitwardenParser) Source() Source {
	return SourceBitwarden
}

// Parse converts a Bitwarden JSON export into credential records.
func (p *BitwardenParser) Parse(data []byte) (*Result, error) {
	var export bitwardenExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("importer: invalid bitwarden JSON: %w", err)
	}
	if export.Encrypted {
		return nil, fmt.Errorf("importer: encrypted bitwarden exports are not supported, export with encryption disabled")
	}

	folders := make(map[string]string, len(export.Folders))
	for _, f := range export.Folders {
		folders[f.ID] = f.Name
	}

	result := &Result{}
	for i, item := range export.Items {
		rec, skip := p.parseItem(item, folders, i+1)
		if skip != nil {
			result.Skipped = append(result.Skipped, *skip)
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

func (p *BitwardenParser) parseItem(item bitwardenItem, folders map[string]string, counter int) (*model.CredentialRecord, *SkippedItem) {
	title := cleanTitle(item.Name)
	if title == "" {
		var url string
		if item.Login != nil && len(item.Login.URIs) > 0 {
			url = item.Login.URIs[0].URI
		}
		title = fallbackTitle(url, counter)
	}

	var rec *model.CredentialRecord
	switch item.Type {
	case bitwardenTypeLogin:
		rec = model.NewCredentialRecord(title, "login")
		if item.Login != nil {
			setIfNonEmpty(rec, "username", model.FieldTypeUsername, item.Login.Username)
			setIfNonEmpty(rec, "password", model.FieldTypePassword, item.Login.Password)
			setIfNonEmpty(rec, "totp", model.FieldTypeTOTPSecret, normalizeTOTP(item.Login.TOTP))
			if len(item.Login.URIs) > 0 {
				setIfNonEmpty(rec, "url", model.FieldTypeURL, item.Login.URIs[0].URI)
			}
		}
	case bitwardenTypeSecureNote:
		rec = model.NewCredentialRecord(title, "secure_note")
	case bitwardenTypeCard:
		rec = model.NewCredentialRecord(title, "credit_card")
		if item.Card != nil {
			setIfNonEmpty(rec, "cardholder_name", model.FieldTypeText, item.Card.CardholderName)
			setIfNonEmpty(rec, "brand", model.FieldTypeText, item.Card.Brand)
			setIfNonEmpty(rec, "number", model.FieldTypeCreditCardNumber, item.Card.Number)
			if item.Card.ExpMonth != "" && item.Card.ExpYear != "" {
				setIfNonEmpty(rec, "expiry", model.FieldTypeExpiryDate, item.Card.ExpMonth+"/"+item.Card.ExpYear)
			}
			setIfNonEmpty(rec, "cvv", model.FieldTypeCVV, item.Card.Code)
		}
	case bitwardenTypeIdentity:
		rec = model.NewCredentialRecord(title, "identity")
		if id := item.Identity; id != nil {
			name := strings.Join([]string{id.Title, id.FirstName, id.MiddleName, id.LastName}, " ")
			setIfNonEmpty(rec, "full_name", model.FieldTypeText, strings.Join(strings.Fields(name), " "))
			setIfNonEmpty(rec, "email", model.FieldTypeEmail, id.Email)
			setIfNonEmpty(rec, "phone", model.FieldTypePhone, id.Phone)
			setIfNonEmpty(rec, "company", model.FieldTypeText, id.Company)
			setIfNonEmpty(rec, "username", model.FieldTypeUsername, id.Username)
			address := joinNonEmpty(", ", id.Address1, id.Address2, id.City, id.State, id.PostalCode, id.Country)
			setIfNonEmpty(rec, "address", model.FieldTypeText, address)
			setIfNonEmpty(rec, "passport_number", model.FieldTypeText, id.Passport)
			setIfNonEmpty(rec, "license_number", model.FieldTypeText, id.License)
			if id.SSN != "" {
				f := model.NewField(model.FieldTypeText, id.SSN)
				f.Sensitive = true
				rec.SetField("ssn", f)
			}
		}
	default:
		return nil, &SkippedItem{Name: title, Reason: fmt.Sprintf("unsupported item type %d", item.Type)}
	}

	rec.Notes = clampNotes(item.Notes)
	rec.Favorite = item.Favorite
	if item.FolderID != "" {
		if name, ok := folders[item.FolderID]; ok {
			rec.FolderPath = folderPath(name)
		}
	}

	for _, f := range item.Fields {
		p.addCustomField(rec, f)
	}
	return rec, nil
}

// addCustomField maps a Bitwarden custom field onto the record without
// clobbering fields already set from the item body.
func (p *BitwardenParser) addCustomField(rec *model.CredentialRecord, f bitwardenField) {
	name := strings.TrimSpace(f.Name)
	if name == "" || f.Value == "" {
		return
	}
	if len(rec.Fields) >= model.MaxFieldsPerCredential {
		return
	}
	if _, exists := rec.Field(name); exists {
		name += "_custom"
		if _, exists := rec.Field(name); exists {
			return
		}
	}
	ft := model.FieldTypeText
	if f.Type == bitwardenFieldHidden {
		ft = model.FieldTypePassword
	}
	field := model.NewField(ft, f.Value)
	if f.Type == bitwardenFieldHidden {
		field.Sensitive = true
	}
	rec.SetField(name, field)
}

// normalizeTOTP strips the otpauth URI wrapper Bitwarden sometimes stores,
// leaving the bare base32 secret.
func normalizeTOTP(totp string) string {
	totp = strings.TrimSpace(totp)
	if !strings.HasPrefix(totp, "otpauth://") {
		return totp
	}
	idx := strings.Index(totp, "secret=")
	if idx == -1 {
		return totp
	}
	secret := totp[idx+len("secret="):]
	if amp := strings.IndexByte(secret, '&'); amp != -1 {
		secret = secret[:amp]
	}
	return secret
}

// folderPath converts an export folder or group name into a repository
// folder path, normalizing backslash nesting.
func folderPath(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	parts := strings.Split(name, "/")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return strings.Join(out, sep)
}
