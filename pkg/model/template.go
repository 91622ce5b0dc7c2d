package model

import (
	"errors"
	"fmt"
)

// ErrUnknownTemplate indicates the named template does not exist.
var ErrUnknownTemplate = errors.New("model: unknown template")

// FieldTemplate describes one field a template stamps into new records.
type FieldTemplate struct {
	Name      string
	Label     string
	Type      FieldType
	Required  bool
	Sensitive bool
}

// Template describes a credential kind: which fields a record of this type
// should carry and which of them are required.
type Template struct {
	Name        string
	Description string
	Fields      []FieldTemplate
	DefaultTags []string
}

// NewRecord creates a credential of this template's type with every template
// field present (empty values) and the default tags applied.
func (t Template) NewRecord(title string) *CredentialRecord {
	rec := NewCredentialRecord(title, t.Name)
	for _, ft := range t.Fields {
		rec.SetField(ft.Name, Field{
			Type:      ft.Type,
			Sensitive: ft.Sensitive,
			Label:     ft.Label,
		})
	}
	for _, tag := range t.DefaultTags {
		rec.AddTag(tag)
	}
	return rec
}

// RequiredFields lists the names of fields the template requires.
func (t Template) RequiredFields() []string {
	var names []string
	for _, ft := range t.Fields {
		if ft.Required {
			names = append(names, ft.Name)
		}
	}
	return names
}

// CheckRecord verifies that every required field is present with a non-empty
// value.
func (t Template) CheckRecord(rec *CredentialRecord) error {
	for _, ft := range t.Fields {
		if !ft.Required {
			continue
		}
		f, ok := rec.Fields[ft.Name]
		if !ok || f.Value == "" {
			return fmt.Errorf("model: template %q requires field %q", t.Name, ft.Name)
		}
	}
	return nil
}

func tmplField(name, label string, ft FieldType, required bool) FieldTemplate {
	return FieldTemplate{
		Name:      name,
		Label:     label,
		Type:      ft,
		Required:  required,
		Sensitive: ft.DefaultSensitive(),
	}
}

// Built-in templates.
var builtinTemplates = []Template{
	{
		Name:        "login",
		Description: "Standard login with username and password",
		Fields: []FieldTemplate{
			tmplField("username", "Username", FieldTypeUsername, true),
			tmplField("password", "Password", FieldTypePassword, true),
			tmplField("url", "Website", FieldTypeURL, false),
			tmplField("totp_secret", "TOTP Secret", FieldTypeTOTPSecret, false),
		},
		DefaultTags: []string{"login"},
	},
	{
		Name:        "credit_card",
		Description: "Credit card with security details",
		Fields: []FieldTemplate{
			tmplField("cardholder", "Cardholder Name", FieldTypeText, true),
			tmplField("number", "Card Number", FieldTypeCreditCardNumber, true),
			tmplField("expiry", "Expiry Date", FieldTypeExpiryDate, true),
			tmplField("cvv", "CVV", FieldTypeCVV, true),
		},
		DefaultTags: []string{"payment"},
	},
	{
		Name:        "secure_note",
		Description: "Free-form secure text note",
		Fields: []FieldTemplate{
			tmplField("content", "Content", FieldTypeTextArea, true),
		},
		DefaultTags: []string{"note"},
	},
	{
		Name:        "api_key",
		Description: "Service API key or token",
		Fields: []FieldTemplate{
			tmplField("key", "API Key", FieldTypePassword, true),
			tmplField("url", "Endpoint", FieldTypeURL, false),
			tmplField("environment", "Environment", FieldTypeText, false),
		},
		DefaultTags: []string{"api"},
	},
	{
		Name:        "wifi",
		Description: "Wireless network credentials",
		Fields: []FieldTemplate{
			tmplField("ssid", "Network Name", FieldTypeText, true),
			tmplField("password", "Password", FieldTypePassword, true),
			tmplField("security", "Security Type", FieldTypeText, false),
		},
		DefaultTags: []string{"wifi"},
	},
}

// Templates returns all built-in templates.
func Templates() []Template {
	out := make([]Template, len(builtinTemplates))
	copy(out, builtinTemplates)
	return out
}

// TemplateByName looks up a built-in template.
func TemplateByName(name string) (Template, error) {
	for _, t := range builtinTemplates {
		if t.Name == name {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
}
