// Package model defines the credential data model shared by every layer of
// memvault: credential records, typed fields, repository metadata, and the
// built-in credential templates.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Size limits for credential content.
const (
	// MaxFieldValueLength is the maximum length of a field value.
	MaxFieldValueLength = 10000

	// MaxFieldsPerCredential is the maximum number of fields in one record.
	MaxFieldsPerCredential = 50

	// MaxTitleLength is the maximum length of a credential title.
	MaxTitleLength = 200

	// MaxNotesLength is the maximum length of the notes text.
	MaxNotesLength = 10000

	// MaxTagLength is the maximum length of a single tag.
	MaxTagLength = 50

	// MaxTagsPerCredential is the maximum number of tags per record.
	MaxTagsPerCredential = 10

	// MaxFieldNameLength is the maximum length of a field name.
	MaxFieldNameLength = 100

	// MaxLabelLength is the maximum length of a field label.
	MaxLabelLength = 200
)

// Field validation errors.
var (
	ErrFieldNameEmpty    = errors.New("model: field name cannot be empty")
	ErrFieldNameTooLong  = errors.New("model: field name too long")
	ErrFieldValueTooLong = errors.New("model: field value too long")
	ErrLabelTooLong      = errors.New("model: field label too long")
	ErrTooManyFields     = errors.New("model: too many fields")
)

// FieldType classifies a credential field's value. The type drives input
// validation and the default sensitivity of the field.
type FieldType string

// Built-in field types.
const (
	FieldTypeText             FieldType = "text"
	FieldTypePassword         FieldType = "password"
	FieldTypeEmail            FieldType = "email"
	FieldTypeURL              FieldType = "url"
	FieldTypeUsername         FieldType = "username"
	FieldTypePhone            FieldType = "phone"
	FieldTypeCreditCardNumber FieldType = "credit_card_number"
	FieldTypeExpiryDate       FieldType = "expiry_date"
	FieldTypeCVV              FieldType = "cvv"
	FieldTypeTOTPSecret       FieldType = "totp_secret"
	FieldTypeTextArea         FieldType = "text_area"
	FieldTypeNumber           FieldType = "number"
	FieldTypeDate             FieldType = "date"
	FieldTypeCustom           FieldType = "custom"
)

// builtinFieldTypes is the set of recognized field type tags.
var builtinFieldTypes = map[FieldType]bool{
	FieldTypeText:             true,
	FieldTypePassword:         true,
	FieldTypeEmail:            true,
	FieldTypeURL:              true,
	FieldTypeUsername:         true,
	FieldTypePhone:            true,
	FieldTypeCreditCardNumber: true,
	FieldTypeExpiryDate:       true,
	FieldTypeCVV:              true,
	FieldTypeTOTPSecret:       true,
	FieldTypeTextArea:         true,
	FieldTypeNumber:           true,
	FieldTypeDate:             true,
	FieldTypeCustom:           true,
}

// ParseFieldType maps a string tag to a FieldType. Unknown tags are treated
// as custom so records written by newer versions still load.
func ParseFieldType(s string) FieldType {
	ft := FieldType(strings.ToLower(strings.TrimSpace(s)))
	if builtinFieldTypes[ft] {
		return ft
	}
	return FieldTypeCustom
}

// DefaultSensitive reports whether fields of this type are masked by default.
func (ft FieldType) DefaultSensitive() bool {
	switch ft {
	case FieldTypePassword, FieldTypeCVV, FieldTypeTOTPSecret:
		return true
	default:
		return false
	}
}

// Field is a single named value within a credential record.
type Field struct {
	// Type classifies the value and drives validation.
	Type FieldType `yaml:"field_type" json:"field_type"`

	// Value is the field content. For binary or file fields this holds a
	// repository-relative attachment path rather than raw bytes.
	Value string `yaml:"value" json:"value"`

	// Sensitive marks the value for masking in display layers and exclusion
	// from search matching. Defaults from Type via DefaultSensitive.
	Sensitive bool `yaml:"sensitive" json:"sensitive"`

	// Label is an optional human-readable display name.
	Label string `yaml:"label,omitempty" json:"label,omitempty"`

	// Metadata carries optional free-form key/value annotations.
	Metadata map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// fieldWire is the serialized shape of a Field. Sensitive is a pointer so
// decoding can tell "absent" apart from an explicit false.
type fieldWire struct {
	Type      string            `yaml:"field_type" json:"field_type"`
	Value     string            `yaml:"value" json:"value"`
	Sensitive *bool             `yaml:"sensitive" json:"sensitive"`
	Label     string            `yaml:"label" json:"label"`
	Metadata  map[string]string `yaml:"metadata" json:"metadata"`
}

func (f *Field) fromWire(w fieldWire) {
	f.Type = ParseFieldType(w.Type)
	f.Value = w.Value
	f.Label = w.Label
	f.Metadata = w.Metadata
	if w.Sensitive != nil {
		f.Sensitive = *w.Sensitive
	} else {
		// A record that omits the flag keeps the type's default. Password,
		// CVV, and TOTP fields stay masked unless the writer said otherwise.
		f.Sensitive = f.Type.DefaultSensitive()
	}
}

// UnmarshalYAML decodes a field, defaulting an absent sensitive flag from the
// field type.
func (f *Field) UnmarshalYAML(node *yaml.Node) error {
	var w fieldWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	f.fromWire(w)
	return nil
}

// UnmarshalJSON decodes a field with the same sensitivity defaulting as
// UnmarshalYAML.
func (f *Field) UnmarshalJSON(data []byte) error {
	var w fieldWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	f.fromWire(w)
	return nil
}

// NewField creates a field of the given type with the type's default
// sensitivity.
func NewField(ft FieldType, value string) Field {
	return Field{
		Type:      ft,
		Value:     value,
		Sensitive: ft.DefaultSensitive(),
	}
}

// Typed field constructors.

// NewTextField creates a plain text field.
func NewTextField(value string) Field { return NewField(FieldTypeText, value) }

// NewPasswordField creates a sensitive password field.
func NewPasswordField(value string) Field { return NewField(FieldTypePassword, value) }

// NewEmailField creates an email field.
func NewEmailField(value string) Field { return NewField(FieldTypeEmail, value) }

// NewURLField creates a URL field.
func NewURLField(value string) Field { return NewField(FieldTypeURL, value) }

// NewUsernameField creates a username field.
func NewUsernameField(value string) Field { return NewField(FieldTypeUsername, value) }

// NewTOTPField creates a sensitive TOTP secret field.
func NewTOTPField(secret string) Field { return NewField(FieldTypeTOTPSecret, secret) }

// WithLabel returns a copy of the field with the label set.
func (f Field) WithLabel(label string) Field {
	f.Label = label
	return f
}

// WithSensitive returns a copy of the field with sensitivity explicitly set.
// Downgrading a type that defaults to sensitive requires this explicit call;
// decoding never drops the flag on its own.
func (f Field) WithSensitive(sensitive bool) Field {
	f.Sensitive = sensitive
	return f
}

// ValidateField checks a single named field against the model limits.
func ValidateField(name string, f Field) error {
	if name == "" {
		return ErrFieldNameEmpty
	}
	if len(name) > MaxFieldNameLength {
		return fmt.Errorf("%w: %q is %d characters (max %d)", ErrFieldNameTooLong, name, len(name), MaxFieldNameLength)
	}
	if len(f.Value) > MaxFieldValueLength {
		return fmt.Errorf("%w: field %q holds %d characters (max %d)", ErrFieldValueTooLong, name, len(f.Value), MaxFieldValueLength)
	}
	if len(f.Label) > MaxLabelLength {
		return fmt.Errorf("%w: field %q label is %d characters (max %d)", ErrLabelTooLong, name, len(f.Label), MaxLabelLength)
	}
	return nil
}

// ValidateFields checks every field of a record, including the field count
// limit and case-insensitive name uniqueness.
func ValidateFields(fields map[string]Field) error {
	if len(fields) > MaxFieldsPerCredential {
		return fmt.Errorf("%w: %d fields (max %d)", ErrTooManyFields, len(fields), MaxFieldsPerCredential)
	}
	seen := make(map[string]string, len(fields))
	for name, f := range fields {
		if err := ValidateField(name, f); err != nil {
			return err
		}
		lower := strings.ToLower(name)
		if prev, ok := seen[lower]; ok {
			return fmt.Errorf("model: duplicate field name: %q conflicts with %q", name, prev)
		}
		seen[lower] = name
	}
	return nil
}
