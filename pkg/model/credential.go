package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credential validation errors.
var (
	ErrTitleEmpty     = errors.New("model: title cannot be empty")
	ErrTitleTooLong   = errors.New("model: title too long")
	ErrTypeEmpty      = errors.New("model: credential type cannot be empty")
	ErrTypeInvalid    = errors.New("model: credential type may contain only letters, numbers, hyphens, and underscores")
	ErrNotesTooLong   = errors.New("model: notes too long")
	ErrTagTooLong     = errors.New("model: tag too long")
	ErrTagEmpty       = errors.New("model: tag cannot be empty")
	ErrTooManyTags    = errors.New("model: too many tags")
	ErrDuplicateTag   = errors.New("model: duplicate tag")
	ErrIDInvalid      = errors.New("model: id is not a valid UUID")
	ErrTimestampOrder = errors.New("model: updated_at cannot precede created_at")
)

// credentialTypeRegex restricts the open type vocabulary to identifier-safe
// strings ("login", "credit_card", user-defined types).
var credentialTypeRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// uuidRegex matches the 8-4-4-4-12 hex form used for record ids.
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// CredentialRecord is a single stored credential.
type CredentialRecord struct {
	// ID is a UUID string, stable and immutable once assigned.
	ID string `yaml:"id" json:"id"`

	// Title is the user-facing display name. Never empty on a valid record.
	Title string `yaml:"title" json:"title"`

	// Type tags the record with an open-vocabulary kind such as "login",
	// "note", or "credit_card".
	Type string `yaml:"credential_type" json:"credential_type"`

	// Fields maps field names to typed values.
	Fields map[string]Field `yaml:"fields" json:"fields"`

	// Tags are free-form labels for grouping and search.
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// Notes is optional free text.
	Notes string `yaml:"notes,omitempty" json:"notes,omitempty"`

	// CreatedAt is the creation time in Unix seconds.
	CreatedAt int64 `yaml:"created_at" json:"created_at"`

	// UpdatedAt is the last modification time in Unix seconds.
	UpdatedAt int64 `yaml:"updated_at" json:"updated_at"`

	// AccessedAt is the last read time in Unix seconds.
	AccessedAt int64 `yaml:"accessed_at,omitempty" json:"accessed_at,omitempty"`

	// Favorite marks the record for quick access in client UIs.
	Favorite bool `yaml:"favorite,omitempty" json:"favorite,omitempty"`

	// FolderPath is an optional hierarchical grouping path ("work/github").
	FolderPath string `yaml:"folder_path,omitempty" json:"folder_path,omitempty"`
}

// NewCredentialRecord creates a record with a fresh UUID and current
// timestamps.
func NewCredentialRecord(title, credType string) *CredentialRecord {
	now := time.Now().Unix()
	return &CredentialRecord{
		ID:        uuid.New().String(),
		Title:     title,
		Type:      credType,
		Fields:    make(map[string]Field),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewID returns a fresh record UUID.
func NewID() string {
	return uuid.New().String()
}

// ValidID reports whether id is a well-formed record UUID.
func ValidID(id string) bool {
	return uuidRegex.MatchString(id)
}

// SetField stores a field under the given name, replacing any existing value.
func (c *CredentialRecord) SetField(name string, f Field) {
	if c.Fields == nil {
		c.Fields = make(map[string]Field)
	}
	c.Fields[name] = f
}

// Field returns the named field and whether it exists.
func (c *CredentialRecord) Field(name string) (Field, bool) {
	f, ok := c.Fields[name]
	return f, ok
}

// FieldValue returns the named field's value, or "" if absent.
func (c *CredentialRecord) FieldValue(name string) string {
	if f, ok := c.Fields[name]; ok {
		return f.Value
	}
	return ""
}

// RemoveField deletes the named field. Returns whether it existed.
func (c *CredentialRecord) RemoveField(name string) bool {
	if _, ok := c.Fields[name]; !ok {
		return false
	}
	delete(c.Fields, name)
	return true
}

// HasTag reports whether the record carries the tag (case-insensitive).
func (c *CredentialRecord) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// AddTag appends a tag if not already present (case-insensitive).
func (c *CredentialRecord) AddTag(tag string) {
	if tag == "" || c.HasTag(tag) {
		return
	}
	c.Tags = append(c.Tags, tag)
}

// Touch updates the modification timestamp.
func (c *CredentialRecord) Touch() {
	c.UpdatedAt = time.Now().Unix()
}

// MarkAccessed updates the access timestamp.
func (c *CredentialRecord) MarkAccessed() {
	c.AccessedAt = time.Now().Unix()
}

// Clone returns a deep copy of the record. Mutating the copy never affects
// the original.
func (c *CredentialRecord) Clone() *CredentialRecord {
	out := *c
	out.Fields = make(map[string]Field, len(c.Fields))
	for name, f := range c.Fields {
		if f.Metadata != nil {
			md := make(map[string]string, len(f.Metadata))
			for k, v := range f.Metadata {
				md[k] = v
			}
			f.Metadata = md
		}
		out.Fields[name] = f
	}
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	return &out
}

// Validate checks the record against the model invariants and limits.
func (c *CredentialRecord) Validate() error {
	if c.ID != "" && !ValidID(c.ID) {
		return fmt.Errorf("%w: %q", ErrIDInvalid, c.ID)
	}
	if err := ValidateTitle(c.Title); err != nil {
		return err
	}
	if err := ValidateCredentialType(c.Type); err != nil {
		return err
	}
	if len(c.Notes) > MaxNotesLength {
		return fmt.Errorf("%w: %d characters (max %d)", ErrNotesTooLong, len(c.Notes), MaxNotesLength)
	}
	if err := ValidateTags(c.Tags); err != nil {
		return err
	}
	if err := ValidateFields(c.Fields); err != nil {
		return err
	}
	if c.CreatedAt > 0 && c.UpdatedAt > 0 && c.UpdatedAt < c.CreatedAt {
		return ErrTimestampOrder
	}
	return nil
}

// ValidateTitle checks a credential title.
func ValidateTitle(title string) error {
	if title == "" {
		return ErrTitleEmpty
	}
	if len(title) > MaxTitleLength {
		return fmt.Errorf("%w: %d characters (max %d)", ErrTitleTooLong, len(title), MaxTitleLength)
	}
	return nil
}

// ValidateCredentialType checks a credential type tag.
func ValidateCredentialType(credType string) error {
	if credType == "" {
		return ErrTypeEmpty
	}
	if !credentialTypeRegex.MatchString(credType) {
		return fmt.Errorf("%w: %q", ErrTypeInvalid, credType)
	}
	return nil
}

// ValidateTags checks the tag list: count limit, per-tag length, and
// case-insensitive uniqueness.
func ValidateTags(tags []string) error {
	if len(tags) > MaxTagsPerCredential {
		return fmt.Errorf("%w: %d tags (max %d)", ErrTooManyTags, len(tags), MaxTagsPerCredential)
	}
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return ErrTagEmpty
		}
		if len(tag) > MaxTagLength {
			return fmt.Errorf("%w: %q is %d characters (max %d)", ErrTagTooLong, tag, len(tag), MaxTagLength)
		}
		lower := strings.ToLower(tag)
		if seen[lower] {
			return fmt.Errorf("%w: %q", ErrDuplicateTag, tag)
		}
		seen[lower] = true
	}
	return nil
}
