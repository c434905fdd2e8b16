package mapping

import (
	"strings"
	"time"
)

// Mapping documents how one source field feeds one target field.
type Mapping struct {
	ID             string     `json:"id" yaml:"id"`
	TargetTable    string     `json:"targetTable" yaml:"targetTable"`
	TargetField    string     `json:"targetField" yaml:"targetField"`
	SourceTable    string     `json:"sourceTable" yaml:"sourceTable"`
	SourceField    string     `json:"sourceField" yaml:"sourceField"`
	Transformation string     `json:"transformation" yaml:"transformation"`
	Notes          string     `json:"notes" yaml:"notes"`
	CreatedAt      time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// Clone returns a copy that shares no pointers with m.
func (m Mapping) Clone() Mapping {
	if m.UpdatedAt != nil {
		updated := *m.UpdatedAt
		m.UpdatedAt = &updated
	}
	return m
}

func (m Mapping) Fields() Fields {
	return Fields{
		TargetTable:    m.TargetTable,
		TargetField:    m.TargetField,
		SourceTable:    m.SourceTable,
		SourceField:    m.SourceField,
		Transformation: m.Transformation,
		Notes:          m.Notes,
	}
}

// Fields is the user-editable part of a mapping.
type Fields struct {
	TargetTable    string `json:"targetTable"`
	TargetField    string `json:"targetField"`
	SourceTable    string `json:"sourceTable"`
	SourceField    string `json:"sourceField"`
	Transformation string `json:"transformation,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// Normalize trims every field and upper-cases the four identifiers.
func (f Fields) Normalize() Fields {
	return Fields{
		TargetTable:    NormalizeIdentifier(f.TargetTable),
		TargetField:    NormalizeIdentifier(f.TargetField),
		SourceTable:    NormalizeIdentifier(f.SourceTable),
		SourceField:    NormalizeIdentifier(f.SourceField),
		Transformation: strings.TrimSpace(f.Transformation),
		Notes:          strings.TrimSpace(f.Notes),
	}
}

// Validate expects normalized fields.
func (f Fields) Validate() error {
	var missing []string
	for _, required := range []struct {
		name  string
		value string
	}{
		{HeaderTargetTable, f.TargetTable},
		{HeaderTargetField, f.TargetField},
		{HeaderSourceTable, f.SourceTable},
		{HeaderSourceField, f.SourceField},
	} {
		if required.value == "" {
			missing = append(missing, required.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

func NormalizeIdentifier(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// Matches reports whether term occurs, case-insensitively, in any textual field.
// An empty term matches everything.
func (m Mapping) Matches(term string) bool {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return true
	}

	for _, haystack := range []string{
		m.TargetTable,
		m.TargetField,
		m.SourceTable,
		m.SourceField,
		m.Transformation,
		m.Notes,
	} {
		if strings.Contains(strings.ToLower(haystack), needle) {
			return true
		}
	}
	return false
}
