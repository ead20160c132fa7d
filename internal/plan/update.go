// File path: internal/plan/update.go
package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidUpdate marks a partial update body that could not be decoded.
var ErrInvalidUpdate = errors.New("invalid plan update")

// Update is a partial plan update. Only fields that were present in the
// request are set: Title is nil when absent and Sections only holds the
// section keys that were supplied.
type Update struct {
	Title    *string
	Sections map[string]Section
}

// UnmarshalJSON decodes an update body. Explicit nulls are treated as absent,
// unknown keys are ignored, and section values must be JSON objects.
func (u *Update) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	decoded := Update{}
	for key, value := range raw {
		if isNull(value) {
			continue
		}
		switch {
		case key == "title":
			var title string
			if err := json.Unmarshal(value, &title); err != nil {
				return fmt.Errorf("%w: title must be a string", ErrInvalidUpdate)
			}
			decoded.Title = &title
		case IsSection(key):
			section, err := DecodeSection(value)
			if err != nil {
				return fmt.Errorf("%w: %s must be an object", ErrInvalidUpdate, key)
			}
			decoded.SetSection(key, section)
		}
	}
	*u = decoded
	return nil
}

// SetTitle marks the title as present.
func (u *Update) SetTitle(title string) {
	u.Title = &title
}

// SetSection marks a section as present. Unknown names are ignored.
func (u *Update) SetSection(name string, section Section) {
	if !IsSection(name) {
		return
	}
	if u.Sections == nil {
		u.Sections = make(map[string]Section)
	}
	if section == nil {
		section = Section{}
	}
	u.Sections[name] = section
}

// Empty reports whether the update carries no fields.
func (u Update) Empty() bool {
	return u.Title == nil && len(u.Sections) == 0
}

// Fields returns the present fields keyed by their document names.
func (u Update) Fields() map[string]any {
	fields := make(map[string]any, len(u.Sections)+1)
	if u.Title != nil {
		fields["title"] = *u.Title
	}
	for name, section := range u.Sections {
		fields[name] = section
	}
	return fields
}

// Keys lists the present field names in sorted order.
func (u Update) Keys() []string {
	keys := make([]string, 0, len(u.Sections)+1)
	if u.Title != nil {
		keys = append(keys, "title")
	}
	for name := range u.Sections {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// Apply copies the present fields onto p.
func (u Update) Apply(p *Plan) {
	if u.Title != nil {
		p.Title = *u.Title
	}
	for name, section := range u.Sections {
		_ = p.SetSection(name, section)
	}
}

// DecodeSection decodes a JSON object into a Section, keeping numbers as
// json.Number.
func DecodeSection(data []byte) (Section, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var section Section
	if err := dec.Decode(&section); err != nil {
		return nil, err
	}
	if section == nil {
		section = Section{}
	}
	return section, nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}
