// File path: internal/plan/document.go
package plan

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the canonical textual form of persisted timestamps.
const TimestampLayout = time.RFC3339Nano

var timestampKeys = []string{"created_at", "updated_at"}

// EncodeDocument converts a plan into a storable document. Timestamps are
// written in their canonical textual form.
func EncodeDocument(p *Plan) map[string]any {
	doc := map[string]any{
		"id":         p.ID,
		"plan_id":    p.PlanID,
		"title":      p.Title,
		"created_at": p.CreatedAt,
		"updated_at": p.UpdatedAt,
	}
	for name, section := range p.Sections() {
		doc[name] = section
	}
	return EncodeValue(doc).(map[string]any)
}

// DecodeDocument restores a plan from a stored document.
func DecodeDocument(doc map[string]any) (*Plan, error) {
	decoded, _ := DecodeValue(doc).(map[string]any)
	if decoded == nil {
		return nil, fmt.Errorf("decode plan: empty document")
	}
	p := &Plan{}
	var err error
	if p.ID, err = stringField(decoded, "id"); err != nil {
		return nil, err
	}
	if p.PlanID, err = stringField(decoded, "plan_id"); err != nil {
		return nil, err
	}
	if p.Title, err = stringField(decoded, "title"); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = timeField(decoded, "created_at"); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = timeField(decoded, "updated_at"); err != nil {
		return nil, err
	}
	for _, name := range sectionNames {
		section, err := sectionValue(decoded[name])
		if err != nil {
			return nil, fmt.Errorf("decode plan %s: section %s: %w", p.PlanID, name, err)
		}
		_ = p.SetSection(name, section)
	}
	return p, nil
}

// EncodeValue walks maps and slices replacing every time.Time with its
// canonical string.
func EncodeValue(value any) any {
	switch v := value.(type) {
	case time.Time:
		return FormatTimestamp(v)
	case *time.Time:
		if v == nil {
			return nil
		}
		return FormatTimestamp(*v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = EncodeValue(item)
		}
		return out
	case Section:
		return EncodeValue(map[string]any(v))
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = EncodeValue(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = EncodeValue(item)
		}
		return out
	default:
		return value
	}
}

// DecodeValue walks maps and slices and parses string values held under a
// created_at or updated_at key back into timestamps, at any depth.
func DecodeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			if isTimestampKey(key) {
				if text, ok := item.(string); ok {
					if ts, err := ParseTimestamp(text); err == nil {
						out[key] = ts
						continue
					}
				}
			}
			out[key] = DecodeValue(item)
		}
		return out
	case Section:
		return DecodeValue(map[string]any(v))
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = DecodeValue(item)
		}
		return out
	default:
		return value
	}
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts RFC 3339 text with either a Z suffix or a numeric
// offset and returns the instant in UTC.
func ParseTimestamp(text string) (time.Time, error) {
	trimmed := strings.TrimSpace(text)
	ts, err := time.Parse(time.RFC3339Nano, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", text, err)
	}
	return ts.UTC(), nil
}

func isTimestampKey(key string) bool {
	for _, candidate := range timestampKeys {
		if key == candidate {
			return true
		}
	}
	return false
}

func stringField(doc map[string]any, key string) (string, error) {
	raw, ok := doc[key]
	if !ok || raw == nil {
		return "", nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("decode plan: %s has type %T", key, raw)
	}
	return value, nil
}

func timeField(doc map[string]any, key string) (time.Time, error) {
	switch v := doc[key].(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		return ParseTimestamp(v)
	case nil:
		return time.Time{}, fmt.Errorf("decode plan: %s missing", key)
	default:
		return time.Time{}, fmt.Errorf("decode plan: %s has type %T", key, v)
	}
}

func sectionValue(raw any) (Section, error) {
	switch v := raw.(type) {
	case nil:
		return Section{}, nil
	case Section:
		return v, nil
	case map[string]any:
		return Section(v), nil
	default:
		return nil, fmt.Errorf("unexpected type %T", raw)
	}
}
