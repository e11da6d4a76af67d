package domain

import (
	"encoding/json"
	"time"
)

// Fields is the field map of a task document in the remote store.
type Fields map[string]any

// Document field names.
const (
	FieldID          = "id"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldDueDate     = "dueDate"
	FieldIsDone      = "isDone"
	FieldPriority    = "priority"
)

// EncodeTask converts a task to its document fields. A missing due date is
// encoded as an explicit nil so that ordering by dueDate sees every document.
func EncodeTask(t Task) Fields {
	var due any
	if t.DueDate != nil {
		due = *t.DueDate
	}
	return Fields{
		FieldID:          t.ID,
		FieldTitle:       t.Title,
		FieldDescription: t.Description,
		FieldDueDate:     due,
		FieldIsDone:      t.IsDone,
		FieldPriority:    t.Priority.Code(),
	}
}

// DecodeTask builds a task from document fields. It never fails: a field
// that is missing or has an unexpected type falls back to its default
// (empty string, false, no due date, PriorityMedium). The names of fields
// that were present but unusable are returned so callers can log them.
//
// The id comes from the "id" field, then the document key, then a fresh UUID.
func DecodeTask(docID string, f Fields) (Task, []string) {
	var bad []string
	str := func(name string) string {
		v, ok := f[name]
		if !ok || v == nil {
			return ""
		}
		s, ok := v.(string)
		if !ok {
			bad = append(bad, name)
		}
		return s
	}

	t := Task{
		ID:          str(FieldID),
		Title:       str(FieldTitle),
		Description: str(FieldDescription),
		Priority:    PriorityMedium,
	}
	if t.ID == "" {
		t.ID = docID
	}
	if t.ID == "" {
		t.ID = NewID()
	}

	if v, ok := f[FieldIsDone]; ok && v != nil {
		if b, ok := v.(bool); ok {
			t.IsDone = b
		} else {
			bad = append(bad, FieldIsDone)
		}
	}

	if v, ok := f[FieldPriority]; ok && v != nil {
		code, _ := v.(string)
		if p, err := ParsePriority(code); err == nil && code != "" {
			t.Priority = p
		} else {
			bad = append(bad, FieldPriority)
		}
	}

	if v, ok := f[FieldDueDate]; ok && v != nil {
		if due, ok := decodeTime(v); ok {
			t.DueDate = &due
		} else {
			bad = append(bad, FieldDueDate)
		}
	}
	return t, bad
}

// decodeTime accepts the timestamp shapes produced by the storage adapters.
func decodeTime(v any) (time.Time, bool) {
	switch ts := v.(type) {
	case time.Time:
		return ts, true
	case *time.Time:
		if ts == nil {
			return time.Time{}, false
		}
		return *ts, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	case float64:
		return time.UnixMilli(int64(ts)).UTC(), true
	case int64:
		return time.UnixMilli(ts).UTC(), true
	case int:
		return time.UnixMilli(int64(ts)).UTC(), true
	case json.Number:
		ms, err := ts.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}
