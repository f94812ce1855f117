package workflow

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"

	"github.com/odyssey-erp/fincore/internal/shared"
)

// Request body keys with workflow meaning.
const (
	FieldWorkflowStatus = "workflowStatus"
	FieldRevisionReason = "revisionReason"
	FieldNote           = "note"
)

// auditMetadata may accompany a transition without turning it into an edit.
var auditMetadata = map[string]bool{
	FieldNote:           true,
	FieldRevisionReason: true,
	"comment":           true,
	"updatedBy":         true,
	"updatedAt":         true,
}

// RequestKind separates transitions from field edits.
type RequestKind int

const (
	KindEdit RequestKind = iota
	KindTransition
)

// Classify inspects an update body. A body with workflowStatus and only audit
// metadata is a transition, a body without it is an edit, anything else is rejected.
func Classify(body map[string]any) (RequestKind, error) {
	if _, ok := body[FieldWorkflowStatus]; !ok {
		return KindEdit, nil
	}
	var extra []string
	for key := range body {
		if key == FieldWorkflowStatus || auditMetadata[key] {
			continue
		}
		extra = append(extra, key)
	}
	if len(extra) > 0 {
		slices.Sort(extra)
		return KindEdit, shared.Validationf("status transitions cannot carry field edits: %v", extra)
	}
	return KindTransition, nil
}

// EditFields returns the body keys that are document fields, sorted.
func EditFields(body map[string]any) []string {
	fields := make([]string, 0, len(body))
	for key := range body {
		if key == FieldWorkflowStatus || auditMetadata[key] {
			continue
		}
		fields = append(fields, key)
	}
	slices.Sort(fields)
	return fields
}

// Diff compares the named fields of two JSON-shaped snapshots and returns only
// those whose normalised values differ. Fields are reported in the given order.
func Diff(before, after map[string]any, fields []string) ([]Change, error) {
	b, err := normalize(before)
	if err != nil {
		return nil, err
	}
	a, err := normalize(after)
	if err != nil {
		return nil, err
	}
	var changes []Change
	for _, field := range fields {
		from, to := b[field], a[field]
		if reflect.DeepEqual(from, to) {
			continue
		}
		changes = append(changes, Change{Field: field, From: from, To: to})
	}
	return changes, nil
}

// normalize round-trips through JSON so typed values compare by their wire form.
func normalize(in map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("workflow: encode snapshot: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("workflow: decode snapshot: %w", err)
	}
	return out, nil
}
