package documents

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/odyssey-erp/fincore/internal/shared"
)

// Field names accepted in edit requests.
const (
	FieldLines           = "lines"
	FieldNotes           = "notes"
	FieldReference       = "reference"
	FieldDueDate         = "dueDate"
	FieldTransactionDate = "transactionDate"
	FieldAttributes      = "attributes"
)

// derivedFields are recomputed whenever lines change.
var derivedFields = []string{"subtotal", "taxAmount", "totalAmount", "priceUSD"}

// Snapshot renders the diffable fields of a document.
func (d Document) Snapshot() map[string]any {
	return map[string]any{
		FieldLines:           d.Lines,
		FieldNotes:           d.Notes,
		FieldReference:       d.Reference,
		FieldDueDate:         utcDate(d.DueDate),
		FieldTransactionDate: d.TransactionDate.UTC(),
		FieldAttributes:      d.Attributes,
		"subtotal":           d.Subtotal,
		"taxAmount":          d.TaxAmount,
		"totalAmount":        d.TotalAmount,
		"priceUSD":           d.TotalUSD,
	}
}

// ApplyEdit returns a copy of d with the requested fields set and the totals
// recomputed. It also returns the fields to diff, including derived totals when
// lines changed. Unknown or immutable fields fail validation.
func ApplyEdit(d Document, fields []string, body map[string]any) (Document, []string, error) {
	next := d
	diffFields := make([]string, 0, len(fields)+len(derivedFields))
	linesEdited := false
	for _, field := range fields {
		raw := body[field]
		var err error
		switch field {
		case FieldLines:
			var lines []Line
			if err = decodeInto(raw, &lines); err == nil {
				if d.Kind.Financial() && len(lines) == 0 {
					return Document{}, nil, shared.Validationf("line items required")
				}
				if err = ValidateLines(lines); err != nil {
					return Document{}, nil, err
				}
				next.Lines = lines
				linesEdited = true
			}
		case FieldNotes:
			err = decodeInto(raw, &next.Notes)
		case FieldReference:
			err = decodeInto(raw, &next.Reference)
		case FieldDueDate:
			var due *time.Time
			if due, err = decodeDate(raw); err == nil {
				next.DueDate = due
			}
		case FieldTransactionDate:
			var at *time.Time
			if at, err = decodeDate(raw); err == nil {
				if at == nil || at.IsZero() {
					return Document{}, nil, shared.Validationf("transactionDate cannot be empty")
				}
				next.TransactionDate = *at
			}
		case FieldAttributes:
			var attrs map[string]any
			if err = decodeInto(raw, &attrs); err == nil {
				next.Attributes = attrs
			}
		default:
			return Document{}, nil, shared.Validationf("field %q cannot be edited", field)
		}
		if err != nil {
			return Document{}, nil, shared.Validationf("field %q: %v", field, err)
		}
		diffFields = append(diffFields, field)
	}
	if len(diffFields) == 0 {
		return Document{}, nil, shared.Validationf("no editable fields supplied")
	}
	if linesEdited {
		next.Recompute()
		diffFields = append(diffFields, derivedFields...)
	}
	return next, diffFields, nil
}

func decodeInto(raw any, target any) error {
	buf, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, target)
}

// decodeDate reads an edited date given either as RFC 3339 or YYYY-MM-DD.
// Null or an empty string clears it.
func decodeDate(raw any) (*time.Time, error) {
	var text *string
	if err := decodeInto(raw, &text); err != nil {
		return nil, err
	}
	if text == nil || strings.TrimSpace(*text) == "" {
		return nil, nil
	}
	t, err := shared.ParseDate(*text)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func utcDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
