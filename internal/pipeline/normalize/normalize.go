// Package normalize defines the contract for turning raw API records into
// canonical rows. Normalizers are pure functions of their input: the same raw
// record always produces the same rows, with no clock, counter, or I/O
// involved.
package normalize

import (
	"encoding/json"
	"fmt"
)

// Normalizer transforms one raw record into zero or more canonical rows of
// type T. A malformed record is reported through the error return; the caller
// records it as a warning and continues with the rest of the page.
type Normalizer[T any] interface {
	Normalize(raw json.RawMessage) ([]T, error)
}

// Func adapts a plain function to the Normalizer interface.
type Func[T any] func(raw json.RawMessage) ([]T, error)

func (f Func[T]) Normalize(raw json.RawMessage) ([]T, error) {
	return f(raw)
}

// Warning records one raw record that was skipped during normalization.
type Warning struct {
	// Source names the data source the record came from.
	Source string
	// Reason describes why the record could not be normalized.
	Reason string
	// Record holds the offending raw payload, for debugging.
	Record json.RawMessage
}

func (w Warning) String() string {
	return fmt.Sprintf("source %s: skipped malformed record: %s", w.Source, w.Reason)
}

// Apply runs the normalizer over a page of raw records. Malformed records are
// skipped and collected as warnings; well-formed records around them are
// unaffected. The output preserves input order.
func Apply[T any](n Normalizer[T], source string, records []json.RawMessage) ([]T, []Warning) {
	var rows []T
	var warnings []Warning
	for _, raw := range records {
		out, err := n.Normalize(raw)
		if err != nil {
			warnings = append(warnings, Warning{Source: source, Reason: err.Error(), Record: raw})
			continue
		}
		rows = append(rows, out...)
	}
	return rows, warnings
}
