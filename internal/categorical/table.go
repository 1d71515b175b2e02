// Package categorical maps category labels to the integer codes the trained models expect.
package categorical

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownCategory = errors.New("unknown category")

// Table is a dense, immutable label → code mapping. Codes follow the ascending
// byte order of the distinct labels, which is the order a label encoder fitted on
// the same reference data assigns.
type Table struct {
	name   string
	values []string
	codes  map[string]int
}

// Build derives a table from the raw label column. Empty labels are ignored.
func Build(name string, labels []string) *Table {
	seen := make(map[string]struct{}, len(labels))
	values := make([]string, 0)
	for _, l := range labels {
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		values = append(values, l)
	}
	sort.Strings(values)

	codes := make(map[string]int, len(values))
	for i, v := range values {
		codes[v] = i
	}
	return &Table{name: name, values: values, codes: codes}
}

func (t *Table) Name() string { return t.name }

func (t *Table) Len() int { return len(t.values) }

// Values returns the labels in code order. The slice is a copy.
func (t *Table) Values() []string {
	out := make([]string, len(t.values))
	copy(out, t.values)
	return out
}

// Encode returns the code for value, or an error wrapping ErrUnknownCategory.
func (t *Table) Encode(value string) (int, error) {
	code, ok := t.codes[value]
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a known %s", ErrUnknownCategory, value, t.name)
	}
	return code, nil
}

// Decode is the inverse of Encode.
func (t *Table) Decode(code int) (string, bool) {
	if code < 0 || code >= len(t.values) {
		return "", false
	}
	return t.values[code], true
}
