package storage

import (
	"strings"

	"mit.edu/dsg/aggengine/common"
)

// Tuple represents the "Logical View" of a row. It is the primary data structure exchanged between
// query operators and the only thing accumulators ever see of the input, and even then only through
// expression evaluation: an accumulator never inspects a row's shape directly.
//
// A Tuple is an ordered, indexable sequence of typed values. Operators that produce new values (aggregates,
// projections) build new Tuples rather than mutating their input.
type Tuple struct {
	values []common.Value
}

// FromValues creates a Tuple from a list of values.
// This is used when a query operator creates a brand new row (e.g., "SELECT 1, 'hello'").
func FromValues(values ...common.Value) Tuple {
	return Tuple{values: values}
}

// Extend returns a NEW Tuple consisting of the current tuple's fields
// followed by the provided newValues. The receiver is left untouched.
func (t Tuple) Extend(newValues []common.Value) Tuple {
	out := make([]common.Value, 0, len(t.values)+len(newValues))
	out = append(out, t.values...)
	out = append(out, newValues...)
	return Tuple{values: out}
}

// IsNil checks if the tuple is uninitialized.
func (t Tuple) IsNil() bool {
	return t.values == nil
}

// NumColumns returns the number of fields in the tuple.
func (t Tuple) NumColumns() int {
	return len(t.values)
}

// GetValue retrieves the value at index i.
func (t Tuple) GetValue(i int) common.Value {
	common.Assert(i >= 0 && i < len(t.values), "column %d out of range for tuple of width %d", i, len(t.values))
	return t.values[i]
}

// Values returns a copy of the tuple's fields.
func (t Tuple) Values() []common.Value {
	out := make([]common.Value, len(t.values))
	copy(out, t.values)
	return out
}

func (t Tuple) String() string {
	parts := make([]string, len(t.values))
	for i, v := range t.values {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
