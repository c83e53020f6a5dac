package common

import "fmt"

// Assert checks a condition and panics if it is false.
//
// Use it for invariants of the engine itself (a switch default that cannot be
// reached, an accessor called on the wrong type tag). Data-dependent failures such
// as a merge of mismatched accumulators are returned as GoDBError values instead.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// Invariant panics with a PlanningInvariantViolation GoDBError. Unlike Assert the
// panic value is a typed error, so whoever recovers it can tell which planner rule
// was broken.
func Invariant(format string, args ...any) {
	panic(NewError(PlanningInvariantViolation, format, args...))
}
