// Package aggfuncs implements the execution-time accumulators behind planner.AggregateExpr.
//
// An accumulator is a per-group, per-partition state machine: rows are fed to Update, the states of
// accumulators built for other partitions are folded in with Merge, and Eval produces the value. An
// accumulator is owned by exactly one goroutine at a time; parallelism comes from building independent
// accumulators, never from sharing one.
package aggfuncs

import (
	"encoding"

	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/planner"
	"mit.edu/dsg/aggengine/storage"
)

// Accumulator is the mutable state of one aggregate for one group.
type Accumulator interface {
	// Kind returns the aggregate kind this accumulator executes.
	Kind() planner.AggKind
	// ResultType returns the type of the value produced by Eval.
	ResultType() common.Type
	// Source returns the aggregate expression the accumulator was built from, or nil for a placeholder
	// created with NewEmpty or Unmarshal.
	Source() planner.AggregateExpr

	// Update folds one input row into the state.
	Update(row storage.Tuple) error
	// Merge folds the state of other into the receiver. other must have the same kind and result type,
	// otherwise an AccumulatorTypeMismatch error is returned and the receiver is unchanged.
	Merge(other Accumulator) error
	// Eval returns the aggregate value of the rows and states seen so far.
	Eval() (common.Value, error)

	// MarshalBinary encodes kind, result type and state, so a partial result can cross partitions.
	encoding.BinaryMarshaler
	// UnmarshalBinary replaces the state with an encoded one of the same kind and result type.
	encoding.BinaryUnmarshaler
}

// Builder creates accumulators. The zero Builder builds unbounded distinct sets.
type Builder struct {
	// DistinctLimit bounds the number of entries a distinct set may hold; 0 means unbounded. A set that
	// would grow past the limit fails with DistinctLimitExceededError instead of growing.
	DistinctLimit int
}

// Build returns a zero-state accumulator for agg using the default Builder.
func Build(agg planner.AggregateExpr) Accumulator {
	return Builder{}.Build(agg)
}

// Build returns a zero-state accumulator for agg. It never shares state with any other accumulator.
func (b Builder) Build(agg planner.AggregateExpr) Accumulator {
	base := baseAccumulator{source: agg, kind: agg.Kind(), resultType: agg.OutputType()}
	switch agg.Kind() {
	case planner.AggCount:
		return &countAccumulator{baseAccumulator: base}
	case planner.AggCountDistinct:
		return &countDistinctAccumulator{baseAccumulator: base, set: newDistinctSet(argTypes(agg), b.DistinctLimit)}
	case planner.AggSum:
		zero, err := common.ZeroValue(base.resultType)
		common.Assert(err == nil, "SUM built over %s", base.resultType)
		return &sumAccumulator{baseAccumulator: base, sum: zero}
	case planner.AggSumDistinct:
		return &sumDistinctAccumulator{baseAccumulator: base, set: newDistinctSet(argTypes(agg), b.DistinctLimit)}
	case planner.AggAverage:
		zero, err := common.ZeroValue(agg.Args()[0].OutputType())
		common.Assert(err == nil, "AVG built over %s", agg.Args()[0].OutputType())
		return &avgAccumulator{baseAccumulator: base, sum: zero}
	case planner.AggFirst:
		return &firstAccumulator{baseAccumulator: base}
	}
	panic("unknown aggregate kind " + agg.Kind().String())
}

// NewEmpty returns a placeholder accumulator that is not tied to any aggregate expression: the kind tag
// plus its default state. Placeholders can be merged, evaluated and decoded into, but not updated.
func NewEmpty(kind planner.AggKind, resultType common.Type) (Accumulator, error) {
	return Builder{}.NewEmpty(kind, resultType)
}

// NewEmpty is the Builder form of NewEmpty.
func (b Builder) NewEmpty(kind planner.AggKind, resultType common.Type) (Accumulator, error) {
	base := baseAccumulator{kind: kind, resultType: resultType}
	switch kind {
	case planner.AggCount:
		if resultType != common.IntType {
			break
		}
		return &countAccumulator{baseAccumulator: base}, nil
	case planner.AggCountDistinct:
		if resultType != common.IntType {
			break
		}
		return &countDistinctAccumulator{baseAccumulator: base, set: newDistinctSet(nil, b.DistinctLimit)}, nil
	case planner.AggSum:
		zero, err := common.ZeroValue(resultType)
		if err != nil {
			return nil, err
		}
		return &sumAccumulator{baseAccumulator: base, sum: zero}, nil
	case planner.AggSumDistinct:
		if !resultType.IsNumeric() {
			break
		}
		return &sumDistinctAccumulator{baseAccumulator: base, set: newDistinctSet([]common.Type{resultType}, b.DistinctLimit)}, nil
	case planner.AggAverage:
		if resultType != common.FloatType {
			break
		}
		// The running sum's type is the input's, which a placeholder does not know; it is adopted from
		// the first state merged or decoded.
		return &avgAccumulator{baseAccumulator: base}, nil
	case planner.AggFirst:
		if resultType == common.DefaultType {
			break
		}
		return &firstAccumulator{baseAccumulator: base}, nil
	default:
		return nil, common.NewError(common.TypeMismatchError, "unknown aggregate kind %d", kind)
	}
	return nil, common.NewError(common.TypeMismatchError, "%s cannot produce %s", kind, resultType)
}

type baseAccumulator struct {
	source     planner.AggregateExpr
	kind       planner.AggKind
	resultType common.Type
}

func (b *baseAccumulator) Kind() planner.AggKind {
	return b.kind
}

func (b *baseAccumulator) ResultType() common.Type {
	return b.resultType
}

func (b *baseAccumulator) Source() planner.AggregateExpr {
	return b.source
}

// arg evaluates the single argument of the source aggregate on row.
func (b *baseAccumulator) arg(row storage.Tuple) (common.Value, error) {
	if b.source == nil {
		return common.Value{}, b.placeholderUpdate()
	}
	return b.source.Args()[0].Eval(row), nil
}

func (b *baseAccumulator) placeholderUpdate() error {
	return common.NewError(common.PlanningInvariantViolation,
		"%s placeholder accumulator has no expression to evaluate rows with", b.kind)
}

func (b *baseAccumulator) checkMerge(other Accumulator) error {
	if other == nil {
		return common.NewError(common.AccumulatorTypeMismatch, "cannot merge nil into %s", b.kind)
	}
	if other.Kind() != b.kind || other.ResultType() != b.resultType {
		return common.NewError(common.AccumulatorTypeMismatch, "cannot merge %s(%s) into %s(%s)",
			other.Kind(), other.ResultType(), b.kind, b.resultType)
	}
	return nil
}

func mismatch(self, other Accumulator) error {
	return common.NewError(common.AccumulatorTypeMismatch, "cannot merge %T into %T", other, self)
}

func argTypes(agg planner.AggregateExpr) []common.Type {
	types := make([]common.Type, len(agg.Args()))
	for i, a := range agg.Args() {
		types[i] = a.OutputType()
	}
	return types
}
