package planner

import (
	"fmt"
	"strings"

	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/storage"
)

// AggKind tags the concrete kind of an aggregate expression.
type AggKind int

const (
	AggCount AggKind = iota
	AggCountDistinct
	AggSum
	AggSumDistinct
	AggAverage
	AggFirst
)

func (k AggKind) String() string {
	switch k {
	case AggCount:
		return "COUNT"
	case AggCountDistinct:
		return "COUNT DISTINCT"
	case AggSum:
		return "SUM"
	case AggSumDistinct:
		return "SUM DISTINCT"
	case AggAverage:
		return "AVG"
	case AggFirst:
		return "FIRST"
	}
	return "???"
}

// AggregateExpr is the immutable, declarative description of one aggregate computation. It is created once
// per query by the planner and shared read-only by every accumulator built from it.
//
// An AggregateExpr is never evaluated itself: the executor replaces it with an accumulator. Calling Eval is a
// planning bug and panics with a PlanningInvariantViolation.
type AggregateExpr interface {
	ParentExpr
	Kind() AggKind
	Args() []Expr
	// Nullable reports whether the aggregate can produce NULL.
	Nullable() bool

	aggregate()
}

// Decomposable is implemented only by aggregate kinds whose merge is associative and commutative over a
// bounded summary: Count, Sum, Average and First. Distinct aggregates deliberately do not implement it; a
// distinct set cannot be summarized per partition without risking double counting unless the whole set is
// centralized.
type Decomposable interface {
	AggregateExpr
	// Split returns the two-stage rewrite using the kind's default partial names.
	Split() SplitEvaluation
	// SplitNamed is Split with every partial name prefixed, so several aggregates of one plan can be split
	// side by side.
	SplitNamed(prefix string) SplitEvaluation
}

var (
	_ Decomposable  = (*Count)(nil)
	_ Decomposable  = (*Sum)(nil)
	_ Decomposable  = (*Average)(nil)
	_ Decomposable  = (*First)(nil)
	_ AggregateExpr = (*CountDistinct)(nil)
	_ AggregateExpr = (*SumDistinct)(nil)
)

// NamedExpr is an expression whose output is published under a name.
type NamedExpr struct {
	Name string
	Expr Expr
}

func (n NamedExpr) String() string {
	return fmt.Sprintf("%s AS %s", n.Expr.String(), n.Name)
}

// SplitEvaluation describes the two-stage rewrite of a decomposable aggregate: Partials are computed per
// partition, Final combines them and references their outputs by name (AttributeRef).
type SplitEvaluation struct {
	Final    Expr
	Partials []NamedExpr
}

// PartialNames returns the partial output names in order.
func (s SplitEvaluation) PartialNames() []string {
	names := make([]string, len(s.Partials))
	for i, p := range s.Partials {
		names[i] = p.Name
	}
	return names
}

// PartialSchema returns the output types of the partial expressions in order.
func (s SplitEvaluation) PartialSchema() []common.Type {
	types := make([]common.Type, len(s.Partials))
	for i, p := range s.Partials {
		types[i] = p.Expr.OutputType()
	}
	return types
}

// Validate checks that partial names are unique and that every free reference in Final resolves to exactly
// one partial output of the declared type.
func (s SplitEvaluation) Validate() error {
	seen := make(map[string]bool, len(s.Partials))
	for _, p := range s.Partials {
		if seen[p.Name] {
			return common.NewError(common.UnresolvedAttributeError, "partial name %q is not unique", p.Name)
		}
		seen[p.Name] = true
	}
	_, err := BindAttributes(s.Final, s.PartialNames(), s.PartialSchema())
	return err
}

func (s SplitEvaluation) String() string {
	parts := make([]string, len(s.Partials))
	for i, p := range s.Partials {
		parts[i] = p.String()
	}
	return fmt.Sprintf("final=%s partials=[%s]", s.Final.String(), strings.Join(parts, ", "))
}

type aggregateBase struct {
	kind AggKind
	args []Expr
}

func (a *aggregateBase) Kind() AggKind {
	return a.kind
}

func (a *aggregateBase) Args() []Expr {
	return a.args
}

func (a *aggregateBase) Children() []Expr {
	return a.args
}

func (a *aggregateBase) Eval(t storage.Tuple) common.Value {
	common.Invariant("aggregate %s evaluated directly; the planner must replace it with an accumulator", a.String())
	return common.Value{}
}

func (a *aggregateBase) String() string {
	args := make([]string, len(a.args))
	for i, e := range a.args {
		args[i] = e.String()
	}
	switch a.kind {
	case AggCountDistinct:
		return fmt.Sprintf("COUNT(DISTINCT %s)", strings.Join(args, ", "))
	case AggSumDistinct:
		return fmt.Sprintf("SUM(DISTINCT %s)", strings.Join(args, ", "))
	}
	return fmt.Sprintf("%s(%s)", a.kind.String(), strings.Join(args, ", "))
}

func (a *aggregateBase) aggregate() {}

// Count counts the rows on which its child is non-NULL.
type Count struct {
	aggregateBase
}

func NewCount(child Expr) *Count {
	return &Count{aggregateBase{kind: AggCount, args: []Expr{child}}}
}

func (a *Count) OutputType() common.Type {
	return common.IntType
}

func (a *Count) Nullable() bool {
	return false
}

func (a *Count) WithChildren(children ...Expr) Expr {
	common.Assert(len(children) == 1, "COUNT takes one argument")
	return NewCount(children[0])
}

func (a *Count) Split() SplitEvaluation {
	return a.SplitNamed("")
}

// SplitNamed counts per partition and sums the partial counts.
func (a *Count) SplitNamed(prefix string) SplitEvaluation {
	name := prefix + "partial_count"
	return SplitEvaluation{
		Final:    NewSum(NewAttributeRef(name, common.IntType)),
		Partials: []NamedExpr{{Name: name, Expr: NewCount(a.args[0])}},
	}
}

// CountDistinct counts distinct tuples of its children, ignoring tuples with any NULL.
type CountDistinct struct {
	aggregateBase
}

func NewCountDistinct(children ...Expr) *CountDistinct {
	common.Assert(len(children) > 0, "COUNT DISTINCT needs at least one argument")
	return &CountDistinct{aggregateBase{kind: AggCountDistinct, args: children}}
}

func (a *CountDistinct) OutputType() common.Type {
	return common.IntType
}

func (a *CountDistinct) Nullable() bool {
	return false
}

func (a *CountDistinct) WithChildren(children ...Expr) Expr {
	return NewCountDistinct(children...)
}

// Sum adds the non-NULL values of its numeric child. Over no values it yields the zero of the child type.
type Sum struct {
	aggregateBase
}

func NewSum(child Expr) *Sum {
	common.Assert(child.OutputType().IsNumeric(), "SUM over non-numeric type %s", child.OutputType())
	return &Sum{aggregateBase{kind: AggSum, args: []Expr{child}}}
}

func (a *Sum) OutputType() common.Type {
	return a.args[0].OutputType()
}

func (a *Sum) Nullable() bool {
	return false
}

func (a *Sum) WithChildren(children ...Expr) Expr {
	common.Assert(len(children) == 1, "SUM takes one argument")
	return NewSum(children[0])
}

func (a *Sum) Split() SplitEvaluation {
	return a.SplitNamed("")
}

// SplitNamed sums per partition and sums the partial sums.
func (a *Sum) SplitNamed(prefix string) SplitEvaluation {
	name := prefix + "partial_sum"
	return SplitEvaluation{
		Final:    NewSum(NewAttributeRef(name, a.OutputType())),
		Partials: []NamedExpr{{Name: name, Expr: NewSum(a.args[0])}},
	}
}

// SumDistinct adds the distinct non-NULL values of its numeric child.
type SumDistinct struct {
	aggregateBase
}

func NewSumDistinct(child Expr) *SumDistinct {
	common.Assert(child.OutputType().IsNumeric(), "SUM DISTINCT over non-numeric type %s", child.OutputType())
	return &SumDistinct{aggregateBase{kind: AggSumDistinct, args: []Expr{child}}}
}

func (a *SumDistinct) OutputType() common.Type {
	return a.args[0].OutputType()
}

func (a *SumDistinct) Nullable() bool {
	return false
}

func (a *SumDistinct) WithChildren(children ...Expr) Expr {
	common.Assert(len(children) == 1, "SUM DISTINCT takes one argument")
	return NewSumDistinct(children[0])
}

// Average is the mean of the non-NULL values of its numeric child, as a double. It is NULL when there are
// no such values.
type Average struct {
	aggregateBase
}

func NewAverage(child Expr) *Average {
	common.Assert(child.OutputType().IsNumeric(), "AVG over non-numeric type %s", child.OutputType())
	return &Average{aggregateBase{kind: AggAverage, args: []Expr{child}}}
}

func (a *Average) OutputType() common.Type {
	return common.FloatType
}

func (a *Average) Nullable() bool {
	return true
}

func (a *Average) WithChildren(children ...Expr) Expr {
	common.Assert(len(children) == 1, "AVG takes one argument")
	return NewAverage(children[0])
}

func (a *Average) Split() SplitEvaluation {
	return a.SplitNamed("")
}

// SplitNamed computes a partial sum and a partial count and divides their totals.
func (a *Average) SplitNamed(prefix string) SplitEvaluation {
	sumName, countName := prefix+"partial_sum", prefix+"partial_count"
	totalSum := NewCastExpression(NewSum(NewAttributeRef(sumName, a.args[0].OutputType())), common.FloatType)
	totalCount := NewCastExpression(NewSum(NewAttributeRef(countName, common.IntType)), common.FloatType)
	return SplitEvaluation{
		Final: NewArithmeticExpression(totalSum, totalCount, Div),
		Partials: []NamedExpr{
			{Name: sumName, Expr: NewSum(a.args[0])},
			{Name: countName, Expr: NewCount(a.args[0])},
		},
	}
}

// First keeps the first non-NULL value of its child. Across partitions "first" follows merge order, so it
// is only the first row's value when partial results are merged in row order.
type First struct {
	aggregateBase
}

func NewFirst(child Expr) *First {
	return &First{aggregateBase{kind: AggFirst, args: []Expr{child}}}
}

func (a *First) OutputType() common.Type {
	return a.args[0].OutputType()
}

func (a *First) Nullable() bool {
	return true
}

func (a *First) WithChildren(children ...Expr) Expr {
	common.Assert(len(children) == 1, "FIRST takes one argument")
	return NewFirst(children[0])
}

func (a *First) Split() SplitEvaluation {
	return a.SplitNamed("")
}

// SplitNamed takes the first value per partition and the first of those.
func (a *First) SplitNamed(prefix string) SplitEvaluation {
	name := prefix + "partial_first"
	return SplitEvaluation{
		Final:    NewFirst(NewAttributeRef(name, a.OutputType())),
		Partials: []NamedExpr{{Name: name, Expr: NewFirst(a.args[0])}},
	}
}

// NewAggregate builds an aggregate of the given kind, returning a TypeMismatchError instead of panicking
// when the arguments do not fit the kind.
func NewAggregate(kind AggKind, args ...Expr) (AggregateExpr, error) {
	if kind == AggCountDistinct {
		if len(args) == 0 {
			return nil, common.NewError(common.TypeMismatchError, "%s needs at least one argument", kind)
		}
		return NewCountDistinct(args...), nil
	}
	if len(args) != 1 {
		return nil, common.NewError(common.TypeMismatchError, "%s takes one argument, got %d", kind, len(args))
	}
	child := args[0]
	switch kind {
	case AggSum, AggSumDistinct, AggAverage:
		if !child.OutputType().IsNumeric() {
			return nil, common.NewError(common.TypeMismatchError, "%s over non-numeric %s", kind, child.OutputType())
		}
	}
	switch kind {
	case AggCount:
		return NewCount(child), nil
	case AggSum:
		return NewSum(child), nil
	case AggSumDistinct:
		return NewSumDistinct(child), nil
	case AggAverage:
		return NewAverage(child), nil
	case AggFirst:
		return NewFirst(child), nil
	}
	return nil, common.NewError(common.TypeMismatchError, "unknown aggregate kind %d", kind)
}
