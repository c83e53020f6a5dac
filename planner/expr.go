package planner

import (
	"fmt"
	"math"

	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/storage"
)

// Expr represents a node in an expression tree.
// Expressions are stateless and immutable plan nodes.
type Expr interface {
	// Eval evaluates the expression against the provided tuple.
	Eval(t storage.Tuple) common.Value

	// OutputType returns the type of value this expression produces.
	OutputType() common.Type

	// String returns a string representation of the expression.
	String() string
}

// ParentExpr is implemented by expressions with sub-expressions. WithChildren returns a copy of the node
// over the given children; the receiver is never modified.
type ParentExpr interface {
	Expr
	Children() []Expr
	WithChildren(children ...Expr) Expr
}

// BoundValueExpr performs computation on an input tuple.
type BoundValueExpr struct {
	fieldOffset int // offset of the column in the projected tuple
	outputType  common.Type
	name        string
}

func NewColumnValueExpression(fieldOffset int, tupleSchema []common.Type, name string) *BoundValueExpr {
	return &BoundValueExpr{
		fieldOffset: fieldOffset,
		outputType:  tupleSchema[fieldOffset],
		name:        name,
	}
}

func (e *BoundValueExpr) Eval(t storage.Tuple) common.Value {
	return t.GetValue(e.fieldOffset)
}

func (e *BoundValueExpr) OutputType() common.Type {
	return e.outputType
}

// Offset returns the column the expression reads.
func (e *BoundValueExpr) Offset() int {
	return e.fieldOffset
}

func (e *BoundValueExpr) String() string {
	return e.name
}

type ConstantValueExpr struct {
	val common.Value
}

func NewConstantValueExpression(val common.Value) *ConstantValueExpr {
	return &ConstantValueExpr{val: val}
}

func (e *ConstantValueExpr) Eval(t storage.Tuple) common.Value {
	return e.val
}

func (e *ConstantValueExpr) OutputType() common.Type {
	return e.val.Type()
}

func (e *ConstantValueExpr) String() string {
	if e.val.Type() == common.StringType && !e.val.IsNull() {
		return fmt.Sprintf("'%s'", e.val.StringValue())
	}
	return e.val.String()
}

// AttributeRef is a reference to a named attribute whose position is not known yet, such as the output of
// a partial aggregate referenced from a final expression. It must be resolved with BindAttributes before
// evaluation.
type AttributeRef struct {
	name       string
	outputType common.Type
}

func NewAttributeRef(name string, t common.Type) *AttributeRef {
	return &AttributeRef{name: name, outputType: t}
}

func (e *AttributeRef) Name() string {
	return e.name
}

func (e *AttributeRef) Eval(t storage.Tuple) common.Value {
	common.Invariant("attribute %q evaluated before it was bound", e.name)
	return common.Value{}
}

func (e *AttributeRef) OutputType() common.Type {
	return e.outputType
}

func (e *AttributeRef) String() string {
	return "#" + e.name
}

type ArithmeticType int

const (
	Add ArithmeticType = iota
	Sub
	Mult
	Div
	Mod
)

func (a ArithmeticType) String() string {
	switch a {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mult:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	}
	return "?"
}

// ArithmeticExpression combines two numeric operands of the same type. NULL operands and zero divisors
// produce NULL.
type ArithmeticExpression struct {
	left  Expr
	right Expr
	op    ArithmeticType
}

func NewArithmeticExpression(left Expr, right Expr, op ArithmeticType) *ArithmeticExpression {
	common.Assert(left.OutputType() == right.OutputType(), "arithmetic over %s and %s", left.OutputType(), right.OutputType())
	common.Assert(left.OutputType().IsNumeric(), "arithmetic over non-numeric type %s", left.OutputType())
	return &ArithmeticExpression{
		left:  left,
		right: right,
		op:    op,
	}
}

func (e *ArithmeticExpression) Eval(t storage.Tuple) common.Value {
	val1 := e.left.Eval(t)
	val2 := e.right.Eval(t)

	if val1.IsNull() || val2.IsNull() {
		return common.NewNullValue(e.OutputType())
	}

	var (
		res common.Value
		err error
	)
	switch e.op {
	case Add:
		res, err = val1.Add(val2)
	case Div:
		res, err = val1.Divide(val2)
	default:
		res = applyArithmetic(e.op, val1, val2)
	}
	// Operand types are checked at construction, so only integer overflow reaches here.
	common.Assert(err == nil, "%s: %v", e, err)
	return res
}

func applyArithmetic(op ArithmeticType, val1, val2 common.Value) common.Value {
	switch val1.Type() {
	case common.IntType:
		v1, v2 := val1.IntValue(), val2.IntValue()
		switch op {
		case Sub:
			return common.NewIntValue(v1 - v2)
		case Mult:
			return common.NewIntValue(v1 * v2)
		case Mod:
			if v2 == 0 {
				return common.NewNullInt()
			}
			return common.NewIntValue(v1 % v2)
		}
	case common.FloatType:
		v1, v2 := val1.FloatValue(), val2.FloatValue()
		switch op {
		case Sub:
			return common.NewFloatValue(v1 - v2)
		case Mult:
			return common.NewFloatValue(v1 * v2)
		case Mod:
			if v2 == 0 {
				return common.NewNullValue(common.FloatType)
			}
			return common.NewFloatValue(math.Mod(v1, v2))
		}
	case common.DecimalType:
		v1, v2 := val1.DecimalValue(), val2.DecimalValue()
		switch op {
		case Sub:
			return common.NewDecimalValue(v1.Sub(v2))
		case Mult:
			return common.NewDecimalValue(v1.Mul(v2))
		case Mod:
			if v2.IsZero() {
				return common.NewNullValue(common.DecimalType)
			}
			return common.NewDecimalValue(v1.Mod(v2))
		}
	}
	panic("unknown arithmetic operation")
}

func (e *ArithmeticExpression) OutputType() common.Type {
	return e.left.OutputType()
}

func (e *ArithmeticExpression) Children() []Expr {
	return []Expr{e.left, e.right}
}

func (e *ArithmeticExpression) WithChildren(children ...Expr) Expr {
	common.Assert(len(children) == 2, "arithmetic takes two children, got %d", len(children))
	return NewArithmeticExpression(children[0], children[1], e.op)
}

func (e *ArithmeticExpression) String() string {
	return fmt.Sprintf("(%s %s %s)", e.left.String(), e.op.String(), e.right.String())
}

// CastExpression converts its child to another type. A value that cannot be
// converted (e.g. a non-numeric string cast to int) becomes NULL.
type CastExpression struct {
	child Expr
	to    common.Type
}

func NewCastExpression(child Expr, to common.Type) *CastExpression {
	return &CastExpression{child: child, to: to}
}

func (e *CastExpression) Eval(t storage.Tuple) common.Value {
	v, err := e.child.Eval(t).Cast(e.to)
	if err != nil {
		return common.NewNullValue(e.to)
	}
	return v
}

func (e *CastExpression) OutputType() common.Type {
	return e.to
}

func (e *CastExpression) Children() []Expr {
	return []Expr{e.child}
}

func (e *CastExpression) WithChildren(children ...Expr) Expr {
	common.Assert(len(children) == 1, "cast takes one child, got %d", len(children))
	return NewCastExpression(children[0], e.to)
}

func (e *CastExpression) String() string {
	return fmt.Sprintf("CAST(%s AS %s)", e.child.String(), e.to.String())
}

type ComparisonType int

const (
	Equal ComparisonType = iota
	NotEqual
	GreaterThan
	LessThan
	GreaterThanOrEqual
	LessThanOrEqual
)

func (c ComparisonType) String() string {
	switch c {
	case Equal:
		return "="
	case NotEqual:
		return "!="
	case GreaterThan:
		return ">"
	case LessThan:
		return "<"
	case GreaterThanOrEqual:
		return ">="
	case LessThanOrEqual:
		return "<="
	}
	return "???"
}

// ComparisonExpression compares two values of the same type. It evaluates to 1 or 0, or to NULL if either
// side is NULL.
type ComparisonExpression struct {
	left     Expr
	right    Expr
	compType ComparisonType
}

func NewComparisonExpression(left Expr, right Expr, compType ComparisonType) *ComparisonExpression {
	common.Assert(left.OutputType() == right.OutputType(), "comparison of %s and %s", left.OutputType(), right.OutputType())
	return &ComparisonExpression{
		left:     left,
		right:    right,
		compType: compType,
	}
}

func (e *ComparisonExpression) Eval(t storage.Tuple) common.Value {
	val1 := e.left.Eval(t)
	val2 := e.right.Eval(t)

	if val1.IsNull() || val2.IsNull() {
		return common.NewNullInt()
	}

	cmp := val1.Compare(val2)
	var result bool
	switch e.compType {
	case Equal:
		result = cmp == 0
	case NotEqual:
		result = cmp != 0
	case GreaterThan:
		result = cmp > 0
	case LessThan:
		result = cmp < 0
	case GreaterThanOrEqual:
		result = cmp >= 0
	case LessThanOrEqual:
		result = cmp <= 0
	}
	if result {
		return common.NewIntValue(1)
	}
	return common.NewIntValue(0)
}

func (e *ComparisonExpression) OutputType() common.Type {
	return common.IntType
}

func (e *ComparisonExpression) Children() []Expr {
	return []Expr{e.left, e.right}
}

func (e *ComparisonExpression) WithChildren(children ...Expr) Expr {
	common.Assert(len(children) == 2, "comparison takes 2 children, got %d", len(children))
	return NewComparisonExpression(children[0], children[1], e.compType)
}

func (e *ComparisonExpression) String() string {
	return fmt.Sprintf("(%s %s %s)", e.left.String(), e.compType.String(), e.right.String())
}

// ExprIsTrue reports whether a predicate result is a non-NULL, non-zero integer.
func ExprIsTrue(v common.Value) bool {
	return v.Type() == common.IntType && !v.IsNull() && v.IntValue() != 0
}

// Transform rewrites the tree rooted at e bottom-up: children are transformed first, the parent is
// rebuilt over them if any changed, then fn is applied to the result.
func Transform(e Expr, fn func(Expr) (Expr, error)) (Expr, error) {
	if p, ok := e.(ParentExpr); ok {
		children := p.Children()
		rewritten := make([]Expr, len(children))
		changed := false
		for i, c := range children {
			nc, err := Transform(c, fn)
			if err != nil {
				return nil, err
			}
			rewritten[i] = nc
			changed = changed || nc != c
		}
		if changed {
			e = p.WithChildren(rewritten...)
		}
	}
	return fn(e)
}

// FreeAttributes returns the distinct names of all unbound AttributeRefs in e, in the order they first
// appear.
func FreeAttributes(e Expr) []string {
	var names []string
	seen := make(map[string]bool)
	_, _ = Transform(e, func(n Expr) (Expr, error) {
		if ref, ok := n.(*AttributeRef); ok && !seen[ref.name] {
			seen[ref.name] = true
			names = append(names, ref.name)
		}
		return n, nil
	})
	return names
}

// BindAttributes resolves every AttributeRef in e against the named columns of a tuple with the given
// schema. Each reference must match exactly one name and agree with its column's type.
func BindAttributes(e Expr, names []string, schema []common.Type) (Expr, error) {
	common.Assert(len(names) == len(schema), "names and schema differ in length")
	positions := make(map[string][]int, len(names))
	for i, n := range names {
		positions[n] = append(positions[n], i)
	}
	return Transform(e, func(n Expr) (Expr, error) {
		ref, ok := n.(*AttributeRef)
		if !ok {
			return n, nil
		}
		pos := positions[ref.name]
		if len(pos) != 1 {
			return nil, common.NewError(common.UnresolvedAttributeError,
				"attribute %q matches %d columns, want exactly one", ref.name, len(pos))
		}
		if schema[pos[0]] != ref.outputType {
			return nil, common.NewError(common.TypeMismatchError,
				"attribute %q declared %s but column %d is %s", ref.name, ref.outputType, pos[0], schema[pos[0]])
		}
		return NewColumnValueExpression(pos[0], schema, ref.name), nil
	})
}
