package common

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

type Type int8

const (
	// For uninitialized Values
	DefaultType Type = iota
	IntType
	FloatType
	DecimalType
	StringType
)

func (t Type) String() string {
	switch t {
	case IntType:
		return "int"
	case FloatType:
		return "double"
	case DecimalType:
		return "decimal"
	case StringType:
		return "string"
	}
	return "unknown"
}

// IsNumeric reports whether values of the type support Add.
func (t Type) IsNumeric() bool {
	return t == IntType || t == FloatType || t == DecimalType
}

// Value represents a (deserialized) data item in a tuple. It is a runtime-typed
// scalar: the type tag decides which payload field is meaningful. Values are
// immutable; arithmetic returns new Values.
type Value struct {
	t                 Type
	null              bool
	underlyingInt     int64
	underlyingFloat   float64
	underlyingDecimal decimal.Decimal
	underlyingString  string
}

// IsNil returns true if the Value is nil and uninitialized. This is NOT to be confused with NULL values.
func (v Value) IsNil() bool {
	return v.t == DefaultType
}

// NewIntValue creates a new integer Value.
func NewIntValue(v int64) Value {
	return Value{t: IntType, underlyingInt: v}
}

// NewFloatValue creates a new double Value.
func NewFloatValue(v float64) Value {
	return Value{t: FloatType, underlyingFloat: v}
}

// NewDecimalValue creates a new exact decimal Value.
func NewDecimalValue(v decimal.Decimal) Value {
	return Value{t: DecimalType, underlyingDecimal: v}
}

// NewStringValue creates a new string Value.
func NewStringValue(v string) Value {
	return Value{t: StringType, underlyingString: v}
}

// NewNullValue creates a NULL of the given type.
func NewNullValue(t Type) Value {
	Assert(t != DefaultType, "NULL must carry a type")
	return Value{t: t, null: true}
}

// NewNullInt creates a NULL integer Value.
func NewNullInt() Value {
	return NewNullValue(IntType)
}

// NewNullString creates a NULL string Value.
func NewNullString() Value {
	return NewNullValue(StringType)
}

// ZeroValue returns the additive identity of a numeric type.
func ZeroValue(t Type) (Value, error) {
	switch t {
	case IntType:
		return NewIntValue(0), nil
	case FloatType:
		return NewFloatValue(0), nil
	case DecimalType:
		return NewDecimalValue(decimal.Zero), nil
	}
	return Value{}, NewError(TypeMismatchError, "type %s has no zero value", t)
}

// Type returns the type of the Value.
func (v Value) Type() Type {
	return v.t
}

// IsNull returns true if the Value is NULL.
func (v Value) IsNull() bool {
	return v.null
}

// IntValue returns the underlying (non-NULL) integer.
func (v Value) IntValue() int64 {
	Assert(v.t == IntType, "type mismatch in IntValue")
	Assert(!v.null, "accessing value of NULL int")
	return v.underlyingInt
}

// FloatValue returns the underlying (non-NULL) double.
func (v Value) FloatValue() float64 {
	Assert(v.t == FloatType, "type mismatch in FloatValue")
	Assert(!v.null, "accessing value of NULL double")
	return v.underlyingFloat
}

// DecimalValue returns the underlying (non-NULL) decimal.
func (v Value) DecimalValue() decimal.Decimal {
	Assert(v.t == DecimalType, "type mismatch in DecimalValue")
	Assert(!v.null, "accessing value of NULL decimal")
	return v.underlyingDecimal
}

// StringValue returns the underlying (non-NULL) string.
func (v Value) StringValue() string {
	Assert(v.t == StringType, "type mismatch in StringValue")
	Assert(!v.null, "accessing value of NULL string")
	return v.underlyingString
}

// Add returns v + other. Both operands must carry the same numeric type tag.
// NULL is the additive identity: adding NULL leaves the other operand unchanged,
// and NULL + NULL is NULL. Integer sums that leave the int64 range fail with
// NumericOverflowError instead of wrapping.
func (v Value) Add(other Value) (Value, error) {
	if v.t != other.t || !v.t.IsNumeric() {
		return Value{}, NewError(TypeMismatchError, "cannot add %s and %s", v.t, other.t)
	}
	if other.null {
		return v, nil
	}
	if v.null {
		return other, nil
	}
	switch v.t {
	case IntType:
		sum := v.underlyingInt + other.underlyingInt
		if (sum > v.underlyingInt) != (other.underlyingInt > 0) {
			return Value{}, NewError(NumericOverflowError, "%d + %d overflows int", v.underlyingInt, other.underlyingInt)
		}
		return NewIntValue(sum), nil
	case FloatType:
		return NewFloatValue(v.underlyingFloat + other.underlyingFloat), nil
	default:
		return NewDecimalValue(v.underlyingDecimal.Add(other.underlyingDecimal)), nil
	}
}

// Divide returns v / other. A NULL operand or a zero divisor yields NULL.
func (v Value) Divide(other Value) (Value, error) {
	if v.t != other.t || !v.t.IsNumeric() {
		return Value{}, NewError(TypeMismatchError, "cannot divide %s by %s", v.t, other.t)
	}
	if v.null || other.null {
		return NewNullValue(v.t), nil
	}
	switch v.t {
	case IntType:
		if other.underlyingInt == 0 {
			return NewNullValue(IntType), nil
		}
		return NewIntValue(v.underlyingInt / other.underlyingInt), nil
	case FloatType:
		if other.underlyingFloat == 0 {
			return NewNullValue(FloatType), nil
		}
		return NewFloatValue(v.underlyingFloat / other.underlyingFloat), nil
	default:
		if other.underlyingDecimal.IsZero() {
			return NewNullValue(DecimalType), nil
		}
		return NewDecimalValue(v.underlyingDecimal.Div(other.underlyingDecimal)), nil
	}
}

// Cast converts v to the target type. NULL casts to a NULL of the target type.
func (v Value) Cast(to Type) (Value, error) {
	if v.t == to {
		return v, nil
	}
	if v.null {
		return NewNullValue(to), nil
	}
	switch v.t {
	case IntType:
		switch to {
		case FloatType:
			return NewFloatValue(float64(v.underlyingInt)), nil
		case DecimalType:
			return NewDecimalValue(decimal.NewFromInt(v.underlyingInt)), nil
		case StringType:
			return NewStringValue(strconv.FormatInt(v.underlyingInt, 10)), nil
		}
	case FloatType:
		switch to {
		case IntType:
			return NewIntValue(int64(v.underlyingFloat)), nil
		case DecimalType:
			if math.IsNaN(v.underlyingFloat) || math.IsInf(v.underlyingFloat, 0) {
				return Value{}, NewError(TypeMismatchError, "cannot cast %v to decimal", v.underlyingFloat)
			}
			return NewDecimalValue(decimal.NewFromFloat(v.underlyingFloat)), nil
		case StringType:
			return NewStringValue(strconv.FormatFloat(v.underlyingFloat, 'g', -1, 64)), nil
		}
	case DecimalType:
		switch to {
		case IntType:
			return NewIntValue(v.underlyingDecimal.IntPart()), nil
		case FloatType:
			f, _ := v.underlyingDecimal.Float64()
			return NewFloatValue(f), nil
		case StringType:
			return NewStringValue(v.underlyingDecimal.String()), nil
		}
	case StringType:
		switch to {
		case IntType:
			i, err := strconv.ParseInt(v.underlyingString, 10, 64)
			if err != nil {
				return Value{}, NewError(TypeMismatchError, "cannot cast %q to int", v.underlyingString)
			}
			return NewIntValue(i), nil
		case FloatType:
			f, err := strconv.ParseFloat(v.underlyingString, 64)
			if err != nil {
				return Value{}, NewError(TypeMismatchError, "cannot cast %q to double", v.underlyingString)
			}
			return NewFloatValue(f), nil
		case DecimalType:
			d, err := decimal.NewFromString(v.underlyingString)
			if err != nil {
				return Value{}, NewError(TypeMismatchError, "cannot cast %q to decimal", v.underlyingString)
			}
			return NewDecimalValue(d), nil
		}
	}
	return Value{}, NewError(TypeMismatchError, "cannot cast %s to %s", v.t, to)
}

// Compare compares two Values.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
// NULL is considered less than non-NULL values. NaN sorts after every other double
// and equal to itself, so the order is total.
func (v Value) Compare(other Value) int {
	Assert(v.t == other.t, "type mismatch in comparison")

	if v.null && other.null {
		return 0
	}
	if v.null {
		return -1
	}
	if other.null {
		return 1
	}

	switch v.t {
	case IntType:
		return compareOrdered(v.underlyingInt, other.underlyingInt)
	case FloatType:
		a, b := v.underlyingFloat, other.underlyingFloat
		switch {
		case math.IsNaN(a) && math.IsNaN(b):
			return 0
		case math.IsNaN(a):
			return 1
		case math.IsNaN(b):
			return -1
		}
		return compareOrdered(a, b)
	case DecimalType:
		return v.underlyingDecimal.Cmp(other.underlyingDecimal)
	case StringType:
		return compareOrdered(v.underlyingString, other.underlyingString)
	}
	panic("unreachable")
}

// Equal reports whether two values have the same type and compare equal.
func (v Value) Equal(other Value) bool {
	return v.t == other.t && v.Compare(other) == 0
}

func (v Value) String() string {
	if v.null {
		return "NULL"
	}
	switch v.t {
	case IntType:
		return strconv.FormatInt(v.underlyingInt, 10)
	case FloatType:
		return strconv.FormatFloat(v.underlyingFloat, 'g', -1, 64)
	case DecimalType:
		return v.underlyingDecimal.String()
	case StringType:
		return v.underlyingString
	}
	return "<nil>"
}

func compareOrdered[T int64 | float64 | string](a, b T) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
