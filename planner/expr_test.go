package planner

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/storage"
)

// Helper to create a standard tuple for testing
// Schema: [id(int), name(string), age(int), score(double), price(decimal)]
// Values: [1, "alice", NULL, 2.5, 10.25]
func makeExprTestTuple() (storage.Tuple, []common.Type) {
	schema := []common.Type{common.IntType, common.StringType, common.IntType, common.FloatType, common.DecimalType}
	tup := storage.FromValues(
		common.NewIntValue(1),          // 0: id
		common.NewStringValue("alice"), // 1: name
		common.NewNullInt(),            // 2: age (NULL)
		common.NewFloatValue(2.5),      // 3: score
		common.NewDecimalValue(decimal.RequireFromString("10.25")), // 4: price
	)
	return tup, schema
}

// TestBasicEvaluation checks Column references and Constants.
func TestBasicEvaluation(t *testing.T) {
	tup, schema := makeExprTestTuple()

	c1 := NewConstantValueExpression(common.NewIntValue(100))
	val := c1.Eval(tup)
	assert.Equal(t, int64(100), val.IntValue())
	assert.Equal(t, "100", c1.String())

	c2 := NewConstantValueExpression(common.NewStringValue("test"))
	assert.Equal(t, "test", c2.Eval(tup).StringValue())
	assert.Equal(t, "'test'", c2.String())

	colName := NewColumnValueExpression(1, schema, "name")
	assert.Equal(t, "alice", colName.Eval(tup).StringValue())
	assert.Equal(t, common.StringType, colName.OutputType())

	colAge := NewColumnValueExpression(2, schema, "age")
	assert.True(t, colAge.Eval(tup).IsNull())
}

func TestArithmetic(t *testing.T) {
	tup, schema := makeExprTestTuple()
	id := NewColumnValueExpression(0, schema, "id")
	age := NewColumnValueExpression(2, schema, "age")
	score := NewColumnValueExpression(3, schema, "score")
	price := NewColumnValueExpression(4, schema, "price")
	two := NewConstantValueExpression(common.NewIntValue(2))
	zero := NewConstantValueExpression(common.NewIntValue(0))
	half := NewConstantValueExpression(common.NewFloatValue(0.5))
	dec := NewConstantValueExpression(common.NewDecimalValue(decimal.RequireFromString("0.75")))

	tests := []struct {
		name     string
		expr     Expr
		expected common.Value
	}{
		{"int add", NewArithmeticExpression(id, two, Add), common.NewIntValue(3)},
		{"int sub", NewArithmeticExpression(id, two, Sub), common.NewIntValue(-1)},
		{"int mult", NewArithmeticExpression(two, two, Mult), common.NewIntValue(4)},
		{"int mod", NewArithmeticExpression(id, two, Mod), common.NewIntValue(1)},
		{"int div by zero", NewArithmeticExpression(id, zero, Div), common.NewNullInt()},
		{"int mod by zero", NewArithmeticExpression(id, zero, Mod), common.NewNullInt()},
		{"null operand", NewArithmeticExpression(age, two, Add), common.NewNullInt()},
		{"float mult", NewArithmeticExpression(score, half, Mult), common.NewFloatValue(1.25)},
		{"float div", NewArithmeticExpression(score, half, Div), common.NewFloatValue(5)},
		{"decimal add", NewArithmeticExpression(price, dec, Add), common.NewDecimalValue(decimal.RequireFromString("11"))},
		{"decimal sub", NewArithmeticExpression(price, dec, Sub), common.NewDecimalValue(decimal.RequireFromString("9.5"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.expr.Eval(tup)
			assert.Equal(t, tt.expected.Type(), res.Type())
			assert.Equal(t, tt.expected.IsNull(), res.IsNull())
			assert.True(t, res.Equal(tt.expected), "got %s, want %s", res, tt.expected)
		})
	}

	assert.Panics(t, func() { NewArithmeticExpression(id, score, Add) }, "operand types must match")
	assert.Panics(t, func() {
		name := NewColumnValueExpression(1, schema, "name")
		NewArithmeticExpression(name, name, Add)
	})
}

func TestCast(t *testing.T) {
	tup, schema := makeExprTestTuple()
	id := NewColumnValueExpression(0, schema, "id")
	name := NewColumnValueExpression(1, schema, "name")

	v := NewCastExpression(id, common.FloatType).Eval(tup)
	assert.Equal(t, 1.0, v.FloatValue())

	v = NewCastExpression(name, common.IntType).Eval(tup)
	assert.True(t, v.IsNull(), "unparseable string casts to NULL")
	assert.Equal(t, common.IntType, v.Type())
	assert.Equal(t, "CAST(id AS double)", NewCastExpression(id, common.FloatType).String())
}

func TestAttributeRefMustBeBound(t *testing.T) {
	tup, _ := makeExprTestTuple()
	ref := NewAttributeRef("partial_sum", common.IntType)
	assert.Panics(t, func() { ref.Eval(tup) })

	bound, err := BindAttributes(ref, []string{"key", "partial_sum"}, []common.Type{common.StringType, common.IntType})
	require.NoError(t, err)
	row := storage.FromValues(common.NewStringValue("k"), common.NewIntValue(9))
	assert.Equal(t, int64(9), bound.Eval(row).IntValue())
}

func TestBindAttributes(t *testing.T) {
	expr := NewArithmeticExpression(
		NewCastExpression(NewAttributeRef("a", common.IntType), common.FloatType),
		NewCastExpression(NewAttributeRef("b", common.IntType), common.FloatType),
		Div,
	)
	assert.Equal(t, []string{"a", "b"}, FreeAttributes(expr))

	bound, err := BindAttributes(expr, []string{"b", "a"}, []common.Type{common.IntType, common.IntType})
	require.NoError(t, err)
	assert.Empty(t, FreeAttributes(bound))
	res := bound.Eval(storage.FromValues(common.NewIntValue(4), common.NewIntValue(10)))
	assert.Equal(t, 2.5, res.FloatValue())
	assert.Len(t, FreeAttributes(expr), 2, "binding must not modify the original tree")

	_, err = BindAttributes(expr, []string{"a"}, []common.Type{common.IntType})
	assert.True(t, common.IsErrorCode(err, common.UnresolvedAttributeError))

	_, err = BindAttributes(expr, []string{"a", "a", "b"}, []common.Type{common.IntType, common.IntType, common.IntType})
	assert.True(t, common.IsErrorCode(err, common.UnresolvedAttributeError), "ambiguous names do not resolve")

	_, err = BindAttributes(expr, []string{"a", "b"}, []common.Type{common.IntType, common.FloatType})
	assert.True(t, common.IsErrorCode(err, common.TypeMismatchError))
}
