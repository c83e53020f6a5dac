package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/storage"
)

func TestAggregateResultTypes(t *testing.T) {
	schema := []common.Type{common.IntType, common.FloatType, common.StringType}
	i := NewColumnValueExpression(0, schema, "i")
	f := NewColumnValueExpression(1, schema, "f")
	s := NewColumnValueExpression(2, schema, "s")

	tests := []struct {
		agg      AggregateExpr
		typ      common.Type
		nullable bool
		str      string
	}{
		{NewCount(s), common.IntType, false, "COUNT(s)"},
		{NewCountDistinct(i, s), common.IntType, false, "COUNT(DISTINCT i, s)"},
		{NewSum(f), common.FloatType, false, "SUM(f)"},
		{NewSumDistinct(i), common.IntType, false, "SUM(DISTINCT i)"},
		{NewAverage(i), common.FloatType, true, "AVG(i)"},
		{NewFirst(s), common.StringType, true, "FIRST(s)"},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.agg.OutputType())
			assert.Equal(t, tt.nullable, tt.agg.Nullable())
			assert.Equal(t, tt.str, tt.agg.String())
		})
	}
}

func TestAggregateEvalIsPlanningViolation(t *testing.T) {
	schema := []common.Type{common.IntType}
	agg := NewSum(NewColumnValueExpression(0, schema, "x"))

	defer func() {
		r := recover()
		require.NotNil(t, r, "evaluating an aggregate must fail loudly")
		gerr, ok := r.(common.GoDBError)
		require.True(t, ok)
		assert.Equal(t, common.PlanningInvariantViolation, gerr.Code)
	}()
	agg.Eval(storage.FromValues(common.NewIntValue(1)))
}

func TestOnlyDecomposableKindsSplit(t *testing.T) {
	x := NewColumnValueExpression(0, []common.Type{common.IntType}, "x")
	decomposable := []AggregateExpr{NewCount(x), NewSum(x), NewAverage(x), NewFirst(x)}
	for _, agg := range decomposable {
		_, ok := agg.(Decomposable)
		assert.True(t, ok, "%s should be decomposable", agg)
	}
	for _, agg := range []AggregateExpr{NewCountDistinct(x), NewSumDistinct(x)} {
		_, ok := agg.(Decomposable)
		assert.False(t, ok, "%s must not be decomposable", agg)
	}
}

func TestSplitRewrites(t *testing.T) {
	x := NewColumnValueExpression(0, []common.Type{common.IntType}, "x")

	tests := []struct {
		agg      Decomposable
		partials []string
		final    string
	}{
		{NewCount(x), []string{"COUNT(x) AS partial_count"}, "SUM(#partial_count)"},
		{NewSum(x), []string{"SUM(x) AS partial_sum"}, "SUM(#partial_sum)"},
		{NewAverage(x), []string{"SUM(x) AS partial_sum", "COUNT(x) AS partial_count"},
			"(CAST(SUM(#partial_sum) AS double) / CAST(SUM(#partial_count) AS double))"},
		{NewFirst(x), []string{"FIRST(x) AS partial_first"}, "FIRST(#partial_first)"},
	}
	for _, tt := range tests {
		t.Run(tt.agg.String(), func(t *testing.T) {
			split := tt.agg.Split()
			require.NoError(t, split.Validate())

			var partials []string
			for _, p := range split.Partials {
				partials = append(partials, p.String())
			}
			assert.Equal(t, tt.partials, partials)
			assert.Equal(t, tt.final, split.Final.String())
			assert.Equal(t, tt.agg.OutputType(), split.Final.OutputType())
		})
	}
}

func TestSplitValidateRejectsDanglingReference(t *testing.T) {
	x := NewColumnValueExpression(0, []common.Type{common.IntType}, "x")
	split := NewSum(x).Split()
	split.Final = NewSum(NewAttributeRef("missing", common.IntType))
	assert.True(t, common.IsErrorCode(split.Validate(), common.UnresolvedAttributeError))

	dup := NewAverage(x).Split()
	dup.Partials[1].Name = dup.Partials[0].Name
	assert.True(t, common.IsErrorCode(dup.Validate(), common.UnresolvedAttributeError))
}

func TestNewAggregateValidates(t *testing.T) {
	schema := []common.Type{common.IntType, common.StringType}
	i := NewColumnValueExpression(0, schema, "i")
	s := NewColumnValueExpression(1, schema, "s")

	agg, err := NewAggregate(AggAverage, i)
	require.NoError(t, err)
	assert.Equal(t, AggAverage, agg.Kind())

	agg, err = NewAggregate(AggCountDistinct, i, s)
	require.NoError(t, err)
	assert.Len(t, agg.Args(), 2)

	_, err = NewAggregate(AggSum, s)
	assert.True(t, common.IsErrorCode(err, common.TypeMismatchError))
	_, err = NewAggregate(AggCount)
	assert.True(t, common.IsErrorCode(err, common.TypeMismatchError))
	_, err = NewAggregate(AggFirst, i, s)
	assert.True(t, common.IsErrorCode(err, common.TypeMismatchError))
	assert.Panics(t, func() { NewSum(s) })
}

func TestSplitPlan(t *testing.T) {
	schema := []common.Type{common.StringType, common.IntType}
	group := NewColumnValueExpression(0, schema, "g")
	v := NewColumnValueExpression(1, schema, "v")
	child := NewValuesNode(schema, nil)

	node := NewAggregateNode(child, []Expr{group}, []AggregateExpr{NewAverage(v), NewCountDistinct(v), NewCount(v)})
	assert.Equal(t, []common.Type{common.StringType, common.FloatType, common.IntType, common.IntType}, node.OutputSchema())

	plan, err := node.SplitPlan()
	require.NoError(t, err)
	assert.Equal(t, []string{"agg0_partial_sum", "agg0_partial_count", "agg1_state", "agg2_partial_count"}, plan.PartialNames())
	assert.Equal(t, []common.Type{common.IntType, common.IntType, common.IntType, common.IntType}, plan.PartialSchema())
	assert.Equal(t, []int{1}, plan.Centralized)
	require.Len(t, plan.Finals, 3)
	assert.Equal(t, "#agg1_state", plan.Finals[1].String())

	aggs := plan.PartialAggregates()
	assert.Equal(t, AggCountDistinct, aggs[2].Kind())
	assert.Same(t, node.AggClauses[1], aggs[2], "centralized aggregates ship their own state")
}
