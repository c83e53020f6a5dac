package execution

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/config"
	"mit.edu/dsg/aggengine/planner"
	"mit.edu/dsg/aggengine/storage"
)

var groupedSchema = []common.Type{common.StringType, common.IntType}

// groupedRows returns (group, value) rows; a nil value is a NULL.
func groupedRows(pairs ...any) []storage.Tuple {
	rows := make([]storage.Tuple, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		v := common.NewNullInt()
		if pairs[i+1] != nil {
			v = common.NewIntValue(int64(pairs[i+1].(int)))
		}
		rows = append(rows, storage.FromValues(common.NewStringValue(pairs[i].(string)), v))
	}
	return rows
}

func newTestContext(t *testing.T, modify func(*config.Config)) *ExecutorContext {
	cfg := config.Default()
	if modify != nil {
		modify(&cfg)
	}
	return NewExecutorContext(context.Background(), cfg, zaptest.NewLogger(t))
}

func drain(t *testing.T, exec Executor) []storage.Tuple {
	t.Helper()
	var out []storage.Tuple
	for exec.Next() {
		out = append(out, exec.Current())
	}
	require.NoError(t, exec.Error())
	return out
}

func TestBasicExecutor_Values(t *testing.T) {
	rows := groupedRows("A", 1, "B", nil)
	exec := NewValuesExecutor(planner.NewValuesNode(groupedSchema, rows))
	ctx := newTestContext(t, nil)

	require.NoError(t, exec.Init(ctx))
	assert.Equal(t, rows, drain(t, exec))
	assert.False(t, exec.Next(), "an exhausted executor stays exhausted")

	// Calling init again should reset the cursor.
	require.NoError(t, exec.Init(ctx))
	assert.Len(t, drain(t, exec), 2)
	assert.NoError(t, exec.Close())
}

func TestBasicExecutor_Projection(t *testing.T) {
	values := planner.NewValuesNode(groupedSchema, groupedRows("A", 1, "B", 2, "C", nil))
	v := planner.NewColumnValueExpression(1, groupedSchema, "v")
	doubled := planner.NewArithmeticExpression(v, planner.NewConstantValueExpression(common.NewIntValue(2)), planner.Mult)
	proj := planner.NewProjectionNode(values, []planner.Expr{doubled})
	assert.Equal(t, []common.Type{common.IntType}, proj.OutputSchema())

	exec := NewProjectionExecutor(proj, NewValuesExecutor(values))
	require.NoError(t, exec.Init(newTestContext(t, nil)))
	out := drain(t, exec)
	require.Len(t, out, 3)
	assert.Equal(t, int64(2), out[0].GetValue(0).IntValue())
	assert.Equal(t, int64(4), out[1].GetValue(0).IntValue())
	assert.True(t, out[2].GetValue(0).IsNull())
}

func TestExecutorContext(t *testing.T) {
	a := newTestContext(t, func(c *config.Config) { c.Aggregation.DistinctLimit = 7 })
	b := newTestContext(t, nil)
	assert.NotEqual(t, a.QueryID(), b.QueryID())
	assert.Equal(t, 7, a.Builder().DistinctLimit)
	assert.Equal(t, 0, b.Builder().DistinctLimit)
	assert.NotNil(t, NewExecutorContext(context.Background(), config.Default(), nil).Logger())
}

func TestExecutionHashTable(t *testing.T) {
	ht := NewExecutionHashTable[int](2)
	key := func(s string, d string) storage.Tuple {
		return storage.FromValues(common.NewStringValue(s), common.NewDecimalValue(decimal.RequireFromString(d)))
	}

	ht.Insert(key("a", "1.0"), 1)
	ht.Insert(key("b", "2"), 2)

	v, ok := ht.Get(key("a", "1.00"))
	require.True(t, ok, "equal decimals must share a key")
	assert.Equal(t, 1, v)
	_, ok = ht.Get(key("a", "2"))
	assert.False(t, ok)

	v, ok = ht.Get(key("b", "2.000"))
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestNewQueryExecutor(t *testing.T) {
	values := planner.NewValuesNode(groupedSchema, nil)
	agg := planner.NewAggregateNode(values, []planner.Expr{planner.NewColumnValueExpression(0, groupedSchema, "g")},
		[]planner.AggregateExpr{planner.NewCount(planner.NewColumnValueExpression(1, groupedSchema, "v"))})
	count := planner.NewColumnValueExpression(1, agg.OutputSchema(), "count")
	having := planner.NewFilterNode(agg, planner.NewComparisonExpression(
		count, planner.NewConstantValueExpression(common.NewIntValue(1)), planner.GreaterThan))
	plan := planner.NewLimitNode(planner.NewProjectionNode(having, []planner.Expr{count}), 5)

	one := []Executor{NewValuesExecutor(planner.NewValuesNode(groupedSchema, groupedRows("A", 1, "A", 2, "B", 3)))}
	exec, err := NewQueryExecutor(plan, one)
	require.NoError(t, err)
	assert.IsType(t, &LimitExecutor{}, exec)
	assert.Equal(t, plan, exec.PlanNode())

	require.NoError(t, exec.Init(newTestContext(t, nil)))
	out := drain(t, exec)
	require.Len(t, out, 1)
	assert.Equal(t, int64(2), out[0].GetValue(0).IntValue())

	exec, err = NewQueryExecutor(agg, []Executor{NewValuesExecutor(values), NewValuesExecutor(values)})
	require.NoError(t, err)
	assert.IsType(t, &TwoPhaseAggregateExecutor{}, exec)

	_, err = NewQueryExecutor(planner.NewLimitNode(values, 1), one)
	assert.Error(t, err, "a plan without an aggregation cannot read partitions")
}
