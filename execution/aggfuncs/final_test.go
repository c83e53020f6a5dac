package aggfuncs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/planner"
	"mit.edu/dsg/aggengine/storage"
)

// twoStage computes split over partitions: one group of partial accumulators per partition, states shipped
// through Marshal/Unmarshal, merged in the given partition order and finished with the final expression.
func twoStage(t *testing.T, split planner.SplitEvaluation, partitions [][]storage.Tuple, order []int) common.Value {
	t.Helper()
	partials := make([]planner.AggregateExpr, len(split.Partials))
	for i, p := range split.Partials {
		agg, ok := p.Expr.(planner.AggregateExpr)
		require.True(t, ok)
		partials[i] = agg
	}

	shipped := make([][][]byte, len(partitions))
	for pi, rows := range partitions {
		for _, agg := range partials {
			data, err := Marshal(feed(t, Build(agg), rows))
			require.NoError(t, err)
			shipped[pi] = append(shipped[pi], data)
		}
	}

	merged := make([]common.Value, len(partials))
	for i, agg := range partials {
		target, err := NewEmpty(agg.Kind(), agg.OutputType())
		require.NoError(t, err)
		for _, pi := range order {
			state, err := Unmarshal(shipped[pi][i])
			require.NoError(t, err)
			require.NoError(t, target.Merge(state))
		}
		merged[i] = evalOf(t, target)
	}

	v, err := EvalFinal(split.Final, split.PartialNames(), storage.FromValues(merged...))
	require.NoError(t, err)
	return v
}

func TestSplitEquivalence(t *testing.T) {
	x := column(common.IntType)
	rows := intRows(3, nil, 1, 4, 1, 5, 9, nil, 2, 6)

	partitionings := map[string][][]storage.Tuple{
		"single":      {rows},
		"three":       {rows[:3], rows[3:7], rows[7:]},
		"with empty":  {rows[:5], nil, rows[5:]},
		"one per row": {rows[0:1], rows[1:2], rows[2:3], rows[3:4], rows[4:5], rows[5:6], rows[6:7], rows[7:8], rows[8:9], rows[9:]},
	}
	aggs := []planner.Decomposable{planner.NewCount(x), planner.NewSum(x), planner.NewAverage(x), planner.NewFirst(x)}

	for name, partitions := range partitionings {
		forward := make([]int, len(partitions))
		reverse := make([]int, len(partitions))
		for i := range partitions {
			forward[i] = i
			reverse[len(partitions)-1-i] = i
		}
		for _, agg := range aggs {
			t.Run(name+"/"+agg.String(), func(t *testing.T) {
				want := evalOf(t, feed(t, Build(agg), rows))
				assertValue(t, want, twoStage(t, agg.Split(), partitions, forward))
				if agg.Kind() != planner.AggFirst {
					assertValue(t, want, twoStage(t, agg.Split(), partitions, reverse))
				}
			})
		}
	}
}

func TestSplitEquivalenceAllNull(t *testing.T) {
	x := column(common.IntType)
	partitions := [][]storage.Tuple{intRows(nil), intRows(nil, nil)}
	for _, agg := range []planner.Decomposable{planner.NewCount(x), planner.NewSum(x), planner.NewAverage(x), planner.NewFirst(x)} {
		t.Run(agg.String(), func(t *testing.T) {
			want := evalOf(t, feed(t, Build(agg), append(partitions[0], partitions[1]...)))
			assertValue(t, want, twoStage(t, agg.Split(), partitions, []int{0, 1}))
		})
	}
}

func TestFirstFollowsMergeOrder(t *testing.T) {
	split := planner.NewFirst(column(common.IntType)).Split()
	partitions := [][]storage.Tuple{intRows(nil, 5), intRows(7)}
	assertValue(t, common.NewIntValue(5), twoStage(t, split, partitions, []int{0, 1}))
	assertValue(t, common.NewIntValue(7), twoStage(t, split, partitions, []int{1, 0}))
}

func TestCompileFinal(t *testing.T) {
	split := planner.NewAverage(column(common.IntType)).Split()

	f, err := CompileFinal(split.Final, split.PartialNames(), split.PartialSchema())
	require.NoError(t, err)
	v, err := f.Eval(storage.FromValues(common.NewIntValue(12), common.NewIntValue(3)))
	require.NoError(t, err)
	assertValue(t, common.NewFloatValue(4), v)

	// No rows at all: 0 / 0 is NULL.
	v, err = f.Eval(storage.FromValues(common.NewIntValue(0), common.NewIntValue(0)))
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	_, err = CompileFinal(split.Final, []string{"partial_sum"}, []common.Type{common.IntType})
	requireCode(t, err, common.UnresolvedAttributeError)
}
