package execution

import (
	"context"

	"github.com/pingcap/errors"
	"github.com/tidwall/btree"
	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/execution/aggfuncs"
	"mit.edu/dsg/aggengine/metrics"
	"mit.edu/dsg/aggengine/planner"
	"mit.edu/dsg/aggengine/storage"
)

// group is the running state of one group: its key and one accumulator per aggregate.
type group struct {
	key  storage.Tuple
	accs []aggfuncs.Accumulator
}

func newGroup(key storage.Tuple, aggs []planner.AggregateExpr, builder aggfuncs.Builder) *group {
	g := &group{key: key, accs: make([]aggfuncs.Accumulator, len(aggs))}
	for i, agg := range aggs {
		g.accs[i] = builder.Build(agg)
	}
	return g
}

// merge folds encoded partial states, one per accumulator, into the group.
func (g *group) merge(states [][]byte, builder aggfuncs.Builder) error {
	for i, data := range states {
		state, err := builder.Unmarshal(data)
		if err != nil {
			return errors.Trace(err)
		}
		if err := g.accs[i].Merge(state); err != nil {
			return errors.Annotatef(err, "merge group %s", g.key)
		}
		metrics.MergeCounter.WithLabelValues(state.Kind().String()).Inc()
	}
	return nil
}

// groupTable maps group keys to their accumulators and remembers the order groups were first seen in.
// It is owned by a single goroutine.
type groupTable struct {
	groupBy []planner.Expr
	aggs    []planner.AggregateExpr
	builder aggfuncs.Builder

	table  *ExecutionHashTable[*group]
	groups []*group
	keyBuf []common.Value
}

func newGroupTable(groupBy []planner.Expr, aggs []planner.AggregateExpr, builder aggfuncs.Builder) *groupTable {
	return &groupTable{
		groupBy: groupBy,
		aggs:    aggs,
		builder: builder,
		table:   NewExecutionHashTable[*group](len(groupBy)),
		keyBuf:  make([]common.Value, len(groupBy)),
	}
}

// lookup returns the group for key, creating it with fresh accumulators on first sight.
func (gt *groupTable) lookup(key storage.Tuple) *group {
	g, found := gt.table.Get(key)
	if !found {
		// key may be backed by keyBuf, so the group keeps its own copy.
		g = newGroup(storage.FromValues(key.Values()...), gt.aggs, gt.builder)
		gt.table.Insert(key, g)
		gt.groups = append(gt.groups, g)
	}
	return g
}

// update routes row to its group and feeds it to every accumulator of the group.
func (gt *groupTable) update(row storage.Tuple) error {
	for i, expr := range gt.groupBy {
		gt.keyBuf[i] = expr.Eval(row)
	}
	// If group by is empty, this produces an empty key: a global aggregation with a single group.
	g := gt.lookup(storage.FromValues(gt.keyBuf...))
	for _, acc := range g.accs {
		if err := acc.Update(row); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// ensureGlobalGroup makes a global aggregation over no rows produce its single row.
func (gt *groupTable) ensureGlobalGroup() {
	if len(gt.groupBy) == 0 && len(gt.groups) == 0 {
		gt.lookup(storage.FromValues())
	}
}

// consume feeds every row of child into the table, checking for cancellation between batches and once
// more at the end.
func (gt *groupTable) consume(ctx context.Context, child Executor, stage string) error {
	const checkEvery = 1024
	n := 0
	for child.Next() {
		if err := gt.update(child.Current()); err != nil {
			return err
		}
		n++
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return errors.Trace(err)
			}
		}
	}
	metrics.RowsConsumedCounter.WithLabelValues(stage).Add(float64(n))
	if err := child.Error(); err != nil {
		return errors.Trace(err)
	}
	// Short inputs never reach a batch boundary.
	return errors.Trace(ctx.Err())
}

// sortedRows collects output rows ordered by their leading group-key columns.
type sortedRows struct {
	tree *btree.BTreeG[storage.Tuple]
}

func newSortedRows(keyColumns int) *sortedRows {
	less := func(a, b storage.Tuple) bool {
		for i := 0; i < keyColumns; i++ {
			if c := a.GetValue(i).Compare(b.GetValue(i)); c != 0 {
				return c < 0
			}
		}
		return false
	}
	return &sortedRows{tree: btree.NewBTreeG(less)}
}

// add stores row. It is safe for concurrent use.
func (s *sortedRows) add(row storage.Tuple) {
	s.tree.Set(row)
}

func (s *sortedRows) rows() []storage.Tuple {
	return s.tree.Items()
}

// concurrency clamps a configured degree of parallelism to at least one.
func concurrency(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// recordError counts err by its error code.
func recordError(err error) {
	if err == nil {
		return
	}
	label := "other"
	if code, ok := common.ErrorCode(err); ok {
		label = code.String()
	}
	metrics.AggregateErrorCounter.WithLabelValues(label).Inc()
}
