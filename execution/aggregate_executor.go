package execution

import (
	"github.com/pingcap/errors"
	"go.uber.org/zap"
	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/metrics"
	"mit.edu/dsg/aggengine/planner"
	"mit.edu/dsg/aggengine/storage"
)

// AggregateExecutor implements single-stage hash-based aggregation: every input row is fed to the
// accumulators of its group. Output rows are the group-by values followed by one value per aggregate,
// ordered by group key.
type AggregateExecutor struct {
	plan  *planner.AggregateNode
	child Executor

	// Runtime state
	tuples       []storage.Tuple
	built        bool
	currentIndex int
	ctx          *ExecutorContext
	err          error
}

func NewAggregateExecutor(plan *planner.AggregateNode, child Executor) *AggregateExecutor {
	return &AggregateExecutor{
		child:        child,
		plan:         plan,
		currentIndex: -1,
	}
}

func (e *AggregateExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *AggregateExecutor) Init(ctx *ExecutorContext) error {
	e.tuples = nil
	e.built = false
	e.currentIndex = -1
	e.ctx = ctx
	e.err = nil
	return e.child.Init(ctx)
}

func (e *AggregateExecutor) buildHashTable() error {
	table := newGroupTable(e.plan.GroupByClause, e.plan.AggClauses, e.ctx.Builder())
	if err := table.consume(e.ctx.Context(), e.child, metrics.StageSingle); err != nil {
		return err
	}
	table.ensureGlobalGroup()

	out := newSortedRows(len(e.plan.GroupByClause))
	values := make([]common.Value, len(e.plan.AggClauses))
	for _, g := range table.groups {
		for i, acc := range g.accs {
			v, err := acc.Eval()
			if err != nil {
				return errors.Annotatef(err, "evaluate %s for group %s", e.plan.AggClauses[i], g.key)
			}
			values[i] = v
		}
		out.add(g.key.Extend(values))
	}
	e.tuples = out.rows()
	metrics.GroupsCounter.WithLabelValues(metrics.StageSingle).Add(float64(len(e.tuples)))
	e.ctx.Logger().Debug("aggregation done",
		zap.Int("groups", len(e.tuples)), zap.Stringer("plan", e.plan))
	return nil
}

func (e *AggregateExecutor) Next() bool {
	if e.err != nil {
		return false
	}
	if !e.built {
		if err := e.buildHashTable(); err != nil {
			recordError(err)
			e.err = err
			return false
		}
		e.built = true
	}
	e.currentIndex++
	return e.currentIndex < len(e.tuples)
}

func (e *AggregateExecutor) Current() storage.Tuple {
	return e.tuples[e.currentIndex]
}

func (e *AggregateExecutor) Error() error {
	return e.err
}

func (e *AggregateExecutor) Close() error {
	return e.child.Close()
}
