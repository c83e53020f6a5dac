package execution

import (
	"go.uber.org/zap"
	"mit.edu/dsg/aggengine/planner"
	"mit.edu/dsg/aggengine/storage"
)

// FilterExecutor applies a HAVING predicate to the groups produced by an aggregation below it. A group
// passes only when the predicate is true; false and NULL both drop it.
type FilterExecutor struct {
	plan  *planner.FilterNode
	child Executor

	ctx      *ExecutorContext
	kept     int
	rejected int
	done     bool
}

// NewFilter creates a new FilterExecutor executor.
func NewFilter(plan *planner.FilterNode, child Executor) *FilterExecutor {
	return &FilterExecutor{
		plan:  plan,
		child: child,
	}
}

func (e *FilterExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *FilterExecutor) Init(ctx *ExecutorContext) error {
	e.ctx = ctx
	e.kept, e.rejected = 0, 0
	e.done = false
	return e.child.Init(ctx)
}

func (e *FilterExecutor) Next() bool {
	for e.child.Next() {
		if planner.ExprIsTrue(e.plan.Predicate.Eval(e.child.Current())) {
			e.kept++
			return true
		}
		e.rejected++
	}
	if !e.done && e.child.Error() == nil {
		e.done = true
		e.ctx.Logger().Debug("having applied",
			zap.Stringer("predicate", e.plan.Predicate), zap.Int("kept", e.kept), zap.Int("rejected", e.rejected))
	}
	return false
}

func (e *FilterExecutor) Current() storage.Tuple {
	return e.child.Current()
}

func (e *FilterExecutor) Error() error {
	return e.child.Error()
}

func (e *FilterExecutor) Close() error {
	return e.child.Close()
}
