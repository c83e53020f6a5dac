package execution

import (
	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/planner"
	"mit.edu/dsg/aggengine/storage"
)

// ProjectionExecutor evaluates a list of expressions on the input tuples
// and produces a new tuple containing the results of those expressions.
// Placed above an aggregation it computes expressions over aggregate results.
type ProjectionExecutor struct {
	plan  *planner.ProjectionNode
	child Executor

	// Runtime state
	current storage.Tuple
	err     error
}

// NewProjectionExecutor creates a new ProjectionExecutor.
func NewProjectionExecutor(plan *planner.ProjectionNode, child Executor) *ProjectionExecutor {
	return &ProjectionExecutor{
		child: child,
		plan:  plan,
	}
}

func (e *ProjectionExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *ProjectionExecutor) Init(ctx *ExecutorContext) error {
	e.current = storage.Tuple{}
	e.err = nil
	return e.child.Init(ctx)
}

func (e *ProjectionExecutor) Next() bool {
	if !e.child.Next() {
		e.err = e.child.Error()
		return false
	}

	childTuple := e.child.Current()
	values := make([]common.Value, len(e.plan.Expressions))
	for i, expr := range e.plan.Expressions {
		values[i] = expr.Eval(childTuple)
	}
	e.current = storage.FromValues(values...)
	return true
}

func (e *ProjectionExecutor) Current() storage.Tuple {
	return e.current
}

func (e *ProjectionExecutor) Error() error {
	return e.err
}

func (e *ProjectionExecutor) Close() error {
	return e.child.Close()
}
