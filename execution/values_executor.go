package execution

import (
	"mit.edu/dsg/aggengine/planner"
	"mit.edu/dsg/aggengine/storage"
)

// ValuesExecutor produces the in-memory rows of a ValuesNode.
type ValuesExecutor struct {
	plan         *planner.ValuesNode
	currentIndex int
}

func NewValuesExecutor(plan *planner.ValuesNode) *ValuesExecutor {
	return &ValuesExecutor{plan: plan, currentIndex: -1}
}

func (e *ValuesExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *ValuesExecutor) Init(ctx *ExecutorContext) error {
	e.currentIndex = -1
	return nil
}

func (e *ValuesExecutor) Next() bool {
	if e.currentIndex < len(e.plan.Rows) {
		e.currentIndex++
	}
	return e.currentIndex < len(e.plan.Rows)
}

func (e *ValuesExecutor) Current() storage.Tuple {
	return e.plan.Rows[e.currentIndex]
}

func (e *ValuesExecutor) Error() error {
	return nil
}

func (e *ValuesExecutor) Close() error {
	return nil
}
