package execution

import (
	"github.com/pingcap/errors"
	"mit.edu/dsg/aggengine/planner"
)

// NewQueryExecutor builds the executor tree for plan. The aggregation at the bottom of the plan reads
// its rows from partitions instead of its own child: one partition is aggregated in a single stage,
// several are aggregated separately and combined in two phases.
func NewQueryExecutor(plan planner.PlanNode, partitions []Executor) (Executor, error) {
	switch n := plan.(type) {
	case *planner.AggregateNode:
		if len(partitions) == 1 {
			return NewAggregateExecutor(n, partitions[0]), nil
		}
		return NewTwoPhaseAggregateExecutor(n, partitions), nil
	case *planner.FilterNode:
		child, err := NewQueryExecutor(n.Child, partitions)
		if err != nil {
			return nil, err
		}
		return NewFilter(n, child), nil
	case *planner.ProjectionNode:
		child, err := NewQueryExecutor(n.Child, partitions)
		if err != nil {
			return nil, err
		}
		return NewProjectionExecutor(n, child), nil
	case *planner.LimitNode:
		child, err := NewQueryExecutor(n.Child, partitions)
		if err != nil {
			return nil, err
		}
		return NewLimitExecutor(n, child), nil
	}
	return nil, errors.Errorf("no aggregation below plan node %s", plan)
}
