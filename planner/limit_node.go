package planner

import (
	"fmt"

	"mit.edu/dsg/aggengine/common"
)

// LimitNode keeps the first Limit rows of its child. Above an aggregation these are the first groups in
// group-key order.
type LimitNode struct {
	Child PlanNode
	Limit int
}

func NewLimitNode(child PlanNode, limit int) *LimitNode {
	return &LimitNode{
		Child: child,
		Limit: limit,
	}
}

func (n *LimitNode) OutputSchema() []common.Type {
	return n.Child.OutputSchema()
}

func (n *LimitNode) Children() []PlanNode {
	return []PlanNode{n.Child}
}

func (n *LimitNode) String() string {
	return fmt.Sprintf("Limit(%d)", n.Limit)
}
