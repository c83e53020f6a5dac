package planner

import (
	"fmt"

	"mit.edu/dsg/aggengine/common"
)

// ProjectionNode is the select list over its child's rows. Above an aggregation its expressions read the
// group-by and aggregate columns, e.g. a ratio of two aggregates.
type ProjectionNode struct {
	Child       PlanNode
	Expressions []Expr
}

func NewProjectionNode(child PlanNode, exprs []Expr) *ProjectionNode {
	return &ProjectionNode{
		Child:       child,
		Expressions: exprs,
	}
}

func (n *ProjectionNode) OutputSchema() []common.Type {
	out := make([]common.Type, len(n.Expressions))
	for i, e := range n.Expressions {
		out[i] = e.OutputType()
	}
	return out
}

func (n *ProjectionNode) Children() []PlanNode {
	return []PlanNode{n.Child}
}

func (n *ProjectionNode) String() string {
	return fmt.Sprintf("Select(%v)", n.Expressions)
}
