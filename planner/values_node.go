package planner

import (
	"fmt"

	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/storage"
)

// ValuesNode produces a fixed, in-memory list of rows. It stands in for whatever operator supplies rows to
// an aggregation (a scan, an exchange receiver) and is the leaf of every partition's pipeline.
type ValuesNode struct {
	Rows         []storage.Tuple
	outputSchema []common.Type
}

func NewValuesNode(outputSchema []common.Type, rows []storage.Tuple) *ValuesNode {
	for i, r := range rows {
		common.Assert(r.NumColumns() == len(outputSchema), "row %d has %d columns, schema has %d", i, r.NumColumns(), len(outputSchema))
	}
	return &ValuesNode{
		Rows:         rows,
		outputSchema: outputSchema,
	}
}

func (n *ValuesNode) OutputSchema() []common.Type {
	return n.outputSchema
}

func (n *ValuesNode) Children() []PlanNode {
	return nil
}

func (n *ValuesNode) String() string {
	return fmt.Sprintf("Values: %d rows", len(n.Rows))
}
