package planner

import (
	"fmt"

	"mit.edu/dsg/aggengine/common"
)

// AggregateNode represents a group-by and aggregation operation. Its output is the group-by values followed
// by one column per aggregate.
type AggregateNode struct {
	Child         PlanNode
	GroupByClause []Expr
	AggClauses    []AggregateExpr
	outputSchema  []common.Type
}

func NewAggregateNode(child PlanNode, groupBy []Expr, aggregates []AggregateExpr) *AggregateNode {
	outputSchema := make([]common.Type, len(groupBy)+len(aggregates))
	for i, expr := range groupBy {
		outputSchema[i] = expr.OutputType()
	}
	for i, agg := range aggregates {
		outputSchema[len(groupBy)+i] = agg.OutputType()
	}

	return &AggregateNode{
		Child:         child,
		GroupByClause: groupBy,
		AggClauses:    aggregates,
		outputSchema:  outputSchema,
	}
}

func (n *AggregateNode) OutputSchema() []common.Type {
	return n.outputSchema
}

func (n *AggregateNode) Children() []PlanNode {
	return []PlanNode{n.Child}
}

func (n *AggregateNode) String() string {
	return fmt.Sprintf("Aggregate: GroupBy(%v) Aggs(%v)", n.GroupByClause, n.AggClauses)
}

// SplitAggregatePlan is the two-stage form of an AggregateNode. Partials is the flattened list of partial
// aggregates computed per partition (for every group); Finals holds, per original aggregate, the expression
// that combines merged partial values by name.
type SplitAggregatePlan struct {
	GroupByClause []Expr
	Partials      []NamedExpr
	Finals        []Expr
	// Centralized lists the aggregates that are not Decomposable. Their partial is the aggregate itself, so
	// the complete state (e.g. a distinct set) is shipped to the final stage and merged there.
	Centralized []int
}

// SplitPlan rewrites the node into its partial and final stages. Partial names are prefixed with the
// aggregate's position so the rewrites of different aggregates never collide.
func (n *AggregateNode) SplitPlan() (*SplitAggregatePlan, error) {
	plan := &SplitAggregatePlan{GroupByClause: n.GroupByClause}
	for i, agg := range n.AggClauses {
		prefix := fmt.Sprintf("agg%d_", i)
		var split SplitEvaluation
		if d, ok := agg.(Decomposable); ok {
			split = d.SplitNamed(prefix)
		} else {
			name := prefix + "state"
			split = SplitEvaluation{
				Final:    NewAttributeRef(name, agg.OutputType()),
				Partials: []NamedExpr{{Name: name, Expr: agg}},
			}
			plan.Centralized = append(plan.Centralized, i)
		}
		plan.Partials = append(plan.Partials, split.Partials...)
		plan.Finals = append(plan.Finals, split.Final)
	}

	whole := SplitEvaluation{Partials: plan.Partials}
	for _, final := range plan.Finals {
		whole.Final = final
		if err := whole.Validate(); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// PartialAggregates returns the partial expressions as aggregates, in order.
func (p *SplitAggregatePlan) PartialAggregates() []AggregateExpr {
	aggs := make([]AggregateExpr, len(p.Partials))
	for i, partial := range p.Partials {
		agg, ok := partial.Expr.(AggregateExpr)
		common.Assert(ok, "partial %s is not an aggregate", partial.Name)
		aggs[i] = agg
	}
	return aggs
}

// PartialNames returns the partial output names, in order.
func (p *SplitAggregatePlan) PartialNames() []string {
	return SplitEvaluation{Partials: p.Partials}.PartialNames()
}

// PartialSchema returns the partial output types, in order.
func (p *SplitAggregatePlan) PartialSchema() []common.Type {
	return SplitEvaluation{Partials: p.Partials}.PartialSchema()
}
