package aggengine

import (
	"context"

	"github.com/pingcap/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"mit.edu/dsg/aggengine/config"
	"mit.edu/dsg/aggengine/execution"
	"mit.edu/dsg/aggengine/metrics"
	"mit.edu/dsg/aggengine/planner"
	"mit.edu/dsg/aggengine/storage"
)

// Engine is the top-level container for the aggregation engine: the configuration and logger shared by
// every query it runs.
type Engine struct {
	Config config.Config
	Logger *zap.Logger
}

// New validates cfg and creates an Engine. A nil logger is built from cfg's log level.
func New(cfg config.Config, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		var err error
		if logger, err = cfg.NewLogger(); err != nil {
			return nil, err
		}
	}
	metrics.RegisterMetrics()
	return &Engine{Config: cfg, Logger: logger}, nil
}

// Run initializes exec, drains it and closes it.
func (db *Engine) Run(ctx context.Context, exec execution.Executor) ([]storage.Tuple, error) {
	ectx := execution.NewExecutorContext(ctx, db.Config, db.Logger)
	if err := exec.Init(ectx); err != nil {
		return nil, multierr.Append(err, exec.Close())
	}
	var out []storage.Tuple
	for exec.Next() {
		out = append(out, exec.Current())
	}
	if err := multierr.Append(exec.Error(), exec.Close()); err != nil {
		return nil, err
	}
	return out, nil
}

// Query is an aggregation together with the clauses applied to its output rows.
type Query struct {
	Aggregate *planner.AggregateNode
	// Having keeps only the groups on which it is true. It reads the aggregate's output columns.
	Having planner.Expr
	// Select computes the result columns from the surviving groups. Empty returns the aggregate's columns.
	Select []planner.Expr
	// Limit keeps the first Limit result rows in group-key order; 0 keeps them all.
	Limit int
}

// Plan returns the plan tree of q: the aggregation, then HAVING, then the select list, then the limit.
func (q Query) Plan() planner.PlanNode {
	var plan planner.PlanNode = q.Aggregate
	if q.Having != nil {
		plan = planner.NewFilterNode(plan, q.Having)
	}
	if len(q.Select) > 0 {
		plan = planner.NewProjectionNode(plan, q.Select)
	}
	if q.Limit > 0 {
		plan = planner.NewLimitNode(plan, q.Limit)
	}
	return plan
}

// Execute evaluates q over rows split into partitions. A single partition is aggregated in one stage;
// otherwise every partition is aggregated separately and the partial results are combined.
func (db *Engine) Execute(ctx context.Context, q Query, partitions ...[]storage.Tuple) ([]storage.Tuple, error) {
	if q.Limit < 0 {
		return nil, errors.Errorf("negative limit %d", q.Limit)
	}
	schema := q.Aggregate.Child.OutputSchema()
	execs := make([]execution.Executor, len(partitions))
	for i, rows := range partitions {
		execs[i] = execution.NewValuesExecutor(planner.NewValuesNode(schema, rows))
	}
	plan := q.Plan()
	exec, err := execution.NewQueryExecutor(plan, execs)
	if err != nil {
		return nil, err
	}
	out, err := db.Run(ctx, exec)
	return out, errors.Annotatef(err, "execute %s", plan)
}

// Aggregate evaluates node over rows split into partitions, returning one row per group.
func (db *Engine) Aggregate(ctx context.Context, node *planner.AggregateNode, partitions ...[]storage.Tuple) ([]storage.Tuple, error) {
	return db.Execute(ctx, Query{Aggregate: node}, partitions...)
}
