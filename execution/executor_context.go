package execution

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"mit.edu/dsg/aggengine/config"
	"mit.edu/dsg/aggengine/execution/aggfuncs"
)

// ExecutorContext holds all the state and resources required for query execution.
// It is passed to every Executor during Init.
type ExecutorContext struct {
	ctx     context.Context
	cfg     config.Config
	logger  *zap.Logger
	queryID uuid.UUID
}

// NewExecutorContext creates the context of one query. A nil logger discards logs.
func NewExecutorContext(ctx context.Context, cfg config.Config, logger *zap.Logger) *ExecutorContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New()
	return &ExecutorContext{
		ctx:     ctx,
		cfg:     cfg,
		logger:  logger.With(zap.String("query_id", id.String())),
		queryID: id,
	}
}

// Context is cancelled when the query is abandoned.
func (ctx *ExecutorContext) Context() context.Context {
	return ctx.ctx
}

func (ctx *ExecutorContext) Config() config.Config {
	return ctx.cfg
}

// Logger returns a logger tagged with the query id.
func (ctx *ExecutorContext) Logger() *zap.Logger {
	return ctx.logger
}

func (ctx *ExecutorContext) QueryID() uuid.UUID {
	return ctx.queryID
}

// Builder returns the accumulator builder configured for this query.
func (ctx *ExecutorContext) Builder() aggfuncs.Builder {
	return aggfuncs.Builder{DistinctLimit: ctx.cfg.Aggregation.DistinctLimit}
}
