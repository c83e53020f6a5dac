package execution

import (
	"hash"
	"time"

	"github.com/pingcap/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spaolacci/murmur3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/execution/aggfuncs"
	"mit.edu/dsg/aggengine/metrics"
	"mit.edu/dsg/aggengine/planner"
	"mit.edu/dsg/aggengine/storage"
)

// shippedGroup is one group's partial result as it leaves a partition: the encoded key, which routes it
// to a final worker, and one encoded state per partial aggregate.
type shippedGroup struct {
	rawKey []byte
	key    storage.Tuple
	states [][]byte
}

// TwoPhaseAggregateExecutor evaluates an AggregateNode over partitioned input without moving raw rows.
//
// The plan is split into partial and final stages (planner.AggregateNode.SplitPlan). Each partition runs
// the partial aggregates over its own rows with its own accumulators, in parallel. Every group's partial
// states are serialized and routed by a hash of the group key to one of the final workers, which own
// their groups exclusively and merge the states in partition order. The final expressions then combine
// the merged partial values. Output rows are ordered by group key.
type TwoPhaseAggregateExecutor struct {
	plan       *planner.AggregateNode
	partitions []Executor

	// Runtime state
	split        *planner.SplitAggregatePlan
	tuples       []storage.Tuple
	built        bool
	currentIndex int
	ctx          *ExecutorContext
	err          error
}

// NewTwoPhaseAggregateExecutor creates an executor that aggregates the rows of all partitions as if
// they were one input. Every partition must produce rows of plan.Child's schema.
func NewTwoPhaseAggregateExecutor(plan *planner.AggregateNode, partitions []Executor) *TwoPhaseAggregateExecutor {
	return &TwoPhaseAggregateExecutor{
		plan:         plan,
		partitions:   partitions,
		currentIndex: -1,
	}
}

func (e *TwoPhaseAggregateExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *TwoPhaseAggregateExecutor) Init(ctx *ExecutorContext) error {
	split, err := e.plan.SplitPlan()
	if err != nil {
		return errors.Trace(err)
	}
	e.split = split
	e.tuples = nil
	e.built = false
	e.currentIndex = -1
	e.ctx = ctx
	e.err = nil

	for _, i := range split.Centralized {
		ctx.Logger().Info("aggregate is not decomposable, shipping its complete state to the final stage",
			zap.Stringer("aggregate", e.plan.AggClauses[i]))
	}
	for _, p := range e.partitions {
		if err := p.Init(ctx); err != nil {
			return err
		}
	}
	return nil
}

// partialStage aggregates every partition into per-group partial states. The result is indexed by
// partition; within a partition, groups are in first-seen order.
func (e *TwoPhaseAggregateExecutor) partialStage() ([][]shippedGroup, error) {
	partials := e.split.PartialAggregates()
	builder := e.ctx.Builder()
	shipped := make([][]shippedGroup, len(e.partitions))

	g, gctx := errgroup.WithContext(e.ctx.Context())
	g.SetLimit(concurrency(e.ctx.Config().Aggregation.PartialConcurrency))
	for i, child := range e.partitions {
		i, child := i, child
		g.Go(func() error {
			table := newGroupTable(e.split.GroupByClause, partials, builder)
			if err := table.consume(gctx, child, metrics.StagePartial); err != nil {
				return errors.Annotatef(err, "partition %d", i)
			}
			groups := make([]shippedGroup, 0, len(table.groups))
			for _, grp := range table.groups {
				sg := shippedGroup{
					rawKey: storage.EncodeTuple(nil, grp.key),
					key:    grp.key,
					states: make([][]byte, len(grp.accs)),
				}
				for j, acc := range grp.accs {
					data, err := aggfuncs.Marshal(acc)
					if err != nil {
						return errors.Trace(err)
					}
					metrics.PartialStateBytes.Observe(float64(len(data)))
					sg.states[j] = data
				}
				groups = append(groups, sg)
			}
			metrics.GroupsCounter.WithLabelValues(metrics.StagePartial).Add(float64(len(groups)))
			metrics.PartialStatesShipped.Add(float64(len(groups) * len(partials)))
			shipped[i] = groups
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return shipped, nil
}

// finalStage merges the shipped states into one group per key. Groups are hashed to workers, so each
// group is merged by exactly one goroutine; states are routed in partition order and every worker's inbox
// is FIFO, so each group sees its partials in partition order.
func (e *TwoPhaseAggregateExecutor) finalStage(shipped [][]shippedGroup) (*xsync.MapOf[string, *group], error) {
	partials := e.split.PartialAggregates()
	builder := e.ctx.Builder()
	workers := concurrency(e.ctx.Config().Aggregation.FinalConcurrency)
	groups := xsync.NewMapOf[string, *group]()

	g, gctx := errgroup.WithContext(e.ctx.Context())
	inboxes := make([]chan shippedGroup, workers)
	for w := range inboxes {
		inbox := make(chan shippedGroup, 64)
		inboxes[w] = inbox
		g.Go(func() error {
			for sg := range inbox {
				target, _ := groups.LoadOrCompute(string(sg.rawKey), func() *group {
					return newGroup(sg.key, partials, builder)
				})
				if err := target.merge(sg.states, builder); err != nil {
					return err
				}
			}
			return nil
		})
	}

	h := murmur3.New32()
route:
	for _, partition := range shipped {
		for _, sg := range partition {
			inbox := inboxes[workerFor(h, sg.rawKey, workers)]
			select {
			case inbox <- sg:
			case <-gctx.Done():
				break route
			}
		}
	}
	for _, inbox := range inboxes {
		close(inbox)
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := e.ctx.Context().Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return groups, nil
}

// workerFor picks the final worker that owns the group with the given encoded key.
//
// Route through the streaming hasher, not murmur3.Sum32: Sum32 walks the key with uintptr arithmetic,
// which checkptr (enabled by -race) rejects as an invalid pointer.
func workerFor(h hash.Hash32, rawKey []byte, workers int) int {
	h.Reset()
	_, _ = h.Write(rawKey)
	return int(h.Sum32() % uint32(workers))
}

// evaluate computes the output row of every merged group.
func (e *TwoPhaseAggregateExecutor) evaluate(groups *xsync.MapOf[string, *group]) error {
	partials := e.split.PartialAggregates()
	builder := e.ctx.Builder()
	finals := make([]*aggfuncs.FinalExpr, len(e.split.Finals))
	for i, final := range e.split.Finals {
		compiled, err := builder.CompileFinal(final, e.split.PartialNames(), e.split.PartialSchema())
		if err != nil {
			return errors.Trace(err)
		}
		finals[i] = compiled
	}

	if len(e.split.GroupByClause) == 0 && groups.Size() == 0 {
		groups.Store("", newGroup(storage.FromValues(), partials, builder))
	}

	out := newSortedRows(len(e.split.GroupByClause))
	merged := make([]common.Value, len(partials))
	var err error
	groups.Range(func(_ string, g *group) bool {
		for i, acc := range g.accs {
			if merged[i], err = acc.Eval(); err != nil {
				err = errors.Annotatef(err, "evaluate %s for group %s", e.split.Partials[i].Name, g.key)
				return false
			}
		}
		row := storage.FromValues(merged...)
		values := make([]common.Value, len(finals))
		for i, f := range finals {
			if values[i], err = f.Eval(row); err != nil {
				err = errors.Annotatef(err, "evaluate %s for group %s", f, g.key)
				return false
			}
		}
		out.add(g.key.Extend(values))
		return true
	})
	if err != nil {
		return err
	}
	e.tuples = out.rows()
	metrics.GroupsCounter.WithLabelValues(metrics.StageFinal).Add(float64(len(e.tuples)))
	return nil
}

func (e *TwoPhaseAggregateExecutor) run() error {
	logger := e.ctx.Logger()
	start := time.Now()
	shipped, err := e.partialStage()
	if err != nil {
		return err
	}
	logger.Debug("partial stage done",
		zap.Int("partitions", len(e.partitions)), zap.Duration("elapsed", time.Since(start)))

	start = time.Now()
	groups, err := e.finalStage(shipped)
	if err != nil {
		return err
	}
	logger.Debug("final stage merged",
		zap.Int("groups", groups.Size()), zap.Duration("elapsed", time.Since(start)))

	return e.evaluate(groups)
}

func (e *TwoPhaseAggregateExecutor) Next() bool {
	if e.err != nil {
		return false
	}
	if !e.built {
		if err := e.run(); err != nil {
			recordError(err)
			e.ctx.Logger().Warn("two-phase aggregation failed", zap.Error(err))
			e.err = err
			return false
		}
		e.built = true
	}
	e.currentIndex++
	return e.currentIndex < len(e.tuples)
}

func (e *TwoPhaseAggregateExecutor) Current() storage.Tuple {
	return e.tuples[e.currentIndex]
}

func (e *TwoPhaseAggregateExecutor) Error() error {
	return e.err
}

// Close closes every partition and reports all of their errors.
func (e *TwoPhaseAggregateExecutor) Close() error {
	errs := make([]error, len(e.partitions))
	for i, p := range e.partitions {
		errs[i] = p.Close()
	}
	return multierr.Combine(errs...)
}
