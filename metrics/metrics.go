package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Label constants.
const (
	LblStage = "stage"
	LblKind  = "kind"
	LblCode  = "code"

	StageSingle  = "single"
	StagePartial = "partial"
	StageFinal   = "final"
)

var (
	RowsConsumedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aggengine",
			Subsystem: "aggregation",
			Name:      "rows_consumed_total",
			Help:      "Counter of input rows fed to accumulators.",
		}, []string{LblStage})

	GroupsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aggengine",
			Subsystem: "aggregation",
			Name:      "groups_total",
			Help:      "Counter of groups produced.",
		}, []string{LblStage})

	PartialStatesShipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aggengine",
			Subsystem: "aggregation",
			Name:      "partial_states_shipped_total",
			Help:      "Counter of serialized partial states routed to final workers.",
		})

	PartialStateBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "aggengine",
			Subsystem: "aggregation",
			Name:      "partial_state_bytes",
			Help:      "Bucketed histogram of serialized partial state sizes.",
			Buckets:   prometheus.ExponentialBuckets(4, 4, 12), // 4B ~ 16MiB
		})

	MergeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aggengine",
			Subsystem: "aggregation",
			Name:      "merge_total",
			Help:      "Counter of accumulator merges.",
		}, []string{LblKind})

	AggregateErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aggengine",
			Subsystem: "aggregation",
			Name:      "error_total",
			Help:      "Counter of aggregation errors.",
		}, []string{LblCode})
)

var registerOnce sync.Once

// RegisterMetrics registers the aggregation metrics with the default registry. It is safe to call more
// than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RowsConsumedCounter)
		prometheus.MustRegister(GroupsCounter)
		prometheus.MustRegister(PartialStatesShipped)
		prometheus.MustRegister(PartialStateBytes)
		prometheus.MustRegister(MergeCounter)
		prometheus.MustRegister(AggregateErrorCounter)
	})
}
