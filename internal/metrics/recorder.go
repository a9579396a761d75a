// Package metrics exports engine call and event counters to Prometheus.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"liquidityEngine/internal/model"
)

const namespace = "liquidity_engine"

// Recorder observes engine calls and committed events.
type Recorder struct {
	calls         *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	events        *prometheus.CounterVec
	tickCrossings prometheus.Counter
	lastSeq       prometheus.Gauge
	written       *prometheus.CounterVec
	gatherer      prometheus.Gatherer
}

// NewRecorder registers the engine metrics on reg, or on a private registry
// when reg is nil.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	var gatherer prometheus.Gatherer
	if reg == nil {
		registry := prometheus.NewRegistry()
		reg, gatherer = registry, registry
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	} else {
		gatherer = prometheus.DefaultGatherer
	}

	return &Recorder{
		calls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Engine calls by operation and outcome.",
		}, []string{"op", "result"}),
		callDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Wall time of engine calls.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"op"}),
		events: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Committed events by name.",
		}, []string{"event"}),
		tickCrossings: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_tick_crossings_total",
			Help:      "Ticks crossed by committed swaps.",
		}),
		lastSeq: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_event_seq",
			Help:      "Sequence number of the latest committed event.",
		}),
		written: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_events_total",
			Help:      "Events handed to the sinks by outcome.",
		}, []string{"result"}),
		gatherer: gatherer,
	}
}

// ObserveCall counts a finished call. Rejections are labelled by error kind.
func (r *Recorder) ObserveCall(op string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = string(model.KindOf(err))
	}
	r.calls.WithLabelValues(op, result).Inc()
	r.callDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (r *Recorder) ObserveEvents(events []model.Event) {
	for _, ev := range events {
		r.events.WithLabelValues(string(ev.Name)).Inc()
		if swap, ok := ev.Data.(model.SwapEventData); ok {
			r.tickCrossings.Add(float64(swap.TickCrossings))
		}
		r.lastSeq.Set(float64(ev.Seq))
	}
}

// ObserveWrite counts a batch handed to the sinks.
func (r *Recorder) ObserveWrite(n int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.written.WithLabelValues(result).Add(float64(n))
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.gatherer
}

// WriteTextfile dumps the current metrics in the node exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
