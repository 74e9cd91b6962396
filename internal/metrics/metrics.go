// Package metrics exports engine activity as Prometheus metrics.
//
// ForWorld returns an engine.Observer with the world label bound, so several
// engines can share one set of collectors.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/dreamtheater/internal/engine"
	"github.com/roach88/dreamtheater/internal/ir"
)

// Namespace prefixes every metric name.
const Namespace = "dreamtheater"

// Metrics holds the collectors.
type Metrics struct {
	triggers    *prometheus.CounterVec
	ruleFires   *prometheus.CounterVec
	transitions *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		triggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "triggers_total",
				Help:      "Events fed to the engine, by whether a rule matched.",
			},
			[]string{"world", "matched"},
		),
		ruleFires: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "rule_fires_total",
				Help:      "Rules applied, by rule category.",
			},
			[]string{"world", "category"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "scene_transitions_total",
				Help:      "Scene changes, by destination scene.",
			},
			[]string{"world", "scene"},
		),
		diagnostics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "dispatch_diagnostics_total",
				Help:      "Diagnostics raised while dispatching effects, by code.",
			},
			[]string{"world", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "trigger_duration_seconds",
				Help:      "Time spent evaluating and applying one event.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
			},
			[]string{"world"},
		),
	}

	for _, c := range []prometheus.Collector{m.triggers, m.ruleFires, m.transitions, m.diagnostics, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// ForWorld returns an observer that records under the given world label.
func (m *Metrics) ForWorld(world string) engine.Observer {
	return &observer{m: m, world: world}
}

type observer struct {
	m     *Metrics
	world string
}

func (o *observer) ObserveTrigger(rec ir.TriggerRecord, matched *ir.Rule, elapsed time.Duration) {
	o.m.triggers.WithLabelValues(o.world, strconv.FormatBool(matched != nil)).Inc()
	if matched != nil {
		o.m.ruleFires.WithLabelValues(o.world, string(matched.Category)).Inc()
	}
	if rec.SceneAfter != rec.SceneBefore {
		o.m.transitions.WithLabelValues(o.world, rec.SceneAfter).Inc()
	}
	for _, d := range rec.Diagnostics {
		o.m.diagnostics.WithLabelValues(o.world, d.Code).Inc()
	}
	o.m.duration.WithLabelValues(o.world).Observe(elapsed.Seconds())
}
