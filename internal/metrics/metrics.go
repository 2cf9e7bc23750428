// Package metrics exposes Prometheus collectors for the bot's background
// work: XP grant cycles and invite attribution.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors shared by the granter and the invite
// attributor.
type Metrics struct {
	registry *prometheus.Registry

	XPGrants     *prometheus.CounterVec
	GrantErrors  prometheus.Counter
	LevelUps     prometheus.Counter
	TicksSkipped prometheus.Counter
	TickDuration prometheus.Histogram
	InviteJoins  *prometheus.CounterVec
}

// New creates and registers the bot's collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		XPGrants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "levelbot_xp_grants_total",
			Help: "XP grants applied, by activity source.",
		}, []string{"source"}),
		GrantErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "levelbot_grant_errors_total",
			Help: "Per-member grant failures that were logged and skipped.",
		}),
		LevelUps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "levelbot_level_ups_total",
			Help: "Level-up announcements emitted.",
		}),
		TicksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "levelbot_ticks_skipped_total",
			Help: "Grant ticks skipped because the previous tick was still running.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "levelbot_tick_duration_seconds",
			Help:    "Duration of completed grant ticks.",
			Buckets: prometheus.DefBuckets,
		}),
		InviteJoins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "levelbot_invite_joins_total",
			Help: "Member joins processed, by attribution outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.XPGrants,
		m.GrantErrors,
		m.LevelUps,
		m.TicksSkipped,
		m.TickDuration,
		m.InviteJoins,
	)
	return m
}

// Handler returns an HTTP handler serving the registered collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
