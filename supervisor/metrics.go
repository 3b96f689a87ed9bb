package supervisor

import (
	"fmt"

	"github.com/arloliu/go-dvl/nortek"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "dvl"

// engineCounters maps the engine counters to exported metrics. Values are
// summed over every engine the device has had.
var engineCounters = []struct {
	name  string
	help  string
	value func(nortek.MetricsSnapshot) uint64
}{
	{"commands_sent_total", "Command lines written to the device.",
		func(s nortek.MetricsSnapshot) uint64 { return s.CommandSendCount }},
	{"commands_acked_total", "Commands acknowledged by the device.",
		func(s nortek.MetricsSnapshot) uint64 { return s.CommandAckCount }},
	{"commands_failed_total", "Commands without acknowledgment.",
		func(s nortek.MetricsSnapshot) uint64 { return s.CommandFailCount }},
	{"reply_timeouts_total", "Reply scans that timed out.",
		func(s nortek.MetricsSnapshot) uint64 { return s.TimeoutCount }},
	{"reply_overflows_total", "Reply scans that filled the read buffer.",
		func(s nortek.MetricsSnapshot) uint64 { return s.OverflowCount }},
	{"breaks_total", "Break attempts.",
		func(s nortek.MetricsSnapshot) uint64 { return s.BreakCount }},
	{"break_retries_total", "Break retries.",
		func(s nortek.MetricsSnapshot) uint64 { return s.BreakRetryCount }},
	{"mode_changes_total", "Successful command mode entries.",
		func(s nortek.MetricsSnapshot) uint64 { return s.ModeChangeCount }},
	{"setups_total", "Completed setup sequences.",
		func(s nortek.MetricsSnapshot) uint64 { return s.SetupCount }},
	{"setup_failures_total", "Aborted setup sequences.",
		func(s nortek.MetricsSnapshot) uint64 { return s.SetupFailCount }},
}

// deviceCollectors returns the metrics of d, labeled with its name.
func deviceCollectors(d *device) []prometheus.Collector {
	labels := prometheus.Labels{"device": d.name}
	collectors := make([]prometheus.Collector, 0, len(engineCounters)+3)

	for _, c := range engineCounters {
		collectors = append(collectors, prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "engine",
			Name:        c.name,
			Help:        c.help,
			ConstLabels: labels,
		}, func() float64 { return float64(c.value(d.totals())) }))
	}

	collectors = append(collectors,
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "device",
			Name:        "start_failures_total",
			Help:        "Failed connection or setup attempts.",
			ConstLabels: labels,
		}, func() float64 { return float64(d.failures.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "device",
			Name:        "restarts_total",
			Help:        "Engine replacements after a fault or a restart request.",
			ConstLabels: labels,
		}, func() float64 { return float64(d.restarts.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "device",
			Name:        "state",
			Help:        "Device state: 0 stopped, 1 connecting, 2 configuring, 3 running, 4 backoff.",
			ConstLabels: labels,
		}, func() float64 { return float64(d.state.Get()) }),
	)

	return collectors
}

// registerDevice registers the metrics of d. Nothing stays registered on
// failure.
func registerDevice(reg prometheus.Registerer, d *device) error {
	collectors := deviceCollectors(d)

	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			for _, done := range collectors[:i] {
				reg.Unregister(done)
			}

			return fmt.Errorf("supervisor: register metrics of %q: %w", d.name, err)
		}
	}

	return nil
}
