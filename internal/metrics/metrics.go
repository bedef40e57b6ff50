// Package metrics records report outcomes on a private prometheus registry
// and writes them in the node-exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Apply results
const (
	ResultApplied = "applied"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// Recorder holds the metrics of one invocation
type Recorder struct {
	registry *prometheus.Registry

	recommendations  *prometheus.GaugeVec
	estimatedSavings *prometheus.GaugeVec
	idleWarehouses   prometheus.Gauge
	costSpikeRatio   *prometheus.GaugeVec
	applyChanges     *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec

	spikes map[string]float64
}

// NewRecorder creates a recorder on its own registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		spikes:   make(map[string]float64),
		recommendations: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "snowops_recommendations",
				Help: "Number of recommendations produced by the last run of a report",
			},
			[]string{"report"},
		),
		estimatedSavings: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "snowops_estimated_savings",
				Help: "Estimated monthly savings in USD identified by a report",
			},
			[]string{"report"},
		),
		idleWarehouses: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "snowops_idle_warehouses",
				Help: "Number of warehouses with idle windows in the lookback period",
			},
		),
		costSpikeRatio: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "snowops_cost_spike_ratio",
				Help: "Largest daily credit spike relative to the trailing mean, per warehouse",
			},
			[]string{"warehouse"},
		),
		applyChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snowops_apply_changes_total",
				Help: "Planned changes by apply outcome",
			},
			[]string{"result"},
		),
		commandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snowops_command_duration_seconds",
				Help:    "Duration of a command in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"command"},
		),
	}
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Recommendations sets the recommendation count and savings of a report.
func (r *Recorder) Recommendations(report string, count int, savingsUSD float64) {
	r.recommendations.WithLabelValues(report).Set(float64(count))
	r.estimatedSavings.WithLabelValues(report).Set(savingsUSD)
}

// IdleWarehouses sets the idle warehouse count
func (r *Recorder) IdleWarehouses(n int) {
	r.idleWarehouses.Set(float64(n))
}

// CostSpike keeps the largest spike ratio seen for a warehouse.
func (r *Recorder) CostSpike(warehouse string, ratio float64) {
	if current, ok := r.spikes[warehouse]; ok && current >= ratio {
		return
	}
	r.spikes[warehouse] = ratio
	r.costSpikeRatio.WithLabelValues(warehouse).Set(ratio)
}

// ApplyOutcome counts changes by result
func (r *Recorder) ApplyOutcome(applied, failed, skipped int) {
	r.applyChanges.WithLabelValues(ResultApplied).Add(float64(applied))
	r.applyChanges.WithLabelValues(ResultFailed).Add(float64(failed))
	r.applyChanges.WithLabelValues(ResultSkipped).Add(float64(skipped))
}

// ObserveCommand records how long a command ran
func (r *Recorder) ObserveCommand(command string, elapsed time.Duration) {
	r.commandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
