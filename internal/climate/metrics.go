package climate

import (
	"github.com/prometheus/client_golang/prometheus"

	"heaterctl"
)

const prometheusNamespace = "heaterctl"

var (
	metricMode = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      "hvac_mode",
			Help:      "Current HVAC mode (0 = off, 1 = heat)",
		},
		[]string{"heater"},
	)

	metricTargetTemp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      "target_temperature_celsius",
			Help:      "Target temperature",
		},
		[]string{"heater"},
	)

	metricCurrentTemp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      "current_temperature_celsius",
			Help:      "Last temperature sensor reading",
		},
		[]string{"heater"},
	)

	metricPowerUsage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      "power_usage",
			Help:      "Last power sensor reading",
		},
		[]string{"heater"},
	)

	metricSceneActivations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      "scene_activations_total",
			Help:      "Scene activation commands issued, by result",
		},
		[]string{"heater", "result"},
	)
)

func init() {
	prometheus.MustRegister(metricMode)
	prometheus.MustRegister(metricTargetTemp)
	prometheus.MustRegister(metricCurrentTemp)
	prometheus.MustRegister(metricPowerUsage)
	prometheus.MustRegister(metricSceneActivations)
}

// recordStateMetrics mirrors a published snapshot into the prometheus gauges.
func recordStateMetrics(s heaterctl.HeaterState) {
	mode := 0.0
	if s.Mode == heaterctl.ModeHeat {
		mode = 1.0
	}
	metricMode.WithLabelValues(s.HeaterID).Set(mode)
	metricTargetTemp.WithLabelValues(s.HeaterID).Set(s.TargetTemp)
	if s.CurrentTemp != nil {
		metricCurrentTemp.WithLabelValues(s.HeaterID).Set(*s.CurrentTemp)
	}
	if s.PowerUsage != nil {
		metricPowerUsage.WithLabelValues(s.HeaterID).Set(*s.PowerUsage)
	}
}

func recordSceneActivation(heaterID string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metricSceneActivations.WithLabelValues(heaterID, result).Inc()
}
