package grid

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	semanticsLabel = "semantics"
)

var (
	gridElementCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spatialgrid_element_count",
		Help: "The number of elements stored in the grid.",
	}, []string{semanticsLabel})

	gridElementCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatialgrid_element_count_total",
		Help: "The total number of elements ever inserted.",
	}, []string{semanticsLabel})

	gridCellCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spatialgrid_cell_count",
		Help: "The number of live cells in the grid.",
	}, []string{semanticsLabel})
)

func instrumentAddElement(semantics string) {
	gridElementCount.
		With(prometheus.Labels{semanticsLabel: semantics}).
		Inc()
	gridElementCountTotal.
		With(prometheus.Labels{semanticsLabel: semantics}).
		Inc()
}

func instrumentRemoveElement(semantics string) {
	gridElementCount.
		With(prometheus.Labels{semanticsLabel: semantics}).
		Dec()
}

func instrumentSetCellGauge(semantics string, count int) {
	gridCellCount.
		With(prometheus.Labels{semanticsLabel: semantics}).
		Set(float64(count))
}
