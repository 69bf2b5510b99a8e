package service

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/celerix-dev/celerix-sensors/internal/engine"
	"github.com/celerix-dev/celerix-sensors/pkg/allocation"
)

const (
	opAllocate = "allocate"
	opReassign = "reassign"
	opAdmit    = "admit"
	opDisable  = "disable"
)

// Metrics counts service operations by outcome.
type Metrics struct {
	operations *prometheus.CounterVec
}

// NewMetrics registers the service collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "celerix",
			Subsystem: "sensors",
			Name:      "operations_total",
			Help:      "Allocation service operations by outcome.",
		}, []string{"operation", "outcome"}),
	}
	reg.MustRegister(m.operations)
	return m
}

// observe is deferred with a pointer to the named error result.
func (m *Metrics) observe(op string, err *error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome(*err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if code, ok := allocation.CodeOf(err); ok {
		return strings.ToLower(string(code))
	}
	switch {
	case errors.Is(err, engine.ErrWorkoutNotFound), errors.Is(err, engine.ErrSensorNotFound):
		return "not_found"
	case errors.Is(err, engine.ErrSensorAlreadyDisabled):
		return "already_disabled"
	}
	return "error"
}
