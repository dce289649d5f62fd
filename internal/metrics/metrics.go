// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus collectors for the gateway client:
// request outcomes and latency, ISA reconnects, and the state of the
// status monitor. Collectors register on the default registry; the host
// process decides how to serve them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantelgw_gateway_requests_total",
		Help: "Gateway HTTP requests by operation, method and outcome",
	}, []string{"operation", "method", "outcome"})

	gatewayRequestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quantelgw_gateway_request_seconds",
		Help:    "Gateway HTTP request duration by operation",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"operation"})

	isaReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantelgw_isa_reconnects_total",
		Help: "ISA connect calls by trigger (init, manual, isa_lost)",
	}, []string{"trigger"})

	monitorStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quantelgw_monitor_status",
		Help: "Status monitor state (one-hot: initializing, healthy, degraded)",
	}, []string{"state"})

	monitorTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantelgw_monitor_ticks_total",
		Help: "Status monitor poll ticks by result (healthy, degraded, error)",
	}, []string{"result"})

	portConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quantelgw_port_conflicts_total",
		Help: "Port/channel assignment conflicts detected by the status monitor",
	})
)

// Request outcome labels.
const (
	OutcomeSuccess        = "success"
	OutcomeGatewayError   = "gateway_error"
	OutcomeTransportError = "transport_error"
	OutcomeBadResponse    = "bad_response"
)

var monitorStates = []string{"initializing", "healthy", "degraded"}

// ObserveGatewayRequest records one gateway HTTP call.
func ObserveGatewayRequest(operation, method, outcome string, duration time.Duration) {
	gatewayRequests.WithLabelValues(operation, method, outcome).Inc()
	gatewayRequestSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordISAReconnect counts an ISA connect call by trigger.
func RecordISAReconnect(trigger string) {
	if trigger == "" {
		trigger = "unknown"
	}
	isaReconnects.WithLabelValues(trigger).Inc()
}

// SetMonitorState records the active monitor state, zeroing the others.
func SetMonitorState(state string) {
	for _, s := range monitorStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		monitorStatus.WithLabelValues(s).Set(value)
	}
}

// IncMonitorTick counts one monitor poll tick by result.
func IncMonitorTick(result string) {
	monitorTicks.WithLabelValues(result).Inc()
}

// AddPortConflicts counts conflicts found during one poll tick.
func AddPortConflicts(n int) {
	if n > 0 {
		portConflicts.Add(float64(n))
	}
}
