// SPDX-License-Identifier: MIT

package quantel

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/marubit/quantelgw/internal/env"
)

const (
	// DefaultZone is the zone selected when Init is given none.
	DefaultZone = "default"

	// DefaultRequestTimeout bounds each gateway HTTP call. The gateway
	// is expected to be LAN-local; a slow answer is as useless as none.
	DefaultRequestTimeout = 3 * time.Second

	// DefaultMonitorInterval is the status poll cadence.
	DefaultMonitorInterval = 3 * time.Second

	// DefaultNotFoundText is the marker the gateway embeds in its
	// generic routing 404s. A 404 without it reports a missing entity.
	DefaultNotFoundText = "Not found. Request"
)

// StatusCallback receives monitor updates: healthy is true when the
// controlled server is reachable, up and free of port conflicts, and
// status carries the diagnostic when it is not. The callback runs on the
// monitor goroutine; it must not block.
type StatusCallback func(healthy bool, status string)

// Config carries the tunables of a Session. The zero value is usable;
// every field falls back to its default.
type Config struct {
	// RequestTimeout bounds every gateway HTTP call.
	RequestTimeout time.Duration

	// MonitorInterval is the wait between status polls.
	MonitorInterval time.Duration

	// NotFoundText overrides the routing-404 marker for gateways whose
	// generic message differs from DefaultNotFoundText.
	NotFoundText string

	// HTTPClient overrides the default OpenTelemetry-instrumented
	// client. Its own timeout, if any, applies on top of
	// RequestTimeout.
	HTTPClient *http.Client

	// Logger overrides the package logger.
	Logger *zerolog.Logger

	// OnError receives errors that surface outside any caller's stack,
	// such as a panicking status callback. Optional.
	OnError func(error)
}

// DefaultConfig returns a Config seeded from the QGW_* environment
// variables where set.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:  env.Duration("QGW_REQUEST_TIMEOUT", DefaultRequestTimeout),
		MonitorInterval: env.Duration("QGW_MONITOR_INTERVAL", DefaultMonitorInterval),
		NotFoundText:    env.String("QGW_NOT_FOUND_TEXT", DefaultNotFoundText),
	}
}

func normalizeConfig(cfg Config) Config {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = DefaultMonitorInterval
	}
	if cfg.NotFoundText == "" {
		cfg.NotFoundText = DefaultNotFoundText
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return cfg
}
