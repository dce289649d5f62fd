// SPDX-License-Identifier: MIT

package quantel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	ilog "github.com/marubit/quantelgw/internal/log"
	"github.com/marubit/quantelgw/internal/metrics"
)

// Diagnostic strings reported through StatusMessage and the status
// callback. Consumers display and compare these verbatim, so they are
// part of the API.
const (
	statusInitializing   = "initializing"
	statusNoGatewayURL   = "gateway URL not set"
	statusNoServerID     = "server id not set"
	statusServerMissing  = "server not found"
	statusServerDown     = "server down"
	statusNotInitialized = "not initialized"
)

// statusMonitor polls the controlled server on a fixed interval and
// pushes status changes to the subscriber. One monitor runs per Session
// at most; Session.MonitorServerStatus owns its lifecycle.
type statusMonitor struct {
	s        *Session
	cb       StatusCallback
	interval time.Duration
	log      zerolog.Logger

	stop chan struct{}
	done chan struct{}
}

func newStatusMonitor(s *Session, cb StatusCallback) *statusMonitor {
	return &statusMonitor{
		s:        s,
		cb:       cb,
		interval: s.cfg.MonitorInterval,
		log:      s.base.With().Str(ilog.FieldComponent, "monitor").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (m *statusMonitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.tick()
	for {
		select {
		case <-m.stop:
			m.log.Debug().
				Str(ilog.FieldEvent, "monitor.stop").
				Msg("status monitor stopped")
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// shutdown stops the loop and waits for it to drain, so no callback runs
// after shutdown returns.
func (m *statusMonitor) shutdown() {
	close(m.stop)
	<-m.done
}

func (m *statusMonitor) tick() {
	status, connected, result := m.evaluate(context.Background())

	changed := m.s.updateStatus(connected, status)
	metrics.IncMonitorTick(result)
	if status == "" {
		metrics.SetMonitorState("healthy")
	} else {
		metrics.SetMonitorState("degraded")
	}

	if !changed {
		return
	}
	healthy := status == ""
	m.log.Info().
		Str(ilog.FieldEvent, "monitor.status_change").
		Bool("healthy", healthy).
		Str(ilog.FieldNewStatus, status).
		Msg("server status changed")
	m.notify(healthy, status)
}

// notify delivers one callback invocation. A panicking subscriber must
// not kill the monitor goroutine, so the panic is caught and routed to
// the out-of-band error hook.
func (m *statusMonitor) notify(healthy bool, status string) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("status callback panic: %v", r)
			m.log.Error().
				Err(err).
				Str(ilog.FieldEvent, "monitor.callback_panic").
				Msg("status callback panicked")
			if m.s.cfg.OnError != nil {
				m.s.cfg.OnError(err)
			}
		}
	}()
	m.cb(healthy, status)
}

// evaluate runs one poll: configuration checks, a forced refresh of the
// server record, then port and channel conflict detection. Every failure
// becomes a degraded status; a poll never terminates the monitor.
//
// connected tracks transport-and-server reachability only: once the
// record is fetched and the server is up, connected is true even when
// conflicts or a pending Init degrade the status message.
func (m *statusMonitor) evaluate(ctx context.Context) (status string, connected bool, result string) {
	s := m.s

	if s.GatewayURL() == "" {
		return statusNoGatewayURL, false, "degraded"
	}
	if s.cache.serverID() == 0 {
		return statusNoServerID, false, "degraded"
	}

	rec, err := s.cache.get(ctx, true)
	if err != nil {
		return "error when monitoring status: " + err.Error(), false, "error"
	}
	if rec == nil {
		return statusServerMissing, false, "degraded"
	}
	if rec.Down {
		return statusServerDown, false, "degraded"
	}

	conflicts := portConflicts(rec, s.MonitoredPorts())
	if len(conflicts) > 0 {
		metrics.AddPortConflicts(len(conflicts))
		return strings.Join(conflicts, "; "), true, "degraded"
	}
	if !s.Initialized() {
		return statusNotInitialized, true, "degraded"
	}
	return "", true, "healthy"
}

// portConflicts checks every declared port against the server record.
// Two kinds of conflict exist: a declared port does not exist and the
// server has no unassigned channel left to ever create it, and a
// declared channel is already assigned to some other port. Ports are
// visited in name order so the joined message is stable across polls.
func portConflicts(rec *ServerInfo, monitored map[string][]int) []string {
	if len(monitored) == 0 {
		return nil
	}

	names := make([]string, 0, len(monitored))
	for name := range monitored {
		names = append(names, name)
	}
	sort.Strings(names)

	assigned := 0
	for _, n := range rec.PortNames {
		if n != "" {
			assigned++
		}
	}

	var conflicts []string
	for _, name := range names {
		exists := false
		for _, n := range rec.PortNames {
			if n == name {
				exists = true
				break
			}
		}
		if !exists && assigned == rec.NumChannels {
			conflicts = append(conflicts, fmt.Sprintf("no room to create port %s", name))
		}
		for _, ch := range monitored[name] {
			if ch < 0 || ch >= len(rec.ChanPorts) {
				continue
			}
			if owner := rec.ChanPorts[ch]; owner != "" && owner != name {
				conflicts = append(conflicts, fmt.Sprintf("channel %d already assigned to %s", ch, owner))
			}
		}
	}
	return conflicts
}
