// SPDX-License-Identifier: MIT

// Package quantel implements a stateful client for the HTTP gateway in
// front of a Quantel ISA (Integrated Server Architecture) system. The
// gateway fronts one ISA zone manager at a time; a Session owns the
// gateway address, the ISA endpoint list, the zone and server selection,
// and a periodic status monitor, and exposes typed operations for ports,
// clips, fragments and copies.
//
// A Session recovers from exactly one failure mode by itself: when the
// gateway loses its upstream ISA session it reconnects once and replays
// the failed call once. Everything else is reported to the caller.
package quantel

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	ilog "github.com/marubit/quantelgw/internal/log"
	"github.com/marubit/quantelgw/internal/metrics"
	"github.com/marubit/quantelgw/internal/netutil"
)

type sessionState int

const (
	stateUnconfigured sessionState = iota
	stateConnectingISA
	stateResolvingServer
	stateReady
)

// Session is a stateful client for one gateway. All methods are safe for
// concurrent use. A Session starts unconfigured; Init connects it.
type Session struct {
	cfg   Config
	httpc *http.Client
	base  zerolog.Logger
	log   zerolog.Logger
	dlog  zerolog.Logger

	isa   *isaManager
	cache *serverCache

	mu         sync.RWMutex
	gatewayURL string
	zone       string
	state      sessionState
	connected  bool
	status     string
	monitored  map[string][]int
	disposed   bool

	monMu   sync.Mutex
	monitor *statusMonitor
}

// NewSession creates a disconnected Session. Call Init to connect it.
func NewSession(cfg Config) *Session {
	cfg = normalizeConfig(cfg)

	var base zerolog.Logger
	if cfg.Logger != nil {
		base = *cfg.Logger
	} else {
		base = ilog.Base()
	}

	s := &Session{
		cfg:    cfg,
		httpc:  cfg.HTTPClient,
		base:   base,
		log:    base.With().Str(ilog.FieldComponent, "session").Logger(),
		dlog:   base.With().Str(ilog.FieldComponent, "dispatch").Logger(),
		isa:    &isaManager{},
		status: statusInitializing,
	}
	s.cache = newServerCache(s.fetchServers)
	metrics.SetMonitorState("initializing")
	return s
}

// InitParams carries the full connection description for Init.
type InitParams struct {
	// GatewayURL is the gateway base address. A missing scheme defaults
	// to http, a trailing slash is trimmed.
	GatewayURL string

	// ISAURLs lists the ISA endpoints the gateway should connect
	// through, master first; backups follow in priority order.
	ISAURLs []string

	// Zone selects the ISA zone; empty means DefaultZone.
	Zone string

	// ServerID selects the controlled server; zero leaves it unset and
	// server-scoped operations unavailable until SetServerID.
	ServerID int
}

// Init runs the full initialization sequence: normalize and store the
// gateway address, connect the gateway to the ISA endpoints, select the
// zone, and resolve the server record when a server is named. Any
// failure rolls the Session back to unconfigured; a failed Init must be
// repeated in full, there is no partially initialized state.
func (s *Session) Init(ctx context.Context, p InitParams) error {
	s.resetConfig()

	gw, err := netutil.EnsureHTTPURL(p.GatewayURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoGatewayURL, err)
	}

	s.mu.Lock()
	s.gatewayURL = gw
	s.state = stateConnectingISA
	s.mu.Unlock()

	if err := s.isa.configure(p.ISAURLs); err != nil {
		s.resetConfig()
		return fmt.Errorf("init: %w", err)
	}
	if _, err := s.connectISA(ctx, triggerInit); err != nil {
		s.resetConfig()
		return fmt.Errorf("init: %w", err)
	}

	zone := p.Zone
	if zone == "" {
		zone = DefaultZone
	}
	s.mu.Lock()
	s.zone = zone
	s.state = stateResolvingServer
	s.mu.Unlock()

	if p.ServerID != 0 {
		if err := s.SetServerID(ctx, p.ServerID); err != nil {
			s.resetConfig()
			return fmt.Errorf("init: %w", err)
		}
	}

	s.mu.Lock()
	s.state = stateReady
	s.mu.Unlock()

	s.log.Info().
		Str(ilog.FieldEvent, "session.init").
		Str(ilog.FieldBaseURL, gw).
		Str(ilog.FieldZone, zone).
		Int(ilog.FieldServerID, p.ServerID).
		Msg("session initialized")
	return nil
}

// resetConfig rolls the Session back to unconfigured: gateway address,
// zone, server selection, ISA endpoints and the cached server record are
// all cleared. The monitor, if running, keeps running and will report
// the missing configuration.
func (s *Session) resetConfig() {
	s.mu.Lock()
	s.gatewayURL = ""
	s.zone = ""
	s.state = stateUnconfigured
	s.mu.Unlock()
	s.isa.reset()
	s.cache.reset()
}

// SetServerID selects the server this Session controls. A non-zero id
// triggers an immediate forced resolution; when the server is not in the
// zone the call fails with ErrServerNotFound but the id stays selected,
// so a later-appearing server is picked up by the next refresh. Zero
// deselects.
func (s *Session) SetServerID(ctx context.Context, id int) error {
	s.cache.setServerID(id)
	if id == 0 {
		return nil
	}
	rec, err := s.cache.get(ctx, true)
	if err != nil {
		return fmt.Errorf("set server id %d: %w", id, err)
	}
	if rec == nil {
		return fmt.Errorf("%w: server %d", ErrServerNotFound, id)
	}
	s.log.Debug().
		Str(ilog.FieldEvent, "session.server_id").
		Int(ilog.FieldServerID, id).
		Str("server_name", rec.Name).
		Msg("server selected")
	return nil
}

// Server returns the record of the controlled server, from cache unless
// force requests a refresh. ErrServerNotFound means the lookup succeeded
// and the server is not present in the zone.
func (s *Session) Server(ctx context.Context, force bool) (*ServerInfo, error) {
	if err := s.requireInit(); err != nil {
		return nil, err
	}
	rec, err := s.cache.get(ctx, force)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: server %d", ErrServerNotFound, s.cache.serverID())
	}
	return rec, nil
}

func (s *Session) requireInit() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != stateReady {
		return ErrNotInitialized
	}
	return nil
}

// Initialized reports whether the last Init completed.
func (s *Session) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == stateReady
}

// Connected reports whether the most recent status poll reached the
// controlled server and found it up. Port conflicts and a pending Init
// degrade the status message without clearing this flag.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// StatusMessage returns the current diagnostic. Empty means healthy;
// before the first poll it reports "initializing".
func (s *Session) StatusMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// GatewayURL returns the normalized gateway base address, empty until a
// successful Init stored one.
func (s *Session) GatewayURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gatewayURL
}

// Zone returns the selected zone, empty until Init.
func (s *Session) Zone() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zone
}

func (s *Session) zoneOrDefault() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.zone == "" {
		return DefaultZone
	}
	return s.zone
}

// ServerID returns the selected server identifier, zero when none.
func (s *Session) ServerID() int {
	return s.cache.serverID()
}

// ISAURLs returns the configured ISA endpoints in priority order.
func (s *Session) ISAURLs() []string {
	return s.isa.list()
}

// LastConnection returns the details of the most recent successful ISA
// connect, nil before one happened.
func (s *Session) LastConnection() *ConnectionDetails {
	return s.isa.connection()
}

// SetMonitoredPorts declares the ports this Session expects to own and
// the channels each should occupy. The declaration only feeds conflict
// detection during status polls; it does not claim anything on the
// server. It replaces any previous declaration.
func (s *Session) SetMonitoredPorts(ports map[string][]int) {
	cp := make(map[string][]int, len(ports))
	for name, channels := range ports {
		cp[name] = append([]int(nil), channels...)
	}
	s.mu.Lock()
	s.monitored = cp
	s.mu.Unlock()
}

// MonitoredPorts returns a copy of the current declaration.
func (s *Session) MonitoredPorts() map[string][]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string][]int, len(s.monitored))
	for name, channels := range s.monitored {
		cp[name] = append([]int(nil), channels...)
	}
	return cp
}

// MonitorServerStatus starts the periodic status poll. The callback
// fires once per change of the computed status, the first poll included,
// with healthy and the diagnostic; it never fires twice for the same
// status. A nil callback stops an active monitor. Calling again replaces
// the previous subscription.
func (s *Session) MonitorServerStatus(cb StatusCallback) {
	s.monMu.Lock()
	defer s.monMu.Unlock()

	if s.monitor != nil {
		s.monitor.shutdown()
		s.monitor = nil
	}
	if cb == nil || s.isDisposed() {
		return
	}

	m := newStatusMonitor(s, cb)
	s.monitor = m
	go m.run()
	s.log.Debug().
		Str(ilog.FieldEvent, "monitor.start").
		Dur("interval", m.interval).
		Msg("status monitor started")
}

// Dispose stops the status monitor and marks the Session dead. No
// callback runs after Dispose returns. In-flight HTTP calls are not
// cancelled; their contexts bound them. Dispose is idempotent.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.mu.Unlock()

	s.monMu.Lock()
	if s.monitor != nil {
		s.monitor.shutdown()
		s.monitor = nil
	}
	s.monMu.Unlock()

	s.log.Debug().
		Str(ilog.FieldEvent, "session.dispose").
		Msg("session disposed")
}

func (s *Session) isDisposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disposed
}

// updateStatus stores connectivity and diagnostic together; callers
// never observe one moved without the other. It reports whether the
// diagnostic changed.
func (s *Session) updateStatus(connected bool, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.status != status
	s.connected = connected
	s.status = status
	return changed
}
