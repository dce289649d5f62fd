// SPDX-License-Identifier: MIT

package quantel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	ilog "github.com/marubit/quantelgw/internal/log"
	"github.com/marubit/quantelgw/internal/metrics"
	"github.com/marubit/quantelgw/internal/netutil"
)

// Reconnect triggers, recorded as metric labels.
const (
	triggerInit    = "init"
	triggerManual  = "manual"
	triggerISALost = "isa_lost"
)

// isaManager owns the ordered ISA endpoint list and the details of the
// last successful connect. The list is replaced wholesale on every
// configure, never merged; order is significance, master first.
type isaManager struct {
	mu        sync.Mutex
	endpoints []string
	details   *ConnectionDetails
}

func (m *isaManager) configure(urls []string) error {
	eps := make([]string, 0, len(urls))
	for _, u := range urls {
		ep, err := netutil.NormalizeEndpoint(u)
		if err != nil {
			return fmt.Errorf("isa endpoint %q: %w", u, err)
		}
		eps = append(eps, ep)
	}
	m.mu.Lock()
	m.endpoints = eps
	m.mu.Unlock()
	return nil
}

func (m *isaManager) list() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.endpoints...)
}

// connectResource builds the gateway resource for a connect call: the
// endpoints joined master-first with commas and escaped as a single
// path segment, so the separators travel as %2C.
func (m *isaManager) connectResource() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.endpoints) == 0 {
		return "", ErrNoISAEndpoints
	}
	return "connect/" + url.PathEscape(strings.Join(m.endpoints, ",")), nil
}

func (m *isaManager) setDetails(d *ConnectionDetails) {
	m.mu.Lock()
	m.details = d
	m.mu.Unlock()
}

func (m *isaManager) connection() *ConnectionDetails {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.details
}

func (m *isaManager) reset() {
	m.mu.Lock()
	m.endpoints = nil
	m.details = nil
	m.mu.Unlock()
}

// ConnectToISA replaces the configured ISA endpoint list when addresses
// are given, then asks the gateway to (re)establish its upstream session
// through them. With no arguments the current list is replayed. Accepted
// forms are host, host:port and http://host:port; schemes are stripped
// before the list is sent.
func (s *Session) ConnectToISA(ctx context.Context, isaURLs ...string) (*ConnectionDetails, error) {
	if len(isaURLs) > 0 {
		if err := s.isa.configure(isaURLs); err != nil {
			return nil, err
		}
	}
	return s.connectISA(ctx, triggerManual)
}

// ReconnectToISA replays the gateway connect call with the endpoints
// already configured.
func (s *Session) ReconnectToISA(ctx context.Context) (*ConnectionDetails, error) {
	return s.connectISA(ctx, triggerManual)
}

func (s *Session) connectISA(ctx context.Context, trigger string) (*ConnectionDetails, error) {
	resource, err := s.isa.connectResource()
	if err != nil {
		return nil, err
	}
	var details ConnectionDetails
	if err := s.sendOnce(ctx, &request{
		method:    http.MethodGet,
		resource:  resource,
		operation: "isa.connect",
	}, &details); err != nil {
		return nil, fmt.Errorf("connect to ISA: %w", err)
	}
	s.isa.setDetails(&details)
	metrics.RecordISAReconnect(trigger)
	s.log.Info().
		Str(ilog.FieldEvent, "isa.connect").
		Str("trigger", trigger).
		Str(ilog.FieldISA, details.HREF).
		Int("alternates", len(details.Refs)).
		Msg("connected to ISA")
	return &details, nil
}
