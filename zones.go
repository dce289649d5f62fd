// SPDX-License-Identifier: MIT

package quantel

import (
	"context"
	"fmt"
	"net/http"
)

// Zones lists the zones visible from the gateway, the local zone first.
func (s *Session) Zones(ctx context.Context) ([]ZoneInfo, error) {
	var out []ZoneInfo
	if err := s.sendBase(ctx, &request{
		method:    http.MethodGet,
		resource:  "",
		operation: "zone.list",
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ISAConnection asks the gateway for its current ISA connection details.
func (s *Session) ISAConnection(ctx context.Context) (*ConnectionDetails, error) {
	var out ConnectionDetails
	if err := s.sendBase(ctx, &request{
		method:    http.MethodGet,
		resource:  "connect",
		operation: "isa.connection",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Servers lists the servers registered in the configured zone.
func (s *Session) Servers(ctx context.Context) ([]ServerInfo, error) {
	if err := s.requireInit(); err != nil {
		return nil, err
	}
	return s.fetchServers(ctx)
}

// fetchServers lists the zone's servers without the init gate; both the
// server cache and the Init sequence need it before the Session is
// ready.
func (s *Session) fetchServers(ctx context.Context) ([]ServerInfo, error) {
	var out []ServerInfo
	if err := s.send(ctx, &request{
		method:    http.MethodGet,
		resource:  s.zonePath("server"),
		operation: "server.list",
	}, &out); err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	return out, nil
}

// Formats lists the video formats registered in the zone.
func (s *Session) Formats(ctx context.Context) ([]FormatInfo, error) {
	var out []FormatInfo
	if err := s.sendZone(ctx, &request{
		method:    http.MethodGet,
		resource:  "format",
		operation: "format.list",
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Format fetches one format by number. ErrNotFound reports an absent
// format.
func (s *Session) Format(ctx context.Context, formatNumber int) (*FormatInfo, error) {
	var out FormatInfo
	if err := s.sendZone(ctx, &request{
		method:    http.MethodGet,
		resource:  fmt.Sprintf("format/%d", formatNumber),
		operation: "format.get",
	}, &out); err != nil {
		if s.isAbsent(err) {
			return nil, fmt.Errorf("%w: format %d", ErrNotFound, formatNumber)
		}
		return nil, err
	}
	return &out, nil
}
