// SPDX-License-Identifier: MIT

package quantel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Ports lists the port assignments on the controlled server.
func (s *Session) Ports(ctx context.Context) ([]PortInfo, error) {
	var out []PortInfo
	if err := s.sendServer(ctx, &request{
		method:    http.MethodGet,
		resource:  "port",
		operation: "port.list",
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Port fetches the transport status of one port. ErrNotFound reports an
// absent port.
func (s *Session) Port(ctx context.Context, portID string) (*PortStatus, error) {
	var out PortStatus
	if err := s.sendServer(ctx, &request{
		method:    http.MethodGet,
		resource:  "port/" + url.PathEscape(portID),
		operation: "port.get",
	}, &out); err != nil {
		if s.isAbsent(err) {
			return nil, fmt.Errorf("%w: port %q", ErrNotFound, portID)
		}
		return nil, err
	}
	return &out, nil
}

// CreatePort assigns a channel to a named port, creating the port when
// it does not exist yet. The result's Assigned flag reports whether the
// grant was newly made; asking again for an assignment the port already
// holds is not an error.
func (s *Session) CreatePort(ctx context.Context, portID string, channel int) (*PortInfo, error) {
	var out PortInfo
	if err := s.sendServer(ctx, &request{
		method:    http.MethodPut,
		resource:  fmt.Sprintf("port/%s/channel/%d", url.PathEscape(portID), channel),
		operation: "port.create",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReleasePort releases a port and its channel assignments.
func (s *Session) ReleasePort(ctx context.Context, portID string) error {
	var out ReleaseStatus
	if err := s.sendServer(ctx, &request{
		method:    http.MethodDelete,
		resource:  "port/" + url.PathEscape(portID),
		operation: "port.release",
	}, &out); err != nil {
		return err
	}
	if !out.Released {
		return fmt.Errorf("quantel: release port %q: gateway reported not released", portID)
	}
	return nil
}

// ResetPort clears a port's loaded fragments and transport state.
func (s *Session) ResetPort(ctx context.Context, portID string) error {
	var out ResetResult
	if err := s.sendServer(ctx, &request{
		method:    http.MethodPost,
		resource:  "port/" + url.PathEscape(portID) + "/reset",
		operation: "port.reset",
	}, &out); err != nil {
		return err
	}
	if !out.Reset {
		return fmt.Errorf("quantel: reset port %q: gateway reported not reset", portID)
	}
	return nil
}

// LoadFragments loads clip fragments onto a port at the given frame
// offset for playout.
func (s *Session) LoadFragments(ctx context.Context, portID string, offset int, fragments []ServerFragment) (*PortLoadStatus, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	var out PortLoadStatus
	if err := s.sendServer(ctx, &request{
		method:    http.MethodPost,
		resource:  "port/" + url.PathEscape(portID) + "/fragments",
		query:     q,
		body:      fragments,
		operation: "port.load",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PortFragments returns the fragments loaded on a port. A non-negative
// start or finish restricts the answer to that frame range; pass -1 to
// leave an end open.
func (s *Session) PortFragments(ctx context.Context, portID string, start, finish int) (*ServerFragments, error) {
	q := url.Values{}
	if start >= 0 {
		q.Set("start", strconv.Itoa(start))
	}
	if finish >= 0 {
		q.Set("finish", strconv.Itoa(finish))
	}
	var out ServerFragments
	if err := s.sendServer(ctx, &request{
		method:    http.MethodGet,
		resource:  "port/" + url.PathEscape(portID) + "/fragments",
		query:     q,
		operation: "port.fragments",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WipeFragments removes fragments from a port. A non-negative start or
// finish bounds the wiped frame range; pass -1 to leave an end open.
func (s *Session) WipeFragments(ctx context.Context, portID string, start, finish int) error {
	q := url.Values{}
	if start >= 0 {
		q.Set("start", strconv.Itoa(start))
	}
	if finish >= 0 {
		q.Set("finish", strconv.Itoa(finish))
	}
	var out WipeResult
	if err := s.sendServer(ctx, &request{
		method:    http.MethodDelete,
		resource:  "port/" + url.PathEscape(portID) + "/fragments",
		query:     q,
		operation: "port.wipe",
	}, &out); err != nil {
		return err
	}
	if !out.Wiped {
		return fmt.Errorf("quantel: wipe fragments on port %q: gateway reported not wiped", portID)
	}
	return nil
}

// Trigger issues a transport command on a port. A non-negative offset
// schedules the command at that frame; -1 means immediately.
func (s *Session) Trigger(ctx context.Context, portID string, trigger Trigger, offset int) error {
	q := url.Values{}
	if offset >= 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	var out TriggerResult
	if err := s.sendServer(ctx, &request{
		method:    http.MethodPost,
		resource:  fmt.Sprintf("port/%s/trigger/%s", url.PathEscape(portID), trigger),
		query:     q,
		operation: "port.trigger",
	}, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("quantel: trigger %s on port %q: gateway reported failure", trigger, portID)
	}
	return nil
}

// Jump performs a hard jump: the port moves to the offset immediately,
// interrupting whatever plays.
func (s *Session) Jump(ctx context.Context, portID string, offset int) error {
	return s.jump(ctx, http.MethodPost, "port.jump", portID, offset)
}

// SetJump arms a jump at the offset without moving the port; a later
// TriggerJump fires it cleanly.
func (s *Session) SetJump(ctx context.Context, portID string, offset int) error {
	return s.jump(ctx, http.MethodPut, "port.set_jump", portID, offset)
}

func (s *Session) jump(ctx context.Context, method, operation, portID string, offset int) error {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	var out JumpResult
	if err := s.sendServer(ctx, &request{
		method:    method,
		resource:  "port/" + url.PathEscape(portID) + "/jump",
		query:     q,
		operation: operation,
	}, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("quantel: jump on port %q to offset %d: gateway reported failure", portID, offset)
	}
	return nil
}
