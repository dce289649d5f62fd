// SPDX-License-Identifier: MIT

package quantel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	ilog "github.com/marubit/quantelgw/internal/log"
	"github.com/marubit/quantelgw/internal/metrics"
)

// request describes one gateway call before path context (zone, server)
// is attached. resource is relative to the gateway base, without a
// leading slash. operation names the call for metrics and error text.
type request struct {
	method    string
	resource  string
	query     url.Values
	body      any
	operation string
}

// sendBase gates a call on initialization and issues it against the
// gateway root.
func (s *Session) sendBase(ctx context.Context, req *request, out any) error {
	if err := s.requireInit(); err != nil {
		return err
	}
	return s.send(ctx, req, out)
}

// sendZone prefixes the resource with the configured zone.
func (s *Session) sendZone(ctx context.Context, req *request, out any) error {
	if err := s.requireInit(); err != nil {
		return err
	}
	req.resource = s.zonePath(req.resource)
	return s.send(ctx, req, out)
}

// sendServer prefixes the resource with the configured zone and server.
func (s *Session) sendServer(ctx context.Context, req *request, out any) error {
	if err := s.requireInit(); err != nil {
		return err
	}
	id := s.cache.serverID()
	if id == 0 {
		return ErrNoServerID
	}
	req.resource = s.zonePath(fmt.Sprintf("server/%d/%s", id, req.resource))
	return s.send(ctx, req, out)
}

func (s *Session) zonePath(resource string) string {
	return url.PathEscape(s.zoneOrDefault()) + "/" + resource
}

// send issues one gateway call with the single built-in recovery: when
// the gateway answers 502 asking for a Quantel ISA first, it has lost
// its upstream session. The dispatcher reconnects through the configured
// endpoints once and replays the call once; the replay's outcome is
// final whatever it is.
func (s *Session) send(ctx context.Context, req *request, out any) error {
	err := s.sendOnce(ctx, req, out)
	if err == nil || !isISALost(err) {
		return err
	}

	s.dlog.Warn().
		Str(ilog.FieldEvent, "gateway.isa_lost").
		Str("operation", req.operation).
		Msg("gateway lost its ISA session, reconnecting")
	if _, rerr := s.connectISA(ctx, triggerISALost); rerr != nil {
		return fmt.Errorf("reconnect after lost ISA session: %w", rerr)
	}
	return s.sendOnce(ctx, req, out)
}

// sendOnce performs exactly one HTTP exchange: build, send, classify,
// decode. No retries, no recovery.
func (s *Session) sendOnce(ctx context.Context, req *request, out any) error {
	base := s.GatewayURL()
	if base == "" {
		return ErrNoGatewayURL
	}

	full := base + "/" + req.resource
	if len(req.query) > 0 {
		full += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		buf, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", req.operation, err)
		}
		body = bytes.NewReader(buf)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	requestID := uuid.New().String()
	ctx = ilog.ContextWithRequestID(ctx, requestID)
	logger := ilog.WithContext(ctx, s.dlog)

	httpReq, err := http.NewRequestWithContext(ctx, req.method, full, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", req.operation, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-Id", requestID)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.httpc.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveGatewayRequest(req.operation, req.method, metrics.OutcomeTransportError, duration)
		logger.Debug().
			Err(err).
			Str(ilog.FieldEvent, "gateway.transport_error").
			Str(ilog.FieldMethod, req.method).
			Str(ilog.FieldPath, req.resource).
			Msg("gateway request failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s %s: %w", req.method, req.resource, ErrTimeout)
		}
		return fmt.Errorf("%s %s: %w", req.method, req.resource, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveGatewayRequest(req.operation, req.method, metrics.OutcomeTransportError, duration)
		return fmt.Errorf("%s %s: read response: %w", req.method, req.resource, err)
	}

	if ge := classifyPayload(payload); ge != nil {
		ge.Operation = req.operation
		metrics.ObserveGatewayRequest(req.operation, req.method, metrics.OutcomeGatewayError, duration)
		logger.Debug().
			Str(ilog.FieldEvent, "gateway.error_payload").
			Str(ilog.FieldMethod, req.method).
			Str(ilog.FieldPath, req.resource).
			Int("gateway_status", ge.Status).
			Msg("gateway returned an error payload")
		return ge
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			metrics.ObserveGatewayRequest(req.operation, req.method, metrics.OutcomeBadResponse, duration)
			return fmt.Errorf("%w: %s %s (http %d): %v", ErrBadResponse, req.method, req.resource, resp.StatusCode, err)
		}
	}

	metrics.ObserveGatewayRequest(req.operation, req.method, metrics.OutcomeSuccess, duration)
	logger.Debug().
		Str(ilog.FieldEvent, "gateway.request").
		Str(ilog.FieldMethod, req.method).
		Str(ilog.FieldPath, req.resource).
		Dur("duration", duration).
		Msg("gateway request")
	return nil
}
