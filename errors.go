// SPDX-License-Identifier: MIT

package quantel

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotInitialized = errors.New("quantel: session not initialized")
	ErrNoGatewayURL   = errors.New("quantel: gateway URL not set")
	ErrNoServerID     = errors.New("quantel: server id not set")
	ErrNoISAEndpoints = errors.New("quantel: no ISA endpoints configured")
	ErrServerNotFound = errors.New("quantel: server not present in zone")
	ErrNotFound       = errors.New("quantel: not found")
	ErrBadResponse    = errors.New("quantel: malformed gateway response")
	ErrTimeout        = errors.New("quantel: gateway request timed out")
)

// GatewayError is the structured error payload the gateway returns in
// place of a result: a non-200 status plus the gateway's own message and
// stack trace text.
type GatewayError struct {
	Operation string
	Status    int
	Message   string
	Stack     string
}

func (e *GatewayError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("quantel: %s: gateway status %d: %s", e.Operation, e.Status, e.Message)
	}
	return fmt.Sprintf("quantel: gateway status %d: %s", e.Status, e.Message)
}

// classifyPayload decides whether a decoded response body is the
// gateway's error shape: a record with a non-200 numeric status, a
// string message and a string stack. Anything else, including payloads
// that merely resemble the shape, is a successful result and returns
// nil.
func classifyPayload(body []byte) *GatewayError {
	var probe struct {
		Status  *float64 `json:"status"`
		Message *string  `json:"message"`
		Stack   *string  `json:"stack"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil
	}
	if probe.Status == nil || probe.Message == nil || probe.Stack == nil {
		return nil
	}
	status := int(*probe.Status)
	if status == 200 {
		return nil
	}
	return &GatewayError{Status: status, Message: *probe.Message, Stack: *probe.Stack}
}

var isaLostPattern = regexp.MustCompile(`(?i)first provide a quantel isa`)

// isISALost reports the gateway's signal that it has lost its upstream
// ISA session: status 502 with the connect hint in the message. This is
// the one condition the dispatcher recovers from on its own.
func isISALost(err error) bool {
	var ge *GatewayError
	if !errors.As(err, &ge) {
		return false
	}
	return ge.Status == 502 && isaLostPattern.MatchString(ge.Message)
}

// isAbsence disambiguates the gateway's two uses of 404. An error
// reporting HTTP 404 whose message lacks the gateway's generic routing
// marker means the requested entity does not exist; with the marker it
// is a misrouted request and must stay an error. The marker text has
// changed across gateway versions, so it is configuration, not a
// constant.
func isAbsence(err error, marker string) bool {
	var ge *GatewayError
	if !errors.As(err, &ge) {
		return false
	}
	if ge.Status != 404 && !strings.Contains(ge.Message, "404") {
		return false
	}
	if marker == "" {
		return true
	}
	return !strings.Contains(ge.Message, marker)
}

// IsNotFound reports whether err means the requested entity (clip, port,
// copy, format) does not exist, as opposed to the request having failed.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func (s *Session) isAbsent(err error) bool {
	return isAbsence(err, s.cfg.NotFoundText)
}
