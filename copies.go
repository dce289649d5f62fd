// SPDX-License-Identifier: MIT

package quantel

import (
	"context"
	"fmt"
	"net/http"
)

// CloneClip copies a clip between pools or zones. When the destination
// already holds a clone of the source the gateway reuses it: the result
// then carries CopyCreated false and the existing clip, which is a
// success, not a failure.
func (s *Session) CloneClip(ctx context.Context, req CloneRequest) (*CloneResult, error) {
	var out CloneResult
	if err := s.sendZone(ctx, &request{
		method:    http.MethodPost,
		resource:  "copy",
		body:      req,
		operation: "copy.clone",
	}, &out); err != nil {
		if s.isAbsent(err) {
			return nil, fmt.Errorf("%w: clip %d", ErrNotFound, req.ClipID)
		}
		return nil, err
	}
	return &out, nil
}

// Copies lists the copy operations the zone is tracking.
func (s *Session) Copies(ctx context.Context) ([]CopyProgress, error) {
	var out []CopyProgress
	if err := s.sendZone(ctx, &request{
		method:    http.MethodGet,
		resource:  "copy",
		operation: "copy.list",
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CopyProgressByID reports the remaining work on the copy that produced
// the given destination clip. ErrNotFound means no copy is tracked for
// it, which is also what a finished copy eventually becomes.
func (s *Session) CopyProgressByID(ctx context.Context, copyID int) (*CopyProgress, error) {
	var out CopyProgress
	if err := s.sendZone(ctx, &request{
		method:    http.MethodGet,
		resource:  fmt.Sprintf("copy/%d", copyID),
		operation: "copy.progress",
	}, &out); err != nil {
		if s.isAbsent(err) {
			return nil, fmt.Errorf("%w: copy %d", ErrNotFound, copyID)
		}
		return nil, err
	}
	return &out, nil
}
