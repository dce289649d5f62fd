// SPDX-License-Identifier: MIT

package quantel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/marubit/quantelgw/internal/normalize"
)

// ClipSearchQuery narrows a clip search. Zero-valued fields are omitted
// from the request. Title accepts the gateway's own wildcard syntax and
// is Unicode-normalized before encoding, so composed and decomposed
// spellings of the same title match alike.
type ClipSearchQuery struct {
	Title    string
	ClipID   int
	PoolID   int
	Owner    string
	Category string
	Limit    int
}

func (q ClipSearchQuery) values() url.Values {
	v := url.Values{}
	if q.Title != "" {
		v.Set("Title", normalize.Term(q.Title))
	}
	if q.ClipID != 0 {
		v.Set("ClipID", strconv.Itoa(q.ClipID))
	}
	if q.PoolID != 0 {
		v.Set("PoolID", strconv.Itoa(q.PoolID))
	}
	if q.Owner != "" {
		v.Set("Owner", q.Owner)
	}
	if q.Category != "" {
		v.Set("Category", q.Category)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// SearchClips queries the zone's clip database. An empty query lists
// everything the gateway is willing to return.
func (s *Session) SearchClips(ctx context.Context, query ClipSearchQuery) ([]ClipSummary, error) {
	var out []ClipSummary
	if err := s.sendZone(ctx, &request{
		method:    http.MethodGet,
		resource:  "clip",
		query:     query.values(),
		operation: "clip.search",
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Clip fetches the full record of one clip. ErrNotFound reports an
// absent clip.
func (s *Session) Clip(ctx context.Context, clipID int) (*ClipData, error) {
	var out ClipData
	if err := s.sendZone(ctx, &request{
		method:    http.MethodGet,
		resource:  fmt.Sprintf("clip/%d", clipID),
		operation: "clip.get",
	}, &out); err != nil {
		if s.isAbsent(err) {
			return nil, fmt.Errorf("%w: clip %d", ErrNotFound, clipID)
		}
		return nil, err
	}
	return &out, nil
}

// DeleteClip removes a clip from the zone. It reports whether the
// gateway deleted it; deleting a clip that does not exist returns
// (false, nil), deletion being idempotent from the caller's view.
func (s *Session) DeleteClip(ctx context.Context, clipID int) (bool, error) {
	var out DeleteResult
	if err := s.sendZone(ctx, &request{
		method:    http.MethodDelete,
		resource:  fmt.Sprintf("clip/%d", clipID),
		operation: "clip.delete",
	}, &out); err != nil {
		if s.isAbsent(err) {
			return false, nil
		}
		return false, err
	}
	return out.Deleted, nil
}

// ClipFragments returns the complete timeline of a clip. ErrNotFound
// reports an absent clip.
func (s *Session) ClipFragments(ctx context.Context, clipID int) (*ServerFragments, error) {
	return s.clipFragments(ctx, clipID, fmt.Sprintf("clip/%d/fragments", clipID))
}

// ClipFragmentsRange returns the part of a clip's timeline overlapping
// the in/out frame range.
func (s *Session) ClipFragmentsRange(ctx context.Context, clipID, in, out int) (*ServerFragments, error) {
	return s.clipFragments(ctx, clipID, fmt.Sprintf("clip/%d/fragments/%d-%d", clipID, in, out))
}

func (s *Session) clipFragments(ctx context.Context, clipID int, resource string) (*ServerFragments, error) {
	var out ServerFragments
	if err := s.sendZone(ctx, &request{
		method:    http.MethodGet,
		resource:  resource,
		operation: "clip.fragments",
	}, &out); err != nil {
		if s.isAbsent(err) {
			return nil, fmt.Errorf("%w: clip %d", ErrNotFound, clipID)
		}
		return nil, err
	}
	return &out, nil
}
