// SPDX-License-Identifier: MIT

package quantel

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// serverCache holds the last resolved record of the controlled server.
// Concurrent refreshes are collapsed through singleflight so the status
// monitor and application calls share one in-flight listing request.
//
// A nil record with valid set means the lookup succeeded and the server
// is not in the zone; that absence is cached like any other answer.
type serverCache struct {
	fetch func(ctx context.Context) ([]ServerInfo, error)

	mu    sync.RWMutex
	id    int
	rec   *ServerInfo
	valid bool

	flight singleflight.Group
}

func newServerCache(fetch func(ctx context.Context) ([]ServerInfo, error)) *serverCache {
	return &serverCache{fetch: fetch}
}

func (c *serverCache) serverID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// setServerID changes the configured identifier. A change invalidates
// the cached record; setting the same identifier again keeps it.
func (c *serverCache) setServerID(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == c.id {
		return
	}
	c.id = id
	c.rec = nil
	c.valid = false
}

func (c *serverCache) invalidate() {
	c.mu.Lock()
	c.rec = nil
	c.valid = false
	c.mu.Unlock()
}

func (c *serverCache) reset() {
	c.mu.Lock()
	c.id = 0
	c.rec = nil
	c.valid = false
	c.mu.Unlock()
}

// get returns the cached record, refreshing it first when force is set
// or nothing valid is held. The flight key carries the identifier so a
// refresh for a superseded id never feeds a caller asking about the new
// one. (nil, nil) means the lookup worked and the server is absent.
func (c *serverCache) get(ctx context.Context, force bool) (*ServerInfo, error) {
	c.mu.RLock()
	id := c.id
	if !force && c.valid {
		rec := c.rec
		c.mu.RUnlock()
		return rec, nil
	}
	c.mu.RUnlock()

	if id == 0 {
		return nil, ErrNoServerID
	}

	v, err, _ := c.flight.Do(strconv.Itoa(id), func() (any, error) {
		servers, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		var rec *ServerInfo
		for i := range servers {
			if servers[i].Ident == id {
				r := servers[i]
				rec = &r
				break
			}
		}
		c.mu.Lock()
		if c.id == id {
			c.rec = rec
			c.valid = true
		}
		c.mu.Unlock()
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	rec, _ := v.(*ServerInfo)
	return rec, nil
}
