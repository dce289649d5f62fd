// SPDX-License-Identifier: MIT
package quantel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fixedServers(servers ...ServerInfo) func(context.Context) ([]ServerInfo, error) {
	return func(context.Context) ([]ServerInfo, error) {
		return servers, nil
	}
}

func TestServerCacheCachesUntilForced(t *testing.T) {
	var calls atomic.Int32
	c := newServerCache(func(ctx context.Context) ([]ServerInfo, error) {
		calls.Add(1)
		return []ServerInfo{{Ident: 1100, Name: "sq-1100"}}, nil
	})
	c.setServerID(1100)
	ctx := context.Background()

	rec, err := c.get(ctx, false)
	if err != nil || rec == nil || rec.Ident != 1100 {
		t.Fatalf("first get: rec=%+v err=%v", rec, err)
	}
	if _, err := c.get(ctx, false); err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fetched %d times, want 1 (second get must hit the cache)", got)
	}

	if _, err := c.get(ctx, true); err != nil {
		t.Fatalf("forced get: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("fetched %d times after force, want 2", got)
	}
}

func TestServerCacheCachesAbsence(t *testing.T) {
	var calls atomic.Int32
	c := newServerCache(func(ctx context.Context) ([]ServerInfo, error) {
		calls.Add(1)
		return []ServerInfo{{Ident: 1200}}, nil
	})
	c.setServerID(1100)
	ctx := context.Background()

	rec, err := c.get(ctx, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected absence, got %+v", rec)
	}

	if _, err := c.get(ctx, false); err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fetched %d times, want 1 (absence is an answer too)", got)
	}
}

func TestServerCacheIDChangeInvalidates(t *testing.T) {
	var calls atomic.Int32
	c := newServerCache(func(ctx context.Context) ([]ServerInfo, error) {
		calls.Add(1)
		return []ServerInfo{{Ident: 1100}, {Ident: 1200}}, nil
	})
	ctx := context.Background()

	c.setServerID(1100)
	if _, err := c.get(ctx, false); err != nil {
		t.Fatalf("get: %v", err)
	}

	c.setServerID(1100)
	if _, err := c.get(ctx, false); err != nil {
		t.Fatalf("get after same id: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("re-setting the same id must keep the cache, fetched %d times", got)
	}

	c.setServerID(1200)
	rec, err := c.get(ctx, false)
	if err != nil || rec == nil || rec.Ident != 1200 {
		t.Fatalf("get after id change: rec=%+v err=%v", rec, err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("id change must invalidate, fetched %d times", got)
	}
}

func TestServerCacheRequiresID(t *testing.T) {
	c := newServerCache(fixedServers(ServerInfo{Ident: 1100}))
	if _, err := c.get(context.Background(), false); !errors.Is(err, ErrNoServerID) {
		t.Fatalf("got %v, want ErrNoServerID", err)
	}
}

func TestServerCacheFetchErrorsPassThrough(t *testing.T) {
	boom := errors.New("zone unreachable")
	c := newServerCache(func(context.Context) ([]ServerInfo, error) { return nil, boom })
	c.setServerID(1100)
	if _, err := c.get(context.Background(), true); !errors.Is(err, boom) {
		t.Fatalf("got %v, want fetch error", err)
	}
}

func TestServerCacheCollapsesConcurrentRefreshes(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := newServerCache(func(ctx context.Context) ([]ServerInfo, error) {
		calls.Add(1)
		<-release
		return []ServerInfo{{Ident: 1100, Name: "sq-1100"}}, nil
	})
	c.setServerID(1100)

	const n = 8
	var wg sync.WaitGroup
	recs := make([]*ServerInfo, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			recs[i], errs[i] = c.get(context.Background(), true)
		}(i)
	}

	// Wait for the flight to open, give stragglers time to join it,
	// then let it land.
	for calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("fetched %d times, want 1 shared flight", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if recs[i] == nil || recs[i].Ident != 1100 {
			t.Fatalf("caller %d got %+v", i, recs[i])
		}
	}
}
