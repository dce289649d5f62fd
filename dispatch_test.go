// SPDX-License-Identifier: MIT
package quantel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var testLogger = zerolog.Nop()

// newTestSession wires a ready Session to a plain httptest server. The
// richer quanteltest gateway cannot be used from inside this package.
func newTestSession(t *testing.T, baseURL string) *Session {
	t.Helper()
	s := NewSession(Config{Logger: &testLogger, RequestTimeout: 2 * time.Second})
	s.mu.Lock()
	s.gatewayURL = strings.TrimSuffix(baseURL, "/")
	s.zone = "default"
	s.state = stateReady
	s.mu.Unlock()
	return s
}

func writeErrorPayload(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"message": msg,
		"stack":   "Error: " + msg,
	})
}

func writeConnectionDetails(w http.ResponseWriter) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type": "ConnectionDetails",
		"href": "http://isa.example:2096/ZoneManager.ior",
		"refs": []string{"http://isa.example:2096/ZoneManager.ior"},
	})
}

func TestSendRecoversOnceFromLostISA(t *testing.T) {
	var mu sync.Mutex
	var serverCalls, connectCalls int

	mux := http.NewServeMux()
	mux.HandleFunc("/connect/", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		connectCalls++
		mu.Unlock()
		writeConnectionDetails(w)
	})
	mux.HandleFunc("/default/server", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		serverCalls++
		n := serverCalls
		mu.Unlock()
		if n == 1 {
			writeErrorPayload(w, http.StatusBadGateway, "Error: First provide a Quantel ISA connection reference")
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"type": "Server", "ident": 1100, "name": "sq-1100", "numChannels": 4},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	if err := s.isa.configure([]string{"isa.example:2096"}); err != nil {
		t.Fatalf("configure: %v", err)
	}

	servers, err := s.Servers(context.Background())
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if len(servers) != 1 || servers[0].Ident != 1100 {
		t.Fatalf("unexpected servers: %+v", servers)
	}

	mu.Lock()
	defer mu.Unlock()
	if serverCalls != 2 {
		t.Errorf("server listing called %d times, want 2", serverCalls)
	}
	if connectCalls != 1 {
		t.Errorf("connect called %d times, want 1", connectCalls)
	}
}

func TestSendSecondLostISAIsFinal(t *testing.T) {
	var mu sync.Mutex
	var serverCalls, connectCalls int

	mux := http.NewServeMux()
	mux.HandleFunc("/connect/", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		connectCalls++
		mu.Unlock()
		writeConnectionDetails(w)
	})
	mux.HandleFunc("/default/server", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		serverCalls++
		mu.Unlock()
		writeErrorPayload(w, http.StatusBadGateway, "Error: First provide a Quantel ISA connection reference")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	if err := s.isa.configure([]string{"isa.example:2096"}); err != nil {
		t.Fatalf("configure: %v", err)
	}

	_, err := s.Servers(context.Background())
	var ge *GatewayError
	if !errors.As(err, &ge) || ge.Status != http.StatusBadGateway {
		t.Fatalf("expected the replayed gateway error, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if serverCalls != 2 {
		t.Errorf("server listing called %d times, want exactly 2", serverCalls)
	}
	if connectCalls != 1 {
		t.Errorf("connect called %d times, want exactly 1", connectCalls)
	}
}

func TestSendReconnectFailureSurfaces(t *testing.T) {
	var mu sync.Mutex
	var serverCalls int

	mux := http.NewServeMux()
	mux.HandleFunc("/connect/", func(w http.ResponseWriter, _ *http.Request) {
		writeErrorPayload(w, http.StatusInternalServerError, "zone manager refused the connection")
	})
	mux.HandleFunc("/default/server", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		serverCalls++
		mu.Unlock()
		writeErrorPayload(w, http.StatusBadGateway, "first provide a Quantel ISA connection reference")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	if err := s.isa.configure([]string{"isa.example:2096"}); err != nil {
		t.Fatalf("configure: %v", err)
	}

	_, err := s.Servers(context.Background())
	if err == nil || !strings.Contains(err.Error(), "reconnect after lost ISA session") {
		t.Fatalf("expected reconnect failure, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if serverCalls != 1 {
		t.Errorf("server listing called %d times, want 1 (no replay after failed reconnect)", serverCalls)
	}
}

func TestDispatchGatesOnInitialization(t *testing.T) {
	var mu sync.Mutex
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	s.mu.Lock()
	s.state = stateUnconfigured
	s.mu.Unlock()

	ctx := context.Background()
	if _, err := s.Zones(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Zones: got %v, want ErrNotInitialized", err)
	}
	if _, err := s.Servers(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Servers: got %v, want ErrNotInitialized", err)
	}
	if _, err := s.Ports(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Ports: got %v, want ErrNotInitialized", err)
	}
	if _, err := s.Clip(ctx, 2); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Clip: got %v, want ErrNotInitialized", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if hits != 0 {
		t.Errorf("gateway was reached %d times before initialization", hits)
	}
}

func TestServerScopedCallsNeedServerID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	if _, err := s.Ports(context.Background()); !errors.Is(err, ErrNoServerID) {
		t.Fatalf("got %v, want ErrNoServerID", err)
	}
}

func TestConnectToISAWithoutGatewayURL(t *testing.T) {
	s := NewSession(Config{Logger: &testLogger})
	if _, err := s.ConnectToISA(context.Background(), "isa.example:2096"); !errors.Is(err, ErrNoGatewayURL) {
		t.Fatalf("got %v, want ErrNoGatewayURL", err)
	}
}

func TestEveryRequestCarriesAFreshRequestID(t *testing.T) {
	var mu sync.Mutex
	var ids []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ids = append(ids, r.Header.Get("X-Request-Id"))
		mu.Unlock()
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	ctx := context.Background()
	if _, err := s.Servers(ctx); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := s.Servers(ctx); err != nil {
		t.Fatalf("second call: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ids) != 2 {
		t.Fatalf("saw %d requests, want 2", len(ids))
	}
	if ids[0] == "" || ids[1] == "" {
		t.Fatal("request id header missing")
	}
	if ids[0] == ids[1] {
		t.Fatal("request ids must differ between calls")
	}
}

func TestRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	s := NewSession(Config{Logger: &testLogger, RequestTimeout: 50 * time.Millisecond})
	s.mu.Lock()
	s.gatewayURL = srv.URL
	s.zone = "default"
	s.state = stateReady
	s.mu.Unlock()

	_, err := s.Servers(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

func TestUndecodableResultIsBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not-json"))
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	if _, err := s.Servers(context.Background()); !errors.Is(err, ErrBadResponse) {
		t.Fatalf("got %v, want ErrBadResponse", err)
	}
}

func TestResultFlagFalseBecomesError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/default/server/1100/port/play1/trigger/START", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"type": "TriggerResult", "success": false})
	})
	mux.HandleFunc("/default/server/1100/port/play1", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"type": "ReleaseStatus", "released": false})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	s.cache.setServerID(1100)
	ctx := context.Background()

	err := s.Trigger(ctx, "play1", TriggerStart, -1)
	if err == nil || !strings.Contains(err.Error(), "gateway reported failure") {
		t.Errorf("Trigger: got %v, want reported failure", err)
	}

	err = s.ReleasePort(ctx, "play1")
	if err == nil || !strings.Contains(err.Error(), "not released") {
		t.Errorf("ReleasePort: got %v, want not released", err)
	}
}

func TestPortNamesAreEscapedOnTheWire(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.EscapedPath())
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"type": "PortStatus", "portID": "fun port"})
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	s.cache.setServerID(1100)

	if _, err := s.Port(context.Background(), "fun port"); err != nil {
		t.Fatalf("Port: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 || paths[0] != "/default/server/1100/port/fun%20port" {
		t.Fatalf("unexpected wire path %v", paths)
	}
}
