// SPDX-License-Identifier: MIT

// Package quanteltest provides an in-process mock of the ISA gateway for
// tests. The mock speaks the gateway's wire dialect faithfully: results
// are plain JSON, failures are JSON payloads with status, message and
// stack, a generic routing 404 carries the "Not found. Request" marker
// while an entity 404 does not, and every request except connect answers
// 502 until an ISA connection has been armed.
package quanteltest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	quantel "github.com/marubit/quantelgw"
)

// Route classes accepted by SetFailures.
const (
	ClassConnect = "connect"
	ClassServer  = "server"
	ClassPort    = "port"
	ClassClip    = "clip"
	ClassCopy    = "copy"
	ClassFormat  = "format"
)

type portState struct {
	channelNo int
	status    string
	speed     float64
	offset    int
	armedJump int
	fragments []quantel.ServerFragment
}

// Gateway is a configurable mock ISA gateway.
type Gateway struct {
	*httptest.Server

	mu         sync.RWMutex
	connected  bool
	endpoints  []string
	connects   int
	robin      int
	zoneName   string
	zoneNumber int
	servers    map[int]*quantel.ServerInfo
	ports      map[int]map[string]*portState
	clips      map[int]*quantel.ClipData
	fragments  map[int][]quantel.ServerFragment
	copies     map[int]*quantel.CopyProgress
	formats    map[int]*quantel.FormatInfo
	nextClipID int
	failures   map[string]int
	requests   []string
}

// NewGateway creates a mock gateway with realistic default data. The
// caller owns it and must Close it.
func NewGateway() *Gateway {
	g := &Gateway{
		servers:   make(map[int]*quantel.ServerInfo),
		ports:     make(map[int]map[string]*portState),
		clips:     make(map[int]*quantel.ClipData),
		fragments: make(map[int][]quantel.ServerFragment),
		copies:    make(map[int]*quantel.CopyProgress),
		formats:   make(map[int]*quantel.FormatInfo),
		failures:  make(map[string]int),
	}
	g.setDefaultDataLocked()

	r := chi.NewRouter()
	r.Use(g.record)
	r.Get("/connect/{addrs}", g.handleConnect)
	r.Get("/connect", g.handleConnection)

	r.Group(func(r chi.Router) {
		r.Use(g.requireISA)
		r.Get("/", g.handleZones)
		r.Route("/{zone}", func(r chi.Router) {
			r.Get("/server", g.handleServers)
			r.Route("/server/{serverID}", func(r chi.Router) {
				r.Get("/port", g.handlePorts)
				r.Route("/port/{portID}", func(r chi.Router) {
					r.Get("/", g.handlePortStatus)
					r.Delete("/", g.handlePortRelease)
					r.Put("/channel/{channelNo}", g.handlePortCreate)
					r.Post("/reset", g.handlePortReset)
					r.Get("/fragments", g.handlePortFragments)
					r.Post("/fragments", g.handlePortLoad)
					r.Delete("/fragments", g.handlePortWipe)
					r.Post("/trigger/{trigger}", g.handleTrigger)
					r.Post("/jump", g.handleJumpHard)
					r.Put("/jump", g.handleJumpSet)
				})
			})
			r.Get("/clip", g.handleClipSearch)
			r.Route("/clip/{clipID}", func(r chi.Router) {
				r.Get("/", g.handleClip)
				r.Delete("/", g.handleClipDelete)
				r.Get("/fragments", g.handleClipFragments)
				r.Get("/fragments/{span}", g.handleClipFragmentsSpan)
			})
			r.Get("/format", g.handleFormats)
			r.Get("/format/{formatNumber}", g.handleFormat)
			r.Get("/copy", g.handleCopies)
			r.Post("/copy", g.handleClone)
			r.Get("/copy/{copyID}", g.handleCopyProgress)
		})
	})
	r.NotFound(g.handleNotFound)
	r.MethodNotAllowed(g.handleNotFound)

	g.Server = httptest.NewServer(r)
	return g
}

// setDefaultDataLocked seeds one zone, one healthy four-channel server,
// a pair of clips with fragments and a few formats.
func (g *Gateway) setDefaultDataLocked() {
	g.zoneName = "default"
	g.zoneNumber = 1000
	g.nextClipID = 100

	g.servers[1100] = &quantel.ServerInfo{
		Type:        "Server",
		Ident:       1100,
		Name:        "sq-1100",
		NumChannels: 4,
		Pools:       []int{11},
		PortNames:   []string{},
		ChanPorts:   []string{"", "", "", ""},
	}
	g.ports[1100] = make(map[string]*portState)

	g.clips[2] = &quantel.ClipData{
		Type:         "ClipData",
		ClipID:       2,
		ClipGUID:     "0e2be6d2-5b7a-4e1e-93a7-3b5a0c4dd123",
		Title:        "Once upon a time in Quantel",
		Owner:        "Ingest",
		PoolID:       11,
		Created:      "2026-05-04T09:30:00.000Z",
		Completed:    "2026-05-04T09:30:42.000Z",
		Frames:       "1000",
		NumAudTracks: 1,
		NumVidTracks: 1,
		PlayAspect:   "unknown",
	}
	g.fragments[2] = []quantel.ServerFragment{
		{
			Type:      "VideoFragment",
			TrackNum:  0,
			Start:     0,
			Finish:    1000,
			RushID:    "344aed5ed1204908a54302de951eecb7",
			Format:    90,
			PoolID:    11,
			PoolFrame: 5,
		},
		{
			Type:     "AudioFragment",
			TrackNum: 0,
			Start:    0,
			Finish:   1000,
			RushID:   "520c2157fc66443b9e2fc580cb2cf789",
			Format:   73,
			PoolID:   11,
		},
	}
	g.clips[3] = &quantel.ClipData{
		Type:       "ClipData",
		ClipID:     3,
		ClipGUID:   "bf8b11c9-4f2b-46b9-9a6f-8bde27c2ce45",
		Title:      "Evening bulletin opener",
		Owner:      "Playout",
		PoolID:     11,
		Created:    "2026-05-05T18:00:00.000Z",
		Completed:  "2026-05-05T18:00:12.000Z",
		Frames:     "250",
		PlayAspect: "unknown",
	}
	g.fragments[3] = []quantel.ServerFragment{
		{
			Type:     "VideoFragment",
			TrackNum: 0,
			Start:    0,
			Finish:   250,
			RushID:   "8b7f43e2f50d4db3a4c7a0a6f61d2d11",
			Format:   90,
			PoolID:   11,
		},
	}

	g.formats[90] = &quantel.FormatInfo{
		Type:            "FormatInfo",
		FormatNumber:    90,
		FormatName:      "1080i50",
		LayoutName:      "1920x1080i",
		CompressionName: "AVCi100",
		EssenceType:     "VideoFragment",
		FrameRate:       25,
		Height:          1080,
		Width:           1920,
	}
	g.formats[73] = &quantel.FormatInfo{
		Type:            "FormatInfo",
		FormatNumber:    73,
		FormatName:      "PCM 48k",
		LayoutName:      "stereo",
		CompressionName: "PCM",
		EssenceType:     "AudioFragment",
		FrameRate:       25,
	}
}

// Reset clears all state, including the armed ISA connection, and
// reseeds the defaults.
func (g *Gateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = false
	g.endpoints = nil
	g.connects = 0
	g.servers = make(map[int]*quantel.ServerInfo)
	g.ports = make(map[int]map[string]*portState)
	g.clips = make(map[int]*quantel.ClipData)
	g.fragments = make(map[int][]quantel.ServerFragment)
	g.copies = make(map[int]*quantel.CopyProgress)
	g.formats = make(map[int]*quantel.FormatInfo)
	g.failures = make(map[string]int)
	g.requests = nil
	g.setDefaultDataLocked()
}

// DropISA disarms the gateway's ISA connection without touching any
// fixture data. The next request answers the 502 connect hint until a
// connect call arms it again.
func (g *Gateway) DropISA() {
	g.mu.Lock()
	g.connected = false
	g.mu.Unlock()
}

// Connected reports whether an ISA connection is armed.
func (g *Gateway) Connected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

// Endpoints returns the ISA address list received by the last connect
// call, master first.
func (g *Gateway) Endpoints() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.endpoints...)
}

// ConnectCount returns how many connect calls the gateway has served.
func (g *Gateway) ConnectCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connects
}

// Requests returns every request seen so far as "METHOD /path" strings,
// in arrival order.
func (g *Gateway) Requests() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.requests...)
}

// SetFailures makes the next count requests of a route class answer an
// injected 500 error payload.
func (g *Gateway) SetFailures(class string, count int) {
	g.mu.Lock()
	g.failures[class] = count
	g.mu.Unlock()
}

// AddServer registers a server in the zone, replacing any record with
// the same ident.
func (g *Gateway) AddServer(info quantel.ServerInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if info.ChanPorts == nil {
		info.ChanPorts = make([]string, info.NumChannels)
	}
	if info.PortNames == nil {
		info.PortNames = []string{}
	}
	g.servers[info.Ident] = &info
	if g.ports[info.Ident] == nil {
		g.ports[info.Ident] = make(map[string]*portState)
	}
}

// SetServerDown marks a server up or down.
func (g *Gateway) SetServerDown(serverID int, down bool) {
	g.mu.Lock()
	if srv, ok := g.servers[serverID]; ok {
		srv.Down = down
	}
	g.mu.Unlock()
}

// AssignChannel hands a channel to a port as if some other controller
// had claimed it, creating the port when needed.
func (g *Gateway) AssignChannel(serverID, channel int, portName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	srv, ok := g.servers[serverID]
	if !ok || channel < 0 || channel >= len(srv.ChanPorts) {
		return
	}
	srv.ChanPorts[channel] = portName
	if !containsString(srv.PortNames, portName) {
		srv.PortNames = append(srv.PortNames, portName)
	}
	if g.ports[serverID] == nil {
		g.ports[serverID] = make(map[string]*portState)
	}
	if g.ports[serverID][portName] == nil {
		g.ports[serverID][portName] = &portState{channelNo: channel, status: "readyToPlay"}
	}
}

// AddClip stores a clip record, replacing any with the same id.
func (g *Gateway) AddClip(clip quantel.ClipData) {
	g.mu.Lock()
	g.clips[clip.ClipID] = &clip
	g.mu.Unlock()
}

// SetClipFragments replaces the fragment list of a clip.
func (g *Gateway) SetClipFragments(clipID int, frags []quantel.ServerFragment) {
	g.mu.Lock()
	g.fragments[clipID] = append([]quantel.ServerFragment(nil), frags...)
	g.mu.Unlock()
}

// CompleteCopy marks a tracked copy finished.
func (g *Gateway) CompleteCopy(copyID int) {
	g.mu.Lock()
	if cp, ok := g.copies[copyID]; ok {
		cp.ProtonsLeft = 0
		cp.Complete = true
	}
	g.mu.Unlock()
}

func (g *Gateway) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.requests = append(g.requests, r.Method+" "+r.URL.Path)
		g.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) requireISA(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.RLock()
		ok := g.connected
		g.mu.RUnlock()
		if !ok {
			g.writeError(w, http.StatusBadGateway, "First provide a Quantel ISA connection reference with /connect")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) failNow(class string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n := g.failures[class]; n > 0 {
		g.failures[class] = n - 1
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the gateway's error payload shape. The HTTP status
// mirrors the payload status, as the real gateway does.
func (g *Gateway) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"message": msg,
		"stack":   fmt.Sprintf("Error: %s\n    at Gateway.route", msg),
	})
}

// handleNotFound emits the generic routing 404, marker included.
func (g *Gateway) handleNotFound(w http.ResponseWriter, r *http.Request) {
	g.writeError(w, http.StatusNotFound, fmt.Sprintf("Not found. Request %s %s", r.Method, r.URL.Path))
}

// missing emits an entity 404: reports 404 but carries no routing
// marker, so clients read it as "does not exist".
func (g *Gateway) missing(w http.ResponseWriter, what string) {
	g.writeError(w, http.StatusNotFound, fmt.Sprintf("404: %s is not known in this zone", what))
}

func (g *Gateway) handleConnect(w http.ResponseWriter, r *http.Request) {
	if g.failNow(ClassConnect) {
		g.writeError(w, http.StatusInternalServerError, "injected connect failure")
		return
	}
	addrs, err := url.PathUnescape(chi.URLParam(r, "addrs"))
	if err != nil || addrs == "" {
		g.writeError(w, http.StatusBadRequest, "malformed ISA address list")
		return
	}
	g.mu.Lock()
	g.connected = true
	g.endpoints = strings.Split(addrs, ",")
	g.connects++
	details := g.connectionLocked()
	g.mu.Unlock()
	writeJSON(w, details)
}

func (g *Gateway) handleConnection(w http.ResponseWriter, r *http.Request) {
	g.mu.RLock()
	connected := g.connected
	details := g.connectionLocked()
	g.mu.RUnlock()
	if !connected {
		g.writeError(w, http.StatusBadGateway, "First provide a Quantel ISA connection reference with /connect")
		return
	}
	writeJSON(w, details)
}

func (g *Gateway) connectionLocked() quantel.ConnectionDetails {
	refs := make([]string, len(g.endpoints))
	for i, ep := range g.endpoints {
		refs[i] = "http://" + ep + "/ZoneManager.ior"
	}
	d := quantel.ConnectionDetails{
		Type:   "ConnectionDetails",
		ISAIOR: "IOR:010000001700000049444c3a5175656e74696e2f5a6f6e654d616e616765723a312e30",
		Refs:   refs,
		Robin:  g.robin,
	}
	if len(refs) > 0 {
		d.HREF = refs[0]
	}
	return d
}

func (g *Gateway) handleZones(w http.ResponseWriter, _ *http.Request) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	writeJSON(w, []quantel.ZoneInfo{{
		Type:       "ZonePortal",
		ZoneNumber: g.zoneNumber,
		ZoneName:   g.zoneName,
	}})
}

// zoneOK rejects requests for zones the gateway does not front with the
// generic routing 404.
func (g *Gateway) zoneOK(w http.ResponseWriter, r *http.Request) bool {
	zone, err := url.PathUnescape(chi.URLParam(r, "zone"))
	if err != nil {
		zone = chi.URLParam(r, "zone")
	}
	g.mu.RLock()
	ok := zone == g.zoneName
	g.mu.RUnlock()
	if !ok {
		g.handleNotFound(w, r)
	}
	return ok
}

func (g *Gateway) handleServers(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	if g.failNow(ClassServer) {
		g.writeError(w, http.StatusInternalServerError, "injected server failure")
		return
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]int, 0, len(g.servers))
	for id := range g.servers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]quantel.ServerInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, *g.servers[id])
	}
	writeJSON(w, out)
}

// serverFor resolves the {serverID} route param, answering the entity
// 404 when the server is unknown.
func (g *Gateway) serverFor(w http.ResponseWriter, r *http.Request) (*quantel.ServerInfo, int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "serverID"))
	if err != nil {
		g.writeError(w, http.StatusBadRequest, "malformed server ident")
		return nil, 0, false
	}
	g.mu.RLock()
	srv, ok := g.servers[id]
	g.mu.RUnlock()
	if !ok {
		g.missing(w, fmt.Sprintf("server %d", id))
		return nil, 0, false
	}
	return srv, id, true
}

func portParam(r *http.Request) string {
	name, err := url.PathUnescape(chi.URLParam(r, "portID"))
	if err != nil {
		return chi.URLParam(r, "portID")
	}
	return name
}

func (g *Gateway) handlePorts(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	srv, id, ok := g.serverFor(w, r)
	if !ok {
		return
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.ports[id]))
	for name := range g.ports[id] {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]quantel.PortInfo, 0, len(names))
	for _, name := range names {
		st := g.ports[id][name]
		out = append(out, quantel.PortInfo{
			Type:      "PortInfo",
			ServerID:  srv.Ident,
			PortID:    name,
			PortName:  name,
			ChannelNo: st.channelNo,
			Assigned:  true,
		})
	}
	writeJSON(w, out)
}

func (g *Gateway) handlePortStatus(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	srv, id, ok := g.serverFor(w, r)
	if !ok {
		return
	}
	if g.failNow(ClassPort) {
		g.writeError(w, http.StatusInternalServerError, "injected port failure")
		return
	}
	name := portParam(r)
	g.mu.RLock()
	st, ok := g.ports[id][name]
	g.mu.RUnlock()
	if !ok {
		g.missing(w, fmt.Sprintf("port %s", name))
		return
	}
	endOfData := 0
	for _, f := range st.fragments {
		if f.Finish > endOfData {
			endOfData = f.Finish
		}
	}
	writeJSON(w, quantel.PortStatus{
		Type:        "PortStatus",
		ServerID:    srv.Ident,
		PortID:      name,
		PortName:    name,
		ChannelNo:   st.channelNo,
		Status:      st.status,
		Speed:       st.speed,
		Offset:      st.offset,
		EndOfData:   endOfData,
		OutputTime:  "00:00:00:00",
		RefTime:     "10:00:00:00",
		PortTime:    "10:00:00:00",
		VideoFormat: "1080i50",
	})
}

func (g *Gateway) handlePortCreate(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	srv, id, ok := g.serverFor(w, r)
	if !ok {
		return
	}
	channel, err := strconv.Atoi(chi.URLParam(r, "channelNo"))
	if err != nil {
		g.writeError(w, http.StatusBadRequest, "malformed channel number")
		return
	}
	name := portParam(r)

	g.mu.Lock()
	defer g.mu.Unlock()
	if channel < 0 || channel >= srv.NumChannels {
		g.writeError(w, http.StatusBadRequest, fmt.Sprintf("channel %d out of range for server %d", channel, srv.Ident))
		return
	}
	if owner := srv.ChanPorts[channel]; owner != "" && owner != name {
		g.writeError(w, http.StatusBadRequest, fmt.Sprintf("channel %d is already assigned to port %s", channel, owner))
		return
	}

	st, exists := g.ports[id][name]
	assigned := false
	if !exists {
		st = &portState{channelNo: channel, status: "readyToPlay"}
		g.ports[id][name] = st
		srv.PortNames = append(srv.PortNames, name)
		assigned = true
	} else if srv.ChanPorts[channel] != name {
		assigned = true
	}
	srv.ChanPorts[channel] = name

	writeJSON(w, quantel.PortInfo{
		Type:      "PortInfo",
		ServerID:  srv.Ident,
		PortID:    name,
		PortName:  name,
		ChannelNo: channel,
		Assigned:  assigned,
	})
}

func (g *Gateway) handlePortRelease(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	srv, id, ok := g.serverFor(w, r)
	if !ok {
		return
	}
	name := portParam(r)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.ports[id][name]; !ok {
		g.missing(w, fmt.Sprintf("port %s", name))
		return
	}
	delete(g.ports[id], name)
	for i, n := range srv.PortNames {
		if n == name {
			srv.PortNames = append(srv.PortNames[:i], srv.PortNames[i+1:]...)
			break
		}
	}
	for i, owner := range srv.ChanPorts {
		if owner == name {
			srv.ChanPorts[i] = ""
		}
	}
	writeJSON(w, quantel.ReleaseStatus{Type: "ReleaseStatus", Released: true})
}

func (g *Gateway) handlePortReset(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	_, id, ok := g.serverFor(w, r)
	if !ok {
		return
	}
	name := portParam(r)
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.ports[id][name]
	if !ok {
		g.missing(w, fmt.Sprintf("port %s", name))
		return
	}
	st.fragments = nil
	st.status = "readyToPlay"
	st.speed = 0
	st.offset = 0
	st.armedJump = 0
	writeJSON(w, quantel.ResetResult{Type: "ResetResult", Reset: true})
}

func (g *Gateway) handlePortLoad(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	_, id, ok := g.serverFor(w, r)
	if !ok {
		return
	}
	name := portParam(r)
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	var frags []quantel.ServerFragment
	if err := json.NewDecoder(r.Body).Decode(&frags); err != nil {
		g.writeError(w, http.StatusBadRequest, "malformed fragment list")
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.ports[id][name]
	if !ok {
		g.missing(w, fmt.Sprintf("port %s", name))
		return
	}
	st.fragments = append(st.fragments, frags...)
	writeJSON(w, quantel.PortLoadStatus{
		Type:          "PortLoadStatus",
		PortID:        name,
		Offset:        offset,
		FragmentCount: len(frags),
	})
}

func (g *Gateway) handlePortFragments(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	_, id, ok := g.serverFor(w, r)
	if !ok {
		return
	}
	name := portParam(r)
	start, finish := spanQuery(r)
	g.mu.RLock()
	st, ok := g.ports[id][name]
	var frags []quantel.ServerFragment
	if ok {
		for _, f := range st.fragments {
			if overlaps(f, start, finish) {
				frags = append(frags, f)
			}
		}
	}
	g.mu.RUnlock()
	if !ok {
		g.missing(w, fmt.Sprintf("port %s", name))
		return
	}
	writeJSON(w, quantel.ServerFragments{Type: "ServerFragments", Fragments: frags})
}

func (g *Gateway) handlePortWipe(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	_, id, ok := g.serverFor(w, r)
	if !ok {
		return
	}
	name := portParam(r)
	start, finish := spanQuery(r)
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.ports[id][name]
	if !ok {
		g.missing(w, fmt.Sprintf("port %s", name))
		return
	}
	var kept []quantel.ServerFragment
	for _, f := range st.fragments {
		if overlaps(f, start, finish) {
			continue
		}
		kept = append(kept, f)
	}
	st.fragments = kept
	writeJSON(w, quantel.WipeResult{Type: "WipeResult", Wiped: true})
}

func (g *Gateway) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	_, id, ok := g.serverFor(w, r)
	if !ok {
		return
	}
	name := portParam(r)
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.ports[id][name]
	if !ok {
		g.missing(w, fmt.Sprintf("port %s", name))
		return
	}
	switch chi.URLParam(r, "trigger") {
	case string(quantel.TriggerStart):
		st.status = "playing"
		st.speed = 1
	case string(quantel.TriggerStop):
		st.status = "readyToPlay"
		st.speed = 0
	case string(quantel.TriggerJump):
		st.offset = st.armedJump
	default:
		g.writeError(w, http.StatusBadRequest, "unknown trigger "+chi.URLParam(r, "trigger"))
		return
	}
	writeJSON(w, quantel.TriggerResult{Type: "TriggerResult", Success: true})
}

func (g *Gateway) handleJumpHard(w http.ResponseWriter, r *http.Request) {
	g.handleJump(w, r, true)
}

func (g *Gateway) handleJumpSet(w http.ResponseWriter, r *http.Request) {
	g.handleJump(w, r, false)
}

func (g *Gateway) handleJump(w http.ResponseWriter, r *http.Request, hard bool) {
	if !g.zoneOK(w, r) {
		return
	}
	_, id, ok := g.serverFor(w, r)
	if !ok {
		return
	}
	name := portParam(r)
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.ports[id][name]
	if !ok {
		g.missing(w, fmt.Sprintf("port %s", name))
		return
	}
	if hard {
		st.offset = offset
	} else {
		st.armedJump = offset
	}
	writeJSON(w, quantel.JumpResult{Type: "JumpResult", Success: true, Offset: offset})
}

func (g *Gateway) handleClipSearch(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	if g.failNow(ClassClip) {
		g.writeError(w, http.StatusInternalServerError, "injected clip failure")
		return
	}
	q := r.URL.Query()
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]int, 0, len(g.clips))
	for id := range g.clips {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]quantel.ClipSummary, 0, len(ids))
	for _, id := range ids {
		c := g.clips[id]
		if !matchClip(c, q) {
			continue
		}
		out = append(out, quantel.ClipSummary{
			Type:        "ClipDataSummary",
			ClipID:      c.ClipID,
			ClipGUID:    c.ClipGUID,
			CloneID:     c.CloneID,
			Title:       c.Title,
			Description: c.Description,
			Owner:       c.Owner,
			PoolID:      c.PoolID,
			Created:     c.Created,
			Completed:   c.Completed,
			Frames:      c.Frames,
		})
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	writeJSON(w, out)
}

// matchClip applies the search filters. A trailing asterisk in Title
// turns the match into a prefix match, the gateway's wildcard form.
func matchClip(c *quantel.ClipData, q url.Values) bool {
	if title := q.Get("Title"); title != "" {
		if prefix, wildcard := strings.CutSuffix(title, "*"); wildcard {
			if !strings.HasPrefix(c.Title, prefix) {
				return false
			}
		} else if c.Title != title {
			return false
		}
	}
	if idStr := q.Get("ClipID"); idStr != "" {
		if id, err := strconv.Atoi(idStr); err != nil || id != c.ClipID {
			return false
		}
	}
	if poolStr := q.Get("PoolID"); poolStr != "" {
		if pool, err := strconv.Atoi(poolStr); err != nil || pool != c.PoolID {
			return false
		}
	}
	if owner := q.Get("Owner"); owner != "" && owner != c.Owner {
		return false
	}
	if cat := q.Get("Category"); cat != "" && cat != c.Category {
		return false
	}
	return true
}

func (g *Gateway) clipFor(w http.ResponseWriter, r *http.Request) (*quantel.ClipData, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "clipID"))
	if err != nil {
		g.writeError(w, http.StatusBadRequest, "malformed clip id")
		return nil, false
	}
	g.mu.RLock()
	c, ok := g.clips[id]
	g.mu.RUnlock()
	if !ok {
		g.missing(w, fmt.Sprintf("clip %d", id))
		return nil, false
	}
	return c, true
}

func (g *Gateway) handleClip(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	if g.failNow(ClassClip) {
		g.writeError(w, http.StatusInternalServerError, "injected clip failure")
		return
	}
	c, ok := g.clipFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, c)
}

func (g *Gateway) handleClipDelete(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	c, ok := g.clipFor(w, r)
	if !ok {
		return
	}
	g.mu.Lock()
	delete(g.clips, c.ClipID)
	delete(g.fragments, c.ClipID)
	delete(g.copies, c.ClipID)
	g.mu.Unlock()
	writeJSON(w, quantel.DeleteResult{Deleted: true})
}

func (g *Gateway) handleClipFragments(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	c, ok := g.clipFor(w, r)
	if !ok {
		return
	}
	g.mu.RLock()
	frags := append([]quantel.ServerFragment(nil), g.fragments[c.ClipID]...)
	g.mu.RUnlock()
	writeJSON(w, quantel.ServerFragments{Type: "ServerFragments", ClipID: c.ClipID, Fragments: frags})
}

func (g *Gateway) handleClipFragmentsSpan(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	c, ok := g.clipFor(w, r)
	if !ok {
		return
	}
	inStr, outStr, found := strings.Cut(chi.URLParam(r, "span"), "-")
	in, err1 := strconv.Atoi(inStr)
	out, err2 := strconv.Atoi(outStr)
	if !found || err1 != nil || err2 != nil {
		g.writeError(w, http.StatusBadRequest, "malformed fragment range")
		return
	}
	g.mu.RLock()
	var frags []quantel.ServerFragment
	for _, f := range g.fragments[c.ClipID] {
		if overlaps(f, in, out) {
			frags = append(frags, f)
		}
	}
	g.mu.RUnlock()
	writeJSON(w, quantel.ServerFragments{Type: "ServerFragments", ClipID: c.ClipID, Fragments: frags})
}

func (g *Gateway) handleFormats(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	nums := make([]int, 0, len(g.formats))
	for n := range g.formats {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	out := make([]quantel.FormatInfo, 0, len(nums))
	for _, n := range nums {
		out = append(out, *g.formats[n])
	}
	writeJSON(w, out)
}

func (g *Gateway) handleFormat(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	if g.failNow(ClassFormat) {
		g.writeError(w, http.StatusInternalServerError, "injected format failure")
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "formatNumber"))
	if err != nil {
		g.writeError(w, http.StatusBadRequest, "malformed format number")
		return
	}
	g.mu.RLock()
	f, ok := g.formats[n]
	g.mu.RUnlock()
	if !ok {
		g.missing(w, fmt.Sprintf("format %d", n))
		return
	}
	writeJSON(w, f)
}

func (g *Gateway) handleClone(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	if g.failNow(ClassCopy) {
		g.writeError(w, http.StatusInternalServerError, "injected copy failure")
		return
	}
	var req quantel.CloneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeError(w, http.StatusBadRequest, "malformed clone request")
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	src, ok := g.clips[req.ClipID]
	if !ok {
		g.missing(w, fmt.Sprintf("clip %d", req.ClipID))
		return
	}

	// An existing clone of the source in the destination pool is reused.
	for _, c := range g.clips {
		if c.CloneID == req.ClipID && c.PoolID == req.PoolID {
			writeJSON(w, quantel.CloneResult{Type: "CloneResult", CopyID: c.ClipID, CopyCreated: false})
			return
		}
	}

	newID := g.nextClipID
	g.nextClipID++
	clone := *src
	clone.ClipID = newID
	clone.CloneID = req.ClipID
	clone.PoolID = req.PoolID
	g.clips[newID] = &clone
	g.fragments[newID] = append([]quantel.ServerFragment(nil), g.fragments[req.ClipID]...)
	g.copies[newID] = &quantel.CopyProgress{
		Type:         "CopyProgress",
		CopyID:       newID,
		TotalProtons: 1000,
		ProtonsLeft:  1000,
	}
	writeJSON(w, quantel.CloneResult{Type: "CloneResult", CopyID: newID, CopyCreated: true})
}

func (g *Gateway) handleCopies(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]int, 0, len(g.copies))
	for id := range g.copies {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]quantel.CopyProgress, 0, len(ids))
	for _, id := range ids {
		out = append(out, *g.copies[id])
	}
	writeJSON(w, out)
}

func (g *Gateway) handleCopyProgress(w http.ResponseWriter, r *http.Request) {
	if !g.zoneOK(w, r) {
		return
	}
	if g.failNow(ClassCopy) {
		g.writeError(w, http.StatusInternalServerError, "injected copy failure")
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "copyID"))
	if err != nil {
		g.writeError(w, http.StatusBadRequest, "malformed copy id")
		return
	}
	g.mu.RLock()
	cp, ok := g.copies[id]
	g.mu.RUnlock()
	if !ok {
		g.missing(w, fmt.Sprintf("copy %d", id))
		return
	}
	writeJSON(w, cp)
}

func spanQuery(r *http.Request) (start, finish int) {
	start, finish = -1, -1
	if v := r.URL.Query().Get("start"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			start = n
		}
	}
	if v := r.URL.Query().Get("finish"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			finish = n
		}
	}
	return start, finish
}

// overlaps reports whether a fragment intersects the [start, finish)
// range; a negative bound is open.
func overlaps(f quantel.ServerFragment, start, finish int) bool {
	if start >= 0 && f.Finish <= start {
		return false
	}
	if finish >= 0 && f.Start >= finish {
		return false
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
