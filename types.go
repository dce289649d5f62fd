// SPDX-License-Identifier: MIT

package quantel

// ZoneInfo describes one ISA zone visible from the gateway. The local
// zone is listed first, remote zones follow.
type ZoneInfo struct {
	Type       string `json:"type"`
	ZoneNumber int    `json:"zoneNumber"`
	ZoneName   string `json:"zoneName"`
	IsRemote   bool   `json:"isRemote"`
}

// ConnectionDetails reports the gateway's ISA connection: the active
// endpoint reference, its alternates and the gateway's internal
// round-robin counter. The counter is passed through untouched; failover
// order is the gateway's business.
type ConnectionDetails struct {
	Type   string   `json:"type"`
	ISAIOR string   `json:"isaIOR"`
	HREF   string   `json:"href"`
	Refs   []string `json:"refs"`
	Robin  int      `json:"robin"`
}

// ServerInfo is the resolved description of a video server. PortNames
// lists the assigned port names and may contain empty entries; ChanPorts
// maps each channel to the port holding it, empty where the channel is
// free.
type ServerInfo struct {
	Type        string   `json:"type"`
	Ident       int      `json:"ident"`
	Down        bool     `json:"down"`
	Name        string   `json:"name"`
	NumChannels int      `json:"numChannels"`
	Pools       []int    `json:"pools"`
	PortNames   []string `json:"portNames"`
	ChanPorts   []string `json:"chanPorts"`
}

// PortInfo describes a port assignment on a server. Assigned reports
// whether the channel grant was newly made or the port already held it.
type PortInfo struct {
	Type      string `json:"type"`
	ServerID  int    `json:"serverID"`
	PortID    string `json:"portID"`
	PortName  string `json:"portName"`
	ChannelNo int    `json:"channelNo"`
	AudioOnly bool   `json:"audioOnly"`
	Assigned  bool   `json:"assigned"`
}

// PortStatus reports the transport state of a port.
type PortStatus struct {
	Type         string  `json:"type"`
	ServerID     int     `json:"serverID"`
	PortID       string  `json:"portID"`
	PortName     string  `json:"portName"`
	ChannelNo    int     `json:"channelNo"`
	Status       string  `json:"status"`
	Speed        float64 `json:"speed"`
	Offset       int     `json:"offset"`
	EndOfData    int     `json:"endOfData"`
	FramesUnused int     `json:"framesUnused"`
	OutputTime   string  `json:"outputTime"`
	RefTime      string  `json:"refTime"`
	PortTime     string  `json:"portTime"`
	VideoFormat  string  `json:"videoFormat"`
}

// ReleaseStatus acknowledges a port release.
type ReleaseStatus struct {
	Type     string `json:"type"`
	Released bool   `json:"released"`
}

// ResetResult acknowledges a port reset.
type ResetResult struct {
	Type  string `json:"type"`
	Reset bool   `json:"reset"`
}

// PortLoadStatus acknowledges a fragment load onto a port.
type PortLoadStatus struct {
	Type          string `json:"type"`
	PortID        string `json:"portID"`
	Offset        int    `json:"offset"`
	FragmentCount int    `json:"fragmentCount"`
}

// TriggerResult acknowledges a transport trigger.
type TriggerResult struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
}

// JumpResult acknowledges a jump. Offset echoes the requested frame.
type JumpResult struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Offset  int    `json:"offset"`
}

// WipeResult acknowledges a fragment wipe.
type WipeResult struct {
	Type  string `json:"type"`
	Wiped bool   `json:"wiped"`
}

// ClipData is the full clip record. Column names follow the ISA
// database, hence the capitalized JSON keys.
type ClipData struct {
	Type         string `json:"type"`
	ClipID       int    `json:"ClipID"`
	ClipGUID     string `json:"ClipGUID"`
	CloneID      int    `json:"CloneID"`
	CloneZone    int    `json:"CloneZone"`
	Title        string `json:"Title"`
	Description  string `json:"Description"`
	Category     string `json:"Category"`
	Owner        string `json:"Owner"`
	PoolID       int    `json:"PoolID"`
	Created      string `json:"Created"`
	Completed    string `json:"Completed"`
	Expiry       string `json:"Expiry"`
	Frames       string `json:"Frames"`
	NumAudTracks int    `json:"NumAudTracks"`
	NumVidTracks int    `json:"NumVidTracks"`
	PlayAspect   string `json:"PlayAspect"`
}

// ClipSummary is the condensed clip record returned by searches.
type ClipSummary struct {
	Type        string `json:"type"`
	ClipID      int    `json:"ClipID"`
	ClipGUID    string `json:"ClipGUID"`
	CloneID     int    `json:"CloneID"`
	Title       string `json:"Title"`
	Description string `json:"Description"`
	Owner       string `json:"Owner"`
	PoolID      int    `json:"PoolID"`
	Created     string `json:"Created"`
	Completed   string `json:"Completed"`
	Frames      string `json:"Frames"`
}

// DeleteResult acknowledges a clip deletion.
type DeleteResult struct {
	Deleted bool `json:"deleted"`
}

// ServerFragment is one element of a clip's timeline. The gateway
// flattens its fragment union into a single record, so fields that do
// not apply to a fragment's type stay at their zero value. Media
// fragments carry the rush and pool fields; effect, note and timecode
// fragments carry their own identifier or timecode.
type ServerFragment struct {
	Type      string `json:"type"`
	TrackNum  int    `json:"trackNum"`
	Start     int    `json:"start"`
	Finish    int    `json:"finish"`
	RushID    string `json:"rushID,omitempty"`
	Format    int    `json:"format,omitempty"`
	PoolID    int    `json:"poolID,omitempty"`
	PoolFrame int    `json:"poolFrame,omitempty"`
	Skew      int    `json:"skew,omitempty"`
	RushFrame int    `json:"rushFrame,omitempty"`
	EffectID  int    `json:"effectID,omitempty"`
	NoteID    int    `json:"noteID,omitempty"`
	Timecode  string `json:"timecode,omitempty"`
}

// ServerFragments is the fragment list of a clip or a loaded port.
type ServerFragments struct {
	Type      string           `json:"type"`
	ClipID    int              `json:"clipID"`
	Fragments []ServerFragment `json:"fragments"`
}

// CloneRequest describes an inter-pool or inter-zone clip copy. ZoneID
// zero means the local zone. History controls whether the clone keeps a
// provenance link to its source.
type CloneRequest struct {
	ZoneID   int  `json:"zoneID,omitempty"`
	ClipID   int  `json:"clipID"`
	PoolID   int  `json:"poolID"`
	Priority int  `json:"priority,omitempty"`
	History  bool `json:"history"`
}

// CloneResult reports the outcome of a clone. CopyCreated is false when
// the destination already held a clone of the source and no new copy was
// started; that is a success, not a failure.
type CloneResult struct {
	Type        string `json:"type"`
	CopyID      int    `json:"copyID"`
	CopyCreated bool   `json:"copyCreated"`
}

// CopyProgress reports outstanding work on a copy, measured in protons,
// the ISA's storage transfer unit.
type CopyProgress struct {
	Type         string `json:"type"`
	CopyID       int    `json:"copyID"`
	TotalProtons int    `json:"totalProtons"`
	ProtonsLeft  int    `json:"protonsLeft"`
	Complete     bool   `json:"complete"`
}

// FormatInfo describes a video format registered in the zone.
type FormatInfo struct {
	Type            string `json:"type"`
	FormatNumber    int    `json:"formatNumber"`
	FormatName      string `json:"formatName"`
	LayoutName      string `json:"layoutName"`
	CompressionName string `json:"compressionName"`
	EssenceType     string `json:"essenceType"`
	FrameRate       int    `json:"frameRate"`
	Height          int    `json:"height"`
	Width           int    `json:"width"`
}

// Trigger is a transport command accepted by the gateway.
type Trigger string

const (
	TriggerStart Trigger = "START"
	TriggerStop  Trigger = "STOP"
	TriggerJump  Trigger = "JUMP"
)
