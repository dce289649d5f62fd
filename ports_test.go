// SPDX-License-Identifier: MIT
package quantel_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	quantel "github.com/marubit/quantelgw"
	"github.com/marubit/quantelgw/quanteltest"
)

func TestPortLifecycle(t *testing.T) {
	gw := quanteltest.NewGateway()
	defer gw.Close()

	s := newSession(t, gw, 1100)
	ctx := context.Background()

	created, err := s.CreatePort(ctx, "play1", 0)
	require.NoError(t, err)
	assert.True(t, created.Assigned, "first grant is a new assignment")
	assert.Equal(t, "play1", created.PortName)
	assert.Equal(t, 0, created.ChannelNo)

	again, err := s.CreatePort(ctx, "play1", 0)
	require.NoError(t, err)
	assert.False(t, again.Assigned, "re-requesting a held channel is not an error")

	ports, err := s.Ports(ctx)
	require.NoError(t, err)
	require.Len(t, ports, 1)
	assert.Equal(t, "play1", ports[0].PortID)

	status, err := s.Port(ctx, "play1")
	require.NoError(t, err)
	assert.Equal(t, "readyToPlay", status.Status)
	assert.Equal(t, 0, status.ChannelNo)

	_, err = s.Port(ctx, "ghost")
	assert.True(t, quantel.IsNotFound(err), "unknown port must read as absent, got %v", err)

	// The port shows up in the refreshed server record.
	rec, err := s.Server(ctx, true)
	require.NoError(t, err)
	assert.Contains(t, rec.PortNames, "play1")
	assert.Equal(t, "play1", rec.ChanPorts[0])

	frags, err := s.ClipFragments(ctx, 2)
	require.NoError(t, err)
	require.Len(t, frags.Fragments, 2)

	load, err := s.LoadFragments(ctx, "play1", 0, frags.Fragments)
	require.NoError(t, err)
	assert.Equal(t, 2, load.FragmentCount)
	assert.Equal(t, 0, load.Offset)

	loaded, err := s.PortFragments(ctx, "play1", -1, -1)
	require.NoError(t, err)
	assert.Len(t, loaded.Fragments, 2)

	require.NoError(t, s.Trigger(ctx, "play1", quantel.TriggerStart, -1))
	status, err = s.Port(ctx, "play1")
	require.NoError(t, err)
	assert.Equal(t, "playing", status.Status)
	assert.Equal(t, float64(1), status.Speed)
	assert.Equal(t, 1000, status.EndOfData)

	require.NoError(t, s.SetJump(ctx, "play1", 500))
	require.NoError(t, s.Trigger(ctx, "play1", quantel.TriggerJump, -1))
	status, err = s.Port(ctx, "play1")
	require.NoError(t, err)
	assert.Equal(t, 500, status.Offset, "armed jump must move the port on TriggerJump")

	require.NoError(t, s.Jump(ctx, "play1", 100))
	status, err = s.Port(ctx, "play1")
	require.NoError(t, err)
	assert.Equal(t, 100, status.Offset, "hard jump moves the port immediately")

	require.NoError(t, s.Trigger(ctx, "play1", quantel.TriggerStop, -1))

	require.NoError(t, s.WipeFragments(ctx, "play1", -1, -1))
	loaded, err = s.PortFragments(ctx, "play1", -1, -1)
	require.NoError(t, err)
	assert.Empty(t, loaded.Fragments)

	require.NoError(t, s.ResetPort(ctx, "play1"))
	require.NoError(t, s.ReleasePort(ctx, "play1"))

	_, err = s.Port(ctx, "play1")
	assert.True(t, quantel.IsNotFound(err))

	rec, err = s.Server(ctx, true)
	require.NoError(t, err)
	assert.NotContains(t, rec.PortNames, "play1")
	assert.Equal(t, "", rec.ChanPorts[0])
}

func TestCreatePortChannelConflict(t *testing.T) {
	gw := quanteltest.NewGateway()
	defer gw.Close()

	s := newSession(t, gw, 1100)
	gw.AssignChannel(1100, 1, "intruder")

	_, err := s.CreatePort(context.Background(), "play1", 1)
	require.Error(t, err)
	assert.False(t, quantel.IsNotFound(err), "a refused grant is a failure, not an absence")

	var ge *quantel.GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Contains(t, ge.Message, "already assigned")
}

func TestWipeFragmentsRange(t *testing.T) {
	gw := quanteltest.NewGateway()
	defer gw.Close()

	gw.SetClipFragments(3, []quantel.ServerFragment{
		{Type: "VideoFragment", TrackNum: 0, Start: 0, Finish: 500, RushID: "aa", Format: 90, PoolID: 11},
		{Type: "VideoFragment", TrackNum: 0, Start: 500, Finish: 1000, RushID: "bb", Format: 90, PoolID: 11},
	})

	s := newSession(t, gw, 1100)
	ctx := context.Background()

	_, err := s.CreatePort(ctx, "play1", 0)
	require.NoError(t, err)

	frags, err := s.ClipFragments(ctx, 3)
	require.NoError(t, err)
	require.Len(t, frags.Fragments, 2)

	_, err = s.LoadFragments(ctx, "play1", 0, frags.Fragments)
	require.NoError(t, err)

	require.NoError(t, s.WipeFragments(ctx, "play1", 0, 500))

	left, err := s.PortFragments(ctx, "play1", -1, -1)
	require.NoError(t, err)
	require.Len(t, left.Fragments, 1, "only fragments inside the range are wiped")
	assert.Equal(t, 500, left.Fragments[0].Start)

	// Range reads see the same windowing.
	windowed, err := s.PortFragments(ctx, "play1", 0, 500)
	require.NoError(t, err)
	assert.Empty(t, windowed.Fragments)
}

// TestLoadedFragmentsSurviveTheWire loads every fragment kind the
// gateway knows and reads them back, ensuring no field is lost or
// invented on the way through the flattened fragment record.
func TestLoadedFragmentsSurviveTheWire(t *testing.T) {
	gw := quanteltest.NewGateway()
	defer gw.Close()

	s := newSession(t, gw, 1100)
	ctx := context.Background()

	_, err := s.CreatePort(ctx, "play1", 0)
	require.NoError(t, err)

	loaded := []quantel.ServerFragment{
		{Type: "VideoFragment", TrackNum: 0, Start: 0, Finish: 100, RushID: "344aed5ed1204908a54302de951eecb7", Format: 90, PoolID: 11, PoolFrame: 5, Skew: 2, RushFrame: 7},
		{Type: "AudioFragment", TrackNum: 1, Start: 0, Finish: 100, RushID: "520c2157fc66443b9e2fc580cb2cf789", Format: 73, PoolID: 11},
		{Type: "EffectFragment", TrackNum: 0, Start: 20, Finish: 40, EffectID: 256},
		{Type: "NoteFragment", TrackNum: 0, Start: 0, Finish: 100, NoteID: 12},
		{Type: "TimecodeFragment", TrackNum: 0, Start: 0, Finish: 100, Timecode: "10:00:00:00"},
	}

	_, err = s.LoadFragments(ctx, "play1", 0, loaded)
	require.NoError(t, err)

	got, err := s.PortFragments(ctx, "play1", -1, -1)
	require.NoError(t, err)

	if diff := cmp.Diff(loaded, got.Fragments); diff != "" {
		t.Fatalf("fragments changed in transit (-want +got):\n%s", diff)
	}
}
