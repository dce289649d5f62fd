// SPDX-License-Identifier: MIT
package quantel_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	quantel "github.com/marubit/quantelgw"
	"github.com/marubit/quantelgw/quanteltest"
)

func TestClipLookup(t *testing.T) {
	gw := quanteltest.NewGateway()
	defer gw.Close()

	s := newSession(t, gw, 1100)
	ctx := context.Background()

	clip, err := s.Clip(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, clip.ClipID)
	assert.Equal(t, "Once upon a time in Quantel", clip.Title)
	assert.Equal(t, 11, clip.PoolID)
	assert.Equal(t, "1000", clip.Frames)

	_, err = s.Clip(ctx, 9999)
	require.Error(t, err)
	assert.True(t, quantel.IsNotFound(err), "missing clip must read as absent, got %v", err)
}

func TestSearchClips(t *testing.T) {
	gw := quanteltest.NewGateway()
	defer gw.Close()

	s := newSession(t, gw, 1100)
	ctx := context.Background()

	all, err := s.SearchClips(ctx, quantel.ClipSearchQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	exact, err := s.SearchClips(ctx, quantel.ClipSearchQuery{Title: "Evening bulletin opener"})
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, 3, exact[0].ClipID)

	wild, err := s.SearchClips(ctx, quantel.ClipSearchQuery{Title: "Once*"})
	require.NoError(t, err)
	require.Len(t, wild, 1)
	assert.Equal(t, 2, wild[0].ClipID)

	owned, err := s.SearchClips(ctx, quantel.ClipSearchQuery{Owner: "Playout"})
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, 3, owned[0].ClipID)

	limited, err := s.SearchClips(ctx, quantel.ClipSearchQuery{Title: "*", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := s.SearchClips(ctx, quantel.ClipSearchQuery{Title: "No such title"})
	require.NoError(t, err)
	assert.Empty(t, none, "an empty result set is a result, not an error")
}

func TestSearchClipsNormalizesTitle(t *testing.T) {
	gw := quanteltest.NewGateway()
	defer gw.Close()

	// Stored in composed form, searched in decomposed form.
	gw.AddClip(quantel.ClipData{
		Type:   "ClipData",
		ClipID: 7,
		Title:  "Café interview",
		PoolID: 11,
		Frames: "400",
	})

	s := newSession(t, gw, 1100)

	found, err := s.SearchClips(context.Background(), quantel.ClipSearchQuery{Title: "Cafe\u0301 interview"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 7, found[0].ClipID)
}

func TestDeleteClip(t *testing.T) {
	gw := quanteltest.NewGateway()
	defer gw.Close()

	s := newSession(t, gw, 1100)
	ctx := context.Background()

	deleted, err := s.DeleteClip(ctx, 3)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = s.Clip(ctx, 3)
	assert.True(t, quantel.IsNotFound(err))

	// Deleting again is absence, not failure.
	deleted, err = s.DeleteClip(ctx, 3)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestClipFragments(t *testing.T) {
	gw := quanteltest.NewGateway()
	defer gw.Close()

	s := newSession(t, gw, 1100)
	ctx := context.Background()

	frags, err := s.ClipFragments(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, frags.ClipID)
	require.Len(t, frags.Fragments, 2)
	assert.Equal(t, "VideoFragment", frags.Fragments[0].Type)
	assert.Equal(t, 1000, frags.Fragments[0].Finish)

	whole, err := s.ClipFragmentsRange(ctx, 2, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, whole.Fragments, 2)

	outside, err := s.ClipFragmentsRange(ctx, 2, 2000, 3000)
	require.NoError(t, err)
	assert.Empty(t, outside.Fragments)

	_, err = s.ClipFragments(ctx, 9999)
	assert.True(t, quantel.IsNotFound(err))
}

func TestCloneAndCopyProgress(t *testing.T) {
	gw := quanteltest.NewGateway()
	defer gw.Close()

	s := newSession(t, gw, 1100)
	ctx := context.Background()

	res, err := s.CloneClip(ctx, quantel.CloneRequest{ClipID: 2, PoolID: 12})
	require.NoError(t, err)
	assert.True(t, res.CopyCreated)
	copyID := res.CopyID

	// Cloning the same clip to the same pool reuses the existing clone.
	again, err := s.CloneClip(ctx, quantel.CloneRequest{ClipID: 2, PoolID: 12})
	require.NoError(t, err)
	assert.False(t, again.CopyCreated, "an existing clone is reused, which is a success")
	assert.Equal(t, copyID, again.CopyID)

	clone, err := s.Clip(ctx, copyID)
	require.NoError(t, err)
	assert.Equal(t, 2, clone.CloneID, "the clone keeps its provenance link")
	assert.Equal(t, 12, clone.PoolID)

	progress, err := s.CopyProgressByID(ctx, copyID)
	require.NoError(t, err)
	assert.Equal(t, 1000, progress.TotalProtons)
	assert.False(t, progress.Complete)

	list, err := s.Copies(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, copyID, list[0].CopyID)

	gw.CompleteCopy(copyID)
	progress, err = s.CopyProgressByID(ctx, copyID)
	require.NoError(t, err)
	assert.True(t, progress.Complete)
	assert.Zero(t, progress.ProtonsLeft)

	_, err = s.CopyProgressByID(ctx, 55555)
	assert.True(t, quantel.IsNotFound(err))

	_, err = s.CloneClip(ctx, quantel.CloneRequest{ClipID: 8888, PoolID: 12})
	assert.True(t, quantel.IsNotFound(err), "cloning a missing clip reports absence, got %v", err)
}
