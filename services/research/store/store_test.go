// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_PersistentRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestSaveGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state := datatypes.NewRunState("acme", "sleep deprivation")
	state.Status = datatypes.RunStatusRunning
	state.DraftText = "## 1. Background\n\nA draft."
	state.DraftVersion = 1
	state.IterationCount = 2

	require.NoError(t, s.SaveRun(ctx, state))

	got, err := s.GetRun(ctx, "acme", state.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.RunID, got.RunID)
	assert.Equal(t, datatypes.RunStatusRunning, got.Status)
	assert.Equal(t, 1, got.DraftVersion)
	assert.Equal(t, state.DraftText, got.DraftText)
	assert.Equal(t, 2, got.IterationCount)
}

func TestSaveRun_Overwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state := datatypes.NewRunState("acme", "q")
	require.NoError(t, s.SaveRun(ctx, state))

	state.Status = datatypes.RunStatusSucceeded
	require.NoError(t, s.SaveRun(ctx, state))

	got, err := s.GetRun(ctx, "acme", state.RunID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.RunStatusSucceeded, got.Status)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "acme", "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns_TenantIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveRun(ctx, datatypes.NewRunState("acme", "q")))
	}
	require.NoError(t, s.SaveRun(ctx, datatypes.NewRunState("other", "q")))

	acme, err := s.ListRuns(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, acme, 3)
	for _, r := range acme {
		assert.Equal(t, "acme", r.TenantID)
	}

	other, err := s.ListRuns(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, other, 1)

	none, err := s.ListRuns(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state := datatypes.NewRunState("acme", "q")
	require.NoError(t, s.SaveRun(ctx, state))
	require.NoError(t, s.DeleteRun(ctx, "acme", state.RunID))

	_, err := s.GetRun(ctx, "acme", state.RunID)
	assert.ErrorIs(t, err, ErrRunNotFound)

	// Deleting again is a no-op.
	require.NoError(t, s.DeleteRun(ctx, "acme", state.RunID))
}

func TestCancelledContextRejected(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := datatypes.NewRunState("acme", "q")
	assert.Error(t, s.SaveRun(ctx, state))
	_, err := s.GetRun(ctx, "acme", state.RunID)
	assert.Error(t, err)
	_, err = s.ListRuns(ctx, "acme")
	assert.Error(t, err)
	assert.Error(t, s.DeleteRun(ctx, "acme", state.RunID))
}
