// RomStash Core
// Copyright (c) 2025 The RomStash Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of RomStash Core.
//
// RomStash Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// RomStash Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with RomStash Core.  If not, see <http://www.gnu.org/licenses/>.

package tasks

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamLogsDeliversInitialDeltaAndFinal(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	step := make(chan struct{})
	finish := make(chan struct{})
	reg.Register(KindScraping, func(run *Run) error {
		run.Log("first line")
		<-step
		run.Log("second line")
		<-finish
		return nil
	})

	snap, err := reg.Submit(KindScraping, "alice", nil)
	require.NoError(t, err)
	id := uuid.MustParse(snap.ID)

	// wait until the first line is on disk
	require.Eventually(t, func() bool {
		content, err := reg.LogContent(id)
		return err == nil && strings.Contains(content, "first line")
	}, 5*time.Second, 5*time.Millisecond)

	initial, ch, cancel, err := reg.StreamLogs(id)
	require.NoError(t, err)
	defer cancel()
	assert.Contains(t, initial, "first line")

	close(step)
	var delta StreamChunk
	select {
	case delta = <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("no delta received")
	}
	assert.Contains(t, delta.Content, "second line")
	assert.False(t, delta.Final)

	close(finish)
	var final StreamChunk
	for chunk := range ch {
		final = chunk
	}
	assert.True(t, final.Final)
	assert.Contains(t, final.Content, "Final Status: completed")
}

func TestStreamLogsTerminalTaskReturnsClosedChannel(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	reg.Register(KindMediaScan, func(run *Run) error {
		run.Log("done in one step")
		return nil
	})

	snap, err := reg.Submit(KindMediaScan, "alice", nil)
	require.NoError(t, err)
	id := uuid.MustParse(snap.ID)
	waitForStatus(t, reg, id, StatusCompleted)

	initial, ch, cancel, err := reg.StreamLogs(id)
	require.NoError(t, err)
	defer cancel()

	assert.Contains(t, initial, "done in one step")
	assert.Contains(t, initial, "Final Status: completed")
	_, open := <-ch
	assert.False(t, open, "terminal task stream is already closed")
}

func TestStreamLogsUnknownTask(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	_, _, _, err := reg.StreamLogs(uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}
