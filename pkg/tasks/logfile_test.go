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
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFileRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	id := uuid.New()
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	data := json.RawMessage(`{"system": "snes", "force_download": false}`)

	lf, err := openLogFile(dir, id, KindScraping, "alice", data, start)
	require.NoError(t, err)
	lf.appendLine(start.Add(time.Second), "loading corpus")
	lf.appendLine(start.Add(2*time.Second), "matched Foo (USA)")
	lf.writeFooter(footer{
		endedAt:     start.Add(time.Minute),
		status:      StatusCompleted,
		duration:    time.Minute,
		progress:    100,
		currentStep: 2,
		totalSteps:  2,
		system:      "snes",
		stats:       Stats{"matched_games": 2, "total_games": 2},
	})

	rec, err := ParseLogFile(LogFilePath(dir, id))
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, KindScraping, rec.Kind)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, start, rec.StartTS)
	assert.Equal(t, start.Add(time.Minute), rec.EndTS)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, 100, rec.Progress)
	assert.Equal(t, 2, rec.CurrentStep)
	assert.Equal(t, 2, rec.TotalSteps)
	assert.Equal(t, "snes", rec.System)
	assert.Equal(t, Stats{"matched_games": 2, "total_games": 2}, rec.Stats)
	assert.JSONEq(t, string(data), string(rec.Data), "payload survives the header")

	raw, err := os.ReadFile(LogFilePath(dir, id))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[10:00:01] loading corpus")
	assert.Contains(t, string(raw), `Data: {"system":"snes","force_download":false}`)
}

func TestParseLogFileStoppedFooter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	id := uuid.New()
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	lf, err := openLogFile(dir, id, KindScraping, "bob", nil, start)
	require.NoError(t, err)
	lf.appendLine(start.Add(time.Second), "stopped by user")
	lf.writeFooter(footer{
		endedAt:  start.Add(30 * time.Second),
		status:   StatusStopped,
		duration: 30 * time.Second,
		progress: 30,
		system:   "nes",
		stats:    Stats{"processed_games": 30},
	})

	raw, err := os.ReadFile(LogFilePath(dir, id))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Task stopped: ")
	assert.NotContains(t, string(raw), "Task ended: ")
	assert.Contains(t, string(raw), "Data: <nil>")

	rec, err := ParseLogFile(LogFilePath(dir, id))
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, rec.Status)
	assert.Equal(t, 30, rec.Progress)
}

func TestParseLogFileWithoutFooterReportsRunning(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	id := uuid.New()
	content := "Task started: 2025-06-01T10:00:00Z\nType: rom_scan\nUser: carol\nData: <nil>\n\n[10:00:01] walking roms\n"
	path := LogFilePath(dir, id)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rec, err := ParseLogFile(path)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, rec.Status)
	assert.Equal(t, KindRomScan, rec.Kind)
	assert.True(t, rec.EndTS.IsZero())
}

func TestParseLogFileRejectsNonUUIDName(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/notes.log"
	require.NoError(t, os.WriteFile(path, []byte("Task started: x\n"), 0o600))
	_, err := ParseLogFile(path)
	require.Error(t, err)
}
