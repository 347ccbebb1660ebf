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

// Package tasks is the single-writer scheduler for long-running jobs. At
// most one task runs per process; submissions queue FIFO behind it. Each
// task owns a log file derived from its UUID which is the sole persistent
// record across restarts.
package tasks

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the closed set of task types.
type Kind string

const (
	KindScraping        Kind = "scraping"
	KindImageDownload   Kind = "image_download"
	KindMediaScan       Kind = "media_scan"
	KindRomScan         Kind = "rom_scan"
	KindYoutubeDownload Kind = "youtube_download"
	KindManualCrop      Kind = "manual_crop"
	KindBoxGeneration   Kind = "2d_box_generation"
)

// Kinds lists every valid task kind.
var Kinds = []Kind{
	KindScraping, KindImageDownload, KindMediaScan, KindRomScan,
	KindYoutubeDownload, KindManualCrop, KindBoxGeneration,
}

// ValidKind reports whether k names a known task kind.
func ValidKind(k Kind) bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Status is the task lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusStopped   Status = "stopped"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusStopped
}

// Stats is the free-form counter map attached to a task.
type Stats map[string]int

// Clone returns an independent copy of the stats map.
func (s Stats) Clone() Stats {
	if s == nil {
		return nil
	}
	out := make(Stats, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ErrCancelled is returned by handlers that observed the stop flag. The
// registry maps it to the stopped terminal status.
var ErrCancelled = errors.New("task cancelled")

// ErrNotFound is returned when a task id is unknown.
var ErrNotFound = errors.New("task not found")

// progressRingSize bounds the in-memory progress log; the full stream
// lives on disk.
const progressRingSize = 1000

// Task is one unit of orchestrated work. All fields are guarded by the
// owning registry's lock; handlers mutate only through Run.
type Task struct {
	startedAt time.Time
	endedAt   time.Time

	stats Stats
	data  json.RawMessage

	// done closes on terminal transition; StopTask waits on it.
	done    chan struct{}
	logFile *logFile

	username string
	system   string
	errMsg   string
	status   Status
	kind     Kind

	progressLines []string
	streams       []*logStream

	id uuid.UUID

	progress    int
	currentStep int
	totalSteps  int

	gridRefresh bool
	cancelled   bool
}

// appendProgressLine records a line in the bounded in-memory ring.
func (t *Task) appendProgressLine(line string) {
	t.progressLines = append(t.progressLines, line)
	if len(t.progressLines) > progressRingSize {
		t.progressLines = t.progressLines[len(t.progressLines)-progressRingSize:]
	}
}

// Snapshot is the read-only wire form of a task.
type Snapshot struct {
	StartTS            *time.Time      `json:"start_ts,omitempty"`
	EndTS              *time.Time      `json:"end_ts,omitempty"`
	Stats              Stats           `json:"stats,omitempty"`
	Data               json.RawMessage `json:"data,omitempty"`
	ID                 string          `json:"id"`
	Type               Kind            `json:"type"`
	Status             Status          `json:"status"`
	Username           string          `json:"username"`
	System             string          `json:"system,omitempty"`
	Error              string          `json:"error,omitempty"`
	ProgressPercentage int             `json:"progress_percentage"`
	CurrentStep        int             `json:"current_step"`
	TotalSteps         int             `json:"total_steps"`
	GridRefreshNeeded  bool            `json:"grid_refresh_needed"`
}

// snapshotLocked builds a Snapshot. Caller holds the registry lock.
func (t *Task) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:                 t.id.String(),
		Type:               t.kind,
		Status:             t.status,
		Username:           t.username,
		System:             t.system,
		Error:              t.errMsg,
		ProgressPercentage: t.progress,
		CurrentStep:        t.currentStep,
		TotalSteps:         t.totalSteps,
		Stats:              t.stats.Clone(),
		Data:               t.data,
		GridRefreshNeeded:  t.gridRefresh,
	}
	if !t.startedAt.IsZero() {
		ts := t.startedAt
		snap.StartTS = &ts
	}
	if !t.endedAt.IsZero() {
		ts := t.endedAt
		snap.EndTS = &ts
	}
	return snap
}
