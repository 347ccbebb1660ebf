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
	"fmt"

	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/RomStashProject/romstash-core/pkg/api/notifications"
	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
)

// Run is the handler's view of its task: progress reporting, stats, and
// the cooperative cancel flag.
type Run struct {
	task *Task
	reg  *Registry
}

// ID returns the task's UUID.
func (run *Run) ID() uuid.UUID {
	return run.task.id
}

// TaskID returns the task's UUID string, the key used in the shared
// cancel map.
func (run *Run) TaskID() string {
	return run.task.id.String()
}

// Kind returns the task kind.
func (run *Run) Kind() Kind {
	return run.task.kind
}

// Username returns the submitting user.
func (run *Run) Username() string {
	return run.task.username
}

// Data returns the opaque submission payload.
func (run *Run) Data() json.RawMessage {
	run.reg.mu.Lock()
	defer run.reg.mu.Unlock()
	return run.task.data
}

// DecodeData unmarshals the submission payload into a per-kind struct.
// Unknown keys are ignored; type mismatches are errors.
func (run *Run) DecodeData(v any) error {
	data := run.Data()
	if len(data) == 0 {
		return nil
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("failed to parse task payload: %w", err)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  v,
		TagName: "json",
	})
	if err != nil {
		return fmt.Errorf("failed to build payload decoder: %w", err)
	}
	if err := dec.Decode(generic); err != nil {
		return fmt.Errorf("failed to decode task payload: %w", err)
	}
	return nil
}

// System returns the system the task is operating on, if one was set.
func (run *Run) System() string {
	run.reg.mu.Lock()
	defer run.reg.mu.Unlock()
	return run.task.system
}

// SetSystem records the system name for the footer and notifications.
func (run *Run) SetSystem(system string) {
	run.reg.mu.Lock()
	defer run.reg.mu.Unlock()
	run.task.system = system
}

// Cancelled reports whether a stop was requested. Handlers poll this at
// their suspension points and return ErrCancelled when set.
func (run *Run) Cancelled() bool {
	return run.reg.cancels.IsCancelled(run.task.id.String())
}

// RequestGridRefresh flags that clients should reload the game grid when
// the task finishes.
func (run *Run) RequestGridRefresh() {
	run.reg.mu.Lock()
	defer run.reg.mu.Unlock()
	run.task.gridRefresh = true
}

// ProgressUpdate is one progress event. Nil fields leave the current
// value untouched; Stats entries are set absolutely.
type ProgressUpdate struct {
	Percentage  *int
	CurrentStep *int
	TotalSteps  *int
	Stats       Stats
	Message     string
}

// Log appends a plain progress line without touching counters.
func (run *Run) Log(msg string) {
	run.Progress(ProgressUpdate{Message: msg})
}

// Progress applies one progress event: appends the log line, updates the
// counters under the monotonic-percentage rule, feeds live streams, and
// republishes the event to API clients.
func (run *Run) Progress(update ProgressUpdate) {
	t := run.task
	reg := run.reg

	reg.mu.Lock()
	if t.status.Terminal() {
		reg.mu.Unlock()
		return
	}

	if update.Percentage != nil {
		pct := *update.Percentage
		if pct > 100 {
			pct = 100
		}
		// progress never goes backwards within a task
		if pct > t.progress {
			t.progress = pct
		}
	}
	if update.CurrentStep != nil {
		t.currentStep = *update.CurrentStep
	}
	if update.TotalSteps != nil {
		t.totalSteps = *update.TotalSteps
	}
	for k, v := range update.Stats {
		if t.stats == nil {
			t.stats = make(Stats)
		}
		t.stats[k] = v
	}

	params := models.TaskProgressParams{
		TaskID:             t.id.String(),
		Message:            update.Message,
		ProgressPercentage: t.progress,
		CurrentStep:        t.currentStep,
		TotalSteps:         t.totalSteps,
		Stats:              t.stats.Clone(),
	}

	if update.Message != "" && t.logFile != nil {
		line := t.logFile.appendLine(reg.clock.Now(), update.Message)
		t.appendProgressLine(line)
		for _, s := range t.streams {
			s.add(line + "\n")
		}
	}
	reg.mu.Unlock()

	notifications.TaskProgress(reg.ns, params)
}

// AddStats adds deltas to the task's stat counters.
func (run *Run) AddStats(delta Stats) {
	run.reg.mu.Lock()
	defer run.reg.mu.Unlock()
	t := run.task
	if t.stats == nil {
		t.stats = make(Stats)
	}
	for k, v := range delta {
		t.stats[k] += v
	}
}

// SetStat sets one stat counter to an absolute value.
func (run *Run) SetStat(key string, value int) {
	run.reg.mu.Lock()
	defer run.reg.mu.Unlock()
	if run.task.stats == nil {
		run.task.stats = make(Stats)
	}
	run.task.stats[key] = value
}

// Stats returns a copy of the current counters.
func (run *Run) Stats() Stats {
	run.reg.mu.Lock()
	defer run.reg.mu.Unlock()
	return run.task.stats.Clone()
}
