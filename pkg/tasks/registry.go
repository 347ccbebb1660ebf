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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/RomStashProject/romstash-core/pkg/api/notifications"
	"github.com/RomStashProject/romstash-core/pkg/helpers/syncutil"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultStopGrace is how long StopTask waits for a running handler
	// to acknowledge the stop flag before the task is force-stopped.
	DefaultStopGrace = 5 * time.Second

	// idleLimit is how long a task may sit in idle before the sweeper
	// transitions it to error.
	idleLimit = 5 * time.Minute

	sweepInterval = 30 * time.Second
)

// ErrUnknownKind is returned for submissions with an unregistered kind.
var ErrUnknownKind = errors.New("unknown task kind")

// Handler executes one task kind. Returning ErrCancelled marks the task
// stopped; any other error marks it failed.
type Handler func(run *Run) error

// Registry is the process-wide task orchestrator: a single-writer
// scheduler with a FIFO queue behind the one running task.
type Registry struct {
	clock     clockwork.Clock
	tasks     map[uuid.UUID]*Task
	handlers  map[Kind]Handler
	cancels   *CancelFlags
	ns        chan<- models.Notification
	sweepStop chan struct{}

	logsDir string

	order []uuid.UUID
	queue []uuid.UUID

	running uuid.UUID

	wg sync.WaitGroup
	mu syncutil.Mutex

	maxTasks  int
	stopGrace time.Duration

	sweeping bool
	closed   bool
}

// NewRegistry creates the orchestrator. Tasks log under logsDir; at most
// maxTasks records are kept in memory before oldest terminal tasks are
// evicted along with their log files.
func NewRegistry(logsDir string, maxTasks int, clock clockwork.Clock,
	ns chan<- models.Notification,
) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		clock:     clock,
		tasks:     make(map[uuid.UUID]*Task),
		handlers:  make(map[Kind]Handler),
		cancels:   NewCancelFlags(),
		ns:        ns,
		sweepStop: make(chan struct{}),
		logsDir:   logsDir,
		running:   uuid.Nil,
		maxTasks:  maxTasks,
		stopGrace: DefaultStopGrace,
	}
}

// Register binds a handler to a task kind. Must be called before any
// submission of that kind.
func (r *Registry) Register(kind Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Cancels returns the shared cooperative cancel map.
func (r *Registry) Cancels() *CancelFlags {
	return r.cancels
}

// Submit creates a task and either starts it immediately or appends it
// to the FIFO queue behind the running task.
func (r *Registry) Submit(kind Kind, username string, data json.RawMessage) (Snapshot, error) {
	if !ValidKind(kind) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Snapshot{}, errors.New("task registry is shut down")
	}
	if _, ok := r.handlers[kind]; !ok {
		return Snapshot{}, fmt.Errorf("%w: no handler for %s", ErrUnknownKind, kind)
	}

	now := r.clock.Now()
	t := &Task{
		id:        uuid.New(),
		kind:      kind,
		status:    StatusIdle,
		username:  username,
		data:      data,
		startedAt: now,
		stats:     make(Stats),
		done:      make(chan struct{}),
	}

	lf, err := openLogFile(r.logsDir, t.id, kind, username, data, now)
	if err != nil {
		return Snapshot{}, err
	}
	t.logFile = lf

	r.tasks[t.id] = t
	r.order = append(r.order, t.id)

	if r.running == uuid.Nil {
		r.startLocked(t)
	} else {
		t.status = StatusQueued
		r.queue = append(r.queue, t.id)
		log.Info().Str("task", t.id.String()).Str("kind", string(kind)).
			Int("queue_len", len(r.queue)).Msg("task queued")
	}

	return t.snapshotLocked(), nil
}

// startLocked transitions a task to running and launches its handler.
// Caller holds the lock.
func (r *Registry) startLocked(t *Task) {
	t.status = StatusRunning
	r.running = t.id
	log.Info().Str("task", t.id.String()).Str("kind", string(t.kind)).Msg("task started")

	handler := r.handlers[t.kind]
	r.wg.Add(1)
	go r.exec(t, handler)
}

func (r *Registry) exec(t *Task, handler Handler) {
	defer r.wg.Done()

	var err error
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("task handler panicked: %v", p)
				log.Error().Str("task", t.id.String()).Interface("panic", p).
					Msg("task handler panicked")
			}
		}()
		err = handler(&Run{task: t, reg: r})
	}()

	r.finish(t, err)
}

// finish performs the terminal transition, writes the footer, republishes
// the completion, and dequeues the next task.
func (r *Registry) finish(t *Task, err error) {
	r.mu.Lock()

	if t.status.Terminal() {
		// force-stopped by the grace timer while the handler was still
		// unwinding; nothing left to record
		r.mu.Unlock()
		return
	}

	switch {
	case err == nil:
		t.status = StatusCompleted
		t.progress = 100
	case errors.Is(err, ErrCancelled):
		t.status = StatusStopped
	default:
		t.status = StatusError
		t.errMsg = err.Error()
	}
	r.terminalLocked(t)

	// successor must start in the same critical section: releasing the
	// lock with running == uuid.Nil lets a concurrent Submit start a
	// second task, and the popped successor could be stopped before it
	// transitions to running
	if next := r.dequeueLocked(); next != nil {
		r.startLocked(next)
	}
	r.mu.Unlock()
}

// terminalLocked records end state for a task that just left running or
// queued. Caller holds the lock and has set the terminal status.
func (r *Registry) terminalLocked(t *Task) {
	t.endedAt = r.clock.Now()
	if t.logFile != nil {
		t.logFile.writeFooter(footer{
			endedAt:     t.endedAt,
			status:      t.status,
			duration:    t.endedAt.Sub(t.startedAt),
			progress:    t.progress,
			currentStep: t.currentStep,
			totalSteps:  t.totalSteps,
			system:      t.system,
			stats:       t.stats,
		})
		t.logFile = nil
	}
	r.cancels.Clear(t.id.String())
	r.closeStreamsLocked(t)
	close(t.done)

	if r.running == t.id {
		r.running = uuid.Nil
	}

	log.Info().Str("task", t.id.String()).Str("status", string(t.status)).
		Msg("task finished")
	notifications.TaskCompleted(r.ns, t.id.String(), t.system, t.status == StatusCompleted)

	r.evictLocked()
}

// dequeueLocked pops the queue head, skipping ids stopped while queued.
func (r *Registry) dequeueLocked() *Task {
	for len(r.queue) > 0 {
		id := r.queue[0]
		r.queue = r.queue[1:]
		if t, ok := r.tasks[id]; ok && t.status == StatusQueued {
			return t
		}
	}
	return nil
}

// evictLocked enforces the retention ceiling: oldest terminal tasks are
// dropped from memory and their log files deleted. Non-terminal tasks
// are never evicted.
func (r *Registry) evictLocked() {
	if r.maxTasks <= 0 {
		return
	}
	for len(r.order) > r.maxTasks {
		evicted := false
		for i, id := range r.order {
			t, ok := r.tasks[id]
			if ok && !t.status.Terminal() {
				continue
			}
			if ok {
				logPath := LogFilePath(r.logsDir, id)
				if err := os.Remove(logPath); err != nil && !os.IsNotExist(err) {
					log.Warn().Err(err).Str("path", logPath).Msg("failed to delete evicted task log")
				}
			}
			delete(r.tasks, id)
			r.order = append(r.order[:i], r.order[i+1:]...)
			evicted = true
			break
		}
		if !evicted {
			return
		}
	}
}

// StopTask requests a cooperative stop. Queued tasks leave the queue
// immediately with no side effects; the running task keeps status
// running until its handler acknowledges or the grace period expires.
func (r *Registry) StopTask(id uuid.UUID) error {
	r.mu.Lock()

	t, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}

	switch {
	case t.status.Terminal():
		r.mu.Unlock()
		return nil
	case t.status == StatusQueued:
		t.status = StatusStopped
		r.terminalLocked(t)
		r.mu.Unlock()
		return nil
	case t.status == StatusRunning:
		t.cancelled = true
		r.cancels.Set(id.String())
		done := t.done
		grace := r.stopGrace
		r.mu.Unlock()

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			select {
			case <-done:
			case <-r.clock.After(grace):
				r.forceStop(t)
			}
		}()
		return nil
	default:
		// idle tasks never acquired a worker; stop them directly
		t.status = StatusStopped
		r.terminalLocked(t)
		r.mu.Unlock()
		return nil
	}
}

// forceStop transitions a task that ignored the stop flag past the grace
// period. The handler goroutine may still be unwinding; finish detects
// the terminal status and skips its own transition.
func (r *Registry) forceStop(t *Task) {
	r.mu.Lock()
	if t.status.Terminal() {
		r.mu.Unlock()
		return
	}
	log.Warn().Str("task", t.id.String()).Msg("stop grace period expired, forcing stopped status")
	t.status = StatusStopped
	r.terminalLocked(t)
	// same single critical section as finish: never expose an idle
	// registry with a popped-but-unstarted successor
	if next := r.dequeueLocked(); next != nil {
		r.startLocked(next)
	}
	r.mu.Unlock()
}

// Get returns a task snapshot.
func (r *Registry) Get(id uuid.UUID) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return t.snapshotLocked(), nil
}

// List returns snapshots of all known tasks, newest first.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		if t, ok := r.tasks[r.order[i]]; ok {
			out = append(out, t.snapshotLocked())
		}
	}
	return out
}

// Running reports whether a task is currently executing.
func (r *Registry) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running != uuid.Nil
}

// LogContent returns the full on-disk log for a task.
func (r *Registry) LogContent(id uuid.UUID) (string, error) {
	path := LogFilePath(r.logsDir, id)
	data, err := os.ReadFile(path) //nolint:gosec // path derived from uuid
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read task log: %w", err)
	}
	return string(data), nil
}

// LoadHistory reconstructs task records from the log directory. Tasks
// that were running when the previous process died are classified as
// stopped, never resumed.
func (r *Registry) LoadHistory() error {
	entries, err := os.ReadDir(r.logsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read task log directory: %w", err)
	}

	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		rec, err := ParseLogFile(filepath.Join(r.logsDir, entry.Name()))
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("skipping unreadable task log")
			continue
		}
		if rec.Status == StatusRunning {
			rec.Status = StatusStopped
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartTS.Before(records[j].StartTS)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		if _, exists := r.tasks[rec.ID]; exists {
			continue
		}
		t := &Task{
			id:          rec.ID,
			kind:        rec.Kind,
			status:      rec.Status,
			username:    rec.Username,
			system:      rec.System,
			data:        rec.Data,
			startedAt:   rec.StartTS,
			endedAt:     rec.EndTS,
			progress:    rec.Progress,
			currentStep: rec.CurrentStep,
			totalSteps:  rec.TotalSteps,
			stats:       rec.Stats,
			done:        make(chan struct{}),
		}
		close(t.done)
		r.tasks[t.id] = t
		r.order = append(r.order, t.id)
	}
	r.evictLocked()

	log.Info().Int("tasks", len(records)).Msg("task history reloaded")
	return nil
}

// StartSweeper launches the stuck-task sweeper.
func (r *Registry) StartSweeper() {
	r.mu.Lock()
	if r.sweeping || r.closed {
		r.mu.Unlock()
		return
	}
	r.sweeping = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-r.sweepStop:
				return
			case <-r.clock.After(sweepInterval):
				r.sweepStuck()
			}
		}
	}()
}

// sweepStuck force-fails tasks sitting in idle past the limit.
func (r *Registry) sweepStuck() {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.status != StatusIdle || t.startedAt.IsZero() {
			continue
		}
		if now.Sub(t.startedAt) <= idleLimit {
			continue
		}
		t.status = StatusError
		t.errMsg = "stuck in idle"
		r.terminalLocked(t)
	}
}

// Close stops the sweeper, flags every non-terminal task for stop, and
// waits for handlers to finish.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	sweeping := r.sweeping

	var queued []*Task
	for _, t := range r.tasks {
		switch t.status {
		case StatusRunning:
			t.cancelled = true
			r.cancels.Set(t.id.String())
		case StatusQueued, StatusIdle:
			queued = append(queued, t)
		case StatusCompleted, StatusError, StatusStopped:
		}
	}
	for _, t := range queued {
		t.status = StatusStopped
		r.terminalLocked(t)
	}
	r.queue = nil
	r.mu.Unlock()

	if sweeping {
		close(r.sweepStop)
	}
	r.wg.Wait()
}
