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
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// streamThrottle is the minimum interval between live log deltas.
const streamThrottle = 200 * time.Millisecond

// StreamChunk is one delivery on a live log stream: the initial file
// content, an incremental delta, or the final snapshot.
type StreamChunk struct {
	Content string
	Final   bool
}

// logStream fans one task's log lines out to a subscriber, coalescing
// appends so deltas arrive at most once per throttle interval.
type logStream struct {
	clock   clockwork.Clock
	ch      chan StreamChunk
	notify  chan struct{}
	stop    chan struct{}
	pending strings.Builder
	mu      sync.Mutex
	final   bool
	closed  bool
}

func newLogStream(clock clockwork.Clock) *logStream {
	s := &logStream{
		clock:  clock,
		ch:     make(chan StreamChunk, 16),
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	go s.pump()
	return s
}

// add buffers one appended line for delivery.
func (s *logStream) add(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending.WriteString(text)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// finish marks the stream done; the pump sends the final snapshot chunk
// and closes the channel.
func (s *logStream) finish(finalContent string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.final = true
	s.pending.Reset()
	s.pending.WriteString(finalContent)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// cancel tears the stream down from the subscriber side.
func (s *logStream) cancel() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.stop)
}

func (s *logStream) pump() {
	for {
		select {
		case <-s.stop:
			return
		case <-s.notify:
		}

		// coalesce lines arriving inside the throttle window
		select {
		case <-s.stop:
			return
		case <-s.clock.After(streamThrottle):
		}

		s.mu.Lock()
		content := s.pending.String()
		s.pending.Reset()
		final := s.final
		if final {
			s.closed = true
		}
		s.mu.Unlock()

		if content == "" && !final {
			continue
		}

		chunk := StreamChunk{Content: content, Final: final}
		select {
		case s.ch <- chunk:
		case <-s.stop:
			return
		}

		if final {
			close(s.ch)
			return
		}
	}
}

// StreamLogs opens a live stream over a task's log: the current file
// content is returned immediately, deltas arrive on the channel no more
// often than every 200 ms, and a final snapshot closes the stream at
// terminal transition. cancel releases the subscription.
func (r *Registry) StreamLogs(id uuid.UUID) (initial string, ch <-chan StreamChunk, cancel func(), err error) {
	content, err := r.LogContent(id)
	if err != nil {
		return "", nil, nil, err
	}

	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok || t.status.Terminal() {
		r.mu.Unlock()
		// terminal tasks stream nothing further; hand back a closed channel
		done := make(chan StreamChunk)
		close(done)
		return content, done, func() {}, nil
	}

	s := newLogStream(r.clock)
	t.streams = append(t.streams, s)
	r.mu.Unlock()

	cancelFn := func() {
		s.cancel()
		r.mu.Lock()
		for i, st := range t.streams {
			if st == s {
				t.streams = append(t.streams[:i], t.streams[i+1:]...)
				break
			}
		}
		r.mu.Unlock()
	}
	return content, s.ch, cancelFn, nil
}

// closeStreamsLocked sends every subscriber the final snapshot. Caller
// holds the registry lock; the file footer has already been written.
func (r *Registry) closeStreamsLocked(t *Task) {
	if len(t.streams) == 0 {
		return
	}
	final, err := r.LogContent(t.id)
	if err != nil {
		final = strings.Join(t.progressLines, "\n")
	}
	for _, s := range t.streams {
		s.finish(final)
	}
	t.streams = nil
}
