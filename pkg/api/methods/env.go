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

// Package methods holds the JSON-RPC method handlers dispatched by the
// API server.
package methods

import (
	"encoding/json"
	"errors"

	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/corpus"
	"github.com/RomStashProject/romstash-core/pkg/helpers/syncutil"
	"github.com/RomStashProject/romstash-core/pkg/providerdb"
	"github.com/RomStashProject/romstash-core/pkg/shared/httpclient"
	"github.com/RomStashProject/romstash-core/pkg/tasks"
	"github.com/google/uuid"
)

// ErrNeedsWebsocket is returned by session-bound methods invoked over the
// HTTP POST fallback.
var ErrNeedsWebsocket = errors.New("method requires a websocket connection")

// Session is the client connection a handler may write to directly.
// Satisfied by melody sessions.
type Session interface {
	Write(msg []byte) error
}

// Rooms tracks which room each session occupies.
type Rooms interface {
	Join(s Session, room string)
	Leave(s Session)
}

// RequestEnv is the per-request handler environment.
type RequestEnv struct {
	Config   *config.Instance
	Registry *tasks.Registry
	Corpus   *corpus.Cache
	Client   *httpclient.Client
	Store    *providerdb.Store
	Rooms    Rooms
	Streams  *LogStreams
	Session  Session
	NS       chan<- models.Notification
	Params   json.RawMessage
	DataDir  string
	ID       uuid.UUID
	IsLocal  bool
}

// LogStreams tracks the live log subscriptions per session so they can be
// stopped on request or torn down when the session disconnects.
type LogStreams struct {
	active map[Session]map[string]func()
	mu     syncutil.Mutex
}

// NewLogStreams creates an empty subscription table.
func NewLogStreams() *LogStreams {
	return &LogStreams{active: make(map[Session]map[string]func())}
}

// Add registers a stream cancel func, replacing any earlier subscription
// for the same task on the same session.
func (l *LogStreams) Add(s Session, taskID string, cancel func()) {
	l.mu.Lock()
	prev := l.active[s][taskID]
	if l.active[s] == nil {
		l.active[s] = make(map[string]func())
	}
	l.active[s][taskID] = cancel
	l.mu.Unlock()

	if prev != nil {
		prev()
	}
}

// Remove drops a finished subscription without cancelling it.
func (l *LogStreams) Remove(s Session, taskID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active[s], taskID)
}

// Stop cancels one subscription. Reports whether it existed.
func (l *LogStreams) Stop(s Session, taskID string) bool {
	l.mu.Lock()
	cancel, ok := l.active[s][taskID]
	delete(l.active[s], taskID)
	l.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// CloseSession cancels every subscription held by a disconnecting session.
func (l *LogStreams) CloseSession(s Session) {
	l.mu.Lock()
	cancels := make([]func(), 0, len(l.active[s]))
	for _, cancel := range l.active[s] {
		cancels = append(cancels, cancel)
	}
	delete(l.active, s)
	l.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
