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

package api

import (
	"github.com/RomStashProject/romstash-core/pkg/api/methods"
	"github.com/RomStashProject/romstash-core/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// Hub tracks room membership for connected sessions. One room per system;
// a session occupies at most one room at a time; join and leave are
// atomic moves under one process-wide lock.
type Hub struct {
	rooms  map[string]map[methods.Session]bool
	member map[methods.Session]string
	mu     syncutil.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[methods.Session]bool),
		member: make(map[methods.Session]string),
	}
}

// Join moves a session into a room, leaving its previous room in the same
// critical section so no event can observe it in both.
func (h *Hub) Join(s methods.Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(s)
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[methods.Session]bool)
	}
	h.rooms[room][s] = true
	h.member[s] = room
	log.Debug().Str("room", room).Int("members", len(h.rooms[room])).
		Msg("session joined room")
}

// Leave removes a session from its room, if any.
func (h *Hub) Leave(s methods.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(s)
}

func (h *Hub) leaveLocked(s methods.Session) {
	room, ok := h.member[s]
	if !ok {
		return
	}
	delete(h.rooms[room], s)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
	delete(h.member, s)
}

// Room returns the room a session occupies, or empty.
func (h *Hub) Room(s methods.Session) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.member[s]
}

// Members returns how many sessions occupy a room.
func (h *Hub) Members(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// PublishTo writes data to every session in a room. An empty room drops
// the event silently.
func (h *Hub) PublishTo(room string, data []byte) {
	h.mu.Lock()
	sessions := make([]methods.Session, 0, len(h.rooms[room]))
	for s := range h.rooms[room] {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		if err := s.Write(data); err != nil {
			log.Debug().Err(err).Str("room", room).Msg("room publish write failed")
		}
	}
}
