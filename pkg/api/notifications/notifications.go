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

// Package notifications builds the change events published to API
// clients. Sends never block: when the channel is full the event is
// dropped, consumers are expected to resync from the catalog or the task
// log.
package notifications

import (
	"time"

	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/rs/zerolog/log"
)

func send(ns chan<- models.Notification, n models.Notification) {
	if ns == nil {
		return
	}
	select {
	case ns <- n:
	default:
		log.Warn().Str("method", n.Method).Msg("notification channel full, dropping event")
	}
}

// SystemUpdated publishes a room-scoped catalog mutation event.
func SystemUpdated(ns chan<- models.Notification, system, action string, data any) {
	send(ns, models.Notification{
		Method: models.NotificationSystemUpdated,
		System: system,
		Params: models.SystemUpdatedParams{
			System:    system,
			Action:    action,
			Data:      data,
			Timestamp: time.Now().UTC(),
		},
	})
}

// TaskProgress publishes one task progress event to all clients.
func TaskProgress(ns chan<- models.Notification, params models.TaskProgressParams) {
	send(ns, models.Notification{
		Method: models.NotificationTaskProgress,
		Params: params,
	})
}

// TaskCompleted announces a terminal task transition to all clients.
func TaskCompleted(ns chan<- models.Notification, taskID, system string, success bool) {
	send(ns, models.Notification{
		Method: models.NotificationTaskCompleted,
		Params: models.TaskCompletedParams{
			TaskID:  taskID,
			System:  system,
			Success: success,
		},
	})
}

// TaskLogChunk delivers one live log stream delta.
func TaskLogChunk(ns chan<- models.Notification, taskID, chunk string, final bool) {
	send(ns, models.Notification{
		Method: models.NotificationTaskLogChunk,
		Params: models.TaskLogChunkParams{
			TaskID: taskID,
			Chunk:  chunk,
			Final:  final,
		},
	})
}

// PartialMatch asks clients to review fuzzy candidates for one game.
func PartialMatch(ns chan<- models.Notification, params models.PartialMatchParams) {
	send(ns, models.Notification{
		Method: models.NotificationPartialMatch,
		Params: params,
	})
}
