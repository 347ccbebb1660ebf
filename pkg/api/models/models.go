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

// Package models defines the JSON-RPC envelope and the method and
// notification names spoken on the API websocket.
package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Notification method names. system_updated is room-scoped; task events
// are broadcast to every connected client.
const (
	NotificationSystemUpdated = "system_updated"
	NotificationTaskProgress  = "task_progress"
	NotificationTaskCompleted = "task_completed"
	NotificationTaskLogChunk  = "task_log_chunk"
	NotificationPartialMatch  = "partial_match_request"
)

// system_updated actions.
const (
	ActionGamelistUpdated = "gamelist_updated"
	ActionGamesDeleted    = "games_deleted"
	ActionGameUpdated     = "game_updated"
)

// Request method names.
const (
	MethodTasksSubmit         = "tasks.submit"
	MethodTasksStop           = "tasks.stop"
	MethodTasksGet            = "tasks.get"
	MethodTasksList           = "tasks.list"
	MethodTasksLogs           = "tasks.logs"
	MethodTasksLogsStream     = "tasks.logs.stream"
	MethodTasksLogsStreamStop = "tasks.logs.stream.stop"

	MethodCatalogGames   = "catalog.games"
	MethodCatalogSystems = "catalog.systems"
	MethodCatalogPublish = "catalog.publish"
	MethodCatalogDiff    = "catalog.diff"

	MethodCorpusStatus    = "corpus.status"
	MethodCorpusReload    = "corpus.reload"
	MethodCorpusUpdate    = "corpus.update"
	MethodCorpusPlatforms = "corpus.platforms"

	MethodMatchPreview = "match.preview"
	MethodMatchApply   = "match.apply"

	MethodMediaScan = "media.scan"

	MethodRoomsJoin  = "rooms.join"
	MethodRoomsLeave = "rooms.leave"

	MethodSettings       = "settings"
	MethodSettingsUpdate = "settings.update"
	MethodSettingsReload = "settings.reload"
	MethodVersion        = "version"
)

// Notification is one server-to-client event. System scopes delivery to
// the named room; when empty the event goes to every session.
type Notification struct {
	Params any    `json:"params,omitempty"`
	Method string `json:"method"`
	System string `json:"-"`
}

type RequestObject struct {
	ID      *uuid.UUID      `json:"id,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
}

type ErrorObject struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type ResponseObject struct {
	Result  any          `json:"result"`
	Error   *ErrorObject `json:"error,omitempty"`
	JSONRPC string       `json:"jsonrpc"`
	ID      uuid.UUID    `json:"id"`
}
