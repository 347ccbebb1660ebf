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

package methods

import (
	"encoding/json"
	"fmt"

	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/RomStashProject/romstash-core/pkg/api/validation"
	"github.com/RomStashProject/romstash-core/pkg/tasks"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// HandleTasksSubmit creates a task and returns its snapshot. The task
// starts immediately unless another task is already running.
func HandleTasksSubmit(env RequestEnv) (any, error) {
	var params models.TasksSubmitParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	snap, err := env.Registry.Submit(tasks.Kind(params.Type), params.Username, params.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to submit task: %w", err)
	}

	log.Info().Str("task", snap.ID).Str("kind", params.Type).
		Str("username", params.Username).Msg("task submitted via api")
	return snap, nil
}

// HandleTasksStop requests a cooperative stop of a task.
func HandleTasksStop(env RequestEnv) (any, error) {
	id, err := taskID(env.Params)
	if err != nil {
		return nil, err
	}
	if err := env.Registry.StopTask(id); err != nil {
		return nil, fmt.Errorf("failed to stop task: %w", err)
	}
	snap, err := env.Registry.Get(id)
	if err != nil {
		return nil, fmt.Errorf("failed to read task: %w", err)
	}
	return snap, nil
}

// HandleTasksGet returns one task snapshot.
func HandleTasksGet(env RequestEnv) (any, error) {
	id, err := taskID(env.Params)
	if err != nil {
		return nil, err
	}
	snap, err := env.Registry.Get(id)
	if err != nil {
		return nil, fmt.Errorf("failed to read task: %w", err)
	}
	return snap, nil
}

// HandleTasksList returns all known tasks, newest first.
func HandleTasksList(env RequestEnv) (any, error) {
	return env.Registry.List(), nil
}

// HandleTasksLogs returns the full on-disk log of a task.
func HandleTasksLogs(env RequestEnv) (any, error) {
	id, err := taskID(env.Params)
	if err != nil {
		return nil, err
	}
	content, err := env.Registry.LogContent(id)
	if err != nil {
		return nil, fmt.Errorf("failed to read task log: %w", err)
	}
	return models.TaskLogsResponse{TaskID: id.String(), Content: content}, nil
}

// HandleTasksLogsStream subscribes the session to live log deltas for a
// task. The current log content is the call result; deltas arrive as
// task_log_chunk notifications on the same session until the task ends or
// the subscription is stopped.
func HandleTasksLogsStream(env RequestEnv) (any, error) {
	if env.Session == nil {
		return nil, ErrNeedsWebsocket
	}

	id, err := taskID(env.Params)
	if err != nil {
		return nil, err
	}

	initial, ch, cancel, err := env.Registry.StreamLogs(id)
	if err != nil {
		return nil, fmt.Errorf("failed to open log stream: %w", err)
	}

	session := env.Session
	streams := env.Streams
	streams.Add(session, id.String(), cancel)

	go func() {
		defer streams.Remove(session, id.String())
		for chunk := range ch {
			if err := writeLogChunk(session, id.String(), chunk); err != nil {
				log.Debug().Err(err).Str("task", id.String()).
					Msg("log stream session write failed, cancelling")
				cancel()
				return
			}
			if chunk.Final {
				return
			}
		}
	}()

	return models.TaskLogsResponse{TaskID: id.String(), Content: initial}, nil
}

// HandleTasksLogsStreamStop unsubscribes the session from a task's log.
func HandleTasksLogsStreamStop(env RequestEnv) (any, error) {
	if env.Session == nil {
		return nil, ErrNeedsWebsocket
	}
	id, err := taskID(env.Params)
	if err != nil {
		return nil, err
	}
	stopped := env.Streams.Stop(env.Session, id.String())
	return map[string]bool{"stopped": stopped}, nil
}

func writeLogChunk(session Session, taskID string, chunk tasks.StreamChunk) error {
	notif := models.RequestObject{
		JSONRPC: "2.0",
		Method:  models.NotificationTaskLogChunk,
	}
	params, err := json.Marshal(models.TaskLogChunkParams{
		TaskID: taskID,
		Chunk:  chunk.Content,
		Final:  chunk.Final,
	})
	if err != nil {
		return fmt.Errorf("failed to encode log chunk: %w", err)
	}
	notif.Params = params

	data, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("failed to encode log chunk notification: %w", err)
	}
	if err := session.Write(data); err != nil {
		return fmt.Errorf("failed to write log chunk: %w", err)
	}
	return nil
}

func taskID(params json.RawMessage) (uuid.UUID, error) {
	var p models.TaskIDParams
	if err := validation.ValidateAndUnmarshal(params, &p); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return uuid.Nil, validation.ErrInvalidParams
	}
	return id, nil
}
