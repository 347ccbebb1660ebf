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

package models

import (
	"encoding/json"
	"time"
)

// SystemUpdatedParams is the envelope for room-scoped mutation events.
type SystemUpdatedParams struct {
	Data      any       `json:"data,omitempty"`
	System    string    `json:"system"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskProgressParams mirrors one task progress event.
type TaskProgressParams struct {
	Stats              map[string]int `json:"stats,omitempty"`
	TaskID             string         `json:"task_id"`
	Message            string         `json:"message"`
	ProgressPercentage int            `json:"progress_percentage"`
	CurrentStep        int            `json:"current_step"`
	TotalSteps         int            `json:"total_steps"`
}

// TaskCompletedParams announces a terminal task transition.
type TaskCompletedParams struct {
	TaskID  string `json:"task_id"`
	System  string `json:"system,omitempty"`
	Success bool   `json:"success"`
}

// TaskLogChunkParams carries one live log stream delta.
type TaskLogChunkParams struct {
	TaskID string `json:"task_id"`
	Chunk  string `json:"chunk"`
	Final  bool   `json:"final"`
}

// MatchCandidate is one ranked entry in a partial-match review list.
type MatchCandidate struct {
	DatabaseID string  `json:"database_id"`
	Name       string  `json:"name"`
	AltName    string  `json:"alt_name,omitempty"`
	Source     string  `json:"source"`
	Score      float64 `json:"score"`
}

// PartialMatchParams asks a client to review fuzzy match candidates.
type PartialMatchParams struct {
	TaskID     string           `json:"task_id"`
	System     string           `json:"system"`
	GamePath   string           `json:"game_path"`
	GameName   string           `json:"game_name"`
	Candidates []MatchCandidate `json:"candidates"`
}

// TasksSubmitParams submits a new task.
type TasksSubmitParams struct {
	Data     json.RawMessage `json:"data,omitempty"`
	Type     string          `json:"type" validate:"required,taskkind"`
	Username string          `json:"username" validate:"required"`
}

// TaskIDParams addresses one task by id.
type TaskIDParams struct {
	ID string `json:"id" validate:"required,uuid4"`
}

// SystemParams addresses one system.
type SystemParams struct {
	System string `json:"system" validate:"required"`
}

// CatalogDiffParams names two catalog files to compare.
type CatalogDiffParams struct {
	Baseline  string `json:"baseline" validate:"required"`
	Candidate string `json:"candidate" validate:"required"`
}

// MatchPreviewParams is a dry-run single-name match.
type MatchPreviewParams struct {
	Platform   string `json:"platform" validate:"required"`
	Name       string `json:"name" validate:"required"`
	ExistingID string `json:"existing_id,omitempty"`
	Limit      int    `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
}

// MatchApplyParams applies a reviewed candidate to a catalog entry.
type MatchApplyParams struct {
	System         string   `json:"system" validate:"required"`
	GamePath       string   `json:"game_path" validate:"required"`
	DatabaseID     string   `json:"database_id" validate:"required"`
	AltName        string   `json:"alt_name,omitempty"`
	SelectedFields []string `json:"selected_fields,omitempty"`
	Overwrite      bool     `json:"overwrite"`
}

// MediaScanParams submits a media_scan task for one system.
type MediaScanParams struct {
	System   string `json:"system" validate:"required"`
	Username string `json:"username" validate:"required"`
}
