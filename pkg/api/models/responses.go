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

// VersionResponse is the response for the version method.
type VersionResponse struct {
	Version  string `json:"version"`
	Platform string `json:"platform"`
}

// SettingsResponse is the response for the settings method.
type SettingsResponse struct {
	RomsRootDirectory string `json:"roms_root_directory"`
	APIPort           int    `json:"api_port"`
	DebugLogging      bool   `json:"debug_logging"`
}

// SettingsUpdateParams carries the mutable settings fields. Nil fields
// are left untouched.
type SettingsUpdateParams struct {
	RomsRootDirectory *string `json:"roms_root_directory,omitempty"`
	APIPort           *int    `json:"api_port,omitempty" validate:"omitempty,min=1,max=65535"`
	DebugLogging      *bool   `json:"debug_logging,omitempty"`
}

// CatalogGamesResponse lists one system's catalog entries. Each game is a
// map of serialized field name to value; empty fields are omitted.
type CatalogGamesResponse struct {
	System string              `json:"system"`
	Games  []map[string]string `json:"games"`
	Total  int                 `json:"total"`
}

// SystemInfo is one known system in the state directory.
type SystemInfo struct {
	System string `json:"system"`
	Games  int    `json:"games"`
}

// CatalogSystemsResponse lists the systems with an authoritative catalog.
type CatalogSystemsResponse struct {
	Systems []SystemInfo `json:"systems"`
}

// CatalogPublishResponse reports where the catalog was published to.
type CatalogPublishResponse struct {
	Destination string `json:"destination"`
}

// CorpusStatusResponse describes the metadata corpus cache.
type CorpusStatusResponse struct {
	State     string `json:"state"`
	Path      string `json:"path"`
	Entries   int    `json:"entries"`
	Platforms int    `json:"platforms"`
}

// CorpusPlatformsResponse lists the distinct platform tags in the corpus.
type CorpusPlatformsResponse struct {
	Platforms []string `json:"platforms"`
}

// CorpusUpdateParams selects the provider whose corpus archive to fetch.
type CorpusUpdateParams struct {
	Provider string `json:"provider,omitempty"`
}

// MatchPreviewResponse is the dry-run match result for one name.
type MatchPreviewResponse struct {
	Result     *MatchCandidate  `json:"result,omitempty"`
	Candidates []MatchCandidate `json:"candidates,omitempty"`
	Matched    bool             `json:"matched"`
}

// MatchApplyResponse reports the catalog entry a candidate was applied to.
type MatchApplyResponse struct {
	GamePath string `json:"game_path"`
	Updated  bool   `json:"updated"`
}

// TaskLogsResponse carries one task's full log content.
type TaskLogsResponse struct {
	TaskID  string `json:"task_id"`
	Content string `json:"content"`
}

// RoomResponse reports the room a session now occupies; empty after leave.
type RoomResponse struct {
	Room string `json:"room"`
}
