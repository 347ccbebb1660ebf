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
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/RomStashProject/romstash-core/pkg/api/notifications"
	"github.com/RomStashProject/romstash-core/pkg/api/validation"
	"github.com/RomStashProject/romstash-core/pkg/catalog"
	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/helpers"
	"github.com/rs/zerolog/log"
)

// HandleCatalogGames returns one system's catalog as wire-form games.
func HandleCatalogGames(env RequestEnv) (any, error) {
	var params models.SystemParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	games, err := catalog.ParseCatalog(helpers.GamelistPath(env.DataDir, params.System))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	out := make([]map[string]string, 0, len(games))
	for i := range games {
		entry := make(map[string]string)
		for _, field := range catalog.FieldOrder {
			if v, _ := games[i].Field(field); v != "" {
				entry[field] = v
			}
		}
		out = append(out, entry)
	}

	return models.CatalogGamesResponse{
		System: params.System,
		Games:  out,
		Total:  len(out),
	}, nil
}

// HandleCatalogSystems lists the systems with an authoritative catalog in
// the state directory.
func HandleCatalogSystems(env RequestEnv) (any, error) {
	root := filepath.Join(env.DataDir, config.GamelistsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return models.CatalogSystemsResponse{Systems: []models.SystemInfo{}}, nil
		}
		return nil, fmt.Errorf("failed to read gamelists directory: %w", err)
	}

	systems := make([]models.SystemInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		games, err := catalog.ParseCatalog(helpers.GamelistPath(env.DataDir, entry.Name()))
		if err != nil {
			log.Warn().Err(err).Str("system", entry.Name()).
				Msg("skipping unreadable catalog")
			continue
		}
		systems = append(systems, models.SystemInfo{
			System: entry.Name(),
			Games:  len(games),
		})
	}
	sort.Slice(systems, func(i, j int) bool {
		return systems[i].System < systems[j].System
	})

	return models.CatalogSystemsResponse{Systems: systems}, nil
}

// HandleCatalogPublish copies the authoritative catalog into the system's
// ROM directory and notifies the system room.
func HandleCatalogPublish(env RequestEnv) (any, error) {
	var params models.SystemParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	dst, err := catalog.CopyCatalogToRomTree(env.DataDir, env.Config.RomsRootDir(), params.System)
	if err != nil {
		return nil, fmt.Errorf("failed to publish catalog: %w", err)
	}

	notifications.SystemUpdated(env.NS, params.System, models.ActionGamelistUpdated,
		map[string]string{"destination": dst})
	return models.CatalogPublishResponse{Destination: dst}, nil
}

// HandleCatalogDiff compares two catalog files by game path.
func HandleCatalogDiff(env RequestEnv) (any, error) {
	var params models.CatalogDiffParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	baseline, err := catalog.ParseCatalog(params.Baseline)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline catalog: %w", err)
	}
	candidate, err := catalog.ParseCatalog(params.Candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidate catalog: %w", err)
	}

	return catalog.DiffCatalogs(baseline, candidate), nil
}
