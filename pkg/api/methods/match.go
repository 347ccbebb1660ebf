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
	"errors"
	"fmt"

	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/RomStashProject/romstash-core/pkg/api/notifications"
	"github.com/RomStashProject/romstash-core/pkg/api/validation"
	"github.com/RomStashProject/romstash-core/pkg/catalog"
	"github.com/RomStashProject/romstash-core/pkg/helpers"
	"github.com/RomStashProject/romstash-core/pkg/match"
	"github.com/RomStashProject/romstash-core/pkg/scraper"
	"github.com/rs/zerolog/log"
)

// ErrGameNotFound is returned when a catalog has no entry for the given
// ROM path.
var ErrGameNotFound = errors.New("game not found in catalog")

// ErrEntryNotFound is returned when the corpus has no record for the
// given DatabaseID.
var ErrEntryNotFound = errors.New("entry not found in corpus")

const previewCandidateLimit = 10

// HandleMatchPreview runs a dry-run match of one name against a platform
// view. Nothing is written.
func HandleMatchPreview(env RequestEnv) (any, error) {
	var params models.MatchPreviewParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}
	if err := env.Corpus.EnsureLoaded(); err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}

	engine := match.NewEngine(env.Corpus.BuildPlatformView(params.Platform))
	query := match.Query{Name: params.Name, ExistingID: params.ExistingID}

	resp := models.MatchPreviewResponse{}
	if res, ok := engine.Match(query); ok {
		resp.Matched = true
		resp.Result = &models.MatchCandidate{
			DatabaseID: res.Entry.DatabaseID,
			Name:       res.Entry.Name,
			AltName:    res.AltName,
			Source:     string(res.Source),
			Score:      res.Score,
		}
	}

	limit := params.Limit
	if limit <= 0 {
		limit = previewCandidateLimit
	}
	for _, c := range engine.Candidates(query, limit) {
		resp.Candidates = append(resp.Candidates, models.MatchCandidate{
			DatabaseID: c.Entry.DatabaseID,
			Name:       c.Entry.Name,
			AltName:    c.AltName,
			Source:     string(c.Source),
			Score:      c.Score,
		})
	}

	return resp, nil
}

// HandleMatchApply binds a reviewed candidate to one catalog entry and
// rewrites the catalog. This is the resolution path for partial-match
// review: the chosen DatabaseID is applied as if it had matched exactly.
func HandleMatchApply(env RequestEnv) (any, error) {
	var params models.MatchApplyParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}
	if err := env.Corpus.EnsureLoaded(); err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}

	entry, ok := env.Corpus.Entry(params.DatabaseID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", params.DatabaseID, ErrEntryNotFound)
	}

	path := helpers.GamelistPath(env.DataDir, params.System)
	games, err := catalog.ParseCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	idx := -1
	for i := range games {
		if games[i].Path == params.GamePath {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%s: %w", params.GamePath, ErrGameNotFound)
	}

	res := match.Result{Entry: entry, Score: 1.0, Source: match.SourceMain}
	if params.AltName != "" {
		res.Source = match.SourceAlternate
		res.AltName = params.AltName
	}
	updated := scraper.ApplyEntry(&games[idx], res, scraper.ApplyOptions{
		SelectedFields: params.SelectedFields,
		OverwriteText:  params.Overwrite,
	})

	if updated {
		if _, err := catalog.WriteCatalog(path, games); err != nil {
			return nil, fmt.Errorf("failed to write catalog: %w", err)
		}
	}

	if env.Store != nil {
		if err := env.Store.ResolveReview(params.System, params.GamePath); err != nil {
			log.Warn().Err(err).Str("system", params.System).
				Str("path", params.GamePath).Msg("failed to resolve review item")
		}
	}

	notifications.SystemUpdated(env.NS, params.System, models.ActionGameUpdated,
		map[string]string{"path": params.GamePath})
	return models.MatchApplyResponse{GamePath: params.GamePath, Updated: updated}, nil
}
