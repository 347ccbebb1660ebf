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
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/RomStashProject/romstash-core/pkg/providerdb"
	"github.com/rs/zerolog/log"
)

const defaultProvider = "launchbox"

// HandleCorpusStatus describes the metadata corpus cache.
func HandleCorpusStatus(env RequestEnv) (any, error) {
	return models.CorpusStatusResponse{
		State:     string(env.Corpus.State()),
		Path:      env.Corpus.Path(),
		Entries:   env.Corpus.Len(),
		Platforms: len(env.Corpus.Platforms()),
	}, nil
}

// HandleCorpusReload drops the cache and reparses the corpus file.
func HandleCorpusReload(env RequestEnv) (any, error) {
	if err := env.Corpus.Reload(); err != nil {
		return nil, fmt.Errorf("failed to reload corpus: %w", err)
	}
	return HandleCorpusStatus(env)
}

// HandleCorpusUpdate downloads a fresh corpus archive from the provider
// and swaps it in. The cache reloads lazily on next use.
func HandleCorpusUpdate(env RequestEnv) (any, error) {
	var params models.CorpusUpdateParams
	if len(env.Params) > 0 {
		if err := json.Unmarshal(env.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid corpus update params: %w", err)
		}
	}
	provider := params.Provider
	if provider == "" {
		provider = defaultProvider
	}

	archiveURL := env.Config.ProviderMetadataURL(provider)
	if err := env.Corpus.Update(context.Background(), env.Client, archiveURL); err != nil {
		return nil, fmt.Errorf("failed to update corpus: %w", err)
	}

	if env.Store != nil {
		stamp := time.Now().UTC().Format(time.RFC3339)
		if err := env.Store.SetMeta(providerdb.MetaCorpusUpdatedAt, stamp); err != nil {
			log.Warn().Err(err).Msg("failed to record corpus update timestamp")
		}
	}

	return HandleCorpusStatus(env)
}

// HandleCorpusPlatforms lists the distinct platform tags in the corpus.
func HandleCorpusPlatforms(env RequestEnv) (any, error) {
	if err := env.Corpus.EnsureLoaded(); err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	return models.CorpusPlatformsResponse{Platforms: env.Corpus.Platforms()}, nil
}
