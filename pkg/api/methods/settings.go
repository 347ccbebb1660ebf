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

	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/RomStashProject/romstash-core/pkg/api/validation"
	"github.com/rs/zerolog/log"
)

// HandleSettings returns the mutable settings.
func HandleSettings(env RequestEnv) (any, error) {
	return models.SettingsResponse{
		RomsRootDirectory: env.Config.RomsRootDir(),
		APIPort:           env.Config.APIPort(),
		DebugLogging:      env.Config.DebugLogging(),
	}, nil
}

// HandleSettingsUpdate applies the given settings fields and saves the
// config file. Nil fields are left untouched.
func HandleSettingsUpdate(env RequestEnv) (any, error) {
	var params models.SettingsUpdateParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	if params.RomsRootDirectory != nil {
		env.Config.SetRomsRootDir(*params.RomsRootDirectory)
	}
	if params.APIPort != nil {
		env.Config.SetAPIPort(*params.APIPort)
	}
	if params.DebugLogging != nil {
		env.Config.SetDebugLogging(*params.DebugLogging)
	}

	if err := env.Config.Save(); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}
	log.Info().Msg("settings updated via api")
	return HandleSettings(env)
}

// HandleSettingsReload rereads the config file from disk.
func HandleSettingsReload(env RequestEnv) (any, error) {
	if err := env.Config.Load(); err != nil {
		return nil, fmt.Errorf("failed to reload config: %w", err)
	}
	return HandleSettings(env)
}
