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
)

// HandleMediaScan submits a media_scan task for one system.
func HandleMediaScan(env RequestEnv) (any, error) {
	var params models.MediaScanParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	data, err := json.Marshal(map[string]string{"system": params.System})
	if err != nil {
		return nil, fmt.Errorf("failed to encode media scan payload: %w", err)
	}

	snap, err := env.Registry.Submit(tasks.KindMediaScan, params.Username, data)
	if err != nil {
		return nil, fmt.Errorf("failed to submit media scan: %w", err)
	}
	return snap, nil
}
