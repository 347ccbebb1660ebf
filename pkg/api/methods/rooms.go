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
	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/RomStashProject/romstash-core/pkg/api/validation"
)

// HandleRoomsJoin moves the session into a system room. A session is in
// at most one room; joining implies leaving the previous one.
func HandleRoomsJoin(env RequestEnv) (any, error) {
	if env.Session == nil {
		return nil, ErrNeedsWebsocket
	}
	var params models.SystemParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}
	env.Rooms.Join(env.Session, params.System)
	return models.RoomResponse{Room: params.System}, nil
}

// HandleRoomsLeave removes the session from its room, if any.
func HandleRoomsLeave(env RequestEnv) (any, error) {
	if env.Session == nil {
		return nil, ErrNeedsWebsocket
	}
	env.Rooms.Leave(env.Session)
	return models.RoomResponse{}, nil
}
