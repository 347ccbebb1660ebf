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

package validation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndUnmarshalMissingParams(t *testing.T) {
	t.Parallel()

	var dest models.SystemParams
	err := ValidateAndUnmarshal(nil, &dest)
	require.ErrorIs(t, err, ErrMissingParams)
}

func TestValidateAndUnmarshalBadJSON(t *testing.T) {
	t.Parallel()

	var dest models.SystemParams
	err := ValidateAndUnmarshal(json.RawMessage(`{"system":`), &dest)
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestValidateAndUnmarshalRequiredField(t *testing.T) {
	t.Parallel()

	var dest models.SystemParams
	err := ValidateAndUnmarshal(json.RawMessage(`{}`), &dest)
	require.Error(t, err)

	var ve *Error
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Fields, 1)
	assert.Equal(t, "required", ve.Fields[0].Tag)
	assert.Contains(t, ve.Error(), "system is required")
}

func TestValidateTaskKind(t *testing.T) {
	t.Parallel()

	var dest models.TasksSubmitParams
	err := ValidateAndUnmarshal(
		json.RawMessage(`{"type":"media_scan","username":"alice"}`), &dest)
	require.NoError(t, err)
	assert.Equal(t, "media_scan", dest.Type)

	err = ValidateAndUnmarshal(
		json.RawMessage(`{"type":"defrag","username":"alice"}`), &dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `task kind "defrag" not found`)
}

func TestValidateUUIDParam(t *testing.T) {
	t.Parallel()

	var dest models.TaskIDParams
	err := ValidateAndUnmarshal(json.RawMessage(`{"id":"not-a-uuid"}`), &dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id must be a valid UUID")

	err = ValidateAndUnmarshal(
		json.RawMessage(`{"id":"0f8d7b0e-2a1f-4f87-9c7e-53bb1a0fbd11"}`), &dest)
	require.NoError(t, err)
}
