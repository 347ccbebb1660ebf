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

package command

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealExecutor_Run(t *testing.T) {
	t.Parallel()

	executor := &RealExecutor{}

	t.Run("executes_successful_command", func(t *testing.T) {
		t.Parallel()

		err := executor.Run(context.Background(), "true")

		assert.NoError(t, err)
	})

	t.Run("returns_error_for_failed_command", func(t *testing.T) {
		t.Parallel()

		err := executor.Run(context.Background(), "false")

		assert.Error(t, err)
	})

	t.Run("returns_error_for_nonexistent_command", func(t *testing.T) {
		t.Parallel()

		err := executor.Run(context.Background(), "nonexistent_command_that_should_not_exist_12345")

		require.Error(t, err)
	})
}

func TestRealExecutor_Output(t *testing.T) {
	t.Parallel()

	executor := &RealExecutor{}

	out, err := executor.Output(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", strings.TrimSpace(string(out)))
}

func TestRealExecutor_RunCapture(t *testing.T) {
	t.Parallel()

	executor := &RealExecutor{}

	t.Run("captures_stderr", func(t *testing.T) {
		t.Parallel()

		var stderr bytes.Buffer
		err := executor.RunCapture(context.Background(), &stderr, "sh", "-c", "echo oops >&2")

		require.NoError(t, err)
		assert.Equal(t, "oops", strings.TrimSpace(stderr.String()))
	})

	t.Run("returns_exit_error_with_captured_stderr", func(t *testing.T) {
		t.Parallel()

		var stderr bytes.Buffer
		err := executor.RunCapture(context.Background(), &stderr, "sh", "-c", "echo bad >&2; exit 3")

		require.Error(t, err)
		assert.Equal(t, "bad", strings.TrimSpace(stderr.String()))
	})
}
