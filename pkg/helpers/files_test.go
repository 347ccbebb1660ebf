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

package helpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFile(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	src := filepath.Join(tempDir, "src.txt")
	dst := filepath.Join(tempDir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o600))

	require.NoError(t, CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestBackupTimestamped(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	target := filepath.Join(tempDir, "gamelist.xml")
	require.NoError(t, os.WriteFile(target, []byte("<gameList/>"), 0o600))

	now := time.Unix(1700000000, 0)
	backup, err := BackupTimestamped(target, now)
	require.NoError(t, err)
	assert.Equal(t, target+".backup.1700000000", backup)

	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "<gameList/>", string(data))
}

func TestBackupTimestampedMissingSource(t *testing.T) {
	t.Parallel()

	backup, err := BackupTimestamped(filepath.Join(t.TempDir(), "absent.xml"), time.Now())
	require.NoError(t, err)
	assert.Empty(t, backup)
}

func TestFilenameStem(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{name: "relative rom path", path: "./Foo (USA).zip", expected: "Foo (USA)"},
		{name: "nested path", path: "roms/snes/Bar.sfc", expected: "Bar"},
		{name: "no extension", path: "plain", expected: "plain"},
		{name: "windows separators", path: "roms\\snes\\Baz.smc", expected: "Baz"},
		{name: "dot in name", path: "./Dr. Game (Europe).zip", expected: "Dr. Game (Europe)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, FilenameStem(tt.path))
		})
	}
}
