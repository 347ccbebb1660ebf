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

package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffCatalogs(t *testing.T) {
	t.Parallel()

	baseline := []Game{
		{ID: "1", Path: "./a.zip", Name: "A", Boxart: "./media/boxart/a.png"},
		{ID: "2", Path: "./b.zip", Name: "B"},
		{ID: "3", Path: "./c.zip", Name: "C", Image: "./media/image/c.png", Video: "./media/video/c.mp4"},
	}
	candidate := []Game{
		{ID: "2", Path: "./b.zip", Name: "B", Boxart: "./media/boxart/b.png"},
		{ID: "3", Path: "./c.zip", Name: "C Renamed", Image: "./media/image/c.png", Video: "./media/video/c.mp4"},
		{ID: "4", Path: "./d.zip", Name: "D", Marquee: "./media/marquee/d.png"},
	}

	diff := DiffCatalogs(baseline, candidate)

	assert.Equal(t, []string{"./d.zip"}, diff.Added)
	assert.Equal(t, []string{"./a.zip"}, diff.Removed)
	assert.Equal(t, 1, diff.MediaAdded)
	assert.Equal(t, 1, diff.MediaRemoved)
	assert.Equal(t, 3, diff.TotalGames)
	assert.Equal(t, 4, diff.TotalMedia)
}

func TestDiffCatalogsIdentical(t *testing.T) {
	t.Parallel()

	games := []Game{
		{ID: "1", Path: "./a.zip", Name: "A", Boxart: "./media/boxart/a.png"},
		{ID: "2", Path: "./b.zip", Name: "B"},
	}

	diff := DiffCatalogs(games, games)

	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.Zero(t, diff.MediaAdded)
	assert.Zero(t, diff.MediaRemoved)
	assert.Equal(t, 2, diff.TotalGames)
	assert.Equal(t, 1, diff.TotalMedia)
}

func TestCopyCatalogToRomTree(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	romsRoot := t.TempDir()

	games := []Game{{ID: "1", Path: "./a.zip", Name: "A"}}
	srcPath := helpers.GamelistPath(dataDir, "snes")
	require.NoError(t, os.MkdirAll(filepath.Dir(srcPath), 0o750))
	_, err := WriteCatalog(srcPath, games)
	require.NoError(t, err)

	dst, err := CopyCatalogToRomTree(dataDir, romsRoot, "snes")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(romsRoot, "snes", config.GamelistFilename), dst)

	published, err := ParseCatalog(dst)
	require.NoError(t, err)
	assert.Equal(t, games, published)

	// publishing again backs up the previous copy
	_, err = CopyCatalogToRomTree(dataDir, romsRoot, "snes")
	require.NoError(t, err)

	backups, err := filepath.Glob(dst + ".backup.*")
	require.NoError(t, err)
	assert.NotEmpty(t, backups)
}

func TestCopyCatalogToRomTreeMissingSource(t *testing.T) {
	t.Parallel()

	_, err := CopyCatalogToRomTree(t.TempDir(), t.TempDir(), "snes")
	require.ErrorIs(t, err, ErrNotFound)
}
