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

package mediascan

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/RomStashProject/romstash-core/pkg/catalog"
	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/helpers"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T, romsRoot string) *config.Instance {
	t.Helper()
	dir := t.TempDir()
	contents := fmt.Sprintf(
		"config_schema = %d\nroms_root_directory = %q\n",
		config.SchemaVersion, romsRoot,
	)
	err := os.WriteFile(filepath.Join(dir, config.CfgFile), []byte(contents), 0o600)
	require.NoError(t, err)

	cfg, err := config.NewConfig(dir, config.BaseDefaults)
	require.NoError(t, err)
	return cfg
}

func touch(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, afero.WriteFile(fs, path, []byte("x"), 0o600))
}

func TestReconcileSetsAndClearsFields(t *testing.T) {
	t.Parallel()

	romsRoot := "/roms"
	cfg := newTestConfig(t, romsRoot)
	fs := afero.NewMemMapFs()
	mediaDir := cfg.SystemMediaDir("snes")

	touch(t, fs, filepath.Join(mediaDir, "box2dfront", "Foo (USA).png"))
	touch(t, fs, filepath.Join(mediaDir, "screenshot", "Foo (USA).jpg"))

	games := []catalog.Game{
		{
			Path:    "./Foo (USA).zip",
			Name:    "Foo",
			Marquee: "./media/marquee/Foo (USA).png", // file gone
		},
		{
			Path: "./Bar.zip",
			Name: "Bar",
		},
	}

	scanner := NewScannerWithFs(cfg, fs)
	res, err := scanner.Reconcile(games, "snes")
	require.NoError(t, err)

	assert.Equal(t, "./media/box2dfront/Foo (USA).png", games[0].Boxart)
	assert.Equal(t, "./media/screenshot/Foo (USA).jpg", games[0].Screenshot)
	assert.Empty(t, games[0].Marquee, "vanished file clears the field")
	assert.Empty(t, games[1].Boxart)

	assert.Equal(t, 1, res.UpdatedGames)
	assert.Equal(t, 1, res.RemovedMedia)
}

func TestReconcileIsIdempotent(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t, "/roms")
	fs := afero.NewMemMapFs()
	touch(t, fs, filepath.Join(cfg.SystemMediaDir("nes"), "box2dfront", "Foo.png"))

	games := []catalog.Game{{Path: "./Foo.zip", Name: "Foo"}}
	scanner := NewScannerWithFs(cfg, fs)

	first, err := scanner.Reconcile(games, "nes")
	require.NoError(t, err)
	assert.Equal(t, 1, first.UpdatedGames)

	second, err := scanner.Reconcile(games, "nes")
	require.NoError(t, err)
	assert.Zero(t, second.UpdatedGames, "repeated runs converge")
	assert.Zero(t, second.RemovedMedia)
	assert.Equal(t, "./media/box2dfront/Foo.png", games[0].Boxart)
}

func TestReconcileIgnoresDisallowedExtensions(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t, "/roms")
	fs := afero.NewMemMapFs()
	mediaDir := cfg.SystemMediaDir("nes")
	touch(t, fs, filepath.Join(mediaDir, "box2dfront", "Foo.txt"))
	touch(t, fs, filepath.Join(mediaDir, "video", "Foo.png")) // video wants .mp4

	games := []catalog.Game{{Path: "./Foo.zip", Name: "Foo"}}
	res, err := NewScannerWithFs(cfg, fs).Reconcile(games, "nes")
	require.NoError(t, err)

	assert.Zero(t, res.UpdatedGames)
	assert.Empty(t, games[0].Boxart)
	assert.Empty(t, games[0].Video)
}

func TestReconcileMatchesStemCaseInsensitively(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t, "/roms")
	fs := afero.NewMemMapFs()
	touch(t, fs, filepath.Join(cfg.SystemMediaDir("nes"), "box2dfront", "FOO (usa).png"))

	games := []catalog.Game{{Path: "./foo (USA).zip", Name: "Foo"}}
	res, err := NewScannerWithFs(cfg, fs).Reconcile(games, "nes")
	require.NoError(t, err)

	assert.Equal(t, 1, res.UpdatedGames)
	assert.Equal(t, "./media/box2dfront/FOO (usa).png", games[0].Boxart)
}

func TestReconcileLeavesForeignReferencesAlone(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t, "/roms")
	fs := afero.NewMemMapFs()

	games := []catalog.Game{{
		Path:   "./Foo.zip",
		Name:   "Foo",
		Boxart: "/mnt/shared/art/Foo.png", // manually curated, not under media/
	}}
	res, err := NewScannerWithFs(cfg, fs).Reconcile(games, "nes")
	require.NoError(t, err)

	assert.Zero(t, res.RemovedMedia)
	assert.Equal(t, "/mnt/shared/art/Foo.png", games[0].Boxart)
}

func TestReconcileSystemRewritesCatalogWithBackup(t *testing.T) {
	t.Parallel()

	romsRoot := t.TempDir()
	dataDir := t.TempDir()
	cfg := newTestConfig(t, romsRoot)

	boxDir := filepath.Join(cfg.SystemMediaDir("snes"), "box2dfront")
	require.NoError(t, os.MkdirAll(boxDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(boxDir, "Foo.png"), []byte("img"), 0o600))

	gamelistPath := helpers.GamelistPath(dataDir, "snes")
	_, err := catalog.WriteCatalog(gamelistPath, []catalog.Game{{Path: "./Foo.zip", Name: "Foo"}})
	require.NoError(t, err)

	res, total, err := ReconcileSystem(cfg, dataDir, "snes")
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedGames)
	assert.Equal(t, 1, total)

	games, err := catalog.ParseCatalog(gamelistPath)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "./media/box2dfront/Foo.png", games[0].Boxart)

	backups, err := filepath.Glob(gamelistPath + ".backup.*")
	require.NoError(t, err)
	assert.NotEmpty(t, backups, "rewrite keeps a backup even for small changes")
}
