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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/RomStashProject/romstash-core/pkg/catalog"
	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/helpers"
	"github.com/RomStashProject/romstash-core/pkg/helpers/syncutil"
	"github.com/charlievieth/fastwalk"
	"github.com/rs/zerolog/log"
)

// RomScanResult totals one ROM scan pass.
type RomScanResult struct {
	AddedGames   int
	RemovedGames int
	TotalFiles   int
}

// ListRomFiles walks a system's ROM directory and returns catalog-style
// relative paths ("./Foo (USA).zip") for every file with an allowed ROM
// extension. The media subtree is skipped.
func ListRomFiles(cfg *config.Instance, system string) ([]string, error) {
	root := cfg.SystemRomsDir(system)
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("failed to stat ROM directory %s: %w", root, err)
	}

	allowed := make(map[string]bool)
	for _, ext := range cfg.RomExtensions() {
		allowed[strings.ToLower(ext)] = true
	}

	var found []string
	var mu syncutil.Mutex

	conf := fastwalk.Config{Follow: false}
	// fastwalk runs the callback concurrently across directories
	err := fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", p).Msg("skipping unreadable path during rom scan")
			return nil
		}
		if d.IsDir() {
			if d.Name() == config.MediaDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if !allowed[strings.ToLower(filepath.Ext(p))] {
			return nil
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil //nolint:nilerr // unresolvable entries are skipped, not fatal
		}
		mu.Lock()
		found = append(found, "./"+filepath.ToSlash(rel))
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk ROM directory %s: %w", root, err)
	}

	sort.Strings(found)
	return found, nil
}

// SyncRoms aligns a catalog with the ROM files on disk: unknown files
// gain a minimal entry named after their stem, entries whose file
// vanished are dropped. Entries without a path are kept as-is.
func SyncRoms(games []catalog.Game, romPaths []string) ([]catalog.Game, RomScanResult) {
	res := RomScanResult{TotalFiles: len(romPaths)}

	onDisk := make(map[string]bool, len(romPaths))
	for _, p := range romPaths {
		onDisk[p] = true
	}

	out := make([]catalog.Game, 0, len(games)+len(romPaths))
	known := make(map[string]bool, len(games))
	for _, game := range games {
		if game.Path != "" && !onDisk[game.Path] {
			res.RemovedGames++
			continue
		}
		known[game.Path] = true
		out = append(out, game)
	}

	for _, p := range romPaths {
		if known[p] {
			continue
		}
		out = append(out, catalog.Game{
			Path: p,
			Name: helpers.FilenameStem(p),
		})
		res.AddedGames++
	}
	return out, res
}

// RomScanSystem runs a full ROM scan for one system: list files, sync the
// catalog, reconcile media for any new entries, and rewrite the catalog.
// A missing catalog starts empty.
func RomScanSystem(cfg *config.Instance, dataDir, system string) (RomScanResult, Result, error) {
	romPaths, err := ListRomFiles(cfg, system)
	if err != nil {
		return RomScanResult{}, Result{}, err
	}

	gamelistPath := helpers.GamelistPath(dataDir, system)
	games, err := catalog.ParseCatalog(gamelistPath)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return RomScanResult{}, Result{}, fmt.Errorf("failed to load catalog for %s: %w", system, err)
	}

	synced, scanRes := SyncRoms(games, romPaths)

	mediaRes, err := NewScanner(cfg).Reconcile(synced, system)
	if err != nil {
		return scanRes, Result{}, err
	}

	if _, err := catalog.WriteCatalog(gamelistPath, synced); err != nil {
		return scanRes, mediaRes, err
	}

	log.Info().
		Str("system", system).
		Int("added", scanRes.AddedGames).
		Int("removed", scanRes.RemovedGames).
		Int("total_files", scanRes.TotalFiles).
		Msg("rom scan finished")
	return scanRes, mediaRes, nil
}
