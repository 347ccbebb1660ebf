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

// Package mediascan reconciles catalog media fields with the files
// actually present under a system's media tree, and discovers ROM files
// missing from the catalog. Reconciliation is idempotent: the post-state
// depends only on the files on disk and the media mapping table.
package mediascan

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/RomStashProject/romstash-core/pkg/catalog"
	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/helpers"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// categoryWalkLimit bounds how many media category directories are listed
// concurrently.
const categoryWalkLimit = 4

// Result totals one reconcile pass.
type Result struct {
	UpdatedGames int
	RemovedMedia int
}

// Scanner walks media trees. The filesystem is seamed so tests run on
// afero's MemMapFs.
type Scanner struct {
	fs  afero.Fs
	cfg *config.Instance
}

func NewScanner(cfg *config.Instance) *Scanner {
	return &Scanner{cfg: cfg, fs: afero.NewOsFs()}
}

func NewScannerWithFs(cfg *config.Instance, fs afero.Fs) *Scanner {
	return &Scanner{cfg: cfg, fs: fs}
}

// categoryIndex maps lowercased file stem to file name for one media
// category directory.
type categoryIndex map[string]string

// listCategory indexes the files in one category dir with an allowed
// extension. A missing directory is an empty index, not an error.
func (s *Scanner) listCategory(system, category string) (categoryIndex, error) {
	dir := filepath.Join(s.cfg.SystemMediaDir(system), category)
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return categoryIndex{}, nil
		}
		return nil, fmt.Errorf("failed to list media directory %s: %w", dir, err)
	}

	allowed := make(map[string]bool)
	for _, ext := range s.cfg.MediaExtensions(category) {
		allowed[strings.ToLower(ext)] = true
	}

	idx := make(categoryIndex, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !allowed[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		stem := strings.ToLower(helpers.FilenameStem(name))
		// first file wins on stem collisions within a category
		if _, exists := idx[stem]; !exists {
			idx[stem] = name
		}
	}
	return idx, nil
}

// Reconcile aligns each game's media fields with the files on disk:
// fields gain a ./media/<category>/<file> reference when a matching stem
// exists, and are cleared when the referenced file vanished. Games are
// mutated in place.
func (s *Scanner) Reconcile(games []catalog.Game, system string) (Result, error) {
	var res Result
	mappings := s.cfg.MediaMappings()

	categories := make([]string, 0, len(mappings))
	for category := range mappings {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	indexes := make([]categoryIndex, len(categories))
	var group errgroup.Group
	group.SetLimit(categoryWalkLimit)
	for i, category := range categories {
		group.Go(func() error {
			idx, err := s.listCategory(system, category)
			if err != nil {
				return err
			}
			indexes[i] = idx
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return res, err
	}

	for gi := range games {
		game := &games[gi]
		stem := strings.ToLower(helpers.FilenameStem(game.Path))
		changed := false

		for i, category := range categories {
			field := mappings[category]
			current, ok := game.Field(field)
			if !ok {
				continue
			}

			fileName, found := indexes[i][stem]
			switch {
			case found:
				want := "./" + path.Join(config.MediaDirName, category, fileName)
				if current != want {
					game.SetField(field, want)
					changed = true
				}
			case current != "" && referencesCategory(current, category):
				game.SetField(field, "")
				res.RemovedMedia++
				changed = true
			}
		}
		if changed {
			res.UpdatedGames++
		}
	}

	log.Info().
		Str("system", system).
		Int("updated_games", res.UpdatedGames).
		Int("removed_media", res.RemovedMedia).
		Msg("media reconcile finished")
	return res, nil
}

// referencesCategory reports whether a field value points into the given
// media category directory. Values pointing elsewhere (manual edits,
// absolute paths) are left alone when the file is missing.
func referencesCategory(value, category string) bool {
	normalized := strings.TrimPrefix(strings.ReplaceAll(value, "\\", "/"), "./")
	return strings.HasPrefix(normalized, config.MediaDirName+"/"+category+"/")
}

// ReconcileSystem runs a full pass over one system: parse the catalog,
// reconcile against disk, and rewrite canonically with a backup even when
// nothing changed. Returns the totals and the surviving game count.
func ReconcileSystem(cfg *config.Instance, dataDir, system string) (Result, int, error) {
	scanner := NewScanner(cfg)
	gamelistPath := helpers.GamelistPath(dataDir, system)

	games, err := catalog.ParseCatalog(gamelistPath)
	if err != nil {
		return Result{}, 0, fmt.Errorf("failed to load catalog for %s: %w", system, err)
	}

	res, err := scanner.Reconcile(games, system)
	if err != nil {
		return res, 0, err
	}

	if _, err := catalog.WriteCatalog(gamelistPath, games); err != nil {
		return res, 0, err
	}
	return res, len(games), nil
}
