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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/helpers"
)

// Diff summarizes how a candidate catalog differs from a baseline. Games
// are keyed by path; a name change on the same path is not an
// addition or removal.
type Diff struct {
	Added        []string `json:"added"`
	Removed      []string `json:"removed"`
	MediaAdded   int      `json:"media_added"`
	MediaRemoved int      `json:"media_removed"`
	TotalGames   int      `json:"total_games"`
	TotalMedia   int      `json:"total_media"`
}

// DiffCatalogs compares candidate against baseline by game path.
func DiffCatalogs(baseline, candidate []Game) Diff {
	basePaths := make(map[string]*Game, len(baseline))
	for i := range baseline {
		basePaths[baseline[i].Path] = &baseline[i]
	}
	candPaths := make(map[string]*Game, len(candidate))
	for i := range candidate {
		candPaths[candidate[i].Path] = &candidate[i]
	}

	var diff Diff
	for i := range candidate {
		game := &candidate[i]
		diff.TotalGames++
		diff.TotalMedia += game.MediaCount()
		if _, ok := basePaths[game.Path]; !ok {
			diff.Added = append(diff.Added, game.Path)
			diff.MediaAdded += game.MediaCount()
		}
	}
	for i := range baseline {
		game := &baseline[i]
		if _, ok := candPaths[game.Path]; !ok {
			diff.Removed = append(diff.Removed, game.Path)
			diff.MediaRemoved += game.MediaCount()
		}
	}
	return diff
}

// CopyCatalogToRomTree publishes the authoritative catalog from the state
// directory to <romsRoot>/<system>/gamelist.xml, taking a timestamped
// backup of any file already there. Returns the destination path.
func CopyCatalogToRomTree(dataDir, romsRoot, system string) (string, error) {
	src := helpers.GamelistPath(dataDir, system)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s: %w", src, ErrNotFound)
		}
		return "", fmt.Errorf("failed to stat catalog: %w", err)
	}

	dstDir := filepath.Join(romsRoot, system)
	if err := os.MkdirAll(dstDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create system rom directory: %w", err)
	}

	dst := filepath.Join(dstDir, config.GamelistFilename)
	if _, err := helpers.BackupTimestamped(dst, time.Now()); err != nil {
		return "", err
	}
	if err := helpers.CopyFile(src, dst); err != nil {
		return "", fmt.Errorf("failed to publish catalog: %w", err)
	}
	return dst, nil
}
