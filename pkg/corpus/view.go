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

package corpus

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// PlatformView is the per-platform slice of the corpus consumed by the
// match engine and the scraping worker.
type PlatformView struct {
	Entries  map[string]*Entry
	AltNames map[string][]AlternateName
	Images   map[string][]Image
	Platform string
}

func newPlatformView(platform string) *PlatformView {
	return &PlatformView{
		Platform: platform,
		Entries:  make(map[string]*Entry),
		AltNames: make(map[string][]AlternateName),
		Images:   make(map[string][]Image),
	}
}

// Entry returns the view's record for a DatabaseID.
func (v *PlatformView) Entry(id string) (*Entry, bool) {
	entry, ok := v.Entries[id]
	return entry, ok
}

// Len returns the number of entries in the view.
func (v *PlatformView) Len() int {
	return len(v.Entries)
}

// BuildPlatformView filters the loaded cache to one platform tag. An
// unloaded or empty cache yields an empty view.
func (c *Cache) BuildPlatformView(platform string) *PlatformView {
	view := newPlatformView(platform)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateReady {
		return view
	}

	for id, entry := range c.entries {
		if entry.Platform != platform {
			continue
		}
		view.Entries[id] = entry
		if alts := c.altNames[id]; len(alts) > 0 {
			view.AltNames[id] = alts
		}
		if imgs := c.images[id]; len(imgs) > 0 {
			view.Images[id] = imgs
		}
	}
	return view
}

// LoadPlatformView parses the corpus file directly into a platform view,
// for workers that do not hold the global cache. A missing file yields an
// empty view; a partial parse yields whatever was decoded, with a warning.
func LoadPlatformView(path, platform string) (*PlatformView, error) {
	snap, err := parseCorpusFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info().Str("path", path).Str("platform", platform).
				Msg("corpus file missing, platform view is empty")
			return newPlatformView(platform), nil
		}
		if len(snap.entries) == 0 {
			return newPlatformView(platform), fmt.Errorf("failed to load platform view: %w", err)
		}
		log.Warn().Err(err).Str("path", path).
			Int("entries", len(snap.entries)).
			Msg("corpus parse aborted, platform view uses partial load")
	}

	view := newPlatformView(platform)
	for id, entry := range snap.entries {
		if entry.Platform != platform {
			continue
		}
		view.Entries[id] = entry
		if alts := snap.altNames[id]; len(alts) > 0 {
			view.AltNames[id] = alts
		}
		if imgs := snap.images[id]; len(imgs) > 0 {
			view.Images[id] = imgs
		}
	}
	return view, nil
}
