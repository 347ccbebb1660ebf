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

// Package corpus loads the provider metadata corpus into a process-wide
// read-only cache keyed by DatabaseID. The corpus file is treated as
// read-only input; the only mutation path is the out-of-band archive
// update which replaces the file and invalidates the cache.
package corpus

import (
	"errors"
	"os"
	"sort"

	"github.com/RomStashProject/romstash-core/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// State describes cache population.
type State string

const (
	// StateEmpty means no corpus data is available; all matches are no-match.
	StateEmpty State = "empty"
	// StateLoading means a (re)load is in flight; consumers treat this as empty.
	StateLoading State = "loading"
	// StateReady means the cache is populated and read-only.
	StateReady State = "ready"
)

// Entry is one authoritative corpus record. Entries are immutable after
// load.
type Entry struct {
	Extra           map[string]string
	DatabaseID      string
	Name            string
	Platform        string
	Developer       string
	Publisher       string
	Overview        string
	Genres          string
	CommunityRating string
	MaxPlayers      string
	ReleaseDate     string
}

// Image is one media descriptor attached to an entry.
type Image struct {
	DatabaseID string
	Type       string
	FileName   string
	Region     string
}

// AlternateName is one alternate title attached to an entry, kept in its
// original casing for display.
type AlternateName struct {
	DatabaseID    string
	AlternateName string
	Region        string
}

// snapshot is the result of one corpus file parse.
type snapshot struct {
	entries   map[string]*Entry
	images    map[string][]Image
	altNames  map[string][]AlternateName
	platforms []string
}

func (s *snapshot) empty() bool {
	return s == nil || len(s.entries) == 0
}

// Cache holds the parsed corpus. It is populated on first use and
// read-only afterwards; Reload and Invalidate are the only mutators.
type Cache struct {
	entries   map[string]*Entry
	images    map[string][]Image
	altNames  map[string][]AlternateName
	path      string
	state     State
	platforms []string
	mu        syncutil.RWMutex
	loadMu    syncutil.Mutex
}

// NewCache creates a cache for the corpus file at path. No IO happens
// until EnsureLoaded.
func NewCache(path string) *Cache {
	return &Cache{
		path:  path,
		state: StateEmpty,
	}
}

// Path returns the corpus file location.
func (c *Cache) Path() string {
	return c.path
}

// State returns the current population state.
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Len returns the number of loaded entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// EnsureLoaded populates the cache from the corpus file if it has not been
// loaded yet. A missing file leaves the cache empty without error.
func (c *Cache) EnsureLoaded() error {
	c.mu.RLock()
	ready := c.state == StateReady
	c.mu.RUnlock()
	if ready {
		return nil
	}
	return c.load()
}

// Reload clears the cache and repopulates it from the corpus file.
// Consumers observe StateLoading in the meantime.
func (c *Cache) Reload() error {
	c.mu.Lock()
	c.state = StateLoading
	c.entries = nil
	c.images = nil
	c.altNames = nil
	c.platforms = nil
	c.mu.Unlock()

	return c.load()
}

// Invalidate drops all cached data. The next EnsureLoaded parses the file
// again.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateEmpty
	c.entries = nil
	c.images = nil
	c.altNames = nil
	c.platforms = nil
}

func (c *Cache) load() error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	// another caller may have finished the load while we waited
	c.mu.RLock()
	if c.state == StateReady {
		c.mu.RUnlock()
		return nil
	}
	path := c.path
	c.mu.RUnlock()

	c.mu.Lock()
	c.state = StateLoading
	c.mu.Unlock()

	snap, err := parseCorpusFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info().Str("path", path).Msg("corpus file missing, cache stays empty")
			c.install(nil)
			return nil
		}
		// a partial parse keeps whatever was decoded before the failure
		log.Warn().Err(err).Str("path", path).
			Int("entries", len(snap.entries)).
			Msg("corpus parse aborted, retaining partial load")
	}

	c.install(snap)
	return nil
}

func (c *Cache) install(snap *snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if snap.empty() {
		c.state = StateEmpty
		c.entries = nil
		c.images = nil
		c.altNames = nil
		c.platforms = nil
		return
	}

	c.entries = snap.entries
	c.images = snap.images
	c.altNames = snap.altNames
	c.platforms = snap.platforms
	c.state = StateReady

	log.Info().
		Int("entries", len(c.entries)).
		Int("platforms", len(c.platforms)).
		Msg("corpus cache loaded")
}

// Entry returns the authoritative record for a DatabaseID.
func (c *Cache) Entry(id string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[id]
	return entry, ok
}

// Images returns the image descriptors for a DatabaseID.
func (c *Cache) Images(id string) []Image {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.images[id]
}

// AlternateNames returns the alternate titles for a DatabaseID.
func (c *Cache) AlternateNames(id string) []AlternateName {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.altNames[id]
}

// Platforms returns the sorted distinct platform tags in the corpus.
func (c *Cache) Platforms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.platforms))
	copy(out, c.platforms)
	return out
}

func distinctSorted(values map[string]bool) []string {
	out := make([]string, 0, len(values))
	for v := range values {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
