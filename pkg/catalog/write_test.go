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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCatalogRoundTrip(t *testing.T) {
	t.Parallel()

	games := []Game{
		{
			ID:        "1",
			Path:      "./Alpha (USA).zip",
			Name:      "Alpha",
			Desc:      "Short run.",
			Developer: "Alpha Dev",
			Boxart:    "./media/boxart/Alpha (USA).png",
		},
		{
			ID:    "2",
			Path:  "./Beta (Japan).zip",
			Name:  "Beta",
			Genre: "Action",
			Video: "./media/video/Beta (Japan).mp4",
		},
	}

	path := filepath.Join(t.TempDir(), "gamelist.xml")
	res, err := WriteCatalog(path, games)
	require.NoError(t, err)
	assert.Zero(t, res.Removed)
	assert.Empty(t, res.BackupPath, "no backup without a previous file")

	parsed, err := ParseCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, games, parsed)
}

func TestWriteCatalogCanonicalFormIsStable(t *testing.T) {
	t.Parallel()

	longDesc := strings.TrimSpace(strings.Repeat("lorem ipsum dolor sit amet consectetur ", 12))
	games := []Game{
		{ID: "1", Path: "./a.zip", Name: "A", Desc: longDesc},
		{ID: "2", Path: "./b.zip", Name: "B", Screenshot: "./media/screenshot/b.png"},
	}

	dir := t.TempDir()
	first := filepath.Join(dir, "first.xml")
	second := filepath.Join(dir, "second.xml")

	_, err := WriteCatalog(first, games)
	require.NoError(t, err)

	parsed, err := ParseCatalog(first)
	require.NoError(t, err)

	_, err = WriteCatalog(second, parsed)
	require.NoError(t, err)

	firstRaw, err := os.ReadFile(first)
	require.NoError(t, err)
	secondRaw, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstRaw), string(secondRaw))
}

func TestWriteCatalogDedupes(t *testing.T) {
	t.Parallel()

	games := []Game{
		{ID: "1", Path: "./same.zip", Name: "First"},
		{ID: "2", Path: "./same.zip", Name: "Second"},
		{Name: "Orphan"},
		{Name: "ORPHAN"},
	}

	path := filepath.Join(t.TempDir(), "gamelist.xml")
	res, err := WriteCatalog(path, games)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Removed)

	parsed, err := ParseCatalog(path)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, "First", parsed[0].Name, "first occurrence wins")
	assert.Equal(t, "Orphan", parsed[1].Name)
}

func TestDedupeGames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		games       []Game
		wantNames   []string
		wantRemoved int
	}{
		{
			name: "no duplicates",
			games: []Game{
				{Path: "./a.zip", Name: "A"},
				{Path: "./b.zip", Name: "B"},
			},
			wantNames:   []string{"A", "B"},
			wantRemoved: 0,
		},
		{
			name: "path duplicate first wins",
			games: []Game{
				{Path: "./a.zip", Name: "Keep"},
				{Path: "./a.zip", Name: "Drop"},
				{Path: "./b.zip", Name: "B"},
			},
			wantNames:   []string{"Keep", "B"},
			wantRemoved: 1,
		},
		{
			name: "same name different paths kept",
			games: []Game{
				{Path: "./a (USA).zip", Name: "A"},
				{Path: "./a (Europe).zip", Name: "A"},
			},
			wantNames:   []string{"A", "A"},
			wantRemoved: 0,
		},
		{
			name: "pathless dedupe by lowercased name",
			games: []Game{
				{Name: "Orphan"},
				{Name: "orphan"},
				{Name: "Other"},
			},
			wantNames:   []string{"Orphan", "Other"},
			wantRemoved: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, removed := DedupeGames(tt.games)
			assert.Equal(t, tt.wantRemoved, removed)

			var names []string
			for i := range got {
				names = append(names, got[i].Name)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestWriteCatalogBackupPreservesPrevious(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gamelist.xml")

	_, err := WriteCatalog(path, []Game{{ID: "1", Path: "./a.zip", Name: "Old"}})
	require.NoError(t, err)

	res, err := WriteCatalog(path, []Game{{ID: "1", Path: "./a.zip", Name: "New"}})
	require.NoError(t, err)
	require.NotEmpty(t, res.BackupPath)
	assert.True(t, strings.HasPrefix(res.BackupPath, path+".backup."))

	backupRaw, err := os.ReadFile(res.BackupPath)
	require.NoError(t, err)
	assert.Contains(t, string(backupRaw), "Old")

	parsed, err := ParseCatalog(path)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, "New", parsed[0].Name)
}

func TestWriteCatalogCollectsStaleTempFiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gamelist.xml")
	stale := path + ".tmp.12345"
	require.NoError(t, os.WriteFile(stale, []byte("leftover"), 0o600))

	_, err := WriteCatalog(path, []Game{{ID: "1", Path: "./a.zip", Name: "A"}})
	require.NoError(t, err)

	leftovers, err := filepath.Glob(path + ".tmp.*")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestWriteCatalogOmitsEmptyFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gamelist.xml")
	_, err := WriteCatalog(path, []Game{{
		ID:     "7",
		Path:   "./a.zip",
		Name:   "A",
		Boxart: "./media/boxart/a.png",
	}})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := string(raw)

	assert.True(t, strings.HasPrefix(doc, "<?xml"), "document should carry an XML declaration")
	assert.Contains(t, doc, "<gameList>")
	assert.Contains(t, doc, "\t<game>")
	assert.Contains(t, doc, "<boxart>")
	assert.NotContains(t, doc, "<image>")
	assert.NotContains(t, doc, "<desc>")
	assert.NotContains(t, doc, "<launchboxid>")
}

func TestWriteCatalogWrapsLongDescriptions(t *testing.T) {
	t.Parallel()

	desc := strings.TrimSpace(strings.Repeat("lorem ipsum dolor sit amet consectetur adipiscing ", 8))
	path := filepath.Join(t.TempDir(), "gamelist.xml")
	_, err := WriteCatalog(path, []Game{{ID: "1", Path: "./a.zip", Name: "A", Desc: desc}})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := string(raw)

	start := strings.Index(doc, "<desc>")
	end := strings.Index(doc, "</desc>")
	require.Positive(t, start)
	require.Greater(t, end, start)

	body := doc[start+len("<desc>") : end]
	lines := strings.Split(body, "\n")
	require.Greater(t, len(lines), 1, "long descriptions should wrap")
	for _, line := range lines {
		assert.LessOrEqual(t, len(line), descWrapWidth)
	}

	parsed, err := ParseCatalog(path)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t,
		strings.Join(strings.Fields(desc), " "),
		strings.Join(strings.Fields(parsed[0].Desc), " "),
		"wrapping should not change the words")
}

func TestWriteCatalogEscapesReservedCharacters(t *testing.T) {
	t.Parallel()

	game := Game{
		ID:   "1",
		Path: "./sk.zip",
		Name: `Sonic & Knuckles <Proto> "Beta"`,
	}

	path := filepath.Join(t.TempDir(), "gamelist.xml")
	_, err := WriteCatalog(path, []Game{game})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Sonic &amp; Knuckles &lt;Proto&gt; &quot;Beta&quot;")

	parsed, err := ParseCatalog(path)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, game.Name, parsed[0].Name)
}
