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

func writeTestFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gamelist.xml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestParseCatalog(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, `<?xml version="1.0" encoding="UTF-8"?>
<gameList>
	<game>
		<id>12</id>
		<path>./Super Alpha (USA).zip</path>
		<name>Super Alpha</name>
		<desc>Run and jump.</desc>
		<developer>Alpha Dev</developer>
		<publisher>Alpha Pub</publisher>
		<boxart>./media/boxart/Super Alpha (USA).png</boxart>
		<launchboxid>9941</launchboxid>
	</game>
	<game>
		<id>13</id>
		<path>./Beta Quest (Europe).zip</path>
		<name>Beta Quest</name>
	</game>
</gameList>
`)

	games, err := ParseCatalog(path)
	require.NoError(t, err)
	require.Len(t, games, 2)

	alpha := games[0]
	assert.Equal(t, "12", alpha.ID)
	assert.Equal(t, "./Super Alpha (USA).zip", alpha.Path)
	assert.Equal(t, "Super Alpha", alpha.Name)
	assert.Equal(t, "Run and jump.", alpha.Desc)
	assert.Equal(t, "Alpha Dev", alpha.Developer)
	assert.Equal(t, "Alpha Pub", alpha.Publisher)
	assert.Equal(t, "./media/boxart/Super Alpha (USA).png", alpha.Boxart)
	assert.Equal(t, "9941", alpha.LaunchboxID)
	assert.Equal(t, 1, alpha.MediaCount())

	beta := games[1]
	assert.Equal(t, "13", beta.ID)
	assert.Equal(t, "Beta Quest", beta.Name)
	assert.Zero(t, beta.MediaCount())
}

func TestParseCatalogIgnoresUnknownElements(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, `<?xml version="1.0"?>
<gameList>
	<provider>
		<System>snes</System>
		<software>third-party scraper</software>
	</provider>
	<folder>
		<path>./homebrew</path>
		<name>Homebrew</name>
	</folder>
	<game>
		<id>1</id>
		<path>./Gamma.zip</path>
		<name>Gamma</name>
		<favorite>true</favorite>
		<playcount>3</playcount>
		<lastplayed>20240110T201455</lastplayed>
	</game>
</gameList>
`)

	games, err := ParseCatalog(path)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "Gamma", games[0].Name)
	assert.Equal(t, "./Gamma.zip", games[0].Path)
}

func TestParseCatalogAssignsMissingIDs(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, `<gameList>
	<game><id>1</id><path>./a.zip</path><name>A</name></game>
	<game><path>./b.zip</path><name>B</name></game>
	<game><id>3</id><path>./c.zip</path><name>C</name></game>
	<game><path>./d.zip</path><name>D</name></game>
</gameList>
`)

	games, err := ParseCatalog(path)
	require.NoError(t, err)
	require.Len(t, games, 4)

	var ids []string
	for i := range games {
		ids = append(ids, games[i].ID)
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids)
}

func TestParseCatalogDefaultsNameAndPath(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, `<gameList>
	<game><desc>nothing else known</desc></game>
</gameList>
`)

	games, err := ParseCatalog(path)
	require.NoError(t, err)
	require.Len(t, games, 1)

	assert.Equal(t, "1", games[0].ID)
	assert.Equal(t, "Unknown Game", games[0].Name)
	assert.Equal(t, "./unknown-1", games[0].Path)
	assert.Equal(t, "nothing else known", games[0].Desc)
}

func TestParseCatalogRepairsOverEscapedEntities(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, `<gameList>
	<game>
		<id>1</id>
		<path>./sk.zip</path>
		<name>Sonic &amp;amp; Knuckles</name>
		<desc>Tom &amp;amp;amp; Jerry &amp;#38; friends &amp;quot;forever&amp;quot;</desc>
	</game>
	<game>
		<id>2</id>
		<path>./att.zip</path>
		<name>AT&amp;T Adventure</name>
	</game>
</gameList>
`)

	games, err := ParseCatalog(path)
	require.NoError(t, err)
	require.Len(t, games, 2)

	assert.Equal(t, "Sonic & Knuckles", games[0].Name)
	assert.Equal(t, `Tom & Jerry & friends "forever"`, games[0].Desc)
	assert.Equal(t, "AT&T Adventure", games[1].Name, "single escape should survive repair")
}

func TestParseCatalogMalformed(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, `<gameList><game><name>Foo`)

	_, err := ParseCatalog(path)
	require.Error(t, err)

	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
	assert.Positive(t, malformed.Offset)
}

func TestParseCatalogNotFound(t *testing.T) {
	t.Parallel()

	_, err := ParseCatalog(filepath.Join(t.TempDir(), "gamelist.xml"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseCatalogEmptyDocument(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, `<?xml version="1.0"?>
<gameList>
</gameList>
`)

	games, err := ParseCatalog(path)
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestRepairOverEscaped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain text untouched", in: "plain text", want: "plain text"},
		{name: "single entity", in: "&amp;", want: "&"},
		{name: "triple escaped ampersand", in: "&amp;amp;amp;", want: "&"},
		{name: "numeric entity", in: "&#65;", want: "A"},
		{name: "quotes", in: "&quot;hi&quot;", want: `"hi"`},
		{name: "bare ampersand untouched", in: "AT&T", want: "AT&T"},
		{name: "unknown entity untouched", in: "&bogus;", want: "&bogus;"},
		{name: "out of range numeric untouched", in: "&#99999999;", want: "&#99999999;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, RepairOverEscaped(tt.in))
		})
	}
}

func TestCollectTextTrimsAndSkipsNested(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, `<gameList>
	<game>
		<id>1</id>
		<path>./x.zip</path>
		<name>
			Spaced Out
		</name>
	</game>
</gameList>
`)

	games, err := ParseCatalog(path)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "Spaced Out", games[0].Name)
	assert.False(t, strings.Contains(games[0].Name, "\n"))
}
