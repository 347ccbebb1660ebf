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

// Package catalog reads and writes the per-system gamelist.xml files that
// emulator front-ends consume. Values are stored as canonical unescaped
// text; XML entities exist only in the serialized form.
package catalog

import "errors"

var (
	// ErrNotFound is returned when a referenced catalog file does not exist.
	ErrNotFound = errors.New("catalog not found")
)

// Game is one catalog entry. Path is the primary key within a catalog and
// is stored relative to the system's ROM directory (e.g. "./Foo (USA).zip").
type Game struct {
	ID          string
	Path        string
	Name        string
	Desc        string
	Genre       string
	Developer   string
	Publisher   string
	Rating      string
	Players     string
	Image       string
	Video       string
	Marquee     string
	Wheel       string
	Boxart      string
	Thumbnail   string
	Screenshot  string
	Cartridge   string
	Fanart      string
	Titleshot   string
	Manual      string
	Boxback     string
	Extra1      string
	LaunchboxID string
	IGDBID      string
	SteamID     string
}

// FieldOrder is the canonical serialization order of game fields.
var FieldOrder = []string{
	"id", "path", "name", "desc", "genre", "developer", "publisher",
	"rating", "players",
	"image", "video", "marquee", "wheel", "boxart", "thumbnail",
	"screenshot", "cartridge", "fanart", "titleshot", "manual",
	"boxback", "extra1",
	"launchboxid", "igdbid", "steamid",
}

// MediaFields lists the fields holding media file references. Empty media
// fields are omitted from the serialized form.
var MediaFields = []string{
	"image", "video", "marquee", "wheel", "boxart", "thumbnail",
	"screenshot", "cartridge", "fanart", "titleshot", "manual",
	"boxback", "extra1",
}

// TextFields lists the descriptive fields a scrape may fill.
var TextFields = []string{
	"name", "desc", "genre", "developer", "publisher", "rating", "players",
}

// IsMediaField reports whether a field name is a media reference field.
func IsMediaField(field string) bool {
	for _, f := range MediaFields {
		if f == field {
			return true
		}
	}
	return false
}

// Field returns the value of a game field by its serialized tag name.
func (g *Game) Field(name string) (string, bool) {
	switch name {
	case "id":
		return g.ID, true
	case "path":
		return g.Path, true
	case "name":
		return g.Name, true
	case "desc":
		return g.Desc, true
	case "genre":
		return g.Genre, true
	case "developer":
		return g.Developer, true
	case "publisher":
		return g.Publisher, true
	case "rating":
		return g.Rating, true
	case "players":
		return g.Players, true
	case "image":
		return g.Image, true
	case "video":
		return g.Video, true
	case "marquee":
		return g.Marquee, true
	case "wheel":
		return g.Wheel, true
	case "boxart":
		return g.Boxart, true
	case "thumbnail":
		return g.Thumbnail, true
	case "screenshot":
		return g.Screenshot, true
	case "cartridge":
		return g.Cartridge, true
	case "fanart":
		return g.Fanart, true
	case "titleshot":
		return g.Titleshot, true
	case "manual":
		return g.Manual, true
	case "boxback":
		return g.Boxback, true
	case "extra1":
		return g.Extra1, true
	case "launchboxid":
		return g.LaunchboxID, true
	case "igdbid":
		return g.IGDBID, true
	case "steamid":
		return g.SteamID, true
	default:
		return "", false
	}
}

// SetField assigns a game field by its serialized tag name. Unknown names
// are ignored and reported false.
func (g *Game) SetField(name, value string) bool {
	switch name {
	case "id":
		g.ID = value
	case "path":
		g.Path = value
	case "name":
		g.Name = value
	case "desc":
		g.Desc = value
	case "genre":
		g.Genre = value
	case "developer":
		g.Developer = value
	case "publisher":
		g.Publisher = value
	case "rating":
		g.Rating = value
	case "players":
		g.Players = value
	case "image":
		g.Image = value
	case "video":
		g.Video = value
	case "marquee":
		g.Marquee = value
	case "wheel":
		g.Wheel = value
	case "boxart":
		g.Boxart = value
	case "thumbnail":
		g.Thumbnail = value
	case "screenshot":
		g.Screenshot = value
	case "cartridge":
		g.Cartridge = value
	case "fanart":
		g.Fanart = value
	case "titleshot":
		g.Titleshot = value
	case "manual":
		g.Manual = value
	case "boxback":
		g.Boxback = value
	case "extra1":
		g.Extra1 = value
	case "launchboxid":
		g.LaunchboxID = value
	case "igdbid":
		g.IGDBID = value
	case "steamid":
		g.SteamID = value
	default:
		return false
	}
	return true
}

// MediaCount returns how many media fields are set on a game.
func (g *Game) MediaCount() int {
	count := 0
	for _, f := range MediaFields {
		if v, _ := g.Field(f); v != "" {
			count++
		}
	}
	return count
}
