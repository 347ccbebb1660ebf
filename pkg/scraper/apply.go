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

// Package scraper is the metadata scraping worker: it consumes scrape
// submissions from a queue, resolves each catalog game against the
// corpus platform view, applies authoritative metadata, and reports
// progress and a final outcome back to the orchestrator.
package scraper

import (
	"strings"

	"github.com/RomStashProject/romstash-core/pkg/catalog"
	"github.com/RomStashProject/romstash-core/pkg/corpus"
	"github.com/RomStashProject/romstash-core/pkg/match"
)

// entryField maps a catalog text field to its corpus entry source.
func entryField(entry *corpus.Entry, field string) string {
	switch field {
	case "name":
		return entry.Name
	case "desc":
		return entry.Overview
	case "genre":
		return entry.Genres
	case "developer":
		return entry.Developer
	case "publisher":
		return entry.Publisher
	case "rating":
		return entry.CommunityRating
	case "players":
		return entry.MaxPlayers
	default:
		return ""
	}
}

// ApplyOptions controls which fields a match may write.
type ApplyOptions struct {
	// SelectedFields limits the text fields written; empty means all.
	SelectedFields []string
	// OverwriteText lets non-empty text fields be replaced. The
	// authoritative ID is always bound regardless.
	OverwriteText bool
}

func (o ApplyOptions) wants(field string) bool {
	if len(o.SelectedFields) == 0 {
		return true
	}
	for _, f := range o.SelectedFields {
		if strings.EqualFold(f, field) {
			return true
		}
	}
	return false
}

// ApplyEntry writes a resolved match into a catalog game and reports
// whether anything changed. The new name keeps the catalog name's
// parenthetical suffix; an alternate-name match keeps the alternate's
// original casing.
func ApplyEntry(game *catalog.Game, res match.Result, opts ApplyOptions) bool {
	entry := res.Entry
	if entry == nil {
		return false
	}

	changed := false
	if game.LaunchboxID != entry.DatabaseID {
		game.LaunchboxID = entry.DatabaseID
		changed = true
	}

	for _, field := range catalog.TextFields {
		if !opts.wants(field) {
			continue
		}

		value := entryField(entry, field)
		if field == "name" {
			if res.Source == match.SourceAlternate && res.AltName != "" {
				value = res.AltName
			}
			if suffix := match.ParentheticalSuffix(game.Name); suffix != "" {
				value = value + " " + suffix
			}
		}
		if value == "" {
			continue
		}

		current, _ := game.Field(field)
		if current != "" && !opts.OverwriteText {
			continue
		}
		if current != value {
			game.SetField(field, value)
			changed = true
		}
	}
	return changed
}
