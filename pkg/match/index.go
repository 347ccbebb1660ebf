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

package match

import (
	"sort"
	"strconv"

	"github.com/RomStashProject/romstash-core/pkg/corpus"
)

// Kind tags an index record as a main or alternate name hit.
type Kind string

const (
	KindMain      Kind = "main"
	KindAlternate Kind = "alternate"
)

// Hit is one exact-lookup result from the unified index.
type Hit struct {
	Entry   *corpus.Entry
	AltName string
	Kind    Kind
}

type altKey struct {
	key  string
	name string
}

// scanEntry carries one candidate's precomputed normalized names for the
// fuzzy scan.
type scanEntry struct {
	entry   *corpus.Entry
	mainKey string
	alts    []altKey
}

// Index is the unified normalized-name index over one platform view. It
// is built once per view and read-only afterwards; lookups and the fuzzy
// scan order are deterministic.
type Index struct {
	byName  map[string][]Hit
	ordered []scanEntry
}

// BuildIndex indexes a platform view by normalized main and alternate
// names. Names that normalize to the empty string are not indexed.
func BuildIndex(view *corpus.PlatformView) *Index {
	idx := &Index{
		byName:  make(map[string][]Hit, len(view.Entries)),
		ordered: make([]scanEntry, 0, len(view.Entries)),
	}

	for id, entry := range view.Entries {
		se := scanEntry{
			entry:   entry,
			mainKey: NormalizeName(entry.Name),
		}
		if se.mainKey != "" {
			idx.byName[se.mainKey] = append(idx.byName[se.mainKey], Hit{
				Kind:  KindMain,
				Entry: entry,
			})
		}

		for _, alt := range view.AltNames[id] {
			key := NormalizeName(alt.AlternateName)
			if key == "" {
				continue
			}
			se.alts = append(se.alts, altKey{key: key, name: alt.AlternateName})
			idx.byName[key] = append(idx.byName[key], Hit{
				Kind:    KindAlternate,
				Entry:   entry,
				AltName: alt.AlternateName,
			})
		}

		idx.ordered = append(idx.ordered, se)
	}

	for _, hits := range idx.byName {
		sortHits(hits)
	}
	sort.Slice(idx.ordered, func(i, j int) bool {
		return idLess(idx.ordered[i].entry.DatabaseID, idx.ordered[j].entry.DatabaseID)
	})

	return idx
}

// Lookup returns the preferred hit for a normalized key: main before
// alternate, then lowest DatabaseID.
func (idx *Index) Lookup(key string) (Hit, bool) {
	hits := idx.byName[key]
	if len(hits) == 0 {
		return Hit{}, false
	}
	return hits[0], true
}

func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Kind != hits[j].Kind {
			return hits[i].Kind == KindMain
		}
		if hits[i].Entry.DatabaseID != hits[j].Entry.DatabaseID {
			return idLess(hits[i].Entry.DatabaseID, hits[j].Entry.DatabaseID)
		}
		return hits[i].AltName < hits[j].AltName
	})
}

// idLess orders numeric DatabaseIDs numerically, non-numeric ids sort
// after numeric ones lexicographically.
func idLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return ai < bi
	case aerr == nil:
		return true
	case berr == nil:
		return false
	default:
		return a < b
	}
}
