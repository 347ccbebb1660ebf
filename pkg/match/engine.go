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
	"strings"

	"github.com/RomStashProject/romstash-core/pkg/corpus"
	"github.com/hbollon/go-edlib"
	"github.com/rs/zerolog/log"
)

const (
	// earlyExitScore stops the fuzzy scan once a candidate is this good.
	earlyExitScore = 0.9
	// maxFuzzyScore keeps fuzzy results below the exact-match score of 1.0.
	maxFuzzyScore = 0.99

	// DefaultCandidateLimit bounds partial-match review lists.
	DefaultCandidateLimit = 20

	bonusPublisherExact     = 0.15
	bonusPublisherSubstring = 0.08
	bonusDeveloperExact     = 0.12
	bonusDeveloperSubstring = 0.06
)

// Source identifies how a match was found.
type Source string

const (
	SourceLaunchboxID Source = "launchboxid"
	SourceMain        Source = "main"
	SourceAlternate   Source = "alternate"
)

// Query is one catalog game to resolve.
type Query struct {
	Name       string
	ExistingID string
	Developer  string
	Publisher  string
}

// Result is a resolved match. Score 1.0 is reserved for authoritative-ID
// and exact-name matches; only those are applied automatically. AltName
// carries the matched alternate title in its original casing.
type Result struct {
	Entry   *corpus.Entry
	AltName string
	Source  Source
	Score   float64
}

// Candidate is one ranked entry in a partial-match review list.
type Candidate struct {
	Entry   *corpus.Entry
	AltName string
	Source  Source
	Score   float64
}

// Engine matches catalog games against one platform view. Building the
// engine builds the unified index; both are read-only afterwards.
type Engine struct {
	view *corpus.PlatformView
	idx  *Index
}

// NewEngine builds the matcher for a platform view.
func NewEngine(view *corpus.PlatformView) *Engine {
	return &Engine{
		view: view,
		idx:  BuildIndex(view),
	}
}

// View returns the platform view the engine was built from.
func (e *Engine) View() *corpus.PlatformView {
	return e.view
}

// Match resolves one query. The authoritative ID wins when it resolves in
// the view; otherwise exact normalized-name lookup, then fuzzy fallback.
// ok is false when nothing matched at all.
func (e *Engine) Match(q Query) (Result, bool) {
	if q.ExistingID != "" {
		if entry, found := e.view.Entry(q.ExistingID); found {
			return Result{Entry: entry, Score: 1.0, Source: SourceLaunchboxID}, true
		}
		log.Debug().Str("id", q.ExistingID).Str("name", q.Name).
			Msg("existing id not in platform view, falling back to name match")
	}

	if strings.TrimSpace(q.Name) == "" {
		return Result{}, false
	}

	full, stripped := NormalizeKeys(q.Name)
	for _, key := range queryKeys(full, stripped) {
		if hit, found := e.idx.Lookup(key); found {
			res := Result{Entry: hit.Entry, Score: 1.0, Source: SourceMain}
			if hit.Kind == KindAlternate {
				res.Source = SourceAlternate
				res.AltName = hit.AltName
			}
			return res, true
		}
	}

	return e.fuzzyBest(q, full, stripped)
}

// Candidates returns the ranked candidate list for partial-match review,
// scored with the same rules as Match.
func (e *Engine) Candidates(q Query, limit int) []Candidate {
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}
	if strings.TrimSpace(q.Name) == "" {
		return nil
	}

	full, stripped := NormalizeKeys(q.Name)
	keys := queryKeys(full, stripped)
	if len(keys) == 0 {
		return nil
	}

	candidates := make([]Candidate, 0, len(e.idx.ordered))
	for i := range e.idx.ordered {
		se := &e.idx.ordered[i]
		score, source, altName := scoreCandidate(q, keys, se)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			Entry:   se.entry,
			Score:   score,
			Source:  source,
			AltName: altName,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return idLess(candidates[i].Entry.DatabaseID, candidates[j].Entry.DatabaseID)
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func (e *Engine) fuzzyBest(q Query, full, stripped string) (Result, bool) {
	keys := queryKeys(full, stripped)
	if len(keys) == 0 {
		return Result{}, false
	}

	var best Result
	for i := range e.idx.ordered {
		se := &e.idx.ordered[i]
		score, source, altName := scoreCandidate(q, keys, se)
		if score > best.Score {
			best = Result{Entry: se.entry, Score: score, Source: source, AltName: altName}
		}
		if best.Score >= earlyExitScore {
			break
		}
	}

	if best.Entry == nil || best.Score <= 0 {
		return Result{}, false
	}
	return best, true
}

// scoreCandidate computes one candidate's fuzzy score: the best LCS ratio
// over query variants and the candidate's main and alternate names, plus
// publisher and developer bonuses. A ratio of 1.0 is an exact name and is
// returned as such; anything else is clamped below 1.0.
func scoreCandidate(q Query, keys []string, se *scanEntry) (float64, Source, string) {
	source := SourceMain
	altName := ""

	base := 0.0
	for _, key := range keys {
		if r := lcsRatio(key, se.mainKey); r > base {
			base = r
		}
	}
	for _, alt := range se.alts {
		for _, key := range keys {
			if r := lcsRatio(key, alt.key); r > base {
				base = r
				source = SourceAlternate
				altName = alt.name
			}
		}
	}

	if base <= 0 {
		return 0, source, ""
	}
	if base >= 1 {
		return 1.0, source, altName
	}

	score := base
	score += fieldBonus(q.Publisher, se.entry.Publisher, bonusPublisherExact, bonusPublisherSubstring)
	score += fieldBonus(q.Developer, se.entry.Developer, bonusDeveloperExact, bonusDeveloperSubstring)
	if score > maxFuzzyScore {
		score = maxFuzzyScore
	}
	return score, source, altName
}

// fieldBonus rewards metadata agreement between the catalog game and a
// candidate: the exact bonus for equality, the substring bonus for
// containment either way. Empty values earn nothing.
func fieldBonus(queryVal, entryVal string, exact, substring float64) float64 {
	q := strings.TrimSpace(strings.ToLower(queryVal))
	e := strings.TrimSpace(strings.ToLower(entryVal))
	if q == "" || e == "" {
		return 0
	}
	if q == e {
		return exact
	}
	if strings.Contains(e, q) || strings.Contains(q, e) {
		return substring
	}
	return 0
}

// lcsRatio is 2·LCS(a,b) / (|a|+|b|) over runes: 1.0 for identical
// strings, 0 when either is empty.
func lcsRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	lcs := edlib.LCS(a, b)
	la := len([]rune(a))
	lb := len([]rune(b))
	return 2 * float64(lcs) / float64(la+lb)
}

func queryKeys(full, stripped string) []string {
	keys := make([]string, 0, 2)
	if full != "" {
		keys = append(keys, full)
	}
	if stripped != "" && stripped != full {
		keys = append(keys, stripped)
	}
	return keys
}
