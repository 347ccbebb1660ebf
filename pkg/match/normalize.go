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

// Package match resolves catalog game names against a platform-scoped
// corpus view: authoritative ID first, then exact normalized-name lookup,
// then fuzzy scoring. Normalization and scoring are pure functions of
// their inputs so results are stable across runs.
package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	parensGroupRegex = regexp.MustCompile(`\([^)]*\)`)
	trailingParens   = regexp.MustCompile(`((?:\s*\([^)]*\))+)\s*$`)
	nonAlphanumRegex = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)

	// X is intentionally not folded so "Mega Man X" stays distinct from
	// "Mega Man 10".
	romanNumeralOrder    = []string{"IV", "III", "II"}
	romanNumeralPatterns = map[string]*regexp.Regexp{
		"IV":  regexp.MustCompile(`\bIV\b`),
		"III": regexp.MustCompile(`\bIII\b`),
		"II":  regexp.MustCompile(`\bII\b`),
	}
	romanNumeralReplacements = map[string]string{
		"IV":  "4",
		"III": "3",
		"II":  "2",
	}
)

// removeDiacritics strips diacritical marks so accented and plain
// spellings normalize to the same key.
func removeDiacritics(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	if normalized, _, err := transform.String(t, s); err == nil {
		return normalized
	}
	return s
}

// convertRomanNumerals folds the sequel numerals II, III and IV to digits.
// Applied before lowercasing since numerals are uppercase in titles.
func convertRomanNumerals(s string) string {
	for _, numeral := range romanNumeralOrder {
		s = romanNumeralPatterns[numeral].ReplaceAllString(s, romanNumeralReplacements[numeral])
	}
	return s
}

// NormalizeName produces the lookup key for a name: accents stripped,
// sequel numerals folded, lowercased, everything but letters and digits
// removed.
func NormalizeName(name string) string {
	s := removeDiacritics(name)
	s = convertRomanNumerals(s)
	s = strings.ToLower(s)
	return nonAlphanumRegex.ReplaceAllString(s, "")
}

// StripParentheticals removes parenthetical groups such as region or
// revision tags and collapses the remaining whitespace.
func StripParentheticals(name string) string {
	s := parensGroupRegex.ReplaceAllString(name, " ")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ParentheticalSuffix returns the trailing parenthetical groups of a name,
// e.g. "Foo (USA) (Rev 1)" → "(USA) (Rev 1)". Empty when none.
func ParentheticalSuffix(name string) string {
	m := trailingParens.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// NormalizeKeys returns the two lookup keys for a raw catalog name: the
// full normalized name and the variant with parenthetical tags removed.
// The keys are equal when the name has no parentheticals.
func NormalizeKeys(name string) (full, stripped string) {
	full = NormalizeName(name)
	stripped = NormalizeName(StripParentheticals(name))
	return full, stripped
}
