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
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// MalformedError reports a catalog or corpus parse failure with the byte
// offset where the decoder gave up.
type MalformedError struct {
	Err    error
	Offset int64
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed catalog at byte %d: %v", e.Offset, e.Err)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// ParseCatalog reads a gamelist file. Unknown child elements are ignored,
// missing ids are assigned fresh positive integers in document order, and
// over-escaped entities are repaired.
func ParseCatalog(path string) ([]Game, error) {
	cleanPath := filepath.Clean(path)

	xmlFile, err := os.Open(cleanPath) // #nosec G304 - path is under the state or ROM tree
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", cleanPath, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open catalog %s: %w", cleanPath, err)
	}
	defer func(xmlFile *os.File) {
		closeErr := xmlFile.Close()
		if closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing catalog file")
		}
	}(xmlFile)

	return ParseCatalogReader(xmlFile)
}

// ParseCatalogReader decodes a gamelist document from a stream.
func ParseCatalogReader(r io.Reader) ([]Game, error) {
	dec := xml.NewDecoder(r)

	var games []Game
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &MalformedError{Offset: dec.InputOffset(), Err: err}
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "gameList":
			// descend into the root element
		case "game":
			game, err := decodeGame(dec)
			if err != nil {
				return nil, &MalformedError{Offset: dec.InputOffset(), Err: err}
			}
			games = append(games, game)
		default:
			if err := dec.Skip(); err != nil {
				return nil, &MalformedError{Offset: dec.InputOffset(), Err: err}
			}
		}
	}

	normalizeParsed(games)
	return games, nil
}

// decodeGame consumes tokens up to the game's end element. Unknown child
// elements are skipped without error.
func decodeGame(dec *xml.Decoder) (Game, error) {
	var game Game
	for {
		tok, err := dec.Token()
		if err != nil {
			return game, err //nolint:wrapcheck // offset is attached by the caller
		}

		switch t := tok.(type) {
		case xml.StartElement:
			text, err := collectText(dec)
			if err != nil {
				return game, err
			}
			game.SetField(t.Name.Local, RepairOverEscaped(text))
		case xml.EndElement:
			return game, nil
		}
	}
}

// collectText gathers character data until the current element closes,
// skipping any nested elements.
func collectText(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err //nolint:wrapcheck // offset is attached by the caller
		}

		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			if err := dec.Skip(); err != nil {
				return "", err //nolint:wrapcheck // offset is attached by the caller
			}
		case xml.EndElement:
			return strings.TrimSpace(sb.String()), nil
		}
	}
}

// normalizeParsed fills the defaults the tolerant parser allows: fresh ids
// in document order, "Unknown Game" names, and placeholder paths.
func normalizeParsed(games []Game) {
	used := make(map[int]bool, len(games))
	for i := range games {
		if n, err := strconv.Atoi(strings.TrimSpace(games[i].ID)); err == nil && n > 0 {
			used[n] = true
		}
	}

	next := 1
	for i := range games {
		if strings.TrimSpace(games[i].ID) == "" {
			for used[next] {
				next++
			}
			games[i].ID = strconv.Itoa(next)
			used[next] = true
		}

		if games[i].Name == "" {
			games[i].Name = "Unknown Game"
		}

		if games[i].Path == "" {
			games[i].Path = "./unknown-" + games[i].ID
			log.Warn().
				Str("name", games[i].Name).
				Str("placeholder", games[i].Path).
				Msg("catalog entry has no path")
		}
	}
}

var numericEntityRe = regexp.MustCompile(`&#(\d+);`)

var namedEntityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

// RepairOverEscaped unescapes XML entities repeatedly until a fixed point.
// The decoder has already unescaped once, so any entity still present came
// from double (or deeper) escaping, e.g. "&amp;amp;amp;" on disk.
func RepairOverEscaped(s string) string {
	for {
		next := namedEntityReplacer.Replace(s)
		next = numericEntityRe.ReplaceAllStringFunc(next, func(m string) string {
			code, err := strconv.Atoi(m[2 : len(m)-1])
			if err != nil || code <= 0 || code > 0x10FFFF {
				return m
			}
			return string(rune(code))
		})
		if next == s {
			return s
		}
		s = next
	}
}
