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
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RomStashProject/romstash-core/pkg/helpers"
	"github.com/rs/zerolog/log"
)

// descWrapWidth is the soft-wrap column for long descriptions. Wrapping is
// cosmetic; consumers treat whitespace as insignificant.
const descWrapWidth = 80

// WriteResult reports the side effects of a catalog write.
type WriteResult struct {
	BackupPath string
	Removed    int
}

// WriteCatalog serializes games to path. Entries are deduplicated by path
// (first occurrence wins; entries without a path dedupe by lowercased
// name), the previous file is copied to <path>.backup.<unix-ts>, and the
// document lands via a temporary sibling plus rename so readers never see
// a half-written file.
func WriteCatalog(path string, games []Game) (WriteResult, error) {
	var res WriteResult

	deduped, removed := DedupeGames(games)
	res.Removed = removed
	if removed > 0 {
		log.Debug().Int("removed", removed).Str("path", path).
			Msg("dropped duplicate catalog entries")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return res, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	backupPath, err := helpers.BackupTimestamped(path, time.Now())
	if err != nil {
		return res, err
	}
	res.BackupPath = backupPath

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return res, fmt.Errorf("failed to create catalog temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if err := encodeCatalog(tmpFile, deduped); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return res, err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return res, fmt.Errorf("failed to sync catalog temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return res, fmt.Errorf("failed to close catalog temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil { //nolint:gosec // catalogs are read by front-ends
		_ = os.Remove(tmpPath)
		return res, fmt.Errorf("failed to chmod catalog temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return res, fmt.Errorf("failed to replace catalog: %w", err)
	}

	collectStaleTempFiles(path)

	return res, nil
}

// collectStaleTempFiles removes temp siblings abandoned by a crashed
// writer. Runs after a successful write only.
func collectStaleTempFiles(path string) {
	stale, err := filepath.Glob(path + ".tmp.*")
	if err != nil {
		return
	}
	for _, p := range stale {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", p).Msg("failed to remove stale catalog temp file")
		}
	}
}

// DedupeGames removes duplicate entries keeping the first occurrence.
// Entries with a path dedupe by exact path; entries without one dedupe by
// lowercased name. Returns the surviving games and the removal count.
func DedupeGames(games []Game) ([]Game, int) {
	seenPath := make(map[string]bool, len(games))
	seenName := make(map[string]bool)

	out := make([]Game, 0, len(games))
	removed := 0
	for i := range games {
		game := games[i]
		if game.Path != "" {
			if seenPath[game.Path] {
				removed++
				continue
			}
			seenPath[game.Path] = true
		} else {
			key := strings.ToLower(game.Name)
			if seenName[key] {
				removed++
				continue
			}
			seenName[key] = true
		}
		out = append(out, game)
	}
	return out, removed
}

func encodeCatalog(w io.Writer, games []Game) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(xml.Header); err != nil {
		return fmt.Errorf("failed to write catalog header: %w", err)
	}
	if _, err := bw.WriteString("<gameList>\n"); err != nil {
		return fmt.Errorf("failed to write catalog root: %w", err)
	}

	for i := range games {
		writeGame(bw, &games[i])
	}

	if _, err := bw.WriteString("</gameList>\n"); err != nil {
		return fmt.Errorf("failed to write catalog root close: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush catalog: %w", err)
	}
	return nil
}

// writeGame emits one game element with fields in canonical order. Empty
// fields are omitted.
func writeGame(bw *bufio.Writer, game *Game) {
	_, _ = bw.WriteString("\t<game>\n")
	for _, field := range FieldOrder {
		value, _ := game.Field(field)
		if value == "" {
			continue
		}
		if field == "desc" {
			value = wrapText(value, descWrapWidth)
		}
		_, _ = bw.WriteString("\t\t<")
		_, _ = bw.WriteString(field)
		_, _ = bw.WriteString(">")
		_, _ = bw.WriteString(escapeText(value))
		_, _ = bw.WriteString("</")
		_, _ = bw.WriteString(field)
		_, _ = bw.WriteString(">\n")
	}
	_, _ = bw.WriteString("\t</game>\n")
}

// escapeText escapes XML-reserved characters but keeps newlines literal so
// wrapped descriptions stay readable. xml.EscapeText is unsuitable here
// because it encodes newlines as character references.
var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// wrapText soft-wraps text at the given width on word boundaries,
// preserving existing line breaks. Runs of spaces collapse.
func wrapText(s string, width int) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		out = append(out, wrapLine(line, width)...)
	}
	return strings.Join(out, "\n")
}

func wrapLine(line string, width int) []string {
	words := strings.Fields(line)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	cur := words[0]
	for _, word := range words[1:] {
		if len(cur)+1+len(word) > width {
			lines = append(lines, cur)
			cur = word
			continue
		}
		cur += " " + word
	}
	return append(lines, cur)
}
