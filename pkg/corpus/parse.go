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

package corpus

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

func newSnapshot() *snapshot {
	return &snapshot{
		entries:  make(map[string]*Entry),
		images:   make(map[string][]Image),
		altNames: make(map[string][]AlternateName),
	}
}

// parseCorpusFile streams the corpus XML into a snapshot. The returned
// snapshot is never nil; on error it carries whatever was decoded before
// the failure so callers can retain a partial load.
func parseCorpusFile(path string) (*snapshot, error) {
	cleanPath := filepath.Clean(path)

	xmlFile, err := os.Open(cleanPath) // #nosec G304 - path is under the state directory
	if err != nil {
		return newSnapshot(), fmt.Errorf("failed to open corpus %s: %w", cleanPath, err)
	}
	defer func(xmlFile *os.File) {
		closeErr := xmlFile.Close()
		if closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing corpus file")
		}
	}(xmlFile)

	return parseCorpusReader(xmlFile)
}

// parseCorpusReader decodes Game, GameImage and GameAlternateName elements
// in a single pass. Records without a DatabaseID are skipped; unknown
// element kinds and unknown children are ignored.
func parseCorpusReader(r io.Reader) (*snapshot, error) {
	snap := newSnapshot()
	platforms := make(map[string]bool)

	dec := xml.NewDecoder(r)
	rootSeen := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			snap.platforms = distinctSorted(platforms)
			return snap, fmt.Errorf("malformed corpus at byte %d: %w", dec.InputOffset(), err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		// descend into the root element regardless of its name
		if !rootSeen {
			rootSeen = true
			continue
		}

		switch se.Name.Local {
		case "Game":
			fields, err := decodeFields(dec)
			if err != nil {
				snap.platforms = distinctSorted(platforms)
				return snap, fmt.Errorf("malformed corpus at byte %d: %w", dec.InputOffset(), err)
			}
			entry := entryFromFields(fields)
			if entry.DatabaseID == "" {
				log.Debug().Str("name", entry.Name).Msg("skipping corpus game without DatabaseID")
				continue
			}
			snap.entries[entry.DatabaseID] = entry
			if entry.Platform != "" {
				platforms[entry.Platform] = true
			}
		case "GameImage":
			fields, err := decodeFields(dec)
			if err != nil {
				snap.platforms = distinctSorted(platforms)
				return snap, fmt.Errorf("malformed corpus at byte %d: %w", dec.InputOffset(), err)
			}
			id := fields["DatabaseID"]
			if id == "" {
				continue
			}
			snap.images[id] = append(snap.images[id], Image{
				DatabaseID: id,
				Type:       fields["Type"],
				FileName:   fields["FileName"],
				Region:     fields["Region"],
			})
		case "GameAlternateName":
			fields, err := decodeFields(dec)
			if err != nil {
				snap.platforms = distinctSorted(platforms)
				return snap, fmt.Errorf("malformed corpus at byte %d: %w", dec.InputOffset(), err)
			}
			id := fields["DatabaseID"]
			name := fields["AlternateName"]
			if id == "" || name == "" {
				continue
			}
			snap.altNames[id] = append(snap.altNames[id], AlternateName{
				DatabaseID:    id,
				AlternateName: name,
				Region:        fields["Region"],
			})
		default:
			// unknown record kind
			if err := dec.Skip(); err != nil {
				snap.platforms = distinctSorted(platforms)
				return snap, fmt.Errorf("malformed corpus at byte %d: %w", dec.InputOffset(), err)
			}
		}
	}

	snap.platforms = distinctSorted(platforms)
	return snap, nil
}

// namedEntryFields are Game children mapped to Entry struct fields; all
// other children land in Extra.
var namedEntryFields = map[string]bool{
	"DatabaseID": true, "Name": true, "Platform": true, "Developer": true,
	"Publisher": true, "Overview": true, "Genres": true,
	"CommunityRating": true, "MaxPlayers": true, "ReleaseDate": true,
}

func entryFromFields(fields map[string]string) *Entry {
	entry := &Entry{
		DatabaseID:      fields["DatabaseID"],
		Name:            fields["Name"],
		Platform:        fields["Platform"],
		Developer:       fields["Developer"],
		Publisher:       fields["Publisher"],
		Overview:        fields["Overview"],
		Genres:          fields["Genres"],
		CommunityRating: fields["CommunityRating"],
		MaxPlayers:      fields["MaxPlayers"],
		ReleaseDate:     fields["ReleaseDate"],
	}
	for k, v := range fields {
		if namedEntryFields[k] {
			continue
		}
		if entry.Extra == nil {
			entry.Extra = make(map[string]string)
		}
		entry.Extra[k] = v
	}
	return entry
}

// decodeFields consumes the current record's children into a name→text
// map. Nested elements inside a child are skipped.
func decodeFields(dec *xml.Decoder) (map[string]string, error) {
	fields := make(map[string]string)
	for {
		tok, err := dec.Token()
		if err != nil {
			return fields, err //nolint:wrapcheck // offset is attached by the caller
		}

		switch t := tok.(type) {
		case xml.StartElement:
			text, err := collectText(dec)
			if err != nil {
				return fields, err
			}
			fields[t.Name.Local] = text
		case xml.EndElement:
			return fields, nil
		}
	}
}

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
