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

package downloader

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/RomStashProject/romstash-core/pkg/catalog"
	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/corpus"
	"github.com/RomStashProject/romstash-core/pkg/helpers"
)

// regionAliases maps parenthetical filename tokens to the region tags
// used by corpus image descriptors.
var regionAliases = map[string]string{
	"usa":            "United States",
	"us":             "United States",
	"u":              "United States",
	"europe":         "Europe",
	"eu":             "Europe",
	"e":              "Europe",
	"japan":          "Japan",
	"jp":             "Japan",
	"j":              "Japan",
	"world":          "World",
	"uk":             "United Kingdom",
	"united kingdom": "United Kingdom",
	"germany":        "Germany",
	"france":         "France",
	"spain":          "Spain",
	"italy":          "Italy",
	"korea":          "Korea",
	"china":          "China",
	"brazil":         "Brazil",
	"australia":      "Australia",
	"canada":         "Canada",
}

// RegionFromFilename extracts the preferred region from a catalog path's
// parenthetical tokens, e.g. "Foo (USA) (Rev 1).zip" -> "United States".
// Returns empty when no token maps to a known region.
func RegionFromFilename(romPath string) string {
	stem := helpers.FilenameStem(romPath)
	rest := stem
	for {
		open := strings.Index(rest, "(")
		if open < 0 {
			return ""
		}
		closeIdx := strings.Index(rest[open:], ")")
		if closeIdx < 0 {
			return ""
		}
		group := rest[open+1 : open+closeIdx]
		// "(En,Fr,De)" style language groups never map
		for token := range strings.SplitSeq(group, ",") {
			key := strings.ToLower(strings.TrimSpace(token))
			if region, ok := regionAliases[key]; ok {
				return region
			}
		}
		rest = rest[open+closeIdx+1:]
	}
}

// regionPriority returns the per-game region order: the region parsed
// from the ROM filename first, then the provider's configured list.
func regionPriority(cfg *config.Instance, provider, romPath string) []string {
	configured := cfg.RegionPriority(provider)
	promoted := RegionFromFilename(romPath)
	if promoted == "" {
		return configured
	}
	out := make([]string, 0, len(configured)+1)
	out = append(out, promoted)
	for _, r := range configured {
		if !strings.EqualFold(r, promoted) {
			out = append(out, r)
		}
	}
	return out
}

// regionRank orders candidate images: configured regions by position,
// untagged images next, unknown regions last. Lower is better.
func regionRank(priority []string, region string) int {
	for i, r := range priority {
		if strings.EqualFold(r, region) {
			return i
		}
	}
	if region == "" {
		return len(priority)
	}
	return len(priority) + 1
}

// PlanInput describes one game's media wanted from a provider.
type PlanInput struct {
	Game     *catalog.Game
	System   string
	Provider string
	TaskID   string
	Images   []corpus.Image
	Force    bool
}

// BuildPlan selects at most one download per catalog media field: the
// corpus image type maps to a field through provider config, and the
// best-region variant wins. With Force off, fields already holding a
// value are skipped before any network traffic.
func BuildPlan(cfg *config.Instance, in PlanInput) []Task {
	if in.Game == nil || len(in.Images) == 0 {
		return nil
	}

	typeToField := cfg.ImageTypeMappings(in.Provider)
	priority := regionPriority(cfg, in.Provider, in.Game.Path)
	baseURL := cfg.ProviderMediaBaseURL(in.Provider)
	fieldToCategory := invertMappings(cfg.MediaMappings())
	stem := helpers.FilenameStem(in.Game.Path)

	// best candidate per field
	best := make(map[string]corpus.Image)
	for _, img := range in.Images {
		field, ok := typeToField[img.Type]
		if !ok {
			continue
		}
		current, seen := best[field]
		if !seen || regionRank(priority, img.Region) < regionRank(priority, current.Region) {
			best[field] = img
		}
	}

	var plan []Task
	for _, field := range catalog.MediaFields {
		img, ok := best[field]
		if !ok {
			continue
		}
		if !in.Force {
			if v, _ := in.Game.Field(field); v != "" {
				continue
			}
		}
		category, ok := fieldToCategory[field]
		if !ok {
			continue
		}

		ext := cfg.MediaFieldTargetExtension(field)
		if ext == "" {
			ext = strings.ToLower(path.Ext(img.FileName))
		}
		plan = append(plan, Task{
			URL:      mediaURL(baseURL, img.FileName),
			DestPath: filepath.Join(cfg.SystemMediaDir(in.System), category, stem+ext),
			Field:    field,
			Category: category,
			Region:   img.Region,
			GameID:   img.DatabaseID,
			TaskID:   in.TaskID,
		})
	}
	return plan
}

// invertMappings flips the category->field media table to field->category.
// When two categories share a field the first in an arbitrary order wins;
// configs are expected to keep the table bijective.
func invertMappings(mappings map[string]string) map[string]string {
	out := make(map[string]string, len(mappings))
	for category, field := range mappings {
		if _, exists := out[field]; !exists {
			out[field] = category
		}
	}
	return out
}

// mediaURL resolves a corpus file name against the provider base URL,
// escaping each path segment. Provider file names routinely contain
// spaces and slashes.
func mediaURL(baseURL, fileName string) string {
	segments := strings.Split(fileName, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.Join(segments, "/")
}

// EnsureDestDirs pre-creates every destination directory in a plan so
// workers write straight to the final path.
func EnsureDestDirs(plan []Task) error {
	seen := make(map[string]bool)
	for _, t := range plan {
		dir := filepath.Dir(t.DestPath)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create media directory %s: %w", dir, err)
		}
	}
	return nil
}

// CatalogValue is the relative reference written to the catalog after a
// successful download, e.g. "./media/box2dfront/Foo (USA).png".
func CatalogValue(t Task) string {
	return "./" + path.Join(config.MediaDirName, t.Category, filepath.Base(t.DestPath))
}
