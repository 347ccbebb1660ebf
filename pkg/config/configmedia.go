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

package config

import "maps"

type Media struct {
	Mappings      map[string]string   `toml:"mappings,omitempty"`
	Extensions    map[string][]string `toml:"extensions,omitempty"`
	RomExtensions []string            `toml:"rom_extensions,omitempty,multiline"`
}

// MediaField carries per-catalog-field download settings, keyed by field
// name under [media_fields].
type MediaField struct {
	TargetExtension string `toml:"target_extension,omitempty"`
}

// MediaMappings returns the media category to catalog field table used by
// the reconciler, e.g. "box2dfront" -> "boxart".
func (c *Instance) MediaMappings() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.vals.Media.Mappings))
	maps.Copy(out, c.vals.Media.Mappings)
	return out
}

// MediaExtensions returns the allowed file extensions for a media category,
// lowercase with leading dot.
func (c *Instance) MediaExtensions(category string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	exts, ok := c.vals.Media.Extensions[category]
	if !ok {
		return defaultImageExtensions
	}
	return exts
}

// MediaFieldTargetExtension returns the destination extension for a catalog
// field's downloads, e.g. video -> ".mp4". Empty when the source extension
// should be kept.
func (c *Instance) MediaFieldTargetExtension(field string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mf, ok := c.vals.MediaFields[field]
	if !ok {
		return ""
	}
	return mf.TargetExtension
}

// RomExtensions returns the file extensions treated as ROMs during a ROM
// scan, lowercase with leading dot.
func (c *Instance) RomExtensions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.vals.Media.RomExtensions) == 0 {
		return defaultRomExtensions
	}
	return c.vals.Media.RomExtensions
}
