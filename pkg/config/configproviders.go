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

// DefaultProvider is the metadata provider used when a submission does not
// name one.
const DefaultProvider = "launchbox"

// Provider configures one remote metadata/media provider under
// [providers.<name>].
type Provider struct {
	ImageTypeMappings map[string]string `toml:"image_type_mappings,omitempty"`
	MetadataURL       string            `toml:"metadata_url,omitempty"`
	MediaBaseURL      string            `toml:"media_base_url,omitempty"`
	RegionPriority    []string          `toml:"region_priority,omitempty,multiline"`
}

// Provider returns the configuration for a named provider. Falls back to
// the built-in defaults for the default provider.
func (c *Instance) Provider(name string) (Provider, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.vals.Providers[name]
	return p, ok
}

// ImageTypeMappings returns the provider image type to catalog field table,
// e.g. "Box - Front" -> "boxart".
func (c *Instance) ImageTypeMappings(provider string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.vals.Providers[provider]
	if !ok || len(p.ImageTypeMappings) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(p.ImageTypeMappings))
	maps.Copy(out, p.ImageTypeMappings)
	return out
}

// RegionPriority returns the configured default region order for a
// provider. A region token parsed from the ROM filename is promoted ahead
// of this list by the download pipeline.
func (c *Instance) RegionPriority(provider string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.vals.Providers[provider]
	if !ok || len(p.RegionPriority) == 0 {
		return append([]string(nil), defaultRegionPriority...)
	}
	return append([]string(nil), p.RegionPriority...)
}

// ProviderMetadataURL returns the corpus archive URL for a provider.
func (c *Instance) ProviderMetadataURL(provider string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Providers[provider].MetadataURL
}

// ProviderMediaBaseURL returns the base URL media file names resolve
// against for a provider.
func (c *Instance) ProviderMediaBaseURL(provider string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Providers[provider].MediaBaseURL
}
