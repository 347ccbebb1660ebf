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

// defaultMediaMappings maps the on-disk media category directories under
// <system>/media/ to catalog fields.
var defaultMediaMappings = map[string]string{
	"screenshot": "screenshot",
	"titleshot":  "titleshot",
	"box2dfront": "boxart",
	"box2dback":  "boxback",
	"box2d":      "extra1",
	"box3d":      "image",
	"wheel":      "wheel",
	"marquee":    "marquee",
	"cartridge":  "cartridge",
	"fanart":     "fanart",
	"thumbnail":  "thumbnail",
	"video":      "video",
	"manual":     "manual",
}

var (
	defaultImageExtensions = []string{".png", ".jpg", ".jpeg"}
	defaultVideoExtensions = []string{".mp4"}
	defaultDocExtensions   = []string{".pdf"}
)

var defaultRomExtensions = []string{
	".zip", ".7z", ".nes", ".sfc", ".smc", ".md", ".gen", ".sms", ".gg",
	".gb", ".gbc", ".gba", ".n64", ".z64", ".nds", ".pce", ".ngp", ".ws",
	".a26", ".a78", ".lnx", ".col", ".int", ".vec", ".bin", ".cue",
	".iso", ".chd",
}

// defaultImageTypeMappings maps LaunchBox-style image type tags to catalog
// fields. One download per field per game; region priority breaks ties.
var defaultImageTypeMappings = map[string]string{
	"Box - Front":             "boxart",
	"Box - Back":              "boxback",
	"Box - 3D":                "image",
	"Cart - Front":            "cartridge",
	"Clear Logo":              "wheel",
	"Banner":                  "marquee",
	"Arcade - Marquee":        "marquee",
	"Screenshot - Gameplay":   "screenshot",
	"Screenshot - Game Title": "titleshot",
	"Fanart - Background":     "fanart",
}

var defaultRegionPriority = []string{
	"United States",
	"North America",
	"World",
	"Europe",
	"Japan",
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Media: Media{
		Mappings: defaultMediaMappings,
		Extensions: map[string][]string{
			"screenshot": defaultImageExtensions,
			"titleshot":  defaultImageExtensions,
			"box2dfront": defaultImageExtensions,
			"box2dback":  defaultImageExtensions,
			"box2d":      defaultImageExtensions,
			"box3d":      defaultImageExtensions,
			"wheel":      defaultImageExtensions,
			"marquee":    defaultImageExtensions,
			"cartridge":  defaultImageExtensions,
			"fanart":     defaultImageExtensions,
			"thumbnail":  defaultImageExtensions,
			"video":      defaultVideoExtensions,
			"manual":     defaultDocExtensions,
		},
	},
	MediaFields: map[string]MediaField{
		"video":  {TargetExtension: ".mp4"},
		"manual": {TargetExtension: ".pdf"},
	},
	Providers: map[string]Provider{
		DefaultProvider: {
			ImageTypeMappings: defaultImageTypeMappings,
			RegionPriority:    defaultRegionPriority,
			MetadataURL:       "https://gamesdb.launchbox-app.com/Metadata.zip",
			MediaBaseURL:      "https://images.launchbox-app.com/",
		},
	},
}
