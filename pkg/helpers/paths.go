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

package helpers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/adrg/xdg"
)

// DataDir returns the writable state directory holding gamelists, task
// logs, provider caches, and the core log. ROMSTASH_APP overrides the XDG
// default for portable installs.
func DataDir() string {
	if appPath := os.Getenv(config.AppEnv); appPath != "" {
		return appPath
	}
	return filepath.Join(xdg.DataHome, config.AppName)
}

// ConfigDir returns the directory holding config.toml and auth.toml.
func ConfigDir() string {
	if appPath := os.Getenv(config.AppEnv); appPath != "" {
		return appPath
	}
	return filepath.Join(xdg.ConfigHome, config.AppName)
}

// GamelistDir returns the authoritative catalog directory for a system.
func GamelistDir(dataDir, system string) string {
	return filepath.Join(dataDir, config.GamelistsDir, system)
}

// GamelistPath returns the authoritative catalog file for a system.
func GamelistPath(dataDir, system string) string {
	return filepath.Join(GamelistDir(dataDir, system), config.GamelistFilename)
}

// ProviderDBDir returns the cache directory for a metadata provider.
func ProviderDBDir(dataDir, provider string) string {
	return filepath.Join(dataDir, config.ProviderDBDir, provider)
}

// EnsureDirectories creates the state directory tree.
func EnsureDirectories(dataDir string) error {
	dirs := []string{
		dataDir,
		filepath.Join(dataDir, config.GamelistsDir),
		filepath.Join(dataDir, config.TaskLogsDir),
		filepath.Join(dataDir, config.ProviderDBDir),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
