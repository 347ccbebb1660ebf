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

import "path/filepath"

const DefaultMaxTasksToKeep = 100

// RomsRootDir returns the root directory holding one subdirectory of ROM
// files per system.
func (c *Instance) RomsRootDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.RomsRootDirectory
}

func (c *Instance) SetRomsRootDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.RomsRootDirectory = dir
}

// SystemRomsDir returns the ROM directory for a single system.
func (c *Instance) SystemRomsDir(system string) string {
	return filepath.Join(c.RomsRootDir(), system)
}

// SystemMediaDir returns the media directory inside a system's ROM tree.
func (c *Instance) SystemMediaDir(system string) string {
	return filepath.Join(c.RomsRootDir(), system, MediaDirName)
}

// TaskLogsPath returns the directory task log files are written to. The
// configured value wins, otherwise they live under the data directory.
func (c *Instance) TaskLogsPath(dataDir string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.TaskLogsDirectory != "" {
		return c.vals.TaskLogsDirectory
	}
	return filepath.Join(dataDir, TaskLogsDir)
}

func (c *Instance) MaxTasksToKeep() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.MaxTasksToKeep == nil || *c.vals.MaxTasksToKeep <= 0 {
		return DefaultMaxTasksToKeep
	}
	return *c.vals.MaxTasksToKeep
}

func (c *Instance) SetMaxTasksToKeep(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.MaxTasksToKeep = &n
}
