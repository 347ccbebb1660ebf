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

package tasks

import "github.com/RomStashProject/romstash-core/pkg/helpers/syncutil"

// CancelFlags is the shared cooperative stop map polled by workers and
// the download pipeline at their defined suspension points.
type CancelFlags struct {
	flags map[string]bool
	mu    syncutil.RWMutex
}

// NewCancelFlags creates an empty cancel map.
func NewCancelFlags() *CancelFlags {
	return &CancelFlags{flags: make(map[string]bool)}
}

// Set raises the stop flag for a task id.
func (c *CancelFlags) Set(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags[taskID] = true
}

// IsCancelled reports whether a stop was requested for a task id.
func (c *CancelFlags) IsCancelled(taskID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.flags[taskID]
}

// Clear removes a task's flag once the task reaches a terminal status.
func (c *CancelFlags) Clear(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.flags, taskID)
}
