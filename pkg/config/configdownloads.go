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

import "time"

const (
	DefaultDownloadConnections = 20
	DefaultDownloadTimeout     = 60 * time.Second
	DefaultDownloadRetries     = 3
)

type Download struct {
	MaxConnections *int `toml:"max_connections,omitempty"`
	TimeoutSeconds *int `toml:"timeout_seconds,omitempty"`
	RetryAttempts  *int `toml:"retry_attempts,omitempty"`
}

// DownloadMaxConnections returns the worker pool size and keep-alive pool
// cap used by the media download pipeline.
func (c *Instance) DownloadMaxConnections() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Download.MaxConnections == nil || *c.vals.Download.MaxConnections <= 0 {
		return DefaultDownloadConnections
	}
	return *c.vals.Download.MaxConnections
}

// DownloadTimeout returns the total per-request timeout.
func (c *Instance) DownloadTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Download.TimeoutSeconds == nil || *c.vals.Download.TimeoutSeconds <= 0 {
		return DefaultDownloadTimeout
	}
	return time.Duration(*c.vals.Download.TimeoutSeconds) * time.Second
}

func (c *Instance) DownloadRetryAttempts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Download.RetryAttempts == nil || *c.vals.Download.RetryAttempts < 0 {
		return DefaultDownloadRetries
	}
	return *c.vals.Download.RetryAttempts
}
