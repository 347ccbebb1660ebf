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
	DefaultVideoTool        = "ffmpeg"
	DefaultImageTool        = "magick"
	DefaultFrameTimeout     = 30 * time.Second
	DefaultTranscodeTimeout = 300 * time.Second
	DefaultComposeTimeout   = 60 * time.Second
)

type Tools struct {
	Dir                     string `toml:"dir,omitempty"`
	VideoTool               string `toml:"video_tool,omitempty"`
	ImageTool               string `toml:"image_tool,omitempty"`
	VideoToolURL            string `toml:"video_tool_url,omitempty"`
	ImageToolURL            string `toml:"image_tool_url,omitempty"`
	FrameTimeoutSeconds     *int   `toml:"frame_timeout_seconds,omitempty"`
	TranscodeTimeoutSeconds *int   `toml:"transcode_timeout_seconds,omitempty"`
	ComposeTimeoutSeconds   *int   `toml:"compose_timeout_seconds,omitempty"`
}

// ToolsPath returns the directory searched for external tool binaries
// before falling back to PATH. Defaults to tools/ under the process root.
func (c *Instance) ToolsPath(appRoot string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Tools.Dir != "" {
		return c.vals.Tools.Dir
	}
	return appRoot + "/" + ToolsDir
}

func (c *Instance) VideoTool() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Tools.VideoTool == "" {
		return DefaultVideoTool
	}
	return c.vals.Tools.VideoTool
}

func (c *Instance) ImageTool() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Tools.ImageTool == "" {
		return DefaultImageTool
	}
	return c.vals.Tools.ImageTool
}

func (c *Instance) VideoToolURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Tools.VideoToolURL
}

func (c *Instance) ImageToolURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Tools.ImageToolURL
}

func (c *Instance) FrameTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Tools.FrameTimeoutSeconds == nil || *c.vals.Tools.FrameTimeoutSeconds <= 0 {
		return DefaultFrameTimeout
	}
	return time.Duration(*c.vals.Tools.FrameTimeoutSeconds) * time.Second
}

func (c *Instance) TranscodeTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Tools.TranscodeTimeoutSeconds == nil || *c.vals.Tools.TranscodeTimeoutSeconds <= 0 {
		return DefaultTranscodeTimeout
	}
	return time.Duration(*c.vals.Tools.TranscodeTimeoutSeconds) * time.Second
}

func (c *Instance) ComposeTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Tools.ComposeTimeoutSeconds == nil || *c.vals.Tools.ComposeTimeoutSeconds <= 0 {
		return DefaultComposeTimeout
	}
	return time.Duration(*c.vals.Tools.ComposeTimeoutSeconds) * time.Second
}
