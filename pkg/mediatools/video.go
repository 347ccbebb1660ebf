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

package mediatools

import (
	"context"
	"fmt"
	"io"
	"strconv"
)

// ExtractFrame grabs a single frame at the given offset into an image
// file. Tool stderr is streamed to the given writer, usually a task log.
func (m *Manager) ExtractFrame(ctx context.Context, stderr io.Writer, videoPath string, atSeconds float64, outPath string) error {
	tool, err := m.videoTool(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.FrameTimeout())
	defer cancel()

	err = m.exec.RunCapture(ctx, stderr, tool,
		"-ss", strconv.FormatFloat(atSeconds, 'f', 2, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y", outPath,
	)
	if err != nil {
		return fmt.Errorf("frame extraction failed: %w", err)
	}
	return nil
}

// DownloadSection fetches a clip of the given length from a remote video
// source without re-encoding.
func (m *Manager) DownloadSection(ctx context.Context, stderr io.Writer, sourceURL string, startSeconds, durationSeconds float64, outPath string) error {
	tool, err := m.videoTool(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.TranscodeTimeout())
	defer cancel()

	err = m.exec.RunCapture(ctx, stderr, tool,
		"-ss", strconv.FormatFloat(startSeconds, 'f', 2, 64),
		"-i", sourceURL,
		"-t", strconv.FormatFloat(durationSeconds, 'f', 2, 64),
		"-c", "copy",
		"-y", outPath,
	)
	if err != nil {
		return fmt.Errorf("section download failed: %w", err)
	}
	return nil
}

// Transcode re-encodes a clip into the front-end friendly H.264/AAC MP4
// form.
func (m *Manager) Transcode(ctx context.Context, stderr io.Writer, inPath, outPath string) error {
	tool, err := m.videoTool(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.TranscodeTimeout())
	defer cancel()

	err = m.exec.RunCapture(ctx, stderr, tool,
		"-i", inPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-y", outPath,
	)
	if err != nil {
		return fmt.Errorf("transcode failed: %w", err)
	}
	return nil
}
