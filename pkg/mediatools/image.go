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
	"strings"
)

// DetectCrop returns the trim geometry the image tool suggests for an
// image, e.g. "640x480+10+20".
func (m *Manager) DetectCrop(ctx context.Context, imagePath string) (string, error) {
	tool, err := m.imageTool(ctx)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ComposeTimeout())
	defer cancel()

	out, err := m.exec.Output(ctx, tool, imagePath, "-format", "%@", "info:")
	if err != nil {
		return "", fmt.Errorf("crop detection failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// CropImage cuts an image to the given geometry and resets the canvas.
func (m *Manager) CropImage(ctx context.Context, stderr io.Writer, inPath, geometry, outPath string) error {
	tool, err := m.imageTool(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ComposeTimeout())
	defer cancel()

	err = m.exec.RunCapture(ctx, stderr, tool,
		inPath,
		"-crop", geometry,
		"+repage",
		outPath,
	)
	if err != nil {
		return fmt.Errorf("crop failed: %w", err)
	}
	return nil
}

// Compose2DBox renders a flat 2D box image at the given size from a
// front scan: trimmed, resized to fit and centered on a transparent
// canvas.
func (m *Manager) Compose2DBox(ctx context.Context, stderr io.Writer, frontPath string, width, height int, outPath string) error {
	tool, err := m.imageTool(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ComposeTimeout())
	defer cancel()

	size := fmt.Sprintf("%dx%d", width, height)
	err = m.exec.RunCapture(ctx, stderr, tool,
		frontPath,
		"-trim",
		"-resize", size,
		"-background", "none",
		"-gravity", "center",
		"-extent", size,
		outPath,
	)
	if err != nil {
		return fmt.Errorf("2d box composition failed: %w", err)
	}
	return nil
}
