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

package service

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/RomStashProject/romstash-core/pkg/catalog"
	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/tasks"
)

// ErrGameNotFound is returned by media tasks targeting a catalog path
// that does not exist.
var ErrGameNotFound = errors.New("game not found in catalog")

// Task payloads. Keys match what API clients put in tasks.submit data.
type scrapePayload struct {
	System         string   `json:"system"`
	Platform       string   `json:"platform"`
	SelectedPaths  []string `json:"selected_paths"`
	SelectedFields []string `json:"selected_fields"`
	OverwriteText  bool     `json:"overwrite_text_fields"`
	PartialReview  bool     `json:"partial_review"`
	DownloadMedia  bool     `json:"download_media"`
	ForceDownload  bool     `json:"force_download"`
}

type imageDownloadPayload struct {
	System      string   `json:"system"`
	DatabaseIDs []string `json:"database_ids"`
	Force       bool     `json:"force_download"`
}

type systemPayload struct {
	System string `json:"system"`
}

type youtubePayload struct {
	System   string  `json:"system"`
	GamePath string  `json:"game_path"`
	URL      string  `json:"url"`
	Start    float64 `json:"start_seconds"`
	Duration float64 `json:"duration_seconds"`
}

type cropPayload struct {
	System   string `json:"system"`
	GamePath string `json:"game_path"`
	Field    string `json:"field"`
	Geometry string `json:"geometry"`
}

type boxPayload struct {
	System   string `json:"system"`
	GamePath string `json:"game_path"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// registerHandlers binds every task kind to its handler.
func (c *Core) registerHandlers() {
	c.registry.Register(tasks.KindScraping, c.scrapingHandler)
	c.registry.Register(tasks.KindImageDownload, c.imageDownloadHandler)
	c.registry.Register(tasks.KindMediaScan, c.mediaScanHandler)
	c.registry.Register(tasks.KindRomScan, c.romScanHandler)
	c.registry.Register(tasks.KindYoutubeDownload, c.youtubeHandler)
	c.registry.Register(tasks.KindManualCrop, c.manualCropHandler)
	c.registry.Register(tasks.KindBoxGeneration, c.boxGenerationHandler)
}

// percent maps processed/total onto 0-100, saturating at 100.
func percent(processed, total int) int {
	if total <= 0 {
		return 0
	}
	pct := processed * 100 / total
	if pct > 100 {
		pct = 100
	}
	return pct
}

// mediaAbsPath resolves a catalog media reference ("./media/<cat>/<file>")
// against the system's ROM directory.
func mediaAbsPath(cfg *config.Instance, system, value string) string {
	rel := strings.TrimPrefix(value, "./")
	return filepath.Join(cfg.SystemRomsDir(system), filepath.FromSlash(rel))
}

// findGame locates a catalog entry by its ROM path.
func findGame(games []catalog.Game, path string) (*catalog.Game, error) {
	for i := range games {
		if games[i].Path == path {
			return &games[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrGameNotFound, path)
}

// taskLogWriter adapts a task run into an io.Writer so external tool
// stderr lands in the task log, line by line.
type taskLogWriter struct {
	run *tasks.Run
	buf bytes.Buffer
}

func (w *taskLogWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// partial line stays buffered for the next write
			w.buf.WriteString(line)
			break
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			w.run.Log(trimmed)
		}
	}
	return len(p), nil
}

// flush logs any trailing partial line.
func (w *taskLogWriter) flush() {
	if trimmed := strings.TrimSpace(w.buf.String()); trimmed != "" {
		w.run.Log(trimmed)
	}
	w.buf.Reset()
}
