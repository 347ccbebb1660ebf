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
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/RomStashProject/romstash-core/pkg/api/notifications"
	"github.com/RomStashProject/romstash-core/pkg/catalog"
	"github.com/RomStashProject/romstash-core/pkg/helpers"
	"github.com/RomStashProject/romstash-core/pkg/mediascan"
	"github.com/RomStashProject/romstash-core/pkg/tasks"
)

// mediaScanHandler reconciles catalog media references with the files on
// disk for one system.
func (c *Core) mediaScanHandler(run *tasks.Run) error {
	var p systemPayload
	if err := run.DecodeData(&p); err != nil {
		return err
	}
	if p.System == "" {
		return errors.New("media scan task requires a system")
	}
	run.SetSystem(p.System)
	run.Log("reconciling media for " + p.System)

	result, total, err := mediascan.ReconcileSystem(c.cfg, c.dataDir, p.System)
	if err != nil {
		return fmt.Errorf("media reconcile failed: %w", err)
	}

	run.SetStat("total_games", total)
	run.SetStat("updated_games", result.UpdatedGames)
	run.SetStat("removed_media", result.RemovedMedia)
	run.Log(fmt.Sprintf("media scan finished: %d updated, %d stale references removed",
		result.UpdatedGames, result.RemovedMedia))

	notifications.SystemUpdated(c.ns, p.System, models.ActionGamelistUpdated,
		map[string]any{"updated_games": result.UpdatedGames, "removed_media": result.RemovedMedia})
	run.RequestGridRefresh()
	return nil
}

// romScanHandler syncs the catalog against the system's ROM directory,
// then reconciles media for whatever changed.
func (c *Core) romScanHandler(run *tasks.Run) error {
	var p systemPayload
	if err := run.DecodeData(&p); err != nil {
		return err
	}
	if p.System == "" {
		return errors.New("rom scan task requires a system")
	}
	run.SetSystem(p.System)
	run.Log("scanning ROM files for " + p.System)

	romResult, mediaResult, err := mediascan.RomScanSystem(c.cfg, c.dataDir, p.System)
	if err != nil {
		return fmt.Errorf("rom scan failed: %w", err)
	}

	run.SetStat("total_files", romResult.TotalFiles)
	run.SetStat("added_games", romResult.AddedGames)
	run.SetStat("removed_games", romResult.RemovedGames)
	run.SetStat("updated_games", mediaResult.UpdatedGames)
	run.SetStat("removed_media", mediaResult.RemovedMedia)
	run.Log(fmt.Sprintf("rom scan finished: %d files, %d added, %d removed",
		romResult.TotalFiles, romResult.AddedGames, romResult.RemovedGames))

	action := models.ActionGamelistUpdated
	if romResult.RemovedGames > 0 {
		action = models.ActionGamesDeleted
	}
	notifications.SystemUpdated(c.ns, p.System, action, map[string]any{
		"added_games":   romResult.AddedGames,
		"removed_games": romResult.RemovedGames,
	})
	run.RequestGridRefresh()
	return nil
}

// youtubeHandler downloads a video section for one game, transcodes it,
// and binds it to the catalog's video field.
func (c *Core) youtubeHandler(run *tasks.Run) error {
	var p youtubePayload
	if err := run.DecodeData(&p); err != nil {
		return err
	}
	if p.System == "" || p.GamePath == "" || p.URL == "" {
		return errors.New("youtube task requires system, game_path, and url")
	}
	run.SetSystem(p.System)

	gamelistPath := helpers.GamelistPath(c.dataDir, p.System)
	games, err := catalog.ParseCatalog(gamelistPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	game, err := findGame(games, p.GamePath)
	if err != nil {
		return err
	}

	stem := helpers.FilenameStem(game.Path)
	videoDir := filepath.Join(c.cfg.SystemMediaDir(p.System), "video")
	if err := os.MkdirAll(videoDir, 0o750); err != nil {
		return fmt.Errorf("failed to create video directory: %w", err)
	}
	rawPath := filepath.Join(videoDir, stem+".raw.mp4")
	outPath := filepath.Join(videoDir, stem+".mp4")

	stderr := &taskLogWriter{run: run}
	defer stderr.flush()

	run.Log(fmt.Sprintf("downloading %.0fs section starting at %.0fs", p.Duration, p.Start))
	ctx := context.Background()
	if err := c.tools.DownloadSection(ctx, stderr, p.URL, p.Start, p.Duration, rawPath); err != nil {
		return fmt.Errorf("video download failed: %w", err)
	}
	defer func() { _ = os.Remove(rawPath) }()

	if run.Cancelled() {
		return tasks.ErrCancelled
	}

	run.Log("transcoding video")
	if err := c.tools.Transcode(ctx, stderr, rawPath, outPath); err != nil {
		return fmt.Errorf("video transcode failed: %w", err)
	}

	game.SetField("video", "./media/video/"+stem+".mp4")
	if _, err := catalog.WriteCatalog(gamelistPath, games); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}

	run.SetStat("downloaded", 1)
	notifications.SystemUpdated(c.ns, p.System, models.ActionGameUpdated,
		map[string]any{"path": game.Path, "field": "video"})
	run.RequestGridRefresh()
	return nil
}

// manualCropHandler crops one of a game's media images in place. With no
// geometry given the image tool's trim detection picks the crop window.
func (c *Core) manualCropHandler(run *tasks.Run) error {
	var p cropPayload
	if err := run.DecodeData(&p); err != nil {
		return err
	}
	if p.System == "" || p.GamePath == "" {
		return errors.New("crop task requires system and game_path")
	}
	field := p.Field
	if field == "" {
		field = "boxart"
	}
	run.SetSystem(p.System)

	games, err := catalog.ParseCatalog(helpers.GamelistPath(c.dataDir, p.System))
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	game, err := findGame(games, p.GamePath)
	if err != nil {
		return err
	}
	value, _ := game.Field(field)
	if value == "" {
		return fmt.Errorf("game %s has no %s media to crop", p.GamePath, field)
	}
	imagePath := mediaAbsPath(c.cfg, p.System, value)

	stderr := &taskLogWriter{run: run}
	defer stderr.flush()
	ctx := context.Background()

	geometry := p.Geometry
	if geometry == "" {
		run.Log("detecting crop window")
		geometry, err = c.tools.DetectCrop(ctx, imagePath)
		if err != nil {
			return fmt.Errorf("crop detection failed: %w", err)
		}
	}

	run.Log(fmt.Sprintf("cropping %s to %s", field, geometry))
	if err := c.tools.CropImage(ctx, stderr, imagePath, geometry, imagePath); err != nil {
		return fmt.Errorf("crop failed: %w", err)
	}

	run.SetStat("cropped", 1)
	notifications.SystemUpdated(c.ns, p.System, models.ActionGameUpdated,
		map[string]any{"path": game.Path, "field": field})
	return nil
}

// boxGenerationHandler composes a 2D box render from the game's front
// boxart and binds it to the extra1 field.
func (c *Core) boxGenerationHandler(run *tasks.Run) error {
	var p boxPayload
	if err := run.DecodeData(&p); err != nil {
		return err
	}
	if p.System == "" || p.GamePath == "" {
		return errors.New("box generation task requires system and game_path")
	}
	run.SetSystem(p.System)

	gamelistPath := helpers.GamelistPath(c.dataDir, p.System)
	games, err := catalog.ParseCatalog(gamelistPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	game, err := findGame(games, p.GamePath)
	if err != nil {
		return err
	}
	if game.Boxart == "" {
		return fmt.Errorf("game %s has no boxart to compose from", p.GamePath)
	}
	frontPath := mediaAbsPath(c.cfg, p.System, game.Boxart)

	stem := helpers.FilenameStem(game.Path)
	boxDir := filepath.Join(c.cfg.SystemMediaDir(p.System), "box2d")
	if err := os.MkdirAll(boxDir, 0o750); err != nil {
		return fmt.Errorf("failed to create box directory: %w", err)
	}
	outPath := filepath.Join(boxDir, stem+".png")

	stderr := &taskLogWriter{run: run}
	defer stderr.flush()

	run.Log("composing 2D box")
	if err := c.tools.Compose2DBox(context.Background(), stderr, frontPath, p.Width, p.Height, outPath); err != nil {
		return fmt.Errorf("box composition failed: %w", err)
	}

	game.SetField("extra1", "./media/box2d/"+stem+".png")
	if _, err := catalog.WriteCatalog(gamelistPath, games); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}

	run.SetStat("generated", 1)
	notifications.SystemUpdated(c.ns, p.System, models.ActionGameUpdated,
		map[string]any{"path": game.Path, "field": "extra1"})
	run.RequestGridRefresh()
	return nil
}
