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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/RomStashProject/romstash-core/pkg/api/notifications"
	"github.com/RomStashProject/romstash-core/pkg/catalog"
	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/downloader"
	"github.com/RomStashProject/romstash-core/pkg/helpers"
	"github.com/RomStashProject/romstash-core/pkg/providerdb"
	"github.com/RomStashProject/romstash-core/pkg/scraper"
	"github.com/RomStashProject/romstash-core/pkg/tasks"
	"github.com/rs/zerolog/log"
)

// scrapingHandler runs one catalog scrape through the worker and, on
// success, queues an image download follow-up for the matched games.
func (c *Core) scrapingHandler(run *tasks.Run) error {
	var p scrapePayload
	if err := run.DecodeData(&p); err != nil {
		return err
	}
	if p.System == "" {
		return errors.New("scraping task requires a system")
	}
	if p.Platform == "" {
		return errors.New("scraping task requires a corpus platform")
	}
	run.SetSystem(p.System)
	run.Log(fmt.Sprintf("scraping %s against platform %q", p.System, p.Platform))

	c.worker.Submit(scraper.Submission{
		TaskID:         run.TaskID(),
		System:         p.System,
		Platform:       p.Platform,
		Username:       run.Username(),
		SelectedPaths:  p.SelectedPaths,
		SelectedFields: p.SelectedFields,
		OverwriteText:  p.OverwriteText,
		PartialReview:  p.PartialReview,
		OnProgress: func(ev scraper.ProgressEvent) {
			pct := percent(ev.Processed, ev.Total)
			run.Progress(tasks.ProgressUpdate{
				Percentage:  &pct,
				CurrentStep: &ev.Processed,
				TotalSteps:  &ev.Total,
				Stats:       tasks.Stats(ev.Stats),
				Message:     ev.Message,
			})
		},
		OnPartial: func(pm scraper.PartialMatch) {
			c.recordPartialMatch(p.System, pm)
		},
	})

	// one outcome arrives per submission; the registry runs at most one
	// scraping task at a time so the next outcome is ours
	var out scraper.Outcome
	for out = range c.worker.Results() {
		if out.TaskID == run.TaskID() {
			break
		}
		log.Warn().Str("task_id", out.TaskID).Msg("discarding stale scrape outcome")
	}

	for k, v := range out.Stats {
		run.SetStat(k, v)
	}
	if out.BackupPath != "" {
		run.Log("catalog backup written: " + out.BackupPath)
	}

	notifications.SystemUpdated(c.ns, p.System, models.ActionGamelistUpdated,
		map[string]any{"task_id": run.TaskID()})

	if out.Err != nil {
		return out.Err
	}
	if out.Stopped {
		return tasks.ErrCancelled
	}

	if p.DownloadMedia && len(out.MatchedIDs) > 0 {
		data, err := json.Marshal(imageDownloadPayload{
			System:      p.System,
			DatabaseIDs: out.MatchedIDs,
			Force:       p.ForceDownload,
		})
		if err != nil {
			return fmt.Errorf("failed to encode image download payload: %w", err)
		}
		snap, err := c.registry.Submit(tasks.KindImageDownload, run.Username(), data)
		if err != nil {
			log.Error().Err(err).Msg("failed to queue image download follow-up")
		} else {
			run.Log("queued image download task " + snap.ID)
		}
	}

	run.RequestGridRefresh()
	return nil
}

// recordPartialMatch publishes a review request and persists it so it
// survives a restart until resolved through the API.
func (c *Core) recordPartialMatch(system string, pm scraper.PartialMatch) {
	candidates := make([]models.MatchCandidate, 0, len(pm.Candidates))
	byID := make(map[string]string, len(pm.Candidates))
	for _, cand := range pm.Candidates {
		candidates = append(candidates, models.MatchCandidate{
			DatabaseID: cand.Entry.DatabaseID,
			Name:       cand.Entry.Name,
			AltName:    cand.AltName,
			Source:     string(cand.Source),
			Score:      cand.Score,
		})
		byID[cand.Entry.DatabaseID] = cand.Entry.Name
	}

	notifications.PartialMatch(c.ns, models.PartialMatchParams{
		TaskID:     pm.TaskID,
		System:     system,
		GamePath:   pm.GamePath,
		GameName:   pm.GameName,
		Candidates: candidates,
	})

	if c.store == nil {
		return
	}
	err := c.store.PushReview(providerdb.ReviewItem{
		CreatedAt:  time.Now(),
		Candidates: byID,
		System:     system,
		GamePath:   pm.GamePath,
		GameName:   pm.GameName,
		TaskID:     pm.TaskID,
	})
	if err != nil {
		log.Error().Err(err).Str("game", pm.GamePath).Msg("failed to persist partial match")
	}
}

// imageDownloadHandler plans and downloads media for matched games, then
// writes the successful references back to the catalog.
func (c *Core) imageDownloadHandler(run *tasks.Run) error {
	var p imageDownloadPayload
	if err := run.DecodeData(&p); err != nil {
		return err
	}
	if p.System == "" {
		return errors.New("image download task requires a system")
	}
	run.SetSystem(p.System)

	if err := c.corpus.EnsureLoaded(); err != nil {
		return fmt.Errorf("failed to load metadata corpus: %w", err)
	}

	gamelistPath := helpers.GamelistPath(c.dataDir, p.System)
	games, err := catalog.ParseCatalog(gamelistPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	wanted := make(map[string]bool, len(p.DatabaseIDs))
	for _, id := range p.DatabaseIDs {
		wanted[id] = true
	}

	provider := config.DefaultProvider
	if c.store != nil {
		provider = c.store.Provider()
	}
	var plan []downloader.Task
	gameByID := make(map[string]*catalog.Game)
	for i := range games {
		game := &games[i]
		if game.LaunchboxID == "" {
			continue
		}
		if len(wanted) > 0 && !wanted[game.LaunchboxID] {
			continue
		}
		gameByID[game.LaunchboxID] = game
		plan = append(plan, downloader.BuildPlan(c.cfg, downloader.PlanInput{
			Game:     game,
			System:   p.System,
			Provider: provider,
			TaskID:   run.TaskID(),
			Images:   c.corpus.Images(game.LaunchboxID),
			Force:    p.Force,
		})...)
	}

	total := len(plan)
	run.SetStat("planned_downloads", total)
	if total == 0 {
		run.Log("nothing to download")
		return nil
	}
	run.Log(fmt.Sprintf("downloading %d media files", total))

	if err := downloader.EnsureDestDirs(plan); err != nil {
		return err
	}
	for _, t := range plan {
		if run.Cancelled() {
			return tasks.ErrCancelled
		}
		if err := c.pipeline.Enqueue(t); err != nil {
			return fmt.Errorf("failed to enqueue download: %w", err)
		}
	}

	downloaded, failed := 0, 0
	for i, res := range c.pipeline.WaitForCompletion(total) {
		done := i + 1
		pct := percent(done, total)
		switch {
		case res.Success():
			downloaded++
			if game, ok := gameByID[res.Task.GameID]; ok {
				game.SetField(res.Task.Field, downloader.CatalogValue(res.Task))
			}
			run.Progress(tasks.ProgressUpdate{
				Percentage:  &pct,
				CurrentStep: &done,
				TotalSteps:  &total,
				Stats:       tasks.Stats{"downloaded": downloaded, "failed": failed},
				Message:     fmt.Sprintf("downloaded %s for %s", res.Task.Field, res.Task.GameID),
			})
		default:
			failed++
			run.Progress(tasks.ProgressUpdate{
				Percentage:  &pct,
				CurrentStep: &done,
				TotalSteps:  &total,
				Stats:       tasks.Stats{"downloaded": downloaded, "failed": failed},
				Message:     fmt.Sprintf("failed %s for %s: %v", res.Task.Field, res.Task.GameID, res.Err),
			})
		}
	}

	if _, err := catalog.WriteCatalog(gamelistPath, games); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}

	notifications.SystemUpdated(c.ns, p.System, models.ActionGamelistUpdated,
		map[string]any{"downloaded": downloaded, "failed": failed})
	run.RequestGridRefresh()

	if run.Cancelled() {
		return tasks.ErrCancelled
	}
	return nil
}
