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

package scraper

import (
	"fmt"

	"github.com/RomStashProject/romstash-core/pkg/catalog"
	"github.com/RomStashProject/romstash-core/pkg/corpus"
	"github.com/RomStashProject/romstash-core/pkg/helpers"
	"github.com/RomStashProject/romstash-core/pkg/helpers/syncutil"
	"github.com/RomStashProject/romstash-core/pkg/match"
	"github.com/rs/zerolog/log"
)

const taskQueueSize = 8

// Stat keys reported in scrape outcomes.
const (
	StatTotalGames     = "total_games"
	StatProcessedGames = "processed_games"
	StatMatchedGames   = "matched_games"
	StatUpdatedGames   = "updated_games"
	StatNoMatches      = "no_matches"
	StatPartialMatches = "partial_matches"
	StatSkippedGames   = "skipped_games"
)

// CancelProbe exposes the orchestrator's cooperative cancel flags.
type CancelProbe interface {
	IsCancelled(taskID string) bool
}

// ProgressEvent is one per-game progress report.
type ProgressEvent struct {
	Stats     map[string]int
	TaskID    string
	Message   string
	Processed int
	Total     int
}

// PartialMatch is a fuzzy hit emitted for user review. The game is
// counted as no-match until a candidate is applied through the API.
type PartialMatch struct {
	TaskID     string
	GamePath   string
	GameName   string
	Candidates []match.Candidate
}

// Submission is one scrape job. System names the catalog directory,
// Platform the corpus tag to build the view from.
type Submission struct {
	OnProgress     func(ProgressEvent)
	OnPartial      func(PartialMatch)
	TaskID         string
	System         string
	Platform       string
	Username       string
	SelectedPaths  []string
	SelectedFields []string
	OverwriteText  bool
	PartialReview  bool
}

// Outcome is the final result of one submission. Stopped outcomes carry
// partial stats; the catalog was still flushed with a backup.
type Outcome struct {
	Err        error
	Stats      map[string]int
	TaskID     string
	System     string
	BackupPath string
	MatchedIDs []string
	Stopped    bool
}

// Success reports a complete run without a fatal error.
func (o Outcome) Success() bool {
	return o.Err == nil && !o.Stopped
}

// Worker consumes scrape submissions on its own goroutine, started
// lazily on the first Submit. It shares no corpus state with the rest of
// the process: each submission parses the platform view straight from
// the corpus file.
type Worker struct {
	cancels    CancelProbe
	tasks      chan Submission
	results    chan Outcome
	corpusPath string
	dataDir    string
	running    bool
	mu         syncutil.Mutex
}

// NewWorker creates an idle worker. The loop goroutine starts on first
// Submit.
func NewWorker(corpusPath, dataDir string, cancels CancelProbe) *Worker {
	return &Worker{
		corpusPath: corpusPath,
		dataDir:    dataDir,
		cancels:    cancels,
		tasks:      make(chan Submission, taskQueueSize),
		results:    make(chan Outcome, taskQueueSize),
	}
}

// Results returns the outcome queue. One Outcome arrives per Submit.
func (w *Worker) Results() <-chan Outcome {
	return w.results
}

// Submit queues one scrape job, starting the worker loop if needed.
func (w *Worker) Submit(sub Submission) {
	w.mu.Lock()
	if !w.running {
		w.running = true
		go w.loop()
		log.Debug().Msg("scraping worker started")
	}
	w.mu.Unlock()
	w.tasks <- sub
}

// Stop ends the loop after queued submissions drain.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.tasks)
}

func (w *Worker) loop() {
	for sub := range w.tasks {
		w.results <- w.process(sub)
	}
}

func (w *Worker) cancelled(taskID string) bool {
	return w.cancels != nil && w.cancels.IsCancelled(taskID)
}

//nolint:gocognit,funlen // the scrape loop reads best as one pass
func (w *Worker) process(sub Submission) Outcome {
	out := Outcome{
		TaskID: sub.TaskID,
		System: sub.System,
		Stats:  make(map[string]int),
	}

	view, err := corpus.LoadPlatformView(w.corpusPath, sub.Platform)
	if err != nil {
		out.Err = fmt.Errorf("failed to load platform view: %w", err)
		return out
	}
	engine := match.NewEngine(view)

	gamelistPath := helpers.GamelistPath(w.dataDir, sub.System)
	games, err := catalog.ParseCatalog(gamelistPath)
	if err != nil {
		out.Err = fmt.Errorf("failed to load catalog: %w", err)
		return out
	}

	selected := make(map[string]bool, len(sub.SelectedPaths))
	for _, p := range sub.SelectedPaths {
		selected[p] = true
	}
	// skipped games still count toward processed so
	// matched + partial + no-match + skipped partitions the whole catalog
	out.Stats[StatTotalGames] = len(games)

	opts := ApplyOptions{
		SelectedFields: sub.SelectedFields,
		OverwriteText:  sub.OverwriteText,
	}

	for i := range games {
		game := &games[i]
		if len(selected) > 0 && !selected[game.Path] {
			out.Stats[StatProcessedGames]++
			out.Stats[StatSkippedGames]++
			continue
		}

		// cancel map checked before each game
		if w.cancelled(sub.TaskID) {
			out.Stopped = true
			w.progress(sub, out.Stats, "stopped by user")
			break
		}

		query := match.Query{
			Name:       game.Name,
			ExistingID: game.LaunchboxID,
			Developer:  game.Developer,
			Publisher:  game.Publisher,
		}
		res, ok := engine.Match(query)

		out.Stats[StatProcessedGames]++
		switch {
		case ok && res.Score >= 1.0:
			out.Stats[StatMatchedGames]++
			if ApplyEntry(game, res, opts) {
				out.Stats[StatUpdatedGames]++
			}
			out.MatchedIDs = append(out.MatchedIDs, res.Entry.DatabaseID)
			w.progress(sub, out.Stats,
				fmt.Sprintf("matched %s (%s)", game.Name, res.Source))
		case ok:
			// fuzzy hits need user review; the game stays unmatched
			if sub.PartialReview {
				out.Stats[StatPartialMatches]++
				if sub.OnPartial != nil {
					sub.OnPartial(PartialMatch{
						TaskID:     sub.TaskID,
						GamePath:   game.Path,
						GameName:   game.Name,
						Candidates: engine.Candidates(query, match.DefaultCandidateLimit),
					})
				}
			} else {
				out.Stats[StatNoMatches]++
			}
			w.progress(sub, out.Stats, fmt.Sprintf("partial match for %s", game.Name))
		default:
			out.Stats[StatNoMatches]++
			w.progress(sub, out.Stats, fmt.Sprintf("no match for %s", game.Name))
		}
	}

	// flushed even on stop so partial matches survive
	writeRes, err := catalog.WriteCatalog(gamelistPath, games)
	if err != nil {
		out.Err = fmt.Errorf("failed to write catalog: %w", err)
		return out
	}
	out.BackupPath = writeRes.BackupPath

	log.Info().
		Str("system", sub.System).
		Bool("stopped", out.Stopped).
		Int("matched", out.Stats[StatMatchedGames]).
		Int("updated", out.Stats[StatUpdatedGames]).
		Int("processed", out.Stats[StatProcessedGames]).
		Msg("scrape finished")
	return out
}

func (w *Worker) progress(sub Submission, stats map[string]int, msg string) {
	if sub.OnProgress == nil {
		return
	}
	snapshot := make(map[string]int, len(stats))
	for k, v := range stats {
		snapshot[k] = v
	}
	sub.OnProgress(ProgressEvent{
		TaskID:    sub.TaskID,
		Message:   msg,
		Processed: stats[StatProcessedGames],
		Total:     stats[StatTotalGames],
		Stats:     snapshot,
	})
}
