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

// Package downloader is the media download pipeline: a long-lived pooled
// HTTP client behind a bounded queue and a fixed worker pool. Batches are
// enqueued per game, drained concurrently, and collected with
// WaitForCompletion. The pipeline survives across tasks; Stop tears the
// client down and a fresh one is built on next use.
package downloader

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/helpers/syncutil"
	"github.com/RomStashProject/romstash-core/pkg/shared/httpclient"
	"github.com/rs/zerolog/log"
)

const (
	queueCapacity = 1024

	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 10 * time.Second

	// cancelPollInterval is how often an in-flight transfer checks the
	// owning task's cooperative cancel flag.
	cancelPollInterval = 100 * time.Millisecond
)

// ErrStopped is reported for items rejected or abandoned because the
// pipeline shut down.
var ErrStopped = errors.New("download pipeline stopped")

// Task is one in-flight download request. DestPath is absolute; its
// directory must exist before the task is enqueued.
type Task struct {
	URL      string
	DestPath string
	Field    string
	Category string
	Region   string
	GameID   string
	TaskID   string
}

// Result is the per-item outcome. Failed items carry their error; they
// never fail the owning task.
type Result struct {
	Err  error
	Task Task
}

// Success reports whether the file landed on disk.
func (r Result) Success() bool {
	return r.Err == nil
}

// CancelProbe exposes the orchestrator's cooperative cancel flags to the
// worker pool.
type CancelProbe interface {
	IsCancelled(taskID string) bool
}

// Pipeline drains download tasks with bounded concurrency. Zero value is
// not usable; construct with NewPipeline.
type Pipeline struct {
	cfg     *config.Instance
	cancels CancelProbe

	ctx     context.Context
	cancel  context.CancelFunc
	client  *httpclient.Client
	queue   chan Task
	results chan Result
	running bool
	wg      sync.WaitGroup
	mu      syncutil.Mutex
}

// NewPipeline creates an idle pipeline. Workers and the HTTP client are
// created lazily on first Enqueue.
func NewPipeline(cfg *config.Instance, cancels CancelProbe) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		cancels: cancels,
	}
}

// IsRunning reports whether the worker pool is active.
func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Enqueue submits one download. The first call after construction or Stop
// spins up a fresh client and worker pool. Blocks while the queue is full.
func (p *Pipeline) Enqueue(t Task) error {
	p.mu.Lock()
	if !p.running {
		p.start()
	}
	ctx := p.ctx
	queue := p.queue
	p.mu.Unlock()

	select {
	case queue <- t:
		return nil
	case <-ctx.Done():
		return ErrStopped
	}
}

// start brings up the client and worker pool. Caller holds the lock.
func (p *Pipeline) start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.client = httpclient.NewPooledClient(p.cfg)
	p.queue = make(chan Task, queueCapacity)
	p.results = make(chan Result, queueCapacity)
	p.running = true

	workers := p.cfg.DownloadMaxConnections()
	log.Debug().Int("workers", workers).Msg("starting download pipeline")
	for range workers {
		p.wg.Add(1)
		go p.worker(p.ctx, p.queue, p.results)
	}
}

func (p *Pipeline) worker(ctx context.Context, queue <-chan Task, results chan<- Result) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-queue:
			if !ok {
				return
			}
			// cancel flag checked before picking up work
			if p.cancelled(t.TaskID) {
				p.report(ctx, results, Result{Task: t, Err: context.Canceled})
				continue
			}
			err := p.fetch(ctx, t)
			if err != nil {
				log.Debug().Err(err).Str("url", t.URL).Msg("download failed")
			}
			p.report(ctx, results, Result{Task: t, Err: err})
		}
	}
}

// report delivers one result. The buffered send still lands after the
// pipeline context is cancelled so Stop returns accumulated outcomes.
func (p *Pipeline) report(ctx context.Context, results chan<- Result, r Result) {
	select {
	case results <- r:
		return
	default:
	}
	select {
	case results <- r:
	case <-ctx.Done():
	}
}

func (p *Pipeline) cancelled(taskID string) bool {
	return taskID != "" && p.cancels != nil && p.cancels.IsCancelled(taskID)
}

// fetch runs one transfer with retries. Backoff doubles per attempt and is
// capped; only transport errors, 429 and 5xx are retried.
func (p *Pipeline) fetch(ctx context.Context, t Task) error {
	itemCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if t.TaskID != "" && p.cancels != nil {
		stop := watchCancel(itemCtx, cancel, p.cancels, t.TaskID)
		defer stop()
	}

	attempts := p.cfg.DownloadRetryAttempts()
	backoff := baseBackoff
	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-itemCtx.Done():
				return itemCtx.Err() //nolint:wrapcheck // cancellation passes through unchanged
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := p.client.DownloadFile(itemCtx, httpclient.DownloadFileArgs{
			URL:        t.URL,
			OutputPath: t.DestPath,
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if !httpclient.IsRetryable(err) {
			return err
		}
		log.Debug().Err(err).
			Str("file", filepath.Base(t.DestPath)).
			Int("attempt", attempt+1).
			Msg("retrying download")
	}
	return lastErr
}

// watchCancel cancels the transfer context when the owning task's stop
// flag is raised, so DownloadFile aborts between chunk writes.
func watchCancel(ctx context.Context, cancel context.CancelFunc, probe CancelProbe, taskID string) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cancelPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if probe.IsCancelled(taskID) {
					cancel()
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

// WaitForCompletion blocks until expected results have arrived, or the
// pipeline stops, and returns them. Cancelled and failed items count.
func (p *Pipeline) WaitForCompletion(expected int) []Result {
	p.mu.Lock()
	results := p.results
	p.mu.Unlock()
	if results == nil {
		return nil
	}

	out := make([]Result, 0, expected)
	for len(out) < expected {
		r, ok := <-results
		if !ok {
			break
		}
		out = append(out, r)
	}
	return out
}

// Stop cancels in-flight transfers, reports queued items as abandoned,
// and closes the client's connections. The next Enqueue starts fresh.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	client := p.client
	queue := p.queue
	results := p.results
	p.client = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()

	// queued items the workers never reached
	drained := 0
drain:
	for {
		select {
		case t := <-queue:
			select {
			case results <- Result{Task: t, Err: ErrStopped}:
				drained++
			default:
			}
		default:
			break drain
		}
	}
	close(results)
	if drained > 0 {
		log.Debug().Int("abandoned", drained).Msg("download queue drained on stop")
	}

	if transport, ok := client.Transport.(*httpclient.AuthTransport); ok {
		if base, ok := transport.Base.(interface{ CloseIdleConnections() }); ok {
			base.CloseIdleConnections()
		}
	}
	log.Debug().Msg("download pipeline stopped")
}
