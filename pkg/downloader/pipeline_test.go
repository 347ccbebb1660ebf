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

package downloader

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RomStashProject/romstash-core/pkg/shared/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

type fakeProbe struct {
	cancelled sync.Map
}

func (f *fakeProbe) IsCancelled(taskID string) bool {
	_, ok := f.cancelled.Load(taskID)
	return ok
}

func (f *fakeProbe) cancel(taskID string) {
	f.cancelled.Store(taskID, true)
}

func TestPipelineDownloadsFiles(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, "payload for %s", r.URL.Path)
	}))
	defer srv.Close()

	cfg := newTestConfig(t, "")
	dest := t.TempDir()
	p := NewPipeline(cfg, &fakeProbe{})
	defer p.Stop()

	const count = 3
	for i := range count {
		err := p.Enqueue(Task{
			URL:      fmt.Sprintf("%s/file-%d.png", srv.URL, i),
			DestPath: filepath.Join(dest, fmt.Sprintf("file-%d.png", i)),
			Field:    "boxart",
		})
		require.NoError(t, err)
	}
	assert.True(t, p.IsRunning())

	results := p.WaitForCompletion(count)
	require.Len(t, results, count)
	for _, r := range results {
		require.NoError(t, r.Err)
		content, err := os.ReadFile(r.Task.DestPath)
		require.NoError(t, err)
		assert.Contains(t, string(content), "payload for")
	}

	p.Stop()
	assert.False(t, p.IsRunning())
}

func TestPipelineRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("second attempt wins"))
	}))
	defer srv.Close()

	cfg := newTestConfig(t, "")
	p := NewPipeline(cfg, &fakeProbe{})
	defer p.Stop()

	destPath := filepath.Join(t.TempDir(), "retry.png")
	require.NoError(t, p.Enqueue(Task{URL: srv.URL + "/retry.png", DestPath: destPath}))

	results := p.WaitForCompletion(1)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, int32(2), hits.Load())

	content, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, "second attempt wins", string(content))
}

func TestPipelineDoesNotRetryTerminalStatus(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := newTestConfig(t, "")
	p := NewPipeline(cfg, &fakeProbe{})
	defer p.Stop()

	destPath := filepath.Join(t.TempDir(), "missing.png")
	require.NoError(t, p.Enqueue(Task{URL: srv.URL + "/missing.png", DestPath: destPath}))

	results := p.WaitForCompletion(1)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)

	var statusErr *httpclient.StatusError
	require.ErrorAs(t, results[0].Err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, int32(1), hits.Load(), "4xx is terminal, no retries")
	assert.NoFileExists(t, destPath)
}

func TestPipelineFailedItemsDoNotPoisonBatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.png" {
			w.WriteHeader(http.StatusGone)
			return
		}
		_, _ = w.Write([]byte("fine"))
	}))
	defer srv.Close()

	cfg := newTestConfig(t, "")
	dest := t.TempDir()
	p := NewPipeline(cfg, &fakeProbe{})
	defer p.Stop()

	require.NoError(t, p.Enqueue(Task{URL: srv.URL + "/bad.png", DestPath: filepath.Join(dest, "bad.png")}))
	require.NoError(t, p.Enqueue(Task{URL: srv.URL + "/good.png", DestPath: filepath.Join(dest, "good.png")}))

	results := p.WaitForCompletion(2)
	require.Len(t, results, 2)

	succeeded := 0
	for _, r := range results {
		if r.Success() {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.FileExists(t, filepath.Join(dest, "good.png"))
}

func TestPipelineCancellationAbortsTransferAndDeletesPartial(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	var startOnce sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1048576")
		w.WriteHeader(http.StatusOK)
		flusher, ok := w.(http.Flusher)
		if !ok {
			return
		}

		chunk := make([]byte, 4096)
		for {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			flusher.Flush()
			startOnce.Do(func() { close(started) })
			select {
			case <-r.Context().Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
		}
	}))
	defer srv.Close()

	cfg := newTestConfig(t, "")
	probe := &fakeProbe{}
	p := NewPipeline(cfg, probe)
	defer p.Stop()

	destPath := filepath.Join(t.TempDir(), "slow.png")
	require.NoError(t, p.Enqueue(Task{
		URL:      srv.URL + "/slow.png",
		DestPath: destPath,
		TaskID:   "task-cancel",
	}))

	<-started
	probe.cancel("task-cancel")

	results := p.WaitForCompletion(1)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.NoFileExists(t, destPath, "partial download removed on cancel")
}

func TestPipelineCancelledTaskSkipsQueuedItems(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	cfg := newTestConfig(t, "")
	probe := &fakeProbe{}
	probe.cancel("already-stopped")
	p := NewPipeline(cfg, probe)
	defer p.Stop()

	dest := t.TempDir()
	for i := range 5 {
		require.NoError(t, p.Enqueue(Task{
			URL:      fmt.Sprintf("%s/f%d.png", srv.URL, i),
			DestPath: filepath.Join(dest, fmt.Sprintf("f%d.png", i)),
			TaskID:   "already-stopped",
		}))
	}

	results := p.WaitForCompletion(5)
	require.Len(t, results, 5)
	for _, r := range results {
		require.Error(t, r.Err)
	}
	assert.Equal(t, int32(0), hits.Load(), "cancel flag checked before any request")
}

func TestPipelineRestartsAfterStop(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	cfg := newTestConfig(t, "")
	dest := t.TempDir()
	p := NewPipeline(cfg, &fakeProbe{})

	require.NoError(t, p.Enqueue(Task{URL: srv.URL + "/a.png", DestPath: filepath.Join(dest, "a.png")}))
	require.Len(t, p.WaitForCompletion(1), 1)
	p.Stop()
	require.False(t, p.IsRunning())

	// a fresh client and worker pool come up on the next use
	require.NoError(t, p.Enqueue(Task{URL: srv.URL + "/b.png", DestPath: filepath.Join(dest, "b.png")}))
	require.True(t, p.IsRunning())
	results := p.WaitForCompletion(1)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	p.Stop()
}

func TestPipelineStopAbortsInFlightTransfers(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t, "")
	p := NewPipeline(cfg, &fakeProbe{})
	p.Stop() // no-op while idle
	assert.False(t, p.IsRunning())

	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	require.NoError(t, p.Enqueue(Task{URL: srv.URL + "/hang.png", DestPath: filepath.Join(t.TempDir(), "hang.png")}))
	require.True(t, p.IsRunning())
	p.Stop()

	results := p.WaitForCompletion(1)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
}
