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

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RomStashProject/romstash-core/pkg/api"
	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/corpus"
	"github.com/RomStashProject/romstash-core/pkg/shared/httpclient"
	"github.com/RomStashProject/romstash-core/pkg/tasks"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*api.Server, api.Deps) {
	t.Helper()

	dir := t.TempDir()
	contents := fmt.Sprintf(
		"config_schema = %d\n[service]\napi_listen = \"127.0.0.1:0\"\n",
		config.SchemaVersion)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.CfgFile), []byte(contents), 0o600))

	cfg, err := config.NewConfig(dir, config.BaseDefaults)
	require.NoError(t, err)

	logsDir := filepath.Join(dir, config.TaskLogsDir)
	require.NoError(t, os.MkdirAll(logsDir, 0o750))

	ns := make(chan models.Notification, 16)
	reg := tasks.NewRegistry(logsDir, 100, clockwork.NewRealClock(), ns)

	deps := api.Deps{
		Config:        cfg,
		Registry:      reg,
		Corpus:        corpus.NewCache(filepath.Join(dir, config.CorpusFilename)),
		Client:        httpclient.NewClient(),
		Notifications: ns,
		DataDir:       dir,
	}

	srv, err := api.Start(deps)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, srv.Stop())
		reg.Close()
	})
	return srv, deps
}

func TestCallVersion(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t)

	result, err := Call(context.Background(), srv.Addr(), models.MethodVersion, "")
	require.NoError(t, err)

	var resp models.VersionResponse
	require.NoError(t, json.Unmarshal([]byte(result), &resp))
	assert.Equal(t, config.AppVersion, resp.Version)
}

func TestCallInvalidParamsJSON(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t)

	_, err := Call(context.Background(), srv.Addr(), models.MethodVersion, `{"broken":`)
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestCallServerError(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t)

	_, err := Call(context.Background(), srv.Addr(), "no.such.method", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Method not found")
}

func TestWaitNotification(t *testing.T) {
	t.Parallel()

	srv, deps := startServer(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// give the waiter time to connect before publishing
		time.Sleep(100 * time.Millisecond)
		deps.Notifications <- models.Notification{
			Method: models.NotificationTaskCompleted,
			Params: models.TaskCompletedParams{TaskID: "t1", Success: true},
		}
	}()

	params, err := WaitNotification(context.Background(), srv.Addr(),
		models.NotificationTaskCompleted, 5*time.Second)
	require.NoError(t, err)
	<-done

	var got models.TaskCompletedParams
	require.NoError(t, json.Unmarshal([]byte(params), &got))
	assert.Equal(t, "t1", got.TaskID)
	assert.True(t, got.Success)
}
