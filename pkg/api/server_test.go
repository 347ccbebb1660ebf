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

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/corpus"
	"github.com/RomStashProject/romstash-core/pkg/shared/httpclient"
	"github.com/RomStashProject/romstash-core/pkg/tasks"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, Deps) {
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
	reg.Register(tasks.KindMediaScan, func(_ *tasks.Run) error { return nil })

	deps := Deps{
		Config:        cfg,
		Registry:      reg,
		Corpus:        corpus.NewCache(filepath.Join(dir, config.CorpusFilename)),
		Client:        httpclient.NewClient(),
		Notifications: ns,
		DataDir:       dir,
	}

	srv, err := Start(deps)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, srv.Stop())
		reg.Close()
	})
	return srv, deps
}

func dialWS(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api", nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// rpc sends one request and reads frames until the matching response.
func rpc(t *testing.T, conn *websocket.Conn, method, params string) models.ResponseObject {
	t.Helper()

	id := uuid.New()
	req := models.RequestObject{JSONRPC: "2.0", ID: &id, Method: method}
	if params != "" {
		req.Params = []byte(params)
	}
	require.NoError(t, conn.WriteJSON(req))
	return readResponse(t, conn, id)
}

func readResponse(t *testing.T, conn *websocket.Conn, id uuid.UUID) models.ResponseObject {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var resp models.ResponseObject
		if json.Unmarshal(msg, &resp) != nil {
			continue
		}
		if resp.JSONRPC == "2.0" && resp.ID == id {
			return resp
		}
	}
}

func readNotification(t *testing.T, conn *websocket.Conn, method string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var m models.RequestObject
		if json.Unmarshal(msg, &m) != nil {
			continue
		}
		if m.JSONRPC == "2.0" && m.ID == nil && m.Method == method {
			return m.Params
		}
	}
}

func resultMap(t *testing.T, resp models.ResponseObject) map[string]any {
	t.Helper()
	require.Nil(t, resp.Error)
	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestPingPongHeartbeat(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	conn := dialWS(t, srv.Addr())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(msg))
}

func TestVersionMethod(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	conn := dialWS(t, srv.Addr())

	result := resultMap(t, rpc(t, conn, models.MethodVersion, ""))
	assert.Equal(t, config.AppVersion, result["version"])
	assert.NotEmpty(t, result["platform"])
}

func TestUnknownMethod(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	conn := dialWS(t, srv.Addr())

	resp := rpc(t, conn, "no.such.method", "")
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}

func TestInvalidJSONReturnsParseError(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	conn := dialWS(t, srv.Addr())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":`)))
	resp := readResponse(t, conn, uuid.Nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32700, resp.Error.Code)
}

func TestSubmitUnknownTaskKindReturnsInvalidParams(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	conn := dialWS(t, srv.Addr())

	resp := rpc(t, conn, models.MethodTasksSubmit,
		`{"type":"defrag","username":"alice"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)
}

func TestSubmitAndGetTask(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	conn := dialWS(t, srv.Addr())

	result := resultMap(t, rpc(t, conn, models.MethodTasksSubmit,
		`{"type":"media_scan","username":"alice","data":{"system":"snes"}}`))
	taskID, ok := result["id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, taskID)

	// the no-op handler completes quickly
	require.Eventually(t, func() bool {
		got := resultMap(t, rpc(t, conn, models.MethodTasksGet,
			fmt.Sprintf(`{"id":%q}`, taskID)))
		return got["status"] == string(tasks.StatusCompleted)
	}, 5*time.Second, 50*time.Millisecond)

	listResp := rpc(t, conn, models.MethodTasksList, "")
	require.Nil(t, listResp.Error)
	data, err := json.Marshal(listResp.Result)
	require.NoError(t, err)
	var snaps []tasks.Snapshot
	require.NoError(t, json.Unmarshal(data, &snaps))
	require.NotEmpty(t, snaps)
	assert.Equal(t, taskID, snaps[0].ID)
}

func TestRoomScopedNotifications(t *testing.T) {
	t.Parallel()

	srv, deps := newTestServer(t)
	member := dialWS(t, srv.Addr())
	outsider := dialWS(t, srv.Addr())

	resp := rpc(t, member, models.MethodRoomsJoin, `{"system":"snes"}`)
	require.Nil(t, resp.Error)

	deps.Notifications <- models.Notification{
		Method: models.NotificationSystemUpdated,
		System: "snes",
		Params: models.SystemUpdatedParams{System: "snes", Action: models.ActionGamelistUpdated},
	}

	params := readNotification(t, member, models.NotificationSystemUpdated)
	var got models.SystemUpdatedParams
	require.NoError(t, json.Unmarshal(params, &got))
	assert.Equal(t, "snes", got.System)
	assert.Equal(t, models.ActionGamelistUpdated, got.Action)

	// the outsider is in no room and must see nothing
	require.NoError(t, outsider.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := outsider.ReadMessage()
	require.Error(t, err)
}

func TestUnscopedNotificationsBroadcast(t *testing.T) {
	t.Parallel()

	srv, deps := newTestServer(t)
	first := dialWS(t, srv.Addr())
	second := dialWS(t, srv.Addr())

	deps.Notifications <- models.Notification{
		Method: models.NotificationTaskProgress,
		Params: models.TaskProgressParams{TaskID: "t1", Message: "working"},
	}

	for _, conn := range []*websocket.Conn{first, second} {
		params := readNotification(t, conn, models.NotificationTaskProgress)
		var got models.TaskProgressParams
		require.NoError(t, json.Unmarshal(params, &got))
		assert.Equal(t, "t1", got.TaskID)
	}
}

func TestPostFallback(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	id := uuid.New()
	body, err := json.Marshal(models.RequestObject{
		JSONRPC: "2.0",
		ID:      &id,
		Method:  models.MethodVersion,
	})
	require.NoError(t, err)

	httpResp, err := http.Post("http://"+srv.Addr()+"/api", "application/json",
		bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = httpResp.Body.Close() }()
	require.Equal(t, http.StatusOK, httpResp.StatusCode)

	var resp models.ResponseObject
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&resp))
	require.Nil(t, resp.Error)
	assert.Equal(t, id, resp.ID)
}

func TestPostFallbackRejectsSessionMethods(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	id := uuid.New()
	body, err := json.Marshal(models.RequestObject{
		JSONRPC: "2.0",
		ID:      &id,
		Method:  models.MethodRoomsJoin,
		Params:  []byte(`{"system":"snes"}`),
	})
	require.NoError(t, err)

	httpResp, err := http.Post("http://"+srv.Addr()+"/api", "application/json",
		bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = httpResp.Body.Close() }()

	var resp models.ResponseObject
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "websocket")
}
