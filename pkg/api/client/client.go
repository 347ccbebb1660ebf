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

// Package client is a small gorilla/websocket JSON-RPC client for the
// API, used by the CLI and by tests.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrRequestTimeout   = errors.New("request timed out")
	ErrInvalidParams    = errors.New("invalid params")
	ErrRequestCancelled = errors.New("request cancelled")
)

const APIPath = "/api"

// LocalClient sends a single method with params to the local running API
// service, waits for a response until timeout then disconnects.
func LocalClient(ctx context.Context, cfg *config.Instance, method, params string) (string, error) {
	host := "localhost:" + strconv.Itoa(cfg.APIPort())
	return Call(ctx, host, method, params)
}

// Call sends a single method with params to the service at host and
// returns the marshalled result.
func Call(ctx context.Context, host, method, params string) (string, error) {
	wsURL := url.URL{
		Scheme: "ws",
		Host:   host,
		Path:   APIPath,
	}

	id := uuid.New()
	req := models.RequestObject{
		JSONRPC: "2.0",
		ID:      &id,
		Method:  method,
	}

	switch {
	case len(params) == 0:
		req.Params = nil
	case json.Valid([]byte(params)):
		req.Params = []byte(params)
	default:
		return "", ErrInvalidParams
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return "", errors.Join(errors.New("failed to dial api"), err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer closeConn(conn)

	done := make(chan struct{})
	var response *models.ResponseObject

	go func() {
		defer close(done)
		for {
			_, message, readErr := conn.ReadMessage()
			if readErr != nil {
				return
			}

			var m models.ResponseObject
			if unmarshalErr := json.Unmarshal(message, &m); unmarshalErr != nil {
				continue
			}
			if m.JSONRPC != "2.0" || m.ID != id {
				continue
			}

			response = &m
			return
		}
	}()

	if err := conn.WriteJSON(req); err != nil {
		return "", errors.Join(errors.New("failed to send request"), err)
	}

	timer := time.NewTimer(config.ApiRequestTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		closeConn(conn)
		return "", ErrRequestTimeout
	case <-ctx.Done():
		closeConn(conn)
		return "", ErrRequestCancelled
	}

	if response == nil {
		return "", ErrRequestTimeout
	}
	if response.Error != nil {
		return "", errors.New(response.Error.Message)
	}

	result, err := json.Marshal(response.Result)
	if err != nil {
		return "", errors.Join(errors.New("failed to marshal result"), err)
	}
	return string(result), nil
}

// WaitNotification connects to the service at host and blocks until a
// notification with the given method arrives, returning its params.
// timeout 0 uses the default request timeout; negative waits forever.
func WaitNotification(ctx context.Context, host, method string, timeout time.Duration) (string, error) {
	wsURL := url.URL{
		Scheme: "ws",
		Host:   host,
		Path:   APIPath,
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return "", errors.Join(errors.New("failed to dial api"), err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer closeConn(conn)

	done := make(chan struct{})
	var notif *models.RequestObject

	go func() {
		defer close(done)
		for {
			_, message, readErr := conn.ReadMessage()
			if readErr != nil {
				return
			}

			var m models.RequestObject
			if unmarshalErr := json.Unmarshal(message, &m); unmarshalErr != nil {
				continue
			}
			// notifications have no id
			if m.JSONRPC != "2.0" || m.ID != nil || m.Method != method {
				continue
			}

			notif = &m
			return
		}
	}()

	var timerChan <-chan time.Time
	if timeout == 0 {
		timeout = config.ApiRequestTimeout
	}
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerChan = timer.C
	}

	select {
	case <-done:
	case <-timerChan:
		closeConn(conn)
		return "", ErrRequestTimeout
	case <-ctx.Done():
		closeConn(conn)
		return "", ErrRequestCancelled
	}

	if notif == nil {
		return "", ErrRequestTimeout
	}
	return string(notif.Params), nil
}

func closeConn(conn *websocket.Conn) {
	if err := conn.Close(); err != nil {
		log.Debug().Err(err).Msg("error closing websocket")
	}
}
