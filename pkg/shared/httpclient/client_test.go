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

package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadFile_Success(t *testing.T) {
	t.Parallel()

	content := []byte("boxart image bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}))
	defer server.Close()

	tempDir := t.TempDir()
	tempPath := filepath.Join(tempDir, "a.png.part")
	finalPath := filepath.Join(tempDir, "a.png")

	client := NewClient()
	err := client.DownloadFile(context.Background(), DownloadFileArgs{
		URL:        server.URL + "/a.png",
		OutputPath: finalPath,
		TempPath:   tempPath,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(finalPath) //nolint:gosec // Test file path from t.TempDir()
	require.NoError(t, err)
	assert.Equal(t, content, data)

	_, err = os.Stat(tempPath)
	assert.True(t, os.IsNotExist(err), "temp file should not exist after successful download")
}

func TestDownloadFile_EmptyBodyFails(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	finalPath := filepath.Join(t.TempDir(), "a.png")

	client := NewClient()
	err := client.DownloadFile(context.Background(), DownloadFileArgs{
		URL:        server.URL + "/a.png",
		OutputPath: finalPath,
	})
	require.ErrorIs(t, err, ErrEmptyFile)

	_, err = os.Stat(finalPath)
	assert.True(t, os.IsNotExist(err), "empty download should be removed")
}

func TestDownloadFile_StatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	finalPath := filepath.Join(t.TempDir(), "a.png")

	client := NewClient()
	err := client.DownloadFile(context.Background(), DownloadFileArgs{
		URL:        server.URL + "/a.png",
		OutputPath: finalPath,
	})
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.False(t, IsRetryable(err))

	_, err = os.Stat(finalPath)
	assert.True(t, os.IsNotExist(err), "no file should be created on status error")
}

func TestDownloadFile_Cancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		w.WriteHeader(http.StatusOK)
		for i := range 100 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(10 * time.Millisecond):
				_, _ = fmt.Fprintf(w, "chunk%d", i)
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			}
		}
	}))
	defer server.Close()

	finalPath := filepath.Join(t.TempDir(), "a.png")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	client := NewClient()
	err := client.DownloadFile(ctx, DownloadFileArgs{
		URL:        server.URL + "/a.png",
		OutputPath: finalPath,
	})
	require.Error(t, err)
	assert.False(t, IsRetryable(err), "cancellation should not be retried")

	_, err = os.Stat(finalPath)
	assert.True(t, os.IsNotExist(err), "partial download should be removed on cancel")
}

func TestStatusErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		code      int
		retryable bool
		authFail  bool
	}{
		{name: "rate limited", code: http.StatusTooManyRequests, retryable: true},
		{name: "server error", code: http.StatusInternalServerError, retryable: true},
		{name: "bad gateway", code: http.StatusBadGateway, retryable: true},
		{name: "not found", code: http.StatusNotFound, retryable: false},
		{name: "unauthorized", code: http.StatusUnauthorized, retryable: false, authFail: true},
		{name: "forbidden", code: http.StatusForbidden, retryable: false, authFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := &StatusError{Code: tt.code}
			assert.Equal(t, tt.retryable, err.Retryable())
			assert.Equal(t, tt.authFail, err.AuthFailure())
		})
	}
}

func TestAuthTransportAddsCredentials(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	config.SetAuthCfgForTesting(config.Auth{
		Creds: map[string]config.CredentialEntry{
			server.URL: {Bearer: "token123"},
		},
	})
	defer config.ClearAuthCfgForTesting()

	client := NewClient()
	resp, err := client.Get(context.Background(), server.URL+"/metadata")
	require.NoError(t, err)
	defer func() {
		require.NoError(t, resp.Body.Close())
	}()

	assert.Equal(t, "Bearer token123", gotAuth)
}

func TestAuthTransportSkipsUnknownHosts(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	config.SetAuthCfgForTesting(config.Auth{
		Creds: map[string]config.CredentialEntry{
			"https://other.example.com": {Bearer: "token123"},
		},
	})
	defer config.ClearAuthCfgForTesting()

	client := NewClient()
	resp, err := client.Get(context.Background(), server.URL+"/metadata")
	require.NoError(t, err)
	defer func() {
		require.NoError(t, resp.Body.Close())
	}()

	assert.Empty(t, gotAuth)
}
