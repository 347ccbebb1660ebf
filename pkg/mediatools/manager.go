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

// Package mediatools wraps the external video and image tools used by
// media tasks: frame extraction, video section download, transcoding,
// crop detection and 2D box compositing. Binaries in the configured
// tools directory take precedence over PATH; a missing tool with a
// configured URL is fetched once and marked executable.
package mediatools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/helpers/command"
	"github.com/RomStashProject/romstash-core/pkg/helpers/syncutil"
	"github.com/RomStashProject/romstash-core/pkg/shared/httpclient"
	"github.com/rs/zerolog/log"
)

// ErrToolUnavailable is returned when a tool is neither installed nor
// fetchable.
var ErrToolUnavailable = errors.New("external tool unavailable")

// Manager resolves and invokes the external tools. Resolution results
// are cached per tool name.
type Manager struct {
	cfg      *config.Instance
	exec     command.Executor
	client   *httpclient.Client
	resolved map[string]string
	appRoot  string
	mu       syncutil.Mutex
}

// NewManager builds a manager using the real process executor and the
// shared HTTP client.
func NewManager(cfg *config.Instance, appRoot string) *Manager {
	return NewManagerWithDeps(cfg, appRoot, &command.RealExecutor{}, httpclient.NewClient())
}

// NewManagerWithDeps injects the executor and HTTP client, used by tests.
func NewManagerWithDeps(cfg *config.Instance, appRoot string, executor command.Executor, client *httpclient.Client) *Manager {
	return &Manager{
		cfg:      cfg,
		appRoot:  appRoot,
		exec:     executor,
		client:   client,
		resolved: make(map[string]string),
	}
}

// resolve finds a tool binary: tools directory first, then PATH, then a
// one-time fetch from the configured URL.
func (m *Manager) resolve(ctx context.Context, name, fetchURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.resolved[name]; ok {
		return p, nil
	}

	local := filepath.Join(m.cfg.ToolsPath(m.appRoot), name)
	if info, err := os.Stat(local); err == nil && !info.IsDir() {
		m.resolved[name] = local
		return local, nil
	}

	if p, err := exec.LookPath(name); err == nil {
		m.resolved[name] = p
		return p, nil
	}

	if fetchURL == "" {
		return "", fmt.Errorf("%s: %w", name, ErrToolUnavailable)
	}

	log.Info().Str("tool", name).Str("url", fetchURL).Msg("fetching external tool")
	if err := os.MkdirAll(filepath.Dir(local), 0o750); err != nil {
		return "", fmt.Errorf("failed to create tools directory: %w", err)
	}
	err := m.client.DownloadFile(ctx, httpclient.DownloadFileArgs{
		URL:        fetchURL,
		OutputPath: local,
		TempPath:   local + ".part",
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	if err := os.Chmod(local, 0o755); err != nil { //nolint:gosec // tool binaries must be executable
		return "", fmt.Errorf("failed to mark %s executable: %w", name, err)
	}

	m.resolved[name] = local
	return local, nil
}

func (m *Manager) videoTool(ctx context.Context) (string, error) {
	return m.resolve(ctx, m.cfg.VideoTool(), m.cfg.VideoToolURL())
}

func (m *Manager) imageTool(ctx context.Context) (string, error) {
	return m.resolve(ctx, m.cfg.ImageTool(), m.cfg.ImageToolURL())
}
