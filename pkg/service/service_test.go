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
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/RomStashProject/romstash-core/pkg/catalog"
	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/helpers"
	"github.com/RomStashProject/romstash-core/pkg/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newDaemonConfig builds a config with an ephemeral API port and
// discovery disabled so tests do not announce on the network.
func newDaemonConfig(t *testing.T, romsRoot string) *config.Instance {
	t.Helper()
	dir := t.TempDir()
	contents := fmt.Sprintf(`config_schema = %d
roms_root_directory = %q

[service]
api_listen = "127.0.0.1:0"

[service.discovery]
enabled = false
`, config.SchemaVersion, romsRoot)
	err := os.WriteFile(filepath.Join(dir, config.CfgFile), []byte(contents), 0o600)
	require.NoError(t, err)

	cfg, err := config.NewConfig(dir, config.BaseDefaults)
	require.NoError(t, err)
	return cfg
}

func TestStartAndStop(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	cfg := newDaemonConfig(t, t.TempDir())

	c, err := Start(cfg, dataDir)
	require.NoError(t, err)
	defer c.Stop()

	assert.NotNil(t, c.server)
	assert.NotNil(t, c.store, "provider store should open on a fresh data dir")

	writeRom(t, cfg, "snes", "Chrono.sfc")
	snap := submitTask(t, c, tasks.KindRomScan, systemPayload{System: "snes"})
	final := waitForTask(t, c, snap.ID, tasks.StatusCompleted)
	assert.Equal(t, 1, final.Stats["added_games"])

	games, err := catalog.ParseCatalog(helpers.GamelistPath(dataDir, "snes"))
	require.NoError(t, err)
	assert.Len(t, games, 1)
}

func TestStartFailsOnBadListenAddress(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	dir := t.TempDir()
	contents := fmt.Sprintf(`config_schema = %d

[service]
api_listen = "127.0.0.1:-1"

[service.discovery]
enabled = false
`, config.SchemaVersion)
	err := os.WriteFile(filepath.Join(dir, config.CfgFile), []byte(contents), 0o600)
	require.NoError(t, err)
	cfg, err := config.NewConfig(dir, config.BaseDefaults)
	require.NoError(t, err)

	_, err = Start(cfg, dataDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api server")
}

func TestStopIsSafeOnPartialCore(t *testing.T) {
	t.Parallel()

	// a Core that never finished Start must still shut down cleanly
	c := &Core{}
	c.Stop()
}
