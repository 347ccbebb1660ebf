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

package discovery

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T, extra string) *config.Instance {
	t.Helper()

	dir := t.TempDir()
	contents := fmt.Sprintf("config_schema = %d\n%s", config.SchemaVersion, extra)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.CfgFile), []byte(contents), 0o600))

	cfg, err := config.NewConfig(dir, config.BaseDefaults)
	require.NoError(t, err)
	return cfg
}

func TestFilterInterfaces(t *testing.T) {
	t.Parallel()

	ifaces := []net.Interface{
		{Name: "eth0", Flags: net.FlagUp | net.FlagMulticast},
		{Name: "lo", Flags: net.FlagUp | net.FlagLoopback | net.FlagMulticast},
		{Name: "eth1", Flags: net.FlagMulticast}, // down
		{Name: "docker0", Flags: net.FlagUp | net.FlagMulticast},
		{Name: "veth12ab", Flags: net.FlagUp | net.FlagMulticast},
		{Name: "wlan0", Flags: net.FlagUp}, // no multicast
	}

	got := filterInterfaces(ifaces)
	require.Len(t, got, 1)
	assert.Equal(t, "eth0", got[0].Name)
}

func TestIsVirtualInterface(t *testing.T) {
	t.Parallel()

	assert.True(t, isVirtualInterface("docker0"))
	assert.True(t, isVirtualInterface("BR-1234"))
	assert.True(t, isVirtualInterface("wg0"))
	assert.False(t, isVirtualInterface("eth0"))
	assert.False(t, isVirtualInterface("enp3s0"))
}

func TestResolveInstanceNamePrefersConfig(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t, "[service.discovery]\ninstance_name = \"shelf\"\n")
	s := New(cfg)

	name, err := s.resolveInstanceName()
	require.NoError(t, err)
	assert.Equal(t, "shelf", name)
}

func TestResolveInstanceNameFallsBackToHostname(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t, "")
	s := New(cfg)

	name, err := s.resolveInstanceName()
	require.NoError(t, err)

	hostname, hostErr := os.Hostname()
	require.NoError(t, hostErr)
	assert.Equal(t, hostname, name)
}

func TestStartDisabledByConfig(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t, "[service.discovery]\nenabled = false\n")
	s := New(cfg)

	require.NoError(t, s.Start())
	assert.Empty(t, s.InstanceName())
	s.Stop()
}

func TestStopBeforeStart(t *testing.T) {
	t.Parallel()

	s := New(newTestConfig(t, ""))
	s.Stop()
	s.Stop()
}
