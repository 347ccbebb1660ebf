//go:build linux || darwin

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

// Package daemon manages the background service process: pid file
// bookkeeping, detached re-exec, and signal-driven shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/RomStashProject/romstash-core/pkg/api/client"
	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/helpers"
	"github.com/rs/zerolog/log"
)

// ServiceEntry boots the daemon and returns its stop function plus a
// channel closed on internal shutdown.
type ServiceEntry func() (func() error, <-chan struct{}, error)

// Service drives one daemon lifecycle. The pid file lives in the data
// directory so every invocation agrees on where to look.
type Service struct {
	start   ServiceEntry
	stop    func() error
	done    <-chan struct{}
	dataDir string
	daemon  bool
}

type ServiceArgs struct {
	Entry    ServiceEntry
	DataDir  string
	NoDaemon bool
}

func NewService(args ServiceArgs) (*Service, error) {
	if err := os.MkdirAll(args.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Service{
		daemon:  !args.NoDaemon,
		start:   args.Entry,
		dataDir: args.DataDir,
	}, nil
}

func (s *Service) pidPath() string {
	return filepath.Join(s.dataDir, config.PidFile)
}

func (s *Service) createPidFile() error {
	err := os.WriteFile(s.pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o600)
	if err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

func (s *Service) removePidFile() error {
	if err := os.Remove(s.pidPath()); err != nil {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// Pid returns the process ID of the running daemon, or 0 when no pid
// file exists.
func (s *Service) Pid() (int, error) {
	if _, err := os.Stat(s.pidPath()); err != nil {
		return 0, nil //nolint:nilerr // missing pid file means not running
	}
	//nolint:gosec // pid file path is under the service data directory
	raw, err := os.ReadFile(s.pidPath())
	if err != nil {
		return 0, fmt.Errorf("error reading pid file: %w", err)
	}
	pid, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("error parsing pid: %w", err)
	}
	return pid, nil
}

// Running reports whether the pid file points at a live process.
func (s *Service) Running() bool {
	pid, err := s.Pid()
	if err != nil || pid == 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

func (s *Service) stopService() error {
	log.Info().Msg("stopping service")

	if err := s.stop(); err != nil {
		log.Error().Err(err).Msg("error stopping service")
		return err
	}
	if err := s.removePidFile(); err != nil {
		log.Error().Err(err).Msg("error removing pid file")
		return err
	}
	return nil
}

// setupStopService installs the SIGINT/SIGTERM handler. Exits the
// process once shutdown finishes.
func (s *Service) setupStopService() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		if err := s.stopService(); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}()
}

// startService runs the daemon in the current process and blocks until
// it stops.
func (s *Service) startService() {
	if s.Running() {
		log.Error().Msg("service already running")
		os.Exit(1)
	}

	log.Info().Msg("starting service")

	if err := s.createPidFile(); err != nil {
		log.Error().Err(err).Msg("error creating pid file")
		os.Exit(1)
	}

	stop, done, err := s.start()
	if err != nil {
		log.Error().Err(err).Msg("error starting service")
		if rmErr := s.removePidFile(); rmErr != nil {
			log.Error().Err(rmErr).Msg("error removing pid file")
		}
		os.Exit(1)
	}

	s.setupStopService()
	s.stop = stop
	s.done = done

	if !s.daemon {
		if stopErr := s.stopService(); stopErr != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}

	<-done
	log.Info().Msg("service shut down internally")
	if err := s.removePidFile(); err != nil {
		log.Error().Err(err).Msg("error removing pid file")
	}
	os.Exit(0)
}

// Start launches a detached daemon process running "-service exec".
func (s *Service) Start() error {
	if s.Running() {
		return errors.New("service already running")
	}

	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("error getting absolute binary path: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	//nolint:gosec // re-executes the current binary
	cmd := exec.CommandContext(ctx, exePath, "-service", "exec")
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	configPath := filepath.Join(helpers.ConfigDir(), config.CfgFile)
	if _, statErr := os.Stat(configPath); statErr == nil {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", config.CfgEnv, configPath))
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("error starting service: %w", err)
	}
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("error releasing service process: %w", err)
	}

	// give the child a moment to write its pid file
	time.Sleep(500 * time.Millisecond)

	pid, err := s.Pid()
	if err != nil || pid == 0 {
		return errors.New("service started but PID file not found")
	}
	log.Info().Msgf("service process started with PID %d", pid)

	if !s.Running() {
		return fmt.Errorf("service process %d started but is no longer running", pid)
	}
	return nil
}

// Stop signals the running daemon to shut down.
func (s *Service) Stop() error {
	if !s.Running() {
		return errors.New("service not running")
	}

	pid, err := s.Pid()
	if err != nil {
		return err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM to process: %w", err)
	}
	return nil
}

func (s *Service) Restart() error {
	if s.Running() {
		if err := s.Stop(); err != nil {
			return err
		}
	}

	deadline := time.Now().Add(10 * time.Second)
	for s.Running() {
		if time.Now().After(deadline) {
			return errors.New("timeout waiting for service to stop")
		}
		time.Sleep(500 * time.Millisecond)
	}

	return s.Start()
}

// WaitForAPI polls the API until it answers a version call or the
// timeout passes.
func (s *Service) WaitForAPI(cfg *config.Instance, maxWait, checkInterval time.Duration) error {
	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), checkInterval)
		_, err := client.LocalClient(ctx, cfg, "version", "")
		cancel()
		if err == nil {
			log.Info().Msg("API is now available")
			return nil
		}
		time.Sleep(checkInterval)
	}

	if !s.Running() {
		log.Error().Msg("service process is no longer running")
		return errors.New("service process crashed during startup")
	}
	log.Warn().Msg("service process is running but API is not responding")
	return errors.New("API did not become available within timeout")
}

// ServiceHandler dispatches the -service flag commands. Every command
// except "exec" and "" exits the process.
func (s *Service) ServiceHandler(cmd *string) error {
	switch *cmd {
	case "exec":
		s.startService()
		return nil
	case "start":
		if err := s.Start(); err != nil {
			log.Error().Err(err).Msg("error starting service")
			os.Exit(1)
		}
		os.Exit(0)
	case "stop":
		if err := s.Stop(); err != nil {
			log.Error().Err(err).Msg("error stopping service")
			os.Exit(1)
		}
		os.Exit(0)
	case "restart":
		if err := s.Restart(); err != nil {
			log.Error().Err(err).Msg("error restarting service")
			os.Exit(1)
		}
		os.Exit(0)
	case "status":
		if s.Running() {
			_, _ = fmt.Println("started")
			os.Exit(0)
		}
		_, _ = fmt.Println("stopped")
		os.Exit(1)
	case "":
		return nil
	default:
		return fmt.Errorf("unknown service argument: %s", *cmd)
	}
	return nil
}
