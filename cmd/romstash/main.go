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

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/RomStashProject/romstash-core/internal/telemetry"
	"github.com/RomStashProject/romstash-core/pkg/cli"
	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/helpers"
	"github.com/RomStashProject/romstash-core/pkg/service"
	"github.com/RomStashProject/romstash-core/pkg/service/daemon"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags()
	daemonMode := flag.Bool(
		"daemon",
		false,
		"run service in the foreground",
	)

	flags.Pre()

	if os.Geteuid() == 0 {
		return errors.New("romstash cannot be run as root")
	}

	dataDir := helpers.DataDir()

	var logWriters []io.Writer
	if *daemonMode || *flags.Service == "exec" {
		logWriters = []io.Writer{os.Stderr}
	}
	cfg := cli.Setup(dataDir, config.BaseDefaults, logWriters)
	defer telemetry.Close()

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	svc, err := daemon.NewService(daemon.ServiceArgs{
		DataDir:  dataDir,
		NoDaemon: false,
		Entry: func() (func() error, <-chan struct{}, error) {
			core, startErr := service.Start(cfg, dataDir)
			if startErr != nil {
				return nil, nil, startErr
			}
			done := make(chan struct{})
			stop := func() error {
				core.Stop()
				return nil
			}
			return stop, done, nil
		},
	})
	if err != nil {
		return fmt.Errorf("error creating service handler: %w", err)
	}

	if *flags.Service != "" {
		return svc.ServiceHandler(flags.Service)
	}

	flags.Post(cfg)

	if *daemonMode {
		core, err := service.Start(cfg, dataDir)
		if err != nil {
			return fmt.Errorf("error starting service: %w", err)
		}
		defer core.Stop()

		log.Info().Msg("running in foreground, press ctrl-c to exit")
		waitForInterrupt()
		return nil
	}

	// no flags given: print usage
	flag.Usage()
	return nil
}

func waitForInterrupt() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
}
