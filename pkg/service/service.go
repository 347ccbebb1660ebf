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

// Package service boots and tears down the RomStash daemon: task
// orchestration, the scraping worker, the download pipeline, the API
// server, and the notification fan-out to MQTT publishers.
package service

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/RomStashProject/romstash-core/pkg/api"
	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/corpus"
	"github.com/RomStashProject/romstash-core/pkg/downloader"
	"github.com/RomStashProject/romstash-core/pkg/helpers"
	"github.com/RomStashProject/romstash-core/pkg/mediatools"
	"github.com/RomStashProject/romstash-core/pkg/providerdb"
	"github.com/RomStashProject/romstash-core/pkg/scraper"
	"github.com/RomStashProject/romstash-core/pkg/service/broker"
	"github.com/RomStashProject/romstash-core/pkg/service/discovery"
	"github.com/RomStashProject/romstash-core/pkg/service/publishers"
	"github.com/RomStashProject/romstash-core/pkg/shared/httpclient"
	"github.com/RomStashProject/romstash-core/pkg/tasks"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// notificationBuffer sizes the source channel and each fan-out
// subscription. Producers never block; overflow is dropped with a
// warning.
const notificationBuffer = 100

// Core owns every long-lived component of a running daemon.
type Core struct {
	cfg       *config.Instance
	store     *providerdb.Store
	corpus    *corpus.Cache
	registry  *tasks.Registry
	worker    *scraper.Worker
	pipeline  *downloader.Pipeline
	tools     *mediatools.Manager
	server    *api.Server
	broker    *broker.Broker
	discovery *discovery.Service
	mqtt      []*publishers.MQTTPublisher
	ns        chan models.Notification
	cancel    context.CancelFunc
	dataDir   string
}

// Start brings the daemon up. Optional components (provider store,
// discovery, publishers) log and continue on failure; the API server is
// mandatory and its failure aborts startup.
func Start(cfg *config.Instance, dataDir string) (*Core, error) {
	if err := helpers.EnsureDirectories(dataDir); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}

	c := &Core{
		cfg:     cfg,
		dataDir: dataDir,
		ns:      make(chan models.Notification, notificationBuffer),
	}

	store, err := providerdb.Open(dataDir, config.DefaultProvider)
	if err != nil {
		log.Warn().Err(err).Msg("provider store unavailable, continuing without it")
	} else {
		c.store = store
	}

	corpusPath := filepath.Join(dataDir, config.CorpusFilename)
	c.corpus = corpus.NewCache(corpusPath)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.broker = broker.NewBroker(ctx, c.ns)
	c.broker.Start()
	apiFeed, _ := c.broker.Subscribe(notificationBuffer)

	c.registry = tasks.NewRegistry(cfg.TaskLogsPath(dataDir), cfg.MaxTasksToKeep(),
		clockwork.NewRealClock(), c.ns)
	c.pipeline = downloader.NewPipeline(cfg, c.registry.Cancels())
	c.worker = scraper.NewWorker(corpusPath, dataDir, c.registry.Cancels())
	c.tools = mediatools.NewManager(cfg, dataDir)
	c.registerHandlers()

	if err := c.registry.LoadHistory(); err != nil {
		log.Error().Err(err).Msg("failed to load task history")
	}
	c.registry.StartSweeper()

	server, err := api.Start(api.Deps{
		Config:        cfg,
		Registry:      c.registry,
		Corpus:        c.corpus,
		Client:        httpclient.NewClient(),
		Store:         c.store,
		Notifications: c.ns,
		Events:        apiFeed,
		DataDir:       dataDir,
	})
	if err != nil {
		c.Stop()
		return nil, fmt.Errorf("failed to start api server: %w", err)
	}
	c.server = server

	c.discovery = discovery.New(cfg)
	if err := c.discovery.Start(); err != nil {
		log.Error().Err(err).Msg("failed to start service discovery")
	}

	for _, pub := range cfg.GetMQTTPublishers() {
		if pub.Enabled != nil && !*pub.Enabled {
			continue
		}
		feed, _ := c.broker.Subscribe(notificationBuffer)
		p := publishers.NewMQTTPublisher(pub.Broker, pub.Topic, pub.Filter)
		if err := p.Start(feed); err != nil {
			log.Error().Err(err).Str("broker", pub.Broker).
				Msg("failed to start mqtt publisher")
			continue
		}
		c.mqtt = append(c.mqtt, p)
	}

	log.Info().Str("listen", cfg.APIListen()).Msg("service started")
	return c, nil
}

// Stop tears components down in reverse dependency order: outward
// surfaces first, then workers, then the notification fabric.
func (c *Core) Stop() {
	if c.server != nil {
		if err := c.server.Stop(); err != nil {
			log.Error().Err(err).Msg("error stopping api server")
		}
	}
	if c.discovery != nil {
		c.discovery.Stop()
	}
	for _, p := range c.mqtt {
		p.Stop()
	}
	if c.worker != nil {
		c.worker.Stop()
	}
	if c.pipeline != nil {
		c.pipeline.Stop()
	}
	if c.registry != nil {
		c.registry.Close()
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			log.Error().Err(err).Msg("error closing provider store")
		}
	}
	log.Info().Msg("service stopped")
}
