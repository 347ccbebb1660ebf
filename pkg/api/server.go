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

// Package api serves the JSON-RPC 2.0 websocket API and routes change
// notifications to system rooms.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/RomStashProject/romstash-core/pkg/api/methods"
	apimiddleware "github.com/RomStashProject/romstash-core/pkg/api/middleware"
	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/RomStashProject/romstash-core/pkg/api/validation"
	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/RomStashProject/romstash-core/pkg/corpus"
	"github.com/RomStashProject/romstash-core/pkg/providerdb"
	"github.com/RomStashProject/romstash-core/pkg/shared/httpclient"
	"github.com/RomStashProject/romstash-core/pkg/tasks"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/olahol/melody"
	"github.com/rs/zerolog/log"
)

var JSONRPCErrorParseError = models.ErrorObject{
	Code:    -32700,
	Message: "Parse error",
}
var JSONRPCErrorInvalidRequest = models.ErrorObject{
	Code:    -32600,
	Message: "Invalid Request",
}
var JSONRPCErrorMethodNotFound = models.ErrorObject{
	Code:    -32601,
	Message: "Method not found",
}
var JSONRPCErrorInvalidParams = models.ErrorObject{
	Code:    -32602,
	Message: "Invalid params",
}
var JSONRPCErrorServerError = models.ErrorObject{
	Code:    -32000,
	Message: "Server error",
}

var methodMap = map[string]func(methods.RequestEnv) (any, error){
	// tasks
	models.MethodTasksSubmit:         methods.HandleTasksSubmit,
	models.MethodTasksStop:           methods.HandleTasksStop,
	models.MethodTasksGet:            methods.HandleTasksGet,
	models.MethodTasksList:           methods.HandleTasksList,
	models.MethodTasksLogs:           methods.HandleTasksLogs,
	models.MethodTasksLogsStream:     methods.HandleTasksLogsStream,
	models.MethodTasksLogsStreamStop: methods.HandleTasksLogsStreamStop,
	// catalog
	models.MethodCatalogGames:   methods.HandleCatalogGames,
	models.MethodCatalogSystems: methods.HandleCatalogSystems,
	models.MethodCatalogPublish: methods.HandleCatalogPublish,
	models.MethodCatalogDiff:    methods.HandleCatalogDiff,
	// corpus
	models.MethodCorpusStatus:    methods.HandleCorpusStatus,
	models.MethodCorpusReload:    methods.HandleCorpusReload,
	models.MethodCorpusUpdate:    methods.HandleCorpusUpdate,
	models.MethodCorpusPlatforms: methods.HandleCorpusPlatforms,
	// match
	models.MethodMatchPreview: methods.HandleMatchPreview,
	models.MethodMatchApply:   methods.HandleMatchApply,
	// media
	models.MethodMediaScan: methods.HandleMediaScan,
	// rooms
	models.MethodRoomsJoin:  methods.HandleRoomsJoin,
	models.MethodRoomsLeave: methods.HandleRoomsLeave,
	// settings
	models.MethodSettings:       methods.HandleSettings,
	models.MethodSettingsUpdate: methods.HandleSettingsUpdate,
	models.MethodSettingsReload: methods.HandleSettingsReload,
	// utils
	models.MethodVersion: methods.HandleVersion,
}

// Deps are the collaborators the API server dispatches into.
// Notifications is the sink handlers publish into; Events is the feed
// the broadcaster consumes. When Events is nil the broadcaster reads
// Notifications directly, which is the single-consumer setup tests use.
// The daemon splits them so a broker can fan the source out to other
// consumers as well.
type Deps struct {
	Config        *config.Instance
	Registry      *tasks.Registry
	Corpus        *corpus.Cache
	Client        *httpclient.Client
	Store         *providerdb.Store
	Notifications chan models.Notification
	Events        <-chan models.Notification
	DataDir       string
}

// Server is a running API instance.
type Server struct {
	hub     *Hub
	session *melody.Melody
	srv     *http.Server
	ln      net.Listener
	streams *methods.LogStreams
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func maybeUUID(req models.RequestObject) uuid.UUID {
	if req.ID == nil {
		return uuid.Nil
	}
	return *req.ID
}

func handleRequest(env methods.RequestEnv, req models.RequestObject) (any, *models.ErrorObject) {
	log.Debug().Str("method", req.Method).Msg("received request")

	fn, ok := methodMap[strings.ToLower(req.Method)]
	if !ok {
		return nil, &JSONRPCErrorMethodNotFound
	}

	env.ID = maybeUUID(req)
	env.Params = req.Params

	result, err := fn(env)
	if err != nil {
		log.Error().Err(err).Str("method", req.Method).Msg("method handler failed")
		errObj := classifyError(err)
		errObj.Message = err.Error()
		return nil, &errObj
	}
	return result, nil
}

func classifyError(err error) models.ErrorObject {
	var ve *validation.Error
	if errors.Is(err, validation.ErrMissingParams) ||
		errors.Is(err, validation.ErrInvalidParams) ||
		errors.As(err, &ve) {
		return JSONRPCErrorInvalidParams
	}
	return JSONRPCErrorServerError
}

func sendResponse(session *melody.Session, id uuid.UUID, result any) error {
	resp := models.ResponseObject{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("error marshalling response: %w", err)
	}

	if err := session.Write(data); err != nil {
		return fmt.Errorf("error writing response: %w", err)
	}
	return nil
}

func sendError(session *melody.Session, id uuid.UUID, errObj models.ErrorObject) error {
	log.Debug().Int("code", errObj.Code).Str("message", errObj.Message).Msg("sending error")

	resp := models.ResponseObject{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &errObj,
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("error marshalling error response: %w", err)
	}

	if err := session.Write(data); err != nil {
		return fmt.Errorf("error writing error response: %w", err)
	}
	return nil
}

// handleWSMessage builds the websocket message handler: ping heartbeat,
// then JSON-RPC request dispatch.
func (s *Server) handleWSMessage(deps Deps) func(*melody.Session, []byte) {
	return func(session *melody.Session, msg []byte) {
		// ping command for heartbeat operation
		if bytes.Equal(msg, []byte("ping")) {
			if err := session.Write([]byte("pong")); err != nil {
				log.Error().Err(err).Msg("sending pong")
			}
			return
		}

		if !json.Valid(msg) {
			log.Error().Msg("data not valid json")
			if err := sendError(session, uuid.Nil, JSONRPCErrorParseError); err != nil {
				log.Error().Err(err).Msg("error sending error response")
			}
			return
		}

		var req models.RequestObject
		err := json.Unmarshal(msg, &req)
		if err != nil || req.Method == "" {
			log.Error().Err(err).Msg("message is not a request")
			if sendErr := sendError(session, uuid.Nil, JSONRPCErrorInvalidRequest); sendErr != nil {
				log.Error().Err(sendErr).Msg("error sending error response")
			}
			return
		}

		if req.JSONRPC != "2.0" {
			log.Error().Str("jsonrpc", req.JSONRPC).Msg("unsupported payload version")
			if sendErr := sendError(session, maybeUUID(req), JSONRPCErrorInvalidRequest); sendErr != nil {
				log.Error().Err(sendErr).Msg("error sending error response")
			}
			return
		}

		if req.ID == nil {
			// request is a notification
			log.Info().Str("method", req.Method).Msg("received notification, ignoring")
			return
		}

		clientIP := apimiddleware.ParseRemoteIP(session.Request.RemoteAddr)

		result, errObj := handleRequest(s.env(deps, session, clientIP != nil && clientIP.IsLoopback()), req)
		if errObj != nil {
			if sendErr := sendError(session, *req.ID, *errObj); sendErr != nil {
				log.Error().Err(sendErr).Msg("error sending error response")
			}
			return
		}

		if err := sendResponse(session, *req.ID, result); err != nil {
			log.Error().Err(err).Msg("error sending response")
		}
	}
}

func (s *Server) env(deps Deps, session *melody.Session, isLocal bool) methods.RequestEnv {
	env := methods.RequestEnv{
		Config:   deps.Config,
		Registry: deps.Registry,
		Corpus:   deps.Corpus,
		Client:   deps.Client,
		Store:    deps.Store,
		Rooms:    s.hub,
		Streams:  s.streams,
		NS:       deps.Notifications,
		DataDir:  deps.DataDir,
		IsLocal:  isLocal,
	}
	if session != nil {
		env.Session = session
	}
	return env
}

// handlePost serves the single-request HTTP fallback for clients without
// a websocket.
func (s *Server) handlePost(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var req models.RequestObject
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writePostError(w, uuid.Nil, JSONRPCErrorParseError)
			return
		}
		if req.JSONRPC != "2.0" || req.Method == "" || req.ID == nil {
			writePostError(w, maybeUUID(req), JSONRPCErrorInvalidRequest)
			return
		}

		clientIP := apimiddleware.ParseRemoteIP(r.RemoteAddr)
		result, errObj := handleRequest(s.env(deps, nil, clientIP != nil && clientIP.IsLoopback()), req)
		if errObj != nil {
			writePostError(w, *req.ID, *errObj)
			return
		}

		resp := models.ResponseObject{JSONRPC: "2.0", ID: *req.ID, Result: result}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error().Err(err).Msg("error writing post response")
		}
	}
}

func writePostError(w http.ResponseWriter, id uuid.UUID, errObj models.ErrorObject) {
	resp := models.ResponseObject{JSONRPC: "2.0", ID: id, Error: &errObj}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("error writing post error response")
	}
}

// broadcast consumes the notification channel and routes each event:
// system-scoped events go only to the system's room, the rest to every
// connected session.
func (s *Server) broadcast(ctx context.Context, ns <-chan models.Notification) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("notification broadcaster shutting down")
			return
		case notif := <-ns:
			req := models.RequestObject{
				JSONRPC: "2.0",
				Method:  notif.Method,
			}
			if notif.Params != nil {
				params, err := json.Marshal(notif.Params)
				if err != nil {
					log.Error().Err(err).Msg("marshalling notification params")
					continue
				}
				req.Params = params
			}

			data, err := json.Marshal(req)
			if err != nil {
				log.Error().Err(err).Msg("marshalling notification request")
				continue
			}

			if notif.System != "" {
				s.hub.PublishTo(notif.System, data)
				continue
			}
			if err := s.session.Broadcast(data); err != nil {
				log.Error().Err(err).Msg("broadcasting notification")
			}
		}
	}
}

// Start binds the listener and begins serving. Stop shuts the server
// down gracefully.
func Start(deps Deps) (*Server, error) {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.NoCache)
	r.Use(chimiddleware.Timeout(config.ApiRequestTimeout))

	origins := deps.Config.AllowedOrigins()
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	limiter := apimiddleware.NewIPRateLimiter()
	r.Use(apimiddleware.HTTPRateLimitMiddleware(limiter))

	ctx, cancel := context.WithCancel(context.Background())
	limiter.StartCleanup(ctx)

	session := melody.New()
	session.Upgrader.CheckOrigin = func(_ *http.Request) bool { return true }

	s := &Server{
		hub:     NewHub(),
		session: session,
		streams: methods.NewLogStreams(),
		cancel:  cancel,
	}

	events := deps.Events
	if events == nil {
		events = deps.Notifications
	}
	s.wg.Add(1)
	go s.broadcast(ctx, events)

	session.HandleMessage(apimiddleware.WebSocketRateLimitHandler(limiter, s.handleWSMessage(deps)))
	session.HandleDisconnect(func(ms *melody.Session) {
		s.hub.Leave(ms)
		s.streams.CloseSession(ms)
	})

	r.Get("/api", func(w http.ResponseWriter, r *http.Request) {
		if err := session.HandleRequest(w, r); err != nil {
			log.Error().Err(err).Msg("handling websocket request")
		}
	})
	r.Post("/api", s.handlePost(deps))

	ln, err := net.Listen("tcp", deps.Config.APIListen())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to bind api listener: %w", err)
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if serveErr := s.srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Error().Err(serveErr).Msg("api server stopped")
		}
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("api server listening")
	return s, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Stop closes websocket sessions and shuts the HTTP server down.
func (s *Server) Stop() error {
	s.cancel()

	if err := s.session.Close(); err != nil {
		log.Warn().Err(err).Msg("closing websocket sessions")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.srv.Shutdown(ctx)

	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to shut down api server: %w", err)
	}
	return nil
}
