/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package httpserver exposes the hub over HTTP: the /ws websocket endpoint
// binding connections into the session registry, and a health check.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
	"github.com/hearthlab/hearth/pkg/policy"
	"github.com/hearthlab/hearth/pkg/session"
	"github.com/hearthlab/hearth/pkg/version"
)

const (
	readLimit       = 64 * 1024
	shutdownTimeout = 5 * time.Second
)

// Dispatcher is the command entry point. The orchestrator satisfies it.
type Dispatcher interface {
	HandleInput(ctx context.Context, sessionID, rawText string)
	Dispatch(ctx context.Context, sessionID string, intent *models.Intent)
}

// Server binds websocket connections to the hub core.
type Server struct {
	sessions   *session.Registry
	dispatcher Dispatcher
	auth       *policy.Authorizer
	upgrader   websocket.Upgrader
	httpServer *http.Server
	logger     logger.Logger
}

// New creates the HTTP server.
func New(listenAddr string, sessions *session.Registry, dispatcher Dispatcher, auth *policy.Authorizer, log logger.Logger) *Server {
	s := &Server{
		sessions:   sessions,
		dispatcher: dispatcher,
		auth:       auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// local hub, clients are LAN dashboards and voice satellites
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: log.WithComponent("httpserver"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealthz)

	s.httpServer = &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"version":  version.Full(),
		"sessions": s.sessions.Count(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Failed to upgrade to WebSocket")
		return
	}

	sess := s.sessions.Register(conn, r.RemoteAddr)

	s.logger.Info().Str("session_id", sess.ID).Str("remote_addr", r.RemoteAddr).Msg("WebSocket connection established")

	conn.SetReadLimit(readLimit)
	conn.SetPongHandler(func(string) error {
		s.sessions.MarkAlive(sess.ID)
		return nil
	})

	// the handler blocks for the connection's lifetime; each session's
	// read loop is its own goroutine courtesy of net/http
	s.readLoop(r.Context(), conn, sess.ID)
}

// readLoop pumps inbound messages for one session. Each session gets its
// own loop, so a blocking dispatch never stalls other sessions.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sessionID string) {
	defer s.sessions.Unregister(sessionID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.logger.Debug().Err(err).Str("session_id", sessionID).Msg("Read loop closed")
			return
		}

		s.handleMessage(ctx, sessionID, raw)
	}
}

func (s *Server) handleMessage(ctx context.Context, sessionID string, raw []byte) {
	var msg models.InboundMessage

	if err := json.Unmarshal(raw, &msg); err != nil {
		// malformed input notifies the session, the connection stays open
		s.sessions.Send(sessionID, models.NewEvent(models.EventError, map[string]interface{}{
			"error": models.ErrMalformedMessage.Error(),
		}))

		return
	}

	switch msg.Type {
	case models.MsgVoiceInput:
		s.dispatcher.HandleInput(ctx, sessionID, msg.Text)
	case models.MsgToolRequest:
		s.dispatcher.Dispatch(ctx, sessionID, &models.Intent{
			Tool:       msg.Tool,
			Action:     msg.Action,
			Args:       msg.Args,
			Confidence: 1.0,
			RequestID:  msg.RequestID,
		})
	case models.MsgSubscribe:
		if err := s.sessions.Subscribe(sessionID, msg.Topics...); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Subscribe failed")
		}
	case models.MsgPing:
		s.sessions.MarkAlive(sessionID)
		s.sessions.Send(sessionID, models.NewEvent(models.EventPong, nil))
	case models.MsgAuthorizationResponse:
		s.handleAuthorization(sessionID, &msg)
	default:
		s.sessions.Send(sessionID, models.NewEvent(models.EventError, map[string]interface{}{
			"error": models.ErrMalformedMessage.Error(),
			"type":  msg.Type,
		}))
	}
}

func (s *Server) handleAuthorization(sessionID string, msg *models.InboundMessage) {
	result, err := s.auth.Submit(msg.AuthID, msg.PIN, msg.TOTP)
	if err != nil {
		s.sessions.Send(sessionID, models.NewEvent(models.EventError, map[string]interface{}{
			"error":  err.Error(),
			"authId": msg.AuthID,
		}))

		return
	}

	// a failed attempt with attempts left is retryable, not a denial;
	// terminal denial surfaces as a Submit error above
	if !result.Authorized {
		s.sessions.Send(sessionID, models.NewEvent(models.EventError, map[string]interface{}{
			"error":             fmt.Sprintf("invalid factors, %d attempts remaining", result.RemainingAttempts),
			"authId":            msg.AuthID,
			"remainingAttempts": result.RemainingAttempts,
		}))
	}
}
