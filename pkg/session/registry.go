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

package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
)

// DisconnectHandler is invoked after a session is removed from the registry.
type DisconnectHandler func(sessionID string)

// Registry owns all live sessions. It is safe for concurrent use and never
// lets one slow consumer block delivery to others.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	heartbeatInterval time.Duration
	onDisconnect      []DisconnectHandler
	cancel            context.CancelFunc
	done              chan struct{}
	logger            logger.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(heartbeatInterval time.Duration, log logger.Logger) *Registry {
	if heartbeatInterval == 0 {
		heartbeatInterval = 30 * time.Second
	}

	return &Registry{
		sessions:          make(map[string]*Session),
		heartbeatInterval: heartbeatInterval,
		logger:            log.WithComponent("sessions"),
	}
}

// OnDisconnect registers a handler called whenever a session is unregistered,
// including heartbeat-forced closes.
func (r *Registry) OnDisconnect(h DisconnectHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.onDisconnect = append(r.onDisconnect, h)
}

// Register adds a connection and starts its writer goroutine.
func (r *Registry) Register(conn Conn, remoteAddr string) *Session {
	s := newSession(uuid.New().String(), remoteAddr, conn)

	r.mu.Lock()
	r.sessions[s.ID] = s
	count := len(r.sessions)
	r.mu.Unlock()

	go s.writeLoop()

	r.logger.Info().
		Str("session_id", s.ID).
		Str("remote_addr", remoteAddr).
		Int("active", count).
		Msg("Session registered")

	return s
}

// Unregister removes a session and closes its connection. Unknown ids are
// a no-op.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}

	handlers := append([]DisconnectHandler(nil), r.onDisconnect...)
	r.mu.Unlock()

	if !ok {
		return
	}

	s.close()

	for _, h := range handlers {
		h(sessionID)
	}

	r.logger.Info().Str("session_id", sessionID).Msg("Session unregistered")
}

// Subscribe adds topics to a session's subscription set.
func (r *Registry) Subscribe(sessionID string, topics ...string) error {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()

	if !ok {
		return models.ErrSessionClosed
	}

	s.subscribe(topics...)

	return nil
}

// Send delivers an event to one session. Sending to a closed or unknown
// session is a no-op.
func (r *Registry) Send(sessionID string, event *models.Event) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()

	if !ok {
		return
	}

	if !s.enqueue(event.Marshal()) {
		r.logger.Warn().
			Str("session_id", sessionID).
			Str("event", event.Type).
			Msg("Dropped event for slow consumer")
	}
}

// Broadcast delivers an event to every session subscribed to the topic,
// best effort.
func (r *Registry) Broadcast(topic string, event *models.Event) {
	data := event.Marshal()

	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))

	for _, s := range r.sessions {
		if s.subscribedTo(topic) {
			targets = append(targets, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range targets {
		if !s.enqueue(data) {
			r.logger.Warn().
				Str("session_id", s.ID).
				Str("topic", topic).
				Msg("Dropped broadcast for slow consumer")
		}
	}
}

// MarkAlive records a heartbeat ack (pong or application-level ping) for
// the session.
func (r *Registry) MarkAlive(sessionID string) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()

	if ok {
		s.markAlive(true)
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Start launches the heartbeat sweep. Each tick closes every session that
// failed to ack the previous tick's ping, then marks the rest not-alive and
// pings them again. This bounds zombie-connection accumulation without
// relying on transport keepalive.
func (r *Registry) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(r.heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				r.sweepHeartbeats()
			}
		}
	}()
}

// Stop halts the heartbeat sweep and closes all sessions.
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}

	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Unregister(id)
	}
}

func (r *Registry) sweepHeartbeats() {
	r.mu.RLock()
	stale := make([]string, 0)
	live := make([]*Session, 0, len(r.sessions))

	for id, s := range r.sessions {
		if s.isAlive() {
			live = append(live, s)
		} else {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range stale {
		r.logger.Warn().Str("session_id", id).Msg("Closing session after missed heartbeat")
		r.Unregister(id)
	}

	for _, s := range live {
		s.markAlive(false)

		if err := s.ping(); err != nil {
			r.logger.Debug().Err(err).Str("session_id", s.ID).Msg("Heartbeat ping failed")
		}
	}
}
