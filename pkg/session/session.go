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

// Package session tracks live duplex connections, their topic subscriptions,
// and liveness.
package session

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the write side of a duplex connection. *websocket.Conn satisfies
// it; tests substitute a recording fake. Control frames go through
// WriteControl, which gorilla allows concurrently with the data writer.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Session is one live connection. Data writes are funneled through a single
// writer goroutine draining the send channel, so the websocket one-writer
// rule holds.
type Session struct {
	ID          string
	RemoteAddr  string
	ConnectedAt time.Time

	conn Conn
	send chan []byte

	mu            sync.Mutex
	subscriptions map[string]bool
	alive         bool
	closed        bool
}

const (
	sendBufferSize  = 64
	controlDeadline = 5 * time.Second
)

func newSession(id, remoteAddr string, conn Conn) *Session {
	return &Session{
		ID:            id,
		RemoteAddr:    remoteAddr,
		ConnectedAt:   time.Now(),
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		subscriptions: make(map[string]bool),
		alive:         true,
	}
}

// enqueue hands a message to the writer goroutine. A full buffer means the
// consumer is too slow; the message is dropped rather than blocking the hub.
func (s *Session) enqueue(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

func (s *Session) subscribe(topics ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, topic := range topics {
		s.subscriptions[topic] = true
	}
}

func (s *Session) subscribedTo(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.subscriptions[topic]
}

func (s *Session) markAlive(alive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alive = alive
}

func (s *Session) isAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.alive
}

// close shuts the writer down exactly once and closes the connection.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	s.closed = true
	close(s.send)
	s.mu.Unlock()

	_ = s.conn.Close()
}

// writeLoop owns the connection's data write side. It exits when close
// drains the channel or the peer goes away.
func (s *Session) writeLoop() {
	for data := range s.send {
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (s *Session) ping() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlDeadline))
}
