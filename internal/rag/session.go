// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rag

import (
	"container/list"
	"sync"
)

// sessionMemory is an in-process LRU map bounded to MaxSessions, each
// holding the last MaxTurnsPerSession turns, i.e. 2*MaxTurnsPerSession
// messages (§4.7 "Session memory"). The mutex is held for the whole of each
// Get and Append, including the append to a session's messages; Get returns
// a copy.
type sessionMemory struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
}

type sessionRecord struct {
	id       string
	messages []Message
}

func newSessionMemory() *sessionMemory {
	return &sessionMemory{
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns a copy of the session's turns, or nil if unknown.
func (s *sessionMemory) Get(sessionID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[sessionID]
	if !ok {
		return nil
	}
	s.order.MoveToFront(el)
	rec := el.Value.(*sessionRecord)
	out := make([]Message, len(rec.messages))
	copy(out, rec.messages)
	return out
}

// Append adds a (user, assistant) exchange, trimming to MaxTurnsPerSession
// and evicting the least-recently-used session if the map is at capacity.
func (s *sessionMemory) Append(sessionID string, turns ...Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[sessionID]
	var rec *sessionRecord
	if ok {
		s.order.MoveToFront(el)
		rec = el.Value.(*sessionRecord)
	} else {
		rec = &sessionRecord{id: sessionID}
		el = s.order.PushFront(rec)
		s.entries[sessionID] = el

		if len(s.entries) > MaxSessions {
			oldest := s.order.Back()
			if oldest != nil {
				s.order.Remove(oldest)
				delete(s.entries, oldest.Value.(*sessionRecord).id)
			}
		}
	}

	rec.messages = append(rec.messages, turns...)
	if excess := len(rec.messages) - MaxTurnsPerSession*2; excess > 0 {
		rec.messages = rec.messages[excess:]
	}
	return len(rec.messages)
}
