// Copyright 2024 Fantom Foundation
// This file is part of Aida Testing Infrastructure for Sonic
//
// Aida is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Aida is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Aida. If not, see <http://www.gnu.org/licenses/>.

package utils

import (
	"context"
	"sync"
)

// Event is a one-time signal shared between goroutines, optionally
// carrying the cause that triggered it.
//
//	abort := MakeEvent()
//	go func() { <-abort.Wait(); ... }()
//	abort.SignalWith(err) // later signals have no effect
type Event interface {
	// HasHappened returns whether the event has already occurred or not.
	HasHappened() bool
	// Wait provides a channel which will be closed once the event occurred.
	Wait() <-chan struct{}
	// Signal triggers the event without a cause.
	Signal()
	// SignalWith triggers the event and records err as its cause if it is
	// the first signal.
	SignalWith(err error)
	// Cause returns the error passed to the first SignalWith, if any.
	Cause() error
}

func MakeEvent() Event {
	return &event{channel: make(chan struct{})}
}

// MakeEventFromContext creates an event which is signaled with the context's
// error once ctx is done. The returned stop function releases the watcher.
func MakeEventFromContext(ctx context.Context) (Event, func()) {
	e := MakeEvent()
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			e.SignalWith(ctx.Err())
		case <-stop:
		}
	}()
	var once sync.Once
	return e, func() { once.Do(func() { close(stop) }) }
}

type event struct {
	once    sync.Once
	mu      sync.Mutex
	cause   error
	channel chan struct{}
}

func (e *event) HasHappened() bool {
	select {
	case <-e.channel:
		return true
	default:
		return false
	}
}

func (e *event) Wait() <-chan struct{} {
	return e.channel
}

func (e *event) Signal() {
	e.SignalWith(nil)
}

func (e *event) SignalWith(err error) {
	e.once.Do(func() {
		e.mu.Lock()
		e.cause = err
		e.mu.Unlock()
		close(e.channel)
	})
}

func (e *event) Cause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cause
}
