// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Subscription is a handle for a registered subscriber.
type Subscription struct {
	ID          string
	Event       Event
	Callback    func(*Context)
	Filter      func(*Context) bool
	Unsubscribe func()
}

// Bus manages event distribution to subscribers.
type Bus struct {
	subscribers  map[Event][]*Subscription
	mu           sync.RWMutex
	queue        chan *Context
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	shutdown     bool
}

// NewBus creates a bus whose async queue holds up to queueSize events.
func NewBus(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	bus := &Bus{
		subscribers: make(map[Event][]*Subscription),
		queue:       make(chan *Context, queueSize),
		ctx:         ctx,
		cancel:      cancel,
	}

	go bus.processQueue()

	return bus
}

// Subscribe registers a callback for a specific event type.
func (b *Bus) Subscribe(event Event, callback func(*Context)) *Subscription {
	return b.SubscribeWithFilter(event, callback, nil)
}

// SubscribeAll registers the same callback for every listed event.
func (b *Bus) SubscribeAll(callback func(*Context), events ...Event) []*Subscription {
	subs := make([]*Subscription, 0, len(events))
	for _, event := range events {
		subs = append(subs, b.Subscribe(event, callback))
	}
	return subs
}

// SubscribeWithFilter registers a callback with an optional filter function.
func (b *Bus) SubscribeWithFilter(event Event, callback func(*Context), filter func(*Context) bool) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		ID:       uuid.NewString(),
		Event:    event,
		Callback: callback,
		Filter:   filter,
	}
	sub.Unsubscribe = func() {
		b.unsubscribe(sub)
	}

	b.subscribers[event] = append(b.subscribers[event], sub)
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[sub.Event]
	for i, s := range subs {
		if s.ID == sub.ID {
			b.subscribers[sub.Event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}

// Publish delivers an event to all subscribers synchronously.
// A panicking subscriber is logged and does not affect the others.
func (b *Bus) Publish(ctx *Context) {
	if ctx == nil {
		return
	}

	b.mu.RLock()
	subs := b.subscribers[ctx.Event]
	active := make([]*Subscription, len(subs))
	copy(active, subs)
	b.mu.RUnlock()

	for _, sub := range active {
		if sub.Filter != nil && !sub.Filter(ctx) {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("Panic in event subscriber for %s: %v", ctx.Event, r)
				}
			}()
			sub.Callback(ctx)
		}()
	}
}

// PublishAsync queues an event for delivery. Events are dropped when the
// queue is full or the bus is shut down.
func (b *Bus) PublishAsync(ctx *Context) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.shutdown {
		return
	}

	select {
	case b.queue <- ctx:
	default:
		log.Warnf("Event queue full, dropping event: %s", ctx.Event)
	}
}

func (b *Bus) processQueue() {
	for {
		select {
		case <-b.ctx.Done():
			return
		case event, ok := <-b.queue:
			if !ok {
				return
			}
			b.Publish(event)
		}
	}
}

// Shutdown stops async processing. Synchronous Publish keeps working.
func (b *Bus) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.mu.Lock()
		b.shutdown = true
		b.mu.Unlock()

		b.cancel()
	})
}

// Async returns a Publisher that queues onto b instead of delivering inline.
func Async(b *Bus) Publisher {
	return asyncPublisher{bus: b}
}

type asyncPublisher struct {
	bus *Bus
}

func (p asyncPublisher) Publish(ctx *Context) {
	if ctx != nil {
		p.bus.PublishAsync(ctx)
	}
}
