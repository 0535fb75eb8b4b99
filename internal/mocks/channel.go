package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"social-client/internal/ws"
)

// Emitted is one outbound frame recorded by FakeChannel.
type Emitted struct {
	Event string
	Data  json.RawMessage
	Ack   chan ws.Ack
}

// FakeChannel is an in-memory realtime channel. Tests push inbound events
// and resolve acks by hand.
type FakeChannel struct {
	mu      sync.Mutex
	emitted []Emitted
	events  chan ws.Event
	closed  bool
	closes  int

	EmitErr    error
	EmitAckErr error
}

func NewFakeChannel() *FakeChannel {
	return &FakeChannel{events: make(chan ws.Event, 32)}
}

func (c *FakeChannel) Emit(_ context.Context, event string, data any) error {
	if c.EmitErr != nil {
		return c.EmitErr
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ws.ErrClosed
	}
	c.emitted = append(c.emitted, Emitted{Event: event, Data: raw})
	return nil
}

func (c *FakeChannel) EmitWithAck(_ context.Context, event string, data any) (<-chan ws.Ack, error) {
	if c.EmitAckErr != nil {
		return nil, c.EmitAckErr
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ws.ErrClosed
	}
	ack := make(chan ws.Ack, 1)
	c.emitted = append(c.emitted, Emitted{Event: event, Data: raw, Ack: ack})
	return ack, nil
}

func (c *FakeChannel) Events() <-chan ws.Event {
	return c.events
}

func (c *FakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

// Push delivers an inbound event. It is dropped once the channel is closed.
func (c *FakeChannel) Push(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.events <- ws.Event{Name: event, Data: raw}
}

// Emitted returns a copy of everything sent so far.
func (c *FakeChannel) Emitted() []Emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Emitted, len(c.emitted))
	copy(out, c.emitted)
	return out
}

// LastAck returns the ack channel of the most recent EmitWithAck for event.
func (c *FakeChannel) LastAck(event string) chan ws.Ack {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.emitted) - 1; i >= 0; i-- {
		if c.emitted[i].Event == event && c.emitted[i].Ack != nil {
			return c.emitted[i].Ack
		}
	}
	return nil
}

func (c *FakeChannel) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}
