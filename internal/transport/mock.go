// internal/transport/mock.go
package transport

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vortexsms/campaign-engine/internal/model"
)

// SentMessage is one Send recorded by the mock.
type SentMessage struct {
	ChannelID string
	Phone     string
	Body      string
	MessageID string
	HasMedia  bool
}

// Mock is an in-memory Transport used by dev mode and tests. Failures
// are injected per phone or per channel; acks can be emitted manually
// or automatically after each send.
type Mock struct {
	mu         sync.Mutex
	ready      map[string]bool
	order      []string
	ackFns     []func(AckEvent)
	inboundFns []func(InboundEvent)

	phoneErr   map[string]error
	channelErr map[string]error
	failAfter  map[string]int // sends allowed on a channel before it goes down
	sendCount  map[string]int

	sent    []SentMessage
	autoAck bool
}

func NewMock(channels ...string) *Mock {
	m := &Mock{
		ready:      make(map[string]bool),
		phoneErr:   make(map[string]error),
		channelErr: make(map[string]error),
		failAfter:  make(map[string]int),
		sendCount:  make(map[string]int),
	}
	for _, ch := range channels {
		m.ready[ch] = true
		m.order = append(m.order, ch)
	}
	sort.Strings(m.order)
	return m
}

// AutoAck makes every successful send emit server and device acks
// shortly afterwards, mimicking a live transport.
func (m *Mock) AutoAck(on bool) {
	m.mu.Lock()
	m.autoAck = on
	m.mu.Unlock()
}

func (m *Mock) ReadyChannels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.order))
	for _, ch := range m.order {
		if m.ready[ch] {
			out = append(out, ch)
		}
	}
	return out
}

func (m *Mock) IsReady(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready[channelID]
}

func (m *Mock) SetReady(channelID string, ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, known := m.ready[channelID]; !known && ready {
		m.order = append(m.order, channelID)
		sort.Strings(m.order)
	}
	m.ready[channelID] = ready
}

// FailPhone makes sends to a phone return err.
func (m *Mock) FailPhone(phone string, err error) {
	m.mu.Lock()
	m.phoneErr[phone] = err
	m.mu.Unlock()
}

// FailChannel makes every send on a channel return err.
func (m *Mock) FailChannel(channelID string, err error) {
	m.mu.Lock()
	m.channelErr[channelID] = err
	m.mu.Unlock()
}

// FailChannelAfter lets n sends through on a channel, then the channel
// reports ErrChannelNotReady and is marked not ready.
func (m *Mock) FailChannelAfter(channelID string, n int) {
	m.mu.Lock()
	m.failAfter[channelID] = n
	m.mu.Unlock()
}

func (m *Mock) Send(ctx context.Context, channelID, phone, body string, media *Media) (*SendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if !m.ready[channelID] {
		m.mu.Unlock()
		return nil, ErrChannelNotReady
	}
	if err, ok := m.channelErr[channelID]; ok {
		m.mu.Unlock()
		return nil, err
	}
	if limit, ok := m.failAfter[channelID]; ok && m.sendCount[channelID] >= limit {
		m.ready[channelID] = false
		m.mu.Unlock()
		return nil, ErrChannelNotReady
	}
	if err, ok := m.phoneErr[phone]; ok {
		m.mu.Unlock()
		return nil, err
	}
	msgID := uuid.NewString()
	m.sendCount[channelID]++
	m.sent = append(m.sent, SentMessage{
		ChannelID: channelID,
		Phone:     phone,
		Body:      body,
		MessageID: msgID,
		HasMedia:  media != nil,
	})
	auto := m.autoAck
	m.mu.Unlock()

	if auto {
		go func() {
			time.Sleep(10 * time.Millisecond)
			m.EmitAck(AckEvent{ChannelID: channelID, MessageID: msgID, Level: model.AckServer, ToAlias: phone})
			time.Sleep(10 * time.Millisecond)
			m.EmitAck(AckEvent{ChannelID: channelID, MessageID: msgID, Level: model.AckDevice, ToAlias: phone})
		}()
	}
	return &SendResult{MessageID: msgID, DeliveredTo: phone}, nil
}

func (m *Mock) OnAck(fn func(AckEvent)) {
	m.mu.Lock()
	m.ackFns = append(m.ackFns, fn)
	m.mu.Unlock()
}

func (m *Mock) OnInbound(fn func(InboundEvent)) {
	m.mu.Lock()
	m.inboundFns = append(m.inboundFns, fn)
	m.mu.Unlock()
}

// EmitAck delivers an ack event to every registered callback.
func (m *Mock) EmitAck(ev AckEvent) {
	m.mu.Lock()
	fns := append([]func(AckEvent){}, m.ackFns...)
	m.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// EmitInbound delivers an inbound message event to every callback.
func (m *Mock) EmitInbound(ev InboundEvent) {
	m.mu.Lock()
	fns := append([]func(InboundEvent){}, m.inboundFns...)
	m.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Sent returns a copy of every send the mock accepted.
func (m *Mock) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage{}, m.sent...)
}

// SentBy counts accepted sends on one channel.
func (m *Mock) SentBy(channelID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendCount[channelID]
}

var _ Transport = (*Mock)(nil)
