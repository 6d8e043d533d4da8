// internal/transport/transport.go
package transport

import (
	"context"
	"errors"

	"github.com/vortexsms/campaign-engine/internal/model"
)

// Channel-scoped failure: the channel is unusable and must be handed to
// the failure monitor. Everything else is recipient-scoped.
var ErrChannelNotReady = errors.New("channel not ready")

// Recipient-scoped failures. ErrNotRegistered additionally marks the
// phone known-invalid for the rest of the process lifetime.
var (
	ErrRecipientRejected = errors.New("recipient rejected by transport")
	ErrNotRegistered     = errors.New("number not registered on transport")
)

// IsChannelError reports whether err means the whole channel is down,
// as opposed to a single recipient being rejected.
func IsChannelError(err error) bool {
	return errors.Is(err, ErrChannelNotReady)
}

// Media is a fetched attachment payload, ready to hand to the transport.
type Media struct {
	Mime     string
	Filename string
	Data     []byte
	Caption  string
}

// SendResult reports the transport message id and, when the transport
// renamed the recipient mid-conversation, the identifier it actually
// delivered to.
type SendResult struct {
	MessageID   string
	DeliveredTo string
}

// AckEvent is a delivery confirmation callback payload.
type AckEvent struct {
	ChannelID string
	MessageID string
	Level     model.AckLevel
	ToAlias   string
}

// InboundEvent is an incoming message callback payload. ReplyToID, when
// set, is the transport message id of the outbound message this replies
// to.
type InboundEvent struct {
	ChannelID string
	FromAlias string
	Body      string
	MessageID string
	ReplyToID string
}

// Transport is the outbound messaging collaborator: a pool of
// independent logged-in channels that can send and receive.
type Transport interface {
	// ReadyChannels lists channel ids currently able to send, in a
	// stable enumeration order.
	ReadyChannels() []string
	// IsReady re-verifies a single channel.
	IsReady(channelID string) bool
	// Send delivers one message. The error is ErrChannelNotReady,
	// ErrRecipientRejected, ErrNotRegistered, or a transient transport
	// error (treated as recipient-scoped).
	Send(ctx context.Context, channelID, phone, body string, media *Media) (*SendResult, error)
	// OnAck registers a delivery-confirmation callback.
	OnAck(fn func(AckEvent))
	// OnInbound registers an incoming-message callback.
	OnInbound(fn func(InboundEvent))
}
