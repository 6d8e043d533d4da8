// internal/tracker/tracker.go
package tracker

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vortexsms/campaign-engine/internal/alias"
	"github.com/vortexsms/campaign-engine/internal/feed"
	"github.com/vortexsms/campaign-engine/internal/model"
	"github.com/vortexsms/campaign-engine/internal/transport"
)

// Store is the slice of persistence the tracker needs. Failures are
// logged and never halt in-memory progress.
type Store interface {
	RecordAckUpdate(phone string, level model.AckLevel, messageID string) error
	RecordResponse(phone, text, messageID string) error
}

// Tracker is the per-message acknowledgment state machine. Records are
// created at send time and mutated until read or campaign end. It also
// holds the process-lifetime set of phones known to be invalid.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*model.DeliveryRecord   // by transport message id
	byPhone map[string][]*model.DeliveryRecord // creation order per canonical phone
	invalid map[string]bool

	resolver *alias.Resolver
	store    Store
	feed     feed.Feed
	log      zerolog.Logger

	now func() time.Time
}

func New(resolver *alias.Resolver, store Store, fd feed.Feed, log zerolog.Logger) *Tracker {
	return &Tracker{
		records:  make(map[string]*model.DeliveryRecord),
		byPhone:  make(map[string][]*model.DeliveryRecord),
		invalid:  make(map[string]bool),
		resolver: resolver,
		store:    store,
		feed:     fd,
		log:      log.With().Str("component", "tracker").Logger(),
		now:      time.Now,
	}
}

// TrackSend opens a DeliveryRecord at level none for a just-sent
// message.
func (t *Tracker) TrackSend(messageID string, campaignID int, phone, channelID string) *model.DeliveryRecord {
	canonical := alias.Canonicalize(phone)
	rec := &model.DeliveryRecord{
		MessageID:  messageID,
		CampaignID: campaignID,
		Phone:      canonical,
		ChannelID:  channelID,
		Level:      model.AckNone,
		SentAt:     t.now(),
	}
	t.mu.Lock()
	t.records[messageID] = rec
	t.byPhone[canonical] = append(t.byPhone[canonical], rec)
	t.mu.Unlock()
	return rec
}

// HandleAck applies a transport delivery confirmation. Levels only move
// forward: a duplicate or downgrade is discarded. Every accepted
// transition is persisted and published on the feed.
func (t *Tracker) HandleAck(ev transport.AckEvent) {
	t.mu.Lock()
	rec, ok := t.records[ev.MessageID]
	if !ok {
		t.mu.Unlock()
		t.log.Debug().Str("message_id", ev.MessageID).Msg("ack for unknown message")
		return
	}
	if ev.Level <= rec.Level {
		t.mu.Unlock()
		return
	}
	rec.Level = ev.Level
	ts := t.now()
	switch ev.Level {
	case model.AckServer:
		rec.ServerAt = &ts
	case model.AckDevice:
		rec.DeviceAt = &ts
	case model.AckRead:
		rec.ReadAt = &ts
	}
	phone := rec.Phone
	campaignID := rec.CampaignID
	t.mu.Unlock()

	// The transport sometimes reports a pseudo-id for the recipient;
	// remember the mapping so later events still correlate.
	if ev.ToAlias != "" && alias.Canonicalize(ev.ToAlias) != phone {
		t.resolver.Register(ev.ToAlias, phone)
	}

	if err := t.store.RecordAckUpdate(phone, ev.Level, ev.MessageID); err != nil {
		t.log.Error().Err(err).Str("phone", phone).Msg("failed to persist ack update")
	}
	if err := t.feed.Publish(feed.Event{
		Type:       feed.EventAckUpdate,
		CampaignID: campaignID,
		Phone:      phone,
		MessageID:  ev.MessageID,
		Level:      ev.Level.String(),
	}); err != nil {
		t.log.Warn().Err(err).Msg("failed to publish ack update")
	}
	t.log.Debug().Str("phone", phone).Str("level", ev.Level.String()).Msg("ack level advanced")
}

// MarkInvalid flags a phone as not reachable on the transport for the
// remainder of the process lifetime. All future sends to it are
// short-circuited, across any campaign.
func (t *Tracker) MarkInvalid(phone string) {
	canonical := alias.Canonicalize(phone)
	if canonical == "" {
		return
	}
	t.mu.Lock()
	t.invalid[canonical] = true
	t.mu.Unlock()
	t.log.Info().Str("phone", canonical).Msg("phone marked invalid")
}

func (t *Tracker) IsInvalid(phone string) bool {
	canonical := alias.Canonicalize(phone)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.invalid[canonical]
}

// SweepStuck emits a non-fatal notification for every record sitting at
// server level longer than window. Network delay is not proof of
// invalidity, so the recipient is never marked invalid here. Returns
// the number of newly flagged records.
func (t *Tracker) SweepStuck(window time.Duration) int {
	cutoff := t.now().Add(-window)
	var stuck []*model.DeliveryRecord

	t.mu.Lock()
	for _, rec := range t.records {
		if rec.Level != model.AckServer || rec.StuckNotified {
			continue
		}
		if rec.ServerAt != nil && rec.ServerAt.Before(cutoff) {
			rec.StuckNotified = true
			stuck = append(stuck, rec)
		}
	}
	t.mu.Unlock()

	for _, rec := range stuck {
		t.log.Warn().
			Str("phone", rec.Phone).
			Str("message_id", rec.MessageID).
			Msg("message stuck at server ack")
		if err := t.feed.Publish(feed.Event{
			Type:       feed.EventAckStuck,
			CampaignID: rec.CampaignID,
			Phone:      rec.Phone,
			MessageID:  rec.MessageID,
			Level:      rec.Level.String(),
		}); err != nil {
			t.log.Warn().Err(err).Msg("failed to publish stuck notification")
		}
	}
	return len(stuck)
}

// Record returns the delivery record for a transport message id.
func (t *Tracker) Record(messageID string) (*model.DeliveryRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[messageID]
	return rec, ok
}
