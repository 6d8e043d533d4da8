// internal/tracker/correlator.go
package tracker

import (
	"github.com/vortexsms/campaign-engine/internal/alias"
	"github.com/vortexsms/campaign-engine/internal/feed"
	"github.com/vortexsms/campaign-engine/internal/model"
	"github.com/vortexsms/campaign-engine/internal/transport"
)

// HandleInbound links an incoming message to the outbound send that
// provoked it. Match order, first hit wins:
//
//  1. exact back-reference, when the event carries the originating
//     transport message id
//  2. most recent unanswered record for the phone with ack >= server
//  3. the phone's registered transport alias, for identifier drift
//
// Exactly one match flips answered; later messages from the same phone
// only refresh the stored text. There is deliberately no "most recent
// send to anyone" fallback: it links replies to the wrong recipient.
func (t *Tracker) HandleInbound(ev transport.InboundEvent) {
	phone := t.resolver.Resolve(ev.FromAlias)
	if phone == "" {
		return
	}

	t.mu.Lock()
	rec := t.matchLocked(phone, ev.ReplyToID)
	if rec == nil {
		// No outstanding send; keep the latest text on an already
		// answered record if one exists.
		if prev := t.latestLocked(phone, true); prev != nil {
			prev.ResponseText = ev.Body
		}
		t.mu.Unlock()
		t.log.Debug().Str("phone", phone).Msg("inbound message with no outstanding send")
		return
	}

	first := !rec.Answered
	if first {
		rec.Answered = true
		ts := t.now()
		rec.AnsweredAt = &ts
	}
	rec.ResponseText = ev.Body
	messageID := rec.MessageID
	campaignID := rec.CampaignID
	t.mu.Unlock()

	if err := t.store.RecordResponse(phone, ev.Body, messageID); err != nil {
		t.log.Error().Err(err).Str("phone", phone).Msg("failed to persist response")
	}
	if first {
		if err := t.feed.Publish(feed.Event{
			Type:       feed.EventResponse,
			CampaignID: campaignID,
			Phone:      phone,
			MessageID:  messageID,
			Text:       ev.Body,
		}); err != nil {
			t.log.Warn().Err(err).Msg("failed to publish response event")
		}
		t.log.Info().Str("phone", phone).Msg("response linked to send")
	}
}

// matchLocked runs the correlation ladder. Caller holds t.mu.
func (t *Tracker) matchLocked(phone, replyToID string) *model.DeliveryRecord {
	if replyToID != "" {
		if rec, ok := t.records[replyToID]; ok {
			return rec
		}
	}
	if rec := t.latestLocked(phone, false); rec != nil {
		return rec
	}
	// Identifier drift: the phone we resolved may differ from the key
	// the records were filed under when the transport renamed it.
	if al, ok := t.resolver.AliasFor(phone); ok {
		if rec := t.latestLocked(alias.Canonicalize(al), false); rec != nil {
			return rec
		}
	}
	return nil
}

// latestLocked returns the newest record for phone that is answered or
// unanswered-with-server-ack, depending on answered. Caller holds t.mu.
func (t *Tracker) latestLocked(phone string, answered bool) *model.DeliveryRecord {
	recs := t.byPhone[phone]
	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]
		if answered {
			if rec.Answered {
				return rec
			}
			continue
		}
		if !rec.Answered && rec.Level >= model.AckServer {
			return rec
		}
	}
	return nil
}
