// internal/dispatch/worker.go
package dispatch

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/vortexsms/campaign-engine/internal/alias"
	"github.com/vortexsms/campaign-engine/internal/feed"
	"github.com/vortexsms/campaign-engine/internal/media"
	"github.com/vortexsms/campaign-engine/internal/model"
	"github.com/vortexsms/campaign-engine/internal/transport"
)

// runWorker is the per-channel send loop. It pops its own queue head,
// which the redistributor may be appending to concurrently, and stops
// on pause, channel failure, or an empty queue.
func (e *Engine) runWorker(r *run, channelID string) {
	defer e.workerExit(r, channelID)

	log := e.log.With().Int("campaign_id", r.campaignID).Str("channel_id", channelID).Logger()
	q := r.queues[channelID]

	lim := rate.NewLimiter(rate.Every(r.delay), 1)
	lim.Allow() // consume the initial token; pacing starts after the first send

	log.Info().Int("queued", q.len()).Dur("delay", r.delay).Msg("worker started")

	for {
		if r.isFailed(channelID) || r.isPaused() {
			return
		}
		rec, ok := q.popFront()
		if !ok {
			return
		}
		if !e.transport.IsReady(channelID) {
			q.pushFront(rec)
			e.failChannel(r, channelID)
			return
		}
		// A pause requested since the pop must win before the send.
		if r.isPaused() {
			q.pushFront(rec)
			log.Info().Str("phone", rec.Phone).Msg("paused before send, recipient returned to queue")
			return
		}

		if channelDown := e.sendOne(r, channelID, rec); channelDown {
			q.pushFront(rec)
			e.failChannel(r, channelID)
			return
		}

		if q.len() > 0 {
			if err := lim.Wait(context.Background()); err != nil {
				return
			}
			// the loop head re-checks pause after the delay, before the
			// next recipient is consumed
		}
	}
}

// sendOne attempts a single recipient. It updates stats and records for
// every outcome except a channel-scoped failure, which it reports to
// the caller so the recipient can be returned to the queue first.
func (e *Engine) sendOne(r *run, channelID string, rec model.Recipient) (channelDown bool) {
	log := e.log.With().Int("campaign_id", r.campaignID).Str("channel_id", channelID).Logger()

	phone := alias.Canonicalize(rec.Phone)
	if phone == "" {
		r.recordFailed()
		e.recordSendFailure(r, rec, "phone has no digits")
		return false
	}
	if e.tracker.IsInvalid(phone) {
		r.recordFailed()
		e.recordSendFailure(r, rec, "number known invalid")
		log.Debug().Str("phone", phone).Msg("skipping known-invalid number")
		return false
	}

	m := rec.Media
	if m == nil {
		m = r.media
	}
	var payload *transport.Media
	if m.HasAttachment() {
		p, err := media.FromURL(context.Background(), m)
		if err != nil {
			// media trouble downgrades to a text-only send
			log.Warn().Err(err).Str("url", m.URL).Msg("media fetch failed, sending text only")
		} else {
			payload = p
		}
	}

	res, err := e.transport.Send(context.Background(), channelID, phone, rec.Message, payload)
	if err != nil {
		if transport.IsChannelError(err) {
			log.Warn().Err(err).Msg("channel failed during send")
			return true
		}
		r.recordFailed()
		e.recordSendFailure(r, rec, err.Error())
		if errors.Is(err, transport.ErrRecipientRejected) || errors.Is(err, transport.ErrNotRegistered) {
			e.tracker.MarkInvalid(phone)
		}
		log.Warn().Err(err).Str("phone", phone).Msg("send failed")
		return false
	}

	// The transport may deliver under a renamed identifier; remember it
	// so acks and replies still correlate.
	if res.DeliveredTo != "" && alias.Canonicalize(res.DeliveredTo) != phone {
		e.resolver.Register(res.DeliveredTo, phone)
	}

	e.tracker.TrackSend(res.MessageID, r.campaignID, phone, channelID)
	r.recordSent()
	if err := e.store.RecordSend(r.campaignID, rec, res.MessageID, channelID); err != nil {
		log.Error().Err(err).Str("phone", phone).Msg("failed to persist send")
	}
	log.Info().Str("phone", phone).Str("message_id", res.MessageID).Msg("message sent")
	return false
}

func (e *Engine) recordSendFailure(r *run, rec model.Recipient, reason string) {
	if err := e.store.RecordSendFailure(r.campaignID, rec, reason); err != nil {
		e.log.Error().Err(err).Int("campaign_id", r.campaignID).Msg("failed to persist send failure")
	}
}

// failChannel is the failure monitor: it excludes the channel from the
// rest of the run and redistributes its undelivered queue across the
// survivors. Idempotent per channel; the channel's accumulated
// sent/failed counters are left untouched for reporting.
func (e *Engine) failChannel(r *run, channelID string) {
	r.mu.Lock()
	if r.failed[channelID] {
		r.mu.Unlock()
		return
	}
	r.failed[channelID] = true
	r.mu.Unlock()

	log := e.log.With().Int("campaign_id", r.campaignID).Str("channel_id", channelID).Logger()
	log.Warn().Msg("channel marked failed, redistributing pending recipients")
	e.publish(feed.Event{Type: feed.EventChannelFailed, CampaignID: r.campaignID, ChannelID: channelID})

	snapshot := r.queues[channelID].drain()
	if len(snapshot) == 0 {
		log.Info().Msg("no pending recipients to redistribute")
		return
	}

	// Prefer survivors that still have queue entries: their workers are
	// looping and will pick the extras up. Channels that already ran
	// dry are a fallback; the completion check relaunches workers for
	// them.
	r.mu.Lock()
	var busy, idle []string
	for _, ch := range r.order {
		if ch == channelID || r.failed[ch] {
			continue
		}
		if r.queues[ch].len() > 0 {
			busy = append(busy, ch)
		} else {
			idle = append(idle, ch)
		}
	}
	r.mu.Unlock()

	targets := busy
	if len(targets) == 0 {
		targets = idle
	}
	if len(targets) == 0 {
		r.mu.Lock()
		r.stalled += len(snapshot)
		r.mu.Unlock()
		r.queues[channelID].push(snapshot...)
		log.Error().Int("orphaned", len(snapshot)).Msg("no channels left for redistribution, recipients stay pending")
		return
	}

	plan, err := Plan(snapshot, targets)
	if err != nil {
		// unreachable: targets is non-empty
		log.Error().Err(err).Msg("redistribution planning failed")
		return
	}
	for _, a := range plan {
		if len(a.Recipients) == 0 {
			continue
		}
		r.queues[a.ChannelID].push(a.Recipients...)
		log.Info().
			Str("target_channel", a.ChannelID).
			Int("appended", len(a.Recipients)).
			Int("queue_total", r.queues[a.ChannelID].len()).
			Msg("recipients redistributed")
	}
}

// workerExit runs when a worker stops for any reason. The last worker
// out schedules the completion check after a settle delay so acks and
// responses still in flight get absorbed first.
func (e *Engine) workerExit(r *run, channelID string) {
	r.mu.Lock()
	r.activeWorkers--
	remaining := r.activeWorkers
	r.mu.Unlock()

	e.log.Info().
		Int("campaign_id", r.campaignID).
		Str("channel_id", channelID).
		Int("active_workers", remaining).
		Msg("worker stopped")

	if remaining == 0 {
		time.AfterFunc(e.settleDelay, func() { e.checkCompletion(r) })
	}
}

// checkCompletion confirms a run is done: zero pending and zero active
// workers, observed after the settle delay. A queue that still holds
// work with no worker alive (possible after a late redistribution) gets
// a fresh worker instead of being declared complete.
func (e *Engine) checkCompletion(r *run) {
	r.mu.Lock()
	if r.finished || r.paused || r.activeWorkers > 0 {
		r.mu.Unlock()
		return
	}

	if r.stats.Pending > 0 {
		launched := 0
		for _, ch := range r.order {
			if r.failed[ch] || r.queues[ch].len() == 0 || !e.transport.IsReady(ch) {
				continue
			}
			r.activeWorkers++
			launched++
			go e.runWorker(r, ch)
		}
		if launched > 0 {
			r.mu.Unlock()
			e.log.Info().Int("campaign_id", r.campaignID).Int("workers", launched).Msg("relaunched workers for orphaned queues")
			return
		}
		// Nothing can carry the remaining work: flag it rather than
		// report a clean completion.
		r.stalled = r.stats.Pending
	}

	r.finished = true
	status := model.StatusCompleted
	if r.stats.Failed > 0 || r.stats.Pending > 0 {
		status = model.StatusCompletedWithErrors
	}
	r.finalStatus = status
	stats := r.stats
	stalled := r.stalled
	r.mu.Unlock()

	if processed := stats.Sent + stats.Failed; processed < stats.Total {
		e.log.Warn().
			Int("campaign_id", r.campaignID).
			Int("total", stats.Total).
			Int("processed", processed).
			Int("stalled", stalled).
			Msg("count discrepancy at completion")
	}
	if err := e.store.RecordCampaignStatus(r.campaignID, status, stats); err != nil {
		e.log.Error().Err(err).Int("campaign_id", r.campaignID).Msg("failed to persist final status")
	}
	e.publish(feed.Event{Type: feed.EventCampaignStatus, CampaignID: r.campaignID, Status: status, Stats: &stats})
	e.guard.Release(r.campaignID)

	e.log.Info().
		Int("campaign_id", r.campaignID).
		Str("status", status).
		Int("sent", stats.Sent).
		Int("failed", stats.Failed).
		Msg("campaign completed")
}
