// internal/dispatch/engine.go
package dispatch

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vortexsms/campaign-engine/internal/alias"
	appErrors "github.com/vortexsms/campaign-engine/internal/errors"
	"github.com/vortexsms/campaign-engine/internal/feed"
	"github.com/vortexsms/campaign-engine/internal/model"
	"github.com/vortexsms/campaign-engine/internal/tracker"
	"github.com/vortexsms/campaign-engine/internal/transport"
)

// Store is the slice of persistence the engine needs. Every call is
// fire-and-forget: failures are logged and never block dispatch.
type Store interface {
	RecordSend(campaignID int, rec model.Recipient, messageID, channelID string) error
	RecordSendFailure(campaignID int, rec model.Recipient, reason string) error
	RecordCampaignStatus(campaignID int, status string, stats model.Stats) error
	// ReadCampaignStatus returns the persisted status, or "" when the
	// campaign has none. Consulted before overwriting an externally-set
	// paused status.
	ReadCampaignStatus(campaignID int) (string, error)
}

// StartOptions tune one dispatch run.
type StartOptions struct {
	DelaySeconds int
	Media        *model.Media
	// Channels restricts dispatch to a subset of ready channels.
	Channels []string
}

// DistributionEntry is one channel's share of the initial split.
type DistributionEntry struct {
	ChannelID string `json:"channel_id"`
	Assigned  int    `json:"assigned"`
}

// StartSummary is returned synchronously by Start; processing continues
// in the background.
type StartSummary struct {
	CampaignID       int                 `json:"campaign_id"`
	Total            int                 `json:"total"`
	Channels         int                 `json:"channels"`
	EstimatedMinutes int                 `json:"estimated_minutes"`
	Distribution     []DistributionEntry `json:"distribution"`
}

// Status is a live snapshot of a campaign run.
type Status struct {
	CampaignID    int                 `json:"campaign_id"`
	Status        string              `json:"status"`
	Total         int                 `json:"total"`
	Sent          int                 `json:"sent"`
	Failed        int                 `json:"failed"`
	Pending       int                 `json:"pending"`
	ActiveWorkers int                 `json:"active_workers"`
	Stalled       int                 `json:"stalled,omitempty"`
	StartedAt     time.Time           `json:"started_at"`
	Distribution  []DistributionEntry `json:"distribution"`
}

// ChannelBacklog is one channel queue's pending count.
type ChannelBacklog struct {
	ChannelID  string `json:"channel_id"`
	CampaignID int    `json:"campaign_id"`
	Pending    int    `json:"pending"`
	Failed     bool   `json:"failed"`
}

// QueueStatus is the engine-wide queue overview.
type QueueStatus struct {
	ActiveCampaigns int              `json:"active_campaigns"`
	ActiveWorkers   int              `json:"active_workers"`
	Queues          []ChannelBacklog `json:"queues"`
}

// run is the in-memory state of one dispatched campaign.
type run struct {
	campaignID   int
	delay        time.Duration
	media        *model.Media
	startedAt    time.Time
	order        []string // channel enumeration order, fixed at dispatch
	queues       map[string]*channelQueue
	distribution []DistributionEntry

	mu            sync.Mutex
	stats         model.Stats
	failed        map[string]bool
	activeWorkers int
	paused        bool
	finished      bool
	finalStatus   string
	stalled       int
}

func (r *run) isPaused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

func (r *run) isFailed(channelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed[channelID]
}

func (r *run) recordSent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Sent++
	r.stats.Pending--
}

func (r *run) recordFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Failed++
	r.stats.Pending--
}

// Engine is the campaign controller: it builds the distribution plan,
// launches one worker per channel, owns pause/resume/status, and
// detects completion. All collaborators are injected at construction.
type Engine struct {
	mu   sync.Mutex
	runs map[int]*run

	transport   transport.Transport
	tracker     *tracker.Tracker
	resolver    *alias.Resolver
	store       Store
	feed        feed.Feed
	guard       *Guard
	settleDelay time.Duration
	log         zerolog.Logger
}

func NewEngine(tp transport.Transport, tr *tracker.Tracker, resolver *alias.Resolver, store Store, fd feed.Feed, guard *Guard, settleDelay time.Duration, log zerolog.Logger) *Engine {
	if settleDelay <= 0 {
		settleDelay = 2 * time.Second
	}
	return &Engine{
		runs:        make(map[int]*run),
		transport:   tp,
		tracker:     tr,
		resolver:    resolver,
		store:       store,
		feed:        fd,
		guard:       guard,
		settleDelay: settleDelay,
		log:         log.With().Str("component", "dispatch").Logger(),
	}
}

// Start plans the split and launches workers, returning immediately.
// It fails synchronously, before any send, when no ready channel
// matches or the campaign is already dispatching.
func (e *Engine) Start(campaignID int, recipients []model.Recipient, opts StartOptions) (*StartSummary, error) {
	ready := e.transport.ReadyChannels()
	if len(opts.Channels) > 0 {
		allowed := make(map[string]bool, len(opts.Channels))
		for _, ch := range opts.Channels {
			allowed[ch] = true
		}
		filtered := ready[:0:0]
		for _, ch := range ready {
			if allowed[ch] {
				filtered = append(filtered, ch)
			}
		}
		ready = filtered
	}
	if len(ready) == 0 {
		return nil, appErrors.NewNoChannelsAvailable()
	}

	delay := time.Duration(opts.DelaySeconds) * time.Second
	if delay <= 0 {
		delay = time.Second
	}

	plan, err := Plan(recipients, ready)
	if err != nil {
		return nil, err
	}

	r := &run{
		campaignID: campaignID,
		delay:      delay,
		media:      opts.Media,
		startedAt:  time.Now(),
		queues:     make(map[string]*channelQueue, len(plan)),
		failed:     make(map[string]bool),
		stats:      model.Stats{Total: len(recipients), Pending: len(recipients)},
	}
	maxAssigned := 0
	for _, a := range plan {
		r.order = append(r.order, a.ChannelID)
		r.queues[a.ChannelID] = newChannelQueue(a.Recipients)
		r.distribution = append(r.distribution, DistributionEntry{
			ChannelID: a.ChannelID,
			Assigned:  len(a.Recipients),
		})
		if len(a.Recipients) > maxAssigned {
			maxAssigned = len(a.Recipients)
		}
	}

	e.mu.Lock()
	if old, ok := e.runs[campaignID]; ok {
		old.mu.Lock()
		busy := old.activeWorkers > 0
		old.mu.Unlock()
		if busy {
			e.mu.Unlock()
			return nil, appErrors.NewCampaignAlreadyRunning(campaignID)
		}
	}
	e.runs[campaignID] = r
	e.mu.Unlock()

	e.guard.Register(campaignID)

	// An operator may have paused the campaign out of band; leave that
	// status alone.
	persisted, err := e.store.ReadCampaignStatus(campaignID)
	if err != nil {
		e.log.Warn().Err(err).Int("campaign_id", campaignID).Msg("failed to read persisted status")
	}
	if persisted == model.StatusPaused {
		e.log.Info().Int("campaign_id", campaignID).Msg("campaign persisted as paused, not overwriting status")
	} else if err := e.store.RecordCampaignStatus(campaignID, model.StatusSending, r.stats); err != nil {
		e.log.Error().Err(err).Int("campaign_id", campaignID).Msg("failed to persist sending status")
	}
	e.publish(feed.Event{Type: feed.EventCampaignStatus, CampaignID: campaignID, Status: model.StatusSending, Stats: &model.Stats{Total: r.stats.Total, Pending: r.stats.Pending}})

	launched := 0
	for _, a := range plan {
		if len(a.Recipients) == 0 {
			continue
		}
		r.mu.Lock()
		r.activeWorkers++
		r.mu.Unlock()
		launched++
		go e.runWorker(r, a.ChannelID)
	}
	if launched == 0 {
		time.AfterFunc(e.settleDelay, func() { e.checkCompletion(r) })
	}

	e.log.Info().
		Int("campaign_id", campaignID).
		Int("total", len(recipients)).
		Int("channels", len(ready)).
		Dur("delay", delay).
		Msg("campaign dispatched")

	return &StartSummary{
		CampaignID:       campaignID,
		Total:            len(recipients),
		Channels:         len(ready),
		EstimatedMinutes: (maxAssigned*int(delay.Seconds()) + 59) / 60,
		Distribution:     r.distribution,
	}, nil
}

// Pause asks every worker of the campaign to stop at its next check.
// In-flight sends are never cancelled. Idempotent.
func (e *Engine) Pause(campaignID int) error {
	r := e.run(campaignID)
	if r == nil {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	r.mu.Lock()
	changed := !r.paused && !r.finished
	if changed {
		r.paused = true
	}
	stats := r.stats
	r.mu.Unlock()
	if !changed {
		return nil
	}
	if err := e.store.RecordCampaignStatus(campaignID, model.StatusPaused, stats); err != nil {
		e.log.Error().Err(err).Int("campaign_id", campaignID).Msg("failed to persist paused status")
	}
	e.publish(feed.Event{Type: feed.EventCampaignStatus, CampaignID: campaignID, Status: model.StatusPaused, Stats: &stats})
	e.log.Info().Int("campaign_id", campaignID).Msg("campaign paused")
	return nil
}

// Resume clears the pause flag and restarts workers for any non-failed
// channel that still has queued work. Idempotent. A finished run cannot
// be resumed; it needs a fresh Start.
func (e *Engine) Resume(campaignID int) error {
	r := e.run(campaignID)
	if r == nil {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	r.mu.Lock()
	changed := r.paused && !r.finished
	if changed {
		r.paused = false
	}
	stats := r.stats
	r.mu.Unlock()
	if !changed {
		return nil
	}
	if err := e.store.RecordCampaignStatus(campaignID, model.StatusSending, stats); err != nil {
		e.log.Error().Err(err).Int("campaign_id", campaignID).Msg("failed to persist resumed status")
	}
	e.publish(feed.Event{Type: feed.EventCampaignStatus, CampaignID: campaignID, Status: model.StatusSending, Stats: &stats})
	e.log.Info().Int("campaign_id", campaignID).Msg("campaign resumed")
	go e.checkCompletion(r)
	return nil
}

// Status reports the live counters of a run.
func (e *Engine) Status(campaignID int) (*Status, error) {
	r := e.run(campaignID)
	if r == nil {
		return nil, appErrors.NewCampaignNotFound(campaignID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	status := model.StatusSending
	switch {
	case r.finished:
		status = r.finalStatus
	case r.paused:
		status = model.StatusPaused
	}
	return &Status{
		CampaignID:    r.campaignID,
		Status:        status,
		Total:         r.stats.Total,
		Sent:          r.stats.Sent,
		Failed:        r.stats.Failed,
		Pending:       r.stats.Pending,
		ActiveWorkers: r.activeWorkers,
		Stalled:       r.stalled,
		StartedAt:     r.startedAt,
		Distribution:  r.distribution,
	}, nil
}

// QueueStatus reports every channel queue across all runs.
func (e *Engine) QueueStatus() QueueStatus {
	e.mu.Lock()
	runs := make([]*run, 0, len(e.runs))
	for _, r := range e.runs {
		runs = append(runs, r)
	}
	e.mu.Unlock()

	out := QueueStatus{}
	for _, r := range runs {
		r.mu.Lock()
		finished := r.finished
		out.ActiveWorkers += r.activeWorkers
		r.mu.Unlock()
		if !finished {
			out.ActiveCampaigns++
		}
		for _, ch := range r.order {
			out.Queues = append(out.Queues, ChannelBacklog{
				ChannelID:  ch,
				CampaignID: r.campaignID,
				Pending:    r.queues[ch].len(),
				Failed:     r.isFailed(ch),
			})
		}
	}
	return out
}

// CleanupStale drops finished runs older than age from memory.
func (e *Engine) CleanupStale(age time.Duration) int {
	cutoff := time.Now().Add(-age)
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for id, r := range e.runs {
		r.mu.Lock()
		stale := r.finished && r.startedAt.Before(cutoff)
		r.mu.Unlock()
		if stale {
			delete(e.runs, id)
			removed++
		}
	}
	if removed > 0 {
		e.log.Info().Int("removed", removed).Msg("cleaned up stale campaign runs")
	}
	return removed
}

func (e *Engine) run(campaignID int) *run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runs[campaignID]
}

func (e *Engine) publish(ev feed.Event) {
	if err := e.feed.Publish(ev); err != nil {
		e.log.Warn().Err(err).Str("event", ev.Type).Msg("failed to publish feed event")
	}
}
