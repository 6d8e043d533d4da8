// internal/feed/feed.go
package feed

import (
	"time"

	"github.com/vortexsms/campaign-engine/internal/model"
)

// Event types published on the live-update feed.
const (
	EventCampaignStatus = "campaign_status"
	EventChannelFailed  = "channel_failed"
	EventAckUpdate      = "ack_update"
	EventAckStuck       = "ack_stuck"
	EventResponse       = "response"
)

// Event is one live-update entry. Publishing is fire-and-forget: a
// failed publish is logged by the caller and never blocks dispatch.
type Event struct {
	Type       string       `json:"type"`
	CampaignID int          `json:"campaign_id,omitempty"`
	ChannelID  string       `json:"channel_id,omitempty"`
	Phone      string       `json:"phone,omitempty"`
	MessageID  string       `json:"message_id,omitempty"`
	Level      string       `json:"level,omitempty"`
	Status     string       `json:"status,omitempty"`
	Text       string       `json:"text,omitempty"`
	Stats      *model.Stats `json:"stats,omitempty"`
	At         time.Time    `json:"at"`
}

// Feed publishes live-update events to subscribers
type Feed interface {
	Publish(ev Event) error
}
