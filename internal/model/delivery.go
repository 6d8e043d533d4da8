// internal/model/delivery.go
package model

import "time"

// AckLevel is the transport-reported delivery confirmation stage.
// Levels are strictly ordered and never decrease on a record.
type AckLevel int

const (
	AckNone   AckLevel = 0
	AckServer AckLevel = 1
	AckDevice AckLevel = 2
	AckRead   AckLevel = 3
)

func (l AckLevel) String() string {
	switch l {
	case AckNone:
		return "none"
	case AckServer:
		return "server"
	case AckDevice:
		return "device"
	case AckRead:
		return "read"
	}
	return "unknown"
}

// DeliveryRecord tracks one sent message from dispatch until it is read
// or the campaign ends.
type DeliveryRecord struct {
	MessageID  string   `json:"message_id"`
	CampaignID int      `json:"campaign_id"`
	Phone      string   `json:"phone"` // canonical +digits form
	ChannelID  string   `json:"channel_id"`
	Level      AckLevel `json:"level"`

	SentAt   time.Time  `json:"sent_at"`
	ServerAt *time.Time `json:"server_at,omitempty"`
	DeviceAt *time.Time `json:"device_at,omitempty"`
	ReadAt   *time.Time `json:"read_at,omitempty"`

	Answered     bool       `json:"answered"`
	AnsweredAt   *time.Time `json:"answered_at,omitempty"`
	ResponseText string     `json:"response_text,omitempty"`

	// StuckNotified marks that the slow-delivery warning for this record
	// was already emitted, so the sweep does not repeat it.
	StuckNotified bool `json:"-"`
}
