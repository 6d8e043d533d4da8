// internal/model/recipient.go
package model

// Recipient is one target phone plus its message payload for a campaign.
// Media, when set, overrides the campaign-level media for this recipient.
type Recipient struct {
	ID       int    `db:"id" json:"id"`
	Phone    string `db:"phone" json:"phone"`
	FullName string `db:"full_name" json:"full_name,omitempty"`
	Message  string `db:"message" json:"message"`
	Media    *Media `json:"media,omitempty"`
}
