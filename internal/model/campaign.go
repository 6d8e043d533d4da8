// internal/model/campaign.go
package model

import "time"

// Campaign lifecycle statuses.
const (
	StatusCreated             = "created"
	StatusSending             = "sending"
	StatusPaused              = "paused"
	StatusCompleted           = "completed"
	StatusCompletedWithErrors = "completed_with_errors"
)

type Campaign struct {
	ID           int        `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Status       string     `db:"status" json:"status"`
	DelaySeconds int        `db:"delay_seconds" json:"delay_seconds"`
	Media        *Media     `json:"media,omitempty"`
	Sent         int        `db:"messages_sent" json:"messages_sent"`
	Failed       int        `db:"messages_failed" json:"messages_failed"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Stats are the live counters of a campaign run. The engine keeps
// pending + sent + failed == total at every observable instant.
type Stats struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}
