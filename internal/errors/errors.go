// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrNoChannelsAvailable fails a dispatch before any send is attempted.
type ErrNoChannelsAvailable struct{}

func (e *ErrNoChannelsAvailable) Error() string {
	return "no ready channels available for dispatch"
}

func NewNoChannelsAvailable() error {
	return &ErrNoChannelsAvailable{}
}

// ErrCampaignAlreadyRunning rejects a dispatch while workers are active.
type ErrCampaignAlreadyRunning struct {
	CampaignID int
}

func (e *ErrCampaignAlreadyRunning) Error() string {
	return fmt.Sprintf("campaign %d is already dispatching", e.CampaignID)
}

func NewCampaignAlreadyRunning(id int) error {
	return &ErrCampaignAlreadyRunning{CampaignID: id}
}
