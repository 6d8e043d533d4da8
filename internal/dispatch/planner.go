// internal/dispatch/planner.go
package dispatch

import (
	appErrors "github.com/vortexsms/campaign-engine/internal/errors"
	"github.com/vortexsms/campaign-engine/internal/model"
)

// Assignment is one channel's contiguous slice of the recipient list.
type Assignment struct {
	ChannelID  string
	Recipients []model.Recipient
}

// Plan splits recipients equitably across channels: with N recipients
// and K channels, the first N mod K channels (in enumeration order)
// receive floor(N/K)+1, the rest floor(N/K). Slices are contiguous and
// preserve recipient order, so the same inputs always yield the same
// split.
func Plan(recipients []model.Recipient, channels []string) ([]Assignment, error) {
	if len(channels) == 0 {
		return nil, appErrors.NewNoChannelsAvailable()
	}

	base := len(recipients) / len(channels)
	remainder := len(recipients) % len(channels)

	assignments := make([]Assignment, 0, len(channels))
	idx := 0
	for i, ch := range channels {
		count := base
		if i < remainder {
			count++
		}
		assignments = append(assignments, Assignment{
			ChannelID:  ch,
			Recipients: recipients[idx : idx+count],
		})
		idx += count
	}
	return assignments, nil
}
