package dispatch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/vortexsms/campaign-engine/internal/errors"
	"github.com/vortexsms/campaign-engine/internal/model"
)

func recipients(n int) []model.Recipient {
	out := make([]model.Recipient, n)
	for i := range out {
		out[i] = model.Recipient{
			Phone:   fmt.Sprintf("+5691000%04d", i),
			Message: "hola",
		}
	}
	return out
}

func TestPlanRemainderGoesToFirstChannels(t *testing.T) {
	plan, err := Plan(recipients(10), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, plan, 3)

	assert.Equal(t, 4, len(plan[0].Recipients))
	assert.Equal(t, 3, len(plan[1].Recipients))
	assert.Equal(t, 3, len(plan[2].Recipients))
}

func TestPlanEvenSplit(t *testing.T) {
	plan, err := Plan(recipients(5), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	for _, a := range plan {
		assert.Equal(t, 1, len(a.Recipients))
	}
}

func TestPlanMoreChannelsThanRecipients(t *testing.T) {
	plan, err := Plan(recipients(2), []string{"a", "b", "c", "d"})
	require.NoError(t, err)

	assert.Equal(t, 1, len(plan[0].Recipients))
	assert.Equal(t, 1, len(plan[1].Recipients))
	assert.Equal(t, 0, len(plan[2].Recipients))
	assert.Equal(t, 0, len(plan[3].Recipients))
}

func TestPlanPreservesOrderAndCoversEveryone(t *testing.T) {
	recs := recipients(13)
	plan, err := Plan(recs, []string{"a", "b", "c", "d"})
	require.NoError(t, err)

	var flat []model.Recipient
	for _, a := range plan {
		flat = append(flat, a.Recipients...)
	}
	require.Equal(t, len(recs), len(flat))
	for i := range recs {
		assert.Equal(t, recs[i].Phone, flat[i].Phone)
	}
}

func TestPlanIsDeterministic(t *testing.T) {
	recs := recipients(7)
	channels := []string{"x", "y", "z"}
	first, err := Plan(recs, channels)
	require.NoError(t, err)
	second, err := Plan(recs, channels)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPlanNoChannels(t *testing.T) {
	_, err := Plan(recipients(3), nil)
	require.Error(t, err)
	assert.IsType(t, &appErrors.ErrNoChannelsAvailable{}, err)
}
