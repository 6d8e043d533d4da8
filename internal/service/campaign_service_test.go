package service

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortexsms/campaign-engine/internal/alias"
	"github.com/vortexsms/campaign-engine/internal/dispatch"
	appErrors "github.com/vortexsms/campaign-engine/internal/errors"
	"github.com/vortexsms/campaign-engine/internal/feed"
	"github.com/vortexsms/campaign-engine/internal/model"
	"github.com/vortexsms/campaign-engine/internal/tracker"
	"github.com/vortexsms/campaign-engine/internal/transport"
)

type fakeCampaignRepo struct {
	campaigns  map[int]*model.Campaign
	recipients map[int][]model.Recipient
	nextID     int
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{
		campaigns:  make(map[int]*model.Campaign),
		recipients: make(map[int][]model.Recipient),
		nextID:     1,
	}
}

func (r *fakeCampaignRepo) Create(c *model.Campaign) error {
	c.ID = r.nextID
	r.nextID++
	r.campaigns[c.ID] = c
	return nil
}

func (r *fakeCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return c, nil
}

func (r *fakeCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	var out []*model.Campaign
	for _, c := range r.campaigns {
		if status == "" || c.Status == status {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (r *fakeCampaignRepo) UpdateStatus(campaignID int, status string, stats model.Stats) error {
	if c, ok := r.campaigns[campaignID]; ok {
		c.Status = status
		c.Sent = stats.Sent
		c.Failed = stats.Failed
	}
	return nil
}

func (r *fakeCampaignRepo) ReadStatus(campaignID int) (string, error) {
	if c, ok := r.campaigns[campaignID]; ok {
		return c.Status, nil
	}
	return "", nil
}

func (r *fakeCampaignRepo) ListRecipients(campaignID int) ([]model.Recipient, error) {
	return r.recipients[campaignID], nil
}

type fakeMessageRepo struct{}

func (r *fakeMessageRepo) RecordSend(campaignID int, rec model.Recipient, messageID, channelID string) error {
	return nil
}
func (r *fakeMessageRepo) RecordSendFailure(campaignID int, rec model.Recipient, reason string) error {
	return nil
}
func (r *fakeMessageRepo) RecordAckUpdate(phone string, level model.AckLevel, messageID string) error {
	return nil
}
func (r *fakeMessageRepo) RecordResponse(phone, text, messageID string) error {
	return nil
}

func newTestService(channels ...string) (*CampaignService, *fakeCampaignRepo, *transport.Mock) {
	campaignRepo := newFakeCampaignRepo()
	messageRepo := &fakeMessageRepo{}
	mock := transport.NewMock(channels...)
	resolver := alias.NewResolver()
	fd := feed.NewInMemoryFeed()
	tr := tracker.New(resolver, messageRepo, fd, zerolog.Nop())
	store := &EngineStore{Campaigns: campaignRepo, Messages: messageRepo}
	engine := dispatch.NewEngine(mock, tr, resolver, store, fd, dispatch.NewGuard(), 50*time.Millisecond, zerolog.Nop())

	svc := &CampaignService{
		CampaignRepo: campaignRepo,
		MessageRepo:  messageRepo,
		Engine:       engine,
		DefaultDelay: 15,
		Log:          zerolog.Nop(),
	}
	return svc, campaignRepo, mock
}

func TestCreateCampaignClampsDelay(t *testing.T) {
	svc, _, _ := newTestService("ch-a")

	c, err := svc.CreateCampaign("too fast", -5, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, c.DelaySeconds)

	c, err = svc.CreateCampaign("too slow", 9999, nil)
	require.NoError(t, err)
	assert.Equal(t, 300, c.DelaySeconds)

	c, err = svc.CreateCampaign("default", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 15, c.DelaySeconds)
	assert.Equal(t, model.StatusCreated, c.Status)
}

func TestDispatchUsesStoredRecipients(t *testing.T) {
	svc, repo, mock := newTestService("ch-a", "ch-b")

	c, err := svc.CreateCampaign("stored", 1, nil)
	require.NoError(t, err)
	repo.recipients[c.ID] = []model.Recipient{
		{Phone: "+56911111111", Message: "hola"},
		{Phone: "+56922222222", Message: "hola"},
	}

	summary, err := svc.Dispatch(c.ID, DispatchRequest{DelaySeconds: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)

	require.Eventually(t, func() bool {
		return len(mock.Sent()) == 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDispatchInlineRecipientsWinOverStored(t *testing.T) {
	svc, repo, _ := newTestService("ch-a")

	c, err := svc.CreateCampaign("inline", 1, nil)
	require.NoError(t, err)
	repo.recipients[c.ID] = []model.Recipient{{Phone: "+56911111111", Message: "stored"}}

	summary, err := svc.Dispatch(c.ID, DispatchRequest{
		DelaySeconds: 1,
		Recipients: []model.Recipient{
			{Phone: "+56922222222", Message: "a"},
			{Phone: "+56933333333", Message: "b"},
			{Phone: "+56944444444", Message: "c"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
}

func TestDispatchWithoutRecipients(t *testing.T) {
	svc, _, _ := newTestService("ch-a")

	c, err := svc.CreateCampaign("empty", 1, nil)
	require.NoError(t, err)

	_, err = svc.Dispatch(c.ID, DispatchRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recipients")
}

func TestDispatchUnknownCampaign(t *testing.T) {
	svc, _, _ := newTestService("ch-a")
	_, err := svc.Dispatch(42, DispatchRequest{})
	require.Error(t, err)
	assert.IsType(t, &appErrors.ErrCampaignNotFound{}, err)
}

func TestStatusFallsBackToPersistedRecord(t *testing.T) {
	svc, repo, _ := newTestService("ch-a")

	c, err := svc.CreateCampaign("old", 1, nil)
	require.NoError(t, err)
	repo.campaigns[c.ID].Status = model.StatusCompleted
	repo.campaigns[c.ID].Sent = 10
	repo.campaigns[c.ID].Failed = 2

	// no engine run exists for this campaign
	st, err := svc.Status(c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, st.Status)
	assert.Equal(t, 10, st.Sent)
	assert.Equal(t, 2, st.Failed)
	assert.Equal(t, 12, st.Total)
}

func TestListCampaignsPagination(t *testing.T) {
	svc, _, _ := newTestService("ch-a")
	for i := 0; i < 3; i++ {
		_, err := svc.CreateCampaign("c", 1, nil)
		require.NoError(t, err)
	}

	campaigns, pagination, err := svc.ListCampaigns(0, 0, "")
	require.NoError(t, err)
	assert.Len(t, campaigns, 3)
	assert.Equal(t, 1, pagination["page"])
	assert.Equal(t, 20, pagination["page_size"])
	assert.Equal(t, 3, pagination["total_count"])
	assert.Equal(t, 1, pagination["total_pages"])
}
