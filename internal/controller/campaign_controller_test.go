package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortexsms/campaign-engine/internal/alias"
	"github.com/vortexsms/campaign-engine/internal/dispatch"
	appErrors "github.com/vortexsms/campaign-engine/internal/errors"
	"github.com/vortexsms/campaign-engine/internal/feed"
	"github.com/vortexsms/campaign-engine/internal/model"
	"github.com/vortexsms/campaign-engine/internal/service"
	"github.com/vortexsms/campaign-engine/internal/tracker"
	"github.com/vortexsms/campaign-engine/internal/transport"
)

type stubCampaignRepo struct {
	campaigns map[int]*model.Campaign
	nextID    int
}

func (r *stubCampaignRepo) Create(c *model.Campaign) error {
	c.ID = r.nextID
	r.nextID++
	r.campaigns[c.ID] = c
	return nil
}

func (r *stubCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return c, nil
}

func (r *stubCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	var out []*model.Campaign
	for _, c := range r.campaigns {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *stubCampaignRepo) UpdateStatus(campaignID int, status string, stats model.Stats) error {
	if c, ok := r.campaigns[campaignID]; ok {
		c.Status = status
	}
	return nil
}

func (r *stubCampaignRepo) ReadStatus(campaignID int) (string, error) {
	if c, ok := r.campaigns[campaignID]; ok {
		return c.Status, nil
	}
	return "", nil
}

func (r *stubCampaignRepo) ListRecipients(campaignID int) ([]model.Recipient, error) {
	return nil, nil
}

type stubMessageRepo struct{}

func (r *stubMessageRepo) RecordSend(campaignID int, rec model.Recipient, messageID, channelID string) error {
	return nil
}
func (r *stubMessageRepo) RecordSendFailure(campaignID int, rec model.Recipient, reason string) error {
	return nil
}
func (r *stubMessageRepo) RecordAckUpdate(phone string, level model.AckLevel, messageID string) error {
	return nil
}
func (r *stubMessageRepo) RecordResponse(phone, text, messageID string) error {
	return nil
}

func newTestServer() *httptest.Server {
	campaignRepo := &stubCampaignRepo{campaigns: make(map[int]*model.Campaign), nextID: 1}
	messageRepo := &stubMessageRepo{}
	mock := transport.NewMock("ch-a", "ch-b")
	resolver := alias.NewResolver()
	fd := feed.NewInMemoryFeed()
	tr := tracker.New(resolver, messageRepo, fd, zerolog.Nop())
	store := &service.EngineStore{Campaigns: campaignRepo, Messages: messageRepo}
	engine := dispatch.NewEngine(mock, tr, resolver, store, fd, dispatch.NewGuard(), 50*time.Millisecond, zerolog.Nop())

	svc := &service.CampaignService{
		CampaignRepo: campaignRepo,
		MessageRepo:  messageRepo,
		Engine:       engine,
		DefaultDelay: 1,
		Log:          zerolog.Nop(),
	}
	ctrl := &CampaignController{CampaignService: svc, Engine: engine}

	r := chi.NewRouter()
	r.Route("/api", ctrl.Routes)
	return httptest.NewServer(r)
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func createCampaign(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/campaigns", map[string]interface{}{
		"name":          "spring promo",
		"delay_seconds": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var c model.Campaign
	decode(t, resp, &c)
	return c.ID
}

func TestCreateCampaignEndpoint(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/campaigns", map[string]interface{}{
		"name":          "spring promo",
		"delay_seconds": 5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var c model.Campaign
	decode(t, resp, &c)
	assert.NotZero(t, c.ID)
	assert.Equal(t, model.StatusCreated, c.Status)
	assert.Equal(t, 5, c.DelaySeconds)
}

func TestCreateCampaignRequiresName(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/campaigns", map[string]interface{}{"delay_seconds": 5})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDispatchAndStatusEndpoints(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	id := createCampaign(t, srv)

	resp := postJSON(t, srv.URL+"/api/campaigns/1/dispatch", service.DispatchRequest{
		DelaySeconds: 1,
		Recipients: []model.Recipient{
			{Phone: "+56911111111", Message: "hola"},
			{Phone: "+56922222222", Message: "hola"},
		},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var summary dispatch.StartSummary
	decode(t, resp, &summary)
	assert.Equal(t, id, summary.CampaignID)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Channels)

	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/api/campaigns/1")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var st dispatch.Status
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			return false
		}
		return st.Status == model.StatusCompleted && st.Sent == 2
	}, 10*time.Second, 50*time.Millisecond)
}

func TestDispatchWithoutRecipientsFails(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	createCampaign(t, srv)

	resp := postJSON(t, srv.URL+"/api/campaigns/1/dispatch", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestGetUnknownCampaign(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/campaigns/99")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvalidCampaignID(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/campaigns/abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPauseResumeEndpoints(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	createCampaign(t, srv)

	resp := postJSON(t, srv.URL+"/api/campaigns/1/dispatch", service.DispatchRequest{
		DelaySeconds: 1,
		Recipients: []model.Recipient{
			{Phone: "+56911111111", Message: "hola"},
			{Phone: "+56922222222", Message: "hola"},
			{Phone: "+56933333333", Message: "hola"},
			{Phone: "+56944444444", Message: "hola"},
		},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/campaigns/1/pause", nil)
	var body map[string]string
	decode(t, resp, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.StatusPaused, body["status"])

	resp = postJSON(t, srv.URL+"/api/campaigns/1/resume", nil)
	decode(t, resp, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.StatusSending, body["status"])
}

func TestPauseUnknownCampaignEndpoint(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/campaigns/99/pause", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQueueStatusEndpoint(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/queues")
	require.NoError(t, err)

	var qs dispatch.QueueStatus
	decode(t, resp, &qs)
	assert.Equal(t, 0, qs.ActiveCampaigns)
}

func TestListCampaignsEndpoint(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	createCampaign(t, srv)
	createCampaign(t, srv)

	resp, err := http.Get(srv.URL + "/api/campaigns")
	require.NoError(t, err)

	var body struct {
		Data       []model.Campaign `json:"data"`
		Pagination map[string]int   `json:"pagination"`
	}
	decode(t, resp, &body)
	assert.Len(t, body.Data, 2)
	assert.Equal(t, 2, body.Pagination["total_count"])
}
