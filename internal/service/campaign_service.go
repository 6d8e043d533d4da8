// internal/service/campaign_service.go
package service

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/vortexsms/campaign-engine/internal/config"
	"github.com/vortexsms/campaign-engine/internal/dispatch"
	appErrors "github.com/vortexsms/campaign-engine/internal/errors"
	"github.com/vortexsms/campaign-engine/internal/model"
	"github.com/vortexsms/campaign-engine/internal/repository"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	MessageRepo  repository.MessageLogRepositoryInterface
	Engine       *dispatch.Engine
	DefaultDelay int
	Log          zerolog.Logger
}

// DispatchRequest is the dispatch entrypoint payload. Recipients, when
// empty, are loaded from the campaign's stored contact list.
type DispatchRequest struct {
	Recipients   []model.Recipient `json:"recipients"`
	DelaySeconds int               `json:"delay_seconds"`
	Channels     []string          `json:"channels"`
	Media        *model.Media      `json:"media"`
}

func (s *CampaignService) CreateCampaign(name string, delaySeconds int, media *model.Media) (*model.Campaign, error) {
	if delaySeconds == 0 {
		delaySeconds = s.DefaultDelay
	}
	c := &model.Campaign{
		Name:         name,
		Status:       model.StatusCreated,
		DelaySeconds: config.ClampDelay(delaySeconds),
		Media:        media,
	}
	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// Dispatch validates the request against the stored campaign and hands
// it to the engine. It returns the distribution summary synchronously;
// sending continues in the background.
func (s *CampaignService) Dispatch(campaignID int, req DispatchRequest) (*dispatch.StartSummary, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	recipients := req.Recipients
	if len(recipients) == 0 {
		recipients, err = s.CampaignRepo.ListRecipients(campaignID)
		if err != nil {
			return nil, err
		}
	}
	if len(recipients) == 0 {
		return nil, errors.New("campaign has no recipients")
	}

	delay := req.DelaySeconds
	if delay == 0 {
		delay = campaign.DelaySeconds
	}
	if delay == 0 {
		delay = s.DefaultDelay
	}

	media := req.Media
	if media == nil {
		media = campaign.Media
	}

	return s.Engine.Start(campaignID, recipients, dispatch.StartOptions{
		DelaySeconds: config.ClampDelay(delay),
		Media:        media,
		Channels:     req.Channels,
	})
}

// Status reports live engine counters when the campaign has an active
// run, falling back to the persisted record otherwise.
func (s *CampaignService) Status(campaignID int) (*dispatch.Status, error) {
	st, err := s.Engine.Status(campaignID)
	if err == nil {
		return st, nil
	}
	var notFound *appErrors.ErrCampaignNotFound
	if !errors.As(err, &notFound) {
		return nil, err
	}

	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	return &dispatch.Status{
		CampaignID: campaign.ID,
		Status:     campaign.Status,
		Total:      campaign.Sent + campaign.Failed,
		Sent:       campaign.Sent,
		Failed:     campaign.Failed,
		StartedAt:  campaign.CreatedAt,
	}, nil
}

func (s *CampaignService) Pause(campaignID int) error {
	return s.Engine.Pause(campaignID)
}

func (s *CampaignService) Resume(campaignID int) error {
	return s.Engine.Resume(campaignID)
}

// EngineStore adapts the repositories to the narrow persistence
// interface the engine depends on.
type EngineStore struct {
	Campaigns repository.CampaignRepositoryInterface
	Messages  repository.MessageLogRepositoryInterface
}

func (s *EngineStore) RecordSend(campaignID int, rec model.Recipient, messageID, channelID string) error {
	return s.Messages.RecordSend(campaignID, rec, messageID, channelID)
}

func (s *EngineStore) RecordSendFailure(campaignID int, rec model.Recipient, reason string) error {
	return s.Messages.RecordSendFailure(campaignID, rec, reason)
}

func (s *EngineStore) RecordCampaignStatus(campaignID int, status string, stats model.Stats) error {
	return s.Campaigns.UpdateStatus(campaignID, status, stats)
}

func (s *EngineStore) ReadCampaignStatus(campaignID int) (string, error) {
	return s.Campaigns.ReadStatus(campaignID)
}

var _ dispatch.Store = (*EngineStore)(nil)
