package repository

import (
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/vortexsms/campaign-engine/internal/errors"
	"github.com/vortexsms/campaign-engine/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error)
	UpdateStatus(campaignID int, status string, stats model.Stats) error
	ReadStatus(campaignID int) (string, error)
	ListRecipients(campaignID int) ([]model.Recipient, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.StatusCreated
	}
	var mediaType, mediaURL, mediaCaption sql.NullString
	if c.Media != nil {
		mediaType = sql.NullString{String: c.Media.Type, Valid: true}
		mediaURL = sql.NullString{String: c.Media.URL, Valid: true}
		mediaCaption = sql.NullString{String: c.Media.Caption, Valid: true}
	}
	query := `
        INSERT INTO campaigns (name, status, delay_seconds, media_type, media_url, media_caption, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	return r.DB.QueryRow(query, c.Name, c.Status, c.DelaySeconds, mediaType, mediaURL, mediaCaption, c.CreatedAt).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `
        SELECT id, name, status, delay_seconds, media_type, media_url, media_caption,
               messages_sent, messages_failed, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	var mediaType, mediaURL, mediaCaption sql.NullString
	err := r.DB.QueryRow(query, id).Scan(
		&c.ID, &c.Name, &c.Status, &c.DelaySeconds,
		&mediaType, &mediaURL, &mediaCaption,
		&c.Sent, &c.Failed, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	if mediaType.Valid && mediaType.String != "" {
		c.Media = &model.Media{
			Type:    mediaType.String,
			URL:     mediaURL.String,
			Caption: mediaCaption.String,
		}
	}
	return &c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT id, name, status, delay_seconds, messages_sent, messages_failed, created_at, updated_at FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Status, &c.DelaySeconds, &c.Sent, &c.Failed, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	if status != "" {
		countQuery += " AND status=$1"
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

// UpdateStatus writes the lifecycle status together with the counters
// accumulated so far.
func (r *CampaignRepository) UpdateStatus(campaignID int, status string, stats model.Stats) error {
	query := `UPDATE campaigns SET status=$1, messages_sent=$2, messages_failed=$3, updated_at=NOW() WHERE id=$4`
	_, err := r.DB.Exec(query, status, stats.Sent, stats.Failed, campaignID)
	return err
}

// ReadStatus returns the persisted status, or "" for an unknown
// campaign.
func (r *CampaignRepository) ReadStatus(campaignID int) (string, error) {
	var status string
	err := r.DB.QueryRow(`SELECT status FROM campaigns WHERE id=$1`, campaignID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return status, nil
}

// ListRecipients loads a campaign's stored contact list in insertion
// order.
func (r *CampaignRepository) ListRecipients(campaignID int) ([]model.Recipient, error) {
	query := `SELECT id, phone, full_name, message FROM campaign_contacts WHERE campaign_id=$1 ORDER BY id`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []model.Recipient{}
	for rows.Next() {
		var rec model.Recipient
		var fullName sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Phone, &fullName, &rec.Message); err != nil {
			return nil, err
		}
		rec.FullName = fullName.String
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
