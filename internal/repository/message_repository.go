package repository

import (
	"database/sql"

	"github.com/vortexsms/campaign-engine/internal/model"
)

type MessageLogRepositoryInterface interface {
	RecordSend(campaignID int, rec model.Recipient, messageID, channelID string) error
	RecordSendFailure(campaignID int, rec model.Recipient, reason string) error
	RecordAckUpdate(phone string, level model.AckLevel, messageID string) error
	RecordResponse(phone, text, messageID string) error
}

// MessageLogRepository persists per-message delivery state to the
// message_logs and campaign_responses tables.
type MessageLogRepository struct {
	DB *sql.DB
}

// ackStatus maps an ack level onto the message_logs status column.
func ackStatus(level model.AckLevel) string {
	switch level {
	case model.AckServer:
		return "server"
	case model.AckDevice:
		return "delivered"
	case model.AckRead:
		return "read"
	}
	return "sent"
}

func (r *MessageLogRepository) RecordSend(campaignID int, rec model.Recipient, messageID, channelID string) error {
	query := `
        INSERT INTO message_logs (campaign_id, phone, full_name, message, message_id, channel_id, status, sent_at)
        VALUES ($1, $2, $3, $4, $5, $6, 'sent', NOW())
    `
	_, err := r.DB.Exec(query, campaignID, rec.Phone, rec.FullName, rec.Message, messageID, channelID)
	return err
}

func (r *MessageLogRepository) RecordSendFailure(campaignID int, rec model.Recipient, reason string) error {
	query := `
        INSERT INTO message_logs (campaign_id, phone, full_name, message, status, error_message, sent_at)
        VALUES ($1, $2, $3, $4, 'failed', $5, NOW())
    `
	_, err := r.DB.Exec(query, campaignID, rec.Phone, rec.FullName, rec.Message, reason)
	return err
}

func (r *MessageLogRepository) RecordAckUpdate(phone string, level model.AckLevel, messageID string) error {
	query := `UPDATE message_logs SET status=$1, updated_at=NOW() WHERE message_id=$2`
	_, err := r.DB.Exec(query, ackStatus(level), messageID)
	return err
}

func (r *MessageLogRepository) RecordResponse(phone, text, messageID string) error {
	query := `
        INSERT INTO campaign_responses (phone, response_text, message_id, received_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (message_id) DO UPDATE SET response_text=EXCLUDED.response_text, received_at=NOW()
    `
	_, err := r.DB.Exec(query, phone, text, messageID)
	return err
}

var _ MessageLogRepositoryInterface = (*MessageLogRepository)(nil)
