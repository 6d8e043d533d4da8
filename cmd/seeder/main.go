// cmd/seeder/main.go
//
// seeder creates the schema if needed and inserts a demo campaign with
// a small contact list, for local development against the mock
// transport.
package main

import (
	"fmt"

	"github.com/joho/godotenv"

	"github.com/vortexsms/campaign-engine/internal/config"
	"github.com/vortexsms/campaign-engine/internal/db"
	"github.com/vortexsms/campaign-engine/internal/logging"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS campaigns (
        id SERIAL PRIMARY KEY,
        name TEXT NOT NULL,
        status TEXT NOT NULL DEFAULT 'created',
        delay_seconds INT NOT NULL DEFAULT 15,
        media_type TEXT,
        media_url TEXT,
        media_caption TEXT,
        messages_sent INT NOT NULL DEFAULT 0,
        messages_failed INT NOT NULL DEFAULT 0,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ
    )`,
	`CREATE TABLE IF NOT EXISTS campaign_contacts (
        id SERIAL PRIMARY KEY,
        campaign_id INT NOT NULL REFERENCES campaigns(id),
        phone TEXT NOT NULL,
        full_name TEXT,
        message TEXT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS message_logs (
        id SERIAL PRIMARY KEY,
        campaign_id INT NOT NULL,
        phone TEXT NOT NULL,
        full_name TEXT,
        message TEXT,
        message_id TEXT,
        channel_id TEXT,
        status TEXT NOT NULL DEFAULT 'sent',
        error_message TEXT,
        sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ
    )`,
	`CREATE UNIQUE INDEX IF NOT EXISTS message_logs_message_id ON message_logs(message_id)`,
	`CREATE TABLE IF NOT EXISTS campaign_responses (
        id SERIAL PRIMARY KEY,
        phone TEXT NOT NULL,
        response_text TEXT,
        message_id TEXT UNIQUE,
        received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
}

func main() {
	godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	conn, err := db.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			log.Fatal().Err(err).Msg("failed to create schema")
		}
	}
	log.Info().Msg("schema ready")

	var campaignID int
	err = conn.QueryRow(
		`INSERT INTO campaigns (name, delay_seconds) VALUES ($1, $2) RETURNING id`,
		"Demo campaign", 2,
	).Scan(&campaignID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to insert campaign")
	}

	contacts := []struct {
		phone, name string
	}{
		{"+56911111111", "Alice Rojas"},
		{"+56922222222", "Bruno Díaz"},
		{"+56933333333", "Carla Soto"},
		{"+56944444444", "Diego Paz"},
		{"+56955555555", "Elena Vera"},
	}
	for _, c := range contacts {
		msg := fmt.Sprintf("Hola %s! Este es un mensaje de prueba.", c.name)
		if _, err := conn.Exec(
			`INSERT INTO campaign_contacts (campaign_id, phone, full_name, message) VALUES ($1, $2, $3, $4)`,
			campaignID, c.phone, c.name, msg,
		); err != nil {
			log.Fatal().Err(err).Msg("failed to insert contact")
		}
	}

	log.Info().Int("campaign_id", campaignID).Int("contacts", len(contacts)).Msg("demo campaign seeded")
}
