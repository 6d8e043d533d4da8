// cmd/server/main.go
package main

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/vortexsms/campaign-engine/internal/alias"
	"github.com/vortexsms/campaign-engine/internal/config"
	"github.com/vortexsms/campaign-engine/internal/controller"
	"github.com/vortexsms/campaign-engine/internal/db"
	"github.com/vortexsms/campaign-engine/internal/dispatch"
	"github.com/vortexsms/campaign-engine/internal/feed"
	"github.com/vortexsms/campaign-engine/internal/logging"
	"github.com/vortexsms/campaign-engine/internal/repository"
	"github.com/vortexsms/campaign-engine/internal/service"
	"github.com/vortexsms/campaign-engine/internal/tracker"
	"github.com/vortexsms/campaign-engine/internal/transport"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file found, relying on OS environment variables")
	}

	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	conn, err := db.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()
	log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("connected to database")

	campaignRepo := &repository.CampaignRepository{DB: conn}
	messageRepo := &repository.MessageLogRepository{DB: conn}

	var fd feed.Feed
	if cfg.AMQPURL != "" {
		amqpFeed, err := feed.NewAMQPFeed(cfg.AMQPURL)
		if err != nil {
			log.Warn().Err(err).Msg("AMQP unavailable, falling back to in-memory feed")
			fd = feed.NewInMemoryFeed()
		} else {
			defer amqpFeed.Close()
			fd = amqpFeed
			log.Info().Msg("publishing live updates to AMQP")
		}
	} else {
		fd = feed.NewInMemoryFeed()
	}

	// The mock transport stands in for a real channel pool; channel
	// pairing and login live outside this service.
	mock := transport.NewMock()
	for i := 1; i <= cfg.MockChannels; i++ {
		mock.SetReady(fmt.Sprintf("channel-%02d", i), true)
	}
	mock.AutoAck(true)
	var tp transport.Transport = mock

	resolver := alias.NewResolver()
	tr := tracker.New(resolver, messageRepo, fd, log)
	tp.OnAck(tr.HandleAck)
	tp.OnInbound(tr.HandleInbound)

	guard := dispatch.NewGuard()
	store := &service.EngineStore{Campaigns: campaignRepo, Messages: messageRepo}
	engine := dispatch.NewEngine(tp, tr, resolver, store, fd, guard, cfg.SettleDelay, log)

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		MessageRepo:  messageRepo,
		Engine:       engine,
		DefaultDelay: cfg.DefaultDelaySeconds,
		Log:          log.With().Str("component", "service").Logger(),
	}

	jobs := campaignService.StartJobs(tr, cfg.StuckWindow)
	defer jobs.Stop()

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		Engine:          engine,
	}

	r := chi.NewRouter()
	r.Route("/api", campaignController.Routes)

	log.Info().Str("port", cfg.Port).Msg("server running")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
