package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/smartaccess/config"
	"github.com/Domenick1991/smartaccess/internal/backend"
	"github.com/Domenick1991/smartaccess/internal/bootstrap"
	"github.com/Domenick1991/smartaccess/internal/kafka"
	"github.com/Domenick1991/smartaccess/internal/logger"
	"github.com/Domenick1991/smartaccess/internal/notice"
	"github.com/Domenick1991/smartaccess/internal/service/bookings"
	"github.com/Domenick1991/smartaccess/internal/service/catalog"
	"github.com/Domenick1991/smartaccess/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger.Init("smartaccess-portal", cfg.Log.Env, cfg.Log.Level)
	if cfg.Log.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout())
	log.Info().Str("backend", cfg.Backend.URL).Msg("using booking backend")

	board := newBoard(ctx, cfg)
	defer board.Close()

	var publisher kafka.Publisher = kafka.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		if err := producer.CheckConnection(ctx); err != nil {
			log.Warn().Err(err).Msg("kafka unreachable, events will fail until it is back")
		}
		publisher = producer
	}

	sessions := session.NewRegistry(client, board, cfg.Portal.SessionIdle(),
		session.WithShellOptions(
			catalog.WithNoticeTTL(cfg.Portal.NoticeTTL()),
			catalog.WithPublisher(publisher, cfg.Kafka.BookingTopic),
		),
		session.WithAdminOptions(bookings.WithPublisher(publisher, cfg.Kafka.BookingTopic)),
	)
	defer sessions.Close()

	if err := bootstrap.Run(ctx, cfg, sessions); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

// newBoard shares notices through Redis when it is configured and reachable.
func newBoard(ctx context.Context, cfg *config.Config) notice.Board {
	if cfg.Redis.Addr == "" {
		return notice.NewMemoryBoard()
	}

	board := notice.NewRedisBoard(cfg.Redis)
	if err := board.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, keeping notices in memory")
		_ = board.Close()
		return notice.NewMemoryBoard()
	}
	return board
}
