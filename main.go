package main

import (
	"fmt"
	"os"
	"time"

	"plugin-pipeline/artifactstore"
	artifactmemory "plugin-pipeline/artifactstore/memory"
	artifacts3 "plugin-pipeline/artifactstore/s3"
	"plugin-pipeline/builder"
	"plugin-pipeline/config"
	"plugin-pipeline/dispatch"
	"plugin-pipeline/gate"
	"plugin-pipeline/memstore"
	"plugin-pipeline/orm"
	"plugin-pipeline/pipeline"
	"plugin-pipeline/telemetry"
	"plugin-pipeline/telemetry/kafka"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const rateLimitWindow = 60 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	initLogging(cfg)

	store := initializeStore(cfg)
	artifacts := initializeArtifactStore(cfg)
	sink := initializeTelemetrySink(cfg)

	pool := dispatch.NewPool(cfg.Dispatch.Workers)
	defer pool.Close()

	limiter := gate.NewLimiter(rateLimitWindow)
	limiter.StartSweeper(rateLimitWindow)
	defer limiter.Close()

	builderTimeout, err := time.ParseDuration(cfg.Builder.Timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid builder timeout value")
	}
	trigger := builder.NewClient(cfg.Builder.Endpoint, cfg.Builder.Token, builderTimeout)

	server := pipeline.NewServer(
		store,
		artifacts,
		trigger,
		sink,
		pool,
		cfg.Webhook.Secret,
		cfg.Builder.Token,
	)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		gate.SecurityHeaders(),
		gate.CORS(gate.AllowedOrigins(cfg)),
	)

	server.RegisterRoutes(
		router,
		gate.RateLimit(limiter, cfg.RateLimit.PublicPerMinute),
		gate.RateLimit(limiter, cfg.RateLimit.InternalPerMinute),
	)

	log.Info().
		Int("port", cfg.Port).
		Str("environment", cfg.Environment).
		Msg("plugin build pipeline listening")

	if err := router.Run(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatal().Err(err).Msg("server terminated")
	}
}

func initLogging(cfg *config.AppConfig) {
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)

		return
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func initializeStore(cfg *config.AppConfig) pipeline.Store {
	switch cfg.Persistence.Type {
	case "postgres":
		return orm.InitDB(cfg)
	case "memory":
		log.Warn().Msg("using in-memory store, records are lost on restart")

		return memstore.New()
	default:
		log.Warn().Msgf(
			"unknown persistence type '%s', defaulting to postgres",
			cfg.Persistence.Type,
		)

		return orm.InitDB(cfg)
	}
}

func initializeArtifactStore(cfg *config.AppConfig) artifactstore.Store {
	switch cfg.Artifacts.Type {
	case "s3":
		store, err := artifacts3.New(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize s3 artifact store")
		}
		log.Info().
			Str("bucket", cfg.Artifacts.S3.Bucket).
			Msg("s3 artifact store initialized")

		return store
	case "memory":
		log.Warn().Msg("using in-memory artifact store")

		return artifactmemory.New()
	default:
		log.Fatal().Msgf("unknown artifact store type '%s'", cfg.Artifacts.Type)

		return nil
	}
}

func initializeTelemetrySink(cfg *config.AppConfig) telemetry.Sink {
	switch cfg.Telemetry.Type {
	case "kafka":
		sink, err := kafka.New(cfg.Telemetry.Kafka.Brokers, cfg.Telemetry.Kafka.Topic)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize kafka telemetry sink")
		}
		log.Info().
			Strs("brokers", cfg.Telemetry.Kafka.Brokers).
			Str("topic", cfg.Telemetry.Kafka.Topic).
			Msg("kafka telemetry sink initialized")

		return sink
	case "log":
		return telemetry.LogSink{}
	default:
		log.Warn().Msgf(
			"unknown telemetry sink type '%s', defaulting to log",
			cfg.Telemetry.Type,
		)

		return telemetry.LogSink{}
	}
}
