package orm

import (
	"fmt"
	"strings"

	"plugin-pipeline/config"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"

	"gorm.io/gorm/logger"

	"gorm.io/gorm"
)

// DB wraps the gorm handle; all registry and build record queries hang off it.
type DB struct {
	dbGorm *gorm.DB
}

func InitDB(cfg *config.AppConfig) *DB {
	dsn := fmt.Sprintf(
		"host='%s' port='%d' user='%s' password='%s' dbname='%s' sslmode='%s'",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.SSLMode,
	)

	dsn_redacted := strings.ReplaceAll(dsn, cfg.Database.Password, "*****")
	log.Debug().
		Msgf("Connecting to postgres using the following information: %s", dsn_redacted)

	dbGorm, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to the database")
	}

	log.Debug().Msg("Successfully connected to the database")

	// Run database migrations
	err = dbGorm.AutoMigrate(&Plugin{}, &PluginVersion{}, &BuildRecord{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	return &DB{dbGorm: dbGorm}
}
