package storage

import (
	"fmt"
	"log"
	"os"
	"time"

	"pairchat/backend/internal/config"
	"pairchat/backend/internal/logger"
	"pairchat/backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Open connects to Postgres and tunes the connection pool.
func Open(cfg config.Database, logg *logger.Logger) (*gorm.DB, error) {
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	logg.Info("connected to Postgres", "max_open_conns", cfg.MaxOpenConns)
	return db, nil
}

// Migrate creates the tables and the canonical-pair indexes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.FriendRequest{},
		&models.Conversation{},
		&models.Message{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	least, greatest := "LEAST", "GREATEST"
	if db.Dialector.Name() == "sqlite" {
		least, greatest = "MIN", "MAX"
	}
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uk_users_email_lower ON users (LOWER(email))`,
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS uk_conversation_least_greatest ON conversations (%s(user_a, user_b), %s(user_a, user_b))`, least, greatest),
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migrate index: %w", err)
		}
	}
	return nil
}
