package main

import (
	"fmt"

	"medcontrol/internal/config"
	"medcontrol/internal/database"
	"medcontrol/internal/scheduler"

	"go.uber.org/zap"
)

// alarmStore is the store selected by STORE_DRIVER. db is nil for the
// memory driver.
type alarmStore struct {
	store scheduler.AlarmStore
	db    *database.DB
}

func (s *alarmStore) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func openStore(cfg *config.Config, log *zap.Logger) (*alarmStore, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		mem := database.NewMemoryStore()
		if cfg.MemorySeedFile != "" {
			n, err := database.LoadSeedFile(mem, cfg.MemorySeedFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load seed file: %w", err)
			}
			log.Info("Memory store seeded",
				zap.String("file", cfg.MemorySeedFile),
				zap.Int("alarms", n),
			)
		} else {
			log.Warn("Memory store is empty, set MEMORY_SEED_FILE to load alarms")
		}
		return &alarmStore{store: mem}, nil

	default:
		db, err := database.NewDB(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Info("Connected to PostgreSQL")
		return &alarmStore{store: database.NewAlarmStore(db, log), db: db}, nil
	}
}
