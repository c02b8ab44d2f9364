// Package di provides dependency injection for database connections.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/findata/internal/clientdata"
	"github.com/aristath/findata/internal/config"
	"github.com/aristath/findata/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens client_data.db and applies its schema. In
// direct mode no database is opened.
func InitializeDatabases(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if !cfg.Cache.UseHybrid {
		log.Info().Msg("Direct mode, persistent layer disabled")
		return nil
	}

	// client_data.db - Remote API responses, always refetchable
	db, err := database.New(database.Config{
		Path:         filepath.Join(cfg.DataDir, "client_data.db"),
		Profile:      database.ProfileCache,
		Name:         "client_data",
		MaxOpenConns: cfg.Cache.DBMaxOpenConns,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize client_data database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("failed to apply client_data schema: %w", err)
	}

	container.ClientDataDB = db
	container.ClientDataRepo = clientdata.NewRepository(db.Conn(), db.Gate(), log)

	log.Info().
		Str("path", db.Path()).
		Int("max_open_conns", db.MaxOpenConns()).
		Msg("Persistent layer ready")

	return nil
}
