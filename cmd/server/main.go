package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/courtlens/courtlens/internal/config"
	"github.com/courtlens/courtlens/internal/database"
	"github.com/courtlens/courtlens/internal/server"
	"github.com/courtlens/courtlens/pkg/logger"
)

func main() {
	var migrate bool
	flag.BoolVar(&migrate, "migrate", false, "Run database migrations")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to initialize database", "error", err)
	}

	if migrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("Failed to run migrations", "error", err)
		}
		log.Info("Database migrations completed successfully")
		return
	}

	srv, err := server.New(cfg, db, log)
	if err != nil {
		log.Fatal("Failed to initialize server", "error", err)
	}

	log.Info("Starting CourtLens",
		"host", cfg.Host,
		"port", cfg.Port,
		"court", cfg.CourtName,
		"strategy", cfg.ResolverStrategy,
	)

	if err := srv.Run(); err != nil {
		log.Fatal("Server failed to start", "error", err)
	}
}
