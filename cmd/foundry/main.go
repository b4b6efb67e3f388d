package main

import (
	"context"
	"log"
	"os"

	"github.com/seantiz/foundry/internal/api"
	"github.com/seantiz/foundry/internal/config"
	"github.com/seantiz/foundry/internal/events"
	"github.com/seantiz/foundry/internal/monitor"
	"github.com/seantiz/foundry/internal/procman"
	"github.com/seantiz/foundry/internal/store"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("foundry: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	proc := procman.NewManager(logger)
	broker := events.NewBroker()
	defer broker.Close()

	mon := monitor.New(db, proc, broker, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mon.Run(ctx)

	srv := api.NewServer(cfg, db, proc, mon, broker, logger)
	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
