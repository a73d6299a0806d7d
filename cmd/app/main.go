package main

import (
	"context"
	"flag"
	"log"
	"os"

	"PollPulse/internal/di"
	"PollPulse/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	once := flag.Bool("once", false, "run a single nowcast, print it, and exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s period=%s candidates=%v", cfg.Environment, cfg.Election.PeriodID, cfg.Election.Candidates)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if *once {
		if _, err := app.RunOnce(context.Background()); err != nil {
			log.Printf("nowcast failed: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
