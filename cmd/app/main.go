package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"SessionLens/internal/di"
	"SessionLens/internal/domain/models"
	"SessionLens/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "config file path (defaults only when empty)")
	input := flag.String("input", "", "analyse this file once and print the result as JSON")
	persist := flag.Bool("persist", false, "save the enriched dataset to ClickHouse")
	serve := flag.Bool("serve", false, "start the HTTP API")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *input == "" && !*serve && !cfg.Server.Enabled {
		log.Fatal("nothing to do: pass -input or -serve")
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *input != "" {
		if err := app.RunOnce(ctx, *input, *persist, os.Stdout); err != nil {
			var re *models.RunError
			if errors.As(err, &re) {
				log.Printf("run failed at %s: %s", re.Stage, strings.Join(append(re.Errors, re.Warnings...), "; "))
			} else {
				log.Printf("run failed: %v", err)
			}
			cleanup()
			os.Exit(1)
		}
	}

	if *serve || cfg.Server.Enabled {
		if err := app.Serve(ctx); err != nil {
			log.Printf("app error: %v", err)
			cleanup()
			os.Exit(1)
		}
	}
}
