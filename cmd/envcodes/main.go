package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"voice-clone-studio/internal/config"
	"voice-clone-studio/internal/infra/db"
	"voice-clone-studio/internal/infra/logging"
	"voice-clone-studio/internal/usecase"
)

// envcodes prints the ledger as a single-line DEFAULT_ACTIVATION_CODES value,
// for carrying codes over to a fresh deployment.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.Log.Level = "warn"
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	codes, err := db.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}
	defer codes.Close()

	doc, err := usecase.NewAdminUseCase(codes, logger).Export(ctx)
	if err != nil {
		log.Fatalf("export: %v", err)
	}
	fmt.Printf("DEFAULT_ACTIVATION_CODES='%s'\n", doc)
}
