package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"voice-clone-studio/internal/config"
	"voice-clone-studio/internal/domain/model"
	"voice-clone-studio/internal/infra/db"
	"voice-clone-studio/internal/infra/logging"
	"voice-clone-studio/internal/usecase"
)

// seed imports a {"codes": {...}} document (JSON or YAML) into the configured
// ledger. Codes that already exist are left alone.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file (optional)")
	file := flag.String("file", "", "codes document to import (.json, .yaml or .yml)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	codes, err := db.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}
	defer codes.Close()
	adminUC := usecase.NewAdminUseCase(codes, logger)

	if *file != "" {
		recs, err := readDocument(*file)
		if err != nil {
			log.Fatalf("read %s: %v", *file, err)
		}
		report, err := adminUC.Import(ctx, recs)
		if err != nil {
			log.Fatalf("import: %v", err)
		}
		fmt.Printf("inserted %d, skipped %d, invalid %d\n", len(report.Inserted), len(report.Skipped), len(report.Invalid))
		for code, reason := range report.Invalid {
			fmt.Printf("  ! %q: %s\n", code, reason)
		}
	}

	list, err := adminUC.List(ctx)
	if err != nil {
		log.Fatalf("list codes: %v", err)
	}
	fmt.Printf("%d codes in %s ledger\n", len(list), codes.Backend())
	for _, info := range list {
		fmt.Printf("  - %s voices=%d/%d characters=%d/%d expires=%s disabled=%t\n",
			info.Code, info.UsedVoices, info.MaxVoices, info.UsedCharacters, info.MaxCharacters,
			expiry(info.ExpiresAt), info.Disabled)
	}
}

func readDocument(path string) ([]model.ActivationRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, err
		}
	}
	byCode, err := model.DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	recs := make([]model.ActivationRecord, 0, len(byCode))
	for code, rec := range byCode {
		rec.Code = code
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Code < recs[j].Code })
	return recs, nil
}

func expiry(d *model.Date) string {
	if d == nil {
		return "never"
	}
	return d.String()
}
