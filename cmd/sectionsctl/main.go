// Copyright (c) 2025 github.com/orangefrg
// Licensed under the Apache License, Version 2.0

// Command sectionsctl is the catalog's CLI entrypoint: it wires YAML
// configuration, a Postgres connection, and the persist.Store tiered
// engine into flag-driven subcommands (setup/truncate/recreate the
// catalog tables, run detection, or serve the
// mutation HTTP surface). Structure follows the teacher's cmd/main.go
// flag-parsing and emoji-log idiom, re-pointed at this domain.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"sectioncat/internal/config"
	"sectioncat/internal/persist"
	"sectioncat/internal/pggeo"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	setupDB := flag.Bool("setup-db", false, "Create activity and catalog tables and exit")
	truncateDB := flag.Bool("truncate-db", false, "Truncate catalog tables and exit")
	recreateDB := flag.Bool("recreate-db", false, "Drop and recreate activity tables and exit")
	validateSchema := flag.Bool("validate-schema", false, "Validate activity table schema and exit")
	forceRebuild := flag.Bool("force-rebuild", false, "With -validate-schema, rebuild mismatched tables (WARNING: deletes data)")
	detect := flag.Bool("detect", false, "Run section detection over every resident activity and persist the result")
	serve := flag.Bool("serve", false, "Run the query/mutation HTTP surface")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	ctx := context.Background()
	conn, err := pggeo.Connect(ctx, cfg.Database.User, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	defer conn.Close(ctx)

	if *recreateDB {
		log.Printf("🔄 Dropping and recreating activity tables...")
		if err := pggeo.DropAndRecreateTables(ctx, conn); err != nil {
			log.Fatalf("Error recreating activity tables: %v", err)
		}
		log.Printf("✅ Activity tables recreated")
	}

	if *validateSchema {
		if err := pggeo.ValidateAndMigrateSchema(ctx, conn, *forceRebuild); err != nil {
			log.Fatalf("Error validating activity table schema: %v", err)
		}
		return
	}

	store := persist.NewStore(conn)

	if *setupDB || *recreateDB {
		log.Printf("🔧 Setting up activity and section catalog tables...")
		if err := store.Init(ctx); err != nil {
			log.Fatalf("Error setting up catalog tables: %v", err)
		}
		log.Printf("✅ Section catalog ready")
		if *setupDB && !*detect && !*serve {
			return
		}
	}

	if *truncateDB {
		log.Printf("🗑️ Truncating activity and section catalog tables...")
		if err := pggeo.TruncateTables(ctx, conn); err != nil {
			log.Fatalf("Error truncating activity tables: %v", err)
		}
		if err := persist.TruncateTables(ctx, conn); err != nil {
			log.Fatalf("Error truncating catalog tables: %v", err)
		}
		log.Printf("✅ Activity and section catalog truncated")
		return
	}

	if err := store.Init(ctx); err != nil {
		log.Fatalf("Error initializing section catalog: %v", err)
	}

	if *detect {
		runDetect(ctx, store, cfg)
		if !*serve {
			return
		}
	}

	if *serve {
		runServe(ctx, store, cfg)
		return
	}

	fmt.Println("Nothing to do. Pass -setup-db, -truncate-db, -recreate-db, -validate-schema, -detect, or -serve.")
	flag.Usage()
}

func runDetect(ctx context.Context, store *persist.Store, cfg config.Config) {
	log.Printf("🔍 Running multi-scale section detection...")
	handle := store.DetectSectionsBackground(ctx, cfg.Detection.ToSectionsConfig())
	result, err := handle.Wait(ctx)
	if err != nil {
		log.Fatalf("Error running detection: %v", err)
	}
	log.Printf("📊 Detection found %d sections and %d potential sections across %d tracks",
		len(result.Sections), len(result.Potentials), result.Stats.TracksConsidered)

	if err := store.ApplySections(ctx, result); err != nil {
		log.Fatalf("Error applying detected sections: %v", err)
	}
	log.Printf("✅ Applied detected sections to the catalog")
	logDistanceSummary(result.Sections)
}
