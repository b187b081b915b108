package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"coursemate/models"
)

// IngestConfig ist die Konfiguration des Pool-Ingest-Jobs.
type IngestConfig struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	PapersFile string `envconfig:"PAPERS_FILE" default:"papers.json"`
}

func main() {
	log.Println("Starte Paper-Ingest...")

	var cfg IngestConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Fehler beim Laden der Konfiguration: %v", err)
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Fehler beim Verbinden zur Datenbank: %v", err)
	}
	if err := db.AutoMigrate(&models.Paper{}); err != nil {
		log.Fatalf("Fehler bei der Migration: %v", err)
	}

	data, err := os.ReadFile(cfg.PapersFile)
	if err != nil {
		log.Fatalf("Fehler beim Lesen von %s: %v", cfg.PapersFile, err)
	}

	var papers []models.Paper
	if err := json.Unmarshal(data, &papers); err != nil {
		log.Fatalf("Fehler beim Parsen von %s: %v", cfg.PapersFile, err)
	}
	if len(papers) == 0 {
		log.Println("Keine Paper in der Datei, nichts zu tun.")
		return
	}

	// Upsert über die externe ID; vorhandene Pool-Einträge werden aktualisiert
	updateColumns := []string{
		"title", "authors", "abstract", "tldr", "topics",
		"category", "doi", "open_access_url",
	}
	inserted := 0
	for _, paper := range papers {
		if paper.ExternalID == "" {
			log.Printf("Überspringe Paper ohne external_id: %q", paper.Title)
			continue
		}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns(updateColumns),
		}).Create(&paper).Error
		if err != nil {
			log.Fatalf("Fehler beim Upsert von %s: %v", paper.ExternalID, err)
		}
		inserted++
	}

	log.Printf("Paper-Ingest abgeschlossen: %d Paper verarbeitet.", inserted)
}
