package main

import (
	"log"

	"slingshot-be/internal/config"
	"slingshot-be/internal/model"
	"slingshot-be/pkg/database"
)

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, true)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Running AutoMigrate for archive tables...")
	if err := database.Migrate(db, model.ArchiveModels()...); err != nil {
		log.Fatalf("Error: Migration failed: %v", err)
	}
	log.Println("Migration complete")
}
