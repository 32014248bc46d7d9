package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slingshot-be/internal/bootstrap"
	"slingshot-be/internal/config"
	"slingshot-be/internal/model"
	"slingshot-be/internal/server"
	"slingshot-be/internal/tracer"
	"slingshot-be/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.App, cfg.Telemetry)
	defer shutdownTracer(context.Background())

	// 3. Initialize Database (optional)
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, !cfg.IsProduction())
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
		if err := database.Migrate(db, model.ArchiveModels()...); err != nil {
			log.Panicf("Unable to migrate archive tables: %v", err)
		}
		gormDB = db
	}

	// 4. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 5. Start Background Services
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go container.Sessions.Janitor(ctx, cfg.Research.SweepInterval)
	go container.WebSocketHub.Run(ctx)

	if container.ConsumerService != nil {
		log.Println("Background: Starting Consumer Service...")
		if err := container.ConsumerService.Consume(ctx); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}

	// 6. Initialize Server
	srv := server.New(cfg, container)
	go func() {
		if err := srv.Run(); err != nil {
			log.Printf("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := container.Orchestrator.Shutdown(shutdownCtx); err != nil {
		log.Printf("Pipeline shutdown: %v", err)
	}
	if container.Lifecycle != nil {
		container.Lifecycle.Wait()
	}
	container.Close()
}
