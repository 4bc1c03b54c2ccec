package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/bizpilot/journey-engine/internal/config"
	"github.com/bizpilot/journey-engine/internal/events"
	"github.com/bizpilot/journey-engine/internal/httpserver"
	"github.com/bizpilot/journey-engine/internal/recommend"
	"github.com/bizpilot/journey-engine/internal/service"
	"github.com/bizpilot/journey-engine/internal/store"
)

func main() {
	seedFlag := flag.Bool("seed-catalog", false, "seed the built-in template catalog at startup")
	flag.Parse()

	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog, progress, closeStore, err := buildStores(ctx, cfg, *seedFlag || cfg.SeedCatalog)
	if err != nil {
		log.Fatalf("store init: %v", err)
	}
	defer closeStore()

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(events.KafkaPublisherConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			log.Fatalf("kafka publisher init: %v", err)
		}
		defer kp.Close()
		publisher = kp
	}

	var archiver events.Archiver
	if cfg.ArchiveBucket != "" {
		archiver, err = events.NewS3Archiver(ctx, cfg.ArchiveBucket, cfg.ArchivePrefix)
		if err != nil {
			log.Fatalf("s3 archiver init: %v", err)
		}
	}

	svc := service.New(catalog, progress, publisher, archiver)
	rec := recommend.New(catalog, progress)
	server := httpserver.New(cfg, svc, rec, catalog, progress)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("journey service listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	waitForShutdown(cancel, httpServer)
}

func buildStores(ctx context.Context, cfg config.Config, seed bool) (store.CatalogStore, store.ProgressStore, func(), error) {
	if cfg.UseMemoryStore {
		mem := store.NewMemoryStore(store.DefaultCatalog()...)
		return mem, mem, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	pg := store.NewPGStore(db)
	if err := pg.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	if seed {
		for _, tpl := range store.DefaultCatalog() {
			if err := pg.UpsertTemplate(ctx, tpl); err != nil {
				db.Close()
				return nil, nil, nil, err
			}
		}
		log.Printf("seeded %d catalog templates", len(store.DefaultCatalog()))
	}
	return pg, pg, func() { db.Close() }, nil
}

func waitForShutdown(cancel context.CancelFunc, srv *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
