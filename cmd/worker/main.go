package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"sierra-export/internal/clients/sierra"
	"sierra-export/internal/clients/solr"
	"sierra-export/internal/config"
	"sierra-export/internal/core/usecases"
	"sierra-export/internal/shell/executor"
	"sierra-export/internal/shell/exporters"
	"sierra-export/internal/shell/messaging"
	"sierra-export/internal/shell/scheduler"
	"sierra-export/internal/shell/storage"
)

// Worker - runs queued export instances against Sierra and Solr.
// Reads the dispatch queue from Redis, writes run history to the
// application database, and scales horizontally with per-type locks.

func main() {
	log.Println("[WORKER] Starting Sierra Export worker")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("[WORKER] Failed to load configuration: %v", err)
	}

	if !cfg.Redis.Enabled {
		log.Fatalf("[WORKER] Redis must be enabled for worker processes. Set REDIS_ENABLED=true")
	}

	hostname, _ := os.Hostname()
	workerID := fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])
	log.Printf("[WORKER] Worker ID: %s", workerID)

	repo, closeRepo := openRepository(cfg)
	defer func() {
		if err := closeRepo(); err != nil {
			log.Printf("[WORKER] Error closing database: %v", err)
		}
	}()

	registry := usecases.NewRegistry(usecases.DefaultExportTypes())
	registry.ApplyChunkOverrides(cfg.Exporter.MaxRecChunkOverrides, cfg.Exporter.MaxDelChunkOverrides)

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		log.Fatalf("[WORKER] Invalid TIME_ZONE %q: %v", cfg.TimeZone, err)
	}
	sierra.SetLocation(loc)

	sierraClient, err := sierra.NewClient(cfg.SierraDB)
	if err != nil {
		log.Fatalf("[WORKER] Failed to initialize Sierra client: %v", err)
	}
	defer sierraClient.Close()
	log.Printf("[WORKER] Sierra client connected to %s:%d/%s",
		cfg.SierraDB.Host, cfg.SierraDB.Port, cfg.SierraDB.Name)

	indexes := buildIndexes(cfg.Solr)
	notifiers, closeNotifiers := buildNotifiers(cfg)
	defer closeNotifiers()

	redisClient, err := storage.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatalf("[WORKER] Failed to initialize Redis client: %v", err)
	}
	defer redisClient.Close()
	log.Printf("[WORKER] Connected to Redis at %s", cfg.Redis.Address())

	queue := storage.NewRedisExportQueue(redisClient, cfg.Redis.KeyPrefix)
	lockManager := storage.NewRedisLockManager(redisClient, cfg.Redis.KeyPrefix, cfg.Redis.LockTTL, workerID)

	baseExecutor := executor.NewExportExecutor(repo, registry, sierraClient, indexes,
		notifiers, cfg.LogFileDir, cfg.Server.AdminURLPath, cfg.Exporter.MaxWorkers)
	distributedExecutor := executor.NewDistributedExportExecutor(baseExecutor, lockManager, workerID)

	pollInterval := 5 * time.Second
	pollingScheduler := scheduler.NewPollingScheduler(repo, queue, distributedExecutor, pollInterval, workerID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		pollingScheduler.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("[WORKER] Shutting down worker...")
	cancel()

	// Give the in-flight export a chance to wind down.
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Println("[WORKER] Timed out waiting for in-flight export")
	}

	log.Println("[WORKER] Worker exited")
}

// openRepository selects the export history store by DB_TYPE.
func openRepository(cfg *config.Config) (usecases.ExportRepository, func() error) {
	switch cfg.Database.Type {
	case "sqlite":
		repo, err := storage.NewSQLiteExportRepository(cfg.Database.Path)
		if err != nil {
			log.Fatalf("[WORKER] Failed to initialize SQLite database: %v", err)
		}
		return repo, repo.Close

	case "postgres":
		repo, err := storage.NewPostgresExportRepository(cfg.Database)
		if err != nil {
			log.Fatalf("[WORKER] Failed to initialize Postgres database: %v", err)
		}
		return repo, repo.Close

	default:
		log.Fatalf("[WORKER] Unsupported database type: %s (must be sqlite or postgres)", cfg.Database.Type)
		return nil, nil
	}
}

// buildIndexes maps index names to Solr clients, sharing one client
// per distinct core URL.
func buildIndexes(cfg config.SolrConfig) map[string]exporters.SolrIndex {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	clients := map[string]*solr.Client{}
	indexes := map[string]exporters.SolrIndex{}
	for name, coreURL := range map[string]string{
		exporters.IndexBibdata:  cfg.BibdataURL,
		exporters.IndexHaystack: cfg.HaystackURL,
		exporters.IndexMarc:     cfg.MarcURL,
	} {
		client, ok := clients[coreURL]
		if !ok {
			client = solr.NewClientWithHTTPClient(coreURL, httpClient)
			clients[coreURL] = client
		}
		indexes[name] = client
	}
	return indexes
}

func buildNotifiers(cfg *config.Config) ([]executor.Notifier, func()) {
	var notifiers []executor.Notifier
	closers := []func(){}

	if len(cfg.Mail.Admins) > 0 {
		notifiers = append(notifiers, messaging.NewEmailNotifier(cfg.Mail))
		log.Printf("[WORKER] Email notifier initialized (%d admins)", len(cfg.Mail.Admins))
	}

	if cfg.Kafka.Enabled {
		producer, err := messaging.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Fatalf("[WORKER] Failed to initialize Kafka producer: %v", err)
		}
		closers = append(closers, func() {
			if err := producer.Close(); err != nil {
				log.Printf("[WORKER] Error closing Kafka producer: %v", err)
			}
		})
		notifiers = append(notifiers, messaging.NewKafkaNotifier(producer))
		log.Printf("[WORKER] Kafka notifier initialized (topic: %s)", cfg.Kafka.Topic)
	}

	if len(notifiers) == 0 {
		notifiers = append(notifiers, executor.NewNullNotifier())
		log.Printf("[WORKER] Using null notifier (no notifications will be sent)")
	}

	cleanup := func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
	return notifiers, cleanup
}
