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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sierra-export/internal/clients/sierra"
	"sierra-export/internal/clients/solr"
	"sierra-export/internal/config"
	"sierra-export/internal/core/usecases"
	"sierra-export/internal/shell/executor"
	"sierra-export/internal/shell/exporters"
	httpShell "sierra-export/internal/shell/http"
	"sierra-export/internal/shell/messaging"
	"sierra-export/internal/shell/scheduler"
	"sierra-export/internal/shell/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	hostname, _ := os.Hostname()
	instanceID := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	log.Printf("Starting Sierra Export server with configuration:")
	log.Printf("  Instance ID: %s", instanceID)
	log.Printf("  Server: %s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("  Sierra DB: %s:%d/%s", cfg.SierraDB.Host, cfg.SierraDB.Port, cfg.SierraDB.Name)
	log.Printf("  Database Type: %s", cfg.Database.Type)
	log.Printf("  Redis: enabled=%t, address=%s", cfg.Redis.Enabled, cfg.Redis.Address())
	log.Printf("  Kafka: enabled=%t, brokers=%v", cfg.Kafka.Enabled, cfg.Kafka.Brokers)
	log.Printf("  Metrics: enabled=%t, port=%d", cfg.Metrics.Enabled, cfg.Metrics.Port)

	repo, closeRepo := openRepository(cfg)
	defer func() {
		if err := closeRepo(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	registry := usecases.NewRegistry(usecases.DefaultExportTypes())
	registry.ApplyChunkOverrides(cfg.Exporter.MaxRecChunkOverrides, cfg.Exporter.MaxDelChunkOverrides)

	// With Redis enabled the server only enqueues; worker processes run
	// the exports. Without it a single in-process loop does both.
	var queue usecases.ExportQueue
	var memQueue *storage.MemoryQueue
	if cfg.Redis.Enabled {
		redisClient, err := storage.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to initialize Redis client: %v", err)
		}
		defer redisClient.Close()

		queue = storage.NewRedisExportQueue(redisClient, cfg.Redis.KeyPrefix)
		log.Printf("Redis export queue initialized")
	} else {
		memQueue = storage.NewMemoryQueue(64)
		queue = memQueue
		log.Printf("Running in single-process mode (in-memory queue)")
	}

	exportService := usecases.NewExportService(repo, queue, registry, cfg.Exporter.AutomatedUsername)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if memQueue != nil {
		exportExecutor, cleanup := buildExecutor(cfg, repo, registry)
		defer cleanup()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case instance := <-memQueue.Chan():
					if err := exportExecutor.Execute(ctx, instance); err != nil {
						log.Printf("[EXPORT] run %s failed: %v", instance.ID, err)
					}
				}
			}
		}()
	}

	cronScheduler := scheduler.NewCronScheduler(exportService, cfg.Exporter.Schedules)
	go cronScheduler.Start(ctx)

	router := httpShell.SetupRoutes(exportService, cfg.Server.SiteURLRoot, cfg.CORSOriginRegexWhitelist)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port)
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())

		metricsServer = &http.Server{
			Addr:    metricsAddr,
			Handler: metricsMux,
		}

		go func() {
			log.Printf("Starting metrics server on %s%s", metricsAddr, cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	cronScheduler.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Metrics server forced to shutdown: %v", err)
		}
	}

	log.Println("Server exited")
}

// openRepository selects the export history store by DB_TYPE.
func openRepository(cfg *config.Config) (usecases.ExportRepository, func() error) {
	switch cfg.Database.Type {
	case "sqlite":
		repo, err := storage.NewSQLiteExportRepository(cfg.Database.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite database: %v", err)
		}
		log.Printf("SQLite storage initialized at %s", cfg.Database.Path)
		return repo, repo.Close

	case "postgres":
		repo, err := storage.NewPostgresExportRepository(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to initialize Postgres database: %v", err)
		}
		log.Printf("Postgres storage initialized at %s:%d", cfg.Database.Host, cfg.Database.Port)
		return repo, repo.Close

	default:
		log.Fatalf("Unsupported database type: %s (must be sqlite or postgres)", cfg.Database.Type)
		return nil, nil
	}
}

// buildExecutor wires the single-process export pipeline: Sierra
// source, Solr indexes, and notifiers.
func buildExecutor(cfg *config.Config, repo usecases.ExportRepository,
	registry *usecases.Registry) (*executor.ExportExecutor, func()) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		log.Fatalf("Invalid TIME_ZONE %q: %v", cfg.TimeZone, err)
	}
	sierra.SetLocation(loc)

	sierraClient, err := sierra.NewClient(cfg.SierraDB)
	if err != nil {
		log.Fatalf("Failed to initialize Sierra client: %v", err)
	}

	indexes := buildIndexes(cfg.Solr)
	notifiers, closeNotifiers := buildNotifiers(cfg)

	exportExecutor := executor.NewExportExecutor(repo, registry, sierraClient, indexes,
		notifiers, cfg.LogFileDir, cfg.Server.AdminURLPath, cfg.Exporter.MaxWorkers)

	cleanup := func() {
		closeNotifiers()
		if err := sierraClient.Close(); err != nil {
			log.Printf("Error closing Sierra client: %v", err)
		}
	}
	return exportExecutor, cleanup
}

// buildIndexes maps index names to Solr clients. Cores sharing a URL
// share one client, so a commit hits each endpoint once.
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

// buildNotifiers assembles the completion notifier chain: mail to the
// configured admins, a Kafka event when brokers are set, or a no-op
// when neither applies.
func buildNotifiers(cfg *config.Config) ([]executor.Notifier, func()) {
	var notifiers []executor.Notifier
	closers := []func(){}

	if len(cfg.Mail.Admins) > 0 {
		notifiers = append(notifiers, messaging.NewEmailNotifier(cfg.Mail))
		log.Printf("Email notifier initialized (%d admins)", len(cfg.Mail.Admins))
	}

	if cfg.Kafka.Enabled {
		producer, err := messaging.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Fatalf("Failed to initialize Kafka producer: %v", err)
		}
		closers = append(closers, func() {
			if err := producer.Close(); err != nil {
				log.Printf("Error closing Kafka producer: %v", err)
			}
		})
		notifiers = append(notifiers, messaging.NewKafkaNotifier(producer))
		log.Printf("Kafka notifier initialized (topic: %s)", cfg.Kafka.Topic)
	}

	if len(notifiers) == 0 {
		notifiers = append(notifiers, executor.NewNullNotifier())
		log.Printf("Using null notifier (no notifications will be sent)")
	}

	cleanup := func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
	return notifiers, cleanup
}
