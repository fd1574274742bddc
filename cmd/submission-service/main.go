package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/biohubbc/biohub-platform/pkg/common/config"
	"github.com/biohubbc/biohub-platform/pkg/common/database"
	"github.com/biohubbc/biohub-platform/pkg/common/kafka"
	"github.com/biohubbc/biohub-platform/pkg/common/logger"
	"github.com/biohubbc/biohub-platform/pkg/eml"
	"github.com/biohubbc/biohub-platform/pkg/occurrence"
	"github.com/biohubbc/biohub-platform/pkg/pipeline"
	"github.com/biohubbc/biohub-platform/pkg/scan"
	"github.com/biohubbc/biohub-platform/pkg/search"
	"github.com/biohubbc/biohub-platform/pkg/security"
	"github.com/biohubbc/biohub-platform/pkg/storage"
	"github.com/biohubbc/biohub-platform/pkg/submission"
	"github.com/biohubbc/biohub-platform/pkg/validation"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.ConnectPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres(db)

	submissionRepo := submission.NewRepository(db)
	if err := submissionRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate submission tables")
	}

	occurrenceRepo := occurrence.NewRepository(db)
	if err := occurrenceRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate occurrence tables")
	}

	schemaRepo := validation.NewRepository(db)
	if err := schemaRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate style schema table")
	}

	schemaDef := validation.DefaultDefinition()
	if cfg.ValidationRulesPath != "" {
		if def, err := validation.LoadDefinitionFile(cfg.ValidationRulesPath); err != nil {
			logger.Log.WithError(err).Warn("falling back to the baseline validation schema")
		} else {
			schemaDef = def
		}
	}
	if _, err := schemaRepo.EnsureSeedDefinition(context.Background(), "1.0.0", schemaDef); err != nil {
		logger.Log.WithError(err).Fatal("failed to seed style schema table")
	}

	states := submission.NewStateMachine(submissionRepo)
	scraper := occurrence.NewScraper(occurrenceRepo)

	// TODO: swap for the S3 client once the object storage credentials
	// land in deployment config
	objects := storage.NewMemoryStore()

	var scanner scan.Scanner = scan.NoopScanner{}
	if cfg.ClamAVEnabled {
		scanner = scan.NewClamAVScanner(cfg.ClamAVHost, cfg.ClamAVPort)
	}

	redisClient := database.ConnectRedis(cfg)
	defer redisClient.Close()

	stylesheets := eml.NewStylesheetStore(objects, redisClient, cfg.StylesheetKeyPrefix, cfg.StylesheetCacheTTL)

	validator := validation.NewEngine(schemaRepo, submissionRepo, states, objects)

	securityRules, err := security.LoadRules(cfg.SecurityRulesPath)
	if err != nil {
		logger.Log.WithError(err).Warn("falling back to default security rules")
	}
	classifier, err := security.NewClassifier(securityRules, occurrenceRepo, states)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to build security classifier")
	}

	indexer := search.NewIndexer(search.Config{
		Endpoint:   cfg.SearchEndpoint,
		APIKey:     cfg.SearchAPIKey,
		Collection: cfg.SearchCollection,
	})

	var producer *kafka.Producer
	if cfg.NotificationEnabled {
		producer = kafka.NewProducer(cfg, cfg.SubmissionTopic)
		defer producer.Close()
	}

	serviceClients := security.NewServiceClientConfig(cfg.ServiceClientIDs)

	svc := pipeline.NewService(cfg, submissionRepo, states, occurrenceRepo, scraper,
		validator, classifier, stylesheets, indexer, objects, scanner, producer, serviceClients)
	handler := pipeline.NewHTTPHandler(svc, cfg.MaxRequestBody)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", server.Addr).Info("submission service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("shutting down submission service")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("graceful shutdown failed")
	}
}
