package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"filing-processor/internal/api"
	"filing-processor/internal/avscan"
	"filing-processor/internal/barcode"
	"filing-processor/internal/catalog"
	"filing-processor/internal/config"
	"filing-processor/internal/fes"
	"filing-processor/internal/notify"
	"filing-processor/internal/pipeline"
	"filing-processor/internal/queue"
	"filing-processor/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := storage.NewPostgresStore(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		log.Fatalf("postgres ping: %v", err)
	}

	svc, err := buildEventService(ctx, cfg, store)
	if err != nil {
		log.Fatalf("wire pipeline: %v", err)
	}

	h := api.NewHandler(svc, store)
	router := api.NewRouter(h)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

func buildEventService(ctx context.Context, cfg config.Config, store *storage.PostgresStore) (*pipeline.EventService, error) {
	loader, err := fes.NewLoader(cfg.FesDSN, cfg.FesBatchPrefix)
	if err != nil {
		return nil, err
	}

	blob, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
		cfg.MinioUseSSL, cfg.MinioBucket, time.Duration(cfg.LinkExpiryMinutes)*time.Minute)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}
	dispatcher := queue.NewDispatcher(sqs.NewFromConfig(awsCfg), cfg.SQSQueueURL, cfg.QueueBatchSize)

	scans := avscan.NewHTTPClient(cfg.ScanAPIURL)
	barcodes := barcode.NewHTTPClient(cfg.BarcodeAPIURL)
	forms := catalog.NewPostgresCatalog(store.DB(), 5*time.Minute)
	mailer := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass,
		cfg.SMTPFrom, cfg.InternalEmail, cfg.SupportEmail)

	decisions := pipeline.NewDecisionEngine(store, scans, forms)
	executions := pipeline.NewExecutionEngine(store, dispatcher, mailer, blob)
	submitter := pipeline.NewExaminationSubmitter(store, barcodes, forms, blob, loader)

	registry, err := pipeline.NewHandlerRegistry(
		pipeline.NewStandardDelayedHandler(store, forms, mailer,
			time.Duration(cfg.SupportDelayHours)*time.Hour,
			time.Duration(cfg.BusinessDelayHours)*time.Hour,
			cfg.BusinessEmails, cfg.BusinessDefaultEmail),
		pipeline.NewSameDayDelayedHandler(store, mailer,
			time.Duration(cfg.SameDayDelayMinutes)*time.Minute),
	)
	if err != nil {
		return nil, err
	}

	return pipeline.NewEventService(store, decisions, executions, submitter, mailer, registry, cfg.ProcessFilesLimit), nil
}
