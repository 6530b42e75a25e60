package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"filing-processor/internal/avscan"
	"filing-processor/internal/barcode"
	"filing-processor/internal/catalog"
	"filing-processor/internal/config"
	"filing-processor/internal/domain"
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

	loader, err := fes.NewLoader(cfg.FesDSN, cfg.FesBatchPrefix)
	if err != nil {
		log.Fatalf("connect fes store: %v", err)
	}
	defer loader.Close()

	blob, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
		cfg.MinioUseSSL, cfg.MinioBucket, time.Duration(cfg.LinkExpiryMinutes)*time.Minute)
	if err != nil {
		log.Fatalf("connect minio: %v", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
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
		log.Fatalf("register delayed handlers: %v", err)
	}

	svc := pipeline.NewEventService(store, decisions, executions, submitter, mailer, registry, cfg.ProcessFilesLimit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := cron.New()
	schedule(c, cfg.ProcessFilesSchedule, "process-files", func() error { return svc.ProcessFiles(ctx) })
	schedule(c, cfg.SubmitFesSchedule, "submit-to-fes", func() error { return svc.SubmitToFes(ctx) })
	schedule(c, cfg.DelayedStandardSchedule, "delayed-standard", func() error {
		return svc.HandleDelayedSubmissions(ctx, domain.ServiceLevelStandard)
	})
	schedule(c, cfg.DelayedSameDaySchedule, "delayed-sameday", func() error {
		return svc.HandleDelayedSubmissions(ctx, domain.ServiceLevelSameDay)
	})

	log.Printf("processor running")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
}

func schedule(c *cron.Cron, spec string, name string, run func() error) {
	if _, err := c.AddFunc(spec, func() {
		if err := run(); err != nil {
			log.Printf("%s run failed: %v", name, err)
		}
	}); err != nil {
		log.Fatalf("schedule %s (%q): %v", name, spec, err)
	}
}
