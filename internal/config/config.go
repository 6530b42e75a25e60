package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	defaultHTTPPort            = "8080"
	defaultMinioEndpoint       = "localhost:9000"
	defaultMinioBucket         = "submission-files"
	defaultLinkExpiryMinutes   = 60
	defaultQueueBatchSize      = 10
	defaultProcessFilesLimit   = 50
	defaultFesBatchPrefix      = "EFP"
	defaultSupportDelayHours   = 6
	defaultBusinessDelayHours  = 72
	defaultSameDayDelayMinutes = 60
	defaultSMTPPort            = 587
)

type Config struct {
	HTTPPort string

	PostgresDSN string
	FesDSN      string

	MinioEndpoint     string
	MinioAccessKey    string
	MinioSecretKey    string
	MinioBucket       string
	MinioUseSSL       bool
	LinkExpiryMinutes int

	AWSRegion      string
	SQSQueueURL    string
	QueueBatchSize int

	ScanAPIURL    string
	BarcodeAPIURL string

	ProcessFilesLimit int
	FesBatchPrefix    string

	SupportDelayHours   int
	BusinessDelayHours  int
	SameDayDelayMinutes int

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	InternalEmail        string
	SupportEmail         string
	BusinessEmails       map[string]string
	BusinessDefaultEmail string

	ProcessFilesSchedule    string
	SubmitFesSchedule       string
	DelayedStandardSchedule string
	DelayedSameDaySchedule  string
}

func Load() (Config, error) {
	cfg := Config{
		HTTPPort:            getenv("HTTP_PORT", defaultHTTPPort),
		PostgresDSN:         os.Getenv("POSTGRES_DSN"),
		FesDSN:              os.Getenv("FES_DSN"),
		MinioEndpoint:       getenv("MINIO_ENDPOINT", defaultMinioEndpoint),
		MinioAccessKey:      os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:      os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:         getenv("MINIO_BUCKET", defaultMinioBucket),
		MinioUseSSL:         getenvBool("MINIO_USE_SSL", false),
		LinkExpiryMinutes:   getenvInt("LINK_EXPIRY_MINUTES", defaultLinkExpiryMinutes),
		AWSRegion:           getenv("AWS_REGION", "eu-west-2"),
		SQSQueueURL:         os.Getenv("SQS_QUEUE_URL"),
		QueueBatchSize:      getenvInt("QUEUE_BATCH_SIZE", defaultQueueBatchSize),
		ScanAPIURL:          os.Getenv("SCAN_API_URL"),
		BarcodeAPIURL:       os.Getenv("BARCODE_API_URL"),
		ProcessFilesLimit:   getenvInt("PROCESS_FILES_LIMIT", defaultProcessFilesLimit),
		FesBatchPrefix:      getenv("FES_BATCH_PREFIX", defaultFesBatchPrefix),
		SupportDelayHours:   getenvInt("SUPPORT_DELAY_HOURS", defaultSupportDelayHours),
		BusinessDelayHours:  getenvInt("BUSINESS_DELAY_HOURS", defaultBusinessDelayHours),
		SameDayDelayMinutes: getenvInt("SAMEDAY_DELAY_MINUTES", defaultSameDayDelayMinutes),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: getenvInt("SMTP_PORT", defaultSMTPPort),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		SMTPFrom: os.Getenv("SMTP_FROM"),

		InternalEmail:        os.Getenv("INTERNAL_EMAIL"),
		SupportEmail:         os.Getenv("SUPPORT_EMAIL"),
		BusinessEmails:       parseAddressMap(os.Getenv("BUSINESS_CATEGORY_EMAILS")),
		BusinessDefaultEmail: os.Getenv("BUSINESS_DEFAULT_EMAIL"),

		ProcessFilesSchedule:    getenv("PROCESS_FILES_SCHEDULE", "@every 1m"),
		SubmitFesSchedule:       getenv("SUBMIT_FES_SCHEDULE", "@every 5m"),
		DelayedStandardSchedule: getenv("DELAYED_STANDARD_SCHEDULE", "@every 1h"),
		DelayedSameDaySchedule:  getenv("DELAYED_SAMEDAY_SCHEDULE", "@every 15m"),
	}

	if cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("POSTGRES_DSN is required")
	}
	if cfg.FesDSN == "" {
		return Config{}, fmt.Errorf("FES_DSN is required")
	}
	if cfg.QueueBatchSize <= 0 {
		cfg.QueueBatchSize = defaultQueueBatchSize
	}

	return cfg, nil
}

// parseAddressMap reads a comma-separated list of category=address pairs,
// e.g. "INSOLVENCY=ins@example.com,SHARE_CAPITAL=sc@example.com".
func parseAddressMap(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		category := strings.TrimSpace(parts[0])
		address := strings.TrimSpace(parts[1])
		if category == "" || address == "" {
			continue
		}
		out[category] = address
	}
	return out
}

func getenv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
