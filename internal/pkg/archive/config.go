package archive

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/MemberPay/internal/pkg/env"
)

// Config holds the S3 settings of the callback archive.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
	Timeout         time.Duration
}

// LoadConfig loads archive configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnvBool("ARCHIVE_ENABLED", false),
		Timeout:         env.GetEnvDuration("ARCHIVE_TIMEOUT", 5*time.Second),
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the callback archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the callback archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the callback archive is enabled")
		}
	}

	return config, nil
}

// ObjectKey builds callbacks/<provider>/<yyyy>/<mm>/<order_id>-<digest>.txt.
func ObjectKey(provider, orderID, digest string, at time.Time) string {
	if orderID == "" {
		orderID = "unknown"
	}
	if len(digest) > 16 {
		digest = digest[:16]
	}
	return fmt.Sprintf("callbacks/%s/%04d/%02d/%s-%s.txt", provider, at.Year(), int(at.Month()), orderID, digest)
}
