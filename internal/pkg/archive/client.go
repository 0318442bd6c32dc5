// Package archive stores verified provider callback bodies in S3.
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
)

// ObjectPutter is the part of *s3.Client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client writes callback payloads to the archive bucket.
type Client struct {
	s3     ObjectPutter
	bucket string
	now    func() time.Time
	// Bounds each upload; zero means no extra bound.
	timeout time.Duration
}

// NewClient creates an S3 backed archive client.
func NewClient(cfg *Config) (*Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("callback archive is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	log.Infof("[Archive] Callback archive enabled for bucket: %s", cfg.BucketName)
	return NewClientWith(s3Client, cfg.BucketName, cfg.Timeout, time.Now), nil
}

// NewClientWith builds a client around an existing putter.
func NewClientWith(putter ObjectPutter, bucket string, timeout time.Duration, now func() time.Time) *Client {
	if now == nil {
		now = time.Now
	}
	return &Client{s3: putter, bucket: bucket, timeout: timeout, now: now}
}

// Archive uploads payload under a key derived from provider, order and the
// payload digest, so a replayed callback overwrites its own object.
func (c *Client) Archive(ctx context.Context, provider, orderID string, payload []byte) error {
	sum := sha256.Sum256(payload)
	digest := hex.EncodeToString(sum[:])
	key := ObjectKey(provider, orderID, digest, c.now().UTC())

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String("text/plain; charset=utf-8"),
		ContentLength: aws.Int64(int64(len(payload))),
		Metadata: map[string]string{
			"provider":       provider,
			"order-id":       orderID,
			"payload-sha256": digest,
			"upload-source":  "memberpay-callback",
		},
	})
	if err != nil {
		return fmt.Errorf("archive: put s3://%s/%s: %w", c.bucket, key, err)
	}
	log.Debugf("[Archive] stored s3://%s/%s", c.bucket, key)
	return nil
}
