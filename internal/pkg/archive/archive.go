package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/luminapay/schoolpay/app/models"
	"github.com/luminapay/schoolpay/internal/pkg/config"
)

const keyPrefix = "webhooks"

// ObjectStore is the subset of the S3 API the archiver needs.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Archiver copies raw webhook payloads to an S3 bucket.
type Archiver struct {
	store  ObjectStore
	bucket string
	log    *logrus.Entry
}

// New creates an archiver from configuration. It returns an error when no
// bucket is configured.
func New(ctx context.Context, cfg config.Config) (*Archiver, error) {
	if !cfg.ArchiveEnabled() {
		return nil, errors.New("payload archive is disabled")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Archive.Region),
	}
	if cfg.Archive.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.Archive.AccessKeyID,
			cfg.Archive.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Archive.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Archive.Endpoint)
			// S3-compatible stores (MinIO, B2) need path-style addressing
			o.UsePathStyle = true
		}
	})

	return NewWithStore(client, cfg.Archive.Bucket), nil
}

// NewWithStore creates an archiver on an existing object store.
func NewWithStore(store ObjectStore, bucket string) *Archiver {
	return &Archiver{
		store:  store,
		bucket: bucket,
		log:    logrus.WithField("component", "archive"),
	}
}

// ObjectKey returns the key a log row is archived under, partitioned by day.
func ObjectKey(log *models.WebhookLog) string {
	return fmt.Sprintf("%s/%s/%d.json", keyPrefix, log.CreatedAt.UTC().Format("2006/01/02"), log.ID)
}

// Put uploads the raw payload of log and returns its object key.
func (a *Archiver) Put(ctx context.Context, log *models.WebhookLog) (string, error) {
	key := ObjectKey(log)
	body := []byte(log.WebhookPayload)

	_, err := a.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
		Metadata: map[string]string{
			"webhook-log-id": strconv.FormatUint(uint64(log.ID), 10),
			"order-id":       log.OrderID,
			"upload-source":  "schoolpay-webhook",
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	a.log.Debugf("archived webhook log %d to s3://%s/%s", log.ID, a.bucket, key)
	return key, nil
}

// Get downloads an archived payload.
func (a *Archiver) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := a.store.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
