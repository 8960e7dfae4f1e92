// Package s3 archives rendered certificate documents in an S3 bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3aws "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
)

const backendName = "certificate archive"

// Client is the subset of the S3 API the archive uses.
type Client interface {
	PutObject(ctx context.Context, params *s3aws.PutObjectInput, optFns ...func(*s3aws.Options)) (*s3aws.PutObjectOutput, error)
}

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	UploadTimeout   time.Duration
}

type Archive struct {
	client  Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// New builds an archive backed by the AWS SDK. Without static keys the
// default credential chain applies.
func New(ctx context.Context, cfg Config) (*Archive, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, errors.New("s3 bucket and region are required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3aws.NewFromConfig(awsCfg, func(o *s3aws.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg), nil
}

func NewWithClient(client Client, cfg Config) *Archive {
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 30 * time.Second
	}
	return &Archive{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, timeout: cfg.UploadTimeout}
}

// Key is the object key for a tenant's document name.
func (a *Archive) Key(tenantID int64, name string) string {
	return path.Join(a.prefix, fmt.Sprint(tenantID), name)
}

// Put stores content and returns its s3:// reference.
func (a *Archive) Put(ctx context.Context, tenantID int64, name, contentType string, content []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	key := a.Key(tenantID, name)
	_, err := a.client.PutObject(ctx, &s3aws.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(content))),
	})
	if err != nil {
		return "", classify(err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

func classify(err error) error {
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return apperrors.Internal(fmt.Errorf("archive bucket missing: %w", err))
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return apperrors.ProviderAuth(backendName, err)
		case "NoSuchBucket":
			return apperrors.Internal(fmt.Errorf("archive bucket missing: %w", err))
		}
	}
	return apperrors.TransientBackend(backendName, err)
}
