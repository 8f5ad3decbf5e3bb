package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrS3NotConfigured is returned when the S3 archiver is constructed
// without a bucket or region.
var ErrS3NotConfigured = errors.New("storage: s3 bucket and region are required")

// S3Config holds the settings for archiving results to S3.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for S3-compatible stores
	AccessKeyID     string
	SecretAccessKey string
}

// S3Archiver stores result videos in an S3 bucket.
type S3Archiver struct {
	client     *s3.Client
	httpClient *http.Client
	bucket     string
	region     string
}

// NewS3Archiver builds an S3 archiver from cfg. Static credentials are
// used when provided, otherwise the default AWS credential chain applies.
func NewS3Archiver(cfg S3Config) (*S3Archiver, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrS3NotConfigured
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Archiver{
		client:     client,
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
		bucket:     cfg.Bucket,
		region:     cfg.Region,
	}, nil
}

// Archive downloads the result at srcURL and uploads it to the bucket
// under key, returning the public object URL.
func (a *S3Archiver) Archive(ctx context.Context, key, srcURL string) (string, error) {
	body, contentType, err := fetchResult(ctx, a.httpClient, srcURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read result: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.bucket, a.region, key), nil
}
