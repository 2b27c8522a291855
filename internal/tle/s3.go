package tle

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures the client used for s3://bucket/key endpoints, such as
// a MinIO mirror of the CelesTrak feeds.
type S3Config struct {
	Region          string
	Endpoint        string // optional; custom endpoint (e.g. MinIO)
	PathStyle       bool
	AccessKeyID     string // optional; falls back to the default credentials chain
	SecretAccessKey string
}

// S3Reader fetches element-set objects from S3-compatible storage.
type S3Reader struct {
	client *s3.Client
}

// NewS3Reader builds an S3 client from cfg and the default AWS config chain.
func NewS3Reader(ctx context.Context, cfg S3Config) (*S3Reader, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Reader{client: client}, nil
}

// Get opens the object at bucket/key and returns its body and content type.
func (r *S3Reader) Get(ctx context.Context, bucket, key string) (io.ReadCloser, string, error) {
	if bucket == "" || key == "" {
		return nil, "", errors.New("s3 endpoint needs both bucket and key")
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, "", fmt.Errorf("getting s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, aws.ToString(out.ContentType), nil
}
