package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/floroz/accio/pkg/config"
)

// ObjectPutter is the part of the S3 client the photo store uses
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3PhotoStore keeps item and profile photos in an S3-compatible bucket
type S3PhotoStore struct {
	client     ObjectPutter
	bucket     string
	publicBase *url.URL
}

// NewS3PhotoStore creates a photo store. Objects are addressed under publicBaseURL.
func NewS3PhotoStore(client ObjectPutter, bucket, publicBaseURL string) (*S3PhotoStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not set")
	}
	publicBase, err := url.Parse(publicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public base URL: %w", err)
	}
	return &S3PhotoStore{client: client, bucket: bucket, publicBase: publicBase}, nil
}

// NewS3Client builds an S3 client from the service configuration.
// Static keys and a custom endpoint are used when set, which is how MinIO and
// R2 are reached.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.Endpoint != ""
	}), nil
}

// Put uploads data and returns its public URL
func (s *S3PhotoStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	uri := *s.publicBase
	uri.Path = strings.TrimSuffix(uri.Path, "/") + "/" + strings.TrimPrefix(key, "/")
	return uri.String(), nil
}
