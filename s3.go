package memsession

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of the S3 API used by S3Snapshotter.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Snapshotter keeps the snapshot in a single S3 object.
type S3Snapshotter struct {
	client S3Client
	bucket string
	key    string
}

// S3Config holds configuration for the S3 snapshotter.
type S3Config struct {
	Bucket         string
	Key            string // Defaults to DefaultSnapshotName + ".yaml".
	Region         string
	AccessKeyID    string
	SecretKey      string
	Endpoint       string // For S3-compatible services.
	ForcePathStyle bool   // For S3-compatible services like MinIO.

	// Client replaces the SDK client built from the fields above.
	Client S3Client
}

// NewS3Snapshotter builds an S3 client from cfg and the default AWS
// credential chain.
func NewS3Snapshotter(ctx context.Context, cfg S3Config) (*S3Snapshotter, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 snapshotter: bucket is required")
	}
	if cfg.Key == "" {
		cfg.Key = DefaultSnapshotName + ".yaml"
	}

	client := cfg.Client
	if client == nil {
		var awsOptions []func(*config.LoadOptions) error
		if cfg.Region != "" {
			awsOptions = append(awsOptions, config.WithRegion(cfg.Region))
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
			))
		}

		awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}

		client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.ForcePathStyle
		})
	}

	return &S3Snapshotter{
		client: client,
		bucket: cfg.Bucket,
		key:    cfg.Key,
	}, nil
}

func (s *S3Snapshotter) SaveSnapshot(ctx context.Context, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/yaml"),
	})
	if err != nil {
		return fmt.Errorf("failed to put snapshot object: %w", err)
	}
	return nil
}

func (s *S3Snapshotter) RestoreSnapshot(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to get snapshot object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot object: %w", err)
	}
	return data, nil
}

// Close is a no-op for the S3 client.
func (s *S3Snapshotter) Close() error {
	return nil
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound"
	}
	return false
}
