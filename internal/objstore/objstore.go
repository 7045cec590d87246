// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

// Package objstore stores uploaded files in an S3-compatible bucket.
package objstore

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// PurposePicture tags profile picture objects.
const PurposePicture = "pfp"

// purposeMetadataKey is the user metadata key holding an object's purpose.
const purposeMetadataKey = "purpose"

// PutObjectAPI is the subset of the S3 client the Store uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config locates the bucket.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// Overridable for tests.
var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
)

// Store writes objects into one bucket.
type Store struct {
	client PutObjectAPI
	bucket string
	logger *slog.Logger
}

// New builds a Store from cfg. A non-empty Endpoint selects path-style
// addressing so MinIO and other S3-compatible servers work.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, oops.Code("OBJSTORE_INVALID").Errorf("bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, oops.Code("OBJSTORE_CONFIG_FAILED").With("region", cfg.Region).Wrap(err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithClient(client, cfg.Bucket, logger)
}

// NewWithClient builds a Store over an existing client.
func NewWithClient(client PutObjectAPI, bucket string, logger *slog.Logger) (*Store, error) {
	if client == nil {
		return nil, oops.Code("OBJSTORE_INVALID").Errorf("s3 client is required")
	}
	if bucket == "" {
		return nil, oops.Code("OBJSTORE_INVALID").Errorf("bucket is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, bucket: bucket, logger: logger}, nil
}

// Put stores data under key, tagged with purpose, and returns the reference
// to record for it. Content type and size are not validated.
func (s *Store) Put(ctx context.Context, key, purpose, contentType string, data []byte) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata:      map[string]string{purposeMetadataKey: purpose},
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", oops.Code("OBJSTORE_PUT_FAILED").
			With("bucket", s.bucket).
			With("key", key).
			Wrap(err)
	}

	s.logger.DebugContext(ctx, "object stored", "key", key, "purpose", purpose, "bytes", len(data))
	return key, nil
}

// PictureKey is the object key of a creator's profile picture. Each upload
// replaces the previous one.
func PictureKey(subject ulid.ULID) string {
	return "pfp-" + subject.String()
}
