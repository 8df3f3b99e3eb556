package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
)

// WebhookArchive keeps a copy of every verified webhook body.
type WebhookArchive interface {
	Store(ctx context.Context, provider, eventID string, payload []byte) error
}

// S3PutObjectAPI is the S3 call the archive needs.
type S3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3WebhookArchive struct {
	client S3PutObjectAPI
	bucket string
	now    func() time.Time
}

func NewS3WebhookArchive(client S3PutObjectAPI, bucket string) WebhookArchive {
	return &s3WebhookArchive{client: client, bucket: bucket, now: time.Now}
}

// ArchiveKey lays objects out by provider and UTC day.
func ArchiveKey(provider, eventID string, at time.Time) string {
	return fmt.Sprintf("webhooks/%s/%s/%s.json", provider, at.UTC().Format("2006/01/02"), eventID)
}

func (a *s3WebhookArchive) Store(ctx context.Context, provider, eventID string, payload []byte) error {
	key := ArchiveKey(provider, eventID, a.now())
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive %s event %s: %w", provider, eventID, err)
	}
	return nil
}

type nopWebhookArchive struct{}

// NewNopWebhookArchive returns an archive that stores nothing.
func NewNopWebhookArchive() WebhookArchive { return nopWebhookArchive{} }

func (nopWebhookArchive) Store(context.Context, string, string, []byte) error { return nil }

// NewS3Client builds a path-style client for S3 or an S3-compatible endpoint.
func NewS3Client(ctx context.Context, endpoint, region, accessKey, secretKey string) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	}
	if accessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	s3Config, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load S3 config: %w", err)
	}
	return s3.NewFromConfig(s3Config, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
