// Package storage wraps the AWS SDK v2 S3 client for avatar uploads against
// S3-compatible endpoints (MinIO, SeaweedFS, AWS).
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Options carry the endpoint and credentials for the object store.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
}

// Client presigns uploads against a single S3-compatible endpoint. A nil
// *Client means object storage is not configured.
type Client struct {
	presign  *s3.PresignClient
	endpoint string
}

// NewClient builds an S3 client with static credentials and path-style
// addressing. Returns a nil Client when no endpoint is configured.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, nil
	}
	if opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, errors.New("s3 access and secret keys are required")
	}

	endpoint := opts.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	cfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
		awsconfig.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	)
	if err != nil {
		return nil, err
	}

	api := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &Client{
		presign:  s3.NewPresignClient(api),
		endpoint: endpoint,
	}, nil
}

// PresignPut generates a presigned PUT URL for uploading an object within
// the provided TTL.
func (c *Client) PresignPut(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (string, error) {
	if c == nil {
		return "", errors.New("object storage not configured")
	}

	input := &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}
	if contentType != "" {
		input.ContentType = &contentType
	}

	req, err := c.presign.PresignPutObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// ObjectURL returns the canonical path-style URL of an object, suitable for
// persisting as a public reference once the upload completes.
func (c *Client) ObjectURL(bucket, key string) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.endpoint, "/"), bucket, key)
}
