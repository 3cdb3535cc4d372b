package repository

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appConfig "github.com/mansoorceksport/imgcrop/internal/config"
)

// ObjectPutter is the subset of *s3.Client the mirror needs
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SeaweedS3Mirror implements domain.FileMirror using AWS SDK v2
type SeaweedS3Mirror struct {
	client    ObjectPutter
	bucket    string
	publicURL string
}

// NewSeaweedS3Mirror creates a mirror for an S3-compatible store (SeaweedFS, MinIO)
func NewSeaweedS3Mirror(ctx context.Context, cfg appConfig.S3Config) (*SeaweedS3Mirror, error) {
	// SeaweedFS/MinIO still require signed requests, so static "any" credentials are used
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("any", "any", "")),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config, %v", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true // Required for many S3-compatible stores including SeaweedFS
	})

	mirror := &SeaweedS3Mirror{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.Endpoint, "/"),
	}

	if err := mirror.ensureBucket(ctx, client); err != nil {
		return nil, err
	}

	return mirror, nil
}

// NewSeaweedS3MirrorWithClient wires an already configured client
func NewSeaweedS3MirrorWithClient(client ObjectPutter, bucket, publicURL string) *SeaweedS3Mirror {
	return &SeaweedS3Mirror{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Upload saves a file to S3 and returns the URL
func (r *SeaweedS3Mirror) Upload(ctx context.Context, file []byte, key string, contentType string) (string, error) {
	key = strings.TrimLeft(key, "/")

	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}

	// Format: {Endpoint}/{Bucket}/{Key}
	return fmt.Sprintf("%s/%s/%s", r.publicURL, r.bucket, key), nil
}

// ensureBucket checks if bucket exists, creating it if necessary
func (r *SeaweedS3Mirror) ensureBucket(ctx context.Context, client *s3.Client) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(r.bucket),
	})

	if err != nil {
		// 404 and access-denied look alike here; try to create and let that call decide
		_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(r.bucket),
		})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", r.bucket, err)
		}
	}
	return nil
}
