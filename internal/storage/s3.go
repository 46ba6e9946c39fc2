package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/stashlink/backend/internal/config"
)

// S3Store keeps shared images and snapshots in an S3-compatible bucket.
type S3Store struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	baseURL  string
}

var _ ImageStore = (*S3Store)(nil)

// NewS3Store configures an uploader for the configured bucket.
func NewS3Store(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = manager.MinUploadPartSize
		u.LeavePartsOnError = false
	})

	return &S3Store{
		uploader: uploader,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		baseURL:  strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}, nil
}

// Save uploads r under prefix/shared_images/name and returns its public URL, or the
// object key when no public base URL is configured.
func (s *S3Store) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	key := path.Join(s.prefix, imagesDir, name)

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ACL:         s3types.ObjectCannedACLPublicRead,
		ContentType: aws.String(contentType(name)),
	})
	if err != nil {
		return "", fmt.Errorf("s3 store upload %s: %w", key, err)
	}

	if s.baseURL == "" {
		return key, nil
	}
	return s.baseURL + "/" + key, nil
}
