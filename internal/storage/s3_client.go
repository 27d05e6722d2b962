// Package storage provides the S3-backed object store for documents
// and listing photos. Blobs live under per-owner prefixes; the
// database keeps only metadata and keys.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/rentzentro/platform/pkg/config"
	"github.com/rentzentro/platform/pkg/logging"
)

const defaultPresignExpiry = 15 * time.Minute

// S3Config points the client at a bucket. Endpoint switches it to an
// S3-compatible store (MinIO and friends); empty credentials fall back
// to the ambient IAM chain.
type S3Config struct {
	Bucket        string
	Prefix        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// ConfigFromEnv builds an S3Config from environment variables.
func ConfigFromEnv() S3Config {
	return S3Config{
		Bucket:        config.GetEnv("S3_BUCKET", ""),
		Prefix:        config.GetEnv("S3_PREFIX", ""),
		Region:        config.GetEnv("S3_REGION", "us-east-1"),
		Endpoint:      config.GetEnv("S3_ENDPOINT", ""),
		AccessKey:     config.GetEnv("S3_ACCESS_KEY", ""),
		SecretKey:     config.GetEnv("S3_SECRET_KEY", ""),
		PublicBaseURL: config.GetEnv("S3_PUBLIC_BASE_URL", ""),
	}
}

// S3Client provides object storage operations. It holds credentials and
// hands browsers presigned or public URLs; raw credentials never leave
// the server.
type S3Client struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	config        S3Config
	logger        logging.Logger
}

func NewS3Client(cfg S3Config, logger logging.Logger) (*S3Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		provider := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(provider))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// Path-style addressing; MinIO does not resolve bucket subdomains.
			o.UsePathStyle = true
		}
	})

	logger.WithFields(logging.Fields{
		"bucket":   cfg.Bucket,
		"prefix":   cfg.Prefix,
		"region":   cfg.Region,
		"endpoint": cfg.Endpoint,
	}).Info("Object storage ready")

	return &S3Client{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		config:        cfg,
		logger:        logger,
	}, nil
}

// withPrefix prepends the configured key prefix, if any.
func (c *S3Client) withPrefix(key string) string {
	if c.config.Prefix == "" {
		return key
	}
	return strings.TrimSuffix(c.config.Prefix, "/") + "/" + strings.TrimPrefix(key, "/")
}

// Upload stores an object. Uploads flow through the server so owner
// checks happen before any byte reaches the bucket.
func (c *S3Client) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(c.config.Bucket),
		Key:    aws.String(c.withPrefix(key)),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := c.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object: %w", err)
	}

	c.logger.WithField("key", c.withPrefix(key)).Info("Object stored")
	return nil
}

// GeneratePresignedGET generates a time-limited download URL scoped to
// one object.
func (c *S3Client) GeneratePresignedGET(key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}

	req, err := c.presignClient.PresignGetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(c.config.Bucket),
		Key:    aws.String(c.withPrefix(key)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// PublicURL returns the stable public URL for an object in the public
// part of the bucket (listing photos). Private objects use
// GeneratePresignedGET instead.
func (c *S3Client) PublicURL(key string) string {
	key = c.withPrefix(key)
	switch {
	case c.config.PublicBaseURL != "":
		return strings.TrimSuffix(c.config.PublicBaseURL, "/") + "/" + key
	case c.config.Endpoint != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(c.config.Endpoint, "/"), c.config.Bucket, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.config.Bucket, c.config.Region, key)
	}
}

// Delete removes a single object.
func (c *S3Client) Delete(ctx context.Context, key string) error {
	full := c.withPrefix(key)
	if _, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.config.Bucket),
		Key:    aws.String(full),
	}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	c.logger.WithField("key", full).Info("Object deleted")
	return nil
}

// DeletePrefix removes every object under the given prefix, used when a
// listing is deleted with its photo set. Returns how many objects went.
func (c *S3Client) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	full := c.withPrefix(prefix)
	deleted := 0

	pages := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.config.Bucket),
		Prefix: aws.String(full),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("list objects: %w", err)
		}

		n, err := c.deleteBatch(ctx, page.Contents)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}

	c.logger.WithFields(logging.Fields{
		"prefix": full,
		"count":  deleted,
	}).Info("Prefix deleted")
	return deleted, nil
}

func (c *S3Client) deleteBatch(ctx context.Context, contents []types.Object) (int, error) {
	if len(contents) == 0 {
		return 0, nil
	}

	ids := make([]types.ObjectIdentifier, 0, len(contents))
	for _, obj := range contents {
		ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
	}

	if _, err := c.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(c.config.Bucket),
		Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
	}); err != nil {
		return 0, fmt.Errorf("delete objects: %w", err)
	}
	return len(ids), nil
}

// BuildDocumentKey builds the S3 key for a stored document.
func BuildDocumentKey(landlordID, documentID, filename string) string {
	return fmt.Sprintf("documents/%s/%s/%s", landlordID, documentID, sanitizeFilename(filename))
}

// BuildListingPhotoKey builds the S3 key for a listing photo.
func BuildListingPhotoKey(listingID, photoID, filename string) string {
	ext := "jpg"
	if idx := strings.LastIndex(filename, "."); idx >= 0 && idx < len(filename)-1 {
		ext = strings.ToLower(filename[idx+1:])
	}
	return fmt.Sprintf("listings/%s/%s.%s", listingID, photoID, ext)
}

// ListingPhotoPrefix returns the key prefix holding every photo of one
// listing.
func ListingPhotoPrefix(listingID string) string {
	return fmt.Sprintf("listings/%s/", listingID)
}

// sanitizeFilename strips path separators so user-supplied names cannot
// escape their key prefix.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}
