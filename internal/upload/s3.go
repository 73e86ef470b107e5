package upload

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"hadiqa-go/internal/hq"
)

// S3Config holds the settings for an S3 (or S3-compatible) upload target.
type S3Config struct {
	Name          string
	Bucket        string
	Prefix        string
	Region        string
	Endpoint      string // empty means AWS
	PublicBaseURL string // empty means the bucket's virtual-host URL
	AccessKey     string // empty means the default credential chain
	SecretKey     string
}

// s3API is the subset of *s3.Client used by S3Target.
type s3API interface {
	manager.UploadAPIClient
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Target uploads media to an S3 bucket with the multipart upload manager.
type S3Target struct {
	client   s3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
	baseURL  string
	clock    hq.Clock
	idgen    hq.IDGenerator
}

// NewS3Target creates an S3 upload target from cfg.
func NewS3Target(ctx context.Context, cfg S3Config, clock hq.Clock, idgen hq.IDGenerator) (*S3Target, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 upload target requires s3_bucket to be set")
	}
	if cfg.Region == "" {
		cfg.Region = "eu-central-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		if cfg.Endpoint != "" {
			baseURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	if cfg.Prefix != "" {
		baseURL = strings.TrimSuffix(baseURL, "/") + "/" + strings.Trim(cfg.Prefix, "/")
	}

	return newS3Target(client, cfg.Bucket, cfg.Prefix, baseURL, clock, idgen), nil
}

func newS3Target(client s3API, bucket, prefix, baseURL string, clock hq.Clock, idgen hq.IDGenerator) *S3Target {
	return &S3Target{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		baseURL:  baseURL,
		clock:    clock,
		idgen:    idgen,
	}
}

// S3ConfigFromEnv fills credentials from AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY when set.
func S3ConfigFromEnv(cfg S3Config) S3Config {
	if cfg.AccessKey == "" {
		cfg.AccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		cfg.SecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	return cfg
}

func (t *S3Target) Upload(ctx context.Context, req hq.UploadRequest, r io.Reader, size int64) (*hq.UploadedResource, error) {
	publicID := newPublicID(req, t.idgen)
	key := path.Join(t.prefix, objectKey(publicID, req.Format))

	_, err := t.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType(req.Format)),
		Metadata: map[string]string{
			"caption": url.QueryEscape(req.Caption),
			"tags":    url.QueryEscape(strings.Join(req.Tags, ",")),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload object %s: %w", key, err)
	}

	return describe(req, publicID, t.baseURL, t.clock.Now()), nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (t *S3Target) ValidateSetup(ctx context.Context) error {
	if _, err := t.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(t.bucket)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", t.bucket, err)
	}
	return nil
}

func contentType(format string) string {
	switch strings.ToLower(format) {
	case "mp4", "m4v":
		return "video/mp4"
	case "mov":
		return "video/quicktime"
	case "webm":
		return "video/webm"
	case "mkv":
		return "video/x-matroska"
	default:
		return "application/octet-stream"
	}
}

var _ hq.UploadTarget = (*S3Target)(nil)
