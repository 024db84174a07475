package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ozzaii/beatflow/pkg/patterns"
)

// S3Config holds the bucket settings shared by S3Sink and S3Source.
type S3Config struct {
	Bucket          string
	Region          string // default us-east-1
	Endpoint        string // optional, e.g. a MinIO URL
	Prefix          string // key prefix for exported artefacts
	PathStyle       bool
	AccessKeyID     string // optional, falls back to the default credentials chain
	SecretAccessKey string
	HTTPClient      *http.Client // optional transport override
}

// NewS3Client builds an S3 client from cfg.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	}), nil
}

// S3Sink uploads artefacts to a bucket. Like DirSink it never replaces an
// existing object; a taken key gets a " (n)" suffix.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Sink returns a sink uploading with client into bucket under prefix.
func NewS3Sink(client *s3.Client, bucket, prefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Offer uploads data and returns its s3:// URI.
func (s *S3Sink) Offer(ctx context.Context, name string, data []byte) (string, error) {
	base, ext := splitName(SanitizeFilename(name))
	for n := 0; n < maxNameAttempts; n++ {
		key := s.key(candidateName(base, ext, n))
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
		if err == nil {
			continue
		}
		if !isNotFound(err) {
			return "", fmt.Errorf("failed to check s3://%s/%s: %w", s.bucket, key, err)
		}
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      &s.bucket,
			Key:         &key,
			Body:        bytes.NewReader(data),
			ContentType: aws.String(ContentType),
		})
		if err != nil {
			return "", fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, key, err)
		}
		return "s3://" + s.bucket + "/" + key, nil
	}
	return "", fmt.Errorf("no free key for %q in s3://%s/%s", name, s.bucket, s.prefix)
}

func (s *S3Sink) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// S3Source opens artefacts stored in a bucket for import.
type S3Source struct {
	client *s3.Client
	bucket string
}

// NewS3Source returns a source reading from bucket with client.
func NewS3Source(client *s3.Client, bucket string) *S3Source {
	return &S3Source{client: client, bucket: bucket}
}

// Open returns the body of the object at key. The caller closes it.
func (s *S3Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch s3://%s/%s: %w", s.bucket, key, err)
	}
	return out.Body, nil
}

// ImportS3 fetches key from src and imports it. A fetch failure is reported as
// storage unavailable; everything after that behaves like Import.
func (x *Exchange) ImportS3(ctx context.Context, src *S3Source, key string) (*patterns.Draft, error) {
	body, err := src.Open(ctx, key)
	if err != nil {
		return nil, x.fail("import", "", &patterns.Error{Kind: patterns.KindStorageUnavailable, Op: "import", Err: err})
	}
	defer body.Close()
	return x.Import(ctx, body)
}

// ParseS3URI splits "s3://bucket/key" into its parts.
func ParseS3URI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
