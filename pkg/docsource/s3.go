package docsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// S3Config contains configuration for the S3-backed source store.
type S3Config struct {
	Bucket      string        `env:"DOCSOURCE_S3_BUCKET,required"`
	Region      string        `env:"DOCSOURCE_S3_REGION" envDefault:"us-east-1"`
	AccessKeyID string        `env:"DOCSOURCE_S3_ACCESS_KEY_ID"`
	SecretKey   string        `env:"DOCSOURCE_S3_SECRET_KEY"`
	Endpoint    string        `env:"DOCSOURCE_S3_ENDPOINT"` // for S3-compatible services
	Prefix      string        `env:"DOCSOURCE_S3_PREFIX" envDefault:"previews"`
	PresignTTL  time.Duration `env:"DOCSOURCE_S3_PRESIGN_TTL" envDefault:"15m"`
}

// S3PutAPI is the slice of the S3 client used for uploads.
type S3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3PresignAPI is the slice of the presign client used to mint source URLs.
type S3PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error)
}

// PresignedRequest mirrors the fields of the SDK's presigned request that
// this package consumes, keeping the interface mockable.
type PresignedRequest struct {
	URL          string
	Method       string
	SignedHeader map[string][]string
}

// S3Store uploads content to S3 and returns presigned GET URLs.
// Release is a no-op: object expiry belongs to bucket lifecycle rules, so a
// released handle only invalidates naturally when the presigned URL lapses.
type S3Store struct {
	put     S3PutAPI
	presign S3PresignAPI
	cfg     S3Config
}

// S3StoreOption configures an S3Store.
type S3StoreOption func(*S3Store)

// WithS3Clients sets pre-configured upload and presign clients,
// primarily for tests and S3-compatible services.
func WithS3Clients(put S3PutAPI, presign S3PresignAPI) S3StoreOption {
	return func(s *S3Store) {
		if put != nil {
			s.put = put
		}
		if presign != nil {
			s.presign = presign
		}
	}
}

// NewS3Store creates an S3-backed source store. Credentials fall back to the
// default AWS chain when not set explicitly.
func NewS3Store(ctx context.Context, cfg S3Config, opts ...S3StoreOption) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: bucket is required", ErrInvalidConfig)
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}

	s := &S3Store{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}

	if s.put == nil || s.presign == nil {
		loadOpts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
			))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}

		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		})

		if s.put == nil {
			s.put = client
		}
		if s.presign == nil {
			s.presign = presignAdapter{s3.NewPresignClient(client)}
		}
	}

	return s, nil
}

// Put uploads the content and returns a handle carrying a presigned GET URL.
func (s *S3Store) Put(ctx context.Context, name, contentType string, r io.Reader) (*Handle, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := path.Join(s.cfg.Prefix, uuid.NewString(), path.Base(name))

	_, err := s.put.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket" {
			return nil, fmt.Errorf("%w: bucket %q does not exist", ErrStoreFailed, s.cfg.Bucket)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}

	signed, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.PresignTTL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}

	return &Handle{
		url:         signed.URL,
		contentType: contentType,
	}, nil
}

type presignAdapter struct {
	client *s3.PresignClient
}

func (a presignAdapter) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error) {
	req, err := a.client.PresignGetObject(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	return &PresignedRequest{
		URL:          req.URL,
		Method:       req.Method,
		SignedHeader: req.SignedHeader,
	}, nil
}
