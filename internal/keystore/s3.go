package keystore

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/and161185/notekeeper/internal/errs"
)

// objectAPI is the part of *s3.Client the backend uses.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config locates the key object in an S3-compatible store (AWS, MinIO).
type S3Config struct {
	Bucket    string
	Object    string
	Region    string
	Endpoint  string // empty for AWS
	AccessKey string
	SecretKey string
}

// S3Backend keeps the key as a single object written with If-None-Match.
type S3Backend struct {
	api    objectAPI
	bucket string
	object string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3Backend builds an S3 client from cfg.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Backend(client, cfg.Bucket, cfg.Object), nil
}

func newS3Backend(api objectAPI, bucket, object string) *S3Backend {
	return &S3Backend{api: api, bucket: bucket, object: object}
}

func (b *S3Backend) String() string { return "s3://" + b.bucket + "/" + b.object }

// Load fetches the key object.
func (b *S3Backend) Load(ctx context.Context) ([]byte, error) {
	out, err := b.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.object),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) || apiErrorCode(err) == "NotFound" {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// CreateExclusive uploads key only if the object does not exist yet.
func (b *S3Backend) CreateExclusive(ctx context.Context, key []byte) error {
	_, err := b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.object),
		Body:        bytes.NewReader(key),
		IfNoneMatch: aws.String("*"),
	})
	switch apiErrorCode(err) {
	case "":
		return err
	case "PreconditionFailed", "ConditionalRequestConflict":
		return errs.ErrAlreadyExists
	default:
		return err
	}
}

func apiErrorCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}
