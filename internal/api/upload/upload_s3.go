package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/FACorreiaa/go-posts-api/config"
)

const contentTypeWebP = "image/webp"

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var _ ImageStore = (*S3Store)(nil)

// S3Store keeps images in an S3-compatible bucket and serves them through
// short-lived presigned GET redirects.
type S3Store struct {
	bucket     string
	presignTTL time.Duration
	objects    objectAPI
	presigner  presignAPI
	logger     *slog.Logger
}

func NewS3Store(ctx context.Context, cfg config.S3Config, logger *slog.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(cfg.Bucket, cfg.PresignTTL, client, s3.NewPresignClient(client), logger), nil
}

func newS3Store(bucket string, ttl time.Duration, objects objectAPI, presigner presignAPI, logger *slog.Logger) *S3Store {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3Store{
		bucket:     bucket,
		presignTTL: ttl,
		objects:    objects,
		presigner:  presigner,
		logger:     logger,
	}
}

func (s *S3Store) Save(ctx context.Context, name string, r io.Reader) error {
	if !ValidFilename(name) {
		return ErrInvalidName
	}

	// PutObject needs a seekable body to sign the payload.
	body, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}
		body = bytes.NewReader(data)
	}

	_, err := s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        body,
		ContentType: aws.String(contentTypeWebP),
	})
	if err != nil {
		return fmt.Errorf("putting object %s: %w", name, err)
	}

	s.logger.DebugContext(ctx, "Image stored", slog.String("bucket", s.bucket), slog.String("name", name))
	return nil
}

func (s *S3Store) Delete(ctx context.Context, name string) error {
	if !ValidFilename(name) {
		return ErrInvalidName
	}
	_, err := s.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("deleting object %s: %w", name, err)
	}
	return nil
}

func (s *S3Store) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if !ValidFilename(name) {
			http.NotFound(w, r)
			return
		}

		req, err := s.presigner.PresignGetObject(r.Context(), &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(name),
		}, s3.WithPresignExpires(s.presignTTL))
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Failed to presign image URL", slog.String("name", name), slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			return
		}

		http.Redirect(w, r, req.URL, http.StatusFound)
	})
}
