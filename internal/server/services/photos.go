package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrijs2005/marinelog/internal/api"
	"github.com/dmitrijs2005/marinelog/internal/common"
	"github.com/dmitrijs2005/marinelog/internal/server/config"
	"github.com/dmitrijs2005/marinelog/internal/server/metrics"
)

const (
	// MaxPhotoSize bounds a single uploaded photo.
	MaxPhotoSize = 10 << 20

	presignExpiry = 15 * time.Minute
)

var sha256Hex = regexp.MustCompile(`^[0-9a-f]{64}$`)

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// BlobStore is the object storage holding photo content.
type BlobStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	PresignPut(ctx context.Context, key, contentType string) (string, error)
}

// S3Store is a BlobStore over an S3-compatible backend.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

func NewS3Store(ctx context.Context, cfg *config.Config) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &S3Store{client: client, presign: s3.NewPresignClient(client), bucket: cfg.S3Bucket}, nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("head object %s: %w", key, err)
}

func (s *S3Store) PresignPut(ctx context.Context, key, contentType string) (string, error) {
	req, err := presignPutObject(s.presign, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return req.URL, nil
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
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// PhotoService hands out upload slots keyed by content digest, so the same
// bytes always map to one object and one URL.
type PhotoService struct {
	store BlobStore
	url   func(key string) string
}

func NewPhotoService(store BlobStore, cfg *config.Config) *PhotoService {
	return &PhotoService{store: store, url: cfg.PhotoURL}
}

// PhotoKey is the object key for content with the given digest.
func PhotoKey(sha, contentType string) string {
	return "photos/" + sha[:2] + "/" + sha + photoExtensions[contentType]
}

func (s *PhotoService) UploadSlot(ctx context.Context, req api.PhotoUploadRequest) (*api.PhotoUploadResponse, error) {
	if !sha256Hex.MatchString(req.SHA256) {
		return nil, fmt.Errorf("%w: sha256 must be 64 lowercase hex characters", common.ErrorValidation)
	}
	if req.Size <= 0 || req.Size > MaxPhotoSize {
		return nil, fmt.Errorf("%w: size must be within 1-%d bytes", common.ErrorValidation, MaxPhotoSize)
	}
	if _, ok := photoExtensions[req.ContentType]; !ok {
		return nil, fmt.Errorf("%w: unsupported content type %q", common.ErrorValidation, req.ContentType)
	}

	key := PhotoKey(req.SHA256, req.ContentType)
	resp := &api.PhotoUploadResponse{URL: s.url(key)}

	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		metrics.PhotoSlotsTotal.WithLabelValues("exists").Inc()
		resp.Exists = true
		return resp, nil
	}

	upload, err := s.store.PresignPut(ctx, key, req.ContentType)
	if err != nil {
		return nil, err
	}
	metrics.PhotoSlotsTotal.WithLabelValues("upload").Inc()
	resp.UploadURL = upload
	return resp, nil
}
