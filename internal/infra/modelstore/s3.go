package modelstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/agrofocus/yield-service/internal/domain/yield"
)

// S3Options configures an S3-compatible bucket (AWS, R2, MinIO).
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
}

// S3Store keeps one object per crop under Prefix.
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Store constructs the adapter. The bucket is created on first write.
func NewS3Store(opts S3Options, logger *slog.Logger) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	useSSL := strings.HasPrefix(strings.ToLower(opts.Endpoint), "https")
	client, err := minio.New(sanitizeEndpoint(opts.Endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:       useSSL,
		Region:       opts.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	prefix := strings.Trim(opts.Prefix, "/")
	if prefix == "" {
		prefix = "models"
	}
	return &S3Store{
		client: client,
		bucket: opts.Bucket,
		prefix: prefix,
		logger: componentLogger(logger, "s3"),
	}, nil
}

func (s *S3Store) key(crop string) string {
	return path.Join(s.prefix, crop+fileSuffix)
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err == nil && exists {
		return nil
	}
	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return err
	}
	return nil
}

// Load implements yield.ModelStore.
func (s *S3Store) Load(ctx context.Context, crop string) (yield.FittedModel, bool, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(crop), minio.GetObjectOptions{})
	if err != nil {
		return yield.FittedModel{}, false, err
	}
	defer obj.Close()
	blob, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return yield.FittedModel{}, false, nil
		}
		return yield.FittedModel{}, false, err
	}
	model, err := Decode(crop, blob)
	if err != nil {
		return yield.FittedModel{}, false, err
	}
	return model, true, nil
}

// Save uploads the model as a single-part object; PutObject replaces atomically.
func (s *S3Store) Save(ctx context.Context, model yield.FittedModel) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	blob, err := Encode(model)
	if err != nil {
		return err
	}
	info, err := s.client.PutObject(ctx, s.bucket, s.key(model.Crop), bytes.NewReader(blob), int64(len(blob)), minio.PutObjectOptions{
		ContentType:      "application/octet-stream",
		DisableMultipart: true,
	})
	if err != nil {
		return err
	}
	s.logger.Debug("model uploaded", "crop", model.Crop, "key", info.Key, "size", info.Size)
	return nil
}

// List returns every model object under the prefix ordered by crop.
func (s *S3Store) List(ctx context.Context) ([]yield.FittedModel, error) {
	var crops []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.prefix + "/"}) {
		if obj.Err != nil {
			if isNotFound(obj.Err) {
				break
			}
			return nil, obj.Err
		}
		name := path.Base(obj.Key)
		if !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		crops = append(crops, strings.TrimSuffix(name, fileSuffix))
	}
	sort.Strings(crops)
	return listModels(ctx, s, crops, s.logger)
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

// sanitizeEndpoint removes schemes and paths to satisfy minio.New expectations.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if i := strings.Index(raw, "/"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

var _ yield.ModelStore = (*S3Store)(nil)
