package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig configures the S3-compatible backend.
type MinioConfig struct {
	Endpoint  string // "minio:9000" or "http(s)://minio:9000"
	AccessKey string
	SecretKey string
	Bucket    string
	LinkTTL   time.Duration // lifetime of the presigned download URL
}

// Minio stores blobs in an S3-compatible bucket and hands out presigned
// GET URLs. The URL expiry equals the presign TTL, so files relayed
// through this backend always carry an ExpiresAt.
type Minio struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		secure = (u.Scheme == "https")
		return u.Host, secure, nil
	}

	// No scheme provided, treat as host:port (insecure by default for local MinIO).
	return raw, false, nil
}

// NewMinio builds the backend and verifies the bucket exists.
func NewMinio(cfg MinioConfig) (*Minio, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio configuration incomplete")
	}
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = 24 * time.Hour
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	// Sanity check: bucket must exist.
	exists, err := client.BucketExists(context.Background(), cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("minio bucket does not exist: %s", cfg.Bucket)
	}

	return &Minio{client: client, bucket: cfg.Bucket, ttl: cfg.LinkTTL}, nil
}

func (m *Minio) Name() string { return "minio" }

func (m *Minio) Store(ctx context.Context, blob []byte, filename, mimeType string, opts StoreOptions) (StoredObject, error) {
	// Object keys are uuid-prefixed so colliding filenames never
	// overwrite each other.
	objectKey := uuid.NewString() + "/" + filename

	// A requested expiry shortens the presign TTL; it never extends it
	// past the configured ceiling.
	ttl := m.ttl
	if opts.Expiry > 0 && opts.Expiry < ttl {
		ttl = opts.Expiry
	}

	_, err := m.client.PutObject(ctx, m.bucket, objectKey,
		bytes.NewReader(blob), int64(len(blob)),
		minio.PutObjectOptions{ContentType: mimeType})
	if err != nil {
		return StoredObject{}, failed(m.Name(), err)
	}

	presigned, err := m.client.PresignedGetObject(ctx, m.bucket, objectKey, ttl, url.Values{})
	if err != nil {
		return StoredObject{}, failed(m.Name(), err)
	}

	expires := time.Now().Add(ttl)
	return StoredObject{URL: presigned.String(), ExpiresAt: &expires}, nil
}
