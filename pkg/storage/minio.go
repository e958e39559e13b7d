package stores

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store receives backup archives.
type Store interface {
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PublicURL(key string) string
}

type MinioStore struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET"`
	UseSSL    bool   `env:"MINIO_USE_SSL"`
	BaseURL   string `env:"MINIO_PUBLIC_BASE"` // optional public base URL

	once sync.Once
	cli  *minio.Client
	err  error
}

// NewMinioStore returns nil when no endpoint or bucket is configured.
func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) *MinioStore {
	if endpoint == "" || bucket == "" {
		return nil
	}
	return &MinioStore{
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Bucket:    bucket,
		UseSSL:    useSSL,
	}
}

func (m *MinioStore) client() (*minio.Client, error) {
	m.once.Do(func() {
		m.cli, m.err = minio.New(m.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(m.AccessKey, m.SecretKey, ""),
			Secure: m.UseSSL,
		})
	})
	return m.cli, m.err
}

func (m *MinioStore) ensureBucket(ctx context.Context, cli *minio.Client) error {
	exists, err := cli.BucketExists(ctx, m.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return cli.MakeBucket(ctx, m.Bucket, minio.MakeBucketOptions{})
	}
	return nil
}

// Write uploads r; size -1 streams with multipart upload.
func (m *MinioStore) Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	cli, err := m.client()
	if err != nil {
		return err
	}
	if err := m.ensureBucket(ctx, cli); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = cli.PutObject(ctx, m.Bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (m *MinioStore) PublicURL(key string) string {
	if m.BaseURL != "" {
		return strings.TrimRight(m.BaseURL, "/") + "/" + key
	}
	// fall back to the endpoint; the bucket needs a public-read policy
	scheme := "http://"
	if m.UseSSL {
		scheme = "https://"
	}
	return scheme + m.Endpoint + "/" + m.Bucket + "/" + key
}
