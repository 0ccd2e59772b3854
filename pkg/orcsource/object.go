package orcsource

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig holds connection settings for an S3-compatible object store.
type ObjectConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Region          string `yaml:"region"`
	Insecure        bool   `yaml:"insecure"`
}

// Validate checks that the object store configuration is usable.
func (c *ObjectConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	if c.Bucket == "" {
		return fmt.Errorf("bucket cannot be empty")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("access key id and secret access key must be set together")
	}
	return nil
}

// NewObjectClient creates a minio client from cfg.
func NewObjectClient(cfg *ObjectConfig) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid object config: %w", err)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: !cfg.Insecure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object client: %w", err)
	}
	return client, nil
}

// ObjectSource reads an ORC object with ranged GETs.
type ObjectSource struct {
	obj  *minio.Object
	size int64
	key  string
}

// NewObjectSource opens bucket/key and resolves its size.
// The caller must Close the returned source.
func NewObjectSource(ctx context.Context, client *minio.Client, bucket, key string) (*ObjectSource, error) {
	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}

	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("stat object %s/%s: %w", bucket, key, err)
	}

	return &ObjectSource{obj: obj, size: info.Size, key: key}, nil
}

func (s *ObjectSource) Size() (int64, error) { return s.size, nil }

func (s *ObjectSource) ReadAt(p []byte, off int64, _ DataType) (int, error) {
	if off < 0 || off+int64(len(p)) > s.size {
		return 0, fmt.Errorf("%s: %w: [%d, %d) of %d", s.key, ErrOutOfRange, off, off+int64(len(p)), s.size)
	}
	return s.obj.ReadAt(p, off)
}

// Name returns the object key.
func (s *ObjectSource) Name() string { return s.key }

func (s *ObjectSource) Close() error { return s.obj.Close() }
