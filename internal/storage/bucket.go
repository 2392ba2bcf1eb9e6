package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BucketOptions configures a BucketStore.
type BucketOptions struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Prefix    string
	UseSSL    bool
}

// objectClient is the subset of *minio.Client the store uses.
type objectClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// BucketStore implements Store on an S3-compatible bucket.
type BucketStore struct {
	client objectClient
	bucket string
	prefix string

	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewBucketStore connects to the endpoint and creates the bucket if needed.
func NewBucketStore(ctx context.Context, opts BucketOptions) (*BucketStore, error) {
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating bucket client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", opts.Bucket, err)
		}
	}

	return newBucketStore(cli, opts.Bucket, opts.Prefix), nil
}

func newBucketStore(client objectClient, bucket, prefix string) *BucketStore {
	return &BucketStore{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		entries: make(map[string]*Entry),
	}
}

func (s *BucketStore) objectKey(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Save uploads data as one object and returns its s3:// location.
func (s *BucketStore) Save(ctx context.Context, name, contentType string, data []byte) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}

	key := s.objectKey(name)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:        contentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", name),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}

	location := fmt.Sprintf("s3://%s/%s", s.bucket, key)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = &Entry{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		SavedAt:     time.Now(),
		Location:    location,
	}

	return location, nil
}

// Get retrieves metadata of a report saved by this process.
func (s *BucketStore) Get(name string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("report not found: %s", name)
	}
	return entry, nil
}

// List returns the most recent reports saved by this process.
func (s *BucketStore) List(limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortEntries(s.entries, limit), nil
}

// Delete removes the object.
func (s *BucketStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; !ok {
		return fmt.Errorf("report not found: %s", name)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, s.objectKey(name), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("removing %s: %w", name, err)
	}

	delete(s.entries, name)
	return nil
}
