// Package storage persists raw uploaded document bytes in an object store,
// keyed per owning user.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	miniosdk "github.com/minio/minio-go/v7"
)

// BlobStore stores and retrieves raw document payloads.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// DocumentKey builds the storage locator for a document, scoped under the
// owning user.
func DocumentKey(ownerID uint, documentID string) string {
	return fmt.Sprintf("users/%d/documents/%s", ownerID, documentID)
}

type MinioStore struct {
	client *miniosdk.Client
	bucket string
}

func NewMinioStore(client *miniosdk.Client, bucket string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket}
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		miniosdk.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("store object failed: %w", err)
	}
	return nil
}

func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, miniosdk.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object failed: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object failed: %w", err)
	}
	return data, nil
}

func (s *MinioStore) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, miniosdk.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object failed: %w", err)
	}
	return nil
}
