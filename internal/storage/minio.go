package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectError wraps a failed object-storage call with the operation and the
// object key it was acting on.
type ObjectError struct {
	Op  string
	Key string
	Err error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("object storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// MinioStore holds converted attachment bytes and issues time-limited
// download links for the email delivery path.
type MinioStore struct {
	client     *minio.Client
	bucket     string
	linkExpiry time.Duration
}

func NewMinioStore(endpoint, accessKey, secretKey string, useSSL bool, bucket string, linkExpiry time.Duration) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStore{client: client, bucket: bucket, linkExpiry: linkExpiry}, nil
}

func (m *MinioStore) Download(ctx context.Context, fileID string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, fileID, minio.GetObjectOptions{})
	if err != nil {
		return nil, &ObjectError{Op: "get", Key: fileID, Err: err}
	}
	defer obj.Close()

	data := new(bytes.Buffer)
	if _, err := data.ReadFrom(obj); err != nil {
		return nil, &ObjectError{Op: "read", Key: fileID, Err: err}
	}
	return data.Bytes(), nil
}

// PresignedLink returns a time-limited download URL for the given file.
func (m *MinioStore) PresignedLink(ctx context.Context, fileID string) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, fileID, m.linkExpiry, nil)
	if err != nil {
		return "", &ObjectError{Op: "presign", Key: fileID, Err: err}
	}
	return u.String(), nil
}
