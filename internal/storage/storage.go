// Package storage contains the object store used for chat attachments.
// Implementations stream uploads and never touch local disk.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrDisabled is returned by Disabled for every call.
var ErrDisabled = errors.New("object storage is not configured")

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the
// backend will chunk the upload.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ETag        string
	ContentType string
}

// Storage is an S3-compatible object storage client.
type Storage interface {
	// Put uploads an object under the given key.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited download URL.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	// Ping reports whether the bucket is reachable.
	Ping(ctx context.Context) error
}

// Disabled stands in when no endpoint is configured.
type Disabled struct{}

var _ Storage = Disabled{}

func (Disabled) Put(context.Context, string, io.Reader, PutObjectOptions) (ObjectInfo, error) {
	return ObjectInfo{}, ErrDisabled
}

func (Disabled) Delete(context.Context, string) error { return ErrDisabled }

func (Disabled) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Ping(context.Context) error { return ErrDisabled }
