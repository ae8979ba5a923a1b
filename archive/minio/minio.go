package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/RogerMarsh/solentware-base-sub000/archive"
)

// Sink implements archive.Sink on a MinIO bucket.
type Sink struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ archive.Sink = (*Sink)(nil)

// NewSink creates a sink over bucket. rootPrefix is prepended to all
// object names (e.g. "guards/").
func NewSink(client *minio.Client, bucket, rootPrefix string) *Sink {
	return &Sink{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

func (s *Sink) key(name string) string {
	return path.Join(s.prefix, name)
}

func notFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// Put writes an object.
func (s *Sink) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name),
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

// Get returns an object's content.
func (s *Sink) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if notFound(err) {
			return nil, archive.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Delete removes an object. A missing object is not an error.
func (s *Sink) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if err != nil && !notFound(err) {
		return err
	}
	return nil
}

// List returns all object names under prefix, sorted.
func (s *Sink) List(ctx context.Context, prefix string) ([]string, error) {
	// path.Join eats trailing separators; keep them so "a/" cannot
	// match "ab/...".
	fullPrefix := s.key(prefix)
	if strings.HasSuffix(prefix, "/") && !strings.HasSuffix(fullPrefix, "/") {
		fullPrefix += "/"
	}

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    fullPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		name := strings.TrimPrefix(obj.Key, s.prefix)
		name = strings.TrimPrefix(name, "/")
		if name != "" {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}
