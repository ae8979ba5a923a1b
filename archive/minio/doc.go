// Package minio implements archive.Sink for MinIO and S3-compatible
// object storage.
package minio
