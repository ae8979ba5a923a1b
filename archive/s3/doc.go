// Package s3 implements archive.Sink for Amazon S3 and archive.Ledger
// for DynamoDB. Together they give guards durable off-site storage with
// atomic commit visibility, which S3 alone does not provide.
package s3
