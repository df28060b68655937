package publish

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rafaeljc/bifrost/internal/provider"
	"github.com/rafaeljc/bifrost/internal/store"
)

// S3API is the subset of the S3 client used by Blob.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Blob uploads the document as a single S3 object. The bucket comes from the
// same location resolver the blob provider reads through.
type Blob struct {
	location provider.LocationResolver
	client   S3API
	key      string
}

// NewBlob writes object key in the bucket named by location.
func NewBlob(location provider.LocationResolver, client S3API, key string) *Blob {
	if location == nil || client == nil {
		panic("publish: blob location and s3 client are required")
	}
	return &Blob{location: location, client: client, key: key}
}

func (b *Blob) Name() string { return "blob" }

func (b *Blob) Publish(ctx context.Context, doc store.Document) error {
	data, err := doc.Marshal()
	if err != nil {
		return err
	}

	bucket, err := b.location.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve document bucket: %w", err)
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(b.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		b.location.Invalidate()
		return fmt.Errorf("failed to upload s3://%s/%s: %w", bucket, b.key, err)
	}
	return nil
}
