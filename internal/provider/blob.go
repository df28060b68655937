package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/rafaeljc/bifrost/internal/experiment"
)

// S3API is the subset of the S3 client used to read the document.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// SSMAPI is the subset of the SSM client used to resolve the bucket name.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LocationResolver yields the bucket holding the configuration document.
type LocationResolver interface {
	Resolve(ctx context.Context) (string, error)
	// Invalidate forgets a memoized location so the next Resolve asks again.
	Invalidate()
}

// StaticLocation is a bucket name known at start-up.
type StaticLocation string

func (s StaticLocation) Resolve(context.Context) (string, error) { return string(s), nil }
func (s StaticLocation) Invalidate()                             {}

// SSMLocation reads the bucket name from an SSM parameter once and memoizes it.
// After Invalidate the parameter is read again.
type SSMLocation struct {
	client SSMAPI
	name   string

	mu     sync.Mutex
	bucket string
}

// NewSSMLocation resolves the bucket through parameter name.
func NewSSMLocation(client SSMAPI, name string) *SSMLocation {
	if client == nil {
		panic("provider: ssm client cannot be nil")
	}
	return &SSMLocation{client: client, name: name}
}

func (l *SSMLocation) Resolve(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.bucket != "" {
		return l.bucket, nil
	}

	out, err := l.client.GetParameter(ctx, &ssm.GetParameterInput{Name: aws.String(l.name)})
	if err != nil {
		return "", fmt.Errorf("failed to read parameter %q: %w", l.name, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("parameter %q is empty", l.name)
	}

	l.bucket = aws.ToString(out.Parameter.Value)
	return l.bucket, nil
}

func (l *SSMLocation) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bucket = ""
}

// Blob reads the path-keyed document from an object store in two steps:
// resolve the bucket, then GetObject.
type Blob struct {
	location LocationResolver
	client   S3API
	key      string
}

// NewBlob reads key from the bucket that location resolves to.
func NewBlob(location LocationResolver, client S3API, key string) *Blob {
	if location == nil || client == nil {
		panic("provider: blob provider requires a location resolver and an s3 client")
	}
	return &Blob{location: location, client: client, key: key}
}

func (b *Blob) Name() string { return "s3" }

func (b *Blob) Fetch(ctx context.Context, path string) (experiment.SegmentationRule, error) {
	bucket, err := b.location.Resolve(ctx)
	if err != nil {
		return experiment.SegmentationRule{}, experiment.FetchFailure(b.Name(), path, err)
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return experiment.SegmentationRule{}, experiment.MissingFailure(b.Name(), path)
		}
		// The bucket may have moved; look it up again next time.
		b.location.Invalidate()
		return experiment.SegmentationRule{}, experiment.FetchFailure(b.Name(), path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxDocumentSize))
	if err != nil {
		return experiment.SegmentationRule{}, experiment.FetchFailure(b.Name(), path, err)
	}
	return ParseDocument(b.Name(), path, data)
}
