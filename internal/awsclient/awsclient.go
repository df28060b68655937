// Package awsclient builds the AWS SDK clients shared by the edge providers and
// the syncer publishers.
package awsclient

import (
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/rafaeljc/bifrost/internal/config"
)

// Load resolves credentials and region through the SDK default chain.
// A non-empty region overrides whatever the chain finds.
func Load(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}
	return cfg, nil
}

// ReplicaRegion picks the region a table client should be pinned to: the
// caller's own region when it holds a replica, otherwise fallback.
func ReplicaRegion(current string, replicas []string, fallback string) string {
	if current != "" && slices.Contains(replicas, current) {
		return current
	}
	return fallback
}

// NewS3 builds an S3 client. A custom endpoint switches to path-style addressing.
func NewS3(cfg aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

// NewSSM builds an SSM client.
func NewSSM(cfg aws.Config, endpoint string) *ssm.Client {
	return ssm.NewFromConfig(cfg, func(o *ssm.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// NewDynamoDB builds a DynamoDB client.
func NewDynamoDB(cfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// Clients groups the clients a process needs. Fields stay nil when unused.
type Clients struct {
	S3       *s3.Client
	SSM      *ssm.Client
	DynamoDB *dynamodb.Client
}

// Options selects which clients New builds.
type Options struct {
	S3       bool
	SSM      bool
	DynamoDB bool
}

// New loads the shared config once and builds the requested clients. The
// DynamoDB client is pinned with ReplicaRegion; the others use cfg.Region.
func New(ctx context.Context, cfg *config.AWSConfig, want Options) (*Clients, error) {
	base, err := Load(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}

	clients := &Clients{}
	if want.S3 {
		clients.S3 = NewS3(base, cfg.Endpoint)
	}
	if want.SSM {
		clients.SSM = NewSSM(base, cfg.Endpoint)
	}
	if want.DynamoDB {
		tableCfg := base.Copy()
		tableCfg.Region = ReplicaRegion(base.Region, cfg.ReplicaRegions, cfg.FallbackRegion)
		clients.DynamoDB = NewDynamoDB(tableCfg, cfg.Endpoint)
	}
	return clients, nil
}
