package provider

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rafaeljc/bifrost/internal/experiment"
)

// DynamoDBAPI is the subset of the DynamoDB client used by Table.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Table reads one item per path from a replicated DynamoDB table. Items carry
// the attributes path, segment, version_a and version_b.
type Table struct {
	client DynamoDBAPI
	table  string
}

// NewTable reads from table. The client should be pinned to the nearest
// replica (see awsclient.ReplicaRegion).
func NewTable(client DynamoDBAPI, table string) *Table {
	if client == nil {
		panic("provider: dynamodb client cannot be nil")
	}
	return &Table{client: client, table: table}
}

func (t *Table) Name() string { return "dynamodb" }

// Fetch does an eventually consistent GetItem; replicas lag, and the edge
// tolerates reading a slightly older rule.
func (t *Table) Fetch(ctx context.Context, path string) (experiment.SegmentationRule, error) {
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.table),
		Key: map[string]types.AttributeValue{
			"path": &types.AttributeValueMemberS{Value: path},
		},
		ConsistentRead: aws.Bool(false),
	})
	if err != nil {
		return experiment.SegmentationRule{}, experiment.FetchFailure(t.Name(), path, err)
	}
	if len(out.Item) == 0 {
		return experiment.SegmentationRule{}, experiment.MissingFailure(t.Name(), path)
	}

	var entry wireEntry
	if err := attributevalue.UnmarshalMap(out.Item, &entry); err != nil {
		return experiment.SegmentationRule{}, experiment.ParseFailure(t.Name(), path, err)
	}
	return entry.rule(t.Name(), path)
}
