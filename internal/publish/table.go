package publish

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rafaeljc/bifrost/internal/store"
)

// DynamoDBAPI is the subset of the DynamoDB client used by Table.
type DynamoDBAPI interface {
	dynamodb.ScanAPIClient
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// tableItem is the item layout read by provider.Table.
type tableItem struct {
	Path     string `dynamodbav:"path"`
	Segment  int    `dynamodbav:"segment"`
	VersionA string `dynamodbav:"version_a"`
	VersionB string `dynamodbav:"version_b"`
}

// Table writes one item per path and removes items whose path is no longer
// in the document. Writes go to the primary region; global tables replicate.
type Table struct {
	client DynamoDBAPI
	table  string
}

func NewTable(client DynamoDBAPI, table string) *Table {
	if client == nil {
		panic("publish: dynamodb client cannot be nil")
	}
	return &Table{client: client, table: table}
}

func (t *Table) Name() string { return "table" }

func (t *Table) Publish(ctx context.Context, doc store.Document) error {
	for path, entry := range doc {
		item, err := attributevalue.MarshalMap(tableItem{
			Path:     path,
			Segment:  entry.Segment,
			VersionA: entry.VersionA,
			VersionB: entry.VersionB,
		})
		if err != nil {
			return fmt.Errorf("failed to encode item %q: %w", path, err)
		}
		if _, err := t.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(t.table),
			Item:      item,
		}); err != nil {
			return fmt.Errorf("failed to put item %q: %w", path, err)
		}
	}

	existing, err := t.paths(ctx)
	if err != nil {
		return err
	}
	for _, path := range existing {
		if _, ok := doc[path]; ok {
			continue
		}
		if _, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(t.table),
			Key: map[string]types.AttributeValue{
				"path": &types.AttributeValueMemberS{Value: path},
			},
		}); err != nil {
			return fmt.Errorf("failed to delete item %q: %w", path, err)
		}
	}
	return nil
}

// paths lists the partition keys currently in the table.
func (t *Table) paths(ctx context.Context) ([]string, error) {
	var paths []string
	pager := dynamodb.NewScanPaginator(t.client, &dynamodb.ScanInput{
		TableName:            aws.String(t.table),
		ProjectionExpression: aws.String("#p"),
		ExpressionAttributeNames: map[string]string{
			"#p": "path",
		},
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table %q: %w", t.table, err)
		}
		for _, item := range page.Items {
			var row struct {
				Path string `dynamodbav:"path"`
			}
			if err := attributevalue.UnmarshalMap(item, &row); err != nil {
				return nil, fmt.Errorf("failed to decode item key: %w", err)
			}
			paths = append(paths, row.Path)
		}
	}
	return paths, nil
}
