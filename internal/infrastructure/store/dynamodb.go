package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamoKey is the partition key attribute of the records table.
const dynamoKey = "id"

// DynamoDBAPI is the subset of the DynamoDB client used by the store.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoDB stores each record as an item keyed by "id". Patches are applied
// per top-level attribute: nested objects are replaced, not merged.
type DynamoDB struct {
	client DynamoDBAPI
	table  string
}

// NewDynamoDB creates a DynamoDB store using the default AWS credential chain.
func NewDynamoDB(ctx context.Context, region, table string) (*DynamoDB, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewDynamoDBWithClient(dynamodb.NewFromConfig(cfg), table), nil
}

// NewDynamoDBWithClient creates a DynamoDB store over an existing client.
func NewDynamoDBWithClient(client DynamoDBAPI, table string) *DynamoDB {
	if table == "" {
		table = DefaultTable
	}
	return &DynamoDB{client: client, table: table}
}

func (d *DynamoDB) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoKey: &types.AttributeValueMemberS{Value: id},
	}
}

func (d *DynamoDB) Get(ctx context.Context, id string) (Document, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            d.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var doc Document
	if err := attributevalue.UnmarshalMap(out.Item, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	delete(doc, dynamoKey)
	return doc, nil
}

func (d *DynamoDB) MergePatch(ctx context.Context, id string, patch map[string]any) error {
	normalized, err := normalize(patch)
	if err != nil {
		return err
	}
	delete(normalized, dynamoKey)
	if len(normalized) == 0 {
		return nil
	}

	expr, names, values, err := updateExpression(normalized)
	if err != nil {
		return err
	}
	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(d.table),
		Key:                      d.key(id),
		UpdateExpression:         aws.String(expr),
		ExpressionAttributeNames: names,
	}
	if len(values) > 0 {
		input.ExpressionAttributeValues = values
	}
	if _, err := d.client.UpdateItem(ctx, input); err != nil {
		return fmt.Errorf("failed to patch record %s: %w", id, err)
	}
	return nil
}

func (d *DynamoDB) Close() error { return nil }

// updateExpression builds a SET/REMOVE update expression with one
// placeholder per top-level field, in sorted field order.
func updateExpression(patch map[string]any) (string, map[string]string, map[string]types.AttributeValue, error) {
	fields := make([]string, 0, len(patch))
	for k := range patch {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	names := make(map[string]string, len(fields))
	values := make(map[string]types.AttributeValue)
	var set, remove []string

	for i, field := range fields {
		name := fmt.Sprintf("#f%d", i)
		names[name] = field

		if patch[field] == nil {
			remove = append(remove, name)
			continue
		}
		av, err := attributevalue.Marshal(patch[field])
		if err != nil {
			return "", nil, nil, fmt.Errorf("failed to encode field %s: %w", field, err)
		}
		placeholder := fmt.Sprintf(":v%d", i)
		values[placeholder] = av
		set = append(set, name+" = "+placeholder)
	}

	var parts []string
	if len(set) > 0 {
		parts = append(parts, "SET "+strings.Join(set, ", "))
	}
	if len(remove) > 0 {
		parts = append(parts, "REMOVE "+strings.Join(remove, ", "))
	}
	return strings.Join(parts, " "), names, values, nil
}
