package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/PratikDhanave/event-inbox-service/internal/models"
)

// DynamoDBConfig holds configuration for DynamoDBStore.
type DynamoDBConfig struct {
	Table    string
	Index    string // GSI with status as hash key and created_at as range key
	Region   string
	Endpoint string // Optional custom endpoint (LocalStack, DynamoDB Local)
}

// DynamoDBStore implements Backend on a DynamoDB table with a (status, created_at) GSI.
type DynamoDBStore struct {
	client *dynamodb.Client
	table  string
	index  string
}

// dynamoItem is the on-table representation of an event.
type dynamoItem struct {
	EventID        string                 `dynamodbav:"event_id"`
	Timestamp      string                 `dynamodbav:"timestamp"`
	CreatedAt      int64                  `dynamodbav:"created_at"`
	Payload        map[string]interface{} `dynamodbav:"payload"`
	Source         string                 `dynamodbav:"source,omitempty"`
	Tags           []string               `dynamodbav:"tags,omitempty"`
	Metadata       map[string]interface{} `dynamodbav:"metadata,omitempty"`
	Status         string                 `dynamodbav:"status"`
	AcknowledgedAt *int64                 `dynamodbav:"acknowledged_at,omitempty"`
}

// NewDynamoDBStore loads the default AWS config and builds a client for the table.
func NewDynamoDBStore(ctx context.Context, cfg DynamoDBConfig) (*DynamoDBStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return NewDynamoDBStoreWithClient(client, cfg.Table, cfg.Index), nil
}

// NewDynamoDBStoreWithClient wraps an existing client.
func NewDynamoDBStoreWithClient(client *dynamodb.Client, table, index string) *DynamoDBStore {
	return &DynamoDBStore{client: client, table: table, index: index}
}

// EnsureSchema creates the table and its GSI when missing and waits until it is active.
func (d *DynamoDBStore) EnsureSchema(ctx context.Context) error {
	_, err := d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(d.table),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("event_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("status"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("created_at"), AttributeType: types.ScalarAttributeTypeN},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("event_id"), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(d.index),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("status"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("created_at"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return fmt.Errorf("failed to create table %s: %w", d.table, err)
		}
	}

	waiter := dynamodb.NewTableExistsWaiter(d.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.table)}, 2*time.Minute); err != nil {
		return fmt.Errorf("table %s did not become active: %w", d.table, err)
	}
	return nil
}

// Ping checks that the table is reachable.
func (d *DynamoDBStore) Ping(ctx context.Context) error {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.table)})
	return mapDynamoError(err)
}

// Close is a no-op; the SDK client holds no connections to release.
func (d *DynamoDBStore) Close() error { return nil }

// Put writes the event item.
func (d *DynamoDBStore) Put(ctx context.Context, e *models.Event) error {
	item, err := attributevalue.MarshalMap(toDynamoItem(e))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put event: %w", mapDynamoError(err))
	}
	return nil
}

// Get reads one event with a consistent read.
func (d *DynamoDBStore) Get(ctx context.Context, id string) (*models.Event, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            eventKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", mapDynamoError(err))
	}
	if len(out.Item) == 0 {
		return nil, ErrItemNotFound
	}
	return unmarshalEvent(out.Item)
}

// Acknowledge performs a conditional UpdateItem. On a failed condition the old item
// is returned by DynamoDB, which tells a missing event from a non-pending one.
func (d *DynamoDBStore) Acknowledge(ctx context.Context, id string, at int64) (*models.Event, error) {
	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.table),
		Key:                 eventKey(id),
		UpdateExpression:    aws.String("SET #status = :acknowledged, acknowledged_at = :ack_at"),
		ConditionExpression: aws.String("attribute_exists(event_id) AND #status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":acknowledged": &types.AttributeValueMemberS{Value: string(models.StatusAcknowledged)},
			":pending":      &types.AttributeValueMemberS{Value: string(models.StatusPending)},
			":ack_at":       &types.AttributeValueMemberN{Value: strconv.FormatInt(at, 10)},
		},
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			if len(condErr.Item) == 0 {
				return nil, ErrItemNotFound
			}
			current, uerr := unmarshalEvent(condErr.Item)
			if uerr != nil {
				return nil, uerr
			}
			return current, ErrConditionFailed
		}
		return nil, fmt.Errorf("failed to acknowledge event: %w", mapDynamoError(err))
	}
	return unmarshalEvent(out.Attributes)
}

// Query reads the status GSI. since is a key condition on the range key, source a filter.
// DynamoDB applies Limit before the filter, so pages are followed until enough items match.
func (d *DynamoDBStore) Query(ctx context.Context, q Query) (QueryResult, error) {
	keyCond := "#status = :status"
	names := map[string]string{"#status": "status"}
	values := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: string(q.Status)},
	}
	if q.Since != nil {
		keyCond += " AND created_at >= :since"
		values[":since"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(*q.Since, 10)}
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(d.table),
		IndexName:                 aws.String(d.index),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(!q.Descending),
	}
	if q.Source != "" {
		input.FilterExpression = aws.String("#source = :source")
		names["#source"] = "source"
		values[":source"] = &types.AttributeValueMemberS{Value: q.Source}
	}

	items := []*models.Event{}
	for {
		if q.Limit > 0 {
			input.Limit = aws.Int32(int32(q.Limit - len(items)))
		}

		out, err := d.client.Query(ctx, input)
		if err != nil {
			return QueryResult{}, fmt.Errorf("failed to query index %s: %w", d.index, mapDynamoError(err))
		}
		for _, raw := range out.Items {
			e, err := unmarshalEvent(raw)
			if err != nil {
				return QueryResult{}, err
			}
			items = append(items, e)
		}

		if len(out.LastEvaluatedKey) == 0 || (q.Limit > 0 && len(items) >= q.Limit) {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	return QueryResult{Items: items, Count: len(items)}, nil
}

func eventKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"event_id": &types.AttributeValueMemberS{Value: id},
	}
}

func toDynamoItem(e *models.Event) dynamoItem {
	return dynamoItem{
		EventID:        e.ID,
		Timestamp:      e.Timestamp,
		CreatedAt:      e.CreatedAt,
		Payload:        e.Payload,
		Source:         e.Source,
		Tags:           e.Tags,
		Metadata:       e.Metadata,
		Status:         string(e.Status),
		AcknowledgedAt: e.AcknowledgedAt,
	}
}

func unmarshalEvent(raw map[string]types.AttributeValue) (*models.Event, error) {
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	e := &models.Event{
		ID:             item.EventID,
		Timestamp:      item.Timestamp,
		CreatedAt:      item.CreatedAt,
		Payload:        item.Payload,
		Source:         item.Source,
		Tags:           item.Tags,
		Metadata:       item.Metadata,
		Status:         models.Status(item.Status),
		AcknowledgedAt: item.AcknowledgedAt,
	}
	if len(e.Tags) == 0 {
		e.Tags = nil
	}
	return e, nil
}

func mapDynamoError(err error) error {
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", ErrResourceNotFound, notFound.ErrorMessage())
	}
	return err
}
