// Package dynamodb implements the GraphStore on DynamoDB using
// conditional writes as the compare-and-swap primitive, so the
// single-writer-per-identity guarantee holds without a lock manager
// even across service instances. Graph identity is global: creation
// transactionally claims a per-identity item, so two instances racing
// to create the same identity under different tenants cannot both win
// even though the identity GSI is only eventually consistent.
package dynamodb

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"nffg-orchestrator/application/ports"
	"nffg-orchestrator/domain/nffg"
	"nffg-orchestrator/pkg/errors"
)

// GraphStore persists graph records in a single-table DynamoDB layout:
// PK TENANT#<tenant>, SK GRAPH#<id>, with a GSI on GRAPHID#<id> for the
// cross-tenant ownership probe.
type GraphStore struct {
	client     *awsdynamodb.Client
	tableName  string
	graphIndex string
	logger     *zap.Logger
}

// NewGraphStore creates a DynamoDB-backed graph store
func NewGraphStore(client *awsdynamodb.Client, tableName, graphIndex string, logger *zap.Logger) *GraphStore {
	return &GraphStore{
		client:     client,
		tableName:  tableName,
		graphIndex: graphIndex,
		logger:     logger,
	}
}

// graphItem is the DynamoDB item layout for a graph record
type graphItem struct {
	PK             string   `dynamodbav:"PK"`
	SK             string   `dynamodbav:"SK"`
	GSI1PK         string   `dynamodbav:"GSI1PK"`
	GSI1SK         string   `dynamodbav:"GSI1SK"`
	EntityType     string   `dynamodbav:"EntityType"`
	TenantID       string   `dynamodbav:"TenantID"`
	GraphID        string   `dynamodbav:"GraphID"`
	Definition     string   `dynamodbav:"Definition"`
	GraphStatus    string   `dynamodbav:"GraphStatus"`
	ControllerRefs []string `dynamodbav:"ControllerRefs,omitempty"`
	LastError      string   `dynamodbav:"LastError,omitempty"`
	CreatedAt      string   `dynamodbav:"CreatedAt"`
	UpdatedAt      string   `dynamodbav:"UpdatedAt"`
}

// CreateIfAbsent stores a new record and transactionally claims the
// graph identity. The claim item is keyed by the identity alone, so
// two tenants racing to create the same identity on different
// instances cannot both succeed; the record Put still carries its own
// attribute_not_exists condition for same-tenant races.
func (s *GraphStore) CreateIfAbsent(ctx context.Context, record *ports.GraphRecord) error {
	item, err := s.marshalRecord(record)
	if err != nil {
		return err
	}

	input := &awsdynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(s.tableName),
					Item:                item,
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(s.tableName),
					Item:                s.claimItem(record),
					ConditionExpression: aws.String("attribute_not_exists(PK) OR TenantID = :tenant"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":tenant": &types.AttributeValueMemberS{Value: record.TenantID},
					},
				},
			},
		},
	}

	if _, err := s.client.TransactWriteItems(ctx, input); err != nil {
		if transactionConditionFailed(err) {
			return errors.NewAlreadyExistsError(record.GraphID)
		}
		s.logger.Error("Failed to create graph record",
			zap.String("graph_id", record.GraphID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to create graph record: %w", err)
	}
	return nil
}

// Read returns the tenant's record or NotFound
func (s *GraphStore) Read(ctx context.Context, tenantID, graphID string) (*ports.GraphRecord, error) {
	input := &awsdynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: tenantKey(tenantID)},
			"SK": &types.AttributeValueMemberS{Value: graphKey(graphID)},
		},
		ConsistentRead: aws.Bool(true),
	}

	result, err := s.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph record: %w", err)
	}
	if len(result.Item) == 0 {
		return nil, errors.NewNotFoundError("graph " + graphID)
	}
	return s.unmarshalRecord(result.Item)
}

// ReadByGraphID looks the record up through the graph-identity GSI
func (s *GraphStore) ReadByGraphID(ctx context.Context, graphID string) (*ports.GraphRecord, error) {
	input := &awsdynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(s.graphIndex),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: graphIndexKey(graphID)},
			":sk": &types.AttributeValueMemberS{Value: "RECORD"},
		},
		Limit: aws.Int32(1),
	}

	result, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query graph record: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, errors.NewNotFoundError("graph " + graphID)
	}
	return s.unmarshalRecord(result.Items[0])
}

// CompareAndSwapStatus replaces the record behind a condition on the
// stored status.
func (s *GraphStore) CompareAndSwapStatus(ctx context.Context, expected nffg.Status, record *ports.GraphRecord) error {
	item, err := s.marshalRecord(record)
	if err != nil {
		return err
	}

	input := &awsdynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("GraphStatus = :expected"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberS{Value: string(expected)},
		},
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if stderrors.As(err, &conditionFailed) {
			s.logger.Debug("Status CAS lost",
				zap.String("graph_id", record.GraphID),
				zap.String("expected", string(expected)),
			)
			return ports.ErrStatusConflict
		}
		return fmt.Errorf("failed to swap graph status: %w", err)
	}
	return nil
}

// Delete physically removes the record and releases the identity
// claim; used by the retention policy. The claim delete is conditioned
// on ownership so a claim re-acquired by another tenant survives.
func (s *GraphStore) Delete(ctx context.Context, tenantID, graphID string) error {
	input := &awsdynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Delete: &types.Delete{
					TableName: aws.String(s.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: tenantKey(tenantID)},
						"SK": &types.AttributeValueMemberS{Value: graphKey(graphID)},
					},
				},
			},
			{
				Delete: &types.Delete{
					TableName: aws.String(s.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: graphIndexKey(graphID)},
						"SK": &types.AttributeValueMemberS{Value: claimSortKey},
					},
					ConditionExpression: aws.String("attribute_not_exists(PK) OR TenantID = :tenant"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":tenant": &types.AttributeValueMemberS{Value: tenantID},
					},
				},
			},
		},
	}
	if _, err := s.client.TransactWriteItems(ctx, input); err != nil {
		return fmt.Errorf("failed to delete graph record: %w", err)
	}
	return nil
}

// claimItem is the per-identity uniqueness marker. It carries no GSI
// attributes, so identity lookups through the index never see it.
func (s *GraphStore) claimItem(record *ports.GraphRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: graphIndexKey(record.GraphID)},
		"SK":         &types.AttributeValueMemberS{Value: claimSortKey},
		"EntityType": &types.AttributeValueMemberS{Value: "GRAPH_CLAIM"},
		"TenantID":   &types.AttributeValueMemberS{Value: record.TenantID},
		"GraphID":    &types.AttributeValueMemberS{Value: record.GraphID},
	}
}

// transactionConditionFailed reports whether a TransactWriteItems
// error was a condition failure on one of its items.
func transactionConditionFailed(err error) bool {
	var canceled *types.TransactionCanceledException
	if !stderrors.As(err, &canceled) {
		return false
	}
	for _, reason := range canceled.CancellationReasons {
		if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}

func (s *GraphStore) marshalRecord(record *ports.GraphRecord) (map[string]types.AttributeValue, error) {
	definition, err := json.Marshal(record.Definition)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph definition: %w", err)
	}

	item := graphItem{
		PK:             tenantKey(record.TenantID),
		SK:             graphKey(record.GraphID),
		GSI1PK:         graphIndexKey(record.GraphID),
		GSI1SK:         "RECORD",
		EntityType:     "GRAPH",
		TenantID:       record.TenantID,
		GraphID:        record.GraphID,
		Definition:     string(definition),
		GraphStatus:    string(record.Status),
		ControllerRefs: record.ControllerRefs,
		LastError:      record.LastError,
		CreatedAt:      record.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:      record.UpdatedAt.Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph item: %w", err)
	}
	return av, nil
}

func (s *GraphStore) unmarshalRecord(av map[string]types.AttributeValue) (*ports.GraphRecord, error) {
	var item graphItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph item: %w", err)
	}

	var definition nffg.GraphDocument
	if err := json.Unmarshal([]byte(item.Definition), &definition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph definition: %w", err)
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, item.UpdatedAt)

	return &ports.GraphRecord{
		TenantID:       item.TenantID,
		GraphID:        item.GraphID,
		Definition:     &definition,
		Status:         nffg.Status(item.GraphStatus),
		ControllerRefs: item.ControllerRefs,
		LastError:      item.LastError,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

const claimSortKey = "CLAIM"

func tenantKey(tenantID string) string {
	return "TENANT#" + tenantID
}

func graphKey(graphID string) string {
	return "GRAPH#" + graphID
}

func graphIndexKey(graphID string) string {
	return "GRAPHID#" + graphID
}
