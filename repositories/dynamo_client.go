package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"verishield-pipeline/domain"
)

type DynamoDBAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// ScanStatusStore tracks one scan per correlation id.
type ScanStatusStore struct {
	client    DynamoDBAPI
	tableName string
	now       func() time.Time
}

func NewScanStatusStore(client DynamoDBAPI, tableName string) *ScanStatusStore {
	return &ScanStatusStore{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

func (d *ScanStatusStore) StartScan(ctx context.Context, correlationID string, userID domain.UserID) error {
	if d.tableName == "" {
		slog.Warn("SCAN_TABLE not configured, skipping scan status update", "correlation_id", correlationID)
		return nil
	}
	err := d.update(ctx, correlationID, "SET #s = :status, user_id = :uid, started_at = :at", map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: domain.ScanPending},
		":uid":    &types.AttributeValueMemberS{Value: userID.String()},
	})
	if err != nil {
		return fmt.Errorf("failed to start scan %s in DynamoDB: %w", correlationID, err)
	}
	return nil
}

// CompleteScan marks the scan COMPLETED and adds threats to its running count.
func (d *ScanStatusStore) CompleteScan(ctx context.Context, correlationID string, threats int) error {
	if d.tableName == "" {
		return nil
	}
	err := d.update(ctx, correlationID, "SET #s = :status, completed_at = :at ADD threats_count :inc", map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: domain.ScanCompleted},
		":inc":    &types.AttributeValueMemberN{Value: strconv.Itoa(threats)},
	})
	if err != nil {
		return fmt.Errorf("failed to complete scan %s in DynamoDB: %w", correlationID, err)
	}
	return nil
}

// update applies expr to the scan item; ":at" is always bound to the current time.
func (d *ScanStatusStore) update(ctx context.Context, correlationID, expr string, values map[string]types.AttributeValue) error {
	values[":at"] = &types.AttributeValueMemberS{Value: d.now().UTC().Format(time.RFC3339)}
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.tableName),
		Key:                       map[string]types.AttributeValue{"correlation_id": &types.AttributeValueMemberS{Value: correlationID}},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
	})
	return err
}
