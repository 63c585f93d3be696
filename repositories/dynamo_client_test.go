package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockDynamoDB struct {
	mock.Mock
}

func (m *MockDynamoDB) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.UpdateItemOutput), args.Error(1)
}

func attrS(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func TestScanStatusStore_NoTable(t *testing.T) {
	client := NewScanStatusStore(nil, "")
	assert.NoError(t, client.StartScan(context.Background(), "corr-1", "7"))
	assert.NoError(t, client.CompleteScan(context.Background(), "corr-1", 2))
}

func TestScanStatusStore_StartScan(t *testing.T) {
	mockDB := new(MockDynamoDB)
	client := NewScanStatusStore(mockDB, "scans")
	client.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	mockDB.On("UpdateItem", mock.Anything, mock.MatchedBy(func(input *dynamodb.UpdateItemInput) bool {
		return *input.TableName == "scans" &&
			attrS(input.Key, "correlation_id") == "corr-1" &&
			attrS(input.ExpressionAttributeValues, ":status") == "PENDING" &&
			attrS(input.ExpressionAttributeValues, ":uid") == "7" &&
			attrS(input.ExpressionAttributeValues, ":at") == "2024-01-02T03:04:05Z"
	}), mock.Anything).Return(&dynamodb.UpdateItemOutput{}, nil)

	err := client.StartScan(context.Background(), "corr-1", "7")
	assert.NoError(t, err)
	mockDB.AssertExpectations(t)
}

func TestScanStatusStore_CompleteScan(t *testing.T) {
	mockDB := new(MockDynamoDB)
	client := NewScanStatusStore(mockDB, "scans")

	mockDB.On("UpdateItem", mock.Anything, mock.MatchedBy(func(input *dynamodb.UpdateItemInput) bool {
		inc, ok := input.ExpressionAttributeValues[":inc"].(*types.AttributeValueMemberN)
		return ok && inc.Value == "3" && attrS(input.ExpressionAttributeValues, ":status") == "COMPLETED"
	}), mock.Anything).Return(&dynamodb.UpdateItemOutput{}, nil)

	assert.NoError(t, client.CompleteScan(context.Background(), "corr-1", 3))
	mockDB.AssertExpectations(t)
}

func TestScanStatusStore_Error(t *testing.T) {
	mockDB := new(MockDynamoDB)
	client := NewScanStatusStore(mockDB, "scans")

	mockDB.On("UpdateItem", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("dynamo error"))

	err := client.StartScan(context.Background(), "corr-1", "7")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start scan")

	err = client.CompleteScan(context.Background(), "corr-1", 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to complete scan")
}
