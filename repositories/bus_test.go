package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verishield-pipeline/domain"
)

// Mock middleware to return specific output or error
func mockFinalize(output interface{}, err error) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Finalize.Add(
			middleware.FinalizeMiddlewareFunc("MockMiddleware", func(context.Context, middleware.FinalizeInput, middleware.FinalizeHandler) (middleware.FinalizeOutput, middleware.Metadata, error) {
				return middleware.FinalizeOutput{
					Result: output,
				}, middleware.Metadata{}, err
			}),
			middleware.Before,
		)
	}
}

// captureInput stores the operation input before it is serialized.
func captureInput(target *interface{}) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Initialize.Add(
			middleware.InitializeMiddlewareFunc("CaptureInput", func(ctx context.Context, in middleware.InitializeInput, next middleware.InitializeHandler) (middleware.InitializeOutput, middleware.Metadata, error) {
				*target = in.Parameters
				return next.HandleInitialize(ctx, in)
			}),
			middleware.After,
		)
	}
}

var testAWSConfig = aws.Config{Region: "us-east-1"}

func TestSNSPublisher_Publish(t *testing.T) {
	var captured interface{}
	client := sns.NewFromConfig(testAWSConfig, func(o *sns.Options) {
		o.APIOptions = append(o.APIOptions,
			captureInput(&captured),
			mockFinalize(&sns.PublishOutput{MessageId: aws.String("msg-1")}, nil),
		)
	})

	env := domain.Envelope{UserID: "42", CorrelationID: "corr-abc", Keywords: domain.Keywords{"a"}}
	id, err := NewSNSPublisher(client).Publish(context.TODO(), "arn:topic", env)

	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)

	input, ok := captured.(*sns.PublishInput)
	require.True(t, ok)
	assert.Equal(t, "arn:topic", aws.ToString(input.TopicArn))
	assert.Equal(t, "42", aws.ToString(input.MessageAttributes[domain.AttrUserID].StringValue))
	assert.Equal(t, "corr-abc", aws.ToString(input.MessageAttributes[domain.AttrCorrelationID].StringValue))
	assert.Contains(t, aws.ToString(input.Message), `"correlationId":"corr-abc"`)
}

func TestSNSPublisher_PublishError(t *testing.T) {
	client := sns.NewFromConfig(testAWSConfig, func(o *sns.Options) {
		o.APIOptions = append(o.APIOptions, mockFinalize(nil, errors.New("aws error")))
	})

	_, err := NewSNSPublisher(client).Publish(context.TODO(), "arn:topic", domain.Envelope{UserID: "1"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish")
}

func TestSQSConsumer_Receive_UnwrapsNotifications(t *testing.T) {
	output := &sqs.ReceiveMessageOutput{
		Messages: []sqstypes.Message{
			{
				MessageId:     aws.String("m-raw"),
				ReceiptHandle: aws.String("h-raw"),
				Body:          aws.String(`{"userId":"1"}`),
				MessageAttributes: map[string]sqstypes.MessageAttributeValue{
					"correlationId": {DataType: aws.String("String"), StringValue: aws.String("corr-raw")},
				},
			},
			{
				MessageId:     aws.String("m-sns"),
				ReceiptHandle: aws.String("h-sns"),
				Body: aws.String(`{"Type":"Notification","Message":"{\"userId\":\"2\"}",` +
					`"MessageAttributes":{"correlationId":{"Type":"String","Value":"corr-sns"}}}`),
			},
		},
	}
	client := sqs.NewFromConfig(testAWSConfig, func(o *sqs.Options) {
		o.APIOptions = append(o.APIOptions, mockFinalize(output, nil))
	})

	records, err := NewSQSConsumer(client, "queue-url").Receive(context.TODO())

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, `{"userId":"1"}`, string(records[0].Body))
	assert.Equal(t, "corr-raw", records[0].Attributes["correlationId"])
	assert.Equal(t, `{"userId":"2"}`, string(records[1].Body))
	assert.Equal(t, "corr-sns", records[1].Attributes["correlationId"])
	assert.Equal(t, "h-sns", records[1].ReceiptHandle)
}

func TestSQSConsumer_ReceiveError(t *testing.T) {
	client := sqs.NewFromConfig(testAWSConfig, func(o *sqs.Options) {
		o.APIOptions = append(o.APIOptions, mockFinalize(nil, errors.New("aws error")))
	})

	_, err := NewSQSConsumer(client, "queue-url").Receive(context.TODO())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to receive messages")
}

type fakeSQS struct {
	batches [][]sqstypes.DeleteMessageBatchRequestEntry
	failIDs map[string]bool
}

func (f *fakeSQS) ReceiveMessage(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessageBatch(_ context.Context, in *sqs.DeleteMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error) {
	f.batches = append(f.batches, in.Entries)
	out := &sqs.DeleteMessageBatchOutput{}
	for _, e := range in.Entries {
		if f.failIDs[aws.ToString(e.Id)] {
			out.Failed = append(out.Failed, sqstypes.BatchResultErrorEntry{Id: e.Id})
		}
	}
	return out, nil
}

func TestSQSConsumer_Ack_ChunksBatches(t *testing.T) {
	fake := &fakeSQS{}
	records := make([]domain.Record, 23)
	for i := range records {
		records[i] = domain.Record{ReceiptHandle: "h"}
	}

	err := NewSQSConsumer(fake, "queue-url").Ack(context.TODO(), records)

	require.NoError(t, err)
	require.Len(t, fake.batches, 3)
	assert.Len(t, fake.batches[0], 10)
	assert.Len(t, fake.batches[2], 3)
	assert.Equal(t, "entry-20", aws.ToString(fake.batches[2][0].Id))
}

func TestSQSConsumer_Ack_ReportsFailedEntries(t *testing.T) {
	fake := &fakeSQS{failIDs: map[string]bool{"m-2": true}}
	records := []domain.Record{{ID: "m-1", ReceiptHandle: "h1"}, {ID: "m-2", ReceiptHandle: "h2"}}

	err := NewSQSConsumer(fake, "queue-url").Ack(context.TODO(), records)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "m-2")
}
