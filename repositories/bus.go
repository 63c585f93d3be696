package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"verishield-pipeline/domain"
)

const maxDeleteBatch = 10

type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher publishes envelopes to a topic.
type SNSPublisher struct {
	client SNSAPI
}

func NewSNSPublisher(client SNSAPI) *SNSPublisher {
	return &SNSPublisher{client: client}
}

// Publish sends env to topicARN. userId and correlationId are attached as
// message attributes so subscribers can filter without parsing the body.
func (p *SNSPublisher) Publish(ctx context.Context, topicARN string, env domain.Envelope) (string, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			domain.AttrUserID: {
				DataType:    aws.String("String"),
				StringValue: aws.String(env.UserID.String()),
			},
			domain.AttrCorrelationID: {
				DataType:    aws.String("String"),
				StringValue: aws.String(env.CorrelationID),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish to %s: %w", topicARN, err)
	}
	return aws.ToString(out.MessageId), nil
}

type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

// SQSConsumer reads a queue subscribed to an upstream topic.
type SQSConsumer struct {
	client      SQSAPI
	queueURL    string
	maxMessages int32
	waitSeconds int32
}

func NewSQSConsumer(client SQSAPI, queueURL string) *SQSConsumer {
	return &SQSConsumer{
		client:      client,
		queueURL:    queueURL,
		maxMessages: 10,
		waitSeconds: 20,
	}
}

// snsNotification is the body SQS receives from an SNS subscription without
// raw message delivery.
type snsNotification struct {
	Type              string `json:"Type"`
	Message           string `json:"Message"`
	MessageAttributes map[string]struct {
		Type  string `json:"Type"`
		Value string `json:"Value"`
	} `json:"MessageAttributes"`
}

func (c *SQSConsumer) Receive(ctx context.Context) ([]domain.Record, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(c.queueURL),
		MaxNumberOfMessages:   c.maxMessages,
		WaitTimeSeconds:       c.waitSeconds,
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	records := make([]domain.Record, 0, len(out.Messages))
	for _, msg := range out.Messages {
		records = append(records, toRecord(msg))
	}
	return records, nil
}

func toRecord(msg sqstypes.Message) domain.Record {
	rec := domain.Record{
		ID:            aws.ToString(msg.MessageId),
		ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		Body:          []byte(aws.ToString(msg.Body)),
		Attributes:    map[string]string{},
	}
	for name, attr := range msg.MessageAttributes {
		rec.Attributes[name] = aws.ToString(attr.StringValue)
	}

	var note snsNotification
	if strings.Contains(aws.ToString(msg.Body), `"Notification"`) &&
		json.Unmarshal(rec.Body, &note) == nil && note.Type == "Notification" {
		rec.Body = []byte(note.Message)
		for name, attr := range note.MessageAttributes {
			rec.Attributes[name] = attr.Value
		}
	}
	return rec
}

// Ack deletes the given records so they are not redelivered.
func (c *SQSConsumer) Ack(ctx context.Context, records []domain.Record) error {
	var failed []string
	for start := 0; start < len(records); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(records))
		entries := make([]sqstypes.DeleteMessageBatchRequestEntry, 0, end-start)
		for i, rec := range records[start:end] {
			id := rec.ID
			if id == "" {
				id = fmt.Sprintf("entry-%d", start+i)
			}
			entries = append(entries, sqstypes.DeleteMessageBatchRequestEntry{
				Id:            aws.String(id),
				ReceiptHandle: aws.String(rec.ReceiptHandle),
			})
		}

		out, err := c.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
			QueueUrl: aws.String(c.queueURL),
			Entries:  entries,
		})
		if err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		for _, f := range out.Failed {
			failed = append(failed, aws.ToString(f.Id))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to delete messages %s", strings.Join(failed, ", "))
	}
	return nil
}
