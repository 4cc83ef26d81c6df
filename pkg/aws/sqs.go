package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

// SQSAPI is the subset of the SQS client the consumer needs.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSConsumer long-polls a queue and hands each body to a MessageHandler.
type SQSConsumer struct {
	client   SQSAPI
	queueURL string
	logger   *zap.Logger
}

func NewSQSConsumer(cfg aws.Config, queueURL string, logger *zap.Logger) *SQSConsumer {
	return NewSQSConsumerWithClient(sqs.NewFromConfig(cfg), queueURL, logger)
}

func NewSQSConsumerWithClient(client SQSAPI, queueURL string, logger *zap.Logger) *SQSConsumer {
	return &SQSConsumer{client: client, queueURL: queueURL, logger: logger}
}

// MessageHandler processes one message body. A returned error leaves the
// message on the queue for redelivery.
type MessageHandler func(ctx context.Context, body string) error

// StartPolling runs until ctx is cancelled.
func (c *SQSConsumer) StartPolling(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Starting SQS polling", zap.String("queue", c.queueURL))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("SQS polling stopped")
			return ctx.Err()
		default:
			if _, err := c.PollOnce(ctx, handler); err != nil && ctx.Err() == nil {
				c.logger.Error("Error polling SQS", zap.Error(err))
			}
		}
	}
}

// PollOnce receives one batch and returns how many messages were handled
// and deleted.
func (c *SQSConsumer) PollOnce(ctx context.Context, handler MessageHandler) (int, error) {
	result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   30,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to receive messages: %w", err)
	}

	handled := 0
	for _, msg := range result.Messages {
		if msg.Body == nil {
			continue
		}

		if err := handler(ctx, *msg.Body); err != nil {
			c.logger.Warn("Failed to process message", zap.Error(err), zap.String("message_id", aws.ToString(msg.MessageId)))
			continue
		}

		if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &c.queueURL,
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			c.logger.Error("Failed to delete message", zap.Error(err))
			continue
		}
		handled++
	}

	return handled, nil
}
