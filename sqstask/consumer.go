package sqstask

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
)

const (
	waitTimeSeconds     = 20
	visibilityTimeout   = 600
	maxNumberOfMessages = 1
	nackVisibilityReset = 0
)

// sqsAPI is the subset of *sqs.Client the consumer depends on, narrowed
// so tests can supply a fake in place of a live queue.
type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// Consumer is a task queue backed by AWS SQS. The type parameter T
// fixes the decoded shape of every task this consumer produces.
type Consumer[T any] struct {
	client   sqsAPI
	queueURL string
	decode   func([]byte) (T, error)
	log      zerolog.Logger
}

// NewConsumer builds a Consumer against the named region and queue.
// Credentials are sourced from the platform's standard chain (env
// vars, shared credentials file, or instance/task role) exactly as
// the default AWS config loader resolves them.
func NewConsumer[T any](ctx context.Context, region, queueURL string, log zerolog.Logger) (*Consumer[T], error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, &QueueRPCError{Op: "LoadDefaultConfig", Cause: err}
	}

	return &Consumer[T]{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
		decode:   defaultDecode[T],
		log:      log.With().Str("component", "sqstask.Consumer").Logger(),
	}, nil
}

// WithDecoder overrides the JSON default with a custom decode function,
// for task payloads that aren't plain JSON.
func (c *Consumer[T]) WithDecoder(decode func([]byte) (T, error)) *Consumer[T] {
	c.decode = decode
	return c
}

func defaultDecode[T any](body []byte) (T, error) {
	var task T
	if err := json.Unmarshal(body, &task); err != nil {
		return task, err
	}
	return task, nil
}

// Dequeue long-polls the queue for a single task. A nil handle with a
// nil error means the poll window elapsed without a message arriving.
func (c *Consumer[T]) Dequeue(ctx context.Context) (*TaskHandle[T], error) {
	c.log.Debug().Str("queue", c.queueURL).Msg("pulling task")

	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: maxNumberOfMessages,
		WaitTimeSeconds:     waitTimeSeconds,
		VisibilityTimeout:   visibilityTimeout,
	})
	if err != nil {
		return nil, &QueueRPCError{Op: "ReceiveMessage", Cause: err}
	}

	if len(out.Messages) == 0 {
		return nil, nil
	}
	if len(out.Messages) > 1 {
		return nil, &UnexpectedBatchError{Count: len(out.Messages)}
	}

	msg := out.Messages[0]
	if msg.Body == nil {
		return nil, &MalformedMessageError{Reason: "missing body"}
	}
	if msg.ReceiptHandle == nil {
		return nil, &MalformedMessageError{Reason: "missing receipt handle"}
	}

	task, err := c.decode([]byte(*msg.Body))
	if err != nil {
		return nil, &TaskDecodeError{RawBody: *msg.Body, Cause: err}
	}

	return &TaskHandle[T]{Task: task, LeaseID: *msg.ReceiptHandle}, nil
}

// Acknowledge deletes the message, permanently removing it from the
// queue once its task has been handled successfully.
func (c *Consumer[T]) Acknowledge(ctx context.Context, handle *TaskHandle[T]) error {
	c.log.Debug().Str("queue", c.queueURL).Msg("acknowledging task")

	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(handle.LeaseID),
	})
	if err != nil {
		return &QueueRPCError{Op: "DeleteMessage", Cause: err}
	}
	return nil
}

// Nacknowledge releases the message back to the queue immediately by
// zeroing its visibility timeout, letting another consumer pick it up.
func (c *Consumer[T]) Nacknowledge(ctx context.Context, handle *TaskHandle[T]) error {
	c.log.Debug().Str("queue", c.queueURL).Msg("nacknowledging task")

	_, err := c.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(c.queueURL),
		ReceiptHandle:     aws.String(handle.LeaseID),
		VisibilityTimeout: nackVisibilityReset,
	})
	if err != nil {
		return &QueueRPCError{Op: "ChangeMessageVisibility", Cause: err}
	}
	return nil
}
