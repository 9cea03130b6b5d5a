package queue

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"

	fluxerr "github.com/fluxcd/seedy/pkg/errors"
)

const (
	// SQS won't wait longer than this in a single receive.
	MaxWait = 20 * time.Second
	// Nor hand back more than this many messages.
	maxMessages = 10
)

// Message is a notification received from the queue. The receipt
// handle is needed to acknowledge (delete) it.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type Queue interface {
	// Receive waits for messages, returning when there are some, or
	// when the wait has elapsed (in which case, there may be none).
	Receive(ctx context.Context) ([]Message, error)
	// Delete acknowledges a message, so it is not delivered again.
	Delete(ctx context.Context, receiptHandle string) error
}

// SQS is a Queue backed by an Amazon SQS queue.
type SQS struct {
	api  sqsiface.SQSAPI
	name string
	url  string
	wait time.Duration
}

// NewSQSClient makes an SQS client using the default AWS credential
// chain and region.
func NewSQSClient() (sqsiface.SQSAPI, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, err
	}
	return sqs.New(sess), nil
}

// NewSQS looks up the queue by name. The wait is how long each
// receive will long-poll for, and is capped at MaxWait.
func NewSQS(ctx context.Context, api sqsiface.SQSAPI, name string, wait time.Duration) (*SQS, error) {
	if wait > MaxWait {
		wait = MaxWait
	}
	if wait < 0 {
		wait = 0
	}
	out, err := api.GetQueueUrlWithContext(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(name),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == sqs.ErrCodeQueueDoesNotExist {
			return nil, fluxerr.Wrap(fluxerr.Missing, err, "resolving URL for queue "+name)
		}
		return nil, fluxerr.Wrap(fluxerr.Transport, err, "resolving URL for queue "+name)
	}
	if aws.StringValue(out.QueueUrl) == "" {
		return nil, fluxerr.New(fluxerr.Missing, "no URL returned for queue %s", name)
	}
	return &SQS{
		api:  api,
		name: name,
		url:  aws.StringValue(out.QueueUrl),
		wait: wait,
	}, nil
}

// URL is the queue URL, as resolved from the name.
func (q *SQS) URL() string {
	return q.url
}

func (q *SQS) Receive(ctx context.Context) ([]Message, error) {
	out, err := q.api.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		WaitTimeSeconds:     aws.Int64(int64(q.wait / time.Second)),
		MaxNumberOfMessages: aws.Int64(maxMessages),
	})
	if err != nil {
		return nil, fluxerr.Wrap(fluxerr.Transport, err, "polling for ECR events on "+q.url)
	}
	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		if m == nil {
			continue
		}
		msgs = append(msgs, Message{
			ID:            aws.StringValue(m.MessageId),
			Body:          aws.StringValue(m.Body),
			ReceiptHandle: aws.StringValue(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

func (q *SQS) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return fluxerr.New(fluxerr.Validation, "message has no receipt handle, so cannot be deleted from %s", q.url)
	}
	_, err := q.api.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fluxerr.Wrap(fluxerr.Transport, err, "acking (deleting) ECR event from queue "+q.url)
	}
	return nil
}
