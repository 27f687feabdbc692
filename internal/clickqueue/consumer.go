package clickqueue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ignite/referral-engine/internal/domain"
)

// Consumer polls the click-event queue and applies events through the
// debounced apply path. Malformed messages are deleted; apply failures
// leave the message for redelivery.
type Consumer struct {
	sqsClient *sqs.Client
	queueURL  string
	applier   ClickApplier
	done      chan struct{}
}

// NewConsumer creates a click-event consumer.
func NewConsumer(sqsClient *sqs.Client, queueURL string, applier ClickApplier) *Consumer {
	return &Consumer{
		sqsClient: sqsClient,
		queueURL:  queueURL,
		applier:   applier,
		done:      make(chan struct{}),
	}
}

// Start begins polling in a background goroutine.
func (c *Consumer) Start(ctx context.Context) {
	log.Printf("click queue consumer started (queue=%s)", c.queueURL)
	go c.poll(ctx)
}

// Stop terminates the poll loop.
func (c *Consumer) Stop() {
	close(c.done)
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		out, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("SQS receive error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, msg := range out.Messages {
			var evt domain.ClickEvent
			if err := json.Unmarshal([]byte(*msg.Body), &evt); err != nil {
				log.Printf("SQS bad message: %v", err)
				c.deleteMessage(ctx, msg.ReceiptHandle)
				continue
			}

			if err := c.applier.ApplyClick(ctx, evt); err != nil {
				log.Printf("SQS apply error (session=%s code=%s): %v", evt.SessionID, evt.Code, err)
				continue
			}

			c.deleteMessage(ctx, msg.ReceiptHandle)
		}
	}
}

func (c *Consumer) deleteMessage(ctx context.Context, handle *string) {
	c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	})
}
