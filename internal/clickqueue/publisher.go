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

// ClickApplier applies a click event to storage. Implemented by
// session.Service.
type ClickApplier interface {
	ApplyClick(ctx context.Context, evt domain.ClickEvent) error
}

// SQSPublisher ships click events to SQS so the click-through endpoint
// can answer without waiting on Postgres. Publishing is fire-and-forget:
// a lost click event costs an informational counter, nothing more.
type SQSPublisher struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSPublisher creates a publisher for the given queue.
func NewSQSPublisher(client *sqs.Client, queueURL string) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL}
}

// Publish enqueues the event without blocking the request.
func (p *SQSPublisher) Publish(ctx context.Context, evt domain.ClickEvent) {
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("ERROR marshal click event: %v", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
		})
		if err != nil {
			log.Printf("ERROR publishing click to SQS: %v", err)
		}
	}()
}

// DirectPublisher applies click events in-process. Used when no queue is
// configured, and in tests.
type DirectPublisher struct {
	applier ClickApplier
}

// NewDirectPublisher creates an in-process publisher.
func NewDirectPublisher(applier ClickApplier) *DirectPublisher {
	return &DirectPublisher{applier: applier}
}

// Publish applies the event synchronously; failures are logged and
// swallowed to keep click recording best-effort.
func (p *DirectPublisher) Publish(ctx context.Context, evt domain.ClickEvent) {
	if err := p.applier.ApplyClick(ctx, evt); err != nil {
		log.Printf("ERROR applying click event: %v", err)
	}
}
