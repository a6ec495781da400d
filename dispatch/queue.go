package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
)

// MaxRetries bounds the queue channel's send retries.
const MaxRetries = 3

const retryInterval = time.Second

// Message is the downstream queue payload shape.
type Message struct {
	Type            string   `json:"type"`
	EventName       string   `json:"eventName"`
	EventSignature  string   `json:"eventSignature,omitempty"`
	TagID           []any    `json:"tagId"`
	ChainID         uint64   `json:"chainId"`
	HolographAddress string  `json:"holographAddress"`
	Environment     string   `json:"environment"`
	Payload         Payload  `json:"payload"`
}

// Payload is the nested transaction-level data of a Message.
type Payload struct {
	Tx       string `json:"tx"`
	BlockNum uint64 `json:"blockNum"`
	Extra    map[string]any `json:"-"`
}

// MarshalJSON flattens Extra alongside the fixed fields, matching the
// "..." open-ended tail of the downstream payload.
func (p Payload) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"tx":       p.Tx,
		"blockNum": p.BlockNum,
	}
	for k, v := range p.Extra {
		out[k] = v
	}
	return json.Marshal(out)
}

// NewTagID generates a tagId when the caller has no natural identifier.
func NewTagID() []any {
	return []any{uuid.NewString()}
}

// QueueSender abstracts the SQS SendMessage call so tests can substitute a
// fake without a live queue.
type QueueSender interface {
	SendMessage(ctx context.Context, queueURL, body string) error
}

// SQSSender is the production QueueSender backed by aws-sdk-go-v2.
type SQSSender struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSSender wraps an already-configured sqs.Client.
func NewSQSSender(client *sqs.Client, queueURL string) *SQSSender {
	return &SQSSender{client: client, queueURL: queueURL}
}

func (s *SQSSender) SendMessage(ctx context.Context, queueURL, body string) error {
	_, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(body),
	})
	return err
}

// QueueChannel is the fire-and-forget message-queue downstream path.
type QueueChannel struct {
	sender   QueueSender
	queueURL string
}

// NewQueueChannel constructs a QueueChannel.
func NewQueueChannel(sender QueueSender, queueURL string) *QueueChannel {
	return &QueueChannel{sender: sender, queueURL: queueURL}
}

// HealthCheck sends a synthetic message at startup; the process should fail
// fast if this does not succeed in a non-local environment.
func (q *QueueChannel) HealthCheck(ctx context.Context) error {
	synthetic := Message{
		Type:      "HolographProtocol",
		EventName: "HealthCheck",
		TagID:     NewTagID(),
		Payload:   Payload{Tx: "0x0"},
	}
	return q.Send(ctx, synthetic)
}

// Send marshals msg and retries delivery up to MaxRetries times with a
// fixed interval; after exhaustion the failure is logged and dropped.
func (q *QueueChannel) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("dispatch: marshal queue message: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryInterval):
			}
		}
		if err := q.sender.SendMessage(ctx, q.queueURL, string(body)); err != nil {
			lastErr = err
			log.Warn("dispatch: queue send failed", "attempt", attempt+1, "err", err)
			continue
		}
		return nil
	}
	log.Error("dispatch: queue send exhausted retries, dropping", "eventName", msg.EventName, "err", lastErr)
	return fmt.Errorf("dispatch: queue send exhausted retries: %w", lastErr)
}
