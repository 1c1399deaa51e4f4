// Package archive records normalized inbound messages to Kafka for
// downstream collaborators. The core pipeline never depends on it; a
// nil publisher is a no-op.
package archive

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kamir/gowxbot/internal/wxmsg"
)

// Envelope is the archived form of one inbound message.
type Envelope struct {
	MessageID   string `json:"msg_id"`
	RoomID      string `json:"room_id"`
	SenderID    string `json:"sender_id"`
	ContentType int    `json:"content_type"`
	DisplayText string `json:"display_text"`
	IsGroup     bool   `json:"is_group"`
	IsMentioned bool   `json:"is_mentioned"`
	CreatedAtMS int64  `json:"created_at_ms"`
	ArchivedAt  string `json:"archived_at"`
}

type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewPublisher builds a publisher for the broker list, or nil when no
// brokers are configured.
func NewPublisher(brokers, topic string, logger *slog.Logger) *Publisher {
	if strings.TrimSpace(brokers) == "" || strings.TrimSpace(topic) == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			WriteTimeout:           5 * time.Second,
		},
		logger: logger.With("component", "archive"),
	}
}

// Archive writes one message envelope. Failures are logged and
// swallowed; archiving is best-effort and must never block or fail
// the webhook path.
func (p *Publisher) Archive(ctx context.Context, msg *wxmsg.InboundMessage) {
	if p == nil {
		return
	}
	env := Envelope{
		MessageID:   msg.MessageID,
		RoomID:      msg.RoomID,
		SenderID:    msg.SenderID,
		ContentType: int(msg.ContentType),
		DisplayText: msg.DisplayText,
		IsGroup:     msg.IsGroup,
		IsMentioned: msg.IsMentioned,
		CreatedAtMS: msg.CreatedAtMS,
		ArchivedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	value, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("failed to marshal archive envelope", "msg_id", msg.MessageID, "error", err)
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.RoomID),
		Value: value,
	}); err != nil {
		p.logger.Warn("failed to archive message", "msg_id", msg.MessageID, "error", err)
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
