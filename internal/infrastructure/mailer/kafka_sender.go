package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MailMessage is the payload published for the outbound mailer.
type MailMessage struct {
	ID       string    `json:"id"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	HTML     string    `json:"html"`
	QueuedAt time.Time `json:"queuedAt"`
}

// KafkaSender hands rendered emails to the mail topic; the consumer owns the
// SMTP/API delivery.
type KafkaSender struct {
	writer messageWriter
	from   string
}

func NewKafkaSender(brokers []string, topic, from string) *KafkaSender {
	return &KafkaSender{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
		from: from,
	}
}

func (s *KafkaSender) Send(ctx context.Context, to, subject, html string) (string, error) {
	msg := MailMessage{
		ID:       uuid.NewString(),
		From:     s.from,
		To:       to,
		Subject:  subject,
		HTML:     html,
		QueuedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encoding mail message: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(to),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "message-id", Value: []byte(msg.ID)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("publishing mail message: %w", err)
	}
	return msg.ID, nil
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
