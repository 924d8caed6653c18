package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSender_PublishesMailMessage(t *testing.T) {
	w := &fakeWriter{}
	s := &KafkaSender{writer: w, from: "orders@example.com"}

	id, err := s.Send(context.Background(), "asha@example.com", "Order confirmed", "<p>hi</p>")
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	var msg MailMessage
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &msg))
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, "orders@example.com", msg.From)
	assert.Equal(t, "asha@example.com", msg.To)
	assert.Equal(t, "Order confirmed", msg.Subject)
	assert.Equal(t, []byte("asha@example.com"), w.messages[0].Key)
}

func TestKafkaSender_WriteFailure(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	s := &KafkaSender{writer: w}

	_, err := s.Send(context.Background(), "a@example.com", "s", "b")
	assert.ErrorContains(t, err, "broker unavailable")
}

func TestKafkaSender_Close(t *testing.T) {
	w := &fakeWriter{}
	s := &KafkaSender{writer: w}

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
}

func TestLogSender_AlwaysSucceeds(t *testing.T) {
	s := NewLogSender(zap.NewNop())

	id, err := s.Send(context.Background(), "a@example.com", "subject", "<p>body</p>")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "log_"))
}
