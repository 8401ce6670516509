package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *stubWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaNotifier_PublishesEvent(t *testing.T) {
	w := &stubWriter{}
	n := &KafkaNotifier{writer: w}
	m := testMatch()

	require.NoError(t, n.MatchCreated(context.Background(), m))
	require.Len(t, w.messages, 1)
	assert.Equal(t, m.ID.String(), string(w.messages[0].Key))

	var event MatchEvent
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &event))
	assert.Equal(t, NewMatchEvent(m), event)

	require.NoError(t, n.Close())
	assert.True(t, w.closed)
}

func TestKafkaNotifier_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	n := &KafkaNotifier{writer: &stubWriter{err: boom}}

	err := n.MatchCreated(context.Background(), testMatch())
	assert.ErrorIs(t, err, boom)
}

func TestNewKafkaNotifier(t *testing.T) {
	n := NewKafkaNotifier([]string{"localhost:9092"}, "matches")

	w, ok := n.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "matches", w.Topic)
	assert.Equal(t, "localhost:9092", w.Addr.String())
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(nil)
	assert.NoError(t, n.MatchCreated(context.Background(), testMatch()))
	assert.NoError(t, n.Close())
}

func TestNewKafkaNotifier_WritesWithoutBatchDelay(t *testing.T) {
	n := NewKafkaNotifier([]string{"localhost:9092"}, "medexchange.matches")

	w, ok := n.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "medexchange.matches", w.Topic)
	assert.LessOrEqual(t, w.BatchTimeout, 10*time.Millisecond)
	assert.Positive(t, w.BatchTimeout)
}
