package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestNewPublisherWithoutBrokers(t *testing.T) {
	pub := NewPublisher(nil, "orders")
	assert.IsType(t, Nop{}, pub)
	assert.NoError(t, pub.Publish(context.Background(), New(TypeOrderPlaced, 1, 2, "", "PLACED")))
}

func TestKafkaPublisherKeysByOrder(t *testing.T) {
	w := &recordingWriter{}
	pub := &KafkaPublisher{writer: w}

	event := New(TypeOrderStatusChanged, 42, 7, "PLACED", "CONFIRMED")
	require.NoError(t, pub.Publish(context.Background(), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "42", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, TypeOrderStatusChanged, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, "CONFIRMED", decoded.To)
	assert.Equal(t, uint(7), decoded.ActorID)
}

func TestKafkaPublisherPropagatesWriteErrors(t *testing.T) {
	pub := &KafkaPublisher{writer: &recordingWriter{err: errors.New("broker down")}}
	err := pub.Publish(context.Background(), New(TypeOrderPlaced, 1, 1, "", "PLACED"))
	assert.EqualError(t, err, "broker down")
}
