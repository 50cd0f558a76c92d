package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locplace/fingerprint/internal/logstore"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func testRecord(t *testing.T, body string) logstore.Record {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(body), &m))
	return logstore.NewRecord(time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local), m)
}

func TestKafka_Publish(t *testing.T) {
	w := &recordingWriter{}
	k := &Kafka{w: w, topic: "fp"}

	rec := testRecord(t, `{"public_ip": "1.2.3.4", "os": "iOS 17"}`)
	require.NoError(t, k.Publish(context.Background(), rec))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "1.2.3.4", string(msg.Key))
	assert.True(t, msg.Time.Equal(rec.Timestamp.Time))

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "2024-05-01 10:00:00", got["timestamp"])
	assert.Equal(t, "iOS 17", got["os"])
	assert.Equal(t, "N/A", got["gpu"])

	require.NoError(t, k.Close())
	assert.True(t, w.closed)
}

func TestKafka_PublishWithoutIPHasNoKey(t *testing.T) {
	w := &recordingWriter{}
	k := &Kafka{w: w, topic: "fp"}

	require.NoError(t, k.Publish(context.Background(), testRecord(t, `{}`)))
	require.Len(t, w.msgs, 1)
	assert.Nil(t, w.msgs[0].Key)
}

func TestKafka_PublishError(t *testing.T) {
	boom := errors.New("broker down")
	k := &Kafka{w: &recordingWriter{err: boom}, topic: "fp"}

	err := k.Publish(context.Background(), testRecord(t, `{}`))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "fp")
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), logstore.Record{}))
	assert.NoError(t, p.Close())
}
