package channel_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/UnknownOlympus/selene/internal/appmessage"
	"github.com/UnknownOlympus/selene/internal/channel"
	"github.com/UnknownOlympus/selene/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockReader simulates the kafka-go Reader for unit testing.
type mockReader struct {
	messages chan kafka.Message
	errs     chan error

	mu        sync.Mutex
	committed []kafka.Message
	closed    bool
}

func newMockReader(msgs ...kafka.Message) *mockReader {
	mr := &mockReader{
		messages: make(chan kafka.Message, len(msgs)),
		errs:     make(chan error, 1),
	}
	for _, msg := range msgs {
		mr.messages <- msg
	}

	return mr
}

func (mr *mockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case err := <-mr.errs:
		return kafka.Message{}, err
	case msg := <-mr.messages:
		return msg, nil
	}
}

func (mr *mockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	mr.committed = append(mr.committed, msgs...)
	return nil
}

func (mr *mockReader) Close() error {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	mr.closed = true
	return nil
}

func (mr *mockReader) Committed() []kafka.Message {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	return append([]kafka.Message(nil), mr.committed...)
}

// mockWriter records published messages.
type mockWriter struct {
	err     error
	written []kafka.Message
	closed  bool
}

func (mw *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if mw.err != nil {
		return mw.err
	}
	mw.written = append(mw.written, msgs...)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.closed = true
	return nil
}

func record(key, value string, headers ...kafka.Header) kafka.Message {
	return kafka.Message{Key: []byte(key), Value: []byte(value), Headers: headers}
}

func runUntilCommitted(t *testing.T, ch *channel.KafkaChannel, reader *mockReader, want int) {
	t.Helper()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- ch.Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.Committed()) == want }, waitTimeout, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestKafkaChannel_Run(t *testing.T) {
	t.Run("dispatches known events and commits every record", func(t *testing.T) {
		reader := newMockReader(
			record("ready", "", kafka.Header{Key: channel.SessionHeader, Value: []byte("bridge-1")}),
			record("appmessage", `{"2":1}`),
			record("appmessage", ""),
			record("telemetry", `{}`),
			record("appmessage", `{"lat":1}`),
		)
		writer := &mockWriter{}
		ch := channel.NewKafkaChannelWithClients(reader, writer, slog.Default())

		var (
			mu     sync.Mutex
			events []appmessage.Event
		)
		handler := func(_ context.Context, evt appmessage.Event) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, evt)
		}
		ch.On(appmessage.EventReady, handler)
		ch.On(appmessage.EventAppMessage, handler)

		runUntilCommitted(t, ch, reader, 5)

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, events, 3)
		assert.Equal(t, appmessage.Event{Type: appmessage.EventReady, Session: "bridge-1"}, events[0])
		assert.Equal(t, appmessage.Dictionary{appmessage.KeyRequestLocation: 1.0}, events[1].Payload)
		assert.Equal(t, appmessage.EventAppMessage, events[2].Type)
		assert.Nil(t, events[2].Payload)
		assert.True(t, reader.closed)
		assert.True(t, writer.closed)
	})

	t.Run("handlers run in registration order", func(t *testing.T) {
		reader := newMockReader(record("appmessage", ""))
		ch := channel.NewKafkaChannelWithClients(reader, &mockWriter{}, slog.Default())

		var (
			mu    sync.Mutex
			order []string
		)
		ch.On(appmessage.EventAppMessage, func(context.Context, appmessage.Event) {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
		})
		ch.On(appmessage.EventAppMessage, func(context.Context, appmessage.Event) {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
		})

		runUntilCommitted(t, ch, reader, 1)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("stops when the reader is closed", func(t *testing.T) {
		reader := newMockReader()
		reader.errs <- io.EOF
		ch := channel.NewKafkaChannelWithClients(reader, &mockWriter{}, slog.Default())

		err := ch.Run(t.Context())

		require.NoError(t, err)
		assert.True(t, reader.closed)
	})

	t.Run("keeps consuming after a read error", func(t *testing.T) {
		reader := newMockReader(record("ready", ""))
		reader.errs <- assert.AnError
		ch := channel.NewKafkaChannelWithClients(reader, &mockWriter{}, slog.Default())

		runUntilCommitted(t, ch, reader, 1)
	})
}

func TestKafkaChannel_SendAppMessage(t *testing.T) {
	t.Run("publishes the dictionary", func(t *testing.T) {
		writer := &mockWriter{}
		ch := channel.NewKafkaChannelWithClients(newMockReader(), writer, slog.Default())

		err := ch.SendAppMessage(t.Context(), appmessage.EncodeCoordinates(models.Coordinates{Latitude: 40.7128, Longitude: -74.006}))

		require.NoError(t, err)
		require.Len(t, writer.written, 1)
		assert.Equal(t, "appmessage", string(writer.written[0].Key))

		var dict appmessage.Dictionary
		require.NoError(t, json.Unmarshal(writer.written[0].Value, &dict))
		assert.Equal(t, appmessage.Dictionary{0: 40.7128, 1: -74.006}, dict)
	})

	t.Run("broker write fails", func(t *testing.T) {
		writer := &mockWriter{err: assert.AnError}
		ch := channel.NewKafkaChannelWithClients(newMockReader(), writer, slog.Default())

		err := ch.SendAppMessage(t.Context(), appmessage.EncodeCoordinates(models.FallbackCoordinates()))

		require.ErrorIs(t, err, assert.AnError)
		assert.ErrorContains(t, err, "failed to publish app message")
	})
}
