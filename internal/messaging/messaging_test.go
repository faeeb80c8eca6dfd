package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
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

type scriptedReader struct {
	msgs      []kafka.Message
	committed []int64
}

func (r *scriptedReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *scriptedReader) Close() error { return nil }

func TestProducerPublish(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	w := &recordingWriter{}
	p := NewProducerWithWriter(w, "listing.stock-changed")

	ctx, span := tp.Tracer("test").Start(context.Background(), "parent")
	err := p.Publish(ctx, "ABC-123", map[string]string{"style_code": "ABC-123"})
	span.End()

	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "ABC-123", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"style_code":"ABC-123"}`, string(w.msgs[0].Value))
	assert.NotEmpty(t, headerCarrier{msg: &w.msgs[0]}.Get("traceparent"))
}

func TestProducerPublishError(t *testing.T) {
	p := NewProducerWithWriter(&recordingWriter{err: errors.New("broker down")}, "order.placed")

	err := p.Publish(context.Background(), "k", struct{}{})

	assert.ErrorContains(t, err, "broker down")
}

func TestHeaderCarrierSetReplaces(t *testing.T) {
	msg := kafka.Message{}
	c := headerCarrier{msg: &msg}

	c.Set("traceparent", "a")
	c.Set("traceparent", "b")

	assert.Len(t, msg.Headers, 1)
	assert.Equal(t, "b", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}

func TestConsumerSkipsPoisonMessages(t *testing.T) {
	good, _ := json.Marshal(map[string]string{"style_code": "ABC-123"})
	reader := &scriptedReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte("not json")},
		{Offset: 2, Value: good},
	}}
	c := NewConsumerWithReader(reader, "listing.stock-changed", "stock-sync", slog.New(slog.NewTextHandler(io.Discard, nil)))

	var handled []string
	err := c.Consume(context.Background(), func(_ context.Context, payload []byte) error {
		var v map[string]string
		if err := json.Unmarshal(payload, &v); err != nil {
			return fmt.Errorf("%w: %v", ErrSkip, err)
		}
		handled = append(handled, v["style_code"])
		return nil
	})

	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"ABC-123"}, handled)
	assert.Equal(t, []int64{1, 2}, reader.committed)
}

func TestConsumerStopsOnHandlerFailure(t *testing.T) {
	reader := &scriptedReader{msgs: []kafka.Message{{Offset: 7, Value: []byte("{}")}}}
	c := NewConsumerWithReader(reader, "order.placed", "notifications", slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := c.Consume(context.Background(), func(context.Context, []byte) error {
		return errors.New("email service unavailable")
	})

	assert.ErrorContains(t, err, "email service unavailable")
	assert.Empty(t, reader.committed)
}
