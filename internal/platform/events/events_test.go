package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }

func TestNew_StampsIDAndTime(t *testing.T) {
	e := New(RequestCreated, "r4")
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.OccurredAt.IsZero())
	assert.Equal(t, "r4", e.EntityID)
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	rec := &Recorder{}
	boom := errors.New("broker down")
	m := Multi{rec, failingPublisher{err: boom}, rec}

	err := m.Publish(context.Background(), New(OrderCreated, "o4"))
	require.ErrorIs(t, err, boom)
	assert.Len(t, rec.Events(), 2)
}

func TestLogged_SwallowsErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	p := Logged(failingPublisher{err: errors.New("timeout")}, logger)

	require.NoError(t, p.Publish(context.Background(), New(OrderStatusChanged, "o1")))
	assert.Contains(t, buf.String(), "publish event failed")
	assert.Contains(t, buf.String(), "o1")
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf))
	e := New(RequestStatusChanged, "r1")
	e.From, e.To = "pending", "urgent"

	require.NoError(t, p.Publish(context.Background(), e))
	out := buf.String()
	assert.True(t, strings.Contains(out, `"from":"pending"`), out)
	assert.True(t, strings.Contains(out, `"to":"urgent"`), out)
}

func TestRecorder_OfType(t *testing.T) {
	rec := &Recorder{}
	ctx := context.Background()
	_ = rec.Publish(ctx, New(RequestCreated, "r4"))
	_ = rec.Publish(ctx, New(OrderCreated, "o4"))
	_ = rec.Publish(ctx, New(RequestCreated, "r5"))

	assert.Len(t, rec.OfType(RequestCreated), 2)
	assert.Len(t, rec.OfType(OrderCreated), 1)
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_KeysByEntity(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	require.NoError(t, p.Publish(context.Background(), New(OrderStatusChanged, "o2")))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "o2", string(w.msgs[0].Key))

	var got Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, OrderStatusChanged, got.Type)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSPublisher_SendsTypeAttribute(t *testing.T) {
	client := &fakeSQS{}
	p := &SQSPublisher{client: client, queueURL: "https://sqs.test/queue"}

	require.NoError(t, p.Publish(context.Background(), New(RequestCreated, "r4")))
	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "https://sqs.test/queue", *in.QueueUrl)
	assert.Equal(t, RequestCreated, *in.MessageAttributes["type"].StringValue)
	assert.Contains(t, *in.MessageBody, `"entityId":"r4"`)
}
