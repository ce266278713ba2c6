package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/PowerImage/internal/app/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturePublisher struct {
	subject string
	data    []byte
	opts    int
	err     error
}

func (c *capturePublisher) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	c.subject = subj
	c.data = data
	c.opts = len(opts)
	return &nats.PubAck{}, c.err
}

type memoryAccessRepo struct {
	events []model.LinkAccessEvent
	err    error
}

func (m *memoryAccessRepo) Create(_ context.Context, event *model.LinkAccessEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, *event)
	return nil
}

func (m *memoryAccessRepo) CountByAlias(_ context.Context, alias string) (int64, error) {
	var n int64
	for _, e := range m.events {
		if e.Alias == alias {
			n++
		}
	}
	return n, nil
}

type ackRecorder struct {
	acks, naks int
}

func (a *ackRecorder) ack(...nats.AckOpt) error { a.acks++; return nil }
func (a *ackRecorder) nak(...nats.AckOpt) error { a.naks++; return nil }

func TestAccessPublisher_Publish(t *testing.T) {
	js := &capturePublisher{}
	pub := NewAccessPublisher(js)
	pub.now = func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC) }

	require.NoError(t, pub.Publish(testAlias, "img-1", "10.0.0.1", "curl/8"))
	require.Equal(t, model.AccessStreamSubject, js.subject)
	require.Equal(t, 1, js.opts)

	var event model.LinkAccessEvent
	require.NoError(t, json.Unmarshal(js.data, &event))
	require.Equal(t, testAlias, event.Alias)
	require.Equal(t, "img-1", event.ImageID)
	require.NotEmpty(t, event.ID)
	require.True(t, event.Timestamp.Equal(pub.now()))
}

func TestAccessPublisher_PublishError(t *testing.T) {
	pub := NewAccessPublisher(&capturePublisher{err: errors.New("no stream")})
	require.Error(t, pub.Publish(testAlias, "img-1", "", ""))
}

func TestAccessConsumer_Handle(t *testing.T) {
	repo := &memoryAccessRepo{}
	c := NewAccessConsumer(nil, zap.NewNop(), repo)
	rec := &ackRecorder{}

	data, err := json.Marshal(model.LinkAccessEvent{ID: "e1", Alias: testAlias, ImageID: "img-1"})
	require.NoError(t, err)

	c.handle(context.Background(), data, rec.ack, rec.nak)
	require.Equal(t, 1, rec.acks)
	n, _ := repo.CountByAlias(context.Background(), testAlias)
	require.Equal(t, int64(1), n)

	c.handle(context.Background(), []byte("{"), rec.ack, rec.nak)
	require.Equal(t, 2, rec.acks)
	require.Zero(t, rec.naks)

	repo.err = errors.New("db down")
	c.handle(context.Background(), data, rec.ack, rec.nak)
	require.Equal(t, 1, rec.naks)
}

func TestAccessConsumer_BacksOffOnFetchError(t *testing.T) {
	c := NewAccessConsumer(nil, zap.NewNop(), &memoryAccessRepo{})
	c.retryDelay = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	calls := 0
	start := time.Now()
	c.consume(ctx, func(int, ...nats.PullOpt) ([]*nats.Msg, error) {
		calls++
		return nil, nats.ErrConnectionClosed
	})

	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	require.LessOrEqual(t, calls, 4)
}

func TestAccessConsumer_ConsumeStoresFetched(t *testing.T) {
	repo := &memoryAccessRepo{}
	c := NewAccessConsumer(nil, zap.NewNop(), repo)

	data, err := json.Marshal(model.LinkAccessEvent{ID: "e1", Alias: testAlias, ImageID: "img-1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := [][]*nats.Msg{{{Data: data}}}
	c.consume(ctx, func(int, ...nats.PullOpt) ([]*nats.Msg, error) {
		if len(batches) == 0 {
			cancel()
			return nil, nats.ErrTimeout
		}
		next := batches[0]
		batches = batches[1:]
		return next, nil
	})

	n, _ := repo.CountByAlias(context.Background(), testAlias)
	require.Equal(t, int64(1), n)
}
