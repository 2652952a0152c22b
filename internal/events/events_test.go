package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/kafka"
)

type captureProducer struct {
	events []kafka.Event
}

func (c *captureProducer) Publish(_ context.Context, events ...kafka.Event) error {
	c.events = append(c.events, events...)
	return nil
}

type fakeReloader struct {
	changed bool
	err     error
	calls   int
}

func (f *fakeReloader) Reload(context.Context) (bool, error) {
	f.calls++
	return f.changed, f.err
}

type fakeCache struct{ invalidations int }

func (f *fakeCache) Invalidate(context.Context) error {
	f.invalidations++
	return nil
}

func TestPublishCommitted(t *testing.T) {
	p := &captureProducer{}
	report := &indexer.BuildReport{BuildID: "b1", Path: "/idx", Generation: 4, Documents: 9, CommittedAt: time.Unix(100, 0)}
	require.NoError(t, NewPublisher(p).PublishCommitted(context.Background(), FromReport(report)))

	require.Len(t, p.events, 1)
	assert.Equal(t, "/idx", p.events[0].Key)
	ev := p.events[0].Value.(IndexCommitted)
	assert.Equal(t, uint64(4), ev.Generation)
	assert.Equal(t, 9, ev.Documents)
}

func TestCommitHandler(t *testing.T) {
	payload, err := json.Marshal(IndexCommitted{BuildID: "b1", Generation: 2})
	require.NoError(t, err)

	t.Run("swapped invalidates cache", func(t *testing.T) {
		r, c := &fakeReloader{changed: true}, &fakeCache{}
		require.NoError(t, CommitHandler(r, c)(context.Background(), nil, payload))
		assert.Equal(t, 1, r.calls)
		assert.Equal(t, 1, c.invalidations)
	})
	t.Run("unchanged keeps cache", func(t *testing.T) {
		r, c := &fakeReloader{}, &fakeCache{}
		require.NoError(t, CommitHandler(r, c)(context.Background(), nil, payload))
		assert.Equal(t, 0, c.invalidations)
	})
	t.Run("nil cache", func(t *testing.T) {
		r := &fakeReloader{changed: true}
		require.NoError(t, CommitHandler(r, nil)(context.Background(), nil, payload))
	})
	t.Run("reload error is returned", func(t *testing.T) {
		r := &fakeReloader{err: errors.New("corrupt")}
		assert.Error(t, CommitHandler(r, nil)(context.Background(), nil, payload))
	})
	t.Run("bad payload is dropped", func(t *testing.T) {
		r := &fakeReloader{}
		require.NoError(t, CommitHandler(r, nil)(context.Background(), nil, []byte("{")))
		assert.Equal(t, 0, r.calls)
	})
}
