package posts

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestPublisherTick(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	due := now.Add(-time.Minute)
	later := now.Add(time.Hour)
	a := mustCreate(t, s, &Post{UserID: "u1", Content: "due", PublishedAt: &due, CreatedAt: due})
	b := mustCreate(t, s, &Post{UserID: "u1", Content: "later", PublishedAt: &later, CreatedAt: due})

	var released int
	p := &Publisher{Store: s, Logger: zap.NewNop(), Now: func() time.Time { return now }, OnPublish: func(n int) { released += n }}
	n, err := p.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, released)

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Published)
	got, err = s.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, got.Published)

	n, err = p.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, released)
}

func TestPublisherRunStopsOnCancel(t *testing.T) {
	s := setupTestStore(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	due := now.Add(-time.Minute)
	mustCreate(t, s, &Post{UserID: "u1", Content: "due", PublishedAt: &due, CreatedAt: due})

	var released atomic.Int32
	p := &Publisher{Store: s, Interval: 10 * time.Millisecond, Now: func() time.Time { return now },
		OnPublish: func(n int) { released.Add(int32(n)) }}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return released.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
