package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

func testQueueConfig() *config.QueueConfig {
	cfg := config.DefaultQueueConfig()
	cfg.Concurrency = 2
	cfg.PollInterval = 10 * time.Millisecond
	cfg.PollIntervalJitter = 0
	return cfg
}

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, QueueWhatsAppMessages, testQueueConfig()), mr
}

func job(id string) *Job {
	return &Job{
		ID: id,
		Message: models.ParsedMessage{
			MessageID: id,
			From:      "+201001234567",
			Type:      models.MessageTypeText,
			Content:   "hello",
		},
	}
}

func TestEnqueueDeduplicates(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, job("m1")))
	assert.ErrorIs(t, q.Enqueue(ctx, job("m1")), ErrDuplicateJob)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Waiting)
}

func TestClaimAndComplete(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, job("m1")))

	claimed, err := q.Claim(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "m1", claimed.ID)
	assert.Equal(t, "hello", claimed.Message.Content)

	stats, _ := q.Stats(ctx)
	assert.Equal(t, int64(0), stats.Waiting)
	assert.Equal(t, int64(1), stats.Active)

	require.NoError(t, q.Complete(ctx, claimed))
	stats, _ = q.Stats(ctx)
	assert.Equal(t, int64(0), stats.Active)
}

func TestClaimEmptyQueue(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Claim(context.Background(), "w1")
	assert.ErrorIs(t, err, ErrNoJobsAvailable)
}

func TestRetryableFailureSchedulesBackoff(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	base := time.Now()
	q.now = func() time.Time { return base }

	require.NoError(t, q.Enqueue(ctx, job("m1")))
	claimed, _ := q.Claim(ctx, "w1")

	final, err := q.Fail(ctx, claimed, errors.New("gateway 503"), true)
	require.NoError(t, err)
	assert.False(t, final)

	stats, _ := q.Stats(ctx)
	assert.Equal(t, int64(1), stats.Delayed)
	assert.Equal(t, int64(0), stats.DLQ)

	// Not due yet: first retry waits the 2s base backoff.
	promoted, err := q.PromoteDelayed(ctx)
	require.NoError(t, err)
	assert.Zero(t, promoted)

	// Due after the backoff.
	q.now = func() time.Time { return base.Add(3 * time.Second) }
	promoted, err = q.PromoteDelayed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	reclaimed, err := q.Claim(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed.Attempts)
	assert.Equal(t, "gateway 503", reclaimed.LastError)
}

func TestExhaustedRetriesLandInDLQExactlyOnce(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	base := time.Now()
	offset := time.Duration(0)
	q.now = func() time.Time { return base.Add(offset) }

	require.NoError(t, q.Enqueue(ctx, job("m1")))

	// Drive the job through all three attempts.
	for attempt := 1; attempt <= 3; attempt++ {
		if attempt > 1 {
			offset += 10 * time.Minute
			_, err := q.PromoteDelayed(ctx)
			require.NoError(t, err)
		}
		claimed, err := q.Claim(ctx, "w1")
		require.NoError(t, err, "attempt %d", attempt)

		final, err := q.Fail(ctx, claimed, errors.New("gateway down"), true)
		require.NoError(t, err)
		assert.Equal(t, attempt == 3, final, "attempt %d", attempt)
	}

	stats, _ := q.Stats(ctx)
	assert.Equal(t, int64(1), stats.DLQ)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(0), stats.Waiting)
	assert.Equal(t, int64(0), stats.Delayed)
	assert.Equal(t, int64(0), stats.Active)
}

func TestPermanentFailureSkipsRetries(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, job("m1")))
	claimed, _ := q.Claim(ctx, "w1")

	final, err := q.Fail(ctx, claimed, errors.New("nil pointer somewhere"), false)
	require.NoError(t, err)
	assert.True(t, final)

	stats, _ := q.Stats(ctx)
	assert.Equal(t, int64(1), stats.DLQ)
	assert.Equal(t, int64(0), stats.Delayed)
}

func TestRetryFromDLQ(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, job("m1")))
	claimed, _ := q.Claim(ctx, "w1")
	_, err := q.Fail(ctx, claimed, errors.New("bug"), false)
	require.NoError(t, err)

	require.NoError(t, q.RetryFromDLQ(ctx, "m1"))

	stats, _ := q.Stats(ctx)
	assert.Equal(t, int64(0), stats.DLQ)
	assert.Equal(t, int64(1), stats.Waiting)

	reclaimed, err := q.Claim(ctx, "w1")
	require.NoError(t, err)
	assert.Zero(t, reclaimed.Attempts)
	assert.Empty(t, reclaimed.LastError)
}

func TestRetryFromDLQUnknownJob(t *testing.T) {
	q, _ := newTestQueue(t)
	assert.ErrorIs(t, q.RetryFromDLQ(context.Background(), "ghost"), ErrJobNotFound)
}

func TestRecoverStalledRequeues(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, job("m1")))
	claimed, _ := q.Claim(ctx, "w1")

	// Simulate a dead worker: the lock lapses.
	mr.Del("queue:whatsapp-messages:lock:" + claimed.ID)

	recovered, err := q.RecoverStalled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	reclaimed, err := q.Claim(ctx, "w2")
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed.Stalls)
}

func TestStalledTooManyTimesDeadLetters(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, job("m1")))

	// MaxStalledCount is 2: the third stall dead-letters.
	for i := 0; i < 3; i++ {
		claimed, err := q.Claim(ctx, "w1")
		require.NoError(t, err)
		mr.Del("queue:whatsapp-messages:lock:" + claimed.ID)
		_, err = q.RecoverStalled(ctx)
		require.NoError(t, err)
	}

	stats, _ := q.Stats(ctx)
	assert.Equal(t, int64(1), stats.DLQ)
	assert.Equal(t, int64(0), stats.Waiting)
}

func TestHeldLockIsNotStalled(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, job("m1")))
	_, err := q.Claim(ctx, "w1")
	require.NoError(t, err)

	recovered, err := q.RecoverStalled(ctx)
	require.NoError(t, err)
	assert.Zero(t, recovered)
}
