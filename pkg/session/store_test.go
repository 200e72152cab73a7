package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, &config.SessionConfig{Timeout: 30 * time.Minute, MaxHistory: 5}), mr
}

func TestGetCreatesNewInMemoryOnly(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Get(ctx, "+201001234567", "agent-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateNew, sess.State)
	assert.NotEmpty(t, sess.SessionID)

	// A read must not write: neither blob nor index exists yet.
	assert.False(t, mr.Exists("session:+201001234567"))
	assert.False(t, mr.Exists("session-index:"+sess.SessionID))
}

func TestUpdatePersistsBlobAndReverseIndex(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess, _ := store.Get(ctx, "+201001234567", "agent-1")
	require.NoError(t, Transition(sess, models.SessionStateActive))
	require.NoError(t, store.Update(ctx, sess))

	assert.True(t, mr.Exists("session:+201001234567"))
	indexVal, err := mr.Get("session-index:" + sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "+201001234567", indexVal)

	// Both keys carry a TTL.
	assert.Greater(t, mr.TTL("session:+201001234567"), time.Duration(0))
	assert.Greater(t, mr.TTL("session-index:"+sess.SessionID), time.Duration(0))

	loaded, err := store.GetBySessionID(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "+201001234567", loaded.CustomerID)
	assert.Equal(t, models.SessionStateActive, loaded.State)
}

func TestHistoryBoundedOnUpdate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, _ := store.Get(ctx, "+201001234567", "agent-1")
	require.NoError(t, Transition(sess, models.SessionStateActive))
	for i := 0; i < 9; i++ {
		store.AddMessage(sess, models.MessageEntry{Role: models.RoleUser, Content: "hi", Type: models.MessageTypeText})
	}
	require.NoError(t, store.Update(ctx, sess))
	assert.Len(t, sess.MessageHistory, 5)

	loaded, err := store.Get(ctx, "+201001234567", "agent-1")
	require.NoError(t, err)
	assert.Len(t, loaded.MessageHistory, 5)
}

func TestLastActivityMonotonic(t *testing.T) {
	store, _ := newTestStore(t)
	sess := &models.Session{LastActivity: time.Now()}

	before := sess.LastActivity
	store.AddMessage(sess, models.MessageEntry{Timestamp: before.Add(-time.Hour)})
	assert.Equal(t, before, sess.LastActivity)

	store.AddMessage(sess, models.MessageEntry{Timestamp: before.Add(time.Minute)})
	assert.Equal(t, before.Add(time.Minute), sess.LastActivity)
}

func TestStateMachine(t *testing.T) {
	tests := []struct {
		from, to models.SessionState
		ok       bool
	}{
		{models.SessionStateNew, models.SessionStateActive, true},
		{models.SessionStateActive, models.SessionStateIdle, true},
		{models.SessionStateActive, models.SessionStateWaitingAgent, true},
		{models.SessionStateActive, models.SessionStateClosed, true},
		{models.SessionStateIdle, models.SessionStateActive, true},
		{models.SessionStateIdle, models.SessionStateClosed, true},
		{models.SessionStateWaitingAgent, models.SessionStateActive, true},
		{models.SessionStateWaitingAgent, models.SessionStateClosed, true},
		{models.SessionStateActive, models.SessionStateActive, true}, // self
		{models.SessionStateNew, models.SessionStateIdle, false},
		{models.SessionStateNew, models.SessionStateClosed, false},
		{models.SessionStateIdle, models.SessionStateWaitingAgent, false},
		{models.SessionStateClosed, models.SessionStateActive, false},
		{models.SessionStateClosed, models.SessionStateNew, false},
	}

	for _, tt := range tests {
		sess := &models.Session{State: tt.from}
		err := Transition(sess, tt.to)
		if tt.ok {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", tt.from, tt.to)
		}
	}
}

func TestConcurrentModificationDetected(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, _ := store.Get(ctx, "+201001234567", "agent-1")
	require.NoError(t, Transition(sess, models.SessionStateActive))
	require.NoError(t, store.Update(ctx, sess))

	a, _ := store.Get(ctx, "+201001234567", "agent-1")
	b, _ := store.Get(ctx, "+201001234567", "agent-1")

	require.NoError(t, store.Update(ctx, a))
	err := store.Update(ctx, b)
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestCloseRemovesBlobAndIndex(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess, _ := store.Get(ctx, "+201001234567", "agent-1")
	require.NoError(t, Transition(sess, models.SessionStateActive))
	require.NoError(t, store.Update(ctx, sess))

	require.NoError(t, store.Close(ctx, sess.SessionID))
	assert.False(t, mr.Exists("session:+201001234567"))
	assert.False(t, mr.Exists("session-index:"+sess.SessionID))

	_, err := store.GetBySessionID(ctx, sess.SessionID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckIdleSessions(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	stale, _ := store.Get(ctx, "+201001111111", "agent-1")
	require.NoError(t, Transition(stale, models.SessionStateActive))
	stale.LastActivity = time.Now().Add(-31 * time.Minute)
	require.NoError(t, store.Update(ctx, stale))

	fresh, _ := store.Get(ctx, "+201002222222", "agent-1")
	require.NoError(t, Transition(fresh, models.SessionStateActive))
	require.NoError(t, store.Update(ctx, fresh))

	idled, err := store.CheckIdleSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, idled)

	reloaded, _ := store.Get(ctx, "+201001111111", "agent-1")
	assert.Equal(t, models.SessionStateIdle, reloaded.State)
	untouched, _ := store.Get(ctx, "+201002222222", "agent-1")
	assert.Equal(t, models.SessionStateActive, untouched.State)
}
