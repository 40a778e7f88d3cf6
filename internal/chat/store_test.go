package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/docuchat/internal/domain"
)

func TestStore_CreateAndGet(t *testing.T) {
	s := NewStore()

	created := s.Create()
	assert.NotEmpty(t, created.ID)
	assert.Empty(t, created.Messages)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestStore_AppendBumpsUpdatedAt(t *testing.T) {
	s := NewStore()
	times := []time.Time{
		time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC),
	}
	i := 0
	s.now = func() time.Time { t := times[i]; i++; return t }

	session := s.Create()
	updated, err := s.Append(session.ID, RoleUser, "hello")
	require.NoError(t, err)

	require.Len(t, updated.Messages, 1)
	assert.Equal(t, RoleUser, updated.Messages[0].Role)
	assert.Equal(t, times[1], updated.UpdatedAt)
	assert.Equal(t, times[1], updated.Messages[0].CreatedAt)
	assert.Equal(t, times[0], updated.CreatedAt)
}

func TestStore_AppendUnknownSession(t *testing.T) {
	s := NewStore()

	_, err := s.Append("nope", RoleUser, "hello")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))

	_, err = s.Get("nope")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestStore_ListOrderedByRecency(t *testing.T) {
	s := NewStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }

	first := s.Create()
	second := s.Create()
	_, err := s.Append(first.ID, RoleUser, "bump")
	require.NoError(t, err)

	sessions := s.List()
	require.Len(t, sessions, 2)
	assert.Equal(t, first.ID, sessions[0].ID, "appended session sorts first")
	assert.Equal(t, second.ID, sessions[1].ID)
}

func TestStore_SnapshotsAreIsolated(t *testing.T) {
	s := NewStore()
	session := s.Create()

	snap, err := s.Append(session.ID, RoleUser, "original")
	require.NoError(t, err)
	snap.Messages[0].Content = "mutated"

	got, err := s.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Messages[0].Content)
}

func TestStore_ConcurrentAppends(t *testing.T) {
	s := NewStore()
	session := s.Create()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Append(session.ID, RoleUser, "msg")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(session.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 50)
}
