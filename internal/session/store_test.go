package session

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaingate/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "sessions.json"))
}

func TestLoadMissingSession(t *testing.T) {
	store := newTestStore(t)

	t.Run("returns empty without error side effects", func(t *testing.T) {
		msgs := store.Load("never-seen")
		assert.Empty(t, msgs)

		// Reading alone must not create the backing file.
		_, err := os.Stat(store.path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("corrupt backing file reads as empty", func(t *testing.T) {
		require.NoError(t, os.WriteFile(store.path, []byte("{not json"), 0o644))
		assert.Empty(t, store.Load("any"))
	})
}

func TestAppend(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append("s1", "Hello", "Hi there"))

	msgs := store.Load("s1")
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hi there", msgs[1].Content)
	assert.Equal(t, "s1", msgs[0].SessionID)
	assert.NotZero(t, msgs[0].Timestamp)

	t.Run("sessions are isolated", func(t *testing.T) {
		require.NoError(t, store.Append("s2", "other", "reply"))
		assert.Len(t, store.Load("s1"), 2)
		assert.Len(t, store.Load("s2"), 2)
	})

	t.Run("message count stays even across exchanges", func(t *testing.T) {
		require.NoError(t, store.Append("s1", "again", "sure"))
		assert.Len(t, store.Load("s1"), 4)
	})
}

func TestClearAppendsSentinels(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append("s1", "Hello", "Hi"))
	require.NoError(t, store.Clear("s1"))

	msgs := store.Load("s1")
	require.Len(t, msgs, 4)
	assert.Empty(t, msgs[2].Content)
	assert.Empty(t, msgs[3].Content)
}

func TestConcurrentAppendsAreSerialized(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Append("shared", "q", "a")
		}()
	}
	wg.Wait()

	// With the store mutex no exchange may be lost to a last-writer-wins
	// overwrite of the full document.
	assert.Len(t, store.Load("shared"), 16)
}
