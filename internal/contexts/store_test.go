package contexts

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "contexts.json"))
}

func TestCreateAndList(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Create("docs", "pw", "product docs"))
	assert.ErrorIs(t, s.Create("docs", "pw2", ""), ErrExists)

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "docs", list[0].Name)
	assert.Equal(t, "product docs", list[0].Description)
}

func TestPasswordEnforcement(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("docs", "pw", ""))

	assert.ErrorIs(t, s.SaveFile("docs", "wrong", "a.md", "x"), ErrUnauthorized)
	assert.ErrorIs(t, s.Delete("docs", "wrong"), ErrUnauthorized)

	_, err := s.ListFiles("missing", "pw")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFiles(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("docs", "pw", ""))

	t.Run("only markdown accepted", func(t *testing.T) {
		assert.ErrorIs(t, s.SaveFile("docs", "pw", "a.txt", "x"), ErrNotMarkdown)
	})

	require.NoError(t, s.SaveFile("docs", "pw", "b.md", "second"))
	require.NoError(t, s.SaveFile("docs", "pw", "a.md", "first"))

	files, err := s.ListFiles("docs", "pw")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.md"}, files)

	content, err := s.GetFile("docs", "pw", "a.md")
	require.NoError(t, err)
	assert.Equal(t, "first", content)

	require.NoError(t, s.DeleteFile("docs", "pw", "a.md"))
	_, err = s.GetFile("docs", "pw", "a.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinks(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("docs", "pw", ""))

	require.NoError(t, s.AddLink("docs", "pw", "https://example.com"))
	require.NoError(t, s.AddLink("docs", "pw", "https://example.org"))

	links, err := s.ListLinks("docs", "pw")
	require.NoError(t, err)
	assert.Len(t, links, 2)

	require.NoError(t, s.DeleteLink("docs", "pw", "https://example.com"))
	assert.ErrorIs(t, s.DeleteLink("docs", "pw", "https://example.com"), ErrNotFound)
}

func TestResolve(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("docs", "pw", ""))
	require.NoError(t, s.SaveFile("docs", "pw", "b.md", "second"))
	require.NoError(t, s.SaveFile("docs", "pw", "a.md", "first"))

	text, ok := s.Resolve("docs")
	require.True(t, ok)
	assert.Equal(t, "first\n\nsecond", text)

	_, ok = s.Resolve("missing")
	assert.False(t, ok)
}

func TestUsageTracking(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("premium", "pw", ""))

	const wallet = "0x1111111111111111111111111111111111111111"
	assert.Zero(t, s.UsageCount("premium", wallet))

	for i := 0; i < 3; i++ {
		s.RecordUse("premium", wallet)
	}
	s.RecordUse("premium", "0x2222222222222222222222222222222222222222")

	assert.Equal(t, 3, s.UsageCount("premium", wallet))

	t.Run("case-insensitive wallet attribution", func(t *testing.T) {
		assert.Equal(t, 3, s.UsageCount("premium", "0X1111111111111111111111111111111111111111"))
	})

	t.Run("survives reload", func(t *testing.T) {
		reloaded := NewStore(s.path)
		assert.Equal(t, 3, reloaded.UsageCount("premium", wallet))
	})
}
