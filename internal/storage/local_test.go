package storage

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, limit int64) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(t.TempDir(), "http://files.local", "secret", limit)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return s
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey(time.Date(2024, 3, 7, 23, 0, 0, 0, time.UTC), ".JPG")

	assert.True(t, strings.HasPrefix(key, "hsse-reports/2024/03/07/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
}

func TestLocalStore_PutAndDelete(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	n, err := s.Put(ctx, "hsse-reports/2024/01/01/a.txt", strings.NewReader("hello"), 5, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	p, err := s.Path("hsse-reports/2024/01/01/a.txt")
	require.NoError(t, err)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	ok, err := s.Exists(ctx, "hsse-reports/2024/01/01/a.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	size, err := s.Size(ctx, "hsse-reports/2024/01/01/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	require.NoError(t, s.Delete(ctx, "hsse-reports/2024/01/01/a.txt"))
	ok, err = s.Exists(ctx, "hsse-reports/2024/01/01/a.txt")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))

	// Повторное удаление не ошибка.
	assert.NoError(t, s.Delete(ctx, "hsse-reports/2024/01/01/a.txt"))
}

func TestLocalStore_RejectsTooLarge(t *testing.T) {
	s := newTestStore(t, 4)

	_, err := s.Put(context.Background(), "big.bin", strings.NewReader("12345"), 5, "")
	assert.ErrorIs(t, err, ErrTooLarge)

	_, statErr := os.Stat(filepath.Join(s.rootPath, "big.bin.tmp"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLocalStore_KeyCannotEscapeRoot(t *testing.T) {
	s := newTestStore(t, 0)

	p, err := s.Path("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, s.rootPath))
}

func TestLocalStore_TemporaryURL(t *testing.T) {
	s := newTestStore(t, 0)
	key := "hsse-reports/2024/01/01/a.jpg"

	raw, err := s.TemporaryURL(context.Background(), key, time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/"+key, u.Path)

	exp, sig := u.Query().Get("expires"), u.Query().Get("signature")
	assert.NoError(t, s.Verify(key, exp, sig))
	assert.ErrorIs(t, s.Verify("other.jpg", exp, sig), ErrInvalidSignature)

	s.now = func() time.Time { return time.Unix(1_700_000_000, 0).Add(2 * time.Minute) }
	assert.ErrorIs(t, s.Verify(key, exp, sig), ErrInvalidSignature)
}
