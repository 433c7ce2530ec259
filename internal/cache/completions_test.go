package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	setErr error
}

func newMemStore() *memStore { return &memStore{data: map[string]string{}} }

func (m *memStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memStore) Close() error { return nil }

type countingCompleter struct {
	calls int
	reply string
	err   error
}

func (c *countingCompleter) Complete(context.Context, string) (string, error) {
	c.calls++
	return c.reply, c.err
}

func TestCachedCompleterServesRepeatsFromStore(t *testing.T) {
	next := &countingCompleter{reply: `{"kopfdaten":{}}`}
	c := NewCachedCompleter(next, newMemStore(), "m1", nil)

	for range 3 {
		out, err := c.Complete(context.Background(), "prompt")
		require.NoError(t, err)
		assert.Equal(t, `{"kopfdaten":{}}`, out)
	}
	assert.Equal(t, 1, next.calls)
}

func TestCachedCompleterKeyIncludesModel(t *testing.T) {
	store := newMemStore()
	a := NewCachedCompleter(&countingCompleter{}, store, "m1", nil)
	b := NewCachedCompleter(&countingCompleter{}, store, "m2", nil)
	assert.NotEqual(t, a.Key("p"), b.Key("p"))
	assert.Equal(t, a.Key("p"), a.Key("p"))
	assert.Len(t, a.Key("p"), 64)
}

func TestCachedCompleterDoesNotStoreFailures(t *testing.T) {
	store := newMemStore()
	next := &countingCompleter{err: errors.New("boom")}
	c := NewCachedCompleter(next, store, "m1", nil)

	_, err := c.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.Empty(t, store.data)

	_, err = c.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedCompleterIgnoresStoreErrors(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("redis down")
	store.setErr = errors.New("redis down")
	next := &countingCompleter{reply: "ok"}
	c := NewCachedCompleter(next, store, "m1", nil)

	out, err := c.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 1, next.calls)
}

func TestNewRedisCompletionStoreRequiresAddr(t *testing.T) {
	_, err := NewRedisCompletionStore("", "", 0, 0, "")
	require.Error(t, err)

	s, err := NewRedisCompletionStore("127.0.0.1:6379", "", 0, 0, "")
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
