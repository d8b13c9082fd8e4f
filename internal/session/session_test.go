package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	values map[string]string
	err    error
}

func newMemBackend() *memBackend {
	return &memBackend{values: map[string]string{}}
}

func (b *memBackend) SetValue(_ context.Context, key, value string) error {
	if b.err != nil {
		return b.err
	}
	b.values[key] = value
	return nil
}

func (b *memBackend) Value(_ context.Context, key string) (string, bool, error) {
	if b.err != nil {
		return "", false, b.err
	}
	v, ok := b.values[key]
	return v, ok, nil
}

func (b *memBackend) DeleteValue(_ context.Context, key string) error {
	if b.err != nil {
		return b.err
	}
	delete(b.values, key)
	return nil
}

func TestManager_SaveLoadClear(t *testing.T) {
	backend := newMemBackend()
	ctx := context.Background()

	m := NewManager(backend)
	require.NoError(t, m.Save(ctx, Session{UserID: "user-1", Name: "Ann", Token: "tok"}))
	assert.Equal(t, "tok", m.Token())

	// A fresh manager over the same backend sees the persisted session.
	other := NewManager(backend)
	assert.True(t, other.Current().Empty())
	s, err := other.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Session{UserID: "user-1", Name: "Ann", Token: "tok"}, s)
	assert.Equal(t, "tok", other.Token())

	require.NoError(t, other.Clear(ctx))
	assert.True(t, other.Current().Empty())
	assert.Empty(t, backend.values)
}

func TestManager_LoadMissing(t *testing.T) {
	m := NewManager(newMemBackend())

	s, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func TestManager_LoadCorrupt(t *testing.T) {
	backend := newMemBackend()
	backend.values[storageKey] = "{not json"

	_, err := NewManager(backend).Load(context.Background())
	assert.Error(t, err)
}

func TestManager_BackendError(t *testing.T) {
	backend := newMemBackend()
	backend.err = errors.New("disk gone")
	m := NewManager(backend)

	err := m.Save(context.Background(), Session{Token: "tok"})
	require.Error(t, err)
	assert.Empty(t, m.Token(), "failed save must not change the current session")
}
