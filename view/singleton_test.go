package view

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/pagecache/cache"
)

func TestProxySingleton_RemoveIsTerminal(t *testing.T) {
	t.Parallel()

	inst := newLoaded(t, 10)
	s := ProxySingleton(inst, 4)
	ctx := context.Background()

	v, ok, err := s.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "4", v)

	require.True(t, s.Modify("four"))
	require.True(t, s.Remove())

	// index 4 now holds "5" in the instance, but the view stays empty
	for i := 0; i < 3; i++ {
		_, ok, err = s.Get(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.False(t, s.Modify("x"))
	assert.False(t, s.Remove())
	got, _ := inst.Retrieve(4)
	assert.Equal(t, "5", got)
}

func TestProxySingleton_DisabledEvenWhenRemoveFails(t *testing.T) {
	t.Parallel()

	inst := newLoaded(t, 3)
	s := ProxySingleton(inst, 7)
	assert.False(t, s.Remove())
	_, ok, _ := s.Get(context.Background())
	assert.False(t, ok)
}

func TestStandaloneSingleton(t *testing.T) {
	t.Parallel()

	s := StandaloneSingleton("v")
	var events []cache.ModifiedEvent[string]
	s.Modified().Subscribe(func(ev cache.ModifiedEvent[string]) { events = append(events, ev) })

	require.True(t, s.Modify("w"))
	v, ok, _ := s.Get(context.Background())
	require.True(t, ok)
	assert.Equal(t, "w", v)

	require.True(t, s.Remove())
	assert.False(t, s.Remove())
	assert.False(t, s.Modify("z"))
	_, ok, _ = s.Get(context.Background())
	assert.False(t, ok)

	assert.Equal(t, []cache.ModifiedEvent[string]{
		{Type: cache.EventModify, Index: -1, Value: "w", OldValue: "v"},
		{Type: cache.EventRemove, Index: -1, OldValue: "w"},
	}, events)
}

func TestInvokeSingleton_RunsOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	s := InvokeSingleton(func(context.Context) (int, bool, error) {
		calls++
		return 42, true, nil
	})
	assert.False(t, s.Modify(1), "nothing to modify before the first Get")

	for i := 0; i < 3; i++ {
		v, ok, err := s.Get(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, 1, calls)
	require.True(t, s.Modify(43))
	v, _, _ := s.Get(context.Background())
	assert.Equal(t, 43, v)
}

func TestInvokeSingleton_Failure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := InvokeSingleton(func(context.Context) (int, bool, error) { return 0, false, boom })
	_, _, err := s.Get(context.Background())
	require.ErrorIs(t, err, boom)
	_, ok, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
