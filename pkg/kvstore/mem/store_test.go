package mem_test

import (
	"context"
	"testing"

	"github.com/inbucket/mailroute/pkg/kvstore/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreDistinguishesEmptyFromAbsent(t *testing.T) {
	s := mem.NewStore(map[string]string{"user1": "", "user2": "a@b.com"})
	ctx := context.Background()

	v, ok, err := s.Get(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", v)

	v, ok, err = s.Get(ctx, "user2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a@b.com", v)

	_, ok, err = s.Get(ctx, "user3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreSetDelete(t *testing.T) {
	s := mem.NewStore(nil)
	s.Set("k", "v")
	assert.Equal(t, 1, s.Len())

	s.Delete("k")
	_, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStoreHonorsCanceledContext(t *testing.T) {
	s := mem.NewStore(map[string]string{"k": "v"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
