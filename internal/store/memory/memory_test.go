package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/natusdeed/fashion-site-sub000/pkg/errors"
)

func TestStore_GetMissing(t *testing.T) {
	_, err := New().Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestStore_ValuesAreCopied(t *testing.T) {
	s := New()
	ctx := context.Background()
	in := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", in))
	in[0] = 'x'

	out, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))

	out[0] = 'y'
	again, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestStore_FailWith(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("quota exceeded")
	s.FailWith(boom)

	assert.ErrorIs(t, s.Set(ctx, "k", nil), boom)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.Delete(ctx, "k"), boom)
	assert.ErrorIs(t, s.Ping(ctx), boom)

	s.FailWith(nil)
	assert.NoError(t, s.Set(ctx, "k", nil))
}

func TestStore_Keys(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "b", nil))
	require.NoError(t, s.Set(ctx, "a", nil))
	require.NoError(t, s.Delete(ctx, "missing"))

	assert.Equal(t, []string{"a", "b"}, s.Keys())
}
