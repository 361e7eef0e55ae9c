package otp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslink/campuslink/config"
)

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := Generate(config.OTPLength, config.OTPCharset)
		require.NoError(t, err)
		assert.Len(t, code, config.OTPLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(config.OTPCharset, c), "unexpected character %q", c)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1, "codes should vary")
}

func TestGenerateInvalidParameters(t *testing.T) {
	_, err := Generate(0, "ABC")
	assert.Error(t, err)
	_, err = Generate(5, "")
	assert.Error(t, err)
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()

	c, err := r.Register("AB3C7", "12022005", "u1", "ch1")
	require.NoError(t, err)

	_, err = r.Register("XXXXX", "12022005", "u1", "ch1")
	assert.ErrorIs(t, err, ErrChallengeActive)

	// Same user, different channel, is a separate challenge.
	_, err = r.Register("YYYYY", "12022005", "u1", "ch2")
	require.NoError(t, err)

	assert.False(t, r.Resolve("ch1", "someone-else", "hello"))
	assert.True(t, r.Resolve("ch1", "u1", "AB3C7"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := c.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AB3C7", msg)
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	c, err := r.Register("AB3C7", "12022005", "u1", "ch1")
	require.NoError(t, err)

	r.Remove(c)
	assert.False(t, r.Resolve("ch1", "u1", "AB3C7"))
	r.Remove(c) // no-op

	// Removing a stale handle never drops a newer challenge.
	c2, err := r.Register("ZZZZZ", "12022005", "u1", "ch1")
	require.NoError(t, err)
	r.Remove(c)
	assert.True(t, r.Resolve("ch1", "u1", "ZZZZZ"))
	r.Remove(c2)
}

func TestAwaitContextCancelled(t *testing.T) {
	r := NewRegistry()
	c, err := r.Register("AB3C7", "12022005", "u1", "ch1")
	require.NoError(t, err)
	defer r.Remove(c)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
