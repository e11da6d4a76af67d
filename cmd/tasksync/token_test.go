package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/api"
)

func resetTokenOpts(t *testing.T) {
	saved := tokenOpts
	t.Cleanup(func() { tokenOpts = saved })
	tokenOpts.count = 1
	tokenOpts.prefix = "local-user"
	tokenOpts.start = 1
	tokenOpts.ttl = time.Hour
}

func TestGenerateTokensForPrefixRange(t *testing.T) {
	resetTokenOpts(t)
	tokenOpts.count = 3
	tokenOpts.prefix = "perf-user"
	tokenOpts.start = 5
	secret := []byte("s3cret")

	tokens, err := generateTokens(secret, nil)
	require.NoError(t, err)
	require.Len(t, tokens, 3)

	auth := api.NewLocalAuth(secret)
	for i, want := range []string{"perf-user-5", "perf-user-6", "perf-user-7"} {
		uid, err := auth.UserIDFromAuthHeader("Bearer " + tokens[i])
		require.NoError(t, err)
		assert.Equal(t, want, uid)
	}
}

func TestGenerateTokensExplicitUser(t *testing.T) {
	resetTokenOpts(t)
	secret := []byte("s3cret")
	tokens, err := generateTokens(secret, []string{"alice"})
	require.NoError(t, err)
	uid, err := api.NewLocalAuth(secret).UserIDFromAuthHeader("Bearer " + tokens[0])
	require.NoError(t, err)
	assert.Equal(t, "alice", uid)
}

func TestGenerateTokensRejectsBadFlags(t *testing.T) {
	resetTokenOpts(t)
	tokenOpts.count = 2
	_, err := generateTokens([]byte("x"), []string{"alice"})
	assert.Error(t, err)

	tokenOpts.count = 0
	_, err = generateTokens([]byte("x"), nil)
	assert.Error(t, err)

	tokenOpts.count = 1
	tokenOpts.start = 0
	_, err = generateTokens([]byte("x"), nil)
	assert.Error(t, err)
}
