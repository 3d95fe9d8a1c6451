package dedup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/models"
	"github.com/anichkay-yyy/client-pipeline/internal/repository/repositorytest"
)

func TestHashNormalization(t *testing.T) {
	base := Hash("need a golang developer for an api")

	// Case, surrounding whitespace and internal whitespace runs must not
	// change the hash.
	assert.Equal(t, base, Hash("Need a GOLANG developer for an API"))
	assert.Equal(t, base, Hash("  need a golang developer for an api  "))
	assert.Equal(t, base, Hash("need  a\tgolang\n developer   for an api"))

	// Different text must not collide.
	assert.NotEqual(t, base, Hash("need a python developer for an api"))
	assert.NotEqual(t, base, Hash("needagolangdeveloperforanapi"))
}

func TestHashIsStable(t *testing.T) {
	assert.Equal(t, Hash("hello world"), Hash("hello world"))
	assert.Len(t, Hash("hello world"), 64)
}

func TestStoreIsDuplicate(t *testing.T) {
	messages := repositorytest.NewFakeMessageRepo()
	store := NewStore(messages, zap.NewNop())

	hash := Hash("build me a telegram bot")
	_, err := messages.Insert(&models.Message{ChannelID: 1, PlatformMsgID: 10, Text: "build me a telegram bot", TextHash: hash})
	require.NoError(t, err)

	dup, err := store.IsDuplicate(hash, 0)
	require.NoError(t, err)
	assert.True(t, dup)

	// The message itself is excluded so re-checks do not self-match.
	dup, err = store.IsDuplicate(hash, 1)
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = store.IsDuplicate(Hash("something else"), 0)
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestStoreIsDuplicateSurfacesIndexError(t *testing.T) {
	messages := repositorytest.NewFakeMessageRepo()
	messages.HashExistsErr = errors.New("index unavailable")
	store := NewStore(messages, zap.NewNop())

	dup, err := store.IsDuplicate(Hash("anything"), 0)
	assert.Error(t, err)
	assert.False(t, dup)
}

func TestStoreLeadExists(t *testing.T) {
	messages := repositorytest.NewFakeMessageRepo()
	store := NewStore(messages, zap.NewNop())

	hash := Hash("looking for a react developer")
	exists, err := store.LeadExists(hash)
	require.NoError(t, err)
	assert.False(t, exists)

	messages.LeadHashes[hash] = true
	exists, err = store.LeadExists(hash)
	require.NoError(t, err)
	assert.True(t, exists)
}
