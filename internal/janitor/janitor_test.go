package janitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/models"
	"github.com/anichkay-yyy/client-pipeline/internal/repository/repositorytest"
)

func newTestJanitor() (*Janitor, *repositorytest.FakeLeadRepo, *repositorytest.FakeChannelRepo) {
	messages := repositorytest.NewFakeMessageRepo()
	leads := repositorytest.NewFakeLeadRepo(messages)
	channels := repositorytest.NewFakeChannelRepo()
	j := New(leads, channels, zap.NewNop(), Config{
		Interval:        time.Hour,
		ReplyTTL:        72 * time.Hour,
		DeadChannelDays: 7,
	})
	return j, leads, channels
}

func TestExpireStaleLeads(t *testing.T) {
	j, leads, _ := newTestJanitor()

	staleAt := time.Now().UTC().Add(-80 * time.Hour)
	freshAt := time.Now().UTC().Add(-time.Hour)

	stale := &models.Lead{MessageID: 1, Status: models.StatusContacted, ContactedAt: &staleAt}
	fresh := &models.Lead{MessageID: 2, Status: models.StatusContacted, ContactedAt: &freshAt}
	require.NoError(t, leads.Create(stale))
	require.NoError(t, leads.Create(fresh))

	j.ExpireStaleLeads()

	got, err := leads.GetByID(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoReply, got.Status)

	got, err = leads.GetByID(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusContacted, got.Status)
}

func TestDeactivateDeadChannels(t *testing.T) {
	j, _, channels := newTestJanitor()

	from := "channel_forward"
	dead := &models.Channel{PlatformID: 1, IsActive: true, DiscoveredFrom: &from,
		DiscoveredAt: time.Now().UTC().AddDate(0, 0, -10)}
	productive := &models.Channel{PlatformID: 2, IsActive: true, DiscoveredFrom: &from,
		DiscoveredAt: time.Now().UTC().AddDate(0, 0, -10)}
	// Seeded channels have no discovery provenance and are never swept.
	seeded := &models.Channel{PlatformID: 3, IsActive: true,
		DiscoveredAt: time.Now().UTC().AddDate(0, 0, -30)}
	recent := &models.Channel{PlatformID: 4, IsActive: true, DiscoveredFrom: &from,
		DiscoveredAt: time.Now().UTC().AddDate(0, 0, -2)}

	for _, c := range []*models.Channel{dead, productive, seeded, recent} {
		require.NoError(t, channels.Create(c))
	}
	channels.MarkHasLeads(productive.ID)

	j.DeactivateDeadChannels()

	got, err := channels.GetByID(dead.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	for _, c := range []*models.Channel{productive, seeded, recent} {
		got, err := channels.GetByID(c.ID)
		require.NoError(t, err)
		assert.True(t, got.IsActive, "channel %d should stay active", c.ID)
	}
}
