package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/dedup"
	"github.com/anichkay-yyy/client-pipeline/internal/gateway"
	"github.com/anichkay-yyy/client-pipeline/internal/ingest"
	"github.com/anichkay-yyy/client-pipeline/internal/registry"
	"github.com/anichkay-yyy/client-pipeline/internal/repository/repositorytest"
)

type fakeSource struct {
	channels   []gateway.Channel
	messages   map[int64][]gateway.Message
	resolvable map[string]gateway.Channel

	resolveCalls []string
}

func (f *fakeSource) Channels(ctx context.Context) ([]gateway.Channel, error) {
	return f.channels, nil
}

func (f *fakeSource) ResolveHandle(ctx context.Context, handle string) (*gateway.Channel, error) {
	f.resolveCalls = append(f.resolveCalls, handle)
	ch, ok := f.resolvable[handle]
	if !ok {
		return nil, nil
	}
	return &ch, nil
}

func (f *fakeSource) Collect(ctx context.Context, channelPlatformID, afterMsgID int64) ([]gateway.Message, error) {
	var out []gateway.Message
	for _, m := range f.messages[channelPlatformID] {
		if m.PlatformMsgID > afterMsgID {
			out = append(out, m)
		}
	}
	return out, nil
}

func newTestWorker(source *fakeSource) (*Worker, *repositorytest.FakeChannelRepo, *repositorytest.FakeMessageRepo) {
	logger := zap.NewNop()
	channels := repositorytest.NewFakeChannelRepo()
	messages := repositorytest.NewFakeMessageRepo()
	reg := registry.New(channels, logger)
	gate := ingest.NewGate(reg, messages, dedup.NewStore(messages, logger), logger)
	return NewWorker(source, reg, channels, gate, logger, time.Second), channels, messages
}

func gwMessage(id int64, text string) gateway.Message {
	return gateway.Message{PlatformMsgID: id, Text: text, PublishedAt: time.Now().UTC()}
}

func TestSyncChannelsRegistersAndDeactivates(t *testing.T) {
	source := &fakeSource{channels: []gateway.Channel{
		{PlatformID: 100, Handle: "gowork", Title: "Go Work", Reachable: true},
		{PlatformID: 200, Handle: "lost", Reachable: false},
	}}
	worker, channels, _ := newTestWorker(source)

	worker.syncChannels(context.Background())

	registered, err := channels.GetByPlatformID(100)
	require.NoError(t, err)
	require.NotNil(t, registered)
	assert.True(t, registered.IsActive)

	// Unreachable channels we never registered stay unknown.
	unknown, err := channels.GetByPlatformID(200)
	require.NoError(t, err)
	assert.Nil(t, unknown)

	// Once a known channel becomes unreachable it is deactivated.
	source.channels[0].Reachable = false
	worker.syncChannels(context.Background())

	got, err := channels.GetByPlatformID(100)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestCollectAllIngestsAndAdvancesCursor(t *testing.T) {
	source := &fakeSource{
		channels: []gateway.Channel{{PlatformID: 100, Handle: "gowork", Reachable: true}},
		messages: map[int64][]gateway.Message{
			100: {gwMessage(1, "need a go dev"), gwMessage(2, "need a rust dev")},
		},
	}
	worker, channels, messages := newTestWorker(source)

	worker.syncChannels(context.Background())
	worker.collectAll(context.Background())

	n, err := messages.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	channel, err := channels.GetByPlatformID(100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), channel.LastCollectedMsgID)

	// The next poll only picks up messages past the cursor.
	source.messages[100] = append(source.messages[100], gwMessage(3, "need a python dev"))
	worker.collectAll(context.Background())

	n, err = messages.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	channel, err = channels.GetByPlatformID(100)
	require.NoError(t, err)
	assert.Equal(t, int64(3), channel.LastCollectedMsgID)
}

func TestCollectRegistersReferencedChannels(t *testing.T) {
	source := &fakeSource{
		channels: []gateway.Channel{{PlatformID: 100, Handle: "gowork", Reachable: true}},
		messages: map[int64][]gateway.Message{
			100: {gwMessage(1, "More gigs in @freelance_hub, reposts in @gowork and @ghosttown")},
		},
		resolvable: map[string]gateway.Channel{
			"freelance_hub": {PlatformID: 300, Handle: "freelance_hub", Title: "Freelance Hub"},
		},
	}
	worker, channels, _ := newTestWorker(source)

	worker.syncChannels(context.Background())
	worker.collectAll(context.Background())

	discovered, err := channels.GetByPlatformID(300)
	require.NoError(t, err)
	require.NotNil(t, discovered)
	require.NotNil(t, discovered.DiscoveredFrom)
	assert.Equal(t, "@gowork", *discovered.DiscoveredFrom)
	assert.True(t, discovered.IsActive)

	// Self-references are skipped; unresolvable handles leave no row.
	assert.NotContains(t, source.resolveCalls, "gowork")
	ghost, err := channels.GetByHandle("ghosttown")
	require.NoError(t, err)
	assert.Nil(t, ghost)

	// A later mention of an already-tracked handle does not hit the gateway
	// again or overwrite provenance.
	source.messages[100] = append(source.messages[100], gwMessage(2, "again via @freelance_hub"))
	worker.collectAll(context.Background())
	assert.Equal(t, []string{"freelance_hub", "ghosttown"}, source.resolveCalls)
}
