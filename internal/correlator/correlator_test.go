package correlator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/gateway"
	"github.com/anichkay-yyy/client-pipeline/internal/models"
	"github.com/anichkay-yyy/client-pipeline/internal/repository/repositorytest"
)

type fakeInbox struct {
	events []gateway.InboundEvent
	err    error
}

func (f *fakeInbox) Inbound(ctx context.Context, afterEventID int64) ([]gateway.InboundEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []gateway.InboundEvent
	for _, e := range f.events {
		if e.EventID > afterEventID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeSentiment struct {
	sentiment models.Sentiment
	err       error
}

func (f *fakeSentiment) Sentiment(ctx context.Context, outreachText, replyText string) (models.Sentiment, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.sentiment, nil
}

type fakeNotifier struct {
	positives []int64
}

func (f *fakeNotifier) NotifyPositiveReply(lead *models.Lead, replyText string) {
	f.positives = append(f.positives, lead.ID)
}

type correlatorFixture struct {
	correlator *Correlator
	leads      *repositorytest.FakeLeadRepo
	messages   *repositorytest.FakeMessageRepo
	replies    *repositorytest.FakeReplyRepo
	cursors    *repositorytest.FakeCursorRepo
	inbox      *fakeInbox
	sentiment  *fakeSentiment
	notifier   *fakeNotifier
}

func newFixture(t *testing.T) *correlatorFixture {
	t.Helper()
	messages := repositorytest.NewFakeMessageRepo()
	f := &correlatorFixture{
		leads:     repositorytest.NewFakeLeadRepo(messages),
		messages:  messages,
		replies:   repositorytest.NewFakeReplyRepo(),
		cursors:   repositorytest.NewFakeCursorRepo(),
		inbox:     &fakeInbox{},
		sentiment: &fakeSentiment{sentiment: models.SentimentNeutral},
		notifier:  &fakeNotifier{},
	}
	f.correlator = New(f.leads, f.replies, f.cursors, f.inbox, f.sentiment, f.notifier, zap.NewNop(), time.Second)
	return f
}

// addContactedLead seeds a contacted lead whose source message was posted by
// senderID, with the given outreach message id.
func (f *correlatorFixture) addContactedLead(t *testing.T, senderID, outreachMsgID int64, contactedAt time.Time) *models.Lead {
	t.Helper()
	msg := &models.Message{
		ChannelID:     1,
		PlatformMsgID: time.Now().UnixNano(),
		SenderID:      &senderID,
		Text:          "need a developer",
		PublishedAt:   contactedAt.Add(-time.Hour),
	}
	inserted, err := f.messages.Insert(msg)
	require.NoError(t, err)
	require.True(t, inserted)

	outreach := "our outreach"
	lead := &models.Lead{
		MessageID:      msg.ID,
		Status:         models.StatusContacted,
		RelevanceScore: 0.9,
		OutreachText:   &outreach,
		OutreachMsgID:  &outreachMsgID,
		ContactedAt:    &contactedAt,
	}
	require.NoError(t, f.leads.Create(lead))
	return lead
}

func threadReply(eventID, senderID, replyToMsgID int64, text string) gateway.InboundEvent {
	return gateway.InboundEvent{
		EventID:        eventID,
		PlatformMsgID:  eventID + 10000,
		SenderID:       senderID,
		ConversationID: 1,
		IsDirect:       false,
		ReplyToMsgID:   &replyToMsgID,
		Text:           text,
		ReceivedAt:     time.Now().UTC(),
	}
}

func directMessage(eventID, senderID int64, text string) gateway.InboundEvent {
	return gateway.InboundEvent{
		EventID:        eventID,
		PlatformMsgID:  eventID + 10000,
		SenderID:       senderID,
		ConversationID: senderID,
		IsDirect:       true,
		Text:           text,
		ReceivedAt:     time.Now().UTC(),
	}
}

func TestDrainAttachesThreadReply(t *testing.T) {
	f := newFixture(t)
	lead := f.addContactedLead(t, 7000, 555, time.Now().UTC().Add(-time.Hour))
	f.inbox.events = []gateway.InboundEvent{threadReply(1, 7000, 555, "sounds good, what is the price?")}

	require.NoError(t, f.correlator.Drain(context.Background()))

	got, err := f.leads.GetByID(lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReplied, got.Status)
	assert.NotNil(t, got.RepliedAt)

	attached, err := f.replies.ListForLead(lead.ID)
	require.NoError(t, err)
	require.Len(t, attached, 1)
	assert.False(t, attached[0].NeedsReview)

	cursor, err := f.cursors.Get("inbound")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cursor)
}

func TestDrainAttachesDMWithSingleCandidate(t *testing.T) {
	f := newFixture(t)
	lead := f.addContactedLead(t, 7000, 555, time.Now().UTC().Add(-time.Hour))
	f.inbox.events = []gateway.InboundEvent{directMessage(1, 7000, "interested")}

	require.NoError(t, f.correlator.Drain(context.Background()))

	got, err := f.leads.GetByID(lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReplied, got.Status)
}

func TestDrainResolvesDMToMostRecentContact(t *testing.T) {
	f := newFixture(t)
	older := f.addContactedLead(t, 7000, 555, time.Now().UTC().Add(-48*time.Hour))
	newer := f.addContactedLead(t, 7000, 556, time.Now().UTC().Add(-time.Hour))
	f.inbox.events = []gateway.InboundEvent{directMessage(1, 7000, "yes let's talk")}

	require.NoError(t, f.correlator.Drain(context.Background()))

	got, err := f.leads.GetByID(newer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReplied, got.Status)

	got, err = f.leads.GetByID(older.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusContacted, got.Status)
}

func TestDrainStoresAmbiguousDMForReview(t *testing.T) {
	f := newFixture(t)
	at := time.Now().UTC().Add(-time.Hour)
	first := f.addContactedLead(t, 7000, 555, at)
	second := f.addContactedLead(t, 7000, 556, at)
	f.inbox.events = []gateway.InboundEvent{directMessage(1, 7000, "which one is this about?")}

	require.NoError(t, f.correlator.Drain(context.Background()))

	// Neither lead transitions; the reply is kept unattached.
	for _, id := range []int64{first.ID, second.ID} {
		got, err := f.leads.GetByID(id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusContacted, got.Status)
	}
	pending, err := f.replies.ListUnattached()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].NeedsReview)

	// The event is still acknowledged so it is not replayed forever.
	cursor, err := f.cursors.Get("inbound")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cursor)
}

func TestDrainIgnoresUncontactedSenders(t *testing.T) {
	f := newFixture(t)
	f.inbox.events = []gateway.InboundEvent{directMessage(1, 9999, "hello, unrelated")}

	require.NoError(t, f.correlator.Drain(context.Background()))

	assert.Empty(t, f.replies.Replies)
	cursor, err := f.cursors.Get("inbound")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cursor)
}

func TestDrainSkipsAlreadySeenReply(t *testing.T) {
	f := newFixture(t)
	lead := f.addContactedLead(t, 7000, 555, time.Now().UTC().Add(-time.Hour))
	event := threadReply(1, 7000, 555, "sounds good")
	f.inbox.events = []gateway.InboundEvent{event}

	require.NoError(t, f.correlator.Drain(context.Background()))
	// Reset the cursor and replay the same event.
	require.NoError(t, f.cursors.Set("inbound", 0))
	require.NoError(t, f.correlator.Drain(context.Background()))

	attached, err := f.replies.ListForLead(lead.ID)
	require.NoError(t, err)
	assert.Len(t, attached, 1)
}

func TestDrainForwardsPositiveReply(t *testing.T) {
	f := newFixture(t)
	f.sentiment.sentiment = models.SentimentPositive
	lead := f.addContactedLead(t, 7000, 555, time.Now().UTC().Add(-time.Hour))
	f.inbox.events = []gateway.InboundEvent{threadReply(1, 7000, 555, "yes, let's do it")}

	require.NoError(t, f.correlator.Drain(context.Background()))

	got, err := f.leads.GetByID(lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusForwarded, got.Status)
	assert.NotNil(t, got.ForwardedAt)
	assert.Equal(t, []int64{lead.ID}, f.notifier.positives)
}

func TestDrainSentimentFailureFallsBackToUnclear(t *testing.T) {
	f := newFixture(t)
	f.sentiment.err = errors.New("scorer down")
	lead := f.addContactedLead(t, 7000, 555, time.Now().UTC().Add(-time.Hour))
	f.inbox.events = []gateway.InboundEvent{threadReply(1, 7000, 555, "hmm")}

	require.NoError(t, f.correlator.Drain(context.Background()))

	attached, err := f.replies.ListForLead(lead.ID)
	require.NoError(t, err)
	require.Len(t, attached, 1)
	require.NotNil(t, attached[0].Sentiment)
	assert.Equal(t, models.SentimentUnclear, *attached[0].Sentiment)
	assert.Empty(t, f.notifier.positives)
}

func TestDrainStopsWithoutAckOnInboxError(t *testing.T) {
	f := newFixture(t)
	f.inbox.err = errors.New("gateway unreachable")

	assert.Error(t, f.correlator.Drain(context.Background()))

	cursor, err := f.cursors.Get("inbound")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cursor)
}
