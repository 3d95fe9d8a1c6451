package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/dedup"
	"github.com/anichkay-yyy/client-pipeline/internal/models"
	"github.com/anichkay-yyy/client-pipeline/internal/repository/repositorytest"
	"github.com/anichkay-yyy/client-pipeline/internal/scorer"
)

type fakeScorer struct {
	result *scorer.ScoreResult
	err    error
	calls  int
}

func (f *fakeScorer) Score(ctx context.Context, text string, targetStacks []string) (*scorer.ScoreResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestAdapter(sc Scorer) (*Adapter, *repositorytest.FakeMessageRepo, *repositorytest.FakeLeadRepo) {
	logger := zap.NewNop()
	messages := repositorytest.NewFakeMessageRepo()
	leads := repositorytest.NewFakeLeadRepo(messages)
	store := dedup.NewStore(messages, logger)
	adapter := NewAdapter(messages, leads, store, sc, logger, 0.6, nil, time.Second, time.Second)
	return adapter, messages, leads
}

func seedMessage(t *testing.T, messages *repositorytest.FakeMessageRepo, text string) *models.Message {
	t.Helper()
	msg := &models.Message{
		ChannelID:     1,
		PlatformMsgID: 1,
		Text:          text,
		TextHash:      dedup.Hash(text),
		IsNovel:       true,
		PublishedAt:   time.Now().UTC(),
	}
	inserted, err := messages.Insert(msg)
	require.NoError(t, err)
	require.True(t, inserted)
	return msg
}

func TestClassifyCreatesLeadAboveThreshold(t *testing.T) {
	budget := "$500"
	sc := &fakeScorer{result: &scorer.ScoreResult{Relevant: true, Score: 0.8, Budget: &budget}}
	adapter, messages, leads := newTestAdapter(sc)
	msg := seedMessage(t, messages, "need a go developer, budget $500")

	require.NoError(t, adapter.Classify(context.Background(), msg))

	lead, err := leads.GetByMessageID(msg.ID)
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, models.StatusNew, lead.Status)
	assert.Equal(t, 0.8, lead.RelevanceScore)
	require.NotNil(t, lead.Budget)
	assert.Equal(t, "$500", *lead.Budget)

	// The message left the classification queue.
	pending, err := messages.ListUnclassified(10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestClassifyRejectsBelowThreshold(t *testing.T) {
	sc := &fakeScorer{result: &scorer.ScoreResult{Relevant: true, Score: 0.4}}
	adapter, messages, leads := newTestAdapter(sc)
	msg := seedMessage(t, messages, "selling my old laptop")

	require.NoError(t, adapter.Classify(context.Background(), msg))

	lead, err := leads.GetByMessageID(msg.ID)
	require.NoError(t, err)
	assert.Nil(t, lead)

	pending, err := messages.ListUnclassified(10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestClassifyScorerFailureLeavesMessageQueued(t *testing.T) {
	sc := &fakeScorer{err: errors.New("scorer unavailable")}
	adapter, messages, leads := newTestAdapter(sc)
	msg := seedMessage(t, messages, "need a go developer")

	// Unavailability must never default a verdict: the message stays queued.
	assert.Error(t, adapter.Classify(context.Background(), msg))

	lead, err := leads.GetByMessageID(msg.ID)
	require.NoError(t, err)
	assert.Nil(t, lead)

	pending, err := messages.ListUnclassified(10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestClassifyIsIdempotentOnRedelivery(t *testing.T) {
	sc := &fakeScorer{result: &scorer.ScoreResult{Relevant: true, Score: 0.9}}
	adapter, messages, leads := newTestAdapter(sc)
	msg := seedMessage(t, messages, "need a go developer")

	require.NoError(t, adapter.Classify(context.Background(), msg))
	// Redelivery of the same message must not create a second lead or call
	// the scorer again.
	require.NoError(t, adapter.Classify(context.Background(), msg))

	all, err := leads.ListByStatus(models.StatusNew)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, 1, sc.calls)
}

func TestClassifySkipsWhenLeadExistsForSameHash(t *testing.T) {
	sc := &fakeScorer{result: &scorer.ScoreResult{Relevant: true, Score: 0.9}}
	adapter, messages, leads := newTestAdapter(sc)
	msg := seedMessage(t, messages, "need a go developer")

	// A lead for identical text already exists through another channel.
	messages.LeadHashes[msg.TextHash] = true

	require.NoError(t, adapter.Classify(context.Background(), msg))

	lead, err := leads.GetByMessageID(msg.ID)
	require.NoError(t, err)
	assert.Nil(t, lead)
	assert.Equal(t, 0, sc.calls)
}
