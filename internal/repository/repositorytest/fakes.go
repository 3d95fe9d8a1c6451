// Package repositorytest provides in-memory repository fakes for unit tests.
// The fakes mirror the CAS and ledger semantics of the SQL implementations so
// state machine tests exercise the same failure modes.
package repositorytest

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anichkay-yyy/client-pipeline/internal/models"
	"github.com/anichkay-yyy/client-pipeline/internal/repository"
)

// FakeChannelRepo is an in-memory repository.ChannelRepository.
type FakeChannelRepo struct {
	mu       sync.Mutex
	nextID   int64
	channels map[int64]*models.Channel
	hasLeads map[int64]bool
}

func NewFakeChannelRepo() *FakeChannelRepo {
	return &FakeChannelRepo{channels: make(map[int64]*models.Channel)}
}

func (f *FakeChannelRepo) GetByPlatformID(platformID int64) (*models.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.channels {
		if c.PlatformID == platformID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *FakeChannelRepo) GetByID(id int64) (*models.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.channels[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (f *FakeChannelRepo) GetByHandle(handle string) (*models.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.channels {
		if c.Handle != nil && strings.EqualFold(*c.Handle, handle) {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *FakeChannelRepo) Create(channel *models.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.channels {
		if c.PlatformID == channel.PlatformID {
			*channel = *c
			return nil
		}
	}
	f.nextID++
	channel.ID = f.nextID
	if channel.DiscoveredAt.IsZero() {
		channel.DiscoveredAt = time.Now().UTC()
	}
	copied := *channel
	f.channels[channel.ID] = &copied
	return nil
}

func (f *FakeChannelRepo) ListActive() ([]*models.Channel, error) {
	return f.list(func(c *models.Channel) bool { return c.IsActive })
}

func (f *FakeChannelRepo) ListAll() ([]*models.Channel, error) {
	return f.list(func(*models.Channel) bool { return true })
}

func (f *FakeChannelRepo) Deactivate(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.channels[id]; ok {
		c.IsActive = false
	}
	return nil
}

func (f *FakeChannelRepo) UpdateLastCollectedMsgID(id, lastMsgID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.channels[id]; ok {
		c.LastCollectedMsgID = lastMsgID
	}
	return nil
}

// ListDeadDiscovered approximates the SQL lead join through the set recorded
// by MarkHasLeads.
func (f *FakeChannelRepo) ListDeadDiscovered(minAgeDays int) ([]*models.Channel, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -minAgeDays)
	return f.list(func(c *models.Channel) bool {
		return c.IsActive && c.DiscoveredFrom != nil && c.DiscoveredAt.Before(cutoff) && !f.hasLeads[c.ID]
	})
}

// MarkHasLeads records that a channel produced a lead, excluding it from
// dead-channel sweeps.
func (f *FakeChannelRepo) MarkHasLeads(channelID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hasLeads == nil {
		f.hasLeads = make(map[int64]bool)
	}
	f.hasLeads[channelID] = true
}

var _ repository.ChannelRepository = (*FakeChannelRepo)(nil)

func (f *FakeChannelRepo) list(keep func(*models.Channel) bool) ([]*models.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Channel
	for _, c := range f.channels {
		if keep(c) {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FakeMessageRepo is an in-memory repository.MessageRepository.
type FakeMessageRepo struct {
	mu       sync.Mutex
	nextID   int64
	messages map[int64]*models.Message

	// HashExistsErr, when set, is returned from HashExists to simulate a
	// dedup index failure.
	HashExistsErr error
	// LeadHashes is consulted by LeadExistsForHash.
	LeadHashes map[string]bool
}

func NewFakeMessageRepo() *FakeMessageRepo {
	return &FakeMessageRepo{
		messages:   make(map[int64]*models.Message),
		LeadHashes: make(map[string]bool),
	}
}

func (f *FakeMessageRepo) Insert(msg *models.Message) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ChannelID == msg.ChannelID && m.PlatformMsgID == msg.PlatformMsgID {
			return false, nil
		}
	}
	f.nextID++
	msg.ID = f.nextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	copied := *msg
	f.messages[msg.ID] = &copied
	return true, nil
}

func (f *FakeMessageRepo) GetByID(id int64) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil, nil
	}
	copied := *m
	return &copied, nil
}

func (f *FakeMessageRepo) GetByPlatformID(channelID, platformMsgID int64) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ChannelID == channelID && m.PlatformMsgID == platformMsgID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *FakeMessageRepo) HashExists(textHash string, excludeID int64) (bool, error) {
	if f.HashExistsErr != nil {
		return false, f.HashExistsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID != excludeID && m.TextHash == textHash {
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeMessageRepo) LeadExistsForHash(textHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LeadHashes[textHash], nil
}

func (f *FakeMessageRepo) ListUnclassified(limit int) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Message
	for _, m := range f.messages {
		if m.IsNovel && m.ClassifiedAt == nil {
			copied := *m
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeMessageRepo) MarkClassified(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[id]; ok {
		now := time.Now().UTC()
		m.ClassifiedAt = &now
	}
	return nil
}

func (f *FakeMessageRepo) CountSince(since string) (int, error) {
	cutoff, err := time.Parse(time.RFC3339, since)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.messages {
		if m.CreatedAt.After(cutoff) {
			n++
		}
	}
	return n, nil
}

func (f *FakeMessageRepo) Count() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages), nil
}

var _ repository.MessageRepository = (*FakeMessageRepo)(nil)

// FakeLeadRepo is an in-memory repository.LeadRepository. Transitions use
// the same state machine and compare-and-set rules as the SQL version.
// Messages, when set, backs the sender join used by ContactedBySender and
// the ordering join used by ListQueued.
type FakeLeadRepo struct {
	mu       sync.Mutex
	nextID   int64
	leads    map[int64]*models.Lead
	Messages *FakeMessageRepo
}

func NewFakeLeadRepo(messages *FakeMessageRepo) *FakeLeadRepo {
	return &FakeLeadRepo{leads: make(map[int64]*models.Lead), Messages: messages}
}

func (f *FakeLeadRepo) Create(lead *models.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	lead.ID = f.nextID
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
	copied := *lead
	f.leads[lead.ID] = &copied
	return nil
}

func (f *FakeLeadRepo) GetByID(id int64) (*models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok {
		return nil, nil
	}
	copied := *l
	return &copied, nil
}

func (f *FakeLeadRepo) GetByMessageID(messageID int64) (*models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.leads {
		if l.MessageID == messageID {
			copied := *l
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *FakeLeadRepo) ListByStatus(status models.LeadStatus) ([]*models.Lead, error) {
	return f.list(func(l *models.Lead) bool { return l.Status == status })
}

func (f *FakeLeadRepo) ListQueued() ([]*models.Lead, error) {
	queued, err := f.list(func(l *models.Lead) bool { return l.Status == models.StatusQueued })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(queued, func(i, j int) bool {
		if queued[i].RelevanceScore != queued[j].RelevanceScore {
			return queued[i].RelevanceScore > queued[j].RelevanceScore
		}
		return f.publishedAt(queued[i]).Before(f.publishedAt(queued[j]))
	})
	return queued, nil
}

func (f *FakeLeadRepo) ListRecent(limit int) ([]*models.Lead, error) {
	all, err := f.list(func(*models.Lead) bool { return true })
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *FakeLeadRepo) Transition(id int64, from, to models.LeadStatus) error {
	if !models.CanTransition(from, to) {
		return repository.ErrTransitionNotAllowed
	}
	return f.cas(id, from, func(l *models.Lead) { l.Status = to })
}

func (f *FakeLeadRepo) AttachCopy(id int64, outreachText, dmText string) error {
	return f.cas(id, models.StatusScored, func(l *models.Lead) {
		l.Status = models.StatusQueued
		l.OutreachText = &outreachText
		l.DMText = &dmText
	})
}

func (f *FakeLeadRepo) MarkContacted(id int64, outreachMsgID int64, dmMsgID *int64, at time.Time) error {
	return f.cas(id, models.StatusQueued, func(l *models.Lead) {
		l.Status = models.StatusContacted
		l.OutreachMsgID = &outreachMsgID
		l.DMMsgID = dmMsgID
		l.ContactedAt = &at
	})
}

func (f *FakeLeadRepo) MarkReplied(id int64, at time.Time) error {
	return f.cas(id, models.StatusContacted, func(l *models.Lead) {
		l.Status = models.StatusReplied
		l.RepliedAt = &at
	})
}

func (f *FakeLeadRepo) MarkForwarded(id int64, from models.LeadStatus, at time.Time) error {
	if !models.CanTransition(from, models.StatusForwarded) {
		return repository.ErrTransitionNotAllowed
	}
	return f.cas(id, from, func(l *models.Lead) {
		l.Status = models.StatusForwarded
		l.ForwardedAt = &at
	})
}

func (f *FakeLeadRepo) IncrementSendAttempts(id int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok {
		return 0, repository.ErrStaleTransition
	}
	l.SendAttempts++
	return l.SendAttempts, nil
}

func (f *FakeLeadRepo) ListStaleContacted(ttl time.Duration) ([]*models.Lead, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	return f.list(func(l *models.Lead) bool {
		return l.Status == models.StatusContacted && l.ContactedAt != nil && l.ContactedAt.Before(cutoff)
	})
}

func (f *FakeLeadRepo) StatusCounts() (map[models.LeadStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[models.LeadStatus]int)
	for _, l := range f.leads {
		counts[l.Status]++
	}
	return counts, nil
}

func (f *FakeLeadRepo) ContactedBySender(senderID int64) ([]*models.Lead, error) {
	candidates, err := f.list(func(l *models.Lead) bool {
		if l.Status != models.StatusContacted && l.Status != models.StatusReplied {
			return false
		}
		msg, _ := f.Messages.GetByID(l.MessageID)
		return msg != nil && msg.SenderID != nil && *msg.SenderID == senderID
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i].ContactedAt, candidates[j].ContactedAt
		if ci == nil || cj == nil {
			return cj == nil && ci != nil
		}
		return ci.After(*cj)
	})
	return candidates, nil
}

var _ repository.LeadRepository = (*FakeLeadRepo)(nil)

func (f *FakeLeadRepo) cas(id int64, expect models.LeadStatus, apply func(*models.Lead)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok || l.Status != expect {
		return repository.ErrStaleTransition
	}
	apply(l)
	return nil
}

func (f *FakeLeadRepo) list(keep func(*models.Lead) bool) ([]*models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Lead
	for _, l := range f.leads {
		if keep(l) {
			copied := *l
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *FakeLeadRepo) publishedAt(l *models.Lead) time.Time {
	if f.Messages == nil {
		return l.CreatedAt
	}
	msg, _ := f.Messages.GetByID(l.MessageID)
	if msg == nil {
		return l.CreatedAt
	}
	return msg.PublishedAt
}

// FakeBudgetLedger is an in-memory repository.BudgetRepository with the same
// reserve-then-check semantics as the SQL ledger. Safe for concurrent use.
type FakeBudgetLedger struct {
	mu   sync.Mutex
	rows map[string]*models.DailyBudget

	// ReserveErr, when set, is returned from TryReserve.
	ReserveErr error
}

func NewFakeBudgetLedger() *FakeBudgetLedger {
	return &FakeBudgetLedger{rows: make(map[string]*models.DailyBudget)}
}

func (f *FakeBudgetLedger) TryReserve(date time.Time, defaultMax int) (bool, error) {
	if f.ReserveErr != nil {
		return false, f.ReserveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.row(date, defaultMax)
	if row.SendsUsed < row.MaxSends {
		row.SendsUsed++
		return true, nil
	}
	if row.SendsUsed > row.MaxSends {
		return false, repository.ErrBudgetViolation
	}
	return false, nil
}

func (f *FakeBudgetLedger) Release(date time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.row(date, 0)
	if row.SendsUsed > 0 {
		row.SendsUsed--
	}
	return nil
}

func (f *FakeBudgetLedger) Get(date time.Time) (*models.DailyBudget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[models.BudgetDate(date).Format(models.BudgetDateLayout)]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (f *FakeBudgetLedger) SetMax(date time.Time, maxSends int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.row(date, maxSends).MaxSends = maxSends
	return nil
}

var _ repository.BudgetRepository = (*FakeBudgetLedger)(nil)

func (f *FakeBudgetLedger) row(date time.Time, defaultMax int) *models.DailyBudget {
	key := models.BudgetDate(date).Format(models.BudgetDateLayout)
	row, ok := f.rows[key]
	if !ok {
		row = &models.DailyBudget{Date: models.BudgetDate(date), MaxSends: defaultMax}
		f.rows[key] = row
	}
	return row
}

// FakeReplyRepo is an in-memory repository.ReplyRepository.
type FakeReplyRepo struct {
	mu      sync.Mutex
	nextID  int64
	Replies []*models.Reply
}

func NewFakeReplyRepo() *FakeReplyRepo {
	return &FakeReplyRepo{}
}

func (f *FakeReplyRepo) Insert(reply *models.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	reply.ID = f.nextID
	copied := *reply
	f.Replies = append(f.Replies, &copied)
	return nil
}

func (f *FakeReplyRepo) ListForLead(leadID int64) ([]*models.Reply, error) {
	return f.list(func(r *models.Reply) bool { return r.LeadID != nil && *r.LeadID == leadID })
}

func (f *FakeReplyRepo) ListUnattached() ([]*models.Reply, error) {
	return f.list(func(r *models.Reply) bool { return r.LeadID == nil && r.NeedsReview })
}

func (f *FakeReplyRepo) ExistsForLead(leadID, platformMsgID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.Replies {
		if r.LeadID != nil && *r.LeadID == leadID && r.PlatformMsgID != nil && *r.PlatformMsgID == platformMsgID {
			return true, nil
		}
	}
	return false, nil
}

var _ repository.ReplyRepository = (*FakeReplyRepo)(nil)

func (f *FakeReplyRepo) list(keep func(*models.Reply) bool) ([]*models.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Reply
	for _, r := range f.Replies {
		if keep(r) {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

// FakeCursorRepo is an in-memory repository.CursorRepository.
type FakeCursorRepo struct {
	mu      sync.Mutex
	cursors map[string]int64
}

func NewFakeCursorRepo() *FakeCursorRepo {
	return &FakeCursorRepo{cursors: make(map[string]int64)}
}

func (f *FakeCursorRepo) Get(name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursors[name], nil
}

func (f *FakeCursorRepo) Set(name string, lastEventID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors[name] = lastEventID
	return nil
}

var _ repository.CursorRepository = (*FakeCursorRepo)(nil)
