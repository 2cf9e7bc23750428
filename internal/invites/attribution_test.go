package invites

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"levelbot/internal/metrics"
	"levelbot/internal/models"
)

// fakeStore implements Store for testing.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[string]models.InviteUse // key: code
	getErr  error
	upserts int
}

func newFakeStore(rows ...models.InviteUse) *fakeStore {
	s := &fakeStore{rows: make(map[string]models.InviteUse)}
	for _, r := range rows {
		s.rows[r.Code] = r
	}
	return s
}

func (s *fakeStore) GetInviteUses(_ context.Context, guildID string) ([]models.InviteUse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	var out []models.InviteUse
	for _, r := range s.rows {
		if r.GuildID == guildID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertInviteUse(_ context.Context, use models.InviteUse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[use.Code] = use
	s.upserts++
	return nil
}

func (s *fakeStore) uses(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[code].Uses
}

// fakeFetcher implements Fetcher for testing.
type fakeFetcher struct {
	invites   []models.InviteUse
	err       error
	vanity    *models.InviteUse
	vanityErr error
}

func (f *fakeFetcher) FetchInvites(string) ([]models.InviteUse, error) {
	return f.invites, f.err
}

func (f *fakeFetcher) FetchVanity(string) (*models.InviteUse, error) {
	return f.vanity, f.vanityErr
}

// fakeNotifier implements Notifier for testing.
type fakeNotifier struct {
	mu       sync.Mutex
	used     []models.InviteUse
	unknowns int
}

func (n *fakeNotifier) NotifyInviteUsed(_, _ string, invite models.InviteUse) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.used = append(n.used, invite)
}

func (n *fakeNotifier) NotifyUnknownInvite(_, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unknowns++
}

func newTestAttributor(store Store, fetcher Fetcher, notifier Notifier) *Attributor {
	logger := zerolog.Nop()
	return NewAttributor(store, fetcher, notifier, metrics.New(), &logger)
}

func invite(code string, uses int, inviterID string) models.InviteUse {
	return models.InviteUse{GuildID: "g1", Code: code, Uses: uses, InviterID: inviterID}
}

func TestAttributesJoinToChangedInvite(t *testing.T) {
	store := newFakeStore(invite("codeA", 5, "alice"), invite("codeB", 3, "bob"))
	fetcher := &fakeFetcher{invites: []models.InviteUse{
		invite("codeB", 3, "bob"),
		invite("codeA", 6, "alice"),
	}}
	notifier := &fakeNotifier{}

	a := newTestAttributor(store, fetcher, notifier)
	a.MemberJoined(context.Background(), "g1", "newcomer")

	if len(notifier.used) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifier.used))
	}
	if got := notifier.used[0]; got.Code != "codeA" || got.InviterID != "alice" {
		t.Errorf("attributed to %s/%s, want codeA/alice", got.Code, got.InviterID)
	}
	if notifier.unknowns != 0 {
		t.Errorf("unknowns = %d, want 0", notifier.unknowns)
	}
	// Baseline refreshed with the fetched counts.
	if got := store.uses("codeA"); got != 6 {
		t.Errorf("stored codeA uses = %d, want 6", got)
	}
}

func TestFirstChangedCodeInFetchOrderWins(t *testing.T) {
	store := newFakeStore(invite("codeA", 5, "alice"), invite("codeB", 3, "bob"))
	fetcher := &fakeFetcher{invites: []models.InviteUse{
		invite("codeB", 4, "bob"),
		invite("codeA", 6, "alice"),
	}}
	notifier := &fakeNotifier{}

	a := newTestAttributor(store, fetcher, notifier)
	a.MemberJoined(context.Background(), "g1", "newcomer")

	if len(notifier.used) != 1 || notifier.used[0].Code != "codeB" {
		t.Fatalf("attributed %v, want single codeB attribution", notifier.used)
	}
}

func TestNoChangeFallsBackToVanity(t *testing.T) {
	store := newFakeStore(invite("codeA", 5, "alice"), invite("cool-guild", 7, ""))
	fetcher := &fakeFetcher{
		invites: []models.InviteUse{invite("codeA", 5, "alice")},
		vanity:  &models.InviteUse{GuildID: "g1", Code: "cool-guild", Uses: 8},
	}
	notifier := &fakeNotifier{}

	a := newTestAttributor(store, fetcher, notifier)
	a.MemberJoined(context.Background(), "g1", "newcomer")

	if len(notifier.used) != 1 || notifier.used[0].Code != "cool-guild" {
		t.Fatalf("attributed %v, want vanity cool-guild", notifier.used)
	}
	if got := store.uses("cool-guild"); got != 8 {
		t.Errorf("stored vanity uses = %d, want 8", got)
	}
}

func TestNoChangeAnywhereIsUnknown(t *testing.T) {
	store := newFakeStore(invite("codeA", 5, "alice"))
	fetcher := &fakeFetcher{
		invites: []models.InviteUse{invite("codeA", 5, "alice")},
	}
	notifier := &fakeNotifier{}

	a := newTestAttributor(store, fetcher, notifier)
	a.MemberJoined(context.Background(), "g1", "newcomer")

	if notifier.unknowns != 1 {
		t.Errorf("unknowns = %d, want 1", notifier.unknowns)
	}
	if len(notifier.used) != 0 {
		t.Errorf("attributions = %v, want none", notifier.used)
	}
}

// A code only present in the fresh fetch has no baseline to diff against
// and is not a candidate.
func TestNewCodeWithoutBaselineIsUnknown(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{
		invites: []models.InviteUse{invite("brandnew", 1, "alice")},
	}
	notifier := &fakeNotifier{}

	a := newTestAttributor(store, fetcher, notifier)
	a.MemberJoined(context.Background(), "g1", "newcomer")

	if notifier.unknowns != 1 {
		t.Errorf("unknowns = %d, want 1", notifier.unknowns)
	}
	// The fresh count still lands in the baseline for next time.
	if got := store.uses("brandnew"); got != 1 {
		t.Errorf("stored brandnew uses = %d, want 1", got)
	}
}

func TestFetchFailureDegradesToUnknown(t *testing.T) {
	store := newFakeStore(invite("codeA", 5, "alice"))
	fetcher := &fakeFetcher{err: errors.New("platform down")}
	notifier := &fakeNotifier{}

	a := newTestAttributor(store, fetcher, notifier)
	a.MemberJoined(context.Background(), "g1", "newcomer")

	if notifier.unknowns != 1 {
		t.Errorf("unknowns = %d, want 1", notifier.unknowns)
	}
	if store.upserts != 0 {
		t.Errorf("upserts = %d, want 0 after failed fetch", store.upserts)
	}
}

func TestStoreFailureDegradesToUnknown(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("db down")
	fetcher := &fakeFetcher{invites: []models.InviteUse{invite("codeA", 6, "alice")}}
	notifier := &fakeNotifier{}

	a := newTestAttributor(store, fetcher, notifier)
	a.MemberJoined(context.Background(), "g1", "newcomer")

	if notifier.unknowns != 1 {
		t.Errorf("unknowns = %d, want 1", notifier.unknowns)
	}
}

func TestSyncGuildStoresBaseline(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{
		invites: []models.InviteUse{invite("codeA", 5, "alice"), invite("codeB", 3, "bob")},
		vanity:  &models.InviteUse{GuildID: "g1", Code: "cool-guild", Uses: 7},
	}

	a := newTestAttributor(store, fetcher, &fakeNotifier{})
	a.SyncGuild(context.Background(), "g1")

	if got := store.uses("codeA"); got != 5 {
		t.Errorf("codeA uses = %d, want 5", got)
	}
	if got := store.uses("codeB"); got != 3 {
		t.Errorf("codeB uses = %d, want 3", got)
	}
	if got := store.uses("cool-guild"); got != 7 {
		t.Errorf("vanity uses = %d, want 7", got)
	}
}
