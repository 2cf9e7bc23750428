package leveling

import "sync"

// Member identifies a guild member. XP is scoped per guild, so activity is
// tracked with the guild attached.
type Member struct {
	GuildID string
	UserID  string
}

// Tracker records recent member activity in memory. Event handlers add to
// it from the gateway goroutines; the Granter drains or snapshots it once
// per cycle. It holds no history: the voice set is reseeded from gateway
// state at startup.
type Tracker struct {
	mu      sync.Mutex
	chatted map[Member]struct{}
	inVoice map[Member]struct{}
}

// NewTracker creates an empty activity tracker.
func NewTracker() *Tracker {
	return &Tracker{
		chatted: make(map[Member]struct{}),
		inVoice: make(map[Member]struct{}),
	}
}

// RecordChatMessage marks a member as having chatted in the current window.
// Idempotent within a window.
func (t *Tracker) RecordChatMessage(m Member) {
	t.mu.Lock()
	t.chatted[m] = struct{}{}
	t.mu.Unlock()
}

// RecordVoiceJoin marks a member as connected to a voice channel.
func (t *Tracker) RecordVoiceJoin(m Member) {
	t.mu.Lock()
	t.inVoice[m] = struct{}{}
	t.mu.Unlock()
}

// RecordVoiceLeave removes a member from the voice set.
func (t *Tracker) RecordVoiceLeave(m Member) {
	t.mu.Lock()
	delete(t.inVoice, m)
	t.mu.Unlock()
}

// DrainChatActivity returns the chat window and clears it in one step.
// A message recorded concurrently with the drain lands either in the
// returned set or in the next window, never nowhere.
func (t *Tracker) DrainChatActivity() []Member {
	t.mu.Lock()
	drained := t.chatted
	t.chatted = make(map[Member]struct{})
	t.mu.Unlock()

	members := make([]Member, 0, len(drained))
	for m := range drained {
		members = append(members, m)
	}
	return members
}

// SnapshotVoiceActivity returns the members currently in voice without
// clearing the set; voice presence earns XP every cycle.
func (t *Tracker) SnapshotVoiceActivity() []Member {
	t.mu.Lock()
	members := make([]Member, 0, len(t.inVoice))
	for m := range t.inVoice {
		members = append(members, m)
	}
	t.mu.Unlock()
	return members
}

// VoiceCount reports the size of the voice set.
func (t *Tracker) VoiceCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inVoice)
}
