package leveling

import (
	"fmt"
	"sync"
	"testing"
)

func member(id string) Member {
	return Member{GuildID: "g1", UserID: id}
}

func TestDrainChatActivity(t *testing.T) {
	tr := NewTracker()
	tr.RecordChatMessage(member("a"))
	tr.RecordChatMessage(member("b"))
	tr.RecordChatMessage(member("a")) // idempotent

	drained := tr.DrainChatActivity()
	if len(drained) != 2 {
		t.Fatalf("drained %d members, want 2", len(drained))
	}
	seen := make(map[Member]bool)
	for _, m := range drained {
		seen[m] = true
	}
	if !seen[member("a")] || !seen[member("b")] {
		t.Errorf("drained set %v missing a member", drained)
	}

	if again := tr.DrainChatActivity(); len(again) != 0 {
		t.Errorf("second drain returned %d members, want 0", len(again))
	}
}

func TestVoiceActivity(t *testing.T) {
	tr := NewTracker()
	tr.RecordVoiceJoin(member("a"))
	tr.RecordVoiceJoin(member("a")) // idempotent
	tr.RecordVoiceJoin(member("b"))

	if got := tr.VoiceCount(); got != 2 {
		t.Fatalf("VoiceCount() = %d, want 2", got)
	}

	// Snapshot does not clear.
	first := tr.SnapshotVoiceActivity()
	second := tr.SnapshotVoiceActivity()
	if len(first) != 2 || len(second) != 2 {
		t.Errorf("snapshots returned %d and %d members, want 2 and 2", len(first), len(second))
	}

	tr.RecordVoiceLeave(member("a"))
	tr.RecordVoiceLeave(member("a")) // idempotent
	if got := tr.VoiceCount(); got != 1 {
		t.Errorf("VoiceCount() after leave = %d, want 1", got)
	}

	tr.RecordVoiceLeave(member("b"))
	if got := tr.SnapshotVoiceActivity(); len(got) != 0 {
		t.Errorf("snapshot after all left = %v, want empty", got)
	}
}

// Messages recorded concurrently with drains must land in some drain; none
// may be lost.
func TestDrainLosesNothingUnderConcurrency(t *testing.T) {
	tr := NewTracker()

	const writers = 4
	const perWriter = 500

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				tr.RecordChatMessage(member(fmt.Sprintf("w%d-%d", w, i)))
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	collected := make(map[Member]bool)
	for {
		for _, m := range tr.DrainChatActivity() {
			collected[m] = true
		}
		select {
		case <-done:
			for _, m := range tr.DrainChatActivity() {
				collected[m] = true
			}
			if len(collected) != writers*perWriter {
				t.Fatalf("collected %d members, want %d", len(collected), writers*perWriter)
			}
			return
		default:
		}
	}
}
