package bridge

import "testing"

func TestRoomForDeterministic(t *testing.T) {
	if RoomFor("tw-9") != RoomFor("tw-9") {
		t.Error("expected identical room for identical SID")
	}
	if RoomFor("tw-9") != "queue-tw-9" {
		t.Errorf("expected queue-tw-9, got %s", RoomFor("tw-9"))
	}
}

func TestRoomForDistinctInputs(t *testing.T) {
	sids := []string{"CA1", "CA2", "CA10", "tw-9", "tw-90"}
	seen := make(map[string]string)
	for _, sid := range sids {
		room := RoomFor(sid)
		if prior, ok := seen[room]; ok {
			t.Errorf("collision: %s and %s both map to %s", prior, sid, room)
		}
		seen[room] = sid
	}
}

func TestCanonicalLegID(t *testing.T) {
	if got := CanonicalLegID("", "CA123", "CA456"); got != "CA123" {
		t.Errorf("expected first non-empty candidate, got %s", got)
	}
	if got := CanonicalLegID("", ""); got != "" {
		t.Errorf("expected empty result, got %s", got)
	}
	if got := CanonicalLegID("CA789"); got != "CA789" {
		t.Errorf("expected CA789, got %s", got)
	}
}
