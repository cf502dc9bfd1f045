package webhook

import (
	"strings"
	"testing"
)

func TestTwiMLSayAndHangup(t *testing.T) {
	doc, err := new(TwiML).Say("Goodbye.").Hangup().Render()
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(doc, "<Say>Goodbye.</Say>") {
		t.Errorf("missing Say verb: %s", doc)
	}
	if !strings.Contains(doc, "<Hangup") {
		t.Errorf("missing Hangup verb: %s", doc)
	}
	if !strings.HasPrefix(doc, "<?xml") {
		t.Errorf("missing xml header: %s", doc)
	}
}

func TestTwiMLConferenceAttributes(t *testing.T) {
	doc, err := new(TwiML).
		JoinConference("queue-CA1", false, false, "https://x.example/result").
		Render()
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	for _, want := range []string{
		`startConferenceOnEnter="false"`,
		`endConferenceOnExit="false"`,
		`action="https://x.example/result"`,
		">queue-CA1</Conference>",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("missing %q in %s", want, doc)
		}
	}
}

func TestTwiMLGatherDigits(t *testing.T) {
	doc, err := new(TwiML).
		GatherDigits("https://x.example/gather", 1, 10, "Press 1 for sales.").
		Render()
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	for _, want := range []string{
		`action="https://x.example/gather"`,
		`numDigits="1"`,
		`timeout="10"`,
		"<Say>Press 1 for sales.</Say>",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("missing %q in %s", want, doc)
		}
	}
}

func TestTwiMLXMLEscaping(t *testing.T) {
	doc, err := new(TwiML).Say("Fish & chips <now>").Render()
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(doc, "Fish &amp; chips &lt;now&gt;") {
		t.Errorf("special characters must be escaped: %s", doc)
	}
}
