package session

import (
	"math/rand"
	"testing"
)

func TestOverlayExclusive(t *testing.T) {
	o := NewOverlay()

	demoted, granted := o.Request("a", ModeFullscreen)
	if !granted || demoted != "" {
		t.Fatalf("first grant: demoted=%q granted=%v", demoted, granted)
	}

	demoted, granted = o.Request("b", ModeFullscreen)
	if !granted {
		t.Fatal("second request must be granted")
	}
	if demoted != "a" {
		t.Errorf("expected a demoted, got %q", demoted)
	}

	owner, mode := o.Holder()
	if owner != "b" || mode != ModeFullscreen {
		t.Errorf("holder (%q, %s), want (b, fullscreen)", owner, mode)
	}
}

func TestOverlaySameOwnerSwitchesMode(t *testing.T) {
	o := NewOverlay()

	o.Request("a", ModePip)
	demoted, _ := o.Request("a", ModeFullscreen)
	if demoted != "" {
		t.Errorf("owner switching modes must not demote itself, got %q", demoted)
	}
}

func TestOverlayInlineAlwaysGranted(t *testing.T) {
	o := NewOverlay()

	o.Request("a", ModePip)

	// Inline from a non-holder leaves the slot alone.
	demoted, granted := o.Request("b", ModeInline)
	if !granted || demoted != "" {
		t.Errorf("inline: demoted=%q granted=%v", demoted, granted)
	}
	if owner, _ := o.Holder(); owner != "a" {
		t.Errorf("holder disturbed: %q", owner)
	}

	// Inline from the holder releases the slot.
	o.Request("a", ModeInline)
	if owner, mode := o.Holder(); owner != "" || mode != ModeInline {
		t.Errorf("slot not released: (%q, %s)", owner, mode)
	}
}

func TestOverlayRelease(t *testing.T) {
	o := NewOverlay()

	o.Request("a", ModeFullscreen)
	if o.Release("b") {
		t.Error("non-holder release must be a no-op")
	}
	if !o.Release("a") {
		t.Error("holder release must succeed")
	}
	if owner, _ := o.Holder(); owner != "" {
		t.Errorf("slot still held by %q", owner)
	}
}

func TestOverlayInvariantUnderRandomSequences(t *testing.T) {
	o := NewOverlay()
	rng := rand.New(rand.NewSource(1))
	ids := []string{"a", "b", "c", "d"}
	modes := []DisplayMode{ModeInline, ModePip, ModeFullscreen}

	holders := make(map[string]DisplayMode)
	for i := 0; i < 500; i++ {
		id := ids[rng.Intn(len(ids))]
		mode := modes[rng.Intn(len(modes))]

		demoted, granted := o.Request(id, mode)
		if !granted {
			t.Fatal("requests are always granted")
		}
		if demoted != "" {
			delete(holders, demoted)
		}
		if mode.IsOverlay() {
			holders[id] = mode
		} else {
			delete(holders, id)
		}

		if len(holders) > 1 {
			t.Fatalf("step %d: %d sessions hold an overlay mode", i, len(holders))
		}
	}
}
