package sandbox

import (
	"strings"
	"testing"
	"time"

	"github.com/hostbridge/widgetkit/errors"
)

func TestSourceFiltering(t *testing.T) {
	h := newHandle("tok", 4, 0)

	owned := NewMemoryWindow()
	stranger := NewMemoryWindow()
	if err := h.AttachWindow(owned, false); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if !h.Owns(owned) {
		t.Error("attached window must be owned")
	}
	if h.Owns(stranger) {
		t.Error("foreign window must not be owned")
	}

	if h.Deliver(stranger, []byte(`{"type":"openai:resize"}`)) {
		t.Error("delivery from a foreign window must be dropped")
	}
	if !h.Deliver(owned, []byte(`{}`)) {
		t.Error("delivery from an owned window must pass")
	}

	select {
	case in := <-h.Recv():
		if in.Source != owned {
			t.Error("wrong source attribution")
		}
	default:
		t.Error("owned delivery never dispatched")
	}
}

func TestModalWindowPreferredForPosts(t *testing.T) {
	h := newHandle("tok", 4, 0)

	inline := NewMemoryWindow()
	modal := NewMemoryWindow()
	h.AttachWindow(inline, false)

	if err := h.Post([]byte("a")); err != nil {
		t.Fatalf("post inline: %v", err)
	}
	if got := <-inline.ToGuest(); string(got) != "a" {
		t.Errorf("inline got %q", got)
	}

	h.AttachWindow(modal, true)
	if err := h.Post([]byte("b")); err != nil {
		t.Fatalf("post modal: %v", err)
	}
	if got := <-modal.ToGuest(); string(got) != "b" {
		t.Errorf("modal got %q", got)
	}

	h.DetachWindow(modal)
	if err := h.Post([]byte("c")); err != nil {
		t.Fatalf("post after detach: %v", err)
	}
	if got := <-inline.ToGuest(); string(got) != "c" {
		t.Errorf("inline fallback got %q", got)
	}
}

func TestPostWithoutWindow(t *testing.T) {
	h := newHandle("tok", 4, 0)
	if err := h.Post([]byte("x")); err != ErrNotAttached {
		t.Errorf("expected ErrNotAttached, got %v", err)
	}
}

func TestLoadDeadline(t *testing.T) {
	h := newHandle("tok", 4, 10*time.Millisecond)

	select {
	case err := <-h.Err():
		if !errors.Is(err, errors.CodeSandboxFailed) {
			t.Errorf("expected sandbox-failed, got %v", err)
		}
		if err.Error() != "sandbox failed to load" {
			t.Errorf("message %q", err.Error())
		}
	case <-time.After(time.Second):
		t.Fatal("load deadline never fired")
	}
}

func TestLoadDeadlineCanceledByAttach(t *testing.T) {
	h := newHandle("tok", 4, 20*time.Millisecond)
	h.AttachWindow(NewMemoryWindow(), false)

	select {
	case err := <-h.Err():
		t.Fatalf("unexpected failure after attach: %v", err)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestAttachSignalNeverDropped(t *testing.T) {
	h := newHandle("tok", 4, 0)

	// Fill the signal buffer, then attach once more while nothing reads.
	h.AttachWindow(NewMemoryWindow(), false)
	h.AttachWindow(NewMemoryWindow(), false)

	third := NewMemoryWindow()
	attached := make(chan struct{})
	go func() {
		h.AttachWindow(third, false)
		close(attached)
	}()

	var last Window
	for i := 0; i < 3; i++ {
		select {
		case last = <-h.Attached():
		case <-time.After(2 * time.Second):
			t.Fatalf("attach signal %d lost", i+1)
		}
	}
	if last != third {
		t.Error("third window's signal missing")
	}
	select {
	case <-attached:
	case <-time.After(time.Second):
		t.Fatal("third attach never returned")
	}
}

func TestCloseUnblocksPendingAttach(t *testing.T) {
	h := newHandle("tok", 4, 0)
	h.AttachWindow(NewMemoryWindow(), false)
	h.AttachWindow(NewMemoryWindow(), false)

	done := make(chan error, 1)
	go func() { done <- h.AttachWindow(NewMemoryWindow(), false) }()

	time.Sleep(20 * time.Millisecond)
	h.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("attach stuck after close")
	}
}

func TestCloseReleasesWindows(t *testing.T) {
	h := newHandle("tok", 4, 0)
	w := NewMemoryWindow()
	h.AttachWindow(w, false)

	if err := h.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case <-h.Done():
	default:
		t.Error("done not signaled")
	}
	if h.Deliver(w, []byte("late")) {
		t.Error("delivery after close must be dropped")
	}
	if err := h.Post([]byte("late")); err != ErrClosed {
		t.Errorf("post after close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("double close: %v", err)
	}
}

func TestBuildDocument(t *testing.T) {
	doc := BuildDocument(`<div id="app">cocktails & more</div>`, CSP{
		ConnectDomains:  []string{"https://api.example.com"},
		ResourceDomains: []string{"https://cdn.example.com"},
	}, DefaultFlags(), "/sandbox/tok/ws")

	if !strings.Contains(doc, `sandbox="allow-scripts allow-forms allow-popups allow-popups-to-escape-sandbox"`) {
		t.Error("missing sandbox attribute")
	}
	if strings.Contains(doc, "allow-top-navigation") {
		t.Error("top navigation must never be granted")
	}
	if !strings.Contains(doc, "connect-src 'self' https://api.example.com") {
		t.Error("connect hint not applied")
	}
	if !strings.Contains(doc, "img-src 'self' data: https://cdn.example.com") {
		t.Error("resource hint not applied")
	}
	if !strings.Contains(doc, "cocktails &amp; more") {
		t.Error("widget markup not escaped into srcdoc")
	}
	if !strings.Contains(doc, `"/sandbox/tok/ws"`) {
		t.Error("relay path missing from harness script")
	}
}

func TestFlagsAttr(t *testing.T) {
	if got := (Flags{AllowScripts: true}).Attr(); got != "allow-scripts" {
		t.Errorf("scripts only: %q", got)
	}
	if got := (Flags{}).Attr(); got != "" {
		t.Errorf("no grants: %q", got)
	}
}
