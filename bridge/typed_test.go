package bridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hostbridge/widgetkit/capability"
	"github.com/hostbridge/widgetkit/content"
	"github.com/hostbridge/widgetkit/envelope"
	"github.com/hostbridge/widgetkit/sandbox"
	"github.com/hostbridge/widgetkit/session"
)

func TestTypedReadinessOnAttach(t *testing.T) {
	b := newTestBridge(t, capability.Set{}, Hooks{})
	w, win := createWidget(t, b, "call-1", envelope.TypedEnvelope)

	m := awaitType(t, win, "openai:set_globals")
	globals := m["globals"].(map[string]interface{})
	if globals["theme"] != "dark" {
		t.Errorf("theme %v", globals["theme"])
	}
	if globals["displayMode"] != "inline" {
		t.Errorf("displayMode %v", globals["displayMode"])
	}
	if globals["maxHeight"] != float64(600) {
		t.Errorf("maxHeight %v", globals["maxHeight"])
	}

	waitFor(t, func() bool { return w.Session().Lifecycle() == session.Ready }, "ready")
}

func TestTypedGlobalsCarryToolSnapshot(t *testing.T) {
	b := newTestBridge(t, capability.Set{}, Hooks{})

	resolver := b.resolver.(*content.MemoryResolver)
	if err := resolver.Store(context.Background(), content.StoreParams{
		ToolID:      "call-1",
		ResourceURI: testTemplate,
	}); err != nil {
		t.Fatalf("store content: %v", err)
	}

	w, err := b.CreateSession(context.Background(), CreateParams{
		ToolID:     "call-1",
		ServerID:   "srv",
		Protocol:   envelope.TypedEnvelope,
		ToolName:   "show_board",
		ToolInput:  json.RawMessage(`{"board":"b-1"}`),
		ToolOutput: json.RawMessage(`{"columns":4}`),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	win := sandbox.NewMemoryWindow()
	if err := w.Handle().AttachWindow(win, false); err != nil {
		t.Fatalf("attach: %v", err)
	}

	m := awaitType(t, win, "openai:set_globals")
	globals := m["globals"].(map[string]interface{})
	input, ok := globals["toolInput"].(map[string]interface{})
	if !ok || input["board"] != "b-1" {
		t.Errorf("toolInput %v", globals["toolInput"])
	}
	output, ok := globals["toolOutput"].(map[string]interface{})
	if !ok || output["columns"] != float64(4) {
		t.Errorf("toolOutput %v", globals["toolOutput"])
	}
}

func TestTypedCallToolRoundTrip(t *testing.T) {
	caps := capability.Set{
		CallTool: func(ctx context.Context, serverID, toolName string, params json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"ok":true}`), nil
		},
	}
	b := newTestBridge(t, caps, Hooks{})
	w, win := createWidget(t, b, "call-1", envelope.TypedEnvelope)

	deliver(t, w, win, `{"type":"openai:callTool","requestId":"r-9","toolName":"refresh","params":{}}`)
	m := awaitType(t, win, "openai:callTool:response")

	if m["requestId"] != "r-9" {
		t.Errorf("requestId not echoed: %v", m["requestId"])
	}
	result, ok := m["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("no result: %v", m)
	}
	if result["ok"] != true {
		t.Errorf("result %v", result)
	}
}

func TestTypedCallToolUnsupported(t *testing.T) {
	b := newTestBridge(t, capability.Set{}, Hooks{})
	w, win := createWidget(t, b, "call-1", envelope.TypedEnvelope)

	deliver(t, w, win, `{"type":"openai:callTool","requestId":"r-1","name":"refresh"}`)
	m := awaitType(t, win, "openai:callTool:response")

	if m["error"] != "Tool calls not supported" {
		t.Errorf("error %v", m["error"])
	}
	if w.Session().Lifecycle() == session.Errored {
		t.Error("recoverable error must not end the session")
	}
}

func TestTypedResizeClamped(t *testing.T) {
	heights := make(chan int, 4)
	b := newTestBridge(t, capability.Set{}, Hooks{
		HeightChanged: func(id string, h int) { heights <- h },
	})
	w, win := createWidget(t, b, "call-1", envelope.TypedEnvelope)

	deliver(t, w, win, `{"type":"openai:resize","height":20}`)
	select {
	case h := <-heights:
		// 20 is below the floor; the first change lands at the minimum
		// only if it differs from the seed, which it does not.
		t.Fatalf("unexpected height change %d", h)
	case <-time.After(50 * time.Millisecond):
	}

	deliver(t, w, win, `{"type":"openai:resize","height":9000}`)
	select {
	case h := <-heights:
		if h != 600 {
			t.Errorf("height %d, want 600", h)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("height change never applied")
	}
}

func TestTypedWidgetStatePersisted(t *testing.T) {
	b := newTestBridge(t, capability.Set{}, Hooks{})
	w, win := createWidget(t, b, "call-1", envelope.TypedEnvelope)

	deliver(t, w, win, `{"type":"openai:setWidgetState","widgetState":{"tab":"done"}}`)
	waitFor(t, func() bool {
		return string(w.Session().PersistedState()) == `{"tab":"done"}`
	}, "state persisted")
}

func TestTypedDisplayModeDemotion(t *testing.T) {
	modes := make(chan string, 8)
	b := newTestBridge(t, capability.Set{}, Hooks{
		DisplayModeChanged: func(id string, mode session.DisplayMode) {
			modes <- id + ":" + string(mode)
		},
	})
	wa, winA := createWidget(t, b, "call-a", envelope.TypedEnvelope)
	wb, winB := createWidget(t, b, "call-b", envelope.TypedEnvelope)

	// Drain the initial globals pushes.
	awaitType(t, winA, "openai:set_globals")
	awaitType(t, winB, "openai:set_globals")

	deliver(t, wa, winA, `{"type":"openai:requestDisplayMode","mode":"fullscreen"}`)
	m := awaitType(t, winA, "openai:set_globals")
	if m["globals"].(map[string]interface{})["displayMode"] != "fullscreen" {
		t.Fatalf("A not granted fullscreen: %v", m)
	}
	if holder, mode := b.OverlayHolder(); holder != "call-a" || mode != session.ModeFullscreen {
		t.Fatalf("overlay holder %s/%s", holder, mode)
	}

	deliver(t, wb, winB, `{"type":"openai:requestDisplayMode","mode":"fullscreen"}`)
	m = awaitType(t, winB, "openai:set_globals")
	if m["globals"].(map[string]interface{})["displayMode"] != "fullscreen" {
		t.Fatalf("B not granted fullscreen: %v", m)
	}

	// A's demotion was sent before B's grant, so its frame is already
	// queued.
	m = awaitType(t, winA, "openai:set_globals")
	if m["globals"].(map[string]interface{})["displayMode"] != "inline" {
		t.Fatalf("A not demoted: %v", m)
	}

	if holder, _ := b.OverlayHolder(); holder != "call-b" {
		t.Errorf("overlay holder %s, want call-b", holder)
	}
	if wa.Session().DisplayMode() != session.ModeInline {
		t.Error("A session mode not inline")
	}
	if wb.Session().DisplayMode() != session.ModeFullscreen {
		t.Error("B session mode not fullscreen")
	}

	// Hook saw both transitions.
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case s := <-modes:
			seen[s] = true
		case <-time.After(time.Second):
		}
	}
	if !seen["call-a:inline"] || !seen["call-b:fullscreen"] {
		t.Errorf("mode transitions %v", seen)
	}
}

func TestTypedHostInitiatedExit(t *testing.T) {
	b := newTestBridge(t, capability.Set{}, Hooks{})
	wa, winA := createWidget(t, b, "call-a", envelope.TypedEnvelope)
	awaitType(t, winA, "openai:set_globals")

	deliver(t, wa, winA, `{"type":"openai:requestDisplayMode","mode":"pip"}`)
	awaitType(t, winA, "openai:set_globals")

	// The user closes the overlay; the guest hears about it the same way
	// as a mode change it asked for.
	if err := b.SetDisplayMode("call-a", session.ModeInline); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	m := awaitType(t, winA, "openai:set_globals")
	if m["globals"].(map[string]interface{})["displayMode"] != "inline" {
		t.Fatalf("exit not pushed: %v", m)
	}
	if holder, _ := b.OverlayHolder(); holder != "" {
		t.Errorf("overlay still held by %s", holder)
	}
}

func TestTypedFollowup(t *testing.T) {
	texts := make(chan string, 1)
	caps := capability.Set{
		SendFollowUp: func(ctx context.Context, text string) error {
			texts <- text
			return nil
		},
	}
	b := newTestBridge(t, caps, Hooks{})
	w, win := createWidget(t, b, "call-1", envelope.TypedEnvelope)

	deliver(t, w, win, `{"type":"openai:sendFollowup","prompt":"show me more"}`)
	select {
	case text := <-texts:
		if text != "show me more" {
			t.Errorf("text %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("followup never forwarded")
	}
}

func TestTypedCollaboratorPanicFailsOnlySession(t *testing.T) {
	caps := capability.Set{
		CallTool: func(ctx context.Context, serverID, toolName string, params json.RawMessage) (json.RawMessage, error) {
			panic("collaborator bug")
		},
	}
	b := newTestBridge(t, caps, Hooks{})
	w, win := createWidget(t, b, "call-1", envelope.TypedEnvelope)

	deliver(t, w, win, `{"type":"openai:callTool","requestId":"r-1","toolName":"boom"}`)

	waitFor(t, func() bool { return w.Session().Lifecycle() == session.Errored }, "session errored")
	if _, ok := b.Widget("call-1"); ok {
		t.Error("panicked session must be deregistered")
	}
}

func TestTypedModalRequested(t *testing.T) {
	requests := make(chan string, 1)
	b := newTestBridge(t, capability.Set{}, Hooks{
		ModalRequested: func(id string) { requests <- id },
	})
	w, win := createWidget(t, b, "call-1", envelope.TypedEnvelope)

	deliver(t, w, win, `{"type":"openai:requestModal"}`)
	select {
	case id := <-requests:
		if id != "call-1" {
			t.Errorf("id %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("modal request never surfaced")
	}
}
