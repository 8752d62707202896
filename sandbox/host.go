package sandbox

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hostbridge/widgetkit/logging"
)

// HostConfig holds sandbox host configuration.
type HostConfig struct {
	// LoadTimeout is how long a guest has to connect before the sandbox
	// is declared failed. 0 disables the deadline.
	LoadTimeout time.Duration

	// WriteTimeout for posts to guest windows.
	WriteTimeout time.Duration

	// MaxMessageSize limits incoming frame size.
	MaxMessageSize int64

	// PingInterval for keepalive pings (0 = disabled).
	PingInterval time.Duration

	// RecvBufferSize is the per-handle inbound channel buffer.
	RecvBufferSize int
}

// DefaultHostConfig returns configuration with sensible defaults.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		LoadTimeout:    15 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 1024 * 1024, // 1MB
		PingInterval:   30 * time.Second,
		RecvBufferSize: 64,
	}
}

// Host serves sandbox harness documents and terminates their WebSocket
// relays. It implements http.Handler for the /sandbox/ subtree.
type Host struct {
	config   HostConfig
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	handles map[string]*Handle
	docs    map[string]string
}

// NewHost creates a sandbox host. logger may be nil.
func NewHost(cfg HostConfig, logger *logging.Logger) *Host {
	if logger == nil {
		logger = logging.New()
	}
	if cfg.RecvBufferSize <= 0 {
		cfg.RecvBufferSize = DefaultHostConfig().RecvBufferSize
	}
	return &Host{
		config: cfg,
		logger: logger.WithComponent("sandbox"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The harness document is same-origin with the ws endpoint;
			// the one-time token is the authentication.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		handles: make(map[string]*Handle),
		docs:    make(map[string]string),
	}
}

// CreateSandbox builds the harness document for the given widget HTML and
// registers a handle awaiting its guest connection.
func (h *Host) CreateSandbox(widgetHTML string, csp CSP, flags Flags) (*Handle, error) {
	token := uuid.New().String()
	handle := newHandle(token, h.config.RecvBufferSize, h.config.LoadTimeout)
	doc := BuildDocument(widgetHTML, csp, flags, "/sandbox/"+token+"/ws")

	h.mu.Lock()
	h.handles[token] = handle
	h.docs[token] = doc
	h.mu.Unlock()

	return handle, nil
}

// Release forgets a sandbox. Called after the handle is closed.
func (h *Host) Release(handle *Handle) {
	h.mu.Lock()
	delete(h.handles, handle.Token())
	delete(h.docs, handle.Token())
	h.mu.Unlock()
}

// DocumentURL returns the path the harness document is served at.
func (h *Host) DocumentURL(handle *Handle) string {
	return "/sandbox/" + handle.Token()
}

// ServeHTTP serves /sandbox/{token} (the harness document) and
// /sandbox/{token}/ws (the guest relay, "?window=modal" for the second
// window of an overlay presentation).
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutPrefix(r.URL.Path, "/sandbox/")
	if !ok || rest == "" {
		http.NotFound(w, r)
		return
	}

	token, tail, _ := strings.Cut(rest, "/")

	h.mu.Lock()
	handle := h.handles[token]
	doc := h.docs[token]
	h.mu.Unlock()

	if handle == nil {
		http.NotFound(w, r)
		return
	}

	switch tail {
	case "":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Referrer-Policy", "no-referrer")
		fmt.Fprint(w, doc)
	case "ws":
		h.serveWindow(w, r, handle)
	default:
		http.NotFound(w, r)
	}
}

// serveWindow upgrades one guest window connection and pumps its frames
// into the handle.
func (h *Host) serveWindow(w http.ResponseWriter, r *http.Request, handle *Handle) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	win := &wsWindow{conn: conn, writeTimeout: h.config.WriteTimeout}
	modal := r.URL.Query().Get("window") == "modal"
	if err := handle.AttachWindow(win, modal); err != nil {
		conn.Close()
		return
	}

	if h.config.MaxMessageSize > 0 {
		conn.SetReadLimit(h.config.MaxMessageSize)
	}
	if h.config.PingInterval > 0 {
		go win.pingLoop(h.config.PingInterval, handle)
	}

	go func() {
		defer func() {
			handle.DetachWindow(win)
			win.Close()
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			handle.Deliver(win, data)
		}
	}()
}

// wsWindow is a Window backed by one WebSocket connection.
type wsWindow struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
	closeOnce    sync.Once
}

// Post writes one text frame to the guest.
func (w *wsWindow) Post(data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.writeTimeout > 0 {
		w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying connection.
func (w *wsWindow) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.writeMu.Lock()
		w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		w.writeMu.Unlock()
		err = w.conn.Close()
	})
	return err
}

// pingLoop sends keepalive pings until the window detaches.
func (w *wsWindow) pingLoop(interval time.Duration, handle *Handle) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.writeMu.Lock()
			err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
			w.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-handle.Done():
			return
		}
	}
}
