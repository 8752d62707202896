package traffic

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes boundary traffic to a NATS subject tree so external
// inspectors can observe live sessions.
//
// Subjects follow widget.traffic.<direction>.<widget-id>.
type NATSSink struct {
	conn   *nats.Conn
	config NATSConfig
}

// NATSConfig holds NATS connection configuration for the traffic sink.
type NATSConfig struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string

	// Name is the client name for identification.
	Name string

	// Token for token-based auth.
	Token string

	// User and Password for basic auth.
	User     string
	Password string

	// SubjectPrefix defaults to "widget.traffic".
	SubjectPrefix string

	// ReconnectWait is the time to wait between reconnection attempts.
	ReconnectWait time.Duration

	// MaxReconnects is the maximum number of reconnection attempts.
	// -1 = unlimited
	MaxReconnects int

	// ConnectTimeout for initial connection.
	ConnectTimeout time.Duration
}

// DefaultNATSConfig returns configuration with sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            nats.DefaultURL,
		SubjectPrefix:  "widget.traffic",
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1, // Unlimited
		ConnectTimeout: 5 * time.Second,
	}
}

// NewNATSSink connects to NATS and returns a publishing sink.
func NewNATSSink(cfg NATSConfig) (*NATSSink, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultNATSConfig().SubjectPrefix
	}

	conn, err := nats.Connect(cfg.URL, buildNATSOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &NATSSink{conn: conn, config: cfg}, nil
}

// NewNATSSinkFromConn wraps an existing connection.
func NewNATSSinkFromConn(conn *nats.Conn, cfg NATSConfig) *NATSSink {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultNATSConfig().SubjectPrefix
	}
	return &NATSSink{conn: conn, config: cfg}
}

// buildNATSOptions constructs NATS connection options from config.
func buildNATSOptions(cfg NATSConfig) []nats.Option {
	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}

	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	return opts
}

// Log publishes the record. Failures are silently dropped; a traffic sink
// must never disturb the session it observes.
func (s *NATSSink) Log(rec Record) {
	if s.conn.IsClosed() {
		return
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return
	}

	subject := s.config.SubjectPrefix + "." + string(rec.Direction) + "." + rec.WidgetID
	s.conn.Publish(subject, data)
}

// Close shuts down the NATS connection.
func (s *NATSSink) Close() error {
	s.conn.Close()
	return nil
}
