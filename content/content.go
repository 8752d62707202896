// Package content defines the widget-content resolver collaborator.
//
// The bridge treats widget HTML as opaque: a Resolver stores the
// association between a tool call and its widget template, and hands back
// the rendered HTML plus CSP hints when the session is created. Remote
// resolvers are plain HTTP collaborators behind this interface; the
// in-memory implementation serves tests and single-process hosts.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/hostbridge/widgetkit/sandbox"
)

// ErrNotFound is returned when no content is stored for a tool call.
var ErrNotFound = errors.New("widget content not found")

// Content is resolved widget markup plus its sandbox hints.
type Content struct {
	HTML string
	CSP  sandbox.CSP
}

// StoreParams associates a tool call with its widget template.
type StoreParams struct {
	ServerID    string
	ToolID      string
	ToolName    string
	ResourceURI string
	ToolInput   json.RawMessage
	ToolOutput  json.RawMessage
	Theme       string
}

// Resolver stores and fetches widget content by tool-call id.
type Resolver interface {
	// Store records the widget template for a tool call.
	Store(ctx context.Context, params StoreParams) error

	// Fetch returns the content for a tool call, or ErrNotFound.
	Fetch(ctx context.Context, toolID string) (Content, error)
}

// MemoryResolver resolves content from registered templates, keyed by
// resource URI.
type MemoryResolver struct {
	mu        sync.RWMutex
	templates map[string]Content
	stored    map[string]Content
}

// NewMemoryResolver creates an empty resolver.
func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{
		templates: make(map[string]Content),
		stored:    make(map[string]Content),
	}
}

// RegisterTemplate makes a widget template available under a resource URI.
func (r *MemoryResolver) RegisterTemplate(resourceURI string, c Content) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[resourceURI] = c
}

// Store binds the template named by params.ResourceURI to params.ToolID.
func (r *MemoryResolver) Store(ctx context.Context, params StoreParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tmpl, ok := r.templates[params.ResourceURI]
	if !ok {
		return ErrNotFound
	}
	r.stored[params.ToolID] = tmpl
	return nil
}

// Fetch returns previously stored content.
func (r *MemoryResolver) Fetch(ctx context.Context, toolID string) (Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.stored[toolID]
	if !ok {
		return Content{}, ErrNotFound
	}
	return c, nil
}
