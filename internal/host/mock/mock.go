// Package mock provides a recording implementation of host.Capabilities.
package mock

import (
	"sync"

	"github.com/voxdesk/voxdesk/internal/host"
)

// Compile-time interface assertion.
var _ host.Capabilities = (*Host)(nil)

// Host records every capability invocation and answers with scripted strings.
type Host struct {
	mu sync.Mutex

	// OpenResult, CloseResult, and ListResult are returned by the
	// corresponding methods. Zero values return plain defaults.
	OpenResult  string
	CloseResult string
	ListResult  string

	opens  []string
	closes int
	lists  int
}

func (h *Host) OpenApp(name string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opens = append(h.opens, name)
	if h.OpenResult != "" {
		return h.OpenResult
	}
	return "Opened " + name + "."
}

func (h *Host) CloseActiveApp() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	if h.CloseResult != "" {
		return h.CloseResult
	}
	return "Closed."
}

func (h *Host) ListApps() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lists++
	if h.ListResult != "" {
		return h.ListResult
	}
	return "No applications are installed."
}

// Opens returns a copy of the app names passed to OpenApp.
func (h *Host) Opens() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.opens))
	copy(out, h.opens)
	return out
}

// Closes reports how many times CloseActiveApp was called.
func (h *Host) Closes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

// Lists reports how many times ListApps was called.
func (h *Host) Lists() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lists
}
