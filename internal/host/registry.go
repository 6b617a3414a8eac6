package host

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
)

// Compile-time interface assertion.
var _ Capabilities = (*Registry)(nil)

const (
	// defaultFuzzyThreshold is the minimum Jaro-Winkler score for a
	// non-exact app-name match. App names arrive through speech-to-text, so
	// "chrome" may show up as "chrome browser" or "crome".
	defaultFuzzyThreshold = 0.80
)

// Option configures a [Registry] during construction.
type Option func(*Registry)

// WithFuzzyThreshold overrides the minimum similarity score accepted when
// resolving a spoken app name. Default: 0.80.
func WithFuzzyThreshold(threshold float64) Option {
	return func(r *Registry) { r.fuzzyThreshold = threshold }
}

// Registry is an in-memory implementation of [Capabilities]: a fixed
// inventory of applications and a single "active" slot tracking which one is
// in the foreground. Open/close callbacks let the embedding desktop shell
// observe state changes.
//
// All exported methods are safe for concurrent use.
type Registry struct {
	fuzzyThreshold float64

	mu     sync.Mutex
	apps   []string
	active string

	// onOpen/onClose are optional shell hooks, invoked with the resolved
	// app name while the registry lock is NOT held.
	onOpen  func(name string)
	onClose func(name string)
}

// WithOpenHook registers a callback invoked after an app is opened.
func WithOpenHook(fn func(name string)) Option {
	return func(r *Registry) { r.onOpen = fn }
}

// WithCloseHook registers a callback invoked after the active app is closed.
func WithCloseHook(fn func(name string)) Option {
	return func(r *Registry) { r.onClose = fn }
}

// NewRegistry creates a Registry over the given app inventory.
func NewRegistry(apps []string, opts ...Option) *Registry {
	r := &Registry{
		fuzzyThreshold: defaultFuzzyThreshold,
		apps:           append([]string(nil), apps...),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OpenApp resolves name against the inventory (exact first, then phonetic /
// fuzzy) and makes the match the active app.
func (r *Registry) OpenApp(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "I need an application name to open."
	}

	r.mu.Lock()
	resolved, ok := r.resolveLocked(name)
	if !ok {
		r.mu.Unlock()
		return fmt.Sprintf("There is no application called %q installed.", name)
	}
	r.active = resolved
	hook := r.onOpen
	r.mu.Unlock()

	if hook != nil {
		hook(resolved)
	}
	slog.Debug("host: opened app", "requested", name, "resolved", resolved)
	return fmt.Sprintf("Opened %s.", resolved)
}

// CloseActiveApp closes the foreground app, if any.
func (r *Registry) CloseActiveApp() string {
	r.mu.Lock()
	closed := r.active
	r.active = ""
	hook := r.onClose
	r.mu.Unlock()

	if closed == "" {
		return "Nothing is open right now."
	}
	if hook != nil {
		hook(closed)
	}
	slog.Debug("host: closed app", "app", closed)
	return fmt.Sprintf("Closed %s.", closed)
}

// ListApps enumerates the inventory in a spoken-friendly sentence.
func (r *Registry) ListApps() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.apps) == 0 {
		return "No applications are installed."
	}
	return fmt.Sprintf("Available applications: %s.", strings.Join(r.apps, ", "))
}

// ActiveApp reports the name of the foreground app, or "" if none.
func (r *Registry) ActiveApp() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// resolveLocked matches a spoken name against the inventory. Exact
// (case-insensitive) matches win; otherwise the phonetically closest app
// above the fuzzy threshold is chosen.
func (r *Registry) resolveLocked(name string) (string, bool) {
	for _, app := range r.apps {
		if strings.EqualFold(app, name) {
			return app, true
		}
	}

	nameP, nameS := matchr.DoubleMetaphone(name)
	best := ""
	bestScore := 0.0
	for _, app := range r.apps {
		score := matchr.JaroWinkler(strings.ToLower(name), strings.ToLower(app), false)

		// A shared metaphone code means the words sound alike even when the
		// transcription spelled them differently; give those a boost.
		appP, appS := matchr.DoubleMetaphone(app)
		if nameP != "" && (nameP == appP || nameP == appS) ||
			nameS != "" && (nameS == appP || nameS == appS) {
			score += 0.1
		}

		if score > bestScore {
			best, bestScore = app, score
		}
	}

	if bestScore >= r.fuzzyThreshold {
		return best, true
	}
	return "", false
}
