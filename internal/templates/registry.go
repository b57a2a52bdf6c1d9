package templates

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownStyle is returned when a style tag is neither a built-in nor a
// registered custom style.
var ErrUnknownStyle = errors.New("unknown reasoning style")

// Registry maps reasoning-style tags to system-prompt templates. Custom
// styles may be registered at any time and shadow built-ins with the same
// tag. Reads vastly outnumber writes, so a single RWMutex guards the custom
// map; the lock is never held across I/O.
type Registry struct {
	mu     sync.RWMutex
	custom map[string]string
}

func NewRegistry() *Registry {
	return &Registry{custom: make(map[string]string)}
}

// Resolve returns the template text for a style tag.
func (r *Registry) Resolve(style string) (string, error) {
	r.mu.RLock()
	text, ok := r.custom[style]
	r.mu.RUnlock()
	if ok {
		return text, nil
	}
	if text, ok := builtins[style]; ok {
		return text, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStyle, style)
}

// Register adds or overwrites a custom style. The change is visible to all
// subsequent Resolve calls.
func (r *Registry) Register(style, template string) {
	r.mu.Lock()
	r.custom[style] = template
	r.mu.Unlock()
}

// Styles returns all known style tags, sorted.
func (r *Registry) Styles() []string {
	r.mu.RLock()
	tags := make([]string, 0, len(builtins)+len(r.custom))
	for tag := range builtins {
		tags = append(tags, tag)
	}
	for tag := range r.custom {
		if _, builtin := builtins[tag]; !builtin {
			tags = append(tags, tag)
		}
	}
	r.mu.RUnlock()
	sort.Strings(tags)
	return tags
}
