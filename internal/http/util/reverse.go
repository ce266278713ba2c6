package util

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
)

// ErrUnknownRoute is returned for route names that were never registered.
var ErrUnknownRoute = errors.New("unknown route")

// Reverser turns named route patterns such as "/api/images/link/:alias/"
// into absolute URLs.
type Reverser struct {
	mu     sync.RWMutex
	base   string
	routes map[string]string
}

// NewReverser returns a Reverser producing URLs under baseURL.
func NewReverser(baseURL string) *Reverser {
	return &Reverser{
		base:   strings.TrimRight(baseURL, "/"),
		routes: make(map[string]string),
	}
}

// Name registers pattern under name.
func (r *Reverser) Name(name, pattern string) {
	r.mu.Lock()
	r.routes[name] = pattern
	r.mu.Unlock()
}

// Bind copies the path of each named fiber route into the reverser so the
// pattern is declared once, at registration.
func (r *Reverser) Bind(app *fiber.App, names ...string) error {
	for _, name := range names {
		route := app.GetRoute(name)
		if route.Path == "" {
			return fmt.Errorf("%w: %s", ErrUnknownRoute, name)
		}
		r.Name(name, route.Path)
	}
	return nil
}

// URL substitutes params into the named pattern. Every ":param" segment
// must be supplied.
func (r *Reverser) URL(name string, params map[string]string) (string, error) {
	r.mu.RLock()
	pattern, ok := r.routes[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRoute, name)
	}

	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, ":") {
			continue
		}
		v, ok := params[seg[1:]]
		if !ok || v == "" {
			return "", fmt.Errorf("route %s: missing parameter %s", name, seg[1:])
		}
		segments[i] = url.PathEscape(v)
	}
	return r.base + strings.Join(segments, "/"), nil
}
