package bandwidth

import (
	"strings"
	"sync"
)

// Default allowed response headers.
const (
	HeaderXCDN        = "x-cdn"
	HeaderContentType = "content-type"
)

// HeaderAllowList filters response headers down to an allow-listed
// set. Matching is case-insensitive. The list is mutex-guarded because
// tests extend it from a different goroutine than the one dispatching
// loads.
type HeaderAllowList struct {
	mu      sync.Mutex
	allowed map[string]struct{}
}

// NewHeaderAllowList creates an allow-list seeded with the default
// CDN-identifying and content-type headers plus any extras.
func NewHeaderAllowList(extra ...string) *HeaderAllowList {
	l := &HeaderAllowList{
		allowed: map[string]struct{}{
			HeaderXCDN:        {},
			HeaderContentType: {},
		},
	}
	l.Allow(extra...)
	return l
}

// Allow adds header names to the allow-list.
func (l *HeaderAllowList) Allow(names ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, name := range names {
		if name == "" {
			continue
		}
		l.allowed[strings.ToLower(name)] = struct{}{}
	}
}

// Allowed reports whether a header name passes the allow-list.
func (l *HeaderAllowList) Allowed(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.allowed[strings.ToLower(name)]
	return ok
}

// Filter returns the allow-listed subset of headers. Multi-valued
// headers are joined with ", " per RFC 2616 folding. A nil map in
// yields a nil map out.
func (l *HeaderAllowList) Filter(headers map[string][]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string)
	for name, values := range headers {
		if !l.Allowed(name) {
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}
