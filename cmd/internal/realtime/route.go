package realtime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var paramNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Params holds integer route parameters by name.
type Params map[string]int64

// Int returns the named parameter.
func (p Params) Int(name string) (int64, bool) {
	v, ok := p[name]
	return v, ok
}

// RouteMatch is the result of a successful Match.
type RouteMatch struct {
	Pattern string
	Handler *ConnHandler
	Params  Params
}

type routeEntry struct {
	pattern string
	re      *regexp.Regexp
	names   []string
	handler *ConnHandler
}

// RouteTable maps upgrade paths to connection handlers. Patterns are compiled
// at registration; Match never compiles.
type RouteTable struct {
	mu      sync.RWMutex
	entries []routeEntry
	frozen  bool
}

func NewRouteTable() *RouteTable { return &RouteTable{} }

// Register adds pattern in match order. ":name" segments match one or more digits.
func (t *RouteTable) Register(pattern string, h *ConnHandler) error {
	if h == nil {
		return fmt.Errorf("%w: nil handler for %q", ErrInvalidPattern, pattern)
	}
	re, names, err := compilePattern(pattern)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return ErrRoutesFrozen
	}
	t.entries = append(t.entries, routeEntry{pattern: pattern, re: re, names: names, handler: h})
	return nil
}

// Freeze rejects further registrations.
func (t *RouteTable) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

// Match returns the first registered entry matching the whole path.
func (t *RouteTable) Match(path string) (RouteMatch, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, e := range t.entries {
		sub := e.re.FindStringSubmatch(path)
		if sub == nil {
			continue
		}
		params, ok := parseParams(e.names, sub[1:])
		if !ok {
			continue
		}
		return RouteMatch{Pattern: e.pattern, Handler: e.handler, Params: params}, true
	}
	return RouteMatch{}, false
}


func parseParams(names, values []string) (Params, bool) {
	params := make(Params, len(names))
	for i, name := range names {
		n, err := strconv.ParseInt(values[i], 10, 64)
		if err != nil {
			return nil, false
		}
		params[name] = n
	}
	return params, true
}

func compilePattern(pattern string) (*regexp.Regexp, []string, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, nil, fmt.Errorf("%w: %q must start with /", ErrInvalidPattern, pattern)
	}

	segments := strings.Split(pattern, "/")
	var (
		b     strings.Builder
		names []string
		seen  = make(map[string]struct{})
	)
	b.WriteString("^")
	for i, seg := range segments {
		if i > 0 {
			b.WriteString("/")
		}
		name, isParam := strings.CutPrefix(seg, ":")
		if !isParam {
			b.WriteString(regexp.QuoteMeta(seg))
			continue
		}
		if !paramNameRe.MatchString(name) {
			return nil, nil, fmt.Errorf("%w: bad parameter %q in %q", ErrInvalidPattern, seg, pattern)
		}
		if _, dup := seen[name]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate parameter %q in %q", ErrInvalidPattern, name, pattern)
		}
		seen[name] = struct{}{}
		names = append(names, name)
		b.WriteString("([0-9]+)")
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return re, names, nil
}
