package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/arbor-sh/arbor/internal/logging"
)

// cachedLookup is one TTL-bounded lsof result.
type cachedLookup struct {
	name      string
	found     bool
	fetchedAt time.Time
}

// LsofInspector identifies the process listening on a port by shelling
// out to lsof. Lookups are cached per port with a TTL; the cache is an
// explicit field of the inspector, cleared via Clear.
type LsofInspector struct {
	ttl     time.Duration
	timeout time.Duration

	mu    sync.Mutex
	cache map[int]cachedLookup
}

// NewLsofInspector creates an inspector with the given cache TTL and
// per-lookup timeout.
func NewLsofInspector(ttl, timeout time.Duration) *LsofInspector {
	return &LsofInspector{
		ttl:     ttl,
		timeout: timeout,
		cache:   make(map[int]cachedLookup),
	}
}

// ProcessOnPort returns the name of the process bound to port, if any.
func (l *LsofInspector) ProcessOnPort(ctx context.Context, port int) (string, bool) {
	l.mu.Lock()
	if c, ok := l.cache[port]; ok && time.Since(c.fetchedAt) < l.ttl {
		l.mu.Unlock()
		return c.name, c.found
	}
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "lsof", "-i", fmt.Sprintf(":%d", port), "-sTCP:LISTEN", "-Fc")
	output, err := cmd.Output()

	name := ""
	found := false
	if err == nil {
		for _, line := range strings.Split(string(output), "\n") {
			if strings.HasPrefix(line, "c") {
				name = strings.TrimPrefix(line, "c")
				found = true
				break
			}
		}
	} else {
		// lsof exits non-zero when nothing listens; that's a miss
		logging.Logger.Debug("lsof lookup found nothing", "port", port, "error", err)
	}

	l.mu.Lock()
	l.cache[port] = cachedLookup{name: name, found: found, fetchedAt: time.Now()}
	l.mu.Unlock()

	return name, found
}

// Clear drops all cached lookups.
func (l *LsofInspector) Clear() {
	l.mu.Lock()
	l.cache = make(map[int]cachedLookup)
	l.mu.Unlock()
}
