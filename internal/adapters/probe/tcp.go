package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/arbor-sh/arbor/internal/logging"
)

// TCPProber checks port availability by attempting to bind the port on
// the loopback interface. A successful bind means nothing else holds it.
type TCPProber struct {
	timeout time.Duration
}

// NewTCPProber creates a prober with the given per-probe timeout.
func NewTCPProber(timeout time.Duration) *TCPProber {
	return &TCPProber{timeout: timeout}
}

// IsFree reports whether the port is unbound at the OS level.
func (p *TCPProber) IsFree(ctx context.Context, port int) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		logging.Logger.Debug("Port is bound", "port", port, "error", err)
		return false
	}
	l.Close()
	return true
}
