package netutil

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// maxPortRetries is the maximum number of attempts to find a port not already
// held in the registry. This guards against pathological cases where the
// kernel keeps handing back recently used ports.
const maxPortRetries = 20

// PortRegistry tracks ports handed out to server instances within this
// process. Asking the kernel for a free port (bind to port 0, read the
// assignment, close the listener) is inherently racy: between the close and
// the server start another caller could receive the same port. The registry
// removes that race for callers inside one process — two concurrently
// constructed instances always receive distinct ports.
//
// The race against unrelated OS processes remains. That is a documented
// limitation: allocation is performed once per instance with no retry, and
// the port is considered owned for the instance's entire lifetime.
type PortRegistry struct {
	mu    sync.Mutex
	ports map[int]struct{}
	log   *slog.Logger
}

// NewPortRegistry creates a new PortRegistry ready for use.
// If logger is nil, slog.Default() is used as a fallback.
func NewPortRegistry(logger *slog.Logger) *PortRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortRegistry{
		ports: make(map[int]struct{}),
		log:   logger,
	}
}

// reserve attempts to register a port in the registry.
// Returns true if the port was reserved, false if already taken.
func (r *PortRegistry) reserve(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ports[port]; ok {
		return false
	}
	r.ports[port] = struct{}{}
	return true
}

// Release removes a port from the registry, allowing it to be reused.
// Called when the owning instance closes.
func (r *PortRegistry) Release(port int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ports, port)
}

// Allocate obtains a free TCP port from the kernel and reserves it in the
// registry. The listener used to discover the port is closed before Allocate
// returns; the caller is expected to bind the port shortly afterwards and
// must call Release when the port is no longer owned.
func (r *PortRegistry) Allocate() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("resolve tcp address: %w", err)
	}

	for attempt := 0; attempt < maxPortRetries; attempt++ {
		l, err := net.ListenTCP("tcp", addr)
		if err != nil {
			return 0, fmt.Errorf("listen on tcp address: %w", err)
		}
		tcpAddr, ok := l.Addr().(*net.TCPAddr)
		if !ok {
			_ = l.Close()
			return 0, fmt.Errorf("unexpected address type: %T", l.Addr())
		}
		port := tcpAddr.Port

		if !r.reserve(port) {
			// Port already handed out to another instance; close and ask
			// the kernel for a different one.
			r.log.Debug("port already in registry, retrying", "port", port)
			_ = l.Close()
			continue
		}

		// Close the listener only after the registry reservation, so a
		// concurrent Allocate cannot observe the port as both free in the
		// kernel and free in the registry.
		if closeErr := l.Close(); closeErr != nil {
			r.log.Warn("close listener after port allocation", "port", port, "error", closeErr)
		}
		return port, nil
	}
	return 0, fmt.Errorf("allocate unique port: exhausted %d attempts", maxPortRetries)
}
