package port

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
	"github.com/firefly-engineering/desklab/internal/logging"
)

// ProbeTCP reports whether port can be bound on all interfaces. The listener
// is closed immediately, so another process may take the port before the
// caller uses it.
func ProbeTCP(port int) bool {
	l, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

// Allocator hands out host ports for display sessions. A single cursor is
// shared by all callers and only moves forward, wrapping once per sweep.
type Allocator struct {
	mu     sync.Mutex
	from   int
	to     int
	cursor int

	// Probe reports whether a port is free. Defaults to ProbeTCP.
	Probe func(port int) bool
}

// NewAllocator creates an allocator over the inclusive range from..to.
func NewAllocator(from, to int) *Allocator {
	return &Allocator{
		from:   from,
		to:     to,
		cursor: from,
		Probe:  ProbeTCP,
	}
}

// Range returns the configured bounds.
func (a *Allocator) Range() (from, to int) {
	return a.from, a.to
}

// Next returns a free port. The cursor jumps forward to hint when it is
// behind it. Ports in taken are skipped without probing. After a full sweep
// of the range without success it returns a port allocation error.
func (a *Allocator) Next(hint int, taken map[int]bool) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if hint > a.cursor && hint <= a.to {
		a.cursor = hint
	}

	size := a.to - a.from + 1
	for i := 0; i < size; i++ {
		candidate := a.cursor
		if candidate > a.to || candidate < a.from {
			candidate = a.from
		}
		a.cursor = candidate + 1

		if taken[candidate] {
			continue
		}
		if a.Probe(candidate) {
			logging.Debug("allocated port", "port", candidate)
			return candidate, nil
		}
		logging.Debug("port in use", "port", candidate)
	}

	return 0, deskerrors.PortAllocationFailed(fmt.Errorf("no available ports in range %d-%d", a.from, a.to))
}
