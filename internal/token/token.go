package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/firefly-engineering/desklab/internal/logging"
	"github.com/firefly-engineering/desklab/internal/registry"
)

// Endpoint is the backend a token resolves to.
type Endpoint struct {
	Host string
	Port int
}

// Address returns host:port for dialing.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Format builds the token a client presents for a session.
func Format(user, sessionID string) string {
	return user + ":" + sessionID
}

// Parse splits a token on its first colon. Both halves must be non-empty.
func Parse(token string) (user, sessionID string, err error) {
	user, sessionID, ok := strings.Cut(token, ":")
	if !ok || user == "" || sessionID == "" {
		return "", "", fmt.Errorf("malformed token")
	}
	return user, sessionID, nil
}

// Lookup is the registry read the resolver needs.
type Lookup interface {
	GetFresh(ctx context.Context, user, sessionID string) (registry.Session, error)
}

// Resolver maps tokens to backend endpoints. It holds no state of its own;
// every call reads the registry fresh.
type Resolver struct {
	lookup Lookup
	host   string
	log    *slog.Logger
}

// NewResolver creates a resolver whose endpoints are on the loopback address.
func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{
		lookup: lookup,
		host:   "127.0.0.1",
		log:    logging.Component("token"),
	}
}

// Resolve returns the endpoint for token. Malformed tokens, unknown sessions
// and store failures all yield false.
func (r *Resolver) Resolve(ctx context.Context, token string) (Endpoint, bool) {
	user, sessionID, err := Parse(token)
	if err != nil {
		r.log.Debug("rejected token", "error", err)
		return Endpoint{}, false
	}

	s, err := r.lookup.GetFresh(ctx, user, sessionID)
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			r.log.Warn("token lookup failed", "user", user, "session", sessionID, "error", err)
		}
		return Endpoint{}, false
	}

	return Endpoint{Host: r.host, Port: s.Port}, true
}
