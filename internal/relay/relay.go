package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/firefly-engineering/desklab/internal/metrics"
	"github.com/firefly-engineering/desklab/internal/token"
)

const (
	// Path is the route noVNC connects to.
	Path = "/websockify"

	// Subprotocol is selected when the client offers it.
	Subprotocol = "binary"

	defaultDialTimeout = 5 * time.Second
	readBufferSize     = 32 * 1024
)

// Resolver maps a connection token to a backend endpoint.
type Resolver interface {
	Resolve(ctx context.Context, token string) (token.Endpoint, bool)
}

// Config holds relay configuration
type Config struct {
	// ListenAddr is the address the standalone server listens on (e.g., ":6080")
	ListenAddr string

	// Resolver is consulted once per inbound connection
	Resolver Resolver

	// RateLimit is the sustained new-connection rate per remote IP
	// (0 = unlimited)
	RateLimit float64

	// Burst is the number of connections allowed at once per remote IP
	Burst int

	// AllowedOrigins restricts the Origin header of upgrade requests.
	// Empty allows any origin.
	AllowedOrigins []string

	// DialTimeout bounds the backend TCP dial
	DialTimeout time.Duration

	// Logger for relay operations
	Logger *slog.Logger

	// Clock drives the rate limiter and connection timing. Defaults to the
	// real clock.
	Clock clockwork.Clock
}

// Relay bridges WebSocket clients to backend TCP display servers.
type Relay struct {
	config   *Config
	upgrader websocket.Upgrader
	limiter  *ipLimiter
	dialer   net.Dialer
}

// New creates a relay.
func New(cfg *Config) (*Relay, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("relay requires a token resolver")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}

	r := &Relay{
		config: cfg,
		dialer: net.Dialer{Timeout: cfg.DialTimeout},
	}
	r.upgrader = websocket.Upgrader{
		ReadBufferSize:  readBufferSize,
		WriteBufferSize: readBufferSize,
		Subprotocols:    []string{Subprotocol},
		CheckOrigin:     r.checkOrigin,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = newIPLimiter(cfg.RateLimit, burst, cfg.Clock)
	}
	return r, nil
}

// Register mounts the relay route on e.
func (r *Relay) Register(e *echo.Echo) {
	e.GET(Path, r.Handle)
}

func (r *Relay) checkOrigin(req *http.Request) bool {
	if len(r.config.AllowedOrigins) == 0 {
		return true
	}
	origin := req.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range r.config.AllowedOrigins {
		if allowed == origin || allowed == u.Host {
			return true
		}
	}
	return false
}

// Handle resolves the token, dials the backend and bridges the connection.
// Unknown tokens and unreachable backends fail before the upgrade.
func (r *Relay) Handle(c echo.Context) error {
	log := r.config.Logger
	ip := c.RealIP()

	if r.limiter != nil && !r.limiter.allow(ip) {
		log.Warn("relay rate limit exceeded", "remote", ip)
		metrics.RelayConnectionsTotal.WithLabelValues("rate_limited").Inc()
		return c.String(http.StatusTooManyRequests, "too many connections")
	}

	ctx := c.Request().Context()
	tok := c.QueryParam("token")
	endpoint, ok := r.config.Resolver.Resolve(ctx, tok)
	if !ok {
		log.Debug("relay token not resolved", "remote", ip)
		metrics.RelayConnectionsTotal.WithLabelValues("not_found").Inc()
		return c.String(http.StatusNotFound, "session not found")
	}

	backend, err := r.dialer.DialContext(ctx, "tcp", endpoint.Address())
	if err != nil {
		log.Warn("relay backend unreachable", "backend", endpoint.Address(), "error", err)
		metrics.RelayConnectionsTotal.WithLabelValues("dial_failed").Inc()
		return c.String(http.StatusBadGateway, "display unavailable")
	}

	ws, err := r.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the error response.
		_ = backend.Close()
		metrics.RelayConnectionsTotal.WithLabelValues("upgrade_failed").Inc()
		log.Debug("relay upgrade failed", "remote", ip, "error", err)
		return nil
	}

	metrics.RelayConnectionsTotal.WithLabelValues("ok").Inc()
	metrics.RelayConnectionsCurrent.Inc()
	start := r.config.Clock.Now()
	log.Info("relay connected", "remote", ip, "backend", endpoint.Address())

	err = bridge(ctx, ws, backend)

	metrics.RelayConnectionsCurrent.Dec()
	metrics.RelayConnectionDuration.Observe(r.config.Clock.Since(start).Seconds())
	log.Info("relay closed", "remote", ip, "backend", endpoint.Address(), "reason", err)
	return nil
}

// bridge copies WebSocket messages to the backend and backend bytes to the
// WebSocket as binary messages until either side closes. Both connections
// are closed on return.
func bridge(ctx context.Context, ws *websocket.Conn, backend net.Conn) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return err
			}
			if mt != websocket.BinaryMessage && mt != websocket.TextMessage {
				continue
			}
			if _, err := backend.Write(data); err != nil {
				return err
			}
			metrics.RelayBytesTotal.WithLabelValues("upstream").Add(float64(len(data)))
		}
	})

	g.Go(func() error {
		buf := make([]byte, readBufferSize)
		for {
			n, err := backend.Read(buf)
			if n > 0 {
				if werr := ws.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
					return werr
				}
				metrics.RelayBytesTotal.WithLabelValues("downstream").Add(float64(n))
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					_ = ws.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(time.Second))
				}
				return err
			}
		}
	})

	done := make(chan struct{})
	go func() {
		select {
		case <-gctx.Done():
		case <-done:
		}
		_ = ws.Close()
		_ = backend.Close()
	}()

	err := g.Wait()
	close(done)
	if errors.Is(err, io.EOF) || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return err
}
