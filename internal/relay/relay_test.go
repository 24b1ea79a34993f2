package relay

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefly-engineering/desklab/internal/docstore"
	"github.com/firefly-engineering/desklab/internal/metrics"
	"github.com/firefly-engineering/desklab/internal/registry"
	"github.com/firefly-engineering/desklab/internal/token"
)

// staticResolver resolves a fixed set of tokens.
type staticResolver map[string]int

func (s staticResolver) Resolve(_ context.Context, tok string) (token.Endpoint, bool) {
	p, ok := s[tok]
	if !ok {
		return token.Endpoint{}, false
	}
	return token.Endpoint{Host: "127.0.0.1", Port: p}, true
}

// echoBackend accepts TCP connections and echoes bytes back, prefixed by a
// greeting like a display server.
func echoBackend(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				_, _ = c.Write([]byte("RFB 003.008\n"))
				_, _ = io.Copy(c, c)
			}(conn)
		}
	}()
	return l.Addr().(*net.TCPAddr).Port
}

func newTestServer(t *testing.T, cfg *Config) *httptest.Server {
	t.Helper()
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server, tok string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + Path + "?token=" + tok
}

func TestRelayBridgesBytes(t *testing.T) {
	backendPort := echoBackend(t)
	ts := newTestServer(t, &Config{Resolver: staticResolver{"alice:c1": backendPort}})

	dialer := websocket.Dialer{Subprotocols: []string{Subprotocol}}
	conn, resp, err := dialer.Dial(wsURL(ts, "alice:c1"), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, Subprotocol, resp.Header.Get("Sec-WebSocket-Protocol"))

	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, mt)
	assert.Equal(t, "RFB 003.008\n", string(data))

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("hello")))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestRelayWithoutSubprotocol(t *testing.T) {
	backendPort := echoBackend(t)
	ts := newTestServer(t, &Config{Resolver: staticResolver{"alice:c1": backendPort}})

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "alice:c1"), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Empty(t, resp.Header.Get("Sec-WebSocket-Protocol"))
}

func TestRelayUnknownTokenIs404(t *testing.T) {
	ts := newTestServer(t, &Config{Resolver: staticResolver{}})

	for _, tok := range []string{"alice:nope", "garbage", ""} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, tok), nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}

func TestRelayBackendDownIs502(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	ts := newTestServer(t, &Config{Resolver: staticResolver{"alice:c1": closedPort}})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "alice:c1"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestRelayRateLimit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ts := newTestServer(t, &Config{
		Resolver:  staticResolver{},
		RateLimit: 1,
		Burst:     2,
		Clock:     clock,
	})

	status := func() int {
		resp, err := http.Get(ts.URL + Path + "?token=x:y")
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusNotFound, status())
	assert.Equal(t, http.StatusNotFound, status())
	assert.Equal(t, http.StatusTooManyRequests, status())

	clock.Advance(time.Second)
	assert.Equal(t, http.StatusNotFound, status())
}

func histogramSum(t *testing.T, h prometheus.Histogram) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleSum()
}

func TestRelayDurationUsesClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	backendPort := echoBackend(t)
	ts := newTestServer(t, &Config{
		Resolver: staticResolver{"alice:c1": backendPort},
		Clock:    clock,
	})
	before := histogramSum(t, metrics.RelayConnectionDuration)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "alice:c1"), nil)
	require.NoError(t, err)
	// The greeting arrives once the bridge is running.
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	clock.Advance(90 * time.Second)
	conn.Close()

	require.Eventually(t, func() bool {
		return histogramSum(t, metrics.RelayConnectionDuration)-before >= 90
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRelayOriginCheck(t *testing.T) {
	backendPort := echoBackend(t)
	ts := newTestServer(t, &Config{
		Resolver:       staticResolver{"alice:c1": backendPort},
		AllowedOrigins: []string{"desk.example.com"},
	})

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "alice:c1"), header)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"https://desk.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "alice:c1"), header)
	require.NoError(t, err)
	conn.Close()
}

// A relay sharing only the document store sees a destroyed session as gone.
func TestRelaySeesRegistryRemoval(t *testing.T) {
	ctx := context.Background()
	backendPort := echoBackend(t)

	store := docstore.NewMemoryStore()
	ref := docstore.MustParseRef("dockerlabconfig:container")
	writer := registry.New(store, ref)
	require.NoError(t, writer.Put(ctx, "alice", "c1", backendPort, ""))

	reader := registry.New(store, ref)
	ts := newTestServer(t, &Config{Resolver: token.NewResolver(reader)})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "alice:c1"), nil)
	require.NoError(t, err)
	conn.Close()

	_, err = writer.Remove(ctx, "alice", "c1")
	require.NoError(t, err)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "alice:c1"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLimiterCleanup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := newIPLimiter(1, 1, clock)

	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))
	assert.Equal(t, 2, l.size())

	clock.Advance(limiterIdle + limiterCleanup + time.Second)
	assert.True(t, l.allow("10.0.0.3"))
	assert.Equal(t, 1, l.size())
}

func TestNewRequiresResolver(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)
}
