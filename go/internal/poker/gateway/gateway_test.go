package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/poker/coordinator"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func startGateway(t *testing.T, mutate ...func(*Config)) (*Service, *httptest.Server) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.CoordinatorConfig.Room = "test"
	cfg.CoordinatorConfig.SeedTickets = []models.Ticket{{ID: "PP-1", Title: "Login page"}}
	for _, m := range mutate {
		m(&cfg)
	}

	svc := NewService(cfg, clockwork.NewRealClock(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Start(ctx)
	}()

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
		assert.NoError(t, svc.Stop())
	})
	return svc, srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func join(t *testing.T, conn *websocket.Conn, name string) map[string]any {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join", "username": name}))
	return readUntil(t, conn, func(m map[string]any) bool { return m["type"] == "currentUser" })
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(map[string]any) bool) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func usersOfLength(n int) func(map[string]any) bool {
	return func(m map[string]any) bool {
		if m["type"] != "users" {
			return false
		}
		users, _ := m["users"].([]any)
		return len(users) == n
	}
}

func snapshot(t *testing.T, srv *httptest.Server) coordinator.Snapshot {
	t.Helper()
	resp, err := http.Get(srv.URL + "/api/session/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap coordinator.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

// participantCount reads the snapshot without failing the test, for use in
// polling conditions.
func participantCount(srv *httptest.Server) int {
	resp, err := http.Get(srv.URL + "/api/session/state")
	if err != nil {
		return -1
	}
	defer resp.Body.Close()
	var snap coordinator.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return -1
	}
	return len(snap.Participants)
}

func TestGateway_JoinBroadcastAndLeave(t *testing.T) {
	_, srv := startGateway(t)

	alice := dial(t, srv, nil)
	current := join(t, alice, "Alice")
	user := current["user"].(map[string]any)
	assert.Equal(t, "Alice", user["username"])
	assert.Equal(t, true, user["isHost"])

	bob := dial(t, srv, nil)
	join(t, bob, "Bob")
	readUntil(t, alice, usersOfLength(2))

	require.NoError(t, bob.WriteJSON(map[string]any{"type": "cast-vote", "points": "5"}))
	state := readUntil(t, alice, func(m map[string]any) bool { return m["type"] == "votingState" && m["voteCount"] == float64(1) })
	assert.Equal(t, float64(2), state["totalUsers"])

	require.NoError(t, bob.Close())
	readUntil(t, alice, usersOfLength(1))
}

func TestGateway_StateStatsAndHealth(t *testing.T) {
	svc, srv := startGateway(t)

	alice := dial(t, srv, nil)
	join(t, alice, "Alice")

	snap := snapshot(t, srv)
	assert.Equal(t, "test", snap.Room)
	require.Len(t, snap.Participants, 1)
	require.NotNil(t, snap.Host)
	assert.Equal(t, "Alice", snap.Host.Username)
	assert.Equal(t, 1, snap.TotalTickets)
	assert.Equal(t, 1, svc.GetStats().TotalConnections)

	resp, err := http.Get(srv.URL + "/ws/stats")
	require.NoError(t, err)
	var stats ConnectionStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	assert.Equal(t, 1, stats.TotalConnections)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, err = http.Post(srv.URL+"/api/session/state", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestGateway_OversizedFrameClosesConnection(t *testing.T) {
	_, srv := startGateway(t, func(cfg *Config) { cfg.ConnectionConfig.MaxMessageSize = 128 })

	alice := dial(t, srv, nil)
	join(t, alice, "Alice")

	big := map[string]any{"type": "join", "username": strings.Repeat("x", 512)}
	require.NoError(t, alice.WriteJSON(big))

	assert.Eventually(t, func() bool {
		return participantCount(srv) == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestGateway_IdleTimeout(t *testing.T) {
	_, srv := startGateway(t, func(cfg *Config) {
		cfg.CoordinatorConfig.Guard.IdleTimeout = 100 * time.Millisecond
	})

	alice := dial(t, srv, nil)
	join(t, alice, "Alice")

	msg := readUntil(t, alice, func(m map[string]any) bool { return m["type"] == "session-timeout" })
	assert.Equal(t, "Session expired due to inactivity", msg["message"])

	_, _, err := alice.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestGateway_UnansweredPingsCloseConnection(t *testing.T) {
	_, srv := startGateway(t, func(cfg *Config) {
		cfg.CoordinatorConfig.Guard.HeartbeatInterval = 50 * time.Millisecond
	})

	alice := dial(t, srv, nil)
	join(t, alice, "Alice")

	// The client stops reading, so pings are never answered.
	assert.Eventually(t, func() bool {
		return participantCount(srv) == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestGateway_RejectsDisallowedOrigin(t *testing.T) {
	_, srv := startGateway(t, func(cfg *Config) {
		cfg.ConnectionConfig.CheckOrigin = OriginChecker([]string{"https://poker.example.com"})
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := dial(t, srv, http.Header{"Origin": {"https://poker.example.com"}})
	join(t, conn, "Alice")
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "wildcard", allowed: []string{"*"}, origin: "https://anything.io", want: true},
		{name: "no origin header", allowed: []string{"https://a.io"}, origin: "", want: true},
		{name: "exact match", allowed: []string{"https://a.io"}, origin: "https://a.io", want: true},
		{name: "trailing slash and case", allowed: []string{"https://A.io/"}, origin: "https://a.io", want: true},
		{name: "different scheme", allowed: []string{"https://a.io"}, origin: "http://a.io", want: false},
		{name: "different host", allowed: []string{"https://a.io"}, origin: "https://b.io", want: false},
		{name: "garbage", allowed: []string{"https://a.io"}, origin: "::::", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws/session", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, OriginChecker(tt.allowed)(r))
		})
	}
}
