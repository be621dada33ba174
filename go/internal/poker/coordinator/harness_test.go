package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/poker/events"
	"github.com/mcdev12/planningpoker/go/internal/poker/guard"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

type frame struct {
	to  string // empty for broadcasts
	msg map[string]any
}

type fakeTransport struct {
	mu     sync.Mutex
	frames []frame
	closed []string
	pings  chan string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{pings: make(chan string, 16)}
}

func decodeFrame(payload []byte) map[string]any {
	var msg map[string]any
	if err := json.Unmarshal(payload, &msg); err != nil {
		panic(err)
	}
	return msg
}

func (f *fakeTransport) Send(connectionID string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame{to: connectionID, msg: decodeFrame(payload)})
}

func (f *fakeTransport) Broadcast(payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame{msg: decodeFrame(payload)})
}

func (f *fakeTransport) Ping(connectionID string) error {
	f.pings <- connectionID
	return nil
}

func (f *fakeTransport) Close(connectionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, connectionID)
}

// received returns every frame connectionID would have seen, in order.
func (f *fakeTransport) received(connectionID string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, fr := range f.frames {
		if fr.to == "" || fr.to == connectionID {
			out = append(out, fr.msg)
		}
	}
	return out
}

// targeted returns the frames sent to connectionID alone.
func (f *fakeTransport) targeted(connectionID string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, fr := range f.frames {
		if fr.to == connectionID {
			out = append(out, fr.msg)
		}
	}
	return out
}

func (f *fakeTransport) broadcasts() []map[string]any {
	return f.targeted("")
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

func (f *fakeTransport) closedConnections() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.closed...)
}

func ofType(frames []map[string]any, typ string) []map[string]any {
	var out []map[string]any
	for _, m := range frames {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func types(frames []map[string]any) []string {
	out := make([]string, 0, len(frames))
	for _, m := range frames {
		out = append(out, m["type"].(string))
	}
	return out
}

type estimateUpdate struct {
	ticketID string
	value    float64
	cfg      models.SourceConfig
}

type fakeSource struct {
	mu        sync.Mutex
	tickets   []models.Ticket
	fetchErr  error
	updateErr error
	filters   []models.TicketFilters
	updates   []estimateUpdate
}

func (s *fakeSource) FetchTickets(_ context.Context, _ models.SourceConfig, filters models.TicketFilters) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, filters)
	return s.tickets, s.fetchErr
}

func (s *fakeSource) UpdateEstimate(_ context.Context, cfg models.SourceConfig, ticketID string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, estimateUpdate{ticketID: ticketID, value: value, cfg: cfg})
	return s.updateErr
}

func (s *fakeSource) recordedUpdates() []estimateUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]estimateUpdate(nil), s.updates...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) typesPublished() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	t         *testing.T
	clock     *clockwork.FakeClock
	c         *Coordinator
	transport *fakeTransport
	source    *fakeSource
	publisher *recordingPublisher
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Room = "test"
	cfg.Guard = guard.Config{
		RateWindow:        time.Minute,
		MaxMessages:       100,
		HeartbeatInterval: time.Hour,
		IdleTimeout:       2 * time.Hour,
	}
	cfg.SourceTimeout = time.Second
	return cfg
}

var seedTickets = []models.Ticket{
	{ID: "PP-1", Title: "Login page"},
	{ID: "PP-2", Title: "Password reset"},
	{ID: "PP-3", Title: "Audit log"},
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()
	cfg := testConfig()
	cfg.SeedTickets = seedTickets
	for _, m := range mutate {
		m(&cfg)
	}
	h := &harness{
		t:         t,
		clock:     clockwork.NewFakeClock(),
		transport: newFakeTransport(),
		source:    &fakeSource{},
		publisher: &recordingPublisher{},
	}
	h.c = New(cfg, h.clock, h.transport, h.source, h.publisher)
	t.Cleanup(func() {
		for _, cc := range h.c.conns {
			cc.monitor.Stop()
		}
	})
	return h
}

func (h *harness) connect(id string) {
	h.c.dispatch(connectedEvent{connectionID: id})
}

func (h *harness) send(id string, msg map[string]any) {
	h.t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(h.t, err)
	h.c.dispatch(messageEvent{connectionID: id, data: data})
}

func (h *harness) join(id, name string) string {
	h.t.Helper()
	h.connect(id)
	h.send(id, map[string]any{"type": "join", "username": name})
	cc, ok := h.c.conns[id]
	require.True(h.t, ok)
	require.True(h.t, cc.Joined)
	return cc.ParticipantID
}

func (h *harness) disconnect(id string) {
	h.c.dispatch(closedEvent{connectionID: id})
}

// next waits for the next event posted off the dispatcher and dispatches it.
func (h *harness) next() event {
	h.t.Helper()
	ev := h.take()
	h.c.dispatch(ev)
	return ev
}

// take waits for the next event posted off the dispatcher without
// dispatching it.
func (h *harness) take() event {
	h.t.Helper()
	select {
	case ev := <-h.c.events:
		return ev
	case <-time.After(time.Second):
		h.t.Fatal("timed out waiting for coordinator event")
	}
	return nil
}

func (h *harness) configureSource(id string) {
	h.send(id, map[string]any{
		"type": "set-ticket-source-config",
		"config": map[string]any{
			"domain":     "acme.atlassian.net",
			"email":      "host@acme.io",
			"apiToken":   "secret",
			"projectKey": "PP",
		},
	})
}

func (h *harness) lastError(id string) string {
	h.t.Helper()
	errs := ofType(h.transport.targeted(id), "error")
	require.NotEmpty(h.t, errs, "expected an error frame for %s", id)
	return errs[len(errs)-1]["message"].(string)
}

var errBoom = errors.New("boom")
