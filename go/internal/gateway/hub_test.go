package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/chainwatch/go/internal/models"
	"github.com/mcdev12/chainwatch/go/internal/schedule"
)

type staticSchedule struct {
	mu     sync.Mutex
	window schedule.Window
	err    error
	calls  int
}

func (s *staticSchedule) CurrentWindow(ctx context.Context) (schedule.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.window, s.err
}

// blockingSchedule hangs until the caller's context ends while block is set
type blockingSchedule struct {
	block atomic.Bool
}

func (s *blockingSchedule) CurrentWindow(ctx context.Context) (schedule.Window, error) {
	if s.block.Load() {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return schedule.Window{}, nil
}

type countingMetrics struct {
	NoOpMetrics
	mu      sync.Mutex
	dropped map[string]int
	stale   int
	opened  int
	closed  int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{dropped: make(map[string]int)}
}

func (m *countingMetrics) MessageDropped(reason string) {
	m.mu.Lock()
	m.dropped[reason]++
	m.mu.Unlock()
}

func (m *countingMetrics) StaleConnection() {
	m.mu.Lock()
	m.stale++
	m.mu.Unlock()
}

func (m *countingMetrics) ConnectionOpened(bool) {
	m.mu.Lock()
	m.opened++
	m.mu.Unlock()
}

func (m *countingMetrics) ConnectionClosed(bool) {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
}

type received struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestHub(t *testing.T) (*Hub, *staticSchedule, *countingMetrics) {
	t.Helper()
	slot := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	source := &staticSchedule{window: schedule.Window{
		{Start: slot, Watchers: []schedule.WatcherRef{{ID: 1, Name: "Alice"}}},
	}}
	metrics := newCountingMetrics()
	return NewHub(NewConnectionManager(DefaultConnectionConfig()), source, metrics), source, metrics
}

// testConn builds a connection without a socket; tests read its Send channel directly
func testConn(hub *Hub, session *models.Session, buffer int) *Connection {
	return &Connection{
		ID:      uuid.New().String(),
		Session: session,
		Send:    make(chan []byte, buffer),
		hub:     hub,
		config:  hub.manager.Config(),
	}
}

func member(userID, factionID int64, name string) *models.Session {
	return &models.Session{UserID: userID, Username: name, FactionID: factionID}
}

func drain(t *testing.T, c *Connection) []received {
	t.Helper()
	var out []received
	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				return out
			}
			var r received
			if err := json.Unmarshal(msg, &r); err != nil {
				t.Fatalf("invalid message %s: %v", msg, err)
			}
			out = append(out, r)
		default:
			return out
		}
	}
}

func types(msgs []received) []MessageType {
	out := make([]MessageType, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func presenceOf(t *testing.T, msg received) map[string]PresenceView {
	t.Helper()
	if msg.Type != MessageTypeEyeStates {
		t.Fatalf("expected eye_states, got %s", msg.Type)
	}
	var views map[string]PresenceView
	if err := json.Unmarshal(msg.Data, &views); err != nil {
		t.Fatalf("decode eye_states: %v", err)
	}
	return views
}

func TestHub_OpenSendsSnapshotsInOrder(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()

	hub.weapons.Replace(7, json.RawMessage(`[{"id":1}]`))
	a := testConn(hub, member(1, 7, "alice"), 16)
	hub.Open(ctx, a)

	msgs := drain(t, a)
	want := []MessageType{MessageTypeSchedule, MessageTypeEyeStates, MessageTypeWarlordWeapons}
	if len(msgs) != len(want) {
		t.Fatalf("got %v, want %v", types(msgs), want)
	}
	for i := range want {
		if msgs[i].Type != want[i] {
			t.Fatalf("message %d = %s, want %s", i, msgs[i].Type, want[i])
		}
	}

	var sched struct {
		Slots map[string][]schedule.WatcherRef `json:"slots"`
	}
	if err := json.Unmarshal(msgs[0].Data, &sched); err != nil {
		t.Fatalf("decode schedule: %v", err)
	}
	if got := sched.Slots["2024-01-01T10:00:00.000Z"]; len(got) != 1 || got[0].Name != "Alice" {
		t.Errorf("unexpected schedule payload: %s", msgs[0].Data)
	}

	views := presenceOf(t, msgs[1])
	if views["1"].State != EyeStateNotWatching || views["1"].Energy != nil {
		t.Errorf("unexpected presence: %+v", views)
	}
	if string(msgs[2].Data) != `[{"id":1}]` {
		t.Errorf("weapons payload = %s", msgs[2].Data)
	}
}

func TestHub_FactionScopedPresence(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()

	a := testConn(hub, member(1, 7, "alice"), 16)
	b := testConn(hub, member(2, 7, "bob"), 16)
	c := testConn(hub, member(3, 9, "carol"), 16)

	hub.Open(ctx, a)
	hub.Open(ctx, c)
	drain(t, a)
	drain(t, c)

	hub.Open(ctx, b)

	// A hears that B joined, C hears nothing
	msgs := drain(t, a)
	if len(msgs) != 1 {
		t.Fatalf("A got %v, want one eye_states", types(msgs))
	}
	if views := presenceOf(t, msgs[0]); len(views) != 2 {
		t.Errorf("A sees %d members, want 2", len(views))
	}
	if msgs := drain(t, c); len(msgs) != 0 {
		t.Errorf("C got faction 7 traffic: %v", types(msgs))
	}

	// B's own snapshot lists both members and B gets no extra broadcast
	msgs = drain(t, b)
	if len(msgs) != 2 || msgs[1].Type != MessageTypeEyeStates {
		t.Fatalf("B got %v", types(msgs))
	}
	if views := presenceOf(t, msgs[1]); len(views) != 2 {
		t.Errorf("B sees %d members, want 2", len(views))
	}

	hub.HandleMessage(a, []byte(`{"type":"eye_state","state":"watching"}`))

	for name, conn := range map[string]*Connection{"A": a, "B": b} {
		msgs := drain(t, conn)
		if len(msgs) != 1 {
			t.Fatalf("%s got %v after eye_state", name, types(msgs))
		}
		views := presenceOf(t, msgs[0])
		if views["1"].State != EyeStateWatching || views["2"].State != EyeStateNotWatching {
			t.Errorf("%s sees %+v", name, views)
		}
	}
	if msgs := drain(t, c); len(msgs) != 0 {
		t.Errorf("C got faction 7 traffic: %v", types(msgs))
	}
}

func TestHub_EnergyAndStateMerge(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()

	a := testConn(hub, member(1, 7, "alice"), 16)
	hub.Open(ctx, a)
	drain(t, a)

	hub.HandleMessage(a, []byte(`{"type":"energy","current":100,"max":150}`))
	hub.HandleMessage(a, []byte(`{"type":"eye_state","state":"watching_idle"}`))

	msgs := drain(t, a)
	if len(msgs) != 2 {
		t.Fatalf("got %v", types(msgs))
	}
	views := presenceOf(t, msgs[1])
	alice := views["1"]
	if alice.State != EyeStateWatchingIdle {
		t.Errorf("State = %s", alice.State)
	}
	if alice.Energy == nil || alice.Energy.Current != 100 || alice.Energy.Max != 150 {
		t.Errorf("Energy = %+v", alice.Energy)
	}
}

func TestHub_DropsInvalidMessages(t *testing.T) {
	hub, _, metrics := newTestHub(t)
	ctx := context.Background()

	a := testConn(hub, member(1, 7, "alice"), 16)
	hub.Open(ctx, a)
	drain(t, a)

	for _, raw := range []string{
		`not json`,
		`{"type":"eye_state","state":"sleeping"}`,
		`{"type":"energy","current":5}`,
		`{"type":"energy","current":"5","max":10}`,
		`{"type":"warlord_weapons","data":{"id":1}}`,
		`{"type":"warlord_weapons","data":null}`,
		`{"type":"warlord_weapons"}`,
		`{"type":"dance"}`,
	} {
		hub.HandleMessage(a, []byte(raw))
	}

	if msgs := drain(t, a); len(msgs) != 0 {
		t.Errorf("invalid messages produced broadcasts: %v", types(msgs))
	}
	entry, _ := hub.presence.Get(1)
	if entry.State != EyeStateNotWatching || entry.Energy != nil {
		t.Errorf("presence changed: %+v", entry)
	}
	if _, ok := hub.weapons.Get(7); ok {
		t.Error("weapon cache changed")
	}
	if metrics.dropped[DropUnknownType] != 1 || metrics.dropped[DropInvalidState] != 1 {
		t.Errorf("unexpected drop counts: %v", metrics.dropped)
	}
}

func TestHub_WarlordWeapons(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()

	a := testConn(hub, member(1, 7, "alice"), 16)
	b := testConn(hub, member(2, 7, "bob"), 16)
	c := testConn(hub, member(3, 9, "carol"), 16)
	for _, conn := range []*Connection{a, b, c} {
		hub.Open(ctx, conn)
	}
	for _, conn := range []*Connection{a, b, c} {
		drain(t, conn)
	}

	hub.HandleMessage(a, []byte(`{"type":"warlord_weapons","data":[{"id":1,"name":"Rifle"}]}`))

	for name, conn := range map[string]*Connection{"A": a, "B": b} {
		msgs := drain(t, conn)
		if len(msgs) != 1 || msgs[0].Type != MessageTypeWarlordWeapons {
			t.Fatalf("%s got %v", name, types(msgs))
		}
		if string(msgs[0].Data) != `[{"id":1,"name":"Rifle"}]` {
			t.Errorf("%s payload = %s", name, msgs[0].Data)
		}
	}
	if msgs := drain(t, c); len(msgs) != 0 {
		t.Errorf("C got %v", types(msgs))
	}

	// a later member of faction 7 gets the snapshot on open
	d := testConn(hub, member(4, 7, "dave"), 16)
	hub.Open(ctx, d)
	msgs := drain(t, d)
	if len(msgs) != 3 || msgs[2].Type != MessageTypeWarlordWeapons {
		t.Fatalf("D got %v", types(msgs))
	}

	// faction 9 still has none
	e := testConn(hub, member(5, 9, "erin"), 16)
	hub.Open(ctx, e)
	if msgs := drain(t, e); len(msgs) != 2 {
		t.Errorf("E got %v", types(msgs))
	}
}

func TestHub_CloseRemovesPresence(t *testing.T) {
	hub, _, metrics := newTestHub(t)
	ctx := context.Background()

	a := testConn(hub, member(1, 7, "alice"), 16)
	b := testConn(hub, member(2, 7, "bob"), 16)
	hub.Open(ctx, a)
	hub.Open(ctx, b)
	drain(t, a)
	drain(t, b)

	hub.Close(b)
	hub.Close(b)

	msgs := drain(t, a)
	if len(msgs) != 1 {
		t.Fatalf("A got %v, want one eye_states", types(msgs))
	}
	views := presenceOf(t, msgs[0])
	if _, ok := views["2"]; ok || len(views) != 1 {
		t.Errorf("B still present: %+v", views)
	}
	if _, ok := <-b.Send; ok {
		t.Error("closed connection's send channel still open")
	}
	if metrics.closed != 1 {
		t.Errorf("ConnectionClosed called %d times, want 1", metrics.closed)
	}
	if stats := hub.manager.Stats(); stats.Authenticated != 1 {
		t.Errorf("stats = %+v", stats)
	}

	// a closed connection never receives again
	hub.BroadcastPresence(7)
	if b.enqueue([]byte("x")) {
		t.Error("enqueue succeeded on closed connection")
	}
}

func TestHub_MultiTabLastDisconnectWins(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()

	tab1 := testConn(hub, member(1, 7, "alice"), 16)
	tab2 := testConn(hub, member(1, 7, "alice"), 16)
	hub.Open(ctx, tab1)
	hub.Open(ctx, tab2)

	hub.Close(tab1)
	if _, ok := hub.presence.Get(1); ok {
		t.Fatal("entry should be removed when any tab disconnects")
	}

	// the remaining tab recreates the entry on its next update
	hub.HandleMessage(tab2, []byte(`{"type":"eye_state","state":"watching"}`))
	entry, ok := hub.presence.Get(1)
	if !ok || entry.State != EyeStateWatching {
		t.Fatalf("entry not recreated: %+v", entry)
	}
}

func TestHub_AnonymousConnection(t *testing.T) {
	hub, _, metrics := newTestHub(t)
	ctx := context.Background()

	a := testConn(hub, member(1, 7, "alice"), 16)
	anon := testConn(hub, nil, 16)
	hub.Open(ctx, a)
	hub.Open(ctx, anon)
	drain(t, a)

	msgs := drain(t, anon)
	if len(msgs) != 2 || msgs[0].Type != MessageTypeSchedule {
		t.Fatalf("anonymous got %v", types(msgs))
	}
	if views := presenceOf(t, msgs[1]); len(views) != 0 {
		t.Errorf("anonymous presence snapshot not empty: %s", msgs[1].Data)
	}

	hub.HandleMessage(anon, []byte(`{"type":"eye_state","state":"watching"}`))
	hub.HandleMessage(anon, []byte(`{"type":"warlord_weapons","data":[]}`))
	if metrics.dropped[DropAnonymous] != 2 {
		t.Errorf("anonymous drops = %d", metrics.dropped[DropAnonymous])
	}
	if hub.presence.Len() != 1 {
		t.Errorf("presence Len = %d, want 1", hub.presence.Len())
	}

	hub.HandleMessage(a, []byte(`{"type":"eye_state","state":"watching"}`))
	hub.ScheduleChanged(ctx, 7)
	if msgs := drain(t, anon); len(msgs) != 0 {
		t.Errorf("anonymous got faction traffic: %v", types(msgs))
	}

	hub.Close(anon)
	if stats := hub.manager.Stats(); stats.Anonymous != 0 || stats.Authenticated != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if msgs := drain(t, a); len(msgs) != 2 {
		t.Errorf("A got %v, anonymous close should not broadcast", types(msgs))
	}
}

func TestHub_ScheduleChangedScopedToFaction(t *testing.T) {
	hub, source, _ := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())

	a := testConn(hub, member(1, 7, "alice"), 16)
	c := testConn(hub, member(3, 9, "carol"), 16)
	hub.Open(ctx, a)
	hub.Open(ctx, c)
	drain(t, a)
	drain(t, c)

	// an already cancelled request still pushes
	cancel()
	hub.ScheduleChanged(ctx, 7)

	msgs := drain(t, a)
	if len(msgs) != 1 || msgs[0].Type != MessageTypeSchedule {
		t.Fatalf("A got %v", types(msgs))
	}
	if msgs := drain(t, c); len(msgs) != 0 {
		t.Errorf("C got %v", types(msgs))
	}

	source.mu.Lock()
	source.err = errors.New("db down")
	source.mu.Unlock()
	hub.ScheduleChanged(context.Background(), 7)
	if msgs := drain(t, a); len(msgs) != 0 {
		t.Errorf("failed read still pushed: %v", types(msgs))
	}
}

func TestHub_ScheduleChangedGivesUpOnHungRead(t *testing.T) {
	config := DefaultConnectionConfig()
	config.WriteTimeout = 50 * time.Millisecond
	source := &blockingSchedule{}
	hub := NewHub(NewConnectionManager(config), source, nil)
	ctx := context.Background()

	a := testConn(hub, member(1, 7, "alice"), 16)
	hub.Open(ctx, a)
	drain(t, a)

	source.block.Store(true)
	done := make(chan struct{})
	go func() {
		hub.ScheduleChanged(ctx, 7)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ScheduleChanged still blocked after the write timeout")
	}
	if msgs := drain(t, a); len(msgs) != 0 {
		t.Errorf("timed out read still pushed: %v", types(msgs))
	}

	// opens are not stuck behind the abandoned push
	source.block.Store(false)
	b := testConn(hub, member(2, 7, "bob"), 16)
	hub.Open(ctx, b)
	if msgs := drain(t, b); len(msgs) == 0 || msgs[0].Type != MessageTypeSchedule {
		t.Errorf("open after timeout got %v", types(msgs))
	}
}

func TestHub_BroadcastWeaponsDeliversOnly(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()

	a := testConn(hub, member(1, 7, "alice"), 16)
	c := testConn(hub, member(3, 9, "carol"), 16)
	hub.Open(ctx, a)
	hub.Open(ctx, c)
	drain(t, a)
	drain(t, c)

	hub.BroadcastWeapons(7, json.RawMessage(`[{"id":5,"name":"Blade"}]`))

	msgs := drain(t, a)
	if len(msgs) != 1 || msgs[0].Type != MessageTypeWarlordWeapons || string(msgs[0].Data) != `[{"id":5,"name":"Blade"}]` {
		t.Fatalf("A got %v", types(msgs))
	}
	if msgs := drain(t, c); len(msgs) != 0 {
		t.Errorf("other faction got %v", types(msgs))
	}
	if _, ok := hub.weapons.Get(7); ok {
		t.Error("BroadcastWeapons should not store the payload")
	}
}

func TestHub_StaleConnectionSkipped(t *testing.T) {
	hub, _, metrics := newTestHub(t)
	ctx := context.Background()

	// room for exactly the open snapshots
	slow := testConn(hub, member(1, 7, "alice"), 2)
	fast := testConn(hub, member(2, 7, "bob"), 16)
	hub.Open(ctx, slow)
	hub.Open(ctx, fast)
	drain(t, fast)

	hub.HandleMessage(fast, []byte(`{"type":"eye_state","state":"watching"}`))

	if metrics.stale == 0 {
		t.Fatal("stale connection not counted")
	}
	if msgs := drain(t, fast); len(msgs) != 1 {
		t.Errorf("fast connection got %v", types(msgs))
	}
	if slow.enqueue([]byte("x")) {
		t.Error("stale connection still accepts messages")
	}
}

func TestHub_ConcurrentMessagesKeepOrder(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()

	a := testConn(hub, member(1, 7, "alice"), 1024)
	b := testConn(hub, member(2, 7, "bob"), 1024)
	hub.Open(ctx, a)
	hub.Open(ctx, b)
	drain(t, a)
	drain(t, b)

	var wg sync.WaitGroup
	for i, conn := range []*Connection{a, b} {
		wg.Add(1)
		go func(conn *Connection, i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				state := EyeStateWatching
				if (i+j)%2 == 0 {
					state = EyeStateWatchingIdle
				}
				hub.HandleMessage(conn, []byte(`{"type":"eye_state","state":"`+string(state)+`"}`))
			}
		}(conn, i)
	}
	wg.Wait()

	msgsA, msgsB := drain(t, a), drain(t, b)
	if len(msgsA) != 100 || len(msgsB) != 100 {
		t.Fatalf("got %d and %d messages, want 100 each", len(msgsA), len(msgsB))
	}
	for i := range msgsA {
		if string(msgsA[i].Data) != string(msgsB[i].Data) {
			t.Fatalf("members observed different order at %d: %s vs %s", i, msgsA[i].Data, msgsB[i].Data)
		}
	}
}
