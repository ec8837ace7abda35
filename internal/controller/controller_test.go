package controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"trade-watch/internal/controller"
	"trade-watch/internal/feed"
	"trade-watch/internal/session"
	"trade-watch/internal/store"
	"trade-watch/internal/types"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type mockPrompter struct {
	answers  []bool
	confirms []string
	alerts   []string
}

func (m *mockPrompter) Confirm(msg string) bool {
	m.confirms = append(m.confirms, msg)
	if len(m.answers) == 0 {
		return false
	}
	a := m.answers[0]
	m.answers = m.answers[1:]
	return a
}

func (m *mockPrompter) Alert(msg string) { m.alerts = append(m.alerts, msg) }

type mockStore struct {
	saves int
}

var _ store.SessionStore = (*mockStore)(nil)

func (m *mockStore) Restore(ctx context.Context) (*session.State, bool, error) {
	return nil, false, nil
}

func (m *mockStore) Save(ctx context.Context, st *session.State) error {
	m.saves++
	return nil
}

func (m *mockStore) Close() error { return nil }

type fixture struct {
	ctl      *controller.Controller
	conn     *feed.Conn
	state    *session.State
	store    *mockStore
	prompter *mockPrompter
	srvConns chan *websocket.Conn
	srv      *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		state:    session.NewState(),
		store:    &mockStore{},
		prompter: &mockPrompter{},
		srvConns: make(chan *websocket.Conn, 4),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.srvConns <- c
	}))
	t.Cleanup(f.srv.Close)

	f.conn = feed.NewConn("ws" + strings.TrimPrefix(f.srv.URL, "http"))
	f.ctl = controller.New(f.state, f.conn, f.store, f.prompter)
	return f
}

func (f *fixture) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-f.srvConns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no websocket connection arrived")
		return nil
	}
}

// pump waits for the next feed event and hands it to the controller, the
// way the event loop does.
func (f *fixture) pump(t *testing.T) feed.Event {
	t.Helper()
	select {
	case ev := <-f.conn.Events():
		f.ctl.HandleEvent(context.Background(), ev)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no feed event arrived")
		return nil
	}
}

// open connects through the controller and processes the Opened event.
func (f *fixture) open(t *testing.T) *websocket.Conn {
	t.Helper()
	if err := f.ctl.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	srv := f.accept(t)
	if _, ok := f.pump(t).(feed.Opened); !ok {
		t.Fatal("expected Opened event")
	}
	return srv
}

type wireReq struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

func readReq(t *testing.T, srv *websocket.Conn) wireReq {
	t.Helper()
	srv.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := srv.ReadMessage()
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	var req wireReq
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return req
}

func expectNoFrame(t *testing.T, srv *websocket.Conn) {
	t.Helper()
	srv.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, raw, err := srv.ReadMessage(); err == nil {
		t.Fatalf("expected no frame, got %s", raw)
	}
}

func TestOpenResubscribesTrackedInOrder(t *testing.T) {
	f := newFixture(t)
	f.state.Tracked.Add("AAPL")
	f.state.Tracked.Add("MSFT")

	srv := f.open(t)

	first := readReq(t, srv)
	second := readReq(t, srv)
	if first != (wireReq{"subscribe", "AAPL"}) || second != (wireReq{"subscribe", "MSFT"}) {
		t.Errorf("expected subscribes in tracked order, got %+v then %+v", first, second)
	}
	expectNoFrame(t, srv)
}

func TestOpenResubscribesDuplicatesAsIs(t *testing.T) {
	f := newFixture(t)
	f.state.Tracked.Add("AAPL")
	f.state.Tracked.Add("AAPL")

	srv := f.open(t)

	for i := 0; i < 2; i++ {
		if req := readReq(t, srv); req != (wireReq{"subscribe", "AAPL"}) {
			t.Errorf("frame %d: expected duplicate subscribe, got %+v", i, req)
		}
	}
}

func TestTradeInsertsHistoryAndPersists(t *testing.T) {
	f := newFixture(t)
	f.state.Tracked.Add("AAPL")
	srv := f.open(t)
	readReq(t, srv) // resubscribe
	savesBefore := f.store.saves

	frame := `{"type":"trade","data":[{"s":"AAPL","p":101.5,"v":10,"t":1690000000000}]}`
	if err := srv.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.pump(t).(feed.Trades); !ok {
		t.Fatal("expected Trades event")
	}

	seq, ok := f.state.History.Get("AAPL")
	if !ok || len(seq) != 1 {
		t.Fatalf("expected one cached trade, got %v", seq)
	}
	want := types.TickerRecord{Symbol: "AAPL", Price: 101.5, Volume: 10, Time: 1690000000000}
	if seq[0] != want {
		t.Errorf("expected %+v, got %+v", want, seq[0])
	}
	if f.store.saves != savesBefore+1 {
		t.Errorf("expected exactly one persist for the batch, got %d", f.store.saves-savesBefore)
	}
}

func TestInvalidSymbolConfirmedRemovesLastAdded(t *testing.T) {
	f := newFixture(t)
	f.state.Tracked.Add("AAPL")
	f.state.Tracked.Add("ZZZZ")
	srv := f.open(t)
	readReq(t, srv)
	readReq(t, srv)

	f.prompter.answers = []bool{true}
	if err := srv.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","msg":"Invalid symbol"}`)); err != nil {
		t.Fatal(err)
	}
	f.pump(t)

	if len(f.prompter.confirms) != 1 {
		t.Fatalf("expected exactly one confirmation prompt, got %d", len(f.prompter.confirms))
	}
	if !strings.Contains(f.prompter.confirms[0], "ZZZZ") {
		t.Errorf("prompt should reference the last added symbol: %q", f.prompter.confirms[0])
	}
	if len(f.state.Tracked) != 1 || f.state.Tracked[0] != "AAPL" {
		t.Errorf("expected ZZZZ to be removed, tracked=%v", f.state.Tracked)
	}
	// The upstream already rejected the symbol: no unsubscribe goes out.
	expectNoFrame(t, srv)
}

func TestInvalidSymbolDeclinedKeepsTracked(t *testing.T) {
	f := newFixture(t)
	f.state.Tracked.Add("ZZZZ")
	srv := f.open(t)
	readReq(t, srv)

	f.prompter.answers = []bool{false}
	if err := srv.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","msg":"Invalid symbol"}`)); err != nil {
		t.Fatal(err)
	}
	f.pump(t)

	if len(f.state.Tracked) != 1 {
		t.Errorf("declined prompt must not remove anything, tracked=%v", f.state.Tracked)
	}
}

func TestOtherFeedErrorsLoggedOnly(t *testing.T) {
	f := newFixture(t)
	f.state.Tracked.Add("AAPL")
	srv := f.open(t)
	readReq(t, srv)

	if err := srv.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","msg":"too many requests"}`)); err != nil {
		t.Fatal(err)
	}
	f.pump(t)

	if len(f.prompter.confirms) != 0 {
		t.Errorf("unexpected prompt for a generic feed error: %v", f.prompter.confirms)
	}
	if len(f.state.Tracked) != 1 {
		t.Errorf("generic errors must not mutate the tracked list: %v", f.state.Tracked)
	}
}

func TestTrackSymbolEmptyIsNoop(t *testing.T) {
	f := newFixture(t)
	f.ctl.TrackSymbol(context.Background())

	if len(f.state.Tracked) != 0 {
		t.Errorf("tracking an empty pending symbol must be a no-op: %v", f.state.Tracked)
	}
	if f.store.saves != 0 {
		t.Errorf("a no-op must not persist, got %d saves", f.store.saves)
	}
}

func TestTrackSymbolSubscribesWhenConnected(t *testing.T) {
	f := newFixture(t)
	srv := f.open(t)

	f.ctl.UpdatePendingSymbol("AAPL")
	f.ctl.TrackSymbol(context.Background())

	if req := readReq(t, srv); req != (wireReq{"subscribe", "AAPL"}) {
		t.Errorf("expected an immediate subscribe, got %+v", req)
	}
	if f.ctl.PendingSymbol() != "" {
		t.Error("pending symbol should be cleared after tracking")
	}
	if f.store.saves == 0 {
		t.Error("tracking must persist the session")
	}
}

func TestTrackSymbolOfflineQueuesOnly(t *testing.T) {
	f := newFixture(t)

	f.ctl.UpdatePendingSymbol("AAPL")
	f.ctl.TrackSymbol(context.Background())

	if len(f.state.Tracked) != 1 {
		t.Fatalf("expected the symbol to be tracked, got %v", f.state.Tracked)
	}
	if f.store.saves != 1 {
		t.Errorf("expected one persist, got %d", f.store.saves)
	}
}

func TestUntrackLastOccurrenceUnsubscribesAndPurges(t *testing.T) {
	f := newFixture(t)
	f.state.Tracked.Add("AAPL")
	f.state.History.Insert(types.TickerRecord{Symbol: "AAPL", Price: 1, Volume: 1, Time: 1})
	srv := f.open(t)
	readReq(t, srv)

	if err := f.ctl.UntrackAt(context.Background(), 0); err != nil {
		t.Fatalf("untrack: %v", err)
	}

	if req := readReq(t, srv); req != (wireReq{"unsubscribe", "AAPL"}) {
		t.Errorf("expected an unsubscribe, got %+v", req)
	}
	if _, ok := f.state.History.Get("AAPL"); ok {
		t.Error("history must be purged with the last occurrence")
	}
}

func TestUntrackDuplicateKeepsSubscriptionAndHistory(t *testing.T) {
	f := newFixture(t)
	f.state.Tracked.Add("AAPL")
	f.state.Tracked.Add("AAPL")
	f.state.History.Insert(types.TickerRecord{Symbol: "AAPL", Price: 1, Volume: 1, Time: 1})
	srv := f.open(t)
	readReq(t, srv)
	readReq(t, srv)

	if err := f.ctl.UntrackAt(context.Background(), 0); err != nil {
		t.Fatalf("untrack: %v", err)
	}

	expectNoFrame(t, srv)
	if _, ok := f.state.History.Get("AAPL"); !ok {
		t.Error("history must survive while a duplicate remains tracked")
	}
}

func TestUntrackAtBadIndex(t *testing.T) {
	f := newFixture(t)
	if err := f.ctl.UntrackAt(context.Background(), 3); err == nil {
		t.Error("expected an error for an index with no entry")
	}
}

func TestConnectBadURLAlerts(t *testing.T) {
	conn := feed.NewConn("http://not-a-ws-url")
	prompter := &mockPrompter{}
	ctl := controller.New(session.NewState(), conn, nil, prompter)

	if err := ctl.Connect(context.Background()); err == nil {
		t.Fatal("expected a transport construction error")
	}
	if len(prompter.alerts) != 1 {
		t.Errorf("expected exactly one alert, got %v", prompter.alerts)
	}
	if ctl.ConnState() != feed.Disconnected {
		t.Errorf("expected Disconnected, got %v", ctl.ConnState())
	}
}

func TestClosedPromptsAndRetries(t *testing.T) {
	f := newFixture(t)
	srv := f.open(t)

	f.prompter.answers = []bool{true}
	srv.Close()

	if _, ok := f.pump(t).(feed.Closed); !ok {
		t.Fatal("expected Closed event")
	}
	if len(f.prompter.confirms) != 1 {
		t.Fatalf("expected a retry prompt, got %v", f.prompter.confirms)
	}

	// Confirming triggers a fresh dial.
	f.accept(t)
	if _, ok := f.pump(t).(feed.Opened); !ok {
		t.Fatal("expected the retry to open a new transport")
	}
}

func TestClosedDeclinedStaysDisconnected(t *testing.T) {
	f := newFixture(t)
	srv := f.open(t)

	f.prompter.answers = []bool{false}
	srv.Close()

	if _, ok := f.pump(t).(feed.Closed); !ok {
		t.Fatal("expected Closed event")
	}
	if f.ctl.ConnState() != feed.Disconnected {
		t.Errorf("expected Disconnected, got %v", f.ctl.ConnState())
	}
	select {
	case c := <-f.srvConns:
		c.Close()
		t.Error("declining the retry must not dial again")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestUpdateAPIKeyPersists(t *testing.T) {
	f := newFixture(t)
	f.ctl.UpdateAPIKey(context.Background(), "new-key")

	if f.state.APIKey != "new-key" {
		t.Errorf("API key not assigned: %q", f.state.APIKey)
	}
	if f.store.saves != 1 {
		t.Errorf("expected one persist, got %d", f.store.saves)
	}
}

func TestDisconnectIsSilent(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.ctl.Disconnect()

	if f.ctl.ConnState() != feed.Disconnected {
		t.Errorf("expected Disconnected, got %v", f.ctl.ConnState())
	}
	select {
	case ev := <-f.conn.Events():
		t.Errorf("expected no event after a user disconnect, got %#v", ev)
	case <-time.After(300 * time.Millisecond):
	}
	if len(f.prompter.confirms) != 0 {
		t.Errorf("a user disconnect must not prompt: %v", f.prompter.confirms)
	}
}
