package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mcdev12/draftslots/go/internal/draft/events"
	"github.com/mcdev12/draftslots/go/internal/draft/store"
	"github.com/mcdev12/draftslots/go/internal/models"
)

type gatewayFixture struct {
	srv       *httptest.Server
	store     *store.Memory
	sessionID string
}

func newGatewayFixture(t *testing.T, cfg Config) *gatewayFixture {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemory(nil)
	sessionID, err := st.CreateOrJoinSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateOrJoinSession: %v", err)
	}
	for _, client := range []string{"client-a", "client-b"} {
		if _, _, err := store.ClaimSeat(ctx, st, sessionID, client); err != nil {
			t.Fatalf("ClaimSeat(%s): %v", client, err)
		}
	}

	svc := NewService(cfg, st, nil)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		_ = svc.Start(runCtx)
		close(done)
	}()

	r := chi.NewRouter()
	svc.RegisterRoutes(r)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
		_ = st.Close()
	})
	return &gatewayFixture{srv: srv, store: st, sessionID: sessionID}
}

func (f *gatewayFixture) dial(t *testing.T, sessionID, clientID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/" + sessionID + "?client_id=" + clientID
	return websocket.DefaultDialer.Dial(url, nil)
}

func (f *gatewayFixture) connect(t *testing.T, clientID string) *websocket.Conn {
	t.Helper()
	conn, _, err := f.dial(t, f.sessionID, clientID)
	if err != nil {
		t.Fatalf("dial %s: %v", clientID, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) *DraftEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev DraftEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return &ev
}

// readUntil reads events until match returns true, failing on reject.
func readUntil(t *testing.T, conn *websocket.Conn, match, reject func(*DraftEvent) bool) *DraftEvent {
	t.Helper()
	for {
		ev := readEvent(t, conn)
		if reject != nil && reject(ev) {
			t.Fatalf("unexpected %s event", ev.Type)
		}
		if match(ev) {
			return ev
		}
	}
}

func ofType(et EventType) func(*DraftEvent) bool {
	return func(ev *DraftEvent) bool { return ev.Type == et }
}

func (f *gatewayFixture) waitPresence(t *testing.T, seat models.Seat, want bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		doc, err := f.store.ReadSnapshot(context.Background(), f.sessionID)
		if err != nil {
			t.Fatalf("ReadSnapshot: %v", err)
		}
		if doc.Presence[seat] == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("presence of seat %d never became %v", seat, want)
}

func TestGateway_StreamsDerivedEvents(t *testing.T) {
	f := newGatewayFixture(t, DefaultConfig())
	a := f.connect(t, "client-a")

	first := readEvent(t, a)
	if first.Type != EventTypeSnapshot {
		t.Fatalf("first event = %s, want Snapshot", first.Type)
	}
	var snap events.SnapshotPayload
	if err := json.Unmarshal(first.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Snapshot.SessionID != f.sessionID {
		t.Errorf("snapshot session = %q", snap.Snapshot.SessionID)
	}
	f.waitPresence(t, models.SeatOne, true)

	_, err := f.store.WriteSnapshot(context.Background(), f.sessionID, models.Patch{
		Seats: map[models.Seat]models.PlayerRecordUpdate{
			models.SeatOne: {Name: models.Ptr("Ann")},
			models.SeatTwo: {Name: models.Ptr("Bo")},
		},
		Shared: &models.SharedStateUpdate{Phase: models.Ptr(models.PhaseDrafting)},
	})
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	ev := readUntil(t, a, ofType(EventTypeDraftStarted), nil)
	payload, err := ParseEventPayload(ev)
	if err != nil {
		t.Fatalf("ParseEventPayload: %v", err)
	}
	started := payload.(events.DraftStartedPayload)
	if started.SeatOne != "Ann" || started.SeatTwo != "Bo" {
		t.Errorf("DraftStarted = %+v", started)
	}
}

func TestGateway_AnnouncementsSkipSender(t *testing.T) {
	f := newGatewayFixture(t, DefaultConfig())
	a := f.connect(t, "client-a")
	readEvent(t, a)
	b := f.connect(t, "client-b")
	readEvent(t, b)
	f.waitPresence(t, models.SeatTwo, true)

	if err := a.WriteJSON(map[string]string{"type": "Announcement", "text": "  rolling the Chiefs  "}); err != nil {
		t.Fatalf("write announcement: %v", err)
	}

	ev := readUntil(t, b, ofType(EventTypeAnnouncement), nil)
	payload, _ := ParseEventPayload(ev)
	ann := payload.(events.AnnouncementPayload)
	if ann.Seat != models.SeatOne || ann.Text != "rolling the Chiefs" {
		t.Errorf("announcement = %+v", ann)
	}

	// Anything a receives after this write was queued after the announcement.
	doc, err := f.store.WriteSnapshot(context.Background(), f.sessionID, models.SeatPatch(models.SeatOne, models.PlayerRecordUpdate{
		AvatarRef: models.Ptr("avatar-3"),
	}))
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	readUntil(t, a, func(ev *DraftEvent) bool {
		return ev.Type == EventTypeSnapshot && ev.Version >= doc.Version
	}, ofType(EventTypeAnnouncement))
}

func TestGateway_PresenceFollowsSockets(t *testing.T) {
	f := newGatewayFixture(t, DefaultConfig())
	b := f.connect(t, "client-b")
	readEvent(t, b)
	f.waitPresence(t, models.SeatTwo, true)

	_ = b.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = b.Close()
	f.waitPresence(t, models.SeatTwo, false)
}

func TestGateway_UnknownSession(t *testing.T) {
	f := newGatewayFixture(t, DefaultConfig())

	_, resp, err := f.dial(t, "NOSUCH", "client-a")
	if err == nil {
		t.Fatal("dial to a missing session succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("response = %+v, want 404", resp)
	}
}

func TestStateHandler_GetSessionState(t *testing.T) {
	f := newGatewayFixture(t, DefaultConfig())
	a := f.connect(t, "client-a")
	readEvent(t, a)

	resp, err := http.Get(f.srv.URL + "/api/sessions/" + strings.ToLower(f.sessionID) + "/state")
	if err != nil {
		t.Fatalf("GET state: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var state SessionStateResponse
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.SessionID != f.sessionID || state.Phase != models.PhaseNameEntry || state.Connections != 1 {
		t.Errorf("state = %+v", state)
	}
	if state.TotalPicks != 16 || state.CompletedPicks != 0 {
		t.Errorf("picks = %d/%d", state.CompletedPicks, state.TotalPicks)
	}

	missing, err := http.Get(f.srv.URL + "/api/sessions/NOSUCH/state")
	if err != nil {
		t.Fatalf("GET missing: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("missing session status = %d", missing.StatusCode)
	}
}

type fakeHistory struct {
	events []*DraftEvent
	limit  int
	err    error
}

func (h *fakeHistory) History(ctx context.Context, sessionID string, limit int) ([]*DraftEvent, error) {
	h.limit = limit
	return h.events, h.err
}

func TestStateHandler_GetSessionEvents(t *testing.T) {
	ev, err := NewDraftEvent("ROOM42", EventTypeDraftCompleted, 30, at, events.DraftCompletedPayload{SessionID: "ROOM42", CompletedAt: at})
	if err != nil {
		t.Fatalf("NewDraftEvent: %v", err)
	}
	history := &fakeHistory{events: []*DraftEvent{ev}}
	cfg := DefaultConfig()
	cfg.History = history
	f := newGatewayFixture(t, cfg)

	resp, err := http.Get(f.srv.URL + "/api/sessions/ROOM42/events?limit=5000")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()
	var got []*DraftEvent
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].ID != ev.ID {
		t.Errorf("events = %+v", got)
	}
	if history.limit != maxHistoryLimit {
		t.Errorf("limit passed = %d, want %d", history.limit, maxHistoryLimit)
	}

	history.err = errors.New("stream offline")
	failed, err := http.Get(f.srv.URL + "/api/sessions/ROOM42/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	failed.Body.Close()
	if failed.StatusCode != http.StatusBadGateway {
		t.Errorf("status on history error = %d", failed.StatusCode)
	}
}

type recordingSink struct {
	ch chan *DraftEvent
}

func (s *recordingSink) Publish(ctx context.Context, ev *DraftEvent) error {
	s.ch <- ev
	return nil
}

func TestGateway_JournalsDerivedEvents(t *testing.T) {
	sink := &recordingSink{ch: make(chan *DraftEvent, 16)}
	cfg := DefaultConfig()
	cfg.Sink = sink
	f := newGatewayFixture(t, cfg)
	a := f.connect(t, "client-a")
	readEvent(t, a)

	_, err := f.store.WriteSnapshot(context.Background(), f.sessionID, models.Patch{
		Shared: &models.SharedStateUpdate{Phase: models.Ptr(models.PhaseDrafting)},
	})
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	select {
	case ev := <-sink.ch:
		if ev.Type != EventTypeDraftStarted {
			t.Errorf("journaled %s, want DraftStarted", ev.Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("nothing journaled")
	}
}
