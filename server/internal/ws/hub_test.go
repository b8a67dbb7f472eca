package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/uvdose/uvdose/pkg/types"
	"github.com/uvdose/uvdose/server/internal/history"
	wsHub "github.com/uvdose/uvdose/server/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

func newHistory(systems ...string) *history.Store {
	st := history.New(time.Hour, 100, nil)
	for _, s := range systems {
		st.Add(context.Background(), "red", s, types.Succeed(40, "", nil))
	}
	return st
}

func startHub(t *testing.T, st *history.Store, size int) (string, *wsHub.Hub, func()) {
	t.Helper()

	hub := wsHub.New(st, testInterval, size)
	ctx, cancel := context.WithCancel(context.Background())

	srv := httptest.NewServer(hub)
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub, cancel
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFeed(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m wsHub.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, raw)
	}
	return m
}

// --- tests ------------------------------------------------------------------

func TestHub_ConnectReceivesFeed(t *testing.T) {
	wsURL, _, _ := startHub(t, newHistory("RZ-104-11", "RZM-200-5"), 0)

	m := readFeed(t, dial(t, wsURL))
	if m.Event != "history" {
		t.Errorf("event: got %q, want history", m.Event)
	}
	if m.Data.Count != 2 {
		t.Fatalf("count: got %d, want 2", m.Data.Count)
	}
	if m.Data.Records[0].System != "RZM-200-5" {
		t.Errorf("newest first: got %q", m.Data.Records[0].System)
	}
	if m.Data.GeneratedAt == "" {
		t.Error("generated_at missing")
	}
}

func TestHub_FeedSizeLimitsRecords(t *testing.T) {
	wsURL, _, _ := startHub(t, newHistory("a", "b", "c", "d"), 2)
	m := readFeed(t, dial(t, wsURL))
	if len(m.Data.Records) != 2 {
		t.Errorf("records: got %d, want 2", len(m.Data.Records))
	}
}

func TestHub_BroadcastsNewRecords(t *testing.T) {
	st := newHistory()
	wsURL, _, _ := startHub(t, st, 0)

	conn := dial(t, wsURL)
	if m := readFeed(t, conn); m.Data.Count != 0 {
		t.Fatalf("initial count: got %d, want 0", m.Data.Count)
	}

	st.Add(context.Background(), "pressure_drop", "RZ-104-11", types.Succeed(3.2, types.PressureDropUnit, nil))

	m := readFeed(t, conn)
	if m.Data.Count != 1 || m.Data.Records[0].Op != "pressure_drop" {
		t.Errorf("broadcast: got %+v", m.Data)
	}
}

func TestHub_QuietWhenUnchanged(t *testing.T) {
	st := newHistory("RZ-104-11")
	wsURL, _, _ := startHub(t, st, 0)

	conn := dial(t, wsURL)
	readFeed(t, conn)
	// the first tick publishes the state once; nothing after that
	time.Sleep(5 * testInterval)
	conn.SetReadDeadline(time.Now().Add(5 * testInterval)) //nolint:errcheck
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	conn2 := dial(t, wsURL)
	readFeed(t, conn2)
	conn2.SetReadDeadline(time.Now().Add(5 * testInterval)) //nolint:errcheck
	if _, _, err := conn2.ReadMessage(); err == nil {
		t.Error("unexpected broadcast with no new records")
	}
}

func TestHub_CountClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, newHistory(), 0)

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, wsURL)
		readFeed(t, conns[i])
	}
	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}

	conns[0].Close()
	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 2 {
		t.Errorf("Count after disconnect: got %d, want 2", n)
	}
}

func TestHub_CancelClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newHistory(), 0)

	conn := dial(t, wsURL)
	readFeed(t, conn)
	time.Sleep(10 * time.Millisecond)

	cancel()
	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
}

func TestHub_PlainHTTPIs400(t *testing.T) {
	hub := wsHub.New(newHistory(), testInterval, 0)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
