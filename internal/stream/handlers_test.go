package stream

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/itzfarzaan/BuddyWay/internal/session"
	"github.com/itzfarzaan/BuddyWay/internal/snapshot"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
)

func newTestApp(t *testing.T) (string, func()) {
	t.Helper()
	hub := NewHub(nil)
	manager := session.NewManager(snapshot.NewMemory(), 30*time.Minute, 5*time.Minute)
	router := NewRouter(hub, manager)

	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), hub, router)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	go func() {
		_ = app.Listener(ln)
	}()

	return "ws://" + ln.Addr().String() + "/stream/ws", func() {
		_ = app.Shutdown()
		_ = ln.Close()
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		t.Fatalf("bad envelope %s: %v", msg, err)
	}
	return env
}

func TestHandlersUpgradeRequired(t *testing.T) {
	hub := NewHub(nil)
	manager := session.NewManager(snapshot.NewMemory(), 30*time.Minute, 5*time.Minute)
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), hub, NewRouter(hub, manager))

	req := httptest.NewRequest(http.MethodGet, "/stream/ws", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode == http.StatusOK {
		t.Fatalf("expected non-200 for non-websocket request")
	}
}

func TestHandlersConnectedHandshake(t *testing.T) {
	url, stop := newTestApp(t)
	defer stop()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	env := readEnvelope(t, conn)
	if env.Event != EventConnected {
		t.Fatalf("expected connected handshake, got %s", env.Event)
	}
	var p connectedPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.ID == "" {
		t.Fatalf("expected connection id, got %s (%v)", env.Data, err)
	}
}

func TestHandlersCreateAndLocationFlow(t *testing.T) {
	url, stop := newTestApp(t)
	defer stop()

	hostConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer hostConn.Close()

	env := readEnvelope(t, hostConn)
	var hostHello connectedPayload
	_ = json.Unmarshal(env.Data, &hostHello)

	create, _ := json.Marshal(createSessionPayload{SessionCode: "e2e-1", HostID: hostHello.ID, UserName: "Host"})
	if err := hostConn.WriteJSON(Envelope{Event: EventCreateSession, Data: create}); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if env := readEnvelope(t, hostConn); env.Event != EventSessionMembers {
		t.Fatalf("expected session-members, got %s", env.Event)
	}

	memberConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer memberConn.Close()

	env = readEnvelope(t, memberConn)
	var memberHello connectedPayload
	_ = json.Unmarshal(env.Data, &memberHello)

	join, _ := json.Marshal(joinSessionPayload{SessionCode: "e2e-1", UserID: memberHello.ID, UserName: "Member"})
	if err := memberConn.WriteJSON(Envelope{Event: EventJoinSession, Data: join}); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if env := readEnvelope(t, memberConn); env.Event != EventJoinResponse {
		t.Fatalf("expected join response, got %s", env.Event)
	}
	if env := readEnvelope(t, memberConn); env.Event != EventSessionMembers {
		t.Fatalf("expected session-members, got %s", env.Event)
	}

	if env := readEnvelope(t, hostConn); env.Event != EventSessionMembers {
		t.Fatalf("expected session-members, got %s", env.Event)
	}
	if env := readEnvelope(t, hostConn); env.Event != EventUserJoined {
		t.Fatalf("expected user-joined, got %s", env.Event)
	}

	loc, _ := json.Marshal(sendLocationPayload{SessionCode: "e2e-1", Latitude: -6.2, Longitude: 106.8, Name: "Member"})
	if err := memberConn.WriteJSON(Envelope{Event: EventSendLocation, Data: loc}); err != nil {
		t.Fatalf("write error: %v", err)
	}

	env = readEnvelope(t, hostConn)
	if env.Event != EventReceiveLocation {
		t.Fatalf("expected receive-location, got %s", env.Event)
	}
	var received receiveLocationPayload
	_ = json.Unmarshal(env.Data, &received)
	if received.ID != memberHello.ID || received.Latitude != -6.2 {
		t.Fatalf("unexpected location: %+v", received)
	}
}

func TestHandlersDisconnectCascade(t *testing.T) {
	url, stop := newTestApp(t)
	defer stop()

	hostConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer hostConn.Close()

	env := readEnvelope(t, hostConn)
	var hostHello connectedPayload
	_ = json.Unmarshal(env.Data, &hostHello)

	create, _ := json.Marshal(createSessionPayload{SessionCode: "e2e-2", HostID: hostHello.ID, UserName: "Host"})
	_ = hostConn.WriteJSON(Envelope{Event: EventCreateSession, Data: create})
	readEnvelope(t, hostConn) // session-members

	memberConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	env = readEnvelope(t, memberConn)
	var memberHello connectedPayload
	_ = json.Unmarshal(env.Data, &memberHello)

	join, _ := json.Marshal(joinSessionPayload{SessionCode: "e2e-2", UserID: memberHello.ID, UserName: "Member"})
	_ = memberConn.WriteJSON(Envelope{Event: EventJoinSession, Data: join})
	readEnvelope(t, hostConn) // session-members
	readEnvelope(t, hostConn) // user-joined

	memberConn.Close()

	env = readEnvelope(t, hostConn)
	if env.Event != EventUserDisconnected {
		t.Fatalf("expected user-disconnected, got %s", env.Event)
	}
	var p userDisconnectedPayload
	_ = json.Unmarshal(env.Data, &p)
	if p.ID != memberHello.ID {
		t.Fatalf("unexpected disconnect id: %+v", p)
	}
	if env := readEnvelope(t, hostConn); env.Event != EventSessionMembers {
		t.Fatalf("expected session-members, got %s", env.Event)
	}
}
