package handler

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/itemstats/internal/model"
	"github.com/vyrodovalexey/itemstats/internal/stats"
	"github.com/vyrodovalexey/itemstats/internal/store"
)

func newTestWebSocketHandler(m *mockStore, interval time.Duration) *WebSocketHandler {
	return NewWebSocketHandler(stats.NewEngine(m), interval, zap.NewNop())
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("Status = %d, want %d", resp.StatusCode, http.StatusSwitchingProtocols)
	}
	return conn
}

func TestNewWebSocketHandler(t *testing.T) {
	// Act
	handler := newTestWebSocketHandler(newMockStore(), 0)

	// Assert
	if handler == nil {
		t.Fatal("NewWebSocketHandler() returned nil")
	}
	if handler.interval != DefaultPushInterval {
		t.Errorf("interval = %v, want %v", handler.interval, DefaultPushInterval)
	}
	if handler.clients == nil {
		t.Error("clients map should be initialized")
	}
}

func TestWebSocketHandler_RegisterRoutes(t *testing.T) {
	// Arrange
	handler := newTestWebSocketHandler(newMockStore(), time.Second)
	router := mux.NewRouter()

	// Act
	handler.RegisterRoutes(router)

	// Assert: the upgrade fails on a plain request, but the route exists.
	req := httptest.NewRequest(http.MethodGet, "/ws/stats", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code == http.StatusNotFound {
		t.Error("Route /ws/stats not found")
	}
}

func TestWebSocketHandler_SendsSnapshotOnConnect(t *testing.T) {
	// Arrange
	handler := newTestWebSocketHandler(newMockStore(referenceItems()...), time.Hour)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer func() {
		handler.CloseAllConnections()
		server.Close()
	}()

	conn := dial(t, server)
	defer conn.Close()

	// Act
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg model.StatsMessage
	err := conn.ReadJSON(&msg)

	// Assert
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != model.WSMessageTypeStats {
		t.Errorf("Type = %s, want %s", msg.Type, model.WSMessageTypeStats)
	}
	if msg.Count != 3 {
		t.Errorf("Count = %d, want 3", msg.Count)
	}
	if msg.Maior == nil || msg.Maior.ID != 1 {
		t.Errorf("Maior = %+v, want id 1", msg.Maior)
	}
	if msg.Menor == nil || msg.Menor.ID != 3 {
		t.Errorf("Menor = %+v, want id 3", msg.Menor)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestWebSocketHandler_PushesPeriodically(t *testing.T) {
	// Arrange
	m := newMockStore()
	handler := newTestWebSocketHandler(m, 20*time.Millisecond)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer func() {
		handler.CloseAllConnections()
		server.Close()
	}()

	conn := dial(t, server)
	defer conn.Close()

	// Act
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	received := 0
	for received < 3 {
		var msg model.StatsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if msg.Maior != nil {
			t.Errorf("Maior = %+v, want nil for empty table", msg.Maior)
		}
		received++
	}

	// Assert
	if received != 3 {
		t.Errorf("received %d messages, want 3", received)
	}
}

func TestWebSocketHandler_ReportsStorageErrors(t *testing.T) {
	// Arrange
	m := newMockStore()
	m.listErr = store.ErrStorage
	handler := newTestWebSocketHandler(m, time.Hour)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer func() {
		handler.CloseAllConnections()
		server.Close()
	}()

	conn := dial(t, server)
	defer conn.Close()

	// Act
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg model.StatsMessage
	err := conn.ReadJSON(&msg)

	// Assert
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != model.WSMessageTypeError {
		t.Errorf("Type = %s, want %s", msg.Type, model.WSMessageTypeError)
	}
	if msg.Error == "" {
		t.Error("Error should be set")
	}
}

func TestWebSocketHandler_CloseAllConnections(t *testing.T) {
	// Arrange
	handler := newTestWebSocketHandler(newMockStore(), time.Hour)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, server)
		defer conns[i].Close()
	}

	deadline := time.Now().Add(2 * time.Second)
	for handler.ClientCount() < len(conns) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := handler.ClientCount(); got != len(conns) {
		t.Fatalf("ClientCount() = %d, want %d", got, len(conns))
	}

	// Act
	handler.CloseAllConnections()

	// Assert
	if got := handler.ClientCount(); got != 0 {
		t.Errorf("ClientCount() after close = %d, want 0", got)
	}
}

func TestWebSocketHandler_WriteFailureRemovesClient(t *testing.T) {
	// Arrange: the server side of the connection cannot write, reads still work.
	handler := newTestWebSocketHandler(newMockStore(referenceItems()...), time.Hour)
	pumpDone := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(pumpDone)

		conn, err := handler.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade() error = %v", err)
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		handler.mu.Lock()
		handler.clients[conn] = cancel
		handler.mu.Unlock()

		if tcp, ok := conn.UnderlyingConn().(*net.TCPConn); ok {
			_ = tcp.CloseWrite()
		}

		// Act
		handler.writePump(ctx, conn)
	}))
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	select {
	case <-pumpDone:
	case <-time.After(5 * time.Second):
		t.Fatal("writePump did not return after a failed write")
	}

	// Assert
	if got := handler.ClientCount(); got != 0 {
		t.Errorf("ClientCount() after failed write = %d, want 0", got)
	}
}

func TestWebSocketHandler_ConnectLogReportsClients(t *testing.T) {
	// Arrange
	core, logs := observer.New(zapcore.InfoLevel)
	handler := NewWebSocketHandler(stats.NewEngine(newMockStore()), time.Hour, zap.New(core))
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer func() {
		handler.CloseAllConnections()
		server.Close()
	}()

	// Act
	deadline := time.Now().Add(2 * time.Second)
	first := dial(t, server)
	defer first.Close()
	for logs.FilterMessage("websocket client connected").Len() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	second := dial(t, server)
	defer second.Close()

	for logs.FilterMessage("websocket client connected").Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	// Assert
	entries := logs.FilterMessage("websocket client connected").All()
	if len(entries) != 2 {
		t.Fatalf("got %d connect logs, want 2", len(entries))
	}
	if got := entries[1].ContextMap()["clients"]; got != int64(2) {
		t.Errorf("clients = %v, want 2", got)
	}
}

func TestWebSocketHandler_InvalidUpgrade(t *testing.T) {
	handler := newTestWebSocketHandler(newMockStore(), time.Second)
	req := httptest.NewRequest(http.MethodGet, "/ws/stats", nil)
	rr := httptest.NewRecorder()

	handler.HandleWebSocket(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if handler.ClientCount() != 0 {
		t.Error("failed upgrade must not register a client")
	}
}
