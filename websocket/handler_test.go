package websocket

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emaforlin/ivr-ws-service/config"
	"github.com/emaforlin/ivr-ws-service/logger"
	"github.com/emaforlin/ivr-ws-service/publisher"
)

const waitFor = 2 * time.Second
const tick = 10 * time.Millisecond

func testSettings() *config.Settings {
	cfg := &config.Settings{}
	cfg.WebSocket.ReadBufferSize = 1024
	cfg.WebSocket.WriteBufferSize = 1024
	cfg.WebSocket.HandshakeTimeout = 2 * time.Second
	return cfg
}

func newTestServer(t *testing.T) (*httptest.Server, *Manager, *publisher.MockEventPublisher) {
	t.Helper()
	manager := NewManager(logger.Nop())
	mock := &publisher.MockEventPublisher{}
	handler := HandleWebSocket(NewUpgrader(testSettings()), manager, mock)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, manager, mock
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func lastEventOfType(mock *publisher.MockEventPublisher, eventType string) (publisher.SessionEvent, bool) {
	events := mock.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == eventType {
			return events[i], true
		}
	}
	return publisher.SessionEvent{}, false
}

func TestNewUpgrader_OriginPolicy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/ws/test", nil)
	req.Header.Set("Origin", "http://elsewhere.com")

	open := NewUpgrader(testSettings())
	require.NotNil(t, open.CheckOrigin)
	assert.True(t, open.CheckOrigin(req), "cross-origin requests pass when checking is disabled")

	strictCfg := testSettings()
	strictCfg.WebSocket.CheckOrigin = true
	strict := NewUpgrader(strictCfg)
	assert.Nil(t, strict.CheckOrigin, "nil handler defers to gorilla's same-origin policy")
}

func TestEcho_PrefixesMessage(t *testing.T) {
	srv, _, _ := newTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("Hello, world!")))

	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, messageType)
	assert.Equal(t, "Message text was: Hello, world!", string(data))
}

func TestEcho_EmptyAndUnicodePayloads(t *testing.T) {
	srv, _, _ := newTestServer(t)
	conn := dial(t, srv)

	payloads := []string{"", "héllo wörld", "日本語テキスト", strings.Repeat("x", 4096)}
	for _, payload := range payloads {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))

		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, "Message text was: "+payload, string(data))
	}
}

func TestEcho_PreservesOrder(t *testing.T) {
	srv, _, _ := newTestServer(t)
	conn := dial(t, srv)

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("msg-%03d", i))))
	}

	for i := 0; i < n; i++ {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("Message text was: msg-%03d", i), string(data))
	}
}

func TestEcho_ConnectionsAreIsolated(t *testing.T) {
	srv, manager, _ := newTestServer(t)

	alpha := dial(t, srv)
	beta := dial(t, srv)
	assert.Equal(t, 2, manager.ActiveCount())

	require.NoError(t, alpha.WriteMessage(websocket.TextMessage, []byte("from-alpha")))
	require.NoError(t, beta.WriteMessage(websocket.TextMessage, []byte("from-beta")))

	_, data, err := alpha.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "Message text was: from-alpha", string(data))

	_, data, err = beta.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "Message text was: from-beta", string(data))
}

func TestEcho_ClientCloseIsGraceful(t *testing.T) {
	srv, manager, mock := newTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	require.NoError(t, conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second)))

	assert.Eventually(t, func() bool {
		return manager.ActiveCount() == 0
	}, waitFor, tick, "session should unregister after client close")

	ended, ok := lastEventOfType(mock, publisher.EventSessionEnded)
	require.True(t, ok)
	assert.Equal(t, "graceful", ended.Payload.Reason)
}

func TestEcho_SendThenCloseKeepsLastEcho(t *testing.T) {
	srv, manager, _ := newTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("last words")))
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	require.NoError(t, conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second)))

	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err, "echo must arrive before the close is observed")
	assert.Equal(t, websocket.TextMessage, messageType)
	assert.Equal(t, "Message text was: last words", string(data))

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	assert.Eventually(t, func() bool {
		return manager.ActiveCount() == 0
	}, waitFor, tick)
}

func TestEcho_BinaryFrameIsFault(t *testing.T) {
	srv, manager, mock := newTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02, 0x03}))

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseUnsupportedData),
		"client should observe an unsupported-data close, got %v", err)

	assert.Eventually(t, func() bool {
		return manager.ActiveCount() == 0
	}, waitFor, tick)

	ended, ok := lastEventOfType(mock, publisher.EventSessionEnded)
	require.True(t, ok)
	assert.Equal(t, "fault", ended.Payload.Reason)
	assert.Contains(t, ended.Payload.Detail, "unsupported message type")
}

func TestEcho_FaultLogsStackTrace(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)

	manager := NewManager(logger.Nop())
	handler := HandleWebSocket(NewUpgrader(testSettings()), manager, &publisher.MockEventPublisher{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(w, r.WithContext(zl.WithContext(r.Context())))
	}))
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01}))

	assert.Eventually(t, func() bool {
		return manager.ActiveCount() == 0
	}, waitFor, tick)

	out := buf.String()
	assert.Contains(t, out, "WebSocket error occurred")
	assert.Contains(t, out, "unsupported message type")
	assert.Contains(t, out, `"stack"`)
}

func TestEcho_AbruptDisconnectIsFault(t *testing.T) {
	srv, manager, mock := newTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	// Drop the TCP connection without a close handshake.
	require.NoError(t, conn.UnderlyingConn().Close())

	assert.Eventually(t, func() bool {
		return manager.ActiveCount() == 0
	}, waitFor, tick)

	ended, ok := lastEventOfType(mock, publisher.EventSessionEnded)
	require.True(t, ok)
	assert.Equal(t, "fault", ended.Payload.Reason)
}

func TestEcho_PublishesSessionEvents(t *testing.T) {
	srv, manager, mock := newTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	require.NoError(t, conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second)))

	assert.Eventually(t, func() bool {
		return manager.ActiveCount() == 0
	}, waitFor, tick)

	events := mock.Events()
	require.Len(t, events, 3)
	assert.Equal(t, publisher.EventSessionStarted, events[0].Type)
	assert.Equal(t, publisher.EventSessionEcho, events[1].Type)
	assert.Equal(t, publisher.EventSessionEnded, events[2].Type)

	assert.Equal(t, 5, events[1].Payload.MessageLength)
	assert.Equal(t, len("Message text was: hello"), events[1].Payload.ResponseLength)

	assert.Equal(t, "graceful", events[2].Payload.Reason)
	assert.Equal(t, 1, events[2].Payload.Messages)
	assert.Empty(t, events[2].Payload.Detail)

	sessionID := events[0].SessionID
	assert.NotEmpty(t, sessionID)
	for _, event := range events {
		assert.Equal(t, sessionID, event.SessionID)
		assert.NotEmpty(t, event.ClientHost)
		assert.NotEmpty(t, event.ClientPort)
		assert.NotZero(t, event.Timestamp)
	}
}

func TestHandleWebSocket_RejectsPlainHTTP(t *testing.T) {
	srv, manager, mock := newTestServer(t)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, manager.ActiveCount())

	_, started := lastEventOfType(mock, publisher.EventSessionStarted)
	assert.False(t, started, "no session event should be published for a failed handshake")
}

func TestHandleWebSocket_RejectsDuringShutdown(t *testing.T) {
	srv, manager, _ := newTestServer(t)
	manager.BeginShutdown()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	if conn != nil {
		conn.Close()
	}
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCloseAll_NotifiesEveryClient(t *testing.T) {
	srv, manager, mock := newTestServer(t)

	alpha := dial(t, srv)
	beta := dial(t, srv)
	require.Equal(t, 2, manager.ActiveCount())

	manager.BeginShutdown()
	assert.Equal(t, 2, manager.CloseAll())

	for _, conn := range []*websocket.Conn{alpha, beta} {
		_, _, err := conn.ReadMessage()
		require.Error(t, err)
		assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway),
			"client should observe a going-away close, got %v", err)
	}

	assert.Eventually(t, func() bool {
		return manager.ActiveCount() == 0
	}, waitFor, tick)

	ended, ok := lastEventOfType(mock, publisher.EventSessionEnded)
	require.True(t, ok)
	assert.Equal(t, "graceful", ended.Payload.Reason)
}
