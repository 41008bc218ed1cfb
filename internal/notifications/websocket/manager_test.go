package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dial(t *testing.T, m *Manager, userID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = m.HandleConnection(w, r, userID)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var hello Message
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, TypeStatus, hello.Type)
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	assert.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestSendToUser(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	defer m.Close()
	conn := dial(t, m, "user-1")

	waitFor(t, func() bool { return m.GetConnectionCount() == 1 })
	assert.Equal(t, 1, m.SendToUser("user-1", Message{Type: TypeNotification, Data: map[string]interface{}{"title": "hi"}}))
	assert.Equal(t, 0, m.SendToUser("user-2", Message{Type: TypeNotification}))

	var got Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypeNotification, got.Type)
	assert.Equal(t, "user-1", got.Target)
	assert.Equal(t, "hi", got.Data["title"])
}

func TestProjectSubscription(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	defer m.Close()
	conn := dial(t, m, "user-1")
	projectID := "7f9c2ba4-e88f-4e1e-92e5-6e2b0c6d2a11"

	require.NoError(t, conn.WriteJSON(Message{Type: TypeSubscribe, Data: map[string]interface{}{"project_ids": []string{projectID, "not-a-uuid"}}}))

	var ack Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, []interface{}{projectID}, ack.Data["subscribed"])

	assert.Equal(t, 1, m.SendToProject(projectID, Message{Type: TypeProject}))
	var got Message
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "project", got.Channel)
}

func TestDisconnectRemovesConnection(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	defer m.Close()
	conn := dial(t, m, "user-1")

	waitFor(t, func() bool { return m.GetConnectionCount() == 1 })
	conn.Close()
	waitFor(t, func() bool { return m.GetConnectionCount() == 0 })
}

func TestOriginCheck(t *testing.T) {
	m := NewManager([]string{"https://app.farmlink.example"}, zap.NewNop())
	defer m.Close()

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, m.upgrader.CheckOrigin(r))

	r.Header.Set("Origin", "https://app.farmlink.example")
	assert.True(t, m.upgrader.CheckOrigin(r))
}
