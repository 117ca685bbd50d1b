package realtime

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConn upgrades a real websocket through an httptest server and wraps
// the server side in a Connection. The returned client side can read what the
// write loop delivers.
func newTestConn(t *testing.T) (*Connection, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	serverSide := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverSide <- ws
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewConnection(uuid.New(), <-serverSide), client
}

func TestSendAfterCloseReturnsError(t *testing.T) {
	conn, _ := newTestConn(t)
	conn.Start()
	conn.Close(websocket.CloseNormalClosure, "bye")

	for i := 0; i < 200; i++ {
		err := conn.Send([]byte("late"))
		require.Error(t, err)
	}
}

func TestSendBufferOverflowClosesConnection(t *testing.T) {
	// The write loop is never started, so the buffer fills up.
	conn, _ := newTestConn(t)

	for i := 0; i < cap(conn.send); i++ {
		require.NoError(t, conn.Send([]byte("msg")))
	}

	err := conn.Send([]byte("overflow"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buffer")

	// Once closed every further send is rejected.
	require.Error(t, conn.Send([]byte("after")))
}

func TestHubBroadcastDeliversToRoom(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	channelID := uuid.New()

	member, memberClient := newTestConn(t)
	bystander, bystanderClient := newTestConn(t)
	hub.Attach(member)
	hub.Attach(bystander)
	hub.Join(channelID, member)

	delivered := hub.Broadcast(channelID, []byte(`{"type":"message.created"}`))
	assert.Equal(t, 1, delivered)

	require.NoError(t, memberClient.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := memberClient.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message.created"}`, string(payload))

	require.NoError(t, bystanderClient.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = bystanderClient.ReadMessage()
	assert.Error(t, err)
}

func TestHubDetachRemovesFromRooms(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	channelID := uuid.New()

	conn, _ := newTestConn(t)
	hub.Attach(conn)
	hub.Join(channelID, conn)
	hub.Detach(conn)

	assert.Equal(t, 0, hub.Broadcast(channelID, []byte("gone")))

	// Join after detach is a no-op.
	hub.Join(channelID, conn)
	assert.Equal(t, 0, hub.Broadcast(channelID, []byte("still gone")))
}

func TestHubBroadcastConcurrentWithDisconnects(t *testing.T) {
	hub := NewHub()
	channelID := uuid.New()

	conns := make([]*Connection, 0, 8)
	for i := 0; i < 8; i++ {
		conn, _ := newTestConn(t)
		hub.Attach(conn)
		hub.Join(channelID, conn)
		conns = append(conns, conn)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			hub.Broadcast(channelID, []byte(fmt.Sprintf(`{"seq":%d}`, i)))
		}
	}()
	go func() {
		defer wg.Done()
		for _, conn := range conns {
			conn.Close(websocket.CloseGoingAway, "client dropped")
			hub.Detach(conn)
		}
	}()
	wg.Wait()

	hub.Close()
	assert.Equal(t, 0, hub.Broadcast(channelID, []byte("after shutdown")))
}
