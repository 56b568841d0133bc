package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CUknot/realty_crm/middleware"
	"github.com/CUknot/realty_crm/models"
	"github.com/CUknot/realty_crm/services"
)

type fakeInbox struct {
	hub          *Hub
	mu           sync.Mutex
	participants map[[2]uint]bool
	nextID       uint
}

func (f *fakeInbox) allow(threadID, userID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.participants[[2]uint{threadID, userID}] = true
}

func (f *fakeInbox) IsParticipant(_ context.Context, actorID, threadID uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.participants[[2]uint{threadID, actorID}]
}

func (f *fakeInbox) PostMessage(ctx context.Context, actorID, threadID uint, body, channel string) (*models.Message, error) {
	if !f.IsParticipant(ctx, actorID, threadID) {
		return nil, services.NotFound("thread not found")
	}
	if strings.TrimSpace(body) == "" {
		return nil, services.Invalid("message body is required")
	}
	f.mu.Lock()
	f.nextID++
	msg := &models.Message{ID: f.nextID, ThreadID: threadID, UserID: actorID, Body: body, Channel: models.ChannelNote}
	f.mu.Unlock()
	f.hub.BroadcastToThread(threadID, services.EventMessage, msg)
	return msg, nil
}

func (f *fakeInbox) MarkRead(ctx context.Context, actorID, threadID uint) (time.Time, error) {
	if !f.IsParticipant(ctx, actorID, threadID) {
		return time.Time{}, services.NotFound("thread not found")
	}
	return time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC), nil
}

type frame struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// startServer runs a hub and a /ws endpoint that trusts the X-Test-User
// header in place of a session.
func startServer(t *testing.T, rdb *redis.Client) (*Hub, *fakeInbox, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(rdb)
	require.NoError(t, hub.Start(ctx))
	go hub.Run(ctx)

	inbox := &fakeInbox{hub: hub, participants: map[[2]uint]bool{}}
	handler := NewHandler(hub, inbox, nil)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		if id, err := strconv.ParseUint(c.GetHeader("X-Test-User"), 10, 64); err == nil {
			c.Set(middleware.UserIDKey, uint(id))
		}
		c.Next()
	}, handler.ServeWS)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, inbox, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, hub *Hub, url string, userID uint) *gorilla.Conn {
	t.Helper()
	header := http.Header{"X-Test-User": {strconv.FormatUint(uint64(userID), 10)}}
	conn, _, err := gorilla.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.isOnline(userID) }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *gorilla.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestUnauthenticatedUpgradeRejected(t *testing.T) {
	_, _, url := startServer(t, nil)

	_, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJoinThreadAndReceiveMessages(t *testing.T) {
	hub, inbox, url := startServer(t, nil)
	inbox.allow(5, 1)
	inbox.allow(5, 2)

	alice := dial(t, hub, url, 1)
	bob := dial(t, hub, url, 2)

	require.NoError(t, alice.WriteJSON(Message{Type: "join_thread", Payload: ThreadPayload{ThreadID: 5}}))
	require.NoError(t, bob.WriteJSON(Message{Type: "join_thread", Payload: ThreadPayload{ThreadID: 5}}))
	require.Eventually(t, func() bool { return hub.threadSize(5) == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.WriteJSON(Message{Type: "message", Payload: ThreadPayload{ThreadID: 5, Body: "On my way"}}))

	for _, conn := range []*gorilla.Conn{alice, bob} {
		f := readFrame(t, conn)
		assert.Equal(t, "message", f.Type)
		assert.Equal(t, "On my way", f.Payload["body"])
		assert.Equal(t, float64(5), f.Payload["thread_id"])
	}

	require.NoError(t, alice.WriteJSON(Message{Type: "mark_read", Payload: ThreadPayload{ThreadID: 5}}))
	f := readFrame(t, alice)
	assert.Equal(t, "read", f.Type)
	assert.Equal(t, float64(5), f.Payload["thread_id"])

	require.NoError(t, alice.WriteJSON(Message{Type: "leave_thread", Payload: ThreadPayload{ThreadID: 5}}))
	require.Eventually(t, func() bool { return hub.threadSize(5) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestFrameErrors(t *testing.T) {
	hub, inbox, url := startServer(t, nil)
	inbox.allow(5, 1)
	conn := dial(t, hub, url, 3)

	tests := []struct {
		name string
		send interface{}
		want string
	}{
		{"not a participant", Message{Type: "join_thread", Payload: ThreadPayload{ThreadID: 5}}, "thread not found"},
		{"post to foreign thread", Message{Type: "message", Payload: ThreadPayload{ThreadID: 5, Body: "hi"}}, "thread not found"},
		{"missing thread", Message{Type: "mark_read", Payload: map[string]string{}}, "thread_id is required"},
		{"unknown type", Message{Type: "invite_users", Payload: ThreadPayload{ThreadID: 5}}, "Unknown frame type"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, conn.WriteJSON(tc.send))
			f := readFrame(t, conn)
			assert.Equal(t, "error", f.Type)
			assert.Equal(t, tc.want, f.Payload["message"])
		})
	}
	assert.Equal(t, 0, hub.threadSize(5))
}

func TestNotifyUserTargetsOnlyThatUser(t *testing.T) {
	hub, _, url := startServer(t, nil)
	alice := dial(t, hub, url, 1)
	bob := dial(t, hub, url, 2)

	hub.NotifyUser(2, services.EventReferral, services.ReferralEvent{Event: "claim_accepted", ReferralID: 9, ClaimID: 4})

	f := readFrame(t, bob)
	assert.Equal(t, "referral_event", f.Type)
	assert.Equal(t, "claim_accepted", f.Payload["event"])

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := alice.ReadMessage()
	assert.Error(t, err, "alice must not receive bob's event")
}

func TestRedisFanOutAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { c.Close() })
		return c
	}

	hubA, _, _ := startServer(t, newClient())
	hubB, _, urlB := startServer(t, newClient())
	conn := dial(t, hubB, urlB, 7)

	// published on instance A, delivered by instance B
	hubA.NotifyUser(7, services.EventReferral, services.ReferralEvent{Event: "claim_requested", ReferralID: 3})

	f := readFrame(t, conn)
	assert.Equal(t, "referral_event", f.Type)
	assert.Equal(t, "claim_requested", f.Payload["event"])
	assert.False(t, hubA.isOnline(7))
}

func TestCheckOrigin(t *testing.T) {
	check := checkOrigin([]string{"http://localhost:3000"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req), "non-browser clients send no origin")

	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
}

func TestStoppedHubReleasesClients(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := &Client{hub: hub, send: make(chan []byte, 1), userID: 4}
	require.True(t, hub.addClient(client))
	require.Eventually(t, func() bool { return hub.isOnline(4) }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-stopped

	_, open := <-client.send
	assert.False(t, open, "send channel is closed on shutdown")
	assert.False(t, hub.isOnline(4))

	released := make(chan struct{})
	go func() {
		hub.removeClient(client)
		assert.False(t, hub.addClient(&Client{hub: hub, send: make(chan []byte, 1), userID: 5}))
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("register/unregister blocked after the hub stopped")
	}
}
