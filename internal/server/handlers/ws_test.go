package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/boardsync/internal/channel"
	"github.com/iudanet/boardsync/internal/events"
	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/internal/server/hub"
)

// roleAuth подставляет claims с ролью из заголовка вместо JWT
func roleAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := models.Role(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if !role.Valid() {
			sendError(setupTestLogger(), w, "invalid token", http.StatusUnauthorized)
			return
		}
		claims := &Claims{UserID: "user-" + string(role), Role: role}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func setupRelay(t *testing.T) (*hub.Hub, string) {
	t.Helper()
	logger := setupTestLogger()
	h := hub.New(logger, 0)

	r := mux.NewRouter()
	r.Handle("/api/v1/boards/{board}/ws", roleAuth(http.HandlerFunc(NewWSHandler(logger, h).Serve)))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url, err := channel.BoardSocketURL(srv.URL, "board-1")
	require.NoError(t, err)
	return h, url
}

func dial(t *testing.T, url, role, clientID string) *channel.WS {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, err := channel.DialWS(ctx, channel.WSConfig{URL: url, Token: role, ClientID: clientID}, setupTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestWSHandler_RelaysBetweenClients(t *testing.T) {
	h, url := setupRelay(t)
	ctx := context.Background()

	alice := dial(t, url, "editor", "alice")
	bob := dial(t, url, "editor", "bob")
	assert.Equal(t, "alice", alice.ClientID())
	assert.Equal(t, "bob", bob.ClientID())

	got := make(chan channel.Message, 1)
	_, err := alice.Subscribe(events.TopicStrokes, "", func(m channel.Message) { got <- m })
	require.NoError(t, err)

	require.NoError(t, bob.Publish(ctx, events.TopicStrokes, events.EventStrokeAdded, []byte(`{"points":[{"x":1,"y":1}],"erase":false}`)))

	select {
	case m := <-got:
		assert.Equal(t, "bob", m.ClientID)
		assert.Equal(t, events.EventStrokeAdded, m.Event)
		assert.Equal(t, uint64(1), m.Serial)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "message was not relayed")
	}

	history, err := alice.History(ctx, events.TopicStrokes, channel.HistoryOptions{Direction: channel.Forwards})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "bob", history[0].ClientID)
	assert.Equal(t, uint64(1), h.Serial("board-1", events.TopicStrokes))
}

func TestWSHandler_HandlerReadsHistoryUnderLoad(t *testing.T) {
	_, url := setupRelay(t)
	ctx := context.Background()

	alice := dial(t, url, "editor", "alice")
	bob := dial(t, url, "editor", "bob")

	// Больше сообщений, чем помещалось в прежнюю очередь обработчиков
	const total = 1500
	release := make(chan struct{})
	historyErr := make(chan error, 1)
	var received atomic.Int64
	_, err := alice.Subscribe(events.TopicStrokes, "", func(channel.Message) {
		if received.Add(1) != 1 {
			return
		}
		<-release
		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_, err := alice.History(hctx, events.TopicStrokes, channel.HistoryOptions{Limit: 1})
		historyErr <- err
	})
	require.NoError(t, err)

	data := []byte(`{"points":[{"x":1,"y":1}],"erase":false}`)
	for i := 0; i < total; i++ {
		require.NoError(t, bob.Publish(ctx, events.TopicStrokes, events.EventStrokeAdded, data))
	}
	close(release)

	select {
	case err := <-historyErr:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "history request from a handler did not complete")
	}
	require.Eventually(t, func() bool { return received.Load() == total }, 10*time.Second, 20*time.Millisecond)
}

func TestWSHandler_EpochFromRelay(t *testing.T) {
	h, url := setupRelay(t)
	ctx := context.Background()

	alice := dial(t, url, "editor", "alice")
	assert.NotEmpty(t, h.Epoch())
	assert.Equal(t, h.Epoch(), alice.Epoch())

	_, err := alice.History(ctx, events.TopicStrokes, channel.HistoryOptions{})
	require.NoError(t, err)
	assert.Equal(t, h.Epoch(), alice.Epoch())
	assert.NotEqual(t, h.Epoch(), hub.New(setupTestLogger(), 0).Epoch())
}

func TestWSHandler_Presence(t *testing.T) {
	_, url := setupRelay(t)
	ctx := context.Background()

	alice := dial(t, url, "editor", "alice")
	bob := dial(t, url, "viewer", "bob")

	require.NoError(t, alice.Presence().Enter(ctx, channel.Member{Name: "Alice", Color: "#E53935"}))

	members, err := bob.Presence().Get(ctx)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "alice", members[0].ClientID)
	assert.Equal(t, "Alice", members[0].Name)

	require.NoError(t, alice.Close())
	require.Eventually(t, func() bool {
		members, err := bob.Presence().Get(ctx)
		return err == nil && len(members) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWSHandler_ViewerPublishesOnlyCursors(t *testing.T) {
	_, url := setupRelay(t)
	ctx := context.Background()

	v := dial(t, url, "viewer", "")
	assert.NotEmpty(t, v.ClientID())

	err := v.Publish(ctx, events.TopicStrokes, events.EventStrokeAdded, []byte(`{"points":[{"x":1,"y":1}]}`))
	assert.ErrorIs(t, err, channel.ErrForbidden)

	assert.NoError(t, v.Publish(ctx, events.TopicCursors, events.EventCursor, []byte(`{"clientId":"v","state":"leave"}`)))
}

func TestWSHandler_Rejected(t *testing.T) {
	_, url := setupRelay(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := channel.DialWS(ctx, channel.WSConfig{URL: url, Token: "nobody"}, setupTestLogger())
	assert.ErrorIs(t, err, channel.ErrForbidden)
}

func TestWSHandler_ForeignBoardToken(t *testing.T) {
	h := NewWSHandler(setupTestLogger(), hub.New(setupTestLogger(), 0))
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/boards/{board}/ws", h.Serve)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/boards/board-1/ws", nil)
	req = req.WithContext(WithClaims(req.Context(), &Claims{UserID: "u", Role: models.RoleOwner, BoardID: "board-2"}))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/boards/board-1/ws", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
