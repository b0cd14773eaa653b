package presence

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/boardsync/internal/channel"
	"github.com/iudanet/boardsync/internal/clock"
	"github.com/iudanet/boardsync/internal/events"
	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/internal/view"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type participant struct {
	conn    *channel.Local
	tracker *Tracker
}

func join(t *testing.T, bus *channel.Bus, clk clock.Clock, clientID, name string) participant {
	t.Helper()
	conn := bus.Connect(clientID)
	tr := NewTracker(conn, Identity{Name: name, Color: "#123456"}, clk, 0, testLogger())
	_, err := conn.Subscribe(events.TopicCursors, "", tr.HandleMessage)
	require.NoError(t, err)
	_, err = conn.Presence().Subscribe("", tr.HandlePresence)
	require.NoError(t, err)
	conn.OnStateChange(tr.HandleState)
	return participant{conn: conn, tracker: tr}
}

func TestTracker_MoveIsRateLimited(t *testing.T) {
	var sent [][]byte
	ch := &channel.ChannelMock{
		ClientIDFunc: func() string { return "me" },
		PublishFunc: func(ctx context.Context, topic, event string, data []byte) error {
			assert.Equal(t, events.TopicCursors, topic)
			assert.Equal(t, events.EventCursor, event)
			sent = append(sent, data)
			return nil
		},
	}
	clk := clock.Fake(time.Unix(100, 0))
	tr := NewTracker(ch, Identity{Name: "Ann", Color: "#FF0000"}, clk, 0, testLogger())
	ctx := context.Background()
	v := view.View{Scale: 2, OffsetX: 10, OffsetY: 20}

	require.NoError(t, tr.Move(ctx, models.Point{X: 30, Y: 40}, v))
	for i := 0; i < 10; i++ {
		clk.Advance(4 * time.Millisecond)
		require.NoError(t, tr.Move(ctx, models.Point{X: float64(i), Y: 0}, v))
	}
	require.Len(t, sent, 1)
	assert.JSONEq(t, `{"clientId":"me","x":10,"y":10,"name":"Ann","color":"#FF0000","state":"move"}`, string(sent[0]))

	// Первое движение после окна публикуется сразу
	clk.Advance(10 * time.Millisecond)
	require.NoError(t, tr.Move(ctx, models.Point{X: 50, Y: 60}, v))
	require.Len(t, sent, 2)
	assert.JSONEq(t, `{"clientId":"me","x":20,"y":20,"name":"Ann","color":"#FF0000","state":"move"}`, string(sent[1]))
}

func TestTracker_LeaveOnlyAfterMove(t *testing.T) {
	var sent []string
	ch := &channel.ChannelMock{
		ClientIDFunc: func() string { return "me" },
		PublishFunc: func(ctx context.Context, topic, event string, data []byte) error {
			sent = append(sent, string(data))
			return nil
		},
	}
	clk := clock.Fake(time.Unix(0, 0))
	tr := NewTracker(ch, Identity{Name: "Ann"}, clk, 0, testLogger())
	ctx := context.Background()

	require.NoError(t, tr.Leave(ctx))
	assert.Empty(t, sent)

	require.NoError(t, tr.Move(ctx, models.Point{X: 1, Y: 1}, view.Default()))
	require.NoError(t, tr.Leave(ctx))
	require.NoError(t, tr.Leave(ctx))
	require.Len(t, sent, 2)
	assert.JSONEq(t, `{"clientId":"me","state":"leave"}`, sent[1])

	// После leave курсор снова публикуется без ожидания интервала
	require.NoError(t, tr.Move(ctx, models.Point{X: 2, Y: 2}, view.Default()))
	assert.Len(t, sent, 3)
}

func TestTracker_PublishFailureIsReturned(t *testing.T) {
	ch := &channel.ChannelMock{
		ClientIDFunc: func() string { return "me" },
		PublishFunc: func(ctx context.Context, topic, event string, data []byte) error {
			return channel.ErrDisconnected
		},
	}
	tr := NewTracker(ch, Identity{Name: "Ann"}, clock.Fake(time.Unix(0, 0)), 0, testLogger())
	assert.ErrorIs(t, tr.Move(context.Background(), models.Point{}, view.Default()), channel.ErrDisconnected)
}

func TestTracker_MoveThenLeaveRemovesCursor(t *testing.T) {
	bus := channel.NewBus(testLogger(), 0)
	clk := clock.Fake(time.Unix(0, 0))
	a := join(t, bus, clk, "a", "Ann")
	b := join(t, bus, clk, "b", "Bob")
	ctx := context.Background()

	require.NoError(t, a.tracker.Move(ctx, models.Point{X: 5, Y: 6}, view.Default()))
	cursor, ok := b.tracker.Cursor("a")
	require.True(t, ok)
	assert.Equal(t, Cursor{ClientID: "a", Name: "Ann", Color: "#123456", Position: models.Point{X: 5, Y: 6}}, cursor)
	assert.Empty(t, a.tracker.Cursors(), "own cursor is not tracked")

	require.NoError(t, a.tracker.Leave(ctx))
	_, ok = b.tracker.Cursor("a")
	assert.False(t, ok)
	assert.Empty(t, b.tracker.Cursors())
}

func TestTracker_IgnoresOwnEvents(t *testing.T) {
	ch := &channel.ChannelMock{ClientIDFunc: func() string { return "me" }}
	tr := NewTracker(ch, Identity{}, clock.Fake(time.Unix(0, 0)), 0, testLogger())

	tr.ApplyRemote(events.CursorMoved{ClientID: "me", Position: models.Point{X: 1}})
	assert.Empty(t, tr.Cursors())

	tr.ApplyRemote(events.CursorMoved{ClientID: "z", Position: models.Point{X: 1}})
	tr.ApplyRemote(events.CursorMoved{ClientID: "y", Position: models.Point{X: 2}})
	tr.ApplyRemote(events.CursorMoved{ClientID: "z", Position: models.Point{X: 3}})
	cursors := tr.Cursors()
	require.Len(t, cursors, 2)
	assert.Equal(t, "y", cursors[0].ClientID)
	assert.Equal(t, 3.0, cursors[1].Position.X)

	tr.HandleMessage(channel.Message{Event: events.EventCursor, Data: []byte(`{"clientId":"x","state":"move"}`)})
	tr.HandleMessage(channel.Message{Event: events.EventCursor, Data: []byte(`{"state":"leave"}`)})
	assert.Len(t, tr.Cursors(), 2)
}

func TestTracker_Roster(t *testing.T) {
	bus := channel.NewBus(testLogger(), 0)
	clk := clock.Fake(time.Unix(0, 0))
	a := join(t, bus, clk, "a", "Zoe")
	b := join(t, bus, clk, "b", "Bob")
	ctx := context.Background()

	require.NoError(t, a.tracker.Enter(ctx))
	require.NoError(t, b.tracker.Enter(ctx))

	names := func(members []channel.Member) []string {
		out := make([]string, 0, len(members))
		for _, m := range members {
			out = append(out, m.Name)
		}
		return out
	}
	assert.Equal(t, []string{"Bob", "Zoe"}, names(a.tracker.Roster()))
	assert.Equal(t, []string{"Bob", "Zoe"}, names(b.tracker.Roster()))

	require.NoError(t, b.tracker.Update(ctx, Identity{Name: "Al", Color: "#000000"}))
	assert.Equal(t, []string{"Al", "Zoe"}, names(a.tracker.Roster()))

	require.NoError(t, b.tracker.Move(ctx, models.Point{X: 1, Y: 1}, view.Default()))
	_, ok := a.tracker.Cursor("b")
	require.True(t, ok)

	require.NoError(t, b.tracker.Exit(ctx))
	require.NoError(t, b.tracker.Exit(ctx))
	assert.Equal(t, []string{"Zoe"}, names(a.tracker.Roster()))
	_, ok = a.tracker.Cursor("b")
	assert.False(t, ok)
}

func TestTracker_ReentersAfterReconnect(t *testing.T) {
	bus := channel.NewBus(testLogger(), 0)
	clk := clock.Fake(time.Unix(0, 0))
	a := join(t, bus, clk, "a", "Ann")
	b := join(t, bus, clk, "b", "Bob")
	ctx := context.Background()

	require.NoError(t, a.tracker.Enter(ctx))
	require.NoError(t, b.tracker.Enter(ctx))
	require.NoError(t, a.tracker.Move(ctx, models.Point{X: 1, Y: 1}, view.Default()))
	require.Len(t, b.tracker.Cursors(), 1)

	b.conn.Disconnect()
	assert.Len(t, a.tracker.Roster(), 1)
	assert.Empty(t, b.tracker.Cursors())

	b.conn.Reconnect()
	assert.Len(t, a.tracker.Roster(), 2)
	assert.Len(t, b.tracker.Roster(), 2)
}
