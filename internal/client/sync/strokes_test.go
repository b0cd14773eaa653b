package sync

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/boardsync/internal/channel"
	"github.com/iudanet/boardsync/internal/clock"
	"github.com/iudanet/boardsync/internal/events"
	"github.com/iudanet/boardsync/internal/models"
)

func newBusStrokes(t *testing.T, bus *channel.Bus, clientID string) *Strokes {
	t.Helper()
	conn := bus.Connect(clientID)
	s := NewStrokes("board-1", conn, nil, testLogger())
	_, err := conn.Subscribe(events.TopicStrokes, "", s.HandleMessage)
	require.NoError(t, err)
	return s
}

func publishCounter(published *[]string) *channel.ChannelMock {
	return &channel.ChannelMock{
		PublishFunc: func(ctx context.Context, topic, event string, data []byte) error {
			*published = append(*published, topic+"/"+event)
			return nil
		},
	}
}

func TestStrokes_ReplicatesAddUndoRedo(t *testing.T) {
	bus := channel.NewBus(testLogger(), 0)
	a := newBusStrokes(t, bus, "a")
	b := newBusStrokes(t, bus, "b")
	ctx := context.Background()

	s1, s2, s3 := stroke(1), stroke(2), stroke(3)
	require.NoError(t, a.AddStroke(ctx, s1))
	require.NoError(t, b.AddStroke(ctx, s2))
	require.NoError(t, a.AddStroke(ctx, s3))
	assert.Equal(t, []models.Stroke{s1, s2, s3}, b.Visible())

	// Undo общий: клиент B отменяет штрих клиента A
	require.NoError(t, b.Undo(ctx))
	require.NoError(t, b.Undo(ctx))
	for _, s := range []*Strokes{a, b} {
		assert.Equal(t, []models.Stroke{s1}, s.UndoStack())
		assert.Equal(t, []models.Stroke{s2, s3}, s.RedoStack())
	}

	require.NoError(t, a.Redo(ctx))
	for _, s := range []*Strokes{a, b} {
		assert.Equal(t, []models.Stroke{s1, s2}, s.UndoStack())
		assert.Equal(t, []models.Stroke{s3}, s.RedoStack())
	}
}

func TestStrokes_RemoteAddKeepsRedo(t *testing.T) {
	bus := channel.NewBus(testLogger(), 0)
	a := newBusStrokes(t, bus, "a")
	b := newBusStrokes(t, bus, "b")
	ctx := context.Background()

	require.NoError(t, a.AddStroke(ctx, stroke(1)))
	require.NoError(t, a.Undo(ctx))
	require.NoError(t, a.AddStroke(ctx, stroke(2)))

	assert.Empty(t, a.RedoStack())
	assert.Equal(t, []models.Stroke{stroke(1)}, b.RedoStack())
	assert.Equal(t, a.UndoStack(), b.UndoStack())
}

func TestStrokes_UndoOnEmptyDoesNotPublish(t *testing.T) {
	var published []string
	s := NewStrokes("board-1", publishCounter(&published), nil, testLogger())
	ctx := context.Background()

	require.NoError(t, s.Undo(ctx))
	require.NoError(t, s.Redo(ctx))
	assert.Empty(t, published)

	require.NoError(t, s.AddStroke(ctx, stroke(1)))
	require.NoError(t, s.Redo(ctx))
	require.NoError(t, s.Undo(ctx))
	require.NoError(t, s.Undo(ctx))
	assert.Equal(t, []string{"strokes/stroke-added", "strokes/undo"}, published)
}

func TestStrokes_UndoRedoPayload(t *testing.T) {
	var data [][]byte
	ch := &channel.ChannelMock{
		PublishFunc: func(ctx context.Context, topic, event string, payload []byte) error {
			data = append(data, payload)
			return nil
		},
	}
	s := NewStrokes("board-7", ch, nil, testLogger())
	ctx := context.Background()

	require.NoError(t, s.AddStroke(ctx, models.Stroke{Points: []models.Point{{X: 1, Y: 2}}, Erase: true}))
	require.NoError(t, s.Undo(ctx))
	require.NoError(t, s.Clear(ctx))

	require.Len(t, data, 3)
	assert.JSONEq(t, `{"points":[{"x":1,"y":2}],"erase":true}`, string(data[0]))
	assert.JSONEq(t, `{"boardId":"board-7"}`, string(data[1]))
	assert.JSONEq(t, `{"boardId":"board-7"}`, string(data[2]))
}

func TestStrokes_InvalidStrokeRejectedLocally(t *testing.T) {
	var published []string
	s := NewStrokes("board-1", publishCounter(&published), nil, testLogger())

	tests := []struct {
		name   string
		stroke models.Stroke
	}{
		{name: "no points", stroke: models.Stroke{}},
		{name: "nan", stroke: models.Stroke{Points: []models.Point{{X: math.NaN(), Y: 1}}}},
		{name: "inf", stroke: models.Stroke{Points: []models.Point{{X: 1, Y: math.Inf(-1)}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.AddStroke(context.Background(), tt.stroke)
			var vErr *ValidationError
			assert.True(t, errors.As(err, &vErr))
		})
	}
	assert.Empty(t, published)
	assert.Empty(t, s.Visible())
}

func TestStrokes_PublishFailureKeepsLocalState(t *testing.T) {
	ch := &channel.ChannelMock{
		PublishFunc: func(ctx context.Context, topic, event string, data []byte) error {
			return channel.ErrDisconnected
		},
	}
	s := NewStrokes("board-1", ch, nil, testLogger())

	err := s.AddStroke(context.Background(), stroke(1))
	assert.ErrorIs(t, err, channel.ErrDisconnected)
	assert.Len(t, s.Visible(), 1)
}

// refusingChannel отклоняет публикации, пока refuse == true
func refusingChannel(refuse *bool) *channel.ChannelMock {
	return &channel.ChannelMock{
		PublishFunc: func(ctx context.Context, topic, event string, data []byte) error {
			if *refuse {
				return channel.ErrForbidden
			}
			return nil
		},
	}
}

func TestStrokes_ForbiddenPublishRollsBack(t *testing.T) {
	ctx := context.Background()

	t.Run("add", func(t *testing.T) {
		refuse := false
		s := NewStrokes("board-1", refusingChannel(&refuse), nil, testLogger())
		require.NoError(t, s.AddStroke(ctx, stroke(1)))
		require.NoError(t, s.AddStroke(ctx, stroke(2)))
		require.NoError(t, s.Undo(ctx))

		refuse = true
		err := s.AddStroke(ctx, stroke(3))
		assert.ErrorIs(t, err, channel.ErrForbidden)
		assert.Equal(t, []models.Stroke{stroke(1)}, s.Visible())
		// Отмененный штрих снова доступен для redo
		assert.Equal(t, []models.Stroke{stroke(2)}, s.RedoStack())
	})

	t.Run("add on empty board", func(t *testing.T) {
		refuse := true
		s := NewStrokes("board-1", refusingChannel(&refuse), nil, testLogger())
		err := s.AddStroke(ctx, stroke(1))
		assert.ErrorIs(t, err, channel.ErrForbidden)
		assert.Empty(t, s.Visible())
	})

	t.Run("undo and redo", func(t *testing.T) {
		refuse := false
		s := NewStrokes("board-1", refusingChannel(&refuse), nil, testLogger())
		require.NoError(t, s.AddStroke(ctx, stroke(1)))
		require.NoError(t, s.AddStroke(ctx, stroke(2)))

		refuse = true
		assert.ErrorIs(t, s.Undo(ctx), channel.ErrForbidden)
		assert.Equal(t, []models.Stroke{stroke(1), stroke(2)}, s.Visible())
		assert.Empty(t, s.RedoStack())

		refuse = false
		require.NoError(t, s.Undo(ctx))
		refuse = true
		assert.ErrorIs(t, s.Redo(ctx), channel.ErrForbidden)
		assert.Equal(t, []models.Stroke{stroke(1)}, s.Visible())
		assert.Equal(t, []models.Stroke{stroke(2)}, s.RedoStack())
	})

	t.Run("clear", func(t *testing.T) {
		refuse := false
		s := NewStrokes("board-1", refusingChannel(&refuse), nil, testLogger())
		hooked := false
		s.SetClearHook(func(context.Context, bool) { hooked = true })
		require.NoError(t, s.AddStroke(ctx, stroke(1)))
		require.NoError(t, s.AddStroke(ctx, stroke(2)))
		require.NoError(t, s.Undo(ctx))

		refuse = true
		assert.ErrorIs(t, s.Clear(ctx), channel.ErrForbidden)
		assert.Equal(t, []models.Stroke{stroke(1)}, s.Visible())
		assert.Equal(t, []models.Stroke{stroke(2)}, s.RedoStack())
		assert.False(t, hooked)
	})
}

func TestStrokes_ForbiddenPublishRestoresSnapshot(t *testing.T) {
	st := newSnapshotStore()
	clk := clock.Fake(time.Unix(0, 0))
	writer := NewSnapshotWriter(st, "board-1", clk, 0, testLogger())
	refuse := false
	s := NewStrokes("board-1", refusingChannel(&refuse), writer, testLogger())
	ctx := context.Background()

	require.NoError(t, s.AddStroke(ctx, stroke(1)))
	refuse = true
	assert.ErrorIs(t, s.AddStroke(ctx, stroke(2)), channel.ErrForbidden)
	clk.Advance(DefaultSnapshotDelay)

	calls := st.PutSnapshotCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, []models.Stroke{stroke(1)}, calls[0].Snap.Strokes)
}

func TestStrokes_ClearPersistsEmptyList(t *testing.T) {
	st := newSnapshotStore()
	clk := clock.Fake(time.Unix(0, 0))
	writer := NewSnapshotWriter(st, "board-1", clk, 0, testLogger())
	s := NewStrokes("board-1", publishCounter(new([]string)), writer, testLogger())
	ctx := context.Background()

	require.NoError(t, s.AddStroke(ctx, stroke(1)))
	require.NoError(t, s.Clear(ctx))
	clk.Advance(DefaultSnapshotDelay)

	calls := st.PutSnapshotCalls()
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].Snap.Strokes)
	assert.Empty(t, calls[0].Snap.Strokes)
	raw, err := json.Marshal(calls[0].Snap)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"strokes":[]`)
}

func TestStrokes_ClearScenario(t *testing.T) {
	bus := channel.NewBus(testLogger(), 0)
	a := newBusStrokes(t, bus, "a")
	b := newBusStrokes(t, bus, "b")
	ctx := context.Background()

	var hookA, hookB []bool
	a.SetClearHook(func(_ context.Context, local bool) { hookA = append(hookA, local) })
	b.SetClearHook(func(_ context.Context, local bool) { hookB = append(hookB, local) })

	require.NoError(t, a.AddStroke(ctx, stroke(1)))
	require.NoError(t, a.AddStroke(ctx, stroke(2)))
	require.NoError(t, a.AddStroke(ctx, stroke(3)))
	require.NoError(t, a.Undo(ctx))

	require.NoError(t, b.Clear(ctx))
	for _, s := range []*Strokes{a, b} {
		assert.Empty(t, s.UndoStack())
		assert.Empty(t, s.RedoStack())
	}
	assert.Equal(t, []bool{false}, hookA)
	assert.Equal(t, []bool{true}, hookB)
}

func TestStrokes_MalformedMessageDropped(t *testing.T) {
	s := NewStrokes("board-1", publishCounter(new([]string)), nil, testLogger())

	s.HandleMessage(channel.Message{Topic: events.TopicStrokes, Event: events.EventStrokeAdded, Data: []byte(`{"points":[]}`)})
	s.HandleMessage(channel.Message{Topic: events.TopicStrokes, Event: events.EventStrokeAdded, Data: []byte(`not json`)})
	s.HandleMessage(channel.Message{Topic: events.TopicStrokes, Event: "paint", Data: []byte(`{}`)})
	assert.Empty(t, s.Visible())

	s.HandleMessage(channel.Message{Topic: events.TopicStrokes, Event: events.EventStrokeAdded, Data: []byte(`{"points":[{"x":1,"y":1}],"erase":false}`)})
	assert.Len(t, s.Visible(), 1)
}

func TestStrokes_OnChange(t *testing.T) {
	s := NewStrokes("board-1", publishCounter(new([]string)), nil, testLogger())
	changes := 0
	s.OnChange(func() { changes++ })

	ctx := context.Background()
	require.NoError(t, s.AddStroke(ctx, stroke(1)))
	require.NoError(t, s.Undo(ctx))
	require.NoError(t, s.Undo(ctx))
	s.ApplyRemote(events.RedoRequested{BoardID: "board-1"})
	s.ApplyRemote(events.RedoRequested{BoardID: "board-1"})
	assert.Equal(t, 3, changes)
}

func TestStrokes_SnapshotScheduledAfterLocalOps(t *testing.T) {
	st := newSnapshotStore()
	clk := clock.Fake(time.Unix(0, 0))
	writer := NewSnapshotWriter(st, "board-1", clk, 0, testLogger())
	s := NewStrokes("board-1", publishCounter(new([]string)), writer, testLogger())
	ctx := context.Background()

	s.Load(&models.Snapshot{Strokes: []models.Stroke{stroke(1)}})
	assert.Equal(t, []models.Stroke{stroke(1)}, s.Visible())

	require.NoError(t, s.AddStroke(ctx, stroke(2)))
	require.NoError(t, s.AddStroke(ctx, stroke(3)))
	require.NoError(t, s.Undo(ctx))
	clk.Advance(DefaultSnapshotDelay)

	calls := st.PutSnapshotCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, []models.Stroke{stroke(1), stroke(2)}, calls[0].Snap.Strokes)

	// Удаленные события снимок не пишут
	s.ApplyRemote(events.StrokeAdded{Stroke: stroke(9)})
	clk.Advance(DefaultSnapshotDelay)
	assert.Len(t, st.PutSnapshotCalls(), 1)
}

func TestStrokes_SnapshotCarriesPosition(t *testing.T) {
	st := newSnapshotStore()
	clk := clock.Fake(time.Unix(0, 0))
	writer := NewSnapshotWriter(st, "board-1", clk, 0, testLogger())
	s := NewStrokes("board-1", publishCounter(new([]string)), writer, testLogger())
	ctx := context.Background()

	s.SetPosition(SnapshotMark{Epoch: "e1", Serial: 2, Writer: "me"})
	name, data, err := events.EncodeStroke(events.StrokeAdded{Stroke: stroke(1)})
	require.NoError(t, err)
	s.HandleMessage(channel.Message{Topic: events.TopicStrokes, Event: name, Data: data, Serial: 5, ClientID: "other"})
	require.NoError(t, s.AddStroke(ctx, stroke(2)))
	clk.Advance(DefaultSnapshotDelay)

	calls := st.PutSnapshotCalls()
	require.Len(t, calls, 1)
	snap := calls[0].Snap
	assert.Equal(t, "e1", snap.Epoch)
	assert.Equal(t, uint64(5), snap.Serial)
	assert.Equal(t, "me", snap.Writer)
	assert.Equal(t, []models.Stroke{stroke(1), stroke(2)}, snap.Strokes)
	assert.True(t, snap.Covers("e1", 5, "other"))
	assert.True(t, snap.Covers("e1", 6, "me"))
	assert.False(t, snap.Covers("e1", 6, "other"))
	assert.False(t, snap.Covers("e2", 1, "me"))
}
