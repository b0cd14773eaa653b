package hub

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/pkg/api"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

// Conn is one client connection to a board.
type Conn struct {
	hub      *Hub
	outbox   chan api.Frame
	done     chan struct{}
	boardID  string
	clientID string
	role     models.Role
	once     sync.Once
}

func newConn(h *Hub, boardID, clientID string, role models.Role) *Conn {
	return &Conn{
		hub:      h,
		boardID:  boardID,
		clientID: clientID,
		role:     role,
		outbox:   make(chan api.Frame, sendBuffer),
		done:     make(chan struct{}),
	}
}

// ClientID returns the id the hub assigned to the connection.
func (c *Conn) ClientID() string { return c.clientID }

// Role returns the role the connection was opened with.
func (c *Conn) Role() models.Role { return c.role }

// Outbox delivers the frames addressed to the client.
func (c *Conn) Outbox() <-chan api.Frame { return c.outbox }

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// send queues f without blocking. A client that does not keep up is
// disconnected.
func (c *Conn) send(f api.Frame) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.outbox <- f:
	default:
		c.hub.logger.Warn("Client too slow, closing connection", "board_id", c.boardID, "client_id", c.clientID)
		c.kill()
	}
}

func (c *Conn) kill() {
	c.once.Do(func() { close(c.done) })
}

// Close detaches the connection from the hub. Its presence membership is
// dropped and announced to the board.
func (c *Conn) Close() {
	c.kill()
	c.hub.detach(c)
}

// Hello is the first frame of every connection; it carries the client id
// and the relay epoch.
func (c *Conn) Hello() api.Frame {
	return api.Frame{Type: api.FrameAck, Member: &api.Member{ClientID: c.clientID}, Epoch: c.hub.epoch}
}

// Handle processes a frame received from the client. Replies are queued on
// the outbox.
func (c *Conn) Handle(f api.Frame) {
	h := c.hub
	switch f.Type {
	case api.FrameSubscribe:
		if err := h.subscribe(c, f.Topic); err != nil {
			c.fail(f, err)
			return
		}
		c.send(api.Frame{Type: api.FrameAck, Ref: f.Ref, Topic: f.Topic})

	case api.FrameUnsubscribe:
		h.unsubscribe(c, f.Topic)
		c.send(api.Frame{Type: api.FrameAck, Ref: f.Ref, Topic: f.Topic})

	case api.FramePublish:
		msg, err := h.publish(c, f.Topic, f.Event, f.Data)
		if err != nil {
			c.fail(f, err)
			return
		}
		c.send(api.Frame{Type: api.FrameAck, Ref: f.Ref, Topic: f.Topic, Message: &msg})

	case api.FrameHistory:
		messages, err := h.history(c, f.Topic, f.Limit, f.Direction)
		if err != nil {
			c.fail(f, err)
			return
		}
		c.send(api.Frame{Type: api.FrameHistory, Ref: f.Ref, Topic: f.Topic, Messages: messages, Epoch: h.epoch})

	case api.FramePresenceEnter, api.FramePresenceUpdate:
		if f.Member == nil {
			c.fail(f, errors.New("member is required"))
			return
		}
		h.setMember(c, *f.Member)
		c.send(api.Frame{Type: api.FrameAck, Ref: f.Ref})

	case api.FramePresenceLeave:
		h.leaveMember(c)
		c.send(api.Frame{Type: api.FrameAck, Ref: f.Ref})

	case api.FramePresenceGet:
		c.send(api.Frame{Type: api.FramePresenceMembers, Ref: f.Ref, Members: h.members(c.boardID)})

	default:
		c.fail(f, errors.New("unknown frame type "+string(f.Type)))
	}
}

func (c *Conn) fail(f api.Frame, err error) {
	code := http.StatusBadRequest
	if errors.Is(err, ErrReadOnly) {
		code = http.StatusForbidden
	}
	c.hub.logger.Debug("Rejected frame", "board_id", c.boardID, "client_id", c.clientID,
		"type", f.Type, "topic", f.Topic, "error", err)
	c.send(api.Frame{Type: api.FrameError, Ref: f.Ref, Topic: f.Topic, Error: err.Error(), Code: code})
}

// Serve runs the connection over ws until either side closes it. The hello
// frame is written first.
func (c *Conn) Serve(ws *websocket.Conn) {
	defer c.Close()

	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(c.Hello()); err != nil {
		c.hub.logger.Debug("Failed to write hello", "client_id", c.clientID, "error", err)
		ws.Close()
		return
	}

	go c.writePump(ws)
	c.readPump(ws)
}

func (c *Conn) readPump(ws *websocket.Conn) {
	defer ws.Close()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f api.Frame
		if err := ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Debug("Connection closed unexpectedly", "client_id", c.clientID, "error", err)
			}
			return
		}
		c.Handle(f)

		select {
		case <-c.done:
			return
		default:
		}
	}
}

func (c *Conn) writePump(ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case f := <-c.outbox:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(f); err != nil {
				c.kill()
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.kill()
				return
			}
		case <-c.done:
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
