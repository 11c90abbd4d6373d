package ws

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/folkengine/goname"
	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
	"github.com/tcriess/lightspeed-poker/globals"
	"github.com/tcriess/lightspeed-poker/room"
	"github.com/tcriess/lightspeed-poker/types"
)

const (
	maxMessageSize  = 4096
	pongWait        = 2 * time.Minute
	pingPeriod      = time.Minute
	writeWait       = 10 * time.Second
	sendChannelSize = 256
)

// Client is the middleman between one websocket connection and the
// room sessions. One connection is one participant which may be joined
// to at most one room at a time.
type Client struct {
	registry *room.Registry

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	user *types.User

	// the session the participant is currently joined to, accessed
	// from the read loop only
	session *room.Session

	doneChan chan struct{}
}

func NewClient(registry *room.Registry, conn *websocket.Conn, user *types.User) *Client {
	return &Client{
		registry: registry,
		conn:     conn,
		Send:     make(chan []byte, sendChannelSize),
		user:     user,
		doneChan: make(chan struct{}),
	}
}

// Deliver implements room.Receiver. It never blocks: a connection
// whose send buffer is full misses the message, which the session
// logs. The Send channel is never closed, the write loop exits via
// doneChan, so concurrent deliveries during a disconnect are safe.
func (c *Client) Deliver(message []byte) bool {
	select {
	case <-c.doneChan:
		return false
	default:
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

// ReadLoop pumps messages from the websocket connection to the room
// sessions.
//
// The application runs ReadLoop in a per-connection goroutine. The
// application ensures that there is at most one reader on a connection
// by executing all reads from this goroutine.
func (c *Client) ReadLoop() {
	defer func() {
		// an abrupt disconnect counts as an explicit leave
		c.leaveCurrent()
		c.conn.Close()
		close(c.doneChan)
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				globals.AppLogger.Info("ws closed unexpected", "error", err)
			}
			return
		}

		message := &types.WebsocketMessage{}
		err = json.Unmarshal(raw, message)
		if err != nil {
			globals.AppLogger.Info("could not unmarshal ws message", "error", err)
			c.sendError(fmt.Errorf("malformed message: %w", err))
			continue
		}
		c.dispatch(message)
	}
}

// dispatch routes one incoming event to its session. Every failure is
// reported back to this participant only, never broadcast and never
// fatal for the connection.
func (c *Client) dispatch(message *types.WebsocketMessage) {
	switch message.Event {
	case types.EventJoinRoom:
		msg := types.JoinRoomMessage{}
		if !c.decode(message.Data, &msg) {
			return
		}
		c.handleJoin(msg)

	case types.EventLeaveRoom:
		msg := types.RoomRefMessage{}
		if !c.decode(message.Data, &msg) {
			return
		}
		s, ok := c.registry.Get(msg.RoomId)
		if !ok {
			c.sendError(room.ErrRoomNotFound)
			return
		}
		if err := s.Leave(c.user.Id); err != nil {
			c.sendError(err)
			return
		}
		if c.session == s {
			c.session = nil
		}

	case types.EventSubmitVote:
		msg := types.SubmitVoteMessage{}
		if !c.decode(message.Data, &msg) {
			return
		}
		s, ok := c.registry.Get(msg.RoomId)
		if !ok {
			c.sendError(room.ErrRoomNotFound)
			return
		}
		if err := s.SubmitVote(c.user.Id, msg.Vote); err != nil {
			c.sendError(err)
		}

	case types.EventRevealVotes:
		msg := types.RoomRefMessage{}
		if !c.decode(message.Data, &msg) {
			return
		}
		s, ok := c.registry.Get(msg.RoomId)
		if !ok {
			c.sendError(room.ErrRoomNotFound)
			return
		}
		if err := s.Reveal(); err != nil {
			c.sendError(err)
		}

	case types.EventResetVotes:
		msg := types.RoomRefMessage{}
		if !c.decode(message.Data, &msg) {
			return
		}
		s, ok := c.registry.Get(msg.RoomId)
		if !ok {
			c.sendError(room.ErrRoomNotFound)
			return
		}
		if err := s.Reset(); err != nil {
			c.sendError(err)
		}

	case types.EventTest:
		c.send(types.EventTestResponse, types.TestResponseMessage{
			Message:      "Server received your message",
			Timestamp:    time.Now(),
			OriginalData: message.Data,
		})

	default:
		c.sendError(fmt.Errorf("unknown event: %s", message.Event))
	}
}

func (c *Client) handleJoin(msg types.JoinRoomMessage) {
	if msg.RoomId == "" {
		c.sendError(fmt.Errorf("room id required"))
		return
	}
	if c.session != nil && c.session.Id() != msg.RoomId {
		c.sendError(fmt.Errorf("already joined to room %s", c.session.Id()))
		return
	}
	name := strings.TrimSpace(msg.UserName)
	if name == "" {
		name = goname.New(goname.FantasyMap).FirstLast() + " (guest)"
	}
	for {
		s := c.registry.GetOrCreate(msg.RoomId)
		user, err := s.Join(c.user.Id, name, msg.IsSpectator, c)
		if err == room.ErrRoomClosed {
			// the session emptied between lookup and join
			continue
		}
		if err != nil {
			c.sendError(err)
			return
		}
		c.user = user
		c.session = s
		return
	}
}

func (c *Client) leaveCurrent() {
	if c.session == nil {
		return
	}
	if err := c.session.Leave(c.user.Id); err != nil && err != room.ErrNotAMember {
		globals.AppLogger.Error("could not leave room", "room", c.session.Id(), "error", err)
	}
	c.session = nil
}

// decode parses an event payload the way the payload structs declare
// it via their mapstructure tags.
func (c *Client) decode(data json.RawMessage, out interface{}) bool {
	payload := make(map[string]interface{})
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			c.sendError(fmt.Errorf("malformed payload: %w", err))
			return false
		}
	}
	if err := mapstructure.WeakDecode(payload, out); err != nil {
		c.sendError(fmt.Errorf("malformed payload: %w", err))
		return false
	}
	return true
}

func (c *Client) send(event string, payload interface{}) {
	message, err := types.NewWebsocketMessage(event, payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal event", "event", event, "error", err)
		return
	}
	if !c.Deliver(message) {
		globals.AppLogger.Warn("could not deliver event", "event", event, "user", c.user.Id)
	}
}

func (c *Client) sendError(err error) {
	c.send(types.EventError, types.ErrorMessage{Message: err.Error()})
}

// WriteLoop pumps messages from the sessions to the websocket
// connection.
//
// A goroutine running WriteLoop is started for each connection. The
// application ensures that there is at most one writer to a connection
// by executing all writes from this goroutine.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.doneChan:
			return
		}
	}
}
