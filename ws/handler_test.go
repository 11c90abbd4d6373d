package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-poker/config"
	"github.com/tcriess/lightspeed-poker/room"
	"github.com/tcriess/lightspeed-poker/types"
)

func newTestServer(t *testing.T) (*httptest.Server, *room.Registry) {
	cfg := &config.Config{
		HistoryConfig: config.HistoryConfig{HistorySize: 8},
	}
	registry := room.NewRegistry(cfg, nil, clockwork.NewRealClock())
	srv := httptest.NewServer(NewHandler(registry, nil))
	t.Cleanup(srv.Close)
	return srv, registry
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	message, err := types.NewWebsocketMessage(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, message))
}

func readEvent(t *testing.T, conn *websocket.Conn) types.WebsocketMessage {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	message := types.WebsocketMessage{}
	require.NoError(t, json.Unmarshal(raw, &message))
	return message
}

func TestVotingFlow(t *testing.T) {
	srv, registry := newTestServer(t)

	alice := dial(t, srv)
	sendEvent(t, alice, types.EventJoinRoom, types.JoinRoomMessage{RoomId: "r1", UserName: "Alice"})
	message := readEvent(t, alice)
	require.Equal(t, types.EventRoomUpdated, message.Event)
	snapshot := types.Room{}
	require.NoError(t, json.Unmarshal(message.Data, &snapshot))
	require.Len(t, snapshot.Users, 1)

	bob := dial(t, srv)
	sendEvent(t, bob, types.EventJoinRoom, types.JoinRoomMessage{RoomId: "r1", UserName: "Bob"})
	message = readEvent(t, bob)
	require.Equal(t, types.EventRoomUpdated, message.Event)
	snapshot = types.Room{}
	require.NoError(t, json.Unmarshal(message.Data, &snapshot))
	require.Len(t, snapshot.Users, 2)

	message = readEvent(t, alice)
	require.Equal(t, types.EventUserJoined, message.Event)
	joined := types.User{}
	require.NoError(t, json.Unmarshal(message.Data, &joined))
	assert.Equal(t, "Bob", joined.Name)

	// a submitted vote is announced without its value
	sendEvent(t, alice, types.EventSubmitVote, types.SubmitVoteMessage{RoomId: "r1", Vote: "5"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		message = readEvent(t, conn)
		require.Equal(t, types.EventVoteSubmitted, message.Event)
		payload := make(map[string]interface{})
		require.NoError(t, json.Unmarshal(message.Data, &payload))
		assert.NotContains(t, payload, "value")
	}
	sendEvent(t, bob, types.EventSubmitVote, types.SubmitVoteMessage{RoomId: "r1", Vote: "8"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		message = readEvent(t, conn)
		require.Equal(t, types.EventVoteSubmitted, message.Event)
	}

	sendEvent(t, alice, types.EventRevealVotes, types.RoomRefMessage{RoomId: "r1"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		message = readEvent(t, conn)
		require.Equal(t, types.EventVotesRevealed, message.Event)
		message = readEvent(t, conn)
		require.Equal(t, types.EventRoomUpdated, message.Event)
		snapshot = types.Room{}
		require.NoError(t, json.Unmarshal(message.Data, &snapshot))
		assert.True(t, snapshot.IsRevealed)
		require.Len(t, snapshot.Votes, 2)
		values := []string{snapshot.Votes[0].Value, snapshot.Votes[1].Value}
		assert.ElementsMatch(t, []string{"5", "8"}, values)
	}

	sendEvent(t, alice, types.EventLeaveRoom, types.RoomRefMessage{RoomId: "r1"})
	message = readEvent(t, bob)
	require.Equal(t, types.EventUserLeft, message.Event)

	sendEvent(t, bob, types.EventLeaveRoom, types.RoomRefMessage{RoomId: "r1"})
	require.Eventually(t, func() bool {
		_, ok := registry.Get("r1")
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDisconnectIsImplicitLeave(t *testing.T) {
	srv, registry := newTestServer(t)

	alice := dial(t, srv)
	sendEvent(t, alice, types.EventJoinRoom, types.JoinRoomMessage{RoomId: "drop", UserName: "Alice"})
	readEvent(t, alice)

	bob := dial(t, srv)
	sendEvent(t, bob, types.EventJoinRoom, types.JoinRoomMessage{RoomId: "drop", UserName: "Bob"})
	readEvent(t, bob)
	readEvent(t, alice)

	// no explicit leave-room: the transport drop must clear the member
	bob.Close()
	message := readEvent(t, alice)
	require.Equal(t, types.EventUserLeft, message.Event)

	s, ok := registry.Get("drop")
	require.True(t, ok)
	assert.Len(t, s.Snapshot().Users, 1)
}

func TestErrorsGoToCallerOnly(t *testing.T) {
	srv, _ := newTestServer(t)

	conn := dial(t, srv)
	sendEvent(t, conn, types.EventSubmitVote, types.SubmitVoteMessage{RoomId: "missing", Vote: "5"})
	message := readEvent(t, conn)
	require.Equal(t, types.EventError, message.Event)
	payload := types.ErrorMessage{}
	require.NoError(t, json.Unmarshal(message.Data, &payload))
	assert.Equal(t, room.ErrRoomNotFound.Error(), payload.Message)
}

func TestGuestNameAssigned(t *testing.T) {
	srv, _ := newTestServer(t)

	conn := dial(t, srv)
	sendEvent(t, conn, types.EventJoinRoom, types.JoinRoomMessage{RoomId: "guests"})
	message := readEvent(t, conn)
	require.Equal(t, types.EventRoomUpdated, message.Event)
	snapshot := types.Room{}
	require.NoError(t, json.Unmarshal(message.Data, &snapshot))
	require.Len(t, snapshot.Users, 1)
	assert.Contains(t, snapshot.Users[0].Name, "(guest)")
}

func TestTestEventEcho(t *testing.T) {
	srv, _ := newTestServer(t)

	conn := dial(t, srv)
	sendEvent(t, conn, types.EventTest, map[string]string{"hello": "world"})
	message := readEvent(t, conn)
	require.Equal(t, types.EventTestResponse, message.Event)
	payload := types.TestResponseMessage{}
	require.NoError(t, json.Unmarshal(message.Data, &payload))
	assert.Equal(t, "Server received your message", payload.Message)
	assert.JSONEq(t, `{"hello":"world"}`, string(payload.OriginalData))
}
