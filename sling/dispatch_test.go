package sling

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/assert/v2"
)

type captureWriter struct {
	frames [][]byte
}

func (self *captureWriter) WriteFrame(b []byte) error {
	self.frames = append(self.frames, b)
	return nil
}

func (self *captureWriter) decoded(t *testing.T, i int) map[string]any {
	var wire map[string]any
	err := json.Unmarshal(self.frames[i], &wire)
	assert.Equal(t, err, nil)
	return wire
}

func newTestDispatcher() (*Dispatcher, *StateStore, *captureWriter, *captureWriter) {
	store := seededStore()
	messages := &captureWriter{}
	actions := &captureWriter{}
	return NewDispatcher(store, messages, actions), store, messages, actions
}

func TestSendMessage(t *testing.T) {
	dispatcher, store, messages, _ := newTestDispatcher()

	// no focused room yet
	dispatcher.SendMessage("hello")
	assert.Equal(t, 0, len(messages.frames))

	store.SetFocusedRoom(Room{Id: 10})

	// blank bodies are dropped
	dispatcher.SendMessage("   ")
	assert.Equal(t, 0, len(messages.frames))

	dispatcher.SendMessage("hello")
	assert.Equal(t, 1, len(messages.frames))
	wire := messages.decoded(t, 0)
	assert.Equal(t, "message", wire["messageType"])
	assert.Equal(t, float64(1), wire["userID"])
	assert.Equal(t, float64(10), wire["roomID"])
	assert.Equal(t, "hello", wire["body"])
}

func TestSendMessageWithoutUser(t *testing.T) {
	store := NewStateStore()
	messages := &captureWriter{}
	dispatcher := NewDispatcher(store, messages, &captureWriter{})

	dispatcher.SendMessage("hello")
	assert.Equal(t, 0, len(messages.frames))
}

func TestChangeRoom(t *testing.T) {
	dispatcher, store, _, actions := newTestDispatcher()

	// first change: no previous room, wire roomID is 0
	dispatcher.ChangeRoom(Room{Id: 10})
	assert.Equal(t, 1, len(actions.frames))
	wire := actions.decoded(t, 0)
	assert.Equal(t, "change_room", wire["actionType"])
	assert.Equal(t, float64(0), wire["roomID"])
	assert.Equal(t, float64(10), wire["newRoomID"])
	// focus updated optimistically
	assert.Equal(t, 10, store.CurrentRoom().Id)

	// changing to the focused room is a no-op
	dispatcher.ChangeRoom(Room{Id: 10})
	assert.Equal(t, 1, len(actions.frames))

	dispatcher.ChangeRoom(Room{Id: 11})
	assert.Equal(t, 2, len(actions.frames))
	wire = actions.decoded(t, 1)
	assert.Equal(t, float64(10), wire["roomID"])
	assert.Equal(t, float64(11), wire["newRoomID"])
	assert.Equal(t, 11, store.CurrentRoom().Id)
}

func TestCreateRoom(t *testing.T) {
	dispatcher, _, _, actions := newTestDispatcher()

	dispatcher.CreateRoom("lounge")
	assert.Equal(t, 1, len(actions.frames))
	wire := actions.decoded(t, 0)
	assert.Equal(t, "create_room", wire["actionType"])
	assert.Equal(t, "lounge", wire["newRoomName"])
	assert.Equal(t, float64(0), wire["newRoomID"])
}

func TestStartDm(t *testing.T) {
	dispatcher, store, _, actions := newTestDispatcher()
	store.SetFocusedRoom(Room{Id: 10})

	// zero target id is dropped
	dispatcher.StartDm(User{})
	assert.Equal(t, 0, len(actions.frames))

	dispatcher.StartDm(User{Id: 2, Username: "bob"})
	assert.Equal(t, 1, len(actions.frames))
	wire := actions.decoded(t, 0)
	assert.Equal(t, "create_dm", wire["actionType"])
	assert.Equal(t, float64(2), wire["dmUserID"])
	assert.Equal(t, float64(10), wire["roomID"])
}

func TestJoinRoom(t *testing.T) {
	dispatcher, store, _, actions := newTestDispatcher()

	// already joined: no frame, no state change
	dispatcher.JoinRoom(Room{Id: 10})
	assert.Equal(t, 0, len(actions.frames))

	dispatcher.JoinRoom(Room{Id: 11})
	assert.Equal(t, 1, len(actions.frames))
	wire := actions.decoded(t, 0)
	assert.Equal(t, "join_room", wire["actionType"])
	assert.Equal(t, float64(11), wire["newRoomID"])

	// joined optimistically, so a second join is a no-op
	room, _ := store.RoomById(11)
	assert.Equal(t, true, room.HasJoined)
	dispatcher.JoinRoom(Room{Id: 11})
	assert.Equal(t, 1, len(actions.frames))
}
