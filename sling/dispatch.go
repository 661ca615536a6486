package sling

import (
	"strings"
	"time"
)

// FrameWriter is the outbound half of a channel
type FrameWriter interface {
	WriteFrame(b []byte) error
}

// Dispatcher encodes local user intents into outbound frames. every intent
// is validated against the store's current state first; a failed
// precondition drops the intent with a log line, nothing is surfaced to the
// caller. sends never gate the optimistic local mutations, and there is no
// rollback if a send fails.
type Dispatcher struct {
	store *StateStore

	messageChannel FrameWriter
	actionChannel  FrameWriter

	log LogFunction
}

func NewDispatcher(store *StateStore, messageChannel FrameWriter, actionChannel FrameWriter) *Dispatcher {
	return &Dispatcher{
		store:          store,
		messageChannel: messageChannel,
		actionChannel:  actionChannel,
		log:            LogFn(LogLevelInfo, "[intent]"),
	}
}

// SendMessage sends the body to the focused room with a client-generated
// timestamp
func (self *Dispatcher) SendMessage(body string) {
	if strings.TrimSpace(body) == "" {
		self.log("drop send: blank body")
		return
	}
	user := self.store.CurrentUser()
	room := self.store.CurrentRoom()
	if user == nil || room == nil {
		self.log("drop send: no user or no focused room")
		return
	}

	b, err := EncodeMessage(&OutboundMessage{
		MessageType: MessageTypeMessage,
		UserId:      user.Id,
		RoomId:      room.Id,
		Time:        time.Now().UTC(),
		Body:        body,
	})
	if err != nil {
		self.log("drop send: %s", err)
		return
	}
	if err := self.messageChannel.WriteFrame(b); err != nil {
		self.log("send write failed: %s", err)
	}
}

// ChangeRoom focuses `next` locally and tells the server. the local focus
// change is not gated on any server acknowledgment.
func (self *Dispatcher) ChangeRoom(next Room) {
	user := self.store.CurrentUser()
	if user == nil {
		self.log("drop change room: no user")
		return
	}

	curRoomId := 0
	if cur := self.store.CurrentRoom(); cur != nil {
		if next.Id == cur.Id {
			return
		}
		curRoomId = cur.Id
	}

	self.store.SetFocusedRoom(next)

	b, err := EncodeAction(&OutboundAction{
		ActionType: ActionTypeChangeRoom,
		UserId:     user.Id,
		RoomId:     curRoomId,
		NewRoomId:  next.Id,
	})
	if err != nil {
		self.log("drop change room: %s", err)
		return
	}
	if err := self.actionChannel.WriteFrame(b); err != nil {
		self.log("change room write failed: %s", err)
	}
}

// CreateRoom asks the server to create a room. the room lands in the store
// when the `new_room` action comes back.
func (self *Dispatcher) CreateRoom(name string) {
	user := self.store.CurrentUser()
	if user == nil {
		self.log("drop create room: no user")
		return
	}

	b, err := EncodeAction(&OutboundAction{
		ActionType:  ActionTypeCreateRoom,
		UserId:      user.Id,
		NewRoomName: name,
	})
	if err != nil {
		self.log("drop create room: %s", err)
		return
	}
	if err := self.actionChannel.WriteFrame(b); err != nil {
		self.log("create room write failed: %s", err)
	}
}

// StartDm asks the server for a two-party room with the target user. the
// room lands in the store, already focused, when the `create_dm` action
// comes back.
func (self *Dispatcher) StartDm(target User) {
	user := self.store.CurrentUser()
	if user == nil {
		self.log("drop start dm: no user")
		return
	}
	if target.Id == 0 {
		self.log("drop start dm: no target user id")
		return
	}

	curRoomId := 0
	if cur := self.store.CurrentRoom(); cur != nil {
		curRoomId = cur.Id
	}

	b, err := EncodeAction(&OutboundAction{
		ActionType: ActionTypeCreateDm,
		UserId:     user.Id,
		RoomId:     curRoomId,
		DmUserId:   target.Id,
	})
	if err != nil {
		self.log("drop start dm: %s", err)
		return
	}
	if err := self.actionChannel.WriteFrame(b); err != nil {
		self.log("start dm write failed: %s", err)
	}
}

// JoinRoom marks the room joined locally and tells the server. no-op if
// already joined.
func (self *Dispatcher) JoinRoom(next Room) {
	if stored, ok := self.store.RoomById(next.Id); ok {
		next = stored
	}
	if next.HasJoined {
		return
	}

	user := self.store.CurrentUser()
	if user == nil {
		self.log("drop join room: no user")
		return
	}

	curRoomId := 0
	if cur := self.store.CurrentRoom(); cur != nil {
		if next.Id == cur.Id {
			return
		}
		curRoomId = cur.Id
	}

	b, err := EncodeAction(&OutboundAction{
		ActionType: ActionTypeJoinRoom,
		UserId:     user.Id,
		RoomId:     curRoomId,
		NewRoomId:  next.Id,
	})
	if err != nil {
		self.log("drop join room: %s", err)
		return
	}
	if err := self.actionChannel.WriteFrame(b); err != nil {
		self.log("join room write failed: %s", err)
	}

	self.store.MarkJoined(next.Id)
}
