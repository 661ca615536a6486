package sling

import (
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// the canonical session state. both channel pumps and the intent dispatcher
// mutate it, so every mutation takes the one store lock and frames from the
// two channels serialize against each other here. listeners are notified
// after the lock is released, in mutation order.

type StoreEventType int

const (
	EventSeeded StoreEventType = iota
	EventMessageAppended
	EventHistoryReplaced
	EventNotification
	EventUserAdded
	EventRoomAdded
	EventRoomJoined
	EventRoomFocused
)

// StoreEvent carries a copy of the changed entity so listeners never see a
// live pointer into the store
type StoreEvent struct {
	Type    StoreEventType
	User    *User
	Room    *Room
	Message *Message
}

type StoreListener func(event StoreEvent)

type StateStore struct {
	mutex sync.Mutex

	users map[int]*User
	rooms map[int]*Room
	// history of the focused room. replaced wholesale when a
	// `message_history` frame arrives for the new room
	messages []*Message
	curUser  *User
	curRoom  *Room

	listeners *CallbackList[StoreListener]

	log LogFunction
}

func NewStateStore() *StateStore {
	return &StateStore{
		users:     map[int]*User{},
		rooms:     map[int]*Room{},
		listeners: NewCallbackList[StoreListener](),
		log:       LogFn(LogLevelInfo, "[store]"),
	}
}

// AddListener registers an observer. the returned function removes it.
func (self *StateStore) AddListener(listener StoreListener) func() {
	return self.listeners.Add(listener)
}

func (self *StateStore) notify(events []StoreEvent) {
	for _, event := range events {
		event := event
		for _, listener := range self.listeners.Get() {
			listener := listener
			HandleError(func() {
				listener(event)
			})
		}
	}
}

// SeedFromSnapshot installs the bootstrap results as the entire initial
// state. called once, only after all three bootstrap fetches succeeded.
func (self *StateStore) SeedFromSnapshot(user User, users []User, rooms []Room) {
	self.mutex.Lock()
	self.users = map[int]*User{}
	self.rooms = map[int]*Room{}
	self.messages = nil
	self.curRoom = nil
	curUser := user
	self.curUser = &curUser
	self.users[user.Id] = &curUser
	for i := range users {
		u := users[i]
		if _, ok := self.users[u.Id]; !ok {
			self.users[u.Id] = &u
		}
	}
	for i := range rooms {
		r := rooms[i]
		self.rooms[r.Id] = &r
	}
	self.mutex.Unlock()

	eventUser := user
	self.notify([]StoreEvent{{
		Type: EventSeeded,
		User: &eventUser,
	}})
}

// AppendMessage inserts into the focused room's history preserving
// non-decreasing time order. ties keep arrival order.
func (self *StateStore) AppendMessage(m Message) {
	self.mutex.Lock()
	events := self.appendMessageLocked(m)
	self.mutex.Unlock()
	self.notify(events)
}

func (self *StateStore) appendMessageLocked(m Message) []StoreEvent {
	if (m.MessageId == MessageId{}) {
		m.MessageId = NewMessageId()
	}
	i := len(self.messages)
	for 0 < i && m.Time.Before(self.messages[i-1].Time) {
		i -= 1
	}
	stored := m
	self.messages = slices.Insert(self.messages, i, &stored)
	eventMessage := m
	return []StoreEvent{{
		Type:    EventMessageAppended,
		Message: &eventMessage,
	}}
}

// ReplaceHistory replaces the focused room's history wholesale. the frames
// carry no room id; history always describes the room just focused.
func (self *StateStore) ReplaceHistory(messages []Message) {
	self.mutex.Lock()
	events := self.replaceHistoryLocked(messages)
	self.mutex.Unlock()
	self.notify(events)
}

func (self *StateStore) replaceHistoryLocked(messages []Message) []StoreEvent {
	sorted := make([]*Message, 0, len(messages))
	for i := range messages {
		m := messages[i]
		if (m.MessageId == MessageId{}) {
			m.MessageId = NewMessageId()
		}
		sorted = append(sorted, &m)
	}
	slices.SortStableFunc(sorted, func(a *Message, b *Message) int {
		return a.Time.Compare(b.Time)
	})
	self.messages = sorted
	event := StoreEvent{
		Type: EventHistoryReplaced,
	}
	if self.curRoom != nil {
		eventRoom := *self.curRoom
		event.Room = &eventRoom
	}
	return []StoreEvent{event}
}

// MarkNotification sets the unread flag. no-op if the room is unknown.
func (self *StateStore) MarkNotification(roomId int) {
	self.mutex.Lock()
	events := self.markNotificationLocked(roomId)
	self.mutex.Unlock()
	self.notify(events)
}

func (self *StateStore) markNotificationLocked(roomId int) []StoreEvent {
	room, ok := self.rooms[roomId]
	if !ok {
		self.log("notification for unknown room %d", roomId)
		return nil
	}
	room.HasNotification = true
	eventRoom := *room
	return []StoreEvent{{
		Type: EventNotification,
		Room: &eventRoom,
	}}
}

// UpsertUser inserts if the id is unseen. an existing entry is left
// unchanged (first write wins).
func (self *StateStore) UpsertUser(u User) {
	self.mutex.Lock()
	events := self.upsertUserLocked(u)
	self.mutex.Unlock()
	self.notify(events)
}

func (self *StateStore) upsertUserLocked(u User) []StoreEvent {
	if _, ok := self.users[u.Id]; ok {
		return nil
	}
	stored := u
	self.users[u.Id] = &stored
	eventUser := u
	return []StoreEvent{{
		Type: EventUserAdded,
		User: &eventUser,
	}}
}

// UpsertRoom inserts if the id is unseen, first write wins.
func (self *StateStore) UpsertRoom(r Room) {
	self.mutex.Lock()
	events := self.upsertRoomLocked(r)
	self.mutex.Unlock()
	self.notify(events)
}

func (self *StateStore) upsertRoomLocked(r Room) []StoreEvent {
	if _, ok := self.rooms[r.Id]; ok {
		return nil
	}
	stored := r
	self.rooms[r.Id] = &stored
	eventRoom := r
	return []StoreEvent{{
		Type: EventRoomAdded,
		Room: &eventRoom,
	}}
}

// MarkJoined is the optimistic local half of a join intent. no-op if the
// room is unknown or already joined.
func (self *StateStore) MarkJoined(roomId int) {
	self.mutex.Lock()
	events := self.markJoinedLocked(roomId)
	self.mutex.Unlock()
	self.notify(events)
}

func (self *StateStore) markJoinedLocked(roomId int) []StoreEvent {
	room, ok := self.rooms[roomId]
	if !ok || room.HasJoined {
		return nil
	}
	room.HasJoined = true
	eventRoom := *room
	return []StoreEvent{{
		Type: EventRoomJoined,
		Room: &eventRoom,
	}}
}

// SetFocusedRoom updates the focused room. no server round trip is implied
// by this call alone.
func (self *StateStore) SetFocusedRoom(r Room) {
	self.mutex.Lock()
	events := self.setFocusedRoomLocked(r)
	self.mutex.Unlock()
	self.notify(events)
}

func (self *StateStore) setFocusedRoomLocked(r Room) []StoreEvent {
	if stored, ok := self.rooms[r.Id]; ok {
		self.curRoom = stored
	} else {
		focused := r
		self.curRoom = &focused
	}
	eventRoom := *self.curRoom
	return []StoreEvent{{
		Type: EventRoomFocused,
		Room: &eventRoom,
	}}
}

// ApplyMessageFrame reconciles one decoded message-channel frame
func (self *StateStore) ApplyMessageFrame(frame any) {
	switch v := frame.(type) {
	case *NewMessageFrame:
		self.AppendMessage(Message{
			UserId:   v.UserId,
			Username: v.UserName,
			Time:     v.Time,
			Body:     v.Body,
		})
	case *NotificationFrame:
		self.MarkNotification(v.RoomId)
	default:
		self.log("unknown message frame %T", frame)
	}
}

// ApplyActionFrame reconciles one decoded action-channel frame. composite
// updates (dm create plus focus) happen under one lock so readers never see
// the room without its focus.
func (self *StateStore) ApplyActionFrame(frame any) {
	switch v := frame.(type) {
	case *MessageHistoryFrame:
		messages := make([]Message, 0, len(v.Messages))
		for _, h := range v.Messages {
			messages = append(messages, Message{
				ServerId: h.Id,
				UserId:   h.UserId,
				Username: h.UserName,
				Time:     h.Time,
				Body:     h.Body,
			})
		}
		self.ReplaceHistory(messages)
	case *CreateDmFrame:
		self.mutex.Lock()
		events := self.upsertRoomLocked(Room{
			Id:        v.RoomId,
			Name:      v.RoomName,
			HasJoined: true,
			IsDm:      true,
		})
		// a dm targeted at the local user becomes the focused room
		if self.curUser != nil && v.UserId == self.curUser.Id {
			events = append(events, self.setFocusedRoomLocked(Room{Id: v.RoomId})...)
		}
		self.mutex.Unlock()
		self.notify(events)
	case *NewUserFrame:
		self.UpsertUser(User{
			Id:       v.UserId,
			Username: v.UserName,
		})
	case *NewRoomFrame:
		self.mutex.Lock()
		hasJoined := self.curUser != nil && v.UserId == self.curUser.Id
		events := self.upsertRoomLocked(Room{
			Id:        v.RoomId,
			Name:      v.RoomName,
			HasJoined: hasJoined,
		})
		self.mutex.Unlock()
		self.notify(events)
	default:
		self.log("unknown action frame %T", frame)
	}
}

// read-only snapshots

func (self *StateStore) CurrentUser() *User {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.curUser == nil {
		return nil
	}
	user := *self.curUser
	return &user
}

func (self *StateStore) CurrentRoom() *Room {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.curRoom == nil {
		return nil
	}
	room := *self.curRoom
	return &room
}

func (self *StateStore) RoomById(roomId int) (Room, bool) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	room, ok := self.rooms[roomId]
	if !ok {
		return Room{}, false
	}
	return *room, true
}

func (self *StateStore) Users() []User {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	ids := maps.Keys(self.users)
	slices.Sort(ids)
	users := make([]User, 0, len(ids))
	for _, id := range ids {
		users = append(users, *self.users[id])
	}
	return users
}

func (self *StateStore) Rooms() []Room {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	ids := maps.Keys(self.rooms)
	slices.Sort(ids)
	rooms := make([]Room, 0, len(ids))
	for _, id := range ids {
		rooms = append(rooms, *self.rooms[id])
	}
	return rooms
}

func (self *StateStore) Messages() []Message {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	messages := make([]Message, 0, len(self.messages))
	for _, m := range self.messages {
		messages = append(messages, *m)
	}
	return messages
}
