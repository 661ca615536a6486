package sling

import (
	"encoding/json"
	"fmt"
	"time"
)

// the wire format is JSON text frames with field casing fixed by the server.
// each channel direction has a closed set of frame shapes, discriminated by
// a type tag (`messageType` on the message channel, `actionType` on the
// action channel). frames are decoded once here at the boundary; everything
// past this point works with the typed variants.

const (
	MessageTypeMessage      = "message"
	MessageTypeNewMessage   = "new_message"
	MessageTypeNotification = "notification"
)

const (
	ActionTypeMessageHistory = "message_history"
	ActionTypeCreateDm       = "create_dm"
	ActionTypeNewUser        = "new_user"
	ActionTypeNewRoom        = "new_room"
	ActionTypeChangeRoom     = "change_room"
	ActionTypeCreateRoom     = "create_room"
	ActionTypeJoinRoom       = "join_room"
)

// a frame that cannot be decoded is dropped and logged, never fatal to the
// channel
type DecodeError struct {
	Tag    string
	Reason string
}

func (self *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", self.Tag, self.Reason)
}

// message channel inbound

type NewMessageFrame struct {
	UserId   int
	UserName string
	Time     time.Time
	Body     string
}

type NotificationFrame struct {
	RoomId int
}

// action channel inbound

type HistoryMessage struct {
	Id       int       `json:"id"`
	UserId   int       `json:"userID"`
	UserName string    `json:"userName"`
	Time     time.Time `json:"time"`
	Body     string    `json:"body"`
}

type MessageHistoryFrame struct {
	Messages []HistoryMessage
}

type CreateDmFrame struct {
	RoomId   int
	RoomName string
	UserId   int
}

type NewUserFrame struct {
	UserId   int
	UserName string
}

type NewRoomFrame struct {
	RoomId   int
	RoomName string
	UserId   int
}

// pointer fields so that absent and null required fields can be rejected
type messageEnvelope struct {
	MessageType string     `json:"messageType"`
	UserId      *int       `json:"userID"`
	UserName    *string    `json:"userName"`
	Time        *time.Time `json:"time"`
	Body        *string    `json:"body"`
	RoomId      *int       `json:"roomID"`
}

type actionEnvelope struct {
	ActionType     string           `json:"actionType"`
	RoomId         *int             `json:"roomID"`
	RoomName       *string          `json:"roomName"`
	UserId         *int             `json:"userID"`
	UserName       *string          `json:"userName"`
	MessageHistory []HistoryMessage `json:"messageHistory"`
}

// DecodeMessageFrame parses one inbound frame from the message channel.
// the result is one of *NewMessageFrame, *NotificationFrame.
func DecodeMessageFrame(b []byte) (any, error) {
	var envelope messageEnvelope
	if err := json.Unmarshal(b, &envelope); err != nil {
		return nil, &DecodeError{Tag: "message", Reason: err.Error()}
	}
	switch envelope.MessageType {
	case MessageTypeNewMessage:
		if envelope.Body == nil {
			return nil, &DecodeError{Tag: MessageTypeNewMessage, Reason: "null body"}
		}
		if envelope.UserId == nil {
			return nil, &DecodeError{Tag: MessageTypeNewMessage, Reason: "null userID"}
		}
		if envelope.Time == nil {
			return nil, &DecodeError{Tag: MessageTypeNewMessage, Reason: "null time"}
		}
		frame := &NewMessageFrame{
			UserId: *envelope.UserId,
			Time:   *envelope.Time,
			Body:   *envelope.Body,
		}
		if envelope.UserName != nil {
			frame.UserName = *envelope.UserName
		}
		return frame, nil
	case MessageTypeNotification:
		if envelope.RoomId == nil {
			return nil, &DecodeError{Tag: MessageTypeNotification, Reason: "null roomID"}
		}
		return &NotificationFrame{
			RoomId: *envelope.RoomId,
		}, nil
	default:
		return nil, &DecodeError{Tag: envelope.MessageType, Reason: "unknown message type"}
	}
}

// DecodeActionFrame parses one inbound frame from the action channel.
// the result is one of *MessageHistoryFrame, *CreateDmFrame, *NewUserFrame,
// *NewRoomFrame.
func DecodeActionFrame(b []byte) (any, error) {
	var envelope actionEnvelope
	if err := json.Unmarshal(b, &envelope); err != nil {
		return nil, &DecodeError{Tag: "action", Reason: err.Error()}
	}
	switch envelope.ActionType {
	case ActionTypeMessageHistory:
		if envelope.MessageHistory == nil {
			return nil, &DecodeError{Tag: ActionTypeMessageHistory, Reason: "null messageHistory"}
		}
		return &MessageHistoryFrame{
			Messages: envelope.MessageHistory,
		}, nil
	case ActionTypeCreateDm:
		if envelope.RoomName == nil {
			return nil, &DecodeError{Tag: ActionTypeCreateDm, Reason: "null roomName"}
		}
		if envelope.RoomId == nil {
			return nil, &DecodeError{Tag: ActionTypeCreateDm, Reason: "null roomID"}
		}
		if envelope.UserId == nil {
			return nil, &DecodeError{Tag: ActionTypeCreateDm, Reason: "null userID"}
		}
		return &CreateDmFrame{
			RoomId:   *envelope.RoomId,
			RoomName: *envelope.RoomName,
			UserId:   *envelope.UserId,
		}, nil
	case ActionTypeNewUser:
		if envelope.UserId == nil {
			return nil, &DecodeError{Tag: ActionTypeNewUser, Reason: "null userID"}
		}
		frame := &NewUserFrame{
			UserId: *envelope.UserId,
		}
		if envelope.UserName != nil {
			frame.UserName = *envelope.UserName
		}
		return frame, nil
	case ActionTypeNewRoom:
		if envelope.RoomName == nil {
			return nil, &DecodeError{Tag: ActionTypeNewRoom, Reason: "null roomName"}
		}
		if envelope.RoomId == nil {
			return nil, &DecodeError{Tag: ActionTypeNewRoom, Reason: "null roomID"}
		}
		if envelope.UserId == nil {
			return nil, &DecodeError{Tag: ActionTypeNewRoom, Reason: "null userID"}
		}
		return &NewRoomFrame{
			RoomId:   *envelope.RoomId,
			RoomName: *envelope.RoomName,
			UserId:   *envelope.UserId,
		}, nil
	default:
		return nil, &DecodeError{Tag: envelope.ActionType, Reason: "unknown action type"}
	}
}

// outbound

// OutboundAction is the single envelope used for all outbound action kinds.
// unused fields stay zero on the wire. the server expects this exact shape
// for every action, so it is kept uniform rather than split per kind.
type OutboundAction struct {
	ActionType  string `json:"actionType"`
	UserId      int    `json:"userID"`
	RoomId      int    `json:"roomID"`
	NewRoomId   int    `json:"newRoomID"`
	DmUserId    int    `json:"dmUserID"`
	NewRoomName string `json:"newRoomName"`
}

type OutboundMessage struct {
	MessageType string    `json:"messageType"`
	UserId      int       `json:"userID"`
	RoomId      int       `json:"roomID"`
	Time        time.Time `json:"time"`
	Body        string    `json:"body"`
}

// the first frame on every channel, and the only authentication step
type authFrame struct {
	JwtToken string `json:"jwt_token"`
}

func EncodeAction(action *OutboundAction) ([]byte, error) {
	return json.Marshal(action)
}

func EncodeMessage(message *OutboundMessage) ([]byte, error) {
	return json.Marshal(message)
}

func EncodeAuth(token string) ([]byte, error) {
	return json.Marshal(&authFrame{
		JwtToken: token,
	})
}
