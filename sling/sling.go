package sling

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// identity keys for users and rooms are the server's integer ids.
// messages get a local identity (see MessageId) because the live message
// stream carries no usable message id.

type User struct {
	Id       int
	Username string
	// Token is only set for the locally authenticated user.
	// other users' tokens are never retrievable.
	Token string
}

type Room struct {
	Id              int
	Name            string
	HasJoined       bool
	HasNotification bool
	IsDm            bool
}

type Message struct {
	MessageId MessageId
	// ServerId is the id carried by history frames.
	// live `new_message` frames carry none (the server reuses the sender's
	// user id there, which collides across senders), so it is advisory only.
	ServerId int
	UserId   int
	Username string
	Time     time.Time
	Body     string
}

// comparable
type MessageId [16]byte

func NewMessageId() MessageId {
	return MessageId(ulid.Make())
}

func (self MessageId) String() string {
	return ulid.ULID(self).String()
}

type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateErrored
)

func (self ConnectionState) String() string {
	switch self {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("unknown(%d)", int(self))
	}
}
