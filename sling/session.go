package sling

import (
	"context"
	"errors"
)

// ErrLoggedOut means no token is available. bootstrap is never attempted.
var ErrLoggedOut = errors.New("logged out")

type SessionSettings struct {
	ApiUrl          string
	MessagesUrl     string
	ActionsUrl      string
	ChannelSettings *ChannelSettings
}

func DefaultSessionSettings() *SessionSettings {
	return &SessionSettings{
		ApiUrl:          "http://localhost:8888",
		MessagesUrl:     "ws://localhost:8888/api/stream/messages",
		ActionsUrl:      "ws://localhost:8888/api/stream/actions",
		ChannelSettings: DefaultChannelSettings(),
	}
}

// Session orchestrates one live chat session: bootstrap the snapshot, seed
// the store, then open the two channels in order. the ui layer consumes the
// store's observer surface and drives the dispatcher's intent surface; it
// never touches state directly.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	token string

	api   *SlingApi
	store *StateStore

	messageChannel *Channel
	actionChannel  *Channel

	dispatcher *Dispatcher

	settings *SessionSettings
}

func NewSessionWithDefaults(ctx context.Context, token string) *Session {
	return NewSession(ctx, token, DefaultSessionSettings())
}

func NewSession(ctx context.Context, token string, settings *SessionSettings) *Session {
	cancelCtx, cancel := context.WithCancel(ctx)

	store := NewStateStore()
	messageChannel := NewChannel(
		cancelCtx,
		"messages",
		settings.MessagesUrl,
		token,
		DecodeMessageFrame,
		store.ApplyMessageFrame,
		settings.ChannelSettings,
	)
	actionChannel := NewChannel(
		cancelCtx,
		"actions",
		settings.ActionsUrl,
		token,
		DecodeActionFrame,
		store.ApplyActionFrame,
		settings.ChannelSettings,
	)

	return &Session{
		ctx:            cancelCtx,
		cancel:         cancel,
		token:          token,
		api:            NewSlingApiWithContext(cancelCtx, settings.ApiUrl),
		store:          store,
		messageChannel: messageChannel,
		actionChannel:  actionChannel,
		dispatcher:     NewDispatcher(store, messageChannel, actionChannel),
		settings:       settings,
	}
}

// Connect runs the session bootstrap in order: snapshot, seed, channels.
// a bootstrap failure aborts before any state is observable.
func (self *Session) Connect() error {
	if self.token == "" {
		return ErrLoggedOut
	}
	self.api.SetToken(self.token)

	snapshot, err := self.api.Bootstrap(self.ctx)
	if err != nil {
		return err
	}
	self.store.SeedFromSnapshot(*snapshot.User, snapshot.Users, snapshot.Rooms)

	if err := self.messageChannel.Open(); err != nil {
		return err
	}
	if err := self.actionChannel.Open(); err != nil {
		self.messageChannel.Close()
		return err
	}
	return nil
}

func (self *Session) Store() *StateStore {
	return self.store
}

func (self *Session) Intents() *Dispatcher {
	return self.dispatcher
}

func (self *Session) MessageChannel() *Channel {
	return self.messageChannel
}

func (self *Session) ActionChannel() *Channel {
	return self.actionChannel
}

// Close closes both channels unconditionally. socket close is the only
// cancellation primitive; nothing in flight is waited on.
func (self *Session) Close() {
	self.cancel()
	self.messageChannel.Close()
	self.actionChannel.Close()
	self.api.Close()
}
