package sling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/gorilla/websocket"
)

// one Channel per stream. the two channels of a session are independent
// state machines and share nothing: a close or error on one says nothing
// about the other.

type ChannelSettings struct {
	WsHandshakeTimeout time.Duration
	AuthTimeout        time.Duration
	WriteTimeout       time.Duration
	// MaxReconnects enables a bounded retry with exponential backoff after
	// an unexpected close. 0 keeps the protocol's documented behavior:
	// no retry, recovery is manual.
	MaxReconnects    int
	ReconnectBackoff time.Duration
}

func DefaultChannelSettings() *ChannelSettings {
	return &ChannelSettings{
		WsHandshakeTimeout: 2 * time.Second,
		AuthTimeout:        2 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxReconnects:      0,
		ReconnectBackoff:   1 * time.Second,
	}
}

type ChannelEvent struct {
	Channel string
	State   ConnectionState
	// Notice is a user-visible message, set on disconnect
	Notice string
	// Err is set on error events
	Err error
}

type ChannelListener func(event ChannelEvent)

type Channel struct {
	ctx    context.Context
	cancel context.CancelFunc

	name  string
	url   string
	token string

	decode func(b []byte) (any, error)
	apply  func(frame any)

	settings *ChannelSettings

	stateMutex sync.Mutex
	state      ConnectionState
	lastErr    error

	writeMutex sync.Mutex
	ws         *websocket.Conn

	listeners *CallbackList[ChannelListener]
}

func NewChannel(
	ctx context.Context,
	name string,
	url string,
	token string,
	decode func(b []byte) (any, error),
	apply func(frame any),
	settings *ChannelSettings,
) *Channel {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &Channel{
		ctx:       cancelCtx,
		cancel:    cancel,
		name:      name,
		url:       url,
		token:     token,
		decode:    decode,
		apply:     apply,
		settings:  settings,
		state:     StateDisconnected,
		listeners: NewCallbackList[ChannelListener](),
	}
}

// AddListener registers a listener for state transitions and errors.
// the returned function removes it.
func (self *Channel) AddListener(listener ChannelListener) func() {
	return self.listeners.Add(listener)
}

func (self *Channel) State() ConnectionState {
	self.stateMutex.Lock()
	defer self.stateMutex.Unlock()
	return self.state
}

func (self *Channel) LastError() error {
	self.stateMutex.Lock()
	defer self.stateMutex.Unlock()
	return self.lastErr
}

func (self *Channel) setState(state ConnectionState, notice string) {
	self.stateMutex.Lock()
	self.state = state
	self.stateMutex.Unlock()

	event := ChannelEvent{
		Channel: self.name,
		State:   state,
		Notice:  notice,
	}
	self.emit(event)
}

// recordError surfaces an error for display. it does not by itself close
// the socket or change the connection state, except for failures before the
// channel ever reached ready, which land in errored.
func (self *Channel) recordError(err error, errored bool) {
	self.stateMutex.Lock()
	self.lastErr = err
	if errored {
		self.state = StateErrored
	}
	state := self.state
	self.stateMutex.Unlock()

	event := ChannelEvent{
		Channel: self.name,
		State:   state,
		Err:     err,
	}
	self.emit(event)
}

func (self *Channel) emit(event ChannelEvent) {
	for _, listener := range self.listeners.Get() {
		listener := listener
		HandleError(func() {
			listener(event)
		})
	}
}

// Open dials the stream and performs the auth handshake: the first frame on
// the wire is `{"jwt_token": <token>}`, and the channel is ready as soon as
// the send completes. no acknowledgment is awaited.
func (self *Channel) Open() error {
	self.setState(StateConnecting, "")

	dialer := &websocket.Dialer{
		HandshakeTimeout: self.settings.WsHandshakeTimeout,
	}
	ws, _, err := dialer.DialContext(self.ctx, self.url, nil)
	if err != nil {
		glog.Infof("[%s]dial error = %s\n", self.name, err)
		self.recordError(err, true)
		return err
	}

	self.setState(StateAuthenticating, "")

	authBytes, err := EncodeAuth(self.token)
	if err != nil {
		ws.Close()
		self.recordError(err, true)
		return err
	}
	ws.SetWriteDeadline(time.Now().Add(self.settings.AuthTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, authBytes); err != nil {
		glog.Infof("[%s]auth error = %s\n", self.name, err)
		ws.Close()
		self.recordError(err, true)
		return err
	}

	self.writeMutex.Lock()
	self.ws = ws
	self.writeMutex.Unlock()

	self.setState(StateReady, "")

	go self.readLoop(ws)

	return nil
}

// readLoop processes frames in arrival order. a frame that fails to decode
// is dropped and logged; the loop ends only when the socket closes.
func (self *Channel) readLoop(ws *websocket.Conn) {
	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			glog.Infof("[%s]<- closed = %s\n", self.name, err)
			self.handleClose()
			return
		}
		glog.V(2).Infof("[%s]<-\n", self.name)

		frame, err := self.decode(message)
		if err != nil {
			glog.Infof("[%s]drop frame = %s\n", self.name, err)
			continue
		}
		self.apply(frame)
	}
}

// handleClose runs exactly once per close event
func (self *Channel) handleClose() {
	self.writeMutex.Lock()
	self.ws = nil
	self.writeMutex.Unlock()

	self.setState(StateDisconnected, "server disconnected")

	select {
	case <-self.ctx.Done():
		// deliberate teardown
		return
	default:
	}
	if 0 < self.settings.MaxReconnects {
		go self.reconnect()
	}
}

func (self *Channel) reconnect() {
	backoff := self.settings.ReconnectBackoff
	for i := 0; i < self.settings.MaxReconnects; i += 1 {
		select {
		case <-self.ctx.Done():
			return
		case <-time.After(backoff):
		}
		if err := self.Open(); err == nil {
			return
		}
		backoff *= 2
	}
	glog.Infof("[%s]reconnect gave up\n", self.name)
}

// WriteFrame writes one outbound frame. sends are fire and forget with
// respect to local state.
func (self *Channel) WriteFrame(b []byte) error {
	self.writeMutex.Lock()
	defer self.writeMutex.Unlock()

	if self.ws == nil {
		return fmt.Errorf("[%s]not connected", self.name)
	}
	self.ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
	if err := self.ws.WriteMessage(websocket.TextMessage, b); err != nil {
		// a websocket write deadline cannot be recovered
		glog.Infof("[%s]-> error = %s\n", self.name, err)
		return err
	}
	glog.V(2).Infof("[%s]->\n", self.name)
	return nil
}

// Close tears the channel down unconditionally
func (self *Channel) Close() {
	self.cancel()

	self.writeMutex.Lock()
	ws := self.ws
	self.writeMutex.Unlock()
	if ws != nil {
		ws.Close()
	}
}
