package sling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const defaultHttpTimeout = 60 * time.Second
const defaultHttpConnectTimeout = 5 * time.Second
const defaultHttpTlsTimeout = 5 * time.Second

func defaultClient() *http.Client {
	// see https://medium.com/@nate510/don-t-use-go-s-default-http-client-4804cb19f779
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHttpTimeout,
	}
}

type apiCallback[R any] interface {
	Result(result R, err error)
}

// for internal use
type simpleApiCallback[R any] struct {
	callback func(result R, err error)
}

func NewApiCallback[R any](callback func(result R, err error)) apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: callback,
	}
}

func NewNoopApiCallback[R any]() apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: func(result R, err error) {},
	}
}

func (self *simpleApiCallback[R]) Result(result R, err error) {
	self.callback(result, err)
}

type ApiCallbackResult[R any] struct {
	Result R
	Error  error
}

func NewBlockingApiCallback[R any]() (apiCallback[R], chan ApiCallbackResult[R]) {
	// buffered so that an abandoned fetch does not leak its goroutine
	c := make(chan ApiCallbackResult[R], 1)
	apiCallback := NewApiCallback[R](func(result R, err error) {
		c <- ApiCallbackResult[R]{
			Result: result,
			Error:  err,
		}
	})
	return apiCallback, c
}

// BootstrapError aborts the session. no partial snapshot is ever installed.
type BootstrapError struct {
	Err error
}

func (self *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap error: %s", self.Err)
}

func (self *BootstrapError) Unwrap() error {
	return self.Err
}

// Snapshot is the aggregate of the three bootstrap fetches, used to seed the
// store before the channels open
type Snapshot struct {
	User  *User
	Users []User
	Rooms []Room
}

type SlingApi struct {
	ctx    context.Context
	cancel context.CancelFunc

	apiUrl string

	token string
}

func NewSlingApi(apiUrl string) *SlingApi {
	return NewSlingApiWithContext(context.Background(), apiUrl)
}

func NewSlingApiWithContext(ctx context.Context, apiUrl string) *SlingApi {
	cancelCtx, cancel := context.WithCancel(ctx)

	return &SlingApi{
		ctx:    cancelCtx,
		cancel: cancel,
		apiUrl: apiUrl,
	}
}

// this gets attached to api calls that need it
func (self *SlingApi) SetToken(token string) {
	self.token = token
}

// wire shapes

type currentUserResult struct {
	Id       int    `json:"id"`
	Name     string `json:"name"`
	JwtToken string `json:"jwt_token"`
}

type userResult struct {
	Id   int    `json:"id"`
	Name string `json:"name"`
}

type roomResult struct {
	Id              int    `json:"id"`
	Name            string `json:"name"`
	HasJoined       bool   `json:"hasJoined"`
	HasNotification bool   `json:"hasNotification"`
	Type            int    `json:"type"`
}

const roomTypeDm = 1

type GetCurrentUserCallback apiCallback[*User]

func (self *SlingApi) GetCurrentUser(callback GetCurrentUserCallback) {
	wireCallback := NewApiCallback[*currentUserResult](func(result *currentUserResult, err error) {
		if err != nil {
			callback.Result(nil, err)
			return
		}
		callback.Result(&User{
			Id:       result.Id,
			Username: result.Name,
			Token:    result.JwtToken,
		}, nil)
	})
	go get(
		self.ctx,
		fmt.Sprintf("%s/api/users/current", self.apiUrl),
		self.token,
		&currentUserResult{},
		wireCallback,
	)
}

type GetUsersCallback apiCallback[[]User]

func (self *SlingApi) GetUsers(callback GetUsersCallback) {
	wireCallback := NewApiCallback[*[]userResult](func(result *[]userResult, err error) {
		if err != nil {
			callback.Result(nil, err)
			return
		}
		users := make([]User, 0, len(*result))
		for _, u := range *result {
			// other users' tokens are never retrievable
			users = append(users, User{
				Id:       u.Id,
				Username: u.Name,
			})
		}
		callback.Result(users, nil)
	})
	go get(
		self.ctx,
		fmt.Sprintf("%s/api/users/", self.apiUrl),
		self.token,
		&[]userResult{},
		wireCallback,
	)
}

type GetRoomsCallback apiCallback[[]Room]

func (self *SlingApi) GetRooms(callback GetRoomsCallback) {
	wireCallback := NewApiCallback[*[]roomResult](func(result *[]roomResult, err error) {
		if err != nil {
			callback.Result(nil, err)
			return
		}
		rooms := make([]Room, 0, len(*result))
		for _, r := range *result {
			rooms = append(rooms, Room{
				Id:              r.Id,
				Name:            r.Name,
				HasJoined:       r.HasJoined,
				HasNotification: r.HasNotification,
				IsDm:            r.Type == roomTypeDm,
			})
		}
		callback.Result(rooms, nil)
	})
	go get(
		self.ctx,
		fmt.Sprintf("%s/api/rooms", self.apiUrl),
		self.token,
		&[]roomResult{},
		wireCallback,
	)
}

type LoginCallback apiCallback[*TokenResult]

type LoginArgs struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// TokenResult is the login/register response. the server formats `id` as a
// string here even though users carry integer ids everywhere else.
type TokenResult struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	JwtToken string `json:"jwt_token"`
}

func (self *SlingApi) Login(login *LoginArgs, callback LoginCallback) {
	go post(
		self.ctx,
		fmt.Sprintf("%s/api/login", self.apiUrl),
		login,
		"",
		&TokenResult{},
		callback,
	)
}

func (self *SlingApi) LoginSync(login *LoginArgs) (*TokenResult, error) {
	return post(
		self.ctx,
		fmt.Sprintf("%s/api/login", self.apiUrl),
		login,
		"",
		&TokenResult{},
		NewNoopApiCallback[*TokenResult](),
	)
}

type RegisterCallback apiCallback[*TokenResult]

type RegisterArgs struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (self *SlingApi) Register(register *RegisterArgs, callback RegisterCallback) {
	go post(
		self.ctx,
		fmt.Sprintf("%s/api/register", self.apiUrl),
		register,
		"",
		&TokenResult{},
		callback,
	)
}

func (self *SlingApi) RegisterSync(register *RegisterArgs) (*TokenResult, error) {
	return post(
		self.ctx,
		fmt.Sprintf("%s/api/register", self.apiUrl),
		register,
		"",
		&TokenResult{},
		NewNoopApiCallback[*TokenResult](),
	)
}

// Bootstrap issues the three snapshot fetches concurrently and waits for all
// of them. any one failing fails the whole bootstrap.
func (self *SlingApi) Bootstrap(ctx context.Context) (*Snapshot, error) {
	userCallback, userC := NewBlockingApiCallback[*User]()
	usersCallback, usersC := NewBlockingApiCallback[[]User]()
	roomsCallback, roomsC := NewBlockingApiCallback[[]Room]()

	self.GetCurrentUser(userCallback)
	self.GetUsers(usersCallback)
	self.GetRooms(roomsCallback)

	snapshot := &Snapshot{}
	for i := 0; i < 3; i += 1 {
		select {
		case r := <-userC:
			if r.Error != nil {
				return nil, &BootstrapError{Err: r.Error}
			}
			snapshot.User = r.Result
		case r := <-usersC:
			if r.Error != nil {
				return nil, &BootstrapError{Err: r.Error}
			}
			snapshot.Users = r.Result
		case r := <-roomsC:
			if r.Error != nil {
				return nil, &BootstrapError{Err: r.Error}
			}
			snapshot.Rooms = r.Result
		case <-ctx.Done():
			return nil, &BootstrapError{Err: ctx.Err()}
		case <-self.ctx.Done():
			return nil, &BootstrapError{Err: self.ctx.Err()}
		}
	}
	return snapshot, nil
}

func (self *SlingApi) Close() {
	self.cancel()
}

func post[R any](ctx context.Context, url string, args any, token string, result R, callback apiCallback[R]) (R, error) {
	var requestBodyBytes []byte
	if args == nil {
		requestBodyBytes = make([]byte, 0)
	} else {
		var err error
		requestBodyBytes, err = json.Marshal(args)
		if err != nil {
			var empty R
			callback.Result(empty, err)
			return empty, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(requestBodyBytes))
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	req.Header.Add("Content-Type", "application/json")

	if token != "" {
		req.Header.Add("Token", token)
	}

	client := defaultClient()
	r, err := client.Do(req)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)

	if http.StatusOK != r.StatusCode && http.StatusCreated != r.StatusCode {
		// the response body is the error message
		errorMessage := strings.TrimSpace(string(responseBodyBytes))
		err = errors.New(errorMessage)
		callback.Result(result, err)
		return result, err
	}

	if err != nil {
		callback.Result(result, err)
		return result, err
	}

	err = json.Unmarshal(responseBodyBytes, &result)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	callback.Result(result, nil)
	return result, nil
}

func get[R any](ctx context.Context, url string, token string, result R, callback apiCallback[R]) (R, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	if token != "" {
		req.Header.Add("Token", token)
	}

	client := defaultClient()
	r, err := client.Do(req)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	responseBodyBytes, err := io.ReadAll(r.Body)
	r.Body.Close()

	if http.StatusOK != r.StatusCode {
		errorMessage := strings.TrimSpace(string(responseBodyBytes))
		err = errors.New(errorMessage)
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	err = json.Unmarshal(responseBodyBytes, &result)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	callback.Result(result, nil)
	return result, nil
}
