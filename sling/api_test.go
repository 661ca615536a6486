package sling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-playground/assert/v2"
)

func snapshotServer(t *testing.T, failRooms bool) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/current", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get("Token"))
		w.Write([]byte(`{"id":1,"name":"alice","jwt_token":"tok"}`))
	})
	mux.HandleFunc("/api/users/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"name":"alice"},{"id":2,"name":"bob"}]`))
	})
	mux.HandleFunc("/api/rooms", func(w http.ResponseWriter, r *http.Request) {
		if failRooms {
			http.Error(w, "room service unavailable", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[
			{"id":10,"name":"general","hasJoined":true,"hasNotification":false,"type":0},
			{"id":20,"name":"alice, bob","hasJoined":true,"hasNotification":true,"type":1}
		]`))
	})
	return httptest.NewServer(mux)
}

func TestBootstrap(t *testing.T) {
	server := snapshotServer(t, false)
	defer server.Close()

	api := NewSlingApi(server.URL)
	api.SetToken("tok")

	snapshot, err := api.Bootstrap(context.Background())
	assert.Equal(t, err, nil)

	assert.Equal(t, 1, snapshot.User.Id)
	assert.Equal(t, "alice", snapshot.User.Username)
	assert.Equal(t, "tok", snapshot.User.Token)

	assert.Equal(t, 2, len(snapshot.Users))
	// other users' tokens are never populated
	for _, u := range snapshot.Users {
		assert.Equal(t, "", u.Token)
	}

	assert.Equal(t, 2, len(snapshot.Rooms))
	assert.Equal(t, false, snapshot.Rooms[0].IsDm)
	assert.Equal(t, true, snapshot.Rooms[1].IsDm)
	assert.Equal(t, true, snapshot.Rooms[1].HasNotification)
}

func TestBootstrapFailFast(t *testing.T) {
	server := snapshotServer(t, true)
	defer server.Close()

	api := NewSlingApi(server.URL)
	api.SetToken("tok")

	_, err := api.Bootstrap(context.Background())
	var bootstrapErr *BootstrapError
	assert.Equal(t, true, errors.As(err, &bootstrapErr))
}

// bootstrap is all or nothing: a failed fetch leaves nothing observable
func TestBootstrapAllOrNothing(t *testing.T) {
	server := snapshotServer(t, true)
	defer server.Close()

	settings := DefaultSessionSettings()
	settings.ApiUrl = server.URL
	session := NewSession(context.Background(), "tok", settings)
	defer session.Close()

	err := session.Connect()
	assert.NotEqual(t, err, nil)

	store := session.Store()
	assert.Equal(t, true, store.CurrentUser() == nil)
	assert.Equal(t, 0, len(store.Users()))
	assert.Equal(t, 0, len(store.Rooms()))
}

func TestLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		var args LoginArgs
		err := json.NewDecoder(r.Body).Decode(&args)
		assert.Equal(t, err, nil)
		assert.Equal(t, "alice", args.Name)
		assert.Equal(t, "hunter2", args.Password)
		w.Write([]byte(`{"id":"1","name":"alice","email":"alice@example.com","jwt_token":"tok"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	api := NewSlingApi(server.URL)
	result, err := api.LoginSync(&LoginArgs{
		Name:     "alice",
		Password: "hunter2",
	})
	assert.Equal(t, err, nil)
	assert.Equal(t, "tok", result.JwtToken)
	assert.Equal(t, "alice", result.Name)
}

func TestLoginRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "wrong username or password", http.StatusUnauthorized)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	api := NewSlingApi(server.URL)
	_, err := api.LoginSync(&LoginArgs{
		Name:     "alice",
		Password: "wrong",
	})
	assert.NotEqual(t, err, nil)
}

func TestRegister(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", func(w http.ResponseWriter, r *http.Request) {
		var args RegisterArgs
		err := json.NewDecoder(r.Body).Decode(&args)
		assert.Equal(t, err, nil)
		assert.Equal(t, "carol", args.Name)
		assert.Equal(t, "carol@example.com", args.Email)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"3","name":"carol","email":"carol@example.com","jwt_token":"tok3"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	api := NewSlingApi(server.URL)
	result, err := api.RegisterSync(&RegisterArgs{
		Name:     "carol",
		Email:    "carol@example.com",
		Password: "hunter2",
	})
	assert.Equal(t, err, nil)
	assert.Equal(t, "tok3", result.JwtToken)
}

// an empty token means logged out: bootstrap is never attempted
func TestEmptyTokenNeverBootstraps(t *testing.T) {
	var requestCount int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requestCount, 1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	settings := DefaultSessionSettings()
	settings.ApiUrl = server.URL
	session := NewSession(context.Background(), "", settings)
	defer session.Close()

	err := session.Connect()
	assert.Equal(t, true, errors.Is(err, ErrLoggedOut))
	assert.Equal(t, int64(0), atomic.LoadInt64(&requestCount))
}
