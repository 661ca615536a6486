package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/docopt/docopt-go"

	"github.com/jchou8/sling-1/sling"
)

const SlingCtlVersion = "0.0.1"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Sling chat control.

The default urls are:
    api_url: http://localhost:8888
    stream_url: ws://localhost:8888

Usage:
    slingctl login [--api_url=<api_url>] --name=<name> [--password=<password>]
    slingctl register [--api_url=<api_url>] --name=<name> --email=<email>
        [--password=<password>]
    slingctl logout
    slingctl whoami
    slingctl chat [--api_url=<api_url>] [--stream_url=<stream_url>]

Options:
    -h --help                  Show this screen.
    --version                  Show version.
    --api_url=<api_url>
    --stream_url=<stream_url>
    --name=<name>              Your username.
    --email=<email>
    --password=<password>      Prompted when omitted.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], SlingCtlVersion)
	if err != nil {
		panic(err)
	}

	if login_, _ := opts.Bool("login"); login_ {
		login(opts)
	} else if register_, _ := opts.Bool("register"); register_ {
		register(opts)
	} else if logout_, _ := opts.Bool("logout"); logout_ {
		logout(opts)
	} else if whoami_, _ := opts.Bool("whoami"); whoami_ {
		whoami(opts)
	} else if chat_, _ := opts.Bool("chat"); chat_ {
		chat(opts)
	}
}

func apiUrl(opts docopt.Opts) string {
	if url, err := opts.String("--api_url"); err == nil && url != "" {
		return url
	}
	return sling.DefaultSessionSettings().ApiUrl
}

func promptPassword(opts docopt.Opts) string {
	if password, err := opts.String("--password"); err == nil && password != "" {
		return password
	}
	fmt.Print("Enter password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		panic(err)
	}
	fmt.Printf("\n")
	return string(passwordBytes)
}

func login(opts docopt.Opts) {
	name, _ := opts.String("--name")
	password := promptPassword(opts)

	if name == "" || password == "" {
		Err.Fatalf("name and password are required")
	}

	api := sling.NewSlingApi(apiUrl(opts))
	result, err := api.LoginSync(&sling.LoginArgs{
		Name:     name,
		Password: password,
	})
	if err != nil {
		Err.Fatalf("login failed: %s", err)
	}
	if err := sling.SaveToken(result.JwtToken); err != nil {
		Err.Fatalf("could not save token: %s", err)
	}
	Out.Printf("logged in as %s", result.Name)
}

func register(opts docopt.Opts) {
	name, _ := opts.String("--name")
	email, _ := opts.String("--email")
	password := promptPassword(opts)

	if name == "" || email == "" || password == "" {
		Err.Fatalf("name, email and password are required")
	}

	api := sling.NewSlingApi(apiUrl(opts))
	result, err := api.RegisterSync(&sling.RegisterArgs{
		Name:     name,
		Email:    email,
		Password: password,
	})
	if err != nil {
		Err.Fatalf("register failed: %s", err)
	}
	if err := sling.SaveToken(result.JwtToken); err != nil {
		Err.Fatalf("could not save token: %s", err)
	}
	Out.Printf("registered and logged in as %s", result.Name)
}

func logout(opts docopt.Opts) {
	if err := sling.ClearToken(); err != nil {
		Err.Fatalf("could not clear token: %s", err)
	}
	Out.Printf("logged out")
}

func whoami(opts docopt.Opts) {
	token, err := sling.LoadToken()
	if err != nil {
		Err.Fatalf("could not read token: %s", err)
	}
	if token == "" {
		Out.Printf("logged out")
		return
	}
	claims, err := sling.ParseTokenUnverified(token)
	if err != nil {
		Err.Fatalf("bad token: %s", err)
	}
	Out.Printf("%s <%s>", claims.Name, claims.Email)
}

func chat(opts docopt.Opts) {
	token, err := sling.LoadToken()
	if err != nil {
		Err.Fatalf("could not read token: %s", err)
	}
	if token == "" {
		Err.Fatalf("logged out. run `slingctl login` first")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings := sling.DefaultSessionSettings()
	settings.ApiUrl = apiUrl(opts)
	if streamUrl, err := opts.String("--stream_url"); err == nil && streamUrl != "" {
		settings.MessagesUrl = fmt.Sprintf("%s/api/stream/messages", streamUrl)
		settings.ActionsUrl = fmt.Sprintf("%s/api/stream/actions", streamUrl)
	}

	session := sling.NewSession(ctx, token, settings)
	defer session.Close()

	session.Store().AddListener(func(event sling.StoreEvent) {
		switch event.Type {
		case sling.EventMessageAppended:
			Out.Printf("[%s] %s: %s",
				event.Message.Time.Local().Format("15:04:05"),
				event.Message.Username,
				event.Message.Body,
			)
		case sling.EventHistoryReplaced:
			if event.Room != nil {
				Out.Printf("--- %s ---", event.Room.Name)
			}
		case sling.EventNotification:
			Out.Printf("* new activity in %s", event.Room.Name)
		case sling.EventUserAdded:
			Out.Printf("* %s is here", event.User.Username)
		case sling.EventRoomAdded:
			Out.Printf("* new room %s", event.Room.Name)
		case sling.EventRoomFocused:
			Out.Printf("* now in %s", event.Room.Name)
		}
	})
	channelListener := func(event sling.ChannelEvent) {
		if event.Notice != "" {
			Out.Printf("* %s (%s)", event.Notice, event.Channel)
		}
		if event.Err != nil {
			Out.Printf("* %s channel error: %s", event.Channel, event.Err)
		}
	}
	session.MessageChannel().AddListener(channelListener)
	session.ActionChannel().AddListener(channelListener)

	if err := session.Connect(); err != nil {
		Err.Fatalf("could not connect: %s", err)
	}

	user := session.Store().CurrentUser()
	Out.Printf("connected as %s. /rooms /users /room <name> /join <name> /create <name> /dm <name> /quit", user.Username)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			session.Intents().SendMessage(line)
			continue
		}

		command, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch command {
		case "/quit":
			return
		case "/rooms":
			for _, room := range session.Store().Rooms() {
				marker := " "
				if room.HasJoined {
					marker = "*"
				}
				Out.Printf("%s %s", marker, room.Name)
			}
		case "/users":
			for _, u := range session.Store().Users() {
				Out.Printf("  %s", u.Username)
			}
		case "/room":
			if room, ok := roomByName(session.Store(), arg); ok {
				session.Intents().ChangeRoom(room)
			} else {
				Out.Printf("no room named %s", arg)
			}
		case "/join":
			if room, ok := roomByName(session.Store(), arg); ok {
				session.Intents().JoinRoom(room)
			} else {
				Out.Printf("no room named %s", arg)
			}
		case "/create":
			session.Intents().CreateRoom(arg)
		case "/dm":
			if target, ok := userByName(session.Store(), arg); ok {
				session.Intents().StartDm(target)
			} else {
				Out.Printf("no user named %s", arg)
			}
		default:
			Out.Printf("unknown command %s", command)
		}
	}
}

func roomByName(store *sling.StateStore, name string) (sling.Room, bool) {
	for _, room := range store.Rooms() {
		if room.Name == name {
			return room, true
		}
	}
	return sling.Room{}, false
}

func userByName(store *sling.StateStore, name string) (sling.User, bool) {
	for _, user := range store.Users() {
		if user.Username == name {
			return user, true
		}
	}
	return sling.User{}, false
}
