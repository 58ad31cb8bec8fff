// Command roomctl is a command-line client for the room coordinator. It
// connects over WebSocket, performs the handshake and registration, runs one
// operation, and then streams room events until interrupted.
//
// Examples:
//
//	roomctl --app-id demo --username alice list
//	roomctl --app-id demo --username alice create --room lobby1 --max-players 4
//	roomctl --app-id demo --username bob join --room lobby1 --password hunter2
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"
)

// frame is a loose decode of any server-to-client message.
type frame struct {
	ID        string          `json:"id"`
	OK        *bool           `json:"ok"`
	Error     string          `json:"error"`
	Event     string          `json:"event"`
	Challenge string          `json:"challenge"`
	Data      json.RawMessage `json:"data"`
}

// session is one client connection with request/reply helpers.
type session struct {
	conn *websocket.Conn

	// challengeData answers server challenges by kind.
	challengeData map[string]any
}

func main() {
	cmd := &cli.Command{
		Name:  "roomctl",
		Usage: "command-line client for the room coordinator",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "ws://localhost:8080/ws",
				Usage:   "WebSocket endpoint",
				Sources: cli.EnvVars("ROOMHUB_URL"),
			},
			&cli.StringFlag{
				Name:     "app-id",
				Usage:    "application id for the handshake",
				Sources:  cli.EnvVars("APP_ID"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "username",
				Usage:    "username to register",
				Required: true,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List public rooms",
				Action: runList,
			},
			{
				Name:  "create",
				Usage: "Create a room and stay in it, printing events",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "room", Usage: "room name", Required: true},
					&cli.BoolFlag{Name: "private", Usage: "hide the room from the public listing"},
					&cli.StringFlag{Name: "password", Usage: "room password (empty for none)"},
					&cli.IntFlag{Name: "max-players", Value: 4, Usage: "room capacity"},
				},
				Action: runCreate,
			},
			{
				Name:  "join",
				Usage: "Join a room and stay in it, printing events",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "room", Usage: "room name", Required: true},
					&cli.StringFlag{Name: "password", Usage: "password for protected rooms"},
				},
				Action: runJoin,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// connect dials the server and completes the handshake and registration.
func connect(cmd *cli.Command) (*session, error) {
	conn, _, err := websocket.DefaultDialer.Dial(cmd.String("url"), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cmd.String("url"), err)
	}

	s := &session{conn: conn, challengeData: make(map[string]any)}

	// The server greets with a handshake event before accepting requests.
	if _, err := s.readFrame(); err != nil {
		return nil, err
	}
	if _, err := s.request("handshake", cmd.String("app-id")); err != nil {
		return nil, fmt.Errorf("handshake rejected: %w", err)
	}
	if _, err := s.request("register", cmd.String("username")); err != nil {
		return nil, fmt.Errorf("register rejected: %w", err)
	}
	return s, nil
}

func (s *session) readFrame() (frame, error) {
	var f frame
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("malformed frame: %w", err)
	}
	return f, nil
}

// request runs one operation, answering any challenges from challengeData,
// and returns the acknowledgement payload.
func (s *session) request(op string, args ...any) (json.RawMessage, error) {
	id := uuid.NewString()
	msg := map[string]any{"id": id, "op": op}
	if len(args) > 0 {
		msg["args"] = args
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return nil, err
	}

	for {
		f, err := s.readFrame()
		if err != nil {
			return nil, err
		}
		switch {
		case f.Challenge != "":
			reply := map[string]any{"reply": f.ID, "data": s.challengeData[f.Challenge]}
			if err := s.conn.WriteJSON(reply); err != nil {
				return nil, err
			}
		case f.ID == id && f.OK != nil:
			if !*f.OK {
				return nil, fmt.Errorf("%s", f.Error)
			}
			return f.Data, nil
		case f.Event != "":
			printEvent(f)
		}
	}
}

// stream prints pushed events until the connection drops.
func (s *session) stream() error {
	for {
		f, err := s.readFrame()
		if err != nil {
			return err
		}
		if f.Event != "" {
			printEvent(f)
		}
	}
}

func printEvent(f frame) {
	fmt.Printf("[%s] %s\n", f.Event, f.Data)
}

func runList(ctx context.Context, cmd *cli.Command) error {
	s, err := connect(cmd)
	if err != nil {
		return err
	}
	defer s.conn.Close()

	data, err := s.request("roomList")
	if err != nil {
		return err
	}

	var rooms []struct {
		Name              string `json:"name"`
		PasswordProtected bool   `json:"passwordProtected"`
		CurrentPlayers    int    `json:"currentPlayers"`
		MaxPlayers        int    `json:"maxPlayers"`
	}
	if err := json.Unmarshal(data, &rooms); err != nil {
		return err
	}
	if len(rooms) == 0 {
		fmt.Println("No public rooms.")
		return nil
	}
	for _, r := range rooms {
		locked := ""
		if r.PasswordProtected {
			locked = " [password]"
		}
		fmt.Printf("%s (%d/%d)%s\n", r.Name, r.CurrentPlayers, r.MaxPlayers, locked)
	}
	return nil
}

func runCreate(ctx context.Context, cmd *cli.Command) error {
	s, err := connect(cmd)
	if err != nil {
		return err
	}
	defer s.conn.Close()

	s.challengeData["roomInfo"] = map[string]any{
		"roomName":   cmd.String("room"),
		"public":     !cmd.Bool("private"),
		"password":   cmd.String("password"),
		"maxPlayers": cmd.Int("max-players"),
	}

	if _, err := s.request("createRoom"); err != nil {
		return fmt.Errorf("create rejected: %w", err)
	}
	fmt.Printf("Created room %s, waiting for events...\n", cmd.String("room"))
	return s.stream()
}

func runJoin(ctx context.Context, cmd *cli.Command) error {
	s, err := connect(cmd)
	if err != nil {
		return err
	}
	defer s.conn.Close()

	s.challengeData["password"] = cmd.String("password")

	if _, err := s.request("join", cmd.String("room")); err != nil {
		return fmt.Errorf("join rejected: %w", err)
	}
	fmt.Printf("Joined room %s, waiting for events...\n", cmd.String("room"))
	return s.stream()
}
