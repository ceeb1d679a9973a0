package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mahaj/roomcast/pkg/model"
)

type LoginResponse struct {
	Token string `json:"token"`
}

func login(apiAddr, displayName string) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{"display_name": displayName})
	resp, err := http.Post(apiAddr+"/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login failed: %s", string(body))
	}

	var loginResp LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", err
	}

	return loginResp.Token, nil
}

func frame(typ model.EventName, payload any) []byte {
	raw, _ := json.Marshal(payload)
	data, _ := json.Marshal(model.Frame{Type: typ, Payload: raw})
	return data
}

// parseCommand turns one input line into an outbound frame. Plain text is a
// room message.
func parseCommand(line string) (data []byte, quit bool, err error) {
	if !strings.HasPrefix(line, "/") {
		return frame(model.EventSendMessage, map[string]string{"body": line}), false, nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "/quit":
		return nil, true, nil
	case "/join":
		return frame(model.EventJoinRoom, map[string]string{"room_id": rest}), false, nil
	case "/create":
		return frame(model.EventCreateRoom, map[string]string{"name": rest}), false, nil
	case "/rooms":
		return frame(model.EventListRooms, nil), false, nil
	case "/typing":
		return frame(model.EventTyping, map[string]bool{"is_typing": rest != "off"}), false, nil
	case "/history":
		return frame(model.EventLoadHistory, map[string]any{}), false, nil
	case "/logout":
		return frame(model.EventLogout, nil), false, nil
	case "/dm":
		to, body, ok := strings.Cut(rest, " ")
		if !ok {
			return nil, false, fmt.Errorf("usage: /dm <connection_id> <text>")
		}
		return frame(model.EventSendPrivateMessage, map[string]string{"recipient_id": to, "body": body}), false, nil
	case "/react":
		id, emoji, ok := strings.Cut(rest, " ")
		if !ok {
			return nil, false, fmt.Errorf("usage: /react <message_id> <emoji>")
		}
		return frame(model.EventReact, map[string]string{"message_id": id, "emoji": emoji}), false, nil
	case "/read":
		return frame(model.EventMarkRead, map[string]string{"message_id": rest}), false, nil
	}
	return nil, false, fmt.Errorf("unknown command %s", cmd)
}

// render formats a server frame for the terminal.
func render(f model.Frame) string {
	switch f.Type {
	case model.EventNewMessage, model.EventPrivateMessage:
		var m model.Message
		if json.Unmarshal(f.Payload, &m) == nil {
			if m.Private {
				return fmt.Sprintf("[dm] %s -> %s: %s (%s)", m.Sender, m.RecipientName, m.Body, m.ID)
			}
			return fmt.Sprintf("[%s] %s: %s (%s)", m.RoomID, m.Sender, m.Body, m.ID)
		}
	case model.EventMessageHistory:
		var h model.History
		if json.Unmarshal(f.Payload, &h) == nil {
			lines := []string{fmt.Sprintf("-- history of %s (%d) --", h.RoomID, len(h.Messages))}
			for _, m := range h.Messages {
				lines = append(lines, fmt.Sprintf("%s: %s", m.Sender, m.Body))
			}
			return strings.Join(lines, "\n")
		}
	case model.EventTypingList:
		var tl model.TypingList
		if json.Unmarshal(f.Payload, &tl) == nil {
			if len(tl.Users) == 0 {
				return ""
			}
			return fmt.Sprintf("[%s] %s typing...", tl.RoomID, strings.Join(tl.Users, ", "))
		}
	case model.EventError:
		var e model.Error
		if json.Unmarshal(f.Payload, &e) == nil {
			return fmt.Sprintf("error (%s): %s", e.Code, e.Message)
		}
	}
	return fmt.Sprintf("%s %s", f.Type, f.Payload)
}

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "gateway service address")
	apiAddr := flag.String("api", "http://localhost:8081", "api service address")
	name := flag.String("name", "user1", "display name")
	flag.Parse()

	log.Printf("Logging in as %s...", *name)
	token, err := login(*apiAddr, *name)
	if err != nil {
		log.Fatal("Login failed:", err)
	}

	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws"}
	log.Printf("connecting to %s", u.String())

	header := http.Header{}
	header.Add("Authorization", "Bearer "+token)
	c, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			var f model.Frame
			if err := c.ReadJSON(&f); err != nil {
				log.Println("read:", err)
				return
			}
			if out := render(f); out != "" {
				fmt.Printf("\r%s\n> ", out)
			}
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				fmt.Print("> ")
				continue
			}
			data, quit, err := parseCommand(text)
			if quit {
				interrupt <- os.Interrupt
				return
			}
			if err != nil {
				fmt.Printf("%v\n> ", err)
				continue
			}
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Println("write:", err)
				return
			}
			fmt.Print("> ")
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("interrupt")

			// Cleanly close the connection by sending a close message and then
			// waiting (with timeout) for the server to close the connection.
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("write close:", err)
				return
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
