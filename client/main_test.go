package main

import (
	"encoding/json"
	"testing"

	"github.com/mahaj/roomcast/pkg/model"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    model.EventName
		payload string
	}{
		{"hello there", model.EventSendMessage, `{"body":"hello there"}`},
		{"/join tech", model.EventJoinRoom, `{"room_id":"tech"}`},
		{"/create Book Club", model.EventCreateRoom, `{"name":"Book Club"}`},
		{"/dm c2 psst", model.EventSendPrivateMessage, `{"body":"psst","recipient_id":"c2"}`},
		{"/react msg_1 👍", model.EventReact, `{"emoji":"👍","message_id":"msg_1"}`},
		{"/typing off", model.EventTyping, `{"is_typing":false}`},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			data, quit, err := parseCommand(tt.line)
			if err != nil || quit {
				t.Fatalf("parseCommand() = quit %v, err %v", quit, err)
			}
			var f model.Frame
			if err := json.Unmarshal(data, &f); err != nil {
				t.Fatal(err)
			}
			if f.Type != tt.want || string(f.Payload) != tt.payload {
				t.Errorf("frame = %s %s, want %s %s", f.Type, f.Payload, tt.want, tt.payload)
			}
		})
	}
}

func TestParseCommand_Errors(t *testing.T) {
	if _, quit, _ := parseCommand("/quit"); !quit {
		t.Error("/quit did not quit")
	}
	for _, line := range []string{"/dm c2", "/react msg_1", "/shout"} {
		if _, _, err := parseCommand(line); err == nil {
			t.Errorf("parseCommand(%q) err = nil", line)
		}
	}
}
