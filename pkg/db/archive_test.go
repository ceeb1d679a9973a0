package db

import (
	"testing"

	"github.com/mahaj/roomcast/pkg/model"
)

func TestScope(t *testing.T) {
	tests := []struct {
		name string
		msg  model.Message
		want string
	}{
		{"Room", model.Message{RoomID: "tech", Sender: "alice"}, "room:tech"},
		{"RoomNamedLikeDirect", model.Message{RoomID: "dm:alice:bob", Sender: "mallory"}, "room:dm:alice:bob"},
		{"Private", model.Message{Private: true, Sender: "bob", RecipientName: "alice"}, "dm:alice:bob"},
		{"PrivateReversed", model.Message{Private: true, Sender: "alice", RecipientName: "bob"}, "dm:alice:bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Scope(tt.msg); got != tt.want {
				t.Errorf("Scope() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScope_RoomsNeverReachDirectScopes(t *testing.T) {
	direct := DirectScope("alice", "bob")
	for _, roomID := range []string{direct, "dm:alice:bob", ":dm:alice:bob", "room:dm:alice:bob"} {
		if got := Scope(model.Message{RoomID: roomID}); got == direct {
			t.Errorf("room %q archived under direct scope %q", roomID, direct)
		}
	}
}

func TestDirectScope_ColonInName(t *testing.T) {
	if a, b := DirectScope("a:b", "c"), DirectScope("a", "b:c"); a == b {
		t.Errorf("DirectScope collision: %q", a)
	}
	if got := DirectScope("bob", "alice"); got != DirectScope("alice", "bob") {
		t.Errorf("DirectScope depends on order: %q", got)
	}
}

func TestClampLimit(t *testing.T) {
	for in, want := range map[int]int{0: 50, -3: 50, 10: 10, 5000: maxHistory} {
		if got := clampLimit(in); got != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
