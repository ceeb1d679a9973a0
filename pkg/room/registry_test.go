package room

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mahaj/roomcast/pkg/model"
)

func TestRegistry_DefaultRoom(t *testing.T) {
	r := NewRegistry("global", "Global Chat", 0)

	rm, ok := r.Get("global")
	if !ok || rm.Name != "Global Chat" {
		t.Fatalf("default room = %+v, %v", rm, ok)
	}
	if r.DefaultID() != "global" {
		t.Errorf("DefaultID() = %q", r.DefaultID())
	}
}

func TestRegistry_Ensure(t *testing.T) {
	r := NewRegistry("global", "Global Chat", 0)

	rm, created, err := r.Ensure("tech", "", "c1")
	if err != nil || !created {
		t.Fatalf("Ensure() = %v, %v", created, err)
	}
	if rm.Name != "tech" {
		t.Errorf("name = %q, want id fallback", rm.Name)
	}

	again, created, err := r.Ensure("tech", "Other", "c2")
	if err != nil || created || again != rm {
		t.Errorf("second Ensure() = %p, %v, %v", again, created, err)
	}
}

func TestRegistry_EnsureLimit(t *testing.T) {
	r := NewRegistry("global", "Global Chat", 2)
	if _, _, err := r.Ensure("tech", "Tech", ""); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.Ensure("random", "Random", ""); !errors.Is(err, ErrLimit) {
		t.Errorf("err = %v, want ErrLimit", err)
	}
	if _, _, err := r.Ensure("tech", "Tech", ""); err != nil {
		t.Errorf("existing room at limit err = %v", err)
	}
}

func TestRegistry_Membership(t *testing.T) {
	r := NewRegistry("global", "Global Chat", 0)
	r.Ensure("tech", "Tech Talk", "")

	if err := r.Join("nope", "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Join(nope) err = %v", err)
	}
	r.Join("global", "c2")
	r.Join("global", "c1")
	r.Join("global", "c1")
	r.Join("tech", "c3")

	if diff := cmp.Diff([]string{"c1", "c2"}, r.Members("global")); diff != "" {
		t.Errorf("Members() mismatch (-want +got):\n%s", diff)
	}
	if !r.IsMember("tech", "c3") || r.IsMember("tech", "c1") {
		t.Error("IsMember() wrong")
	}

	r.Leave("global", "c2")
	r.Leave("global", "c2")

	want := []model.RoomSummary{
		{ID: "global", Name: "Global Chat", MemberCount: 1},
		{ID: "tech", Name: "Tech Talk", MemberCount: 1},
	}
	if diff := cmp.Diff(want, r.Summaries()); diff != "" {
		t.Errorf("Summaries() mismatch (-want +got):\n%s", diff)
	}
	if r.Len() != 2 || r.ActiveLen() != 2 {
		t.Errorf("Len() = %d, ActiveLen() = %d", r.Len(), r.ActiveLen())
	}

	r.Leave("tech", "c3")
	if r.ActiveLen() != 1 {
		t.Errorf("ActiveLen() = %d, want 1", r.ActiveLen())
	}
	if _, ok := r.Get("tech"); !ok {
		t.Error("empty room was removed")
	}
}
