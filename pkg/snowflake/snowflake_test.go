package snowflake

import (
	"errors"
	"testing"
	"time"
)

func TestNewNode(t *testing.T) {
	for _, n := range []int64{-1, 1024} {
		if _, err := NewNode(n); !errors.Is(err, ErrNodeRange) {
			t.Errorf("NewNode(%d) err = %v, want ErrNodeRange", n, err)
		}
	}
	if _, err := NewNode(1023); err != nil {
		t.Errorf("NewNode(1023) err = %v", err)
	}
}

func TestNode_GenerateMonotonic(t *testing.T) {
	node, err := NewNode(7)
	if err != nil {
		t.Fatal(err)
	}
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	node.now = func() int64 { return fixed }

	prev := node.Generate()
	for i := 0; i < 100; i++ {
		id := node.Generate()
		if id <= prev {
			t.Fatalf("id %d not greater than %d", id, prev)
		}
		prev = id
	}

	if got := timeOf(prev); got.UnixMilli() != fixed {
		t.Errorf("timeOf() = %v, want %v", got, time.UnixMilli(fixed).UTC())
	}
	if got := nodeOf(prev); got != 7 {
		t.Errorf("nodeOf() = %d, want 7", got)
	}
}

func TestNode_ClockBackwards(t *testing.T) {
	node, _ := NewNode(1)
	clock := int64(1_800_000_000_000)
	node.now = func() int64 { return clock }

	first := node.Generate()
	clock -= 10
	second := node.Generate()
	if second <= first {
		t.Errorf("id after clock skew %d not greater than %d", second, first)
	}
}
