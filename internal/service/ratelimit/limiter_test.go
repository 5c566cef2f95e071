package ratelimit

import (
	"testing"
	"time"
)

func TestAllowBurstThenRefill(t *testing.T) {
	l := New(2, 3)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if !l.AllowAt("client", now) {
			t.Fatalf("burst request %d rejected", i)
		}
	}
	if l.AllowAt("client", now) {
		t.Fatalf("fourth request within the burst window should be rejected")
	}
	if !l.AllowAt("client", now.Add(500*time.Millisecond)) {
		t.Fatalf("a token should refill after 500ms at 2 rps")
	}
}

func TestKeysAreIndependentAndBounded(t *testing.T) {
	l := NewWithSize(1, 1, 2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !l.AllowAt("a", now) || !l.AllowAt("b", now) {
		t.Fatalf("fresh keys should be allowed")
	}
	if l.AllowAt("a", now) {
		t.Fatalf("key a exhausted")
	}
	l.AllowAt("c", now)
	if l.Keys() != 2 {
		t.Fatalf("keys = %d, want bound of 2", l.Keys())
	}
}
