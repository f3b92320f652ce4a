package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAllowsOncePerInterval(t *testing.T) {
	l := New(time.Hour)
	if !l.Allow() {
		t.Fatal("first Allow() = false")
	}
	for i := 0; i < 10; i++ {
		if l.Allow() {
			t.Fatal("Allow() = true inside the interval")
		}
	}
}

func TestLimiterRecoversAfterInterval(t *testing.T) {
	l := New(10 * time.Millisecond)
	if !l.Allow() {
		t.Fatal("first Allow() = false")
	}
	time.Sleep(20 * time.Millisecond)
	if !l.Allow() {
		t.Fatal("Allow() = false after the interval elapsed")
	}
}
