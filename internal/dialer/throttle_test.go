package dialer

import (
	"testing"
	"time"
)

func TestLogThrottleSuppressesWithinWindow(t *testing.T) {
	throttle := newLogThrottle(time.Minute)

	if !throttle.Allow("a") {
		t.Fatal("first occurrence should be allowed")
	}
	if throttle.Allow("a") {
		t.Error("second occurrence within the window should be suppressed")
	}
	if !throttle.Allow("b") {
		t.Error("a different key should be allowed")
	}
}

func TestLogThrottleExpires(t *testing.T) {
	throttle := newLogThrottle(10 * time.Millisecond)

	if !throttle.Allow("a") {
		t.Fatal("first occurrence should be allowed")
	}
	time.Sleep(20 * time.Millisecond)
	if !throttle.Allow("a") {
		t.Error("occurrence after the window should be allowed again")
	}
}
