package format

import (
	"testing"
	"time"
)

func TestBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{10 * 1024 * 1024, "10.0 MB"},
		{int64(1.5 * 1024 * 1024 * 1024), "1.5 GB"},
		{1 << 40, "1.0 TB"},
	}
	for _, tt := range tests {
		if got := Bytes(tt.n); got != tt.want {
			t.Errorf("Bytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestSpeed(t *testing.T) {
	if got := Speed(0); got != "" {
		t.Errorf("Speed(0) = %q, want empty", got)
	}
	if got := Speed(-1); got != "" {
		t.Errorf("Speed(-1) = %q, want empty", got)
	}
	if got := Speed(1536 * 1024); got != "1.5 MB/s" {
		t.Errorf("Speed(1.5MiB) = %q, want 1.5 MB/s", got)
	}
}

func TestETA(t *testing.T) {
	tests := []struct {
		name      string
		remaining int64
		rate      float64
		want      string
	}{
		{"zero rate", 1000, 0, UnknownETA},
		{"negative remaining", -1, 100, UnknownETA},
		{"sub-second rounds up", 50, 100, "0:01"},
		{"exact minute", 6000, 100, "1:00"},
		{"under an hour", 90 * 100, 100, "1:30"},
		{"over an hour", 3661 * 100, 100, "1:01:01"},
		{"nothing left", 0, 100, "0:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ETA(tt.remaining, tt.rate); got != tt.want {
				t.Errorf("ETA(%d, %v) = %q, want %q", tt.remaining, tt.rate, got, tt.want)
			}
		})
	}
}

func TestClock(t *testing.T) {
	tests := []struct {
		secs int64
		want string
	}{
		{-5, "0:00"},
		{0, "0:00"},
		{59, "0:59"},
		{60, "1:00"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{7325, "2:02:05"},
	}
	for _, tt := range tests {
		if got := Clock(tt.secs); got != tt.want {
			t.Errorf("Clock(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}

func TestSpeedMeter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewSpeedMeter()
	m.now = func() time.Time { return now }

	// Rate stays zero until the first window completes
	m.Add(1024)
	if m.Rate() != 0 {
		t.Errorf("rate before first window = %v, want 0", m.Rate())
	}

	// 2048 bytes over 500ms = 4096 B/s
	now = now.Add(500 * time.Millisecond)
	m.Add(1024)
	if got := m.Rate(); got != 4096 {
		t.Errorf("rate after window = %v, want 4096", got)
	}

	// A slower second window replaces, not averages, the first
	now = now.Add(1 * time.Second)
	m.Add(512)
	if got := m.Rate(); got != 512 {
		t.Errorf("rate after slow window = %v, want 512", got)
	}
}
