package boot

import (
	"testing"
	"time"
)

func TestLinearBackoff(t *testing.T) {
	b := Linear{Start: 10 * time.Second, Step: time.Second, Max: 15 * time.Second}
	want := []time.Duration{11, 12, 13, 14, 15, 15, 15}

	cur := b.Initial()
	if cur != 10*time.Second {
		t.Fatalf("Initial() = %v, want 10s", cur)
	}
	for i, w := range want {
		cur = b.Next(cur)
		if cur != w*time.Second {
			t.Errorf("step %d: got %v, want %v", i+1, cur, w*time.Second)
		}
	}
}

func TestLinearBackoffCapsOvershoot(t *testing.T) {
	b := Linear{Start: 14500 * time.Millisecond, Step: time.Second, Max: 15 * time.Second}
	if got := b.Next(b.Initial()); got != 15*time.Second {
		t.Errorf("Next() = %v, want 15s", got)
	}
}

func TestMultiplicativeBackoff(t *testing.T) {
	b := Multiplicative{Start: 10 * time.Second, Factor: 1.5, Max: 20 * time.Second}
	tests := []struct {
		cur  time.Duration
		want time.Duration
	}{
		{10 * time.Second, 15 * time.Second},
		{15 * time.Second, 20 * time.Second},
		{20 * time.Second, 20 * time.Second},
		{4 * time.Second, 6 * time.Second},
	}
	for _, tt := range tests {
		if got := b.Next(tt.cur); got != tt.want {
			t.Errorf("Next(%v) = %v, want %v", tt.cur, got, tt.want)
		}
	}
}

func TestNewBackoff(t *testing.T) {
	tests := []struct {
		strategy string
		want     Backoff
		wantErr  bool
	}{
		{"", Linear{Start: time.Second, Step: time.Second, Max: 5 * time.Second}, false},
		{"linear", Linear{Start: time.Second, Step: time.Second, Max: 5 * time.Second}, false},
		{"multiplicative", Multiplicative{Start: time.Second, Factor: 2, Max: 5 * time.Second}, false},
		{"exponential", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			got, err := NewBackoff(tt.strategy, time.Second, time.Second, 2, 5*time.Second)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}
