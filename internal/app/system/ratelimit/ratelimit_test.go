package ratelimit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLimiter_AllowAndReset(t *testing.T) {
	l := New(2, time.Minute)
	defer l.Stop()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow(ctx, "k"); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if ok, _ := l.Allow(ctx, "k"); ok {
		t.Error("third attempt should be blocked")
	}
	if got := l.Remaining("k"); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
	_ = l.Reset(ctx, "k")
	if got := l.Remaining("k"); got != 2 {
		t.Errorf("Remaining after reset = %d, want 2", got)
	}
}

func TestLimiter_WindowExpires(t *testing.T) {
	l := New(1, time.Minute)
	defer l.Stop()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow(ctx, "k")
	if ok, _ := l.Allow(ctx, "k"); ok {
		t.Fatal("expected block inside window")
	}
	now = now.Add(61 * time.Second)
	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Error("expected a fresh window after expiry")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		realIP string
		remote string
		want   string
	}{
		{"forwarded", "203.0.113.1, 10.0.0.1", "", "127.0.0.1:80", "203.0.113.1"},
		{"real ip", "", " 198.51.100.7 ", "127.0.0.1:80", "198.51.100.7"},
		{"remote with port", "", "", "10.1.2.3:5555", "10.1.2.3"},
		{"remote without port", "", "", "10.1.2.3", "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/login", nil)
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			r.RemoteAddr = tt.remote
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoginLimiter_EmailLimit(t *testing.T) {
	ip := New(100, time.Minute)
	email := New(2, time.Minute)
	defer ip.Stop()
	defer email.Stop()
	ll := NewLoginLimiterWith(ip, email)
	ctx := context.Background()
	r := httptest.NewRequest("POST", "/login", nil)

	ll.Check(ctx, r, "Ops@Fleet.test")
	ll.Check(ctx, r, "ops@fleet.test ")
	if ok, reason := ll.Check(ctx, r, "OPS@fleet.test"); ok || reason == "" {
		t.Error("expected email limit to apply case-insensitively")
	}

	ll.ResetEmail(ctx, "ops@fleet.test")
	if ok, _ := ll.Check(ctx, r, "ops@fleet.test"); !ok {
		t.Error("expected reset to clear the email window")
	}
}

func TestLoginLimiter_IPLimit(t *testing.T) {
	ip := New(1, time.Minute)
	email := New(100, time.Minute)
	defer ip.Stop()
	defer email.Stop()
	ll := NewLoginLimiterWith(ip, email)
	ctx := context.Background()
	r := httptest.NewRequest("POST", "/login", nil)

	if ok, _ := ll.Check(ctx, r, "a@b.test"); !ok {
		t.Fatal("first attempt should pass")
	}
	if ok, _ := ll.Check(ctx, r, "c@d.test"); ok {
		t.Error("second attempt from same IP should be blocked")
	}
}

type mockRedis struct {
	counts  map[string]int64
	expires map[string]time.Duration
}

func newMockRedis() *mockRedis {
	return &mockRedis{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (m *mockRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.counts[key]++
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(m.counts[key])
	return cmd
}

func (m *mockRedis) Expire(ctx context.Context, key string, d time.Duration) *redis.BoolCmd {
	m.expires[key] = d
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func (m *mockRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.counts, k)
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(keys)))
	return cmd
}

func TestRedisCounter(t *testing.T) {
	m := newMockRedis()
	c := NewRedisCounter(m, "fleetdesk", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if ok, err := c.Allow(ctx, "ip:1.2.3.4"); !ok || err != nil {
			t.Fatalf("attempt %d: ok=%v err=%v", i+1, ok, err)
		}
	}
	if ok, _ := c.Allow(ctx, "ip:1.2.3.4"); ok {
		t.Error("third attempt should be blocked")
	}
	if m.expires["fleetdesk:rate_limit:ip:1.2.3.4"] != time.Minute {
		t.Errorf("expire not set on first hit: %v", m.expires)
	}
	if len(m.expires) != 1 {
		t.Errorf("expire set %d times", len(m.expires))
	}
	if err := c.Reset(ctx, "ip:1.2.3.4"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := c.Allow(ctx, "ip:1.2.3.4"); !ok {
		t.Error("expected allow after reset")
	}
}
