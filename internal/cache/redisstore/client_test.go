package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newMini(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("redisstore.New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestGetMiss(t *testing.T) {
	_, c := newMini(t)
	_, ok, err := c.Get(context.Background(), "feed:nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected a miss")
	}
}

func TestSetThenGet(t *testing.T) {
	_, c := newMini(t)
	ctx := context.Background()

	if err := c.Set(ctx, "feed:a", []byte(`{"rows":1}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, ok, err := c.Get(ctx, "feed:a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || string(val) != `{"rows":1}` {
		t.Fatalf("got ok=%v val=%q", ok, val)
	}
}

func TestSetTTLExpires(t *testing.T) {
	mr, c := newMini(t)
	ctx := context.Background()

	if err := c.Set(ctx, "feed:ttl", []byte("x"), 45*time.Second); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(46 * time.Second)

	_, ok, err := c.Get(ctx, "feed:ttl")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("entry should have expired")
	}
}

func TestDelPrefix(t *testing.T) {
	_, c := newMini(t)
	ctx := context.Background()

	for _, k := range []string{"feed:a", "feed:b", "map:a"} {
		if err := c.Set(ctx, k, []byte("v"), time.Minute); err != nil {
			t.Fatal(err)
		}
	}

	n, err := c.DelPrefix(ctx, "feed:")
	if err != nil {
		t.Fatalf("DelPrefix: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted %d keys, want 2", n)
	}

	if _, ok, _ := c.Get(ctx, "feed:a"); ok {
		t.Fatal("feed:a should be gone")
	}
	if _, ok, _ := c.Get(ctx, "map:a"); !ok {
		t.Fatal("map:a should survive a feed sweep")
	}
}

func TestNewRejectsUnreachableAddr(t *testing.T) {
	if _, err := New(context.Background(), "127.0.0.1:1"); err == nil {
		t.Fatal("expected connection error")
	}
}
