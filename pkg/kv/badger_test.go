package kv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adforge/adforge/pkg/kv"
)

func newBadgerStore(t *testing.T) kv.Store {
	t.Helper()
	s, err := kv.OpenBadger(kv.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newBadgerStore(t)

	key := kv.Key{"catalog", "t1"}
	if err := s.Set(ctx, key, []byte("kettle")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "kettle" {
		t.Fatalf("Get = %q, want %q", got, "kettle")
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Get after Delete: want ErrNotFound, got %v", err)
	}
}

func TestBadgerTTL(t *testing.T) {
	ctx := context.Background()
	s := newBadgerStore(t)

	key := kv.Key{"session", "token", "t1"}
	if err := s.SetTTL(ctx, key, []byte("v"), time.Second); err != nil {
		t.Fatalf("SetTTL: %v", err)
	}
	if _, err := s.Get(ctx, key); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	ok, err := s.Expire(ctx, key, time.Hour)
	if err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if !ok {
		t.Fatal("Expire missed a live key")
	}
}

func TestBadgerListPrefix(t *testing.T) {
	ctx := context.Background()
	s := newBadgerStore(t)

	if err := s.BatchSet(ctx, []kv.Entry{
		{Key: kv.Key{"catalog", "t1"}, Value: []byte("a")},
		{Key: kv.Key{"catalog", "t2"}, Value: []byte("b")},
		{Key: kv.Key{"session", "id", "u1"}, Value: []byte("c")},
	}); err != nil {
		t.Fatalf("BatchSet: %v", err)
	}

	var n int
	for e, err := range s.List(ctx, kv.Key{"catalog"}) {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if e.Key[0] != "catalog" {
			t.Fatalf("List leaked key %v", e.Key)
		}
		n++
	}
	if n != 2 {
		t.Fatalf("List yielded %d entries, want 2", n)
	}
}
