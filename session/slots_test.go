package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"

	"xmixing/config"
	"xmixing/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "session.db")
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: dbPath},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})
	return db
}

func exerciseSlots(t *testing.T, slots Slots) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := slots.Get(ctx, TokenSlot); err != nil || ok {
		t.Fatalf("empty Get = ok:%v err:%v, want absent", ok, err)
	}
	if err := slots.SetPair(ctx, `{"username":"op"}`, "tok"); err != nil {
		t.Fatalf("SetPair: %v", err)
	}
	user, ok, err := slots.Get(ctx, UserSlot)
	if err != nil || !ok || user != `{"username":"op"}` {
		t.Errorf("user = %q ok:%v err:%v", user, ok, err)
	}
	token, ok, err := slots.Get(ctx, TokenSlot)
	if err != nil || !ok || token != "tok" {
		t.Errorf("token = %q ok:%v err:%v", token, ok, err)
	}
	if err := slots.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := slots.Get(ctx, UserSlot); ok {
		t.Error("user slot should be gone after Clear")
	}
	if _, ok, _ := slots.Get(ctx, TokenSlot); ok {
		t.Error("token slot should be gone after Clear")
	}
}

func TestMemorySlots(t *testing.T) {
	exerciseSlots(t, NewMemorySlots())
}

func TestSQLSlots(t *testing.T) {
	exerciseSlots(t, NewSQLSlots(testDB(t)))
}

func TestSQLSlots_SessionSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	s, err := Open(ctx, NewSQLSlots(db), quietLog)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Login(ctx, operator(), "tok-db"); err != nil {
		t.Fatalf("login: %v", err)
	}

	again, err := Open(ctx, NewSQLSlots(db), quietLog)
	if err != nil {
		t.Fatal(err)
	}
	if again.Token() != "tok-db" {
		t.Errorf("token = %q, want %q", again.Token(), "tok-db")
	}
}

func TestSealedSlots(t *testing.T) {
	exerciseSlots(t, Sealed(NewMemorySlots(), "station-secret"))
}

func TestSealedSlots_StoresCiphertext(t *testing.T) {
	ctx := context.Background()
	inner := NewMemorySlots()
	sealed := Sealed(inner, "station-secret")

	if err := sealed.SetPair(ctx, `{"username":"op"}`, "tok-plain"); err != nil {
		t.Fatal(err)
	}
	raw, _, _ := inner.Get(ctx, TokenSlot)
	if raw == "tok-plain" || raw == "" {
		t.Errorf("inner token = %q, want ciphertext", raw)
	}

	// A different key cannot open it.
	other := Sealed(inner, "other-secret")
	if _, _, err := other.Get(ctx, TokenSlot); !errors.Is(err, ErrCorruptSlot) {
		t.Errorf("wrong key err = %v, want ErrCorruptSlot", err)
	}
}

func TestSealedSlots_TamperedSessionIsDiscarded(t *testing.T) {
	ctx := context.Background()
	inner := NewMemorySlots()
	sealed := Sealed(inner, "station-secret")

	s, err := Open(ctx, sealed, quietLog)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Login(ctx, operator(), "tok"); err != nil {
		t.Fatal(err)
	}
	inner.Set(TokenSlot, "AAAA"+"tampered")

	again, err := Open(ctx, sealed, quietLog)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if again.IsAuthenticated() {
		t.Error("tampered session must not authenticate")
	}
	if inner.Len() != 0 {
		t.Errorf("slots = %d, want 0", inner.Len())
	}
}

// Requires a live Redis; set XMIXING_TEST_REDIS=host:port to run.
func TestRedisSlots(t *testing.T) {
	addr := os.Getenv("XMIXING_TEST_REDIS")
	if addr == "" {
		t.Skip("XMIXING_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	exerciseSlots(t, NewRedisSlots(client, "xmixing:test:"+t.Name()))
}
