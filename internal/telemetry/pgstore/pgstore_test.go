package pgstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/MrWong99/speechcoach/internal/telemetry"
	"github.com/MrWong99/speechcoach/internal/telemetry/pgstore"
)

const testEmbeddingDim = 3

// testDSN returns the test database DSN from the environment, or skips the
// test if SPEECHCOACH_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("SPEECHCOACH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SPEECHCOACH_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *pgstore.Store {
	t.Helper()
	ctx := context.Background()
	store, err := pgstore.New(ctx, testDSN(t), testEmbeddingDim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestSessionCache_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cache := store.Session("test-session-" + t.Name())

	// Clear leftovers from earlier runs by overwriting, then verify upsert.
	if err := cache.Save(ctx, telemetry.Vector{Model: "m1", Values: []float32{1, 0, 0}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := cache.Save(ctx, telemetry.Vector{Model: "m2", Values: []float32{0, 1, 0}}); err != nil {
		t.Fatalf("Save (upsert): %v", err)
	}

	got, ok, err := cache.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if got.Model != "m2" || len(got.Values) != 3 || got.Values[1] != 1 {
		t.Errorf("Load = %+v, want m2 / [0 1 0]", got)
	}
}

func TestSessionCache_MissingSession(t *testing.T) {
	store := newTestStore(t)

	_, ok, err := store.Session("never-written-session").Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Error("expected no cached vector")
	}
}

func TestSessionCache_IsolatesSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := store.Session("isolation-a")
	b := store.Session("isolation-b")
	if err := a.Save(ctx, telemetry.Vector{Model: "m", Values: []float32{1, 1, 1}}); err != nil {
		t.Fatal(err)
	}
	if err := b.Save(ctx, telemetry.Vector{Model: "m", Values: []float32{2, 2, 2}}); err != nil {
		t.Fatal(err)
	}
	got, _, err := a.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Values[0] != 1 {
		t.Errorf("session a overwritten by session b: %+v", got)
	}
}

func TestMigrate_RejectsNonPositiveDimensions(t *testing.T) {
	_, err := pgstore.New(context.Background(), testDSN(t), 0)
	if err == nil {
		t.Fatal("expected error for zero dimensions")
	}
}
