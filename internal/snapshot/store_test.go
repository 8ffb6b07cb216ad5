package snapshot

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
)

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	store := NewFile(path)

	data, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if data != nil {
		t.Fatalf("expected nil for missing snapshot")
	}

	if err := store.Save(context.Background(), []byte(`{"abc":{}}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err = store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(data) != `{"abc":{}}` {
		t.Fatalf("unexpected snapshot: %s", data)
	}
}

func TestFileConcurrentSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	store := NewFile(path)

	// large enough that an interleaved write would show up as a torn file
	payload := []byte(`{"k":"` + strings.Repeat("v", 4096) + `"}`)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if err := store.Save(context.Background(), payload); err != nil {
					t.Errorf("save: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	data, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("snapshot torn: got %d bytes, want %d", len(data), len(payload))
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	store := NewMemory()
	if err := store.Save(context.Background(), []byte("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := store.Load(context.Background())
	if err != nil || string(data) != "x" {
		t.Fatalf("load: %s %v", data, err)
	}
}

func TestRedisRoundTrip(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	store := NewRedis(client)

	data, err := store.Load(context.Background())
	if err != nil || data != nil {
		t.Fatalf("expected empty snapshot, got %s %v", data, err)
	}

	if err := store.Save(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err = store.Load(context.Background())
	if err != nil || string(data) != `{}` {
		t.Fatalf("load: %s %v", data, err)
	}
}

func TestPostgresSaveLoad(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	store := NewPostgres(mock)

	mock.ExpectExec(`INSERT INTO session_snapshot`).
		WithArgs([]byte(`{}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.Save(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	mock.ExpectQuery(`SELECT data FROM session_snapshot`).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{}`)))

	data, err := store.Load(context.Background())
	if err != nil || string(data) != `{}` {
		t.Fatalf("load: %s %v", data, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresLoadEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	store := NewPostgres(mock)

	mock.ExpectQuery(`SELECT data FROM session_snapshot`).
		WillReturnRows(pgxmock.NewRows([]string{"data"}))

	data, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if data != nil {
		t.Fatalf("expected nil snapshot for empty table")
	}
}
