// Package testutil provides shared test helpers for setting up stores and backends.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/smartyoni/checkdoc/internal/localstore"
	"github.com/smartyoni/checkdoc/internal/remotestore"
	"github.com/smartyoni/checkdoc/internal/storage"
)

// Logger returns a logger that discards all output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestLocal creates a temporary SQLite-backed local store that is
// automatically cleaned up.
func TestLocal(t *testing.T) *localstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkdoc-test.db")
	store, err := localstore.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestRemote starts an in-process Redis server and returns a remote store
// backed by it, plus the server for fault injection.
func TestRemote(t *testing.T) (*remotestore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return remotestore.New(client), mr
}

// TestStore wires a facade over fresh local and remote backends.
func TestStore(t *testing.T) (*storage.Facade, *localstore.Store, *miniredis.Miniredis) {
	t.Helper()
	local := TestLocal(t)
	remote, mr := TestRemote(t)
	return storage.NewFacade(remote, local, Logger()), local, mr
}
