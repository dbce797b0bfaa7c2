package storage_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/blukai/steamquery/internal/storage"
	"github.com/matryer/is"
)

func openRepo(t *testing.T) *storage.Repository {
	t.Helper()
	is := is.New(t)

	repo, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	is.NoErr(err)
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestUpsertAndGet(t *testing.T) {
	is := is.New(t)
	repo := openRepo(t)

	now := time.Now().UTC().Truncate(time.Second)
	err := repo.Upsert(storage.Snapshot{
		Address:    "192.0.2.1",
		Port:       27015,
		Online:     true,
		Name:       "Test",
		Map:        "de_dust2",
		Game:       "CSGO",
		Version:    "1.0",
		Players:    10,
		MaxPlayers: 32,
		PingMS:     23,
		LastSeen:   now,
	})
	is.NoErr(err)

	got, err := repo.Server("192.0.2.1", 27015)
	is.NoErr(err)
	is.True(got != nil)
	is.True(got.Online)
	is.Equal(got.Name, "Test")
	is.Equal(got.Map, "de_dust2")
	is.Equal(got.Players, 10)
	is.Equal(got.Polls, int64(1))
}

func TestUpsertFoldsIntoExistingRow(t *testing.T) {
	is := is.New(t)
	repo := openRepo(t)

	base := storage.Snapshot{
		Address:  "192.0.2.1",
		Port:     27015,
		Online:   true,
		Name:     "Test",
		Players:  10,
		LastSeen: time.Now().UTC(),
	}
	is.NoErr(repo.Upsert(base))

	// an offline poll keeps the last known a2s fields
	offline := storage.Snapshot{
		Address:  "192.0.2.1",
		Port:     27015,
		Online:   false,
		LastSeen: time.Now().UTC(),
	}
	is.NoErr(repo.Upsert(offline))

	got, err := repo.Server("192.0.2.1", 27015)
	is.NoErr(err)
	is.True(got != nil)
	is.True(!got.Online)
	is.Equal(got.Name, "Test")
	is.Equal(got.Players, 10)
	is.Equal(got.Polls, int64(2))
}

func TestServerNotFound(t *testing.T) {
	is := is.New(t)
	repo := openRepo(t)

	got, err := repo.Server("203.0.113.9", 27015)
	is.NoErr(err)
	is.Equal(got, nil)
}

func TestServersOrderedByLastSeen(t *testing.T) {
	is := is.New(t)
	repo := openRepo(t)

	now := time.Now().UTC()
	is.NoErr(repo.Upsert(storage.Snapshot{Address: "192.0.2.1", Port: 27015, Name: "old", LastSeen: now.Add(-time.Hour)}))
	is.NoErr(repo.Upsert(storage.Snapshot{Address: "192.0.2.2", Port: 27015, Name: "new", LastSeen: now}))

	servers, err := repo.Servers()
	is.NoErr(err)
	is.Equal(len(servers), 2)
	is.Equal(servers[0].Address, "192.0.2.2")
	is.Equal(servers[1].Address, "192.0.2.1")
}

func TestPruneStale(t *testing.T) {
	is := is.New(t)
	repo := openRepo(t)

	now := time.Now().UTC()
	is.NoErr(repo.Upsert(storage.Snapshot{Address: "192.0.2.1", Port: 27015, LastSeen: now.Add(-48 * time.Hour)}))
	is.NoErr(repo.Upsert(storage.Snapshot{Address: "192.0.2.2", Port: 27015, LastSeen: now}))

	pruned, err := repo.PruneStale(now.Add(-24 * time.Hour))
	is.NoErr(err)
	is.Equal(pruned, int64(1))

	servers, err := repo.Servers()
	is.NoErr(err)
	is.Equal(len(servers), 1)
	is.Equal(servers[0].Address, "192.0.2.2")
}
