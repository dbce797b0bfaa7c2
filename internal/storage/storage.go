// Package storage persists server poll snapshots in SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // sqlite driver
)

// Snapshot is one observed server state, as recorded by the monitor.
type Snapshot struct {
	Address string
	Port    uint16

	Online     bool
	Name       string
	Map        string
	Game       string
	Version    string
	Players    int
	MaxPlayers int
	Bots       int
	PingMS     int64

	Polls     int64
	FirstSeen time.Time
	LastSeen  time.Time
}

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS servers (
	address     TEXT    NOT NULL,
	port        INTEGER NOT NULL,
	online      INTEGER NOT NULL DEFAULT 0,
	server_name TEXT    NOT NULL DEFAULT '',
	map_name    TEXT    NOT NULL DEFAULT '',
	game_name   TEXT    NOT NULL DEFAULT '',
	version     TEXT    NOT NULL DEFAULT '',
	players     INTEGER NOT NULL DEFAULT 0,
	max_players INTEGER NOT NULL DEFAULT 0,
	bots        INTEGER NOT NULL DEFAULT 0,
	ping_ms     INTEGER NOT NULL DEFAULT 0,
	polls       INTEGER NOT NULL DEFAULT 1,
	first_seen  DATETIME NOT NULL,
	last_seen   DATETIME NOT NULL,
	PRIMARY KEY (address, port)
);`

// New opens (or creates) the database at path and applies the schema.
func New(path string) (*Repository, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Upsert inserts a snapshot or folds it into the existing row for the
// same (address, port), bumping the poll counter and keeping first_seen.
// A2S fields are only overwritten by online snapshots so a flaky server's
// last known state survives failed polls.
func (r *Repository) Upsert(s Snapshot) error {
	const query = `
	INSERT INTO servers (
		address, port, online,
		server_name, map_name, game_name, version,
		players, max_players, bots, ping_ms,
		polls, first_seen, last_seen
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	ON CONFLICT(address, port) DO UPDATE SET
		polls     = polls + 1,
		last_seen = excluded.last_seen,
		online    = excluded.online,

		server_name = CASE WHEN excluded.online != 0 THEN excluded.server_name ELSE servers.server_name END,
		map_name    = CASE WHEN excluded.online != 0 THEN excluded.map_name    ELSE servers.map_name    END,
		game_name   = CASE WHEN excluded.online != 0 THEN excluded.game_name   ELSE servers.game_name   END,
		version     = CASE WHEN excluded.online != 0 THEN excluded.version     ELSE servers.version     END,
		players     = CASE WHEN excluded.online != 0 THEN excluded.players     ELSE servers.players     END,
		max_players = CASE WHEN excluded.online != 0 THEN excluded.max_players ELSE servers.max_players END,
		bots        = CASE WHEN excluded.online != 0 THEN excluded.bots        ELSE servers.bots        END,
		ping_ms     = CASE WHEN excluded.online != 0 THEN excluded.ping_ms     ELSE servers.ping_ms     END;
	`

	_, err := r.db.Exec(query,
		s.Address, s.Port, s.Online,
		s.Name, s.Map, s.Game, s.Version,
		s.Players, s.MaxPlayers, s.Bots, s.PingMS,
		s.LastSeen, s.LastSeen,
	)
	return err
}

// Servers lists all recorded servers, most recently seen first.
func (r *Repository) Servers() ([]Snapshot, error) {
	rows, err := r.db.Query(`
		SELECT address, port, online,
		       server_name, map_name, game_name, version,
		       players, max_players, bots, ping_ms,
		       polls, first_seen, last_seen
		FROM servers
		ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		var online int
		if err := rows.Scan(
			&s.Address, &s.Port, &online,
			&s.Name, &s.Map, &s.Game, &s.Version,
			&s.Players, &s.MaxPlayers, &s.Bots, &s.PingMS,
			&s.Polls, &s.FirstSeen, &s.LastSeen,
		); err != nil {
			return nil, err
		}
		s.Online = online != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

// Server fetches one server by its (address, port) key, or nil when it
// was never recorded.
func (r *Repository) Server(address string, port uint16) (*Snapshot, error) {
	row := r.db.QueryRow(`
		SELECT address, port, online,
		       server_name, map_name, game_name, version,
		       players, max_players, bots, ping_ms,
		       polls, first_seen, last_seen
		FROM servers
		WHERE address = ? AND port = ?
	`, address, port)

	var s Snapshot
	var online int
	err := row.Scan(
		&s.Address, &s.Port, &online,
		&s.Name, &s.Map, &s.Game, &s.Version,
		&s.Players, &s.MaxPlayers, &s.Bots, &s.PingMS,
		&s.Polls, &s.FirstSeen, &s.LastSeen,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Online = online != 0
	return &s, nil
}

// PruneStale deletes servers not seen since the cutoff and reports how
// many rows went away.
func (r *Repository) PruneStale(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM servers WHERE last_seen < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
