// Package store persists archived creators, posts, tags and file metadata.
//
// The schema is shared by the sqlite (modernc.org/sqlite) and postgres
// (lib/pq) drivers. Queries are written with ? placeholders and rebound
// for the active driver. Timestamps are stored as unix milliseconds.
package store

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	errs "archivist/pkg/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// knownUpdatesChunk bounds the placeholders of one IN query
const knownUpdatesChunk = 500

type (
	AuthorID   int64
	PostID     int64
	FileMetaID int64
)

type Config struct {
	Driver string
	DSN    string
}

// Store is the sync database
type Store struct {
	db *sqlx.DB
}

// Counts is a summary of the archive contents
type Counts struct {
	Authors int `db:"authors"`
	Posts   int `db:"posts"`
	Files   int `db:"files"`
	Tags    int `db:"tags"`
}

// Open connects to the database and applies the schema
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	dsn := cfg.DSN
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, errs.New(errs.ErrorTypeStorage, "unsupported database driver: "+driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "failed to connect to database")
	}

	if driver == DriverSQLite {
		// One writer at a time; a second connection would see SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx, driver); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an open connection without running migrations
func NewWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "archive.db"
	}
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (s *Store) migrate(ctx context.Context, driver string) error {
	schema, err := migrations.ReadFile("migrations/" + driver + ".sql")
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "missing schema for "+driver)
	}
	if _, err := s.db.ExecContext(ctx, string(schema)); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "failed to apply schema")
	}
	return nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin starts the transaction one creator's batch is written in
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "failed to begin transaction")
	}
	return &Tx{tx: tx, platforms: make(map[AuthorID]string)}, nil
}

const queryKnownUpdates = `SELECT source, updated FROM posts WHERE source IN (?)`

// KnownUpdates returns the persisted updated time of every known link
func (s *Store) KnownUpdates(ctx context.Context, links []string) (map[string]time.Time, error) {
	known := make(map[string]time.Time, len(links))

	for start := 0; start < len(links); start += knownUpdatesChunk {
		end := min(start+knownUpdatesChunk, len(links))

		query, args, err := sqlx.In(queryKnownUpdates, links[start:end])
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeStorage, err, "failed to build known updates query")
		}

		var rows []struct {
			Source  string `db:"source"`
			Updated int64  `db:"updated"`
		}
		if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeStorage, err, "failed to load known updates")
		}
		for _, r := range rows {
			known[r.Source] = time.UnixMilli(r.Updated).UTC()
		}
	}
	return known, nil
}

const queryCounts = `SELECT
	(SELECT COUNT(*) FROM authors) AS authors,
	(SELECT COUNT(*) FROM posts) AS posts,
	(SELECT COUNT(*) FROM file_metas) AS files,
	(SELECT COUNT(*) FROM tags) AS tags`

// Counts reports how many rows each table holds
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	if err := s.db.GetContext(ctx, &c, queryCounts); err != nil {
		return Counts{}, errs.Wrap(errs.ErrorTypeStorage, err, "failed to count archive contents")
	}
	return c, nil
}

// PostFiles lists the file names recorded for a source link
func (s *Store) PostFiles(ctx context.Context, source string) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names, s.db.Rebind(
		`SELECT f.filename FROM file_metas f JOIN posts p ON p.id = f.post WHERE p.source = ? ORDER BY f.id`), source)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, fmt.Sprintf("failed to list files of %s", source))
	}
	return names, nil
}
