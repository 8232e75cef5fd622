package persist

// Snapshot persistence for chartd.
//
// Schema (created by EnsureSchema):
//   chart_snapshots:
//     chart_id    TEXT      NOT NULL PRIMARY KEY
//     attributes  TEXT      NOT NULL  -- JSON object of attribute name -> value
//     store       TEXT      NOT NULL  -- JSON series store snapshot
//     updated_at  TIMESTAMP NOT NULL
//
// Queries are written with "?" placeholders and rebound to "$n" for postgres.
// The upsert uses ON CONFLICT, which both sqlite (3.24+) and postgres accept.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/component"
	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type Clock func() time.Time

type Options struct {
	// Clock supplies updated_at. If nil, uses time.Now().UTC().
	Clock Clock
}

// Record is a stored snapshot with its write time.
type Record struct {
	Snapshot  component.Snapshot
	UpdatedAt time.Time
}

// Store is a chart snapshot table on sqlite3 or postgres.
type Store struct {
	db     *sql.DB
	driver string
	clock  Clock
}

// Open connects to driver/dsn and ensures the schema. Bare sqlite paths get
// WAL and a busy timeout.
func Open(ctx context.Context, driver, dsn string, opts Options) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_busy_timeout=5000&_journal_mode=WAL"
		}
	case DriverPostgres:
	default:
		return nil, cerr.Newf(cerr.RequestInvalid, "unsupported database driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, cerr.Wrap(cerr.StorageUnavailable, err, "open database: "+err.Error())
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	s, err := New(db, driver, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB, driver string, opts Options) (*Store, error) {
	if db == nil {
		return nil, cerr.New(cerr.StorageUnavailable, "db is nil")
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, cerr.Newf(cerr.RequestInvalid, "unsupported database driver %q", driver)
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Store{db: db, driver: driver, clock: opts.Clock}, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	ts := "TIMESTAMP"
	if s.driver == DriverPostgres {
		ts = "TIMESTAMPTZ"
	}
	q := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS chart_snapshots (
  chart_id   TEXT NOT NULL PRIMARY KEY,
  attributes TEXT NOT NULL,
  store      TEXT NOT NULL,
  updated_at %s NOT NULL
);`, ts)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return cerr.Wrap(cerr.StorageUnavailable, err, "ensure schema: "+err.Error())
	}
	return nil
}

// Save upserts snap.
func (s *Store) Save(ctx context.Context, snap component.Snapshot) error {
	if strings.TrimSpace(snap.ID) == "" {
		return cerr.New(cerr.RequestInvalid, "snapshot id is required")
	}
	attrs, err := json.Marshal(snap.Attributes)
	if err != nil {
		return fmt.Errorf("persist: encode attributes: %w", err)
	}
	store, err := json.Marshal(snap.Store)
	if err != nil {
		return fmt.Errorf("persist: encode store: %w", err)
	}
	q := s.rebind(`
INSERT INTO chart_snapshots (chart_id, attributes, store, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (chart_id) DO UPDATE SET
  attributes = excluded.attributes,
  store      = excluded.store,
  updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, q, snap.ID, string(attrs), string(store), s.clock().UTC()); err != nil {
		return cerr.Wrap(cerr.StorageUnavailable, err, "save snapshot: "+err.Error())
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id string) (Record, error) {
	q := s.rebind(`SELECT chart_id, attributes, store, updated_at FROM chart_snapshots WHERE chart_id = ?`)
	rec, err := scanRecord(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, cerr.Newf(cerr.ChartNotFound, "chart %q not found", id)
	}
	return rec, err
}

// List returns every snapshot ordered by chart id.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chart_id, attributes, store, updated_at FROM chart_snapshots ORDER BY chart_id ASC`)
	if err != nil {
		return nil, cerr.Wrap(cerr.StorageUnavailable, err, "list snapshots: "+err.Error())
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, cerr.Wrap(cerr.StorageUnavailable, err, "list snapshots: "+err.Error())
	}
	return out, nil
}

// Delete removes id; a missing row is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM chart_snapshots WHERE chart_id = ?`), id); err != nil {
		return cerr.Wrap(cerr.StorageUnavailable, err, "delete snapshot: "+err.Error())
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec          Record
		attrs, store string
	)
	if err := sc.Scan(&rec.Snapshot.ID, &attrs, &store, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, cerr.Wrap(cerr.StorageUnavailable, err, "read snapshot: "+err.Error())
	}
	if err := json.Unmarshal([]byte(attrs), &rec.Snapshot.Attributes); err != nil {
		return Record{}, fmt.Errorf("persist: decode attributes for %s: %w", rec.Snapshot.ID, err)
	}
	if err := json.Unmarshal([]byte(store), &rec.Snapshot.Store); err != nil {
		return Record{}, fmt.Errorf("persist: decode store for %s: %w", rec.Snapshot.ID, err)
	}
	return rec, nil
}

// rebind rewrites "?" placeholders as "$1", "$2", ... for postgres.
func (s *Store) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
