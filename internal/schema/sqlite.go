package schema

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"reasoner/internal/logging"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLStore is a persistent Oracle backed by SQLite.
type SQLStore struct {
	db     *sql.DB
	dbPath string
}

var _ Oracle = (*SQLStore)(nil)

// OpenSQLStore creates or opens a schema database. ":memory:" opens a
// private in-memory database.
func OpenSQLStore(path string) (*SQLStore, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a fresh database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLStore{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLStore) Path() string {
	return s.dbPath
}

func (s *SQLStore) initSchema() error {
	schema := `
	-- Schema concepts: types, roles and the meta labels
	CREATE TABLE IF NOT EXISTS concepts (
		label TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		sup TEXT,
		implicit INTEGER NOT NULL DEFAULT 0,
		value_type TEXT,
		position INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_concepts_sup ON concepts(sup);
	CREATE INDEX IF NOT EXISTS idx_concepts_kind ON concepts(kind);

	-- relates / plays edges
	CREATE TABLE IF NOT EXISTS concept_edges (
		source TEXT NOT NULL,
		edge TEXT NOT NULL,
		target TEXT NOT NULL,
		PRIMARY KEY (source, edge, target)
	);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON concept_edges(target, edge);

	-- Instance-count heuristic per type
	CREATE TABLE IF NOT EXISTS shard_counts (
		label TEXT PRIMARY KEY,
		count INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const (
	edgeRelates = "relates"
	edgePlays   = "plays"
)

// Import replaces the stored schema with g.
func (s *SQLStore) Import(ctx context.Context, g *Graph) error {
	timer := logging.StartTimer(logging.CategorySchema, "SQLStore.Import")
	defer timer.Stop()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM concepts", "DELETE FROM concept_edges", "DELETE FROM shard_counts"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear schema: %w", err)
		}
	}

	concepts := g.Concepts()
	for i, c := range concepts {
		var sup any
		if c.Sup != "" {
			sup = string(c.Sup)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO concepts (label, kind, sup, implicit, value_type, position) VALUES (?, ?, ?, ?, ?, ?)`,
			string(c.Label), c.Kind.String(), sup, c.Implicit, c.ValueType, i,
		); err != nil {
			return fmt.Errorf("failed to insert concept %q: %w", c.Label, err)
		}
		for _, r := range c.Relates {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO concept_edges (source, edge, target) VALUES (?, ?, ?)`,
				string(c.Label), edgeRelates, string(r),
			); err != nil {
				return fmt.Errorf("failed to insert relates edge: %w", err)
			}
		}
		for _, r := range c.Plays {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO concept_edges (source, edge, target) VALUES (?, ?, ?)`,
				string(c.Label), edgePlays, string(r),
			); err != nil {
				return fmt.Errorf("failed to insert plays edge: %w", err)
			}
		}
	}
	for l, n := range g.ShardCounts() {
		if err := setShardCount(ctx, tx, l, n); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	logging.Get(logging.CategorySchema).Debug("schema imported",
		zap.String("path", s.dbPath),
		zap.Int("concepts", len(concepts)))
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setShardCount(ctx context.Context, e execer, l Label, n int64) error {
	_, err := e.ExecContext(ctx,
		`INSERT OR REPLACE INTO shard_counts (label, count) VALUES (?, ?)`,
		string(l), n,
	)
	if err != nil {
		return fmt.Errorf("failed to store shard count for %q: %w", l, err)
	}
	return nil
}

// SetShardCount stores the instance count of a type.
func (s *SQLStore) SetShardCount(ctx context.Context, l Label, n int64) error {
	return setShardCount(ctx, s.db, l, n)
}

// Lookup implements Oracle.
func (s *SQLStore) Lookup(ctx context.Context, label Label) (Concept, bool, error) {
	var (
		kind      string
		sup       sql.NullString
		implicit  bool
		valueType sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, sup, implicit, value_type FROM concepts WHERE label = ?`, string(label),
	).Scan(&kind, &sup, &implicit, &valueType)
	if err == sql.ErrNoRows {
		return Concept{}, false, nil
	}
	if err != nil {
		return Concept{}, false, fmt.Errorf("failed to look up %q: %w", label, err)
	}

	k, err := ParseKind(kind)
	if err != nil {
		return Concept{}, false, err
	}
	c := Concept{
		Label:     label,
		Kind:      k,
		Sup:       Label(sup.String),
		Implicit:  implicit,
		ValueType: valueType.String,
	}

	if c.Subs, err = s.labels(ctx, `SELECT label FROM concepts WHERE sup = ? ORDER BY label`, label); err != nil {
		return Concept{}, false, err
	}
	if c.Relates, err = s.labels(ctx, `SELECT target FROM concept_edges WHERE source = ? AND edge = 'relates' ORDER BY rowid`, label); err != nil {
		return Concept{}, false, err
	}
	if c.Plays, err = s.labels(ctx, `SELECT target FROM concept_edges WHERE source = ? AND edge = 'plays' ORDER BY rowid`, label); err != nil {
		return Concept{}, false, err
	}
	if c.RelatedBy, err = s.labels(ctx, `SELECT source FROM concept_edges WHERE target = ? AND edge = 'relates' ORDER BY rowid`, label); err != nil {
		return Concept{}, false, err
	}
	if c.PlayedBy, err = s.labels(ctx, `SELECT source FROM concept_edges WHERE target = ? AND edge = 'plays' ORDER BY rowid`, label); err != nil {
		return Concept{}, false, err
	}
	return c, true, nil
}

func (s *SQLStore) labels(ctx context.Context, query string, args ...any) ([]Label, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("schema query failed: %w", err)
	}
	defer rows.Close()

	var out []Label
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("schema row scan failed: %w", err)
		}
		out = append(out, Label(l))
	}
	return out, rows.Err()
}

// Labels implements Oracle.
func (s *SQLStore) Labels(ctx context.Context, kind Kind) ([]Label, error) {
	return s.labels(ctx, `SELECT label FROM concepts WHERE kind = ? ORDER BY position`, kind.String())
}

// ShardCount implements Oracle. Types without a stored count report zero.
func (s *SQLStore) ShardCount(ctx context.Context, label Label) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT count FROM shard_counts WHERE label = ?`, string(label)).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read shard count for %q: %w", label, err)
	}
	return n, nil
}
