package directory

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "teraboxbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type Config struct {
	Path        string
	BusyTimeout time.Duration
}

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Upsert(ctx context.Context, rec UserRecord) error {
	if rec.LastActive.IsZero() {
		rec.LastActive = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(user_id, username, last_active) VALUES(?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   username=excluded.username,
		   last_active=excluded.last_active`,
		rec.ID, nullStr(rec.Username), rec.LastActive.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) Stats(ctx context.Context, now time.Time) (ActivityStats, error) {
	day := now.Add(-24 * time.Hour).UnixMilli()
	week := now.Add(-7 * 24 * time.Hour).UnixMilli()
	month := now.Add(-30 * 24 * time.Hour).UnixMilli()
	year := now.Add(-365 * 24 * time.Hour).UnixMilli()

	var st ActivityStats
	err := s.db.QueryRowContext(ctx,
		`SELECT
		   COUNT(*),
		   SUM(CASE WHEN last_active >= ? THEN 1 ELSE 0 END),
		   SUM(CASE WHEN last_active >= ? THEN 1 ELSE 0 END),
		   SUM(CASE WHEN last_active >= ? THEN 1 ELSE 0 END),
		   SUM(CASE WHEN last_active >= ? THEN 1 ELSE 0 END)
		 FROM users`,
		day, week, month, year,
	).Scan(&st.Total, &nullInt{&st.Day}, &nullInt{&st.Week}, &nullInt{&st.Month}, &nullInt{&st.Year})
	if err != nil {
		return ActivityStats{}, err
	}
	return st, nil
}

func (s *sqliteStore) RecipientIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM users ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

// nullInt scans SUM() results, which are NULL over an empty table.
type nullInt struct{ dst *int }

func (n *nullInt) Scan(src any) error {
	if src == nil {
		*n.dst = 0
		return nil
	}
	switch v := src.(type) {
	case int64:
		*n.dst = int(v)
	case float64:
		*n.dst = int(v)
	default:
		return fmt.Errorf("unexpected count type %T", src)
	}
	return nil
}
