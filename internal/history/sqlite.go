package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"pushkit/internal/message"
	"pushkit/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Fixed-width UTC stamp so string ordering in SQL matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type sqliteStore struct {
	db   *sql.DB
	log  logx.Logger
	subs unseenSubs
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
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

func (s *sqliteStore) Save(ctx context.Context, userID string, m message.Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages(id, user_id, created_at, is_seen, body)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET body=excluded.body`,
		m.ID, userID, m.CreatedAt.UTC().Format(timeLayout), boolInt(m.Seen), string(body),
	)
	if err != nil {
		return err
	}
	s.pushUnseen(ctx)
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (message.Message, bool, error) {
	var (
		body string
		seen int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT body, is_seen FROM messages WHERE id = ?`, id).Scan(&body, &seen)
	if errors.Is(err, sql.ErrNoRows) {
		return message.Message{}, false, nil
	}
	if err != nil {
		return message.Message{}, false, err
	}
	m, err := decodeRow(body, seen)
	if err != nil {
		return message.Message{}, false, err
	}
	return m, true, nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return err
	}
	s.pushUnseen(ctx)
	return nil
}

func (s *sqliteStore) MarkSeen(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE messages SET is_seen = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	s.pushUnseen(ctx)
	return nil
}

func (s *sqliteStore) MarkAllSeen(ctx context.Context, userID string) error {
	var err error
	if userID == "" {
		_, err = s.db.ExecContext(ctx, `UPDATE messages SET is_seen = 1 WHERE is_seen = 0`)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE messages SET is_seen = 1 WHERE is_seen = 0 AND user_id = ?`, userID)
	}
	if err != nil {
		return err
	}
	s.pushUnseen(ctx)
	return nil
}

func (s *sqliteStore) ByUser(ctx context.Context, userID string) ([]message.Message, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if userID == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT body, is_seen FROM messages ORDER BY created_at DESC`)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT body, is_seen FROM messages WHERE user_id = ? ORDER BY created_at DESC`, userID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []message.Message
	for rows.Next() {
		var (
			body string
			seen int
		)
		if err := rows.Scan(&body, &seen); err != nil {
			return nil, err
		}
		m, err := decodeRow(body, seen)
		if err != nil {
			s.log.Warn("skipping undecodable history row", logx.Err(err))
			continue
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *sqliteStore) UnseenCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE is_seen = 0`).Scan(&n)
	return n, err
}

func (s *sqliteStore) SubscribeUnseen(buffer int) (<-chan int, func()) {
	return s.subs.subscribe(buffer)
}

func (s *sqliteStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE created_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.pushUnseen(ctx)
	}
	return int(n), nil
}

func (s *sqliteStore) pushUnseen(ctx context.Context) {
	n, err := s.UnseenCount(ctx)
	if err != nil {
		s.log.Warn("unseen count failed", logx.Err(err))
		return
	}
	s.subs.notify(n)
}

// decodeRow rehydrates the serialized message; is_seen is authoritative over
// whatever the body snapshot carried.
func decodeRow(body string, seen int) (message.Message, error) {
	var m message.Message
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return message.Message{}, err
	}
	m.Seen = seen != 0
	return m, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
