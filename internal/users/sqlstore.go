package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"
)

// SQLStore is the Structured store over the SQLite UserDatabase.
type SQLStore struct{ db *sql.DB }

// NewSQLStore wraps a migrated database handle.
func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) InsertUser(ctx context.Context, rec Record) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, email, password, created_at) VALUES (?,?,?,?)`,
		rec.Name, rec.Email, rec.Password, rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLStore) UserByEmail(ctx context.Context, email string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password, created_at FROM users WHERE email=?`, email)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, password, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *SQLStore) ReplaceSessions(ctx context.Context, sess Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, created_at) VALUES (?,?,?)`,
		sess.ID, sess.UserID, sess.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) ClearSessions(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions`)
	return err
}

// Sessions lists stored sessions (used by tests and the CLI).
func (s *SQLStore) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, created_at FROM sessions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var ss Session
		var created string
		if err := rows.Scan(&ss.ID, &ss.UserID, &created); err != nil {
			return nil, err
		}
		ss.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, ss)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var r Record
	var created string
	if err := row.Scan(&r.ID, &r.Name, &r.Email, &r.Password, &created); err != nil {
		return nil, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return &r, nil
}
