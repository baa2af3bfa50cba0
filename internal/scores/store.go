// internal/scores/store.go
//
// Snake leaderboard persistence.
// Finished runs are stored with the UTC day they ended on; the leaderboard
// for a day is ordered by score, then length, then time of play.

package scores

import (
	"context"
	"database/sql"
	"time"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Result is one finished snake run.
type Result struct {
	Player string `json:"player"`
	Date   string `json:"date"`
	Score  int    `json:"score"`
	Length int    `json:"length"`
}

// Store reads and writes snake_results.
type Store struct{ db *sql.DB }

// NewStore wraps a migrated database handle.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// InsertResult records one run.
func (s *Store) InsertResult(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snake_results(player, date, score, length) VALUES(?,?,?,?)`,
		r.Player, r.Date, r.Score, r.Length,
	)
	return err
}

// Leaderboard returns the best runs of date. Default limit is 20.
func (s *Store) Leaderboard(ctx context.Context, date string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT player, date, score, length
		 FROM snake_results
		 WHERE date=?
		 ORDER BY score DESC, length DESC, created_at ASC, id ASC
		 LIMIT ?`, date, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Result, 0, limit)
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Player, &r.Date, &r.Score, &r.Length); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
