package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Store persists decisions in Postgres.
type Store struct {
	DB *sql.DB
}

// NewWithDSN opens and pings a Postgres connection.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

const decisionColumns = `id, query, option_a, option_b, winner, rule, category, brief, confidence, metrics, evidence, ts`

func (s *Store) Save(ctx context.Context, d Decision) (Decision, error) {
	d = d.Normalize()
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO decisions (id, query, option_a, option_b, winner, rule, category, brief, confidence, metrics, evidence, ts)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  query = EXCLUDED.query,
  option_a = EXCLUDED.option_a,
  option_b = EXCLUDED.option_b,
  winner = EXCLUDED.winner,
  rule = EXCLUDED.rule,
  category = EXCLUDED.category,
  brief = EXCLUDED.brief,
  confidence = EXCLUDED.confidence,
  metrics = EXCLUDED.metrics,
  evidence = EXCLUDED.evidence,
  ts = EXCLUDED.ts;
`, d.ID, d.Query, d.Left, d.Right, d.Winner, d.Rule, d.Category, d.Brief, d.Confidence, []byte(d.Metrics), pq.Array(d.Evidence), d.Timestamp)
	if err != nil {
		return Decision{}, fmt.Errorf("save decision %s: %w", d.ID, err)
	}
	return d, nil
}

func (s *Store) List(ctx context.Context) ([]Decision, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+decisionColumns+` FROM decisions ORDER BY ts DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Decision{}
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (Decision, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+decisionColumns+` FROM decisions WHERE id=$1`, id)
	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Decision{}, ErrNotFound
	}
	return d, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM decisions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDecision(sc scanner) (Decision, error) {
	var d Decision
	var metrics []byte
	var evidence pq.StringArray
	if err := sc.Scan(&d.ID, &d.Query, &d.Left, &d.Right, &d.Winner, &d.Rule, &d.Category, &d.Brief, &d.Confidence, &metrics, &evidence, &d.Timestamp); err != nil {
		return Decision{}, err
	}
	d.Metrics = metrics
	d.Evidence = []string(evidence)
	return d.Normalize(), nil
}
