package snapshot

import (
	"context"
	"errors"

	"github.com/itzfarzaan/BuddyWay/internal/db"

	"github.com/jackc/pgx/v5"
)

// Postgres keeps the snapshot in a single-row table:
//
//	CREATE TABLE IF NOT EXISTS session_snapshot (
//	    id   int PRIMARY KEY DEFAULT 1 CHECK (id = 1),
//	    data jsonb NOT NULL,
//	    updated_at timestamptz NOT NULL DEFAULT now()
//	);
type Postgres struct {
	db db.Querier
}

func NewPostgres(q db.Querier) *Postgres {
	return &Postgres{db: q}
}

func (p *Postgres) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := p.db.QueryRow(ctx, `SELECT data FROM session_snapshot WHERE id=1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (p *Postgres) Save(ctx context.Context, data []byte) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO session_snapshot (id, data, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE
		SET data=EXCLUDED.data, updated_at=now()
	`, data)
	return err
}
