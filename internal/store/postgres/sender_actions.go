package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/znz-systems/mailsift/internal/models"
)

type SenderActionStore struct {
	db *sql.DB
}

func NewSenderActionStore(db *sql.DB) *SenderActionStore {
	return &SenderActionStore{db: db}
}

func (s *SenderActionStore) RecordAction(ctx context.Context, sender string, action models.SenderAction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sender_actions (sender, action) VALUES ($1, $2)`,
		sender, string(action),
	)
	return err
}

func (s *SenderActionStore) BehaviorFor(ctx context.Context, senders []string) (map[string]models.SenderBehavior, error) {
	out := make(map[string]models.SenderBehavior)
	if len(senders) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT sender,
		        COUNT(*) FILTER (WHERE action = 'keep'),
		        COUNT(*) FILTER (WHERE action = 'delete')
		 FROM sender_actions
		 WHERE sender = ANY($1)
		 GROUP BY sender`,
		pq.Array(senders),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sender string
		var b models.SenderBehavior
		if err := rows.Scan(&sender, &b.Keep, &b.Delete); err != nil {
			return nil, err
		}
		out[sender] = b
	}
	return out, rows.Err()
}
