package postgres

import (
	"context"
	"database/sql"
)

type RuleSetStore struct {
	db *sql.DB
}

func NewRuleSetStore(db *sql.DB) *RuleSetStore {
	return &RuleSetStore{db: db}
}

func (s *RuleSetStore) GetRuleSet(ctx context.Context, name string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM rule_sets WHERE name = $1`,
		name,
	).Scan(&payload)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *RuleSetStore) PutRuleSet(ctx context.Context, name string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rule_sets (name, payload)
		 VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`,
		name, payload,
	)
	return err
}
