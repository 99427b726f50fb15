package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"git.sr.ht/~jakintosh/sso/internal/provider"
	"git.sr.ht/~jakintosh/sso/pkg/sso"
)

func (s *SQLiteStore) ContextStore() provider.ContextStore {
	return s
}

func (s *SQLiteStore) PutContext(
	ctx context.Context,
	username string,
	c sso.Context,
) error {
	if c == nil {
		c = sso.Context{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("couldn't encode context: %v", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO context (owner, data)
		SELECT i.id, ?1
		FROM identity i
		WHERE i.handle=?2
		ON CONFLICT (owner) DO UPDATE
		SET data=excluded.data;`,
		string(data),
		username,
	)
	if err != nil {
		return fmt.Errorf("couldn't insert into context: %v", err)
	}
	if resultsEmpty(result) {
		return fmt.Errorf("%w: identity %s", provider.ErrNotFound, username)
	}
	return nil
}

func (s *SQLiteStore) GetContext(
	ctx context.Context,
	username string,
) (
	sso.Context,
	error,
) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.data
		FROM context c
		JOIN identity i ON c.owner = i.id
		WHERE i.handle=?1;`,
		username,
	)

	var data string
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: context for %s", provider.ErrNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't scan context: %v", err)
	}

	var c sso.Context
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("couldn't decode context: %v", err)
	}
	return c, nil
}
