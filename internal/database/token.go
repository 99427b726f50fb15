package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"git.sr.ht/~jakintosh/sso/internal/provider"
)

func (s *SQLiteStore) TokenStore() provider.TokenStore {
	return s
}

// PutToken stores token as the only active token of username.
func (s *SQLiteStore) PutToken(
	ctx context.Context,
	username string,
	token string,
) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO token (owner, value, issued)
		SELECT i.id, ?1, ?2
		FROM identity i
		WHERE i.handle=?3
		ON CONFLICT (owner) DO UPDATE
		SET value=excluded.value, issued=excluded.issued;`,
		token,
		time.Now().Unix(),
		username,
	)
	if err != nil {
		return fmt.Errorf("couldn't insert into token: %v", err)
	}
	if resultsEmpty(result) {
		return fmt.Errorf("%w: identity %s", provider.ErrNotFound, username)
	}
	return nil
}

func (s *SQLiteStore) GetToken(
	ctx context.Context,
	username string,
) (
	string,
	error,
) {
	row := s.db.QueryRowContext(ctx, `
		SELECT t.value
		FROM token t
		JOIN identity i ON t.owner = i.id
		WHERE i.handle=?1;`,
		username,
	)

	var token string
	err := row.Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: token for %s", provider.ErrNotFound, username)
	}
	if err != nil {
		return "", fmt.Errorf("couldn't scan token: %v", err)
	}
	return token, nil
}

// DeleteToken deletes the active token of username only if it equals token.
func (s *SQLiteStore) DeleteToken(
	ctx context.Context,
	username string,
	token string,
) (
	bool,
	error,
) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM token
		WHERE value=?2
		AND owner IN (
			SELECT i.id
			FROM identity i
			WHERE i.handle=?1
		);`,
		username,
		token,
	)
	if err != nil {
		return false, fmt.Errorf("couldn't delete from token: %v", err)
	}

	deleted := !resultsEmpty(result)
	return deleted, nil
}

func (s *SQLiteStore) DeleteTokens(
	ctx context.Context,
	username string,
) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM token
		WHERE owner IN (
			SELECT i.id
			FROM identity i
			WHERE i.handle=?1
		);`,
		username,
	)
	if err != nil {
		return fmt.Errorf("couldn't delete from token: %v", err)
	}
	return nil
}
