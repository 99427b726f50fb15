package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"git.sr.ht/~jakintosh/sso/internal/provider"
)

func (s *SQLiteStore) IdentityStore() provider.IdentityStore {
	return s
}

func (s *SQLiteStore) InsertIdentity(
	ctx context.Context,
	username string,
	secret []byte,
) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO identity (handle, secret)
		VALUES (?1, ?2)
		ON CONFLICT (handle) DO NOTHING;`,
		username,
		secret,
	)
	if err != nil {
		return fmt.Errorf("couldn't insert into identity: %v", err)
	}
	if resultsEmpty(result) {
		return fmt.Errorf("%w: %s", provider.ErrIdentityExists, username)
	}
	return nil
}

func (s *SQLiteStore) GetSecret(
	ctx context.Context,
	username string,
) (
	[]byte,
	error,
) {
	row := s.db.QueryRowContext(ctx, `
		SELECT secret
		FROM identity i
		WHERE i.handle=?1;`,
		username,
	)

	var secret []byte
	err := row.Scan(&secret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: identity %s", provider.ErrNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't scan identity secret: %v", err)
	}
	return secret, nil
}

// DeleteIdentity removes the identity together with its token and context.
func (s *SQLiteStore) DeleteIdentity(
	ctx context.Context,
	username string,
) (
	bool,
	error,
) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("couldn't begin delete: %v", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"token", "context"} {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM `+table+`
			WHERE owner IN (
				SELECT i.id
				FROM identity i
				WHERE i.handle=?1
			);`,
			username,
		)
		if err != nil {
			return false, fmt.Errorf("couldn't delete from %s: %v", table, err)
		}
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM identity
		WHERE handle=?1;`,
		username,
	)
	if err != nil {
		return false, fmt.Errorf("couldn't delete from identity: %v", err)
	}
	if resultsEmpty(result) {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("couldn't commit delete: %v", err)
	}
	return true, nil
}
