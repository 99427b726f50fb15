package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidUsername = errors.New("invalid username")

func (p *Provider) RegisterUser(
	ctx context.Context,
	username string,
	password string,
) (bool, error) {
	if err := validateUsername(username); err != nil {
		p.log.WithField("username", username).Debug(err)
		return false, nil
	}
	if password == "" {
		return false, nil
	}

	hashPass, err := bcrypt.GenerateFromPassword([]byte(password), p.passwordMode.Cost())
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	err = p.identities.InsertIdentity(ctx, username, hashPass)
	if errors.Is(err, ErrIdentityExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert identity: %w", err)
	}

	// a token left behind by an earlier owner of the name must not carry over
	if err := p.tokens.DeleteTokens(ctx, username); err != nil {
		if _, rbErr := p.identities.DeleteIdentity(ctx, username); rbErr != nil {
			p.log.WithField("username", username).WithError(rbErr).Error("failed to roll back registration")
		}
		return false, fmt.Errorf("failed to clear stale tokens: %w", err)
	}

	p.log.WithField("username", username).Info("registered user")
	return true, nil
}

func (p *Provider) DeleteUser(
	ctx context.Context,
	username string,
) (bool, error) {
	// tokens may live outside the identity database and go first, so a
	// failed delete never leaves a session behind for the name
	if err := p.tokens.DeleteTokens(ctx, username); err != nil {
		return false, fmt.Errorf("failed to delete tokens: %w", err)
	}

	deleted, err := p.identities.DeleteIdentity(ctx, username)
	if err != nil {
		return false, fmt.Errorf("failed to delete identity: %w", err)
	}
	if !deleted {
		return false, nil
	}

	p.log.WithField("username", username).Info("deleted user")
	return true, nil
}

func (p *Provider) LoginUser(
	ctx context.Context,
	username string,
	password string,
) (bool, error) {
	err := p.authenticate(ctx, username, password)
	if errors.Is(err, ErrNotFound) || errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) authenticate(
	ctx context.Context,
	username string,
	password string,
) error {
	hash, err := p.identities.GetSecret(ctx, username)
	if err != nil {
		return err
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password))
}

func validateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if strings.Contains(username, ":") {
		return fmt.Errorf("%w: contains ':'", ErrInvalidUsername)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
