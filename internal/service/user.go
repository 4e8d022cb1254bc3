package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/category-note/internal/apperror"
	"github.com/sakif/category-note/internal/model"
	"github.com/sakif/category-note/internal/repository"
)

// UserDirectory maps external identities to local accounts.
//
// FIRST-LOGIN RACE:
// Two concurrent first logins for the same identity both miss the lookup
// and both try to insert. The unique index on (provider, provider_id) lets
// exactly one insert win; the loser gets ErrConflict, re-reads the row the
// winner wrote and continues as a returning user.
type UserDirectory struct {
	users  repository.UserRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewUserDirectory(users repository.UserRepository, logger *slog.Logger) *UserDirectory {
	return &UserDirectory{
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

// FindOrCreate returns the account for identity, creating it on first login.
// A returning user's full name and avatar are refreshed from the provider
// when the provider sent a non-empty value; empty values never erase.
func (d *UserDirectory) FindOrCreate(ctx context.Context, identity *model.Identity) (*model.User, error) {
	if identity == nil {
		return nil, errors.New("service/user: identity must not be nil")
	}
	if !identity.Provider.Valid() || identity.ProviderID == "" || identity.Email == "" || identity.Username == "" {
		return nil, apperror.ValidationFailed("identity", "provider identity is incomplete")
	}

	existing, err := d.users.GetUserByProvider(ctx, identity.Provider, identity.ProviderID)
	switch {
	case err == nil:
		return d.refresh(ctx, existing, identity)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/user: looking up %s/%s: %w", identity.Provider, identity.ProviderID, err)
	}

	u := &model.User{
		Email:      identity.Email,
		Username:   identity.Username,
		FullName:   optional(identity.FullName),
		AvatarURL:  optional(identity.AvatarURL),
		Provider:   identity.Provider,
		ProviderID: identity.ProviderID,
		IsActive:   true,
		IsVerified: true,
	}
	err = d.users.CreateUser(ctx, u)
	if err == nil {
		d.logger.Info("user created",
			slog.Int64("userID", u.ID),
			slog.String("provider", string(u.Provider)),
			slog.String("username", u.Username),
		)
		return u, nil
	}
	if !errors.Is(err, apperror.ErrConflict) {
		return nil, fmt.Errorf("service/user: creating %s/%s: %w", identity.Provider, identity.ProviderID, err)
	}

	// Lost the race, or the email/username belongs to another account.
	winner, lookupErr := d.users.GetUserByProvider(ctx, identity.Provider, identity.ProviderID)
	if lookupErr != nil {
		if errors.Is(lookupErr, apperror.ErrNotFound) {
			d.logger.Warn("user create conflict on email or username",
				slog.String("provider", string(identity.Provider)),
				slog.String("providerID", identity.ProviderID),
			)
			return nil, err
		}
		return nil, fmt.Errorf("service/user: re-reading %s/%s: %w", identity.Provider, identity.ProviderID, lookupErr)
	}
	return d.refresh(ctx, winner, identity)
}

func (d *UserDirectory) refresh(ctx context.Context, u *model.User, identity *model.Identity) (*model.User, error) {
	changed := false
	if identity.FullName != "" && (u.FullName == nil || *u.FullName != identity.FullName) {
		u.FullName = optional(identity.FullName)
		changed = true
	}
	if identity.AvatarURL != "" && (u.AvatarURL == nil || *u.AvatarURL != identity.AvatarURL) {
		u.AvatarURL = optional(identity.AvatarURL)
		changed = true
	}
	if !changed {
		return u, nil
	}
	if err := d.users.UpdateUserProfile(ctx, u); err != nil {
		return nil, fmt.Errorf("service/user: refreshing profile of %d: %w", u.ID, err)
	}
	return u, nil
}

// TouchLastLogin records a successful login now.
func (d *UserDirectory) TouchLastLogin(ctx context.Context, u *model.User) (*model.User, error) {
	updated, err := d.users.TouchLastLogin(ctx, u.ID, d.now())
	if err != nil {
		return nil, fmt.Errorf("service/user: touching last login of %d: %w", u.ID, err)
	}
	return updated, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
