package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/category-note/internal/apperror"
	"github.com/sakif/category-note/internal/model"
	"github.com/sakif/category-note/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, username, full_name, avatar_url, provider, provider_id,
	is_active, is_verified, created_at, updated_at, last_login_at`

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.FullName,
		&u.AvatarURL,
		&u.Provider,
		&u.ProviderID,
		&u.IsActive,
		&u.IsVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts u and fills in ID and timestamps.
//
// A UNIQUE violation (same provider identity, email or username) becomes
// apperror.ErrConflict so the user directory can resolve a first-login race.
func (db *DB) CreateUser(ctx context.Context, u *model.User) error {
	now := db.now()

	id, err := withRetry(ctx, db, "create user", func() (int64, error) {
		var id int64
		err := db.conn.QueryRowContext(ctx, db.rebind(
			`INSERT INTO users (email, username, full_name, avatar_url, provider, provider_id,
				is_active, is_verified, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 RETURNING id`),
			u.Email,
			u.Username,
			nullable(u.FullName),
			nullable(u.AvatarURL),
			string(u.Provider),
			u.ProviderID,
			u.IsActive,
			u.IsVerified,
			now,
			now,
		).Scan(&id)
		return id, err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", string(u.Provider)+":"+u.ProviderID)
		}
		return fmt.Errorf("sqlstore: creating user: %w", err)
	}

	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := withRetry(ctx, db, "get user", func() (*model.User, error) {
		return scanUser(db.conn.QueryRowContext(ctx, db.rebind(
			`SELECT `+userColumns+` FROM users WHERE id = ?`), id))
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlstore: getting user %d: %w", id, err)
	}
	return u, nil
}

func (db *DB) GetUserByProvider(ctx context.Context, provider model.Provider, providerID string) (*model.User, error) {
	u, err := withRetry(ctx, db, "get user by provider", func() (*model.User, error) {
		return scanUser(db.conn.QueryRowContext(ctx, db.rebind(
			`SELECT `+userColumns+` FROM users WHERE provider = ? AND provider_id = ?`),
			string(provider), providerID))
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", string(provider)+":"+providerID)
		}
		return nil, fmt.Errorf("sqlstore: getting %s user %s: %w", provider, providerID, err)
	}
	return u, nil
}

// UpdateUserProfile writes the mutable profile fields.
func (db *DB) UpdateUserProfile(ctx context.Context, u *model.User) error {
	now := db.now()

	res, err := withRetry(ctx, db, "update user profile", func() (sql.Result, error) {
		return db.conn.ExecContext(ctx, db.rebind(
			`UPDATE users SET full_name = ?, avatar_url = ?, updated_at = ? WHERE id = ?`),
			nullable(u.FullName), nullable(u.AvatarURL), now, u.ID)
	})
	if err != nil {
		return fmt.Errorf("sqlstore: updating user %d: %w", u.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.NotFound("user", strconv.FormatInt(u.ID, 10))
	}

	u.UpdatedAt = now
	return nil
}

// TouchLastLogin stamps last_login_at and returns the stored row.
func (db *DB) TouchLastLogin(ctx context.Context, id int64, at time.Time) (*model.User, error) {
	at = at.UTC().Truncate(time.Microsecond)

	u, err := withRetry(ctx, db, "touch last login", func() (*model.User, error) {
		var out *model.User
		err := db.inTx(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, db.rebind(
				`UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`),
				at, at, id)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return sql.ErrNoRows
			}
			out, err = scanUser(tx.QueryRowContext(ctx, db.rebind(
				`SELECT `+userColumns+` FROM users WHERE id = ?`), id))
			return err
		})
		return out, err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlstore: touching last login for user %d: %w", id, err)
	}
	return u, nil
}
