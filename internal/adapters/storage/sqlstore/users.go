package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/foursigma/foursigma/internal/domain/model"
)

const userColumns = `id, email, username, display_name, avatar_url, provider, provider_id, password_hash, created_at, last_sign_in_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u         model.User
		createdAt int64
		lastSeen  sql.NullInt64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.AvatarURL,
		&u.Provider, &u.ProviderID, &u.PasswordHash, &createdAt, &lastSeen); err != nil {
		return model.User{}, err
	}
	u.CreatedAt = fromMillis(createdAt)
	u.LastSignInAt = nullMillis(lastSeen)
	return u, nil
}

// CreateUser inserts u. ID must be set; CreatedAt defaults to now. A taken
// email or username yields ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, u model.User) (_ model.User, err error) { //nolint:gocritic // hugeParam
	defer s.track("create_user", time.Now(), &err)

	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	if u.ProviderID == "" {
		u.ProviderID = u.ID
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, username, display_name, avatar_url, provider, provider_id, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.Username, u.DisplayName, u.AvatarURL, u.Provider, u.ProviderID, u.PasswordHash, toMillis(u.CreatedAt))
	if err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", classify(err))
	}
	u.CreatedAt = fromMillis(toMillis(u.CreatedAt))
	return u, nil
}

// UserByID loads a user.
func (s *Store) UserByID(ctx context.Context, id string) (_ model.User, err error) {
	defer s.track("user_by_id", time.Now(), &err)

	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return model.User{}, fmt.Errorf("user %s: %w", id, classify(err))
	}
	return u, nil
}

// UserByEmail loads a user by case-insensitive email.
func (s *Store) UserByEmail(ctx context.Context, email string) (_ model.User, err error) {
	defer s.track("user_by_email", time.Now(), &err)

	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return model.User{}, fmt.Errorf("user by email: %w", classify(err))
	}
	return u, nil
}

// TouchSignIn records a successful sign-in.
func (s *Store) TouchSignIn(ctx context.Context, id string) (_ time.Time, err error) {
	defer s.track("touch_sign_in", time.Now(), &err)

	at := s.now()
	res, err := s.db.ExecContext(ctx, `UPDATE users SET last_sign_in_at = $1 WHERE id = $2`, toMillis(at), id)
	if err != nil {
		return time.Time{}, fmt.Errorf("touch sign-in: %w", classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return time.Time{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return fromMillis(toMillis(at)), nil
}

// UpsertOAuthUser returns the user bound to the identity's provider and
// provider id, creating it with newID and username when absent. Existing
// users get their last sign-in refreshed.
func (s *Store) UpsertOAuthUser(ctx context.Context, id model.OAuthIdentity, newID, username string) (_ model.User, err error) { //nolint:gocritic // hugeParam
	defer s.track("upsert_oauth_user", time.Now(), &err)

	now := toMillis(s.now())
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email, username, display_name, avatar_url, provider, provider_id, created_at, last_sign_in_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 ON CONFLICT (provider, provider_id) DO UPDATE SET last_sign_in_at = excluded.last_sign_in_at
		 RETURNING `+userColumns,
		newID, strings.ToLower(strings.TrimSpace(id.Email)), username, id.DisplayName, id.AvatarURL, id.Provider, id.ProviderID, now))
	if err != nil {
		return model.User{}, fmt.Errorf("upsert oauth user: %w", classify(err))
	}
	return u, nil
}

// UpdateProfile applies the non-nil fields of upd and returns the result.
func (s *Store) UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) (_ model.User, err error) {
	defer s.track("update_profile", time.Now(), &err)

	var (
		sets []string
		args []any
	)
	add := func(col string, v *string) {
		if v != nil {
			args = append(args, *v)
			sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
		}
	}
	add("username", upd.Username)
	add("display_name", upd.DisplayName)
	add("avatar_url", upd.AvatarURL)

	if len(sets) == 0 {
		return s.UserByID(ctx, id)
	}

	args = append(args, id)
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+fmt.Sprintf(` WHERE id = $%d RETURNING `, len(args))+userColumns,
		args...))
	if err != nil {
		return model.User{}, fmt.Errorf("update profile %s: %w", id, classify(err))
	}
	return u, nil
}
