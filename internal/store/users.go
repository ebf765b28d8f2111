package store

import (
	"context"
	"database/sql"

	"github.com/mohammad-safakhou/policylens/models"
)

const userColumns = `id, browser_id, COALESCE(name,''), COALESCE(email,''), COALESCE(password_hash,''), number_of_summaries, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.BrowserID, &u.Name, &u.Email, &u.PasswordHash, &u.NumberOfSummaries, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// UpsertUserByBrowserID inserts a user for browserID or returns the existing one.
// id is only used when a new row is created.
func (s *Store) UpsertUserByBrowserID(ctx context.Context, id, browserID string) (models.User, error) {
	row := s.DB.QueryRowContext(ctx, `
INSERT INTO users (id, browser_id, created_at, updated_at)
VALUES ($1,$2,NOW(),NOW())
ON CONFLICT (browser_id) DO UPDATE SET updated_at = users.updated_at
RETURNING `+userColumns, id, browserID)
	u, err := scanUser(row)
	if err != nil {
		return models.User{}, mapErr(err, "user", browserID)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	u, err := scanUser(row)
	if err != nil {
		return models.User{}, mapErr(err, "user", id)
	}
	return u, nil
}

// IncrementUserSummaries bumps the completed summary counter by one.
func (s *Store) IncrementUserSummaries(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE users SET number_of_summaries = number_of_summaries + 1, updated_at = NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return expectOne(res, "user", id)
}

// UpdateUserProfile sets the optional profile fields. Empty values leave the column unchanged.
func (s *Store) UpdateUserProfile(ctx context.Context, id, name, email, passwordHash string) (models.User, error) {
	row := s.DB.QueryRowContext(ctx, `
UPDATE users SET
  name          = COALESCE($2, name),
  email         = COALESCE($3, email),
  password_hash = COALESCE($4, password_hash),
  updated_at    = NOW()
WHERE id=$1
RETURNING `+userColumns, id, nullString(name), nullString(email), nullString(passwordHash))
	u, err := scanUser(row)
	if err != nil {
		return models.User{}, mapErr(err, "user", id)
	}
	return u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
