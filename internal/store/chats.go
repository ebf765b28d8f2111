package store

import (
	"context"

	"github.com/mohammad-safakhou/policylens/models"
)

const chatColumns = `id, title, user_id, visibility, COALESCE(trace_id,''), COALESCE(observation_id,''), created_at`

func scanChat(row interface{ Scan(...any) error }) (models.Chat, error) {
	var c models.Chat
	var vis string
	if err := row.Scan(&c.ID, &c.Title, &c.UserID, &vis, &c.TraceID, &c.ObservationID, &c.CreatedAt); err != nil {
		return models.Chat{}, err
	}
	c.Visibility = models.Visibility(vis)
	return c, nil
}

func (s *Store) InsertChat(ctx context.Context, c models.Chat) (models.Chat, error) {
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO chats (id, title, user_id, visibility, trace_id, observation_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
RETURNING created_at`,
		c.ID, c.Title, c.UserID, string(c.Visibility), nullString(c.TraceID), nullString(c.ObservationID),
	).Scan(&c.CreatedAt)
	if err != nil {
		return models.Chat{}, mapErr(err, "chat", c.ID)
	}
	return c, nil
}

func (s *Store) GetChat(ctx context.Context, id string) (models.Chat, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, id)
	c, err := scanChat(row)
	if err != nil {
		return models.Chat{}, mapErr(err, "chat", id)
	}
	return c, nil
}

// ListChatsByUser returns a page of the user's chats, newest first. limit <= 0 returns all.
func (s *Store) ListChatsByUser(ctx context.Context, userID string, limit, offset int) ([]models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE user_id=$1 ORDER BY created_at DESC, id`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Chat{}
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CountChatsByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM chats WHERE user_id=$1`, userID).Scan(&n)
	return n, err
}

// UpdateChat sets title, visibility and trace identifiers.
func (s *Store) UpdateChat(ctx context.Context, c models.Chat) (models.Chat, error) {
	row := s.DB.QueryRowContext(ctx, `
UPDATE chats SET title=$2, visibility=$3, trace_id=$4, observation_id=$5
WHERE id=$1
RETURNING `+chatColumns,
		c.ID, c.Title, string(c.Visibility), nullString(c.TraceID), nullString(c.ObservationID))
	out, err := scanChat(row)
	if err != nil {
		return models.Chat{}, mapErr(err, "chat", c.ID)
	}
	return out, nil
}

// DeleteChat removes a chat owned by userID together with its messages.
func (s *Store) DeleteChat(ctx context.Context, id, userID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM chats WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	return expectOne(res, "chat", id)
}
