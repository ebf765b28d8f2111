package store

import (
	"context"

	"github.com/mohammad-safakhou/policylens/models"
)

// UpsertTag inserts name or returns the existing tag with that name.
func (s *Store) UpsertTag(ctx context.Context, id, name string) (models.Tag, error) {
	var t models.Tag
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO tags (id, name) VALUES ($1,$2)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, name`, id, name).Scan(&t.ID, &t.Name)
	if err != nil {
		return models.Tag{}, mapErr(err, "tag", name)
	}
	return t, nil
}

func (s *Store) ListTags(ctx context.Context) ([]models.Tag, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
