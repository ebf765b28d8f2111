package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/policylens/models"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// InsertMessage appends m to its chat. A zero CreatedAt is stamped with the current time.
func (s *Store) InsertMessage(ctx context.Context, m models.Message) (models.Message, error) {
	if m.Parts == nil {
		m.Parts = []models.Part{}
	}
	if m.Attachments == nil {
		m.Attachments = []models.Attachment{}
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	parts, err := json.Marshal(m.Parts)
	if err != nil {
		return models.Message{}, fmt.Errorf("marshal parts: %w", err)
	}
	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return models.Message{}, fmt.Errorf("marshal attachments: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO messages (id, chat_id, role, parts, attachments, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.ChatID, string(m.Role), parts, attachments, m.CreatedAt)
	if err != nil {
		return models.Message{}, mapErr(err, "message", m.ID)
	}
	metricsOnce.Do(initStoreMetrics)
	if metricsInitErr == nil && messageCounter != nil {
		messageCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("role", string(m.Role))))
	}
	return m, nil
}

// ListMessages returns every message of chatID in insertion order. Messages
// sharing a created_at keep the order they were appended in.
func (s *Store) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, chat_id, role, parts, attachments, created_at
FROM messages
WHERE chat_id=$1
ORDER BY seq ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Message{}
	for rows.Next() {
		var m models.Message
		var role string
		var parts, attachments []byte
		if err := rows.Scan(&m.ID, &m.ChatID, &role, &parts, &attachments, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = models.Role(role)
		if len(parts) > 0 {
			if err := json.Unmarshal(parts, &m.Parts); err != nil {
				return nil, fmt.Errorf("decode parts for message %s: %w", m.ID, err)
			}
		}
		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
				return nil, fmt.Errorf("decode attachments for message %s: %w", m.ID, err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

