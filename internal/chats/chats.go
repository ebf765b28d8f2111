// Package chats manages conversations and their messages.
package chats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/policylens/internal/errs"
	"github.com/mohammad-safakhou/policylens/models"
	"github.com/mohammad-safakhou/policylens/provider"
)

const (
	MaxTitleLen  = 200
	MaxPageLimit = 100
)

type Store interface {
	InsertChat(ctx context.Context, c models.Chat) (models.Chat, error)
	GetChat(ctx context.Context, id string) (models.Chat, error)
	ListChatsByUser(ctx context.Context, userID string, limit, offset int) ([]models.Chat, error)
	CountChatsByUser(ctx context.Context, userID string) (int, error)
	UpdateChat(ctx context.Context, c models.Chat) (models.Chat, error)
	DeleteChat(ctx context.Context, id, userID string) error
	InsertMessage(ctx context.Context, m models.Message) (models.Message, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
}

type Service struct {
	store  Store
	llm    provider.Provider
	logger *log.Logger
	now    func() time.Time
}

func NewService(st Store, llm provider.Provider) *Service {
	return &Service{
		store:  st,
		llm:    llm,
		logger: log.New(log.Writer(), "[CHAT] ", log.LstdFlags),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type CreateInput struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	UserID        string            `json:"userId"`
	Visibility    models.Visibility `json:"visibility"`
	TraceID       string            `json:"traceId"`
	ObservationID string            `json:"observationId"`
}

type UpdateInput struct {
	Title         *string            `json:"title"`
	Visibility    *models.Visibility `json:"visibility"`
	TraceID       *string            `json:"traceId"`
	ObservationID *string            `json:"observationId"`
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errs.Validation("title required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return "", errs.Validation("title exceeds %d characters", MaxTitleLen)
	}
	return title, nil
}

// TitleFrom derives a valid chat title from free text, truncating to the limit.
func TitleFrom(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > MaxTitleLen {
		text = strings.TrimSpace(string(r[:MaxTitleLen]))
	}
	if text == "" {
		text = "New chat"
	}
	return text
}

func (s *Service) Create(ctx context.Context, in CreateInput) (models.Chat, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return models.Chat{}, err
	}
	if strings.TrimSpace(in.UserID) == "" {
		return models.Chat{}, errs.Validation("userId required")
	}
	if in.Visibility == "" {
		in.Visibility = models.VisibilityPrivate
	}
	if !in.Visibility.Valid() {
		return models.Chat{}, errs.Validation("visibility must be public or private, got %q", in.Visibility)
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	c, err := s.store.InsertChat(ctx, models.Chat{
		ID:            id,
		Title:         title,
		UserID:        in.UserID,
		Visibility:    in.Visibility,
		TraceID:       in.TraceID,
		ObservationID: in.ObservationID,
	})
	if err != nil {
		s.logger.Printf("create chat %s: %v", id, err)
		return models.Chat{}, err
	}
	return c, nil
}

func (s *Service) FindByID(ctx context.Context, id string) (models.Chat, error) {
	if strings.TrimSpace(id) == "" {
		return models.Chat{}, errs.Validation("chat id required")
	}
	c, err := s.store.GetChat(ctx, id)
	if err != nil {
		return models.Chat{}, err
	}
	return c, nil
}

// FindByUser returns every chat of userID, newest first.
func (s *Service) FindByUser(ctx context.Context, userID string) ([]models.Chat, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errs.Validation("userId required")
	}
	out, err := s.store.ListChatsByUser(ctx, userID, 0, 0)
	if err != nil {
		s.logger.Printf("list chats of %s: %v", userID, err)
		return nil, err
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (models.Chat, error) {
	c, err := s.FindByID(ctx, id)
	if err != nil {
		return models.Chat{}, err
	}
	if in.Title != nil {
		title, err := validateTitle(*in.Title)
		if err != nil {
			return models.Chat{}, err
		}
		c.Title = title
	}
	if in.Visibility != nil {
		if !in.Visibility.Valid() {
			return models.Chat{}, errs.Validation("visibility must be public or private, got %q", *in.Visibility)
		}
		c.Visibility = *in.Visibility
	}
	if in.TraceID != nil {
		c.TraceID = *in.TraceID
	}
	if in.ObservationID != nil {
		c.ObservationID = *in.ObservationID
	}
	out, err := s.store.UpdateChat(ctx, c)
	if err != nil {
		s.logger.Printf("update chat %s: %v", id, err)
		return models.Chat{}, err
	}
	return out, nil
}

// Delete removes the chat if it belongs to userID.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(userID) == "" {
		return errs.Validation("chat id and userId required")
	}
	if err := s.store.DeleteChat(ctx, id, userID); err != nil {
		s.logger.Printf("delete chat %s: %v", id, err)
		return err
	}
	return nil
}

// Messages returns the full history including system messages.
func (s *Service) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	out, err := s.store.ListMessages(ctx, chatID)
	if err != nil {
		s.logger.Printf("messages of %s: %v", chatID, err)
		return nil, err
	}
	return out, nil
}

// Thread returns the user-visible history: system messages are omitted.
func (s *Service) Thread(ctx context.Context, chatID string) ([]models.Message, error) {
	msgs, err := s.Messages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == models.RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// AppendMessage stores a text message in chatID.
func (s *Service) AppendMessage(ctx context.Context, chatID string, role models.Role, text string) (models.Message, error) {
	if strings.TrimSpace(chatID) == "" {
		return models.Message{}, errs.Validation("chat id required")
	}
	if !role.Valid() {
		return models.Message{}, errs.Validation("invalid role %q", role)
	}
	if strings.TrimSpace(text) == "" {
		return models.Message{}, errs.Validation("message text required")
	}
	m, err := s.store.InsertMessage(ctx, models.Message{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		Role:        role,
		Parts:       models.TextParts(text),
		Attachments: []models.Attachment{},
		CreatedAt:   s.now(),
	})
	if err != nil {
		s.logger.Printf("append %s message to %s: %v", role, chatID, err)
		return models.Message{}, err
	}
	return m, nil
}

// Continue appends userText to an existing conversation, replays the whole
// history to the model and stores its reply.
func (s *Service) Continue(ctx context.Context, chatID, userText string) (models.Message, error) {
	if strings.TrimSpace(userText) == "" {
		return models.Message{}, errs.Validation("message text required")
	}
	history, err := s.Messages(ctx, chatID)
	if err != nil {
		return models.Message{}, err
	}
	if len(history) == 0 {
		err := fmt.Errorf("%w: no chat to continue %q", errs.ErrNotFound, chatID)
		s.logger.Printf("continue %s: %v", chatID, err)
		return models.Message{}, err
	}

	userMsg, err := s.AppendMessage(ctx, chatID, models.RoleUser, userText)
	if err != nil {
		return models.Message{}, err
	}
	history = append(history, userMsg)

	ctxMsgs, err := RenderHistory(history)
	if err != nil {
		return models.Message{}, err
	}
	reply, err := s.llm.Generate(ctx, systemPrompt, ctxMsgs)
	if err != nil {
		s.logger.Printf("generate for %s: %v", chatID, err)
		return models.Message{}, err
	}
	return s.AppendMessage(ctx, chatID, models.RoleAssistant, reply)
}

// renderedMessage is the model-facing form of a stored message.
type renderedMessage struct {
	ID        string        `json:"id"`
	Role      models.Role   `json:"role"`
	Parts     []models.Part `json:"parts"`
	CreatedAt time.Time     `json:"createdAt"`
}

// RenderHistory turns stored messages into model context, one turn per
// message, each carrying its id, role, parts and timestamp.
func RenderHistory(msgs []models.Message) ([]provider.Message, error) {
	out := make([]provider.Message, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(renderedMessage{ID: m.ID, Role: m.Role, Parts: m.Parts, CreatedAt: m.CreatedAt})
		if err != nil {
			return nil, fmt.Errorf("render message %s: %w", m.ID, err)
		}
		out = append(out, provider.Message{Role: m.Role, Content: string(b)})
	}
	return out, nil
}

// GetUserChatsPaginated returns one page of the user's chats, newest first.
func (s *Service) GetUserChatsPaginated(ctx context.Context, userID string, page, limit int) (models.ChatPage, error) {
	if strings.TrimSpace(userID) == "" {
		return models.ChatPage{}, errs.Validation("userId required")
	}
	if page < 1 {
		return models.ChatPage{}, errs.Validation("page must be >= 1")
	}
	if limit < 1 || limit > MaxPageLimit {
		return models.ChatPage{}, errs.Validation("limit must be within [1,%d]", MaxPageLimit)
	}
	total, err := s.store.CountChatsByUser(ctx, userID)
	if err != nil {
		s.logger.Printf("count chats of %s: %v", userID, err)
		return models.ChatPage{}, err
	}
	chats := []models.Chat{}
	if offset := (page - 1) * limit; offset < total {
		chats, err = s.store.ListChatsByUser(ctx, userID, limit, offset)
		if err != nil {
			s.logger.Printf("list chats of %s: %v", userID, err)
			return models.ChatPage{}, err
		}
	}
	return models.ChatPage{Chats: chats, Pagination: models.NewPagination(page, limit, total)}, nil
}
