// Package summary drives policy summarisation conversations.
package summary

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/policylens/internal/chats"
	"github.com/mohammad-safakhou/policylens/internal/errs"
	"github.com/mohammad-safakhou/policylens/internal/helpers"
	"github.com/mohammad-safakhou/policylens/internal/keylock"
	"github.com/mohammad-safakhou/policylens/internal/policies"
	"github.com/mohammad-safakhou/policylens/models"
	"github.com/mohammad-safakhou/policylens/provider"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PolicySource resolves and acquires policies.
type PolicySource interface {
	FindByLink(ctx context.Context, hostname string, typ models.PolicyType, link string) (models.Policy, error)
	CreateFromLink(ctx context.Context, p policies.CreateParams) (models.Policy, error)
	Get(ctx context.Context, id string) (models.Policy, error)
}

// Conversations is the subset of the chat service used here.
type Conversations interface {
	FindByID(ctx context.Context, id string) (models.Chat, error)
	Create(ctx context.Context, in chats.CreateInput) (models.Chat, error)
	AppendMessage(ctx context.Context, chatID string, role models.Role, text string) (models.Message, error)
	Messages(ctx context.Context, chatID string) ([]models.Message, error)
}

// UsageCounter records completed summaries per user.
type UsageCounter interface {
	IncrementSummaries(ctx context.Context, userID string) error
}

type Service struct {
	policies PolicySource
	chats    Conversations
	usage    UsageCounter
	llm      provider.Provider
	locker   keylock.Locker
	logger   *log.Logger
	tracer   trace.Tracer
}

func NewService(ps PolicySource, cs Conversations, usage UsageCounter, llm provider.Provider, locker keylock.Locker) *Service {
	if locker == nil {
		locker = keylock.NewMemory()
	}
	return &Service{
		policies: ps,
		chats:    cs,
		usage:    usage,
		llm:      llm,
		locker:   locker,
		logger:   log.New(log.Writer(), "[SUMMARY] ", log.LstdFlags),
		tracer:   otel.Tracer("summary"),
	}
}

type Request struct {
	Link      string            `json:"link"`
	Type      models.PolicyType `json:"type"`
	UserID    string            `json:"userId"`
	ChatID    string            `json:"chatId"`
	Message   string            `json:"message"`
	TimeoutMs int               `json:"timeoutMs"`
	WaitFor   string            `json:"waitFor"`
}

type PolicyRequest struct {
	PolicyID string `json:"policyId"`
	UserID   string `json:"userId"`
	Message  string `json:"message"`
}

type Result struct {
	Summary  string      `json:"summary"`
	ChatID   string      `json:"chatId"`
	PolicyID string      `json:"policyId"`
	Chat     models.Chat `json:"chat"`
}

func (r Request) validate() error {
	switch {
	case strings.TrimSpace(r.Link) == "":
		return errs.Validation("link required")
	case !r.Type.Valid():
		return errs.Validation("type must be privacy or terms, got %q", r.Type)
	case strings.TrimSpace(r.UserID) == "":
		return errs.Validation("userId required")
	case strings.TrimSpace(r.ChatID) == "":
		return errs.Validation("chatId required")
	case strings.TrimSpace(r.Message) == "":
		return errs.Validation("message required")
	case r.TimeoutMs < 0:
		return errs.Validation("timeoutMs cannot be negative")
	}
	return nil
}

// CreateSummary resolves (or acquires) the policy behind link, threads it into
// the chat and returns the model's answer to the user's message.
func (s *Service) CreateSummary(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	link, err := helpers.CanonicalLink(req.Link)
	if err != nil {
		return Result{}, errs.Validation("link: %v", err)
	}
	host, err := helpers.Hostname(link)
	if err != nil {
		return Result{}, errs.Validation("link: %v", err)
	}

	ctx, span := s.tracer.Start(ctx, "summary.create", trace.WithAttributes(
		attribute.String("policy.hostname", host),
		attribute.String("policy.type", string(req.Type)),
		attribute.String("chat.id", req.ChatID),
	))
	defer span.End()
	fail := func(state string, err error) (Result, error) {
		s.logger.Printf("%s chat=%s link=%s: %v", state, req.ChatID, link, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, state)
		return Result{}, err
	}

	span.AddEvent("resolve_policy")
	policy, err := s.resolvePolicy(ctx, host, link, req)
	if err != nil {
		return fail("resolve_policy", err)
	}
	span.SetAttributes(attribute.String("policy.id", policy.ID))

	span.AddEvent("resolve_chat")
	chat, err := s.resolveChat(ctx, req, span.SpanContext())
	if err != nil {
		return fail("resolve_chat", err)
	}

	span.AddEvent("append_system")
	if _, err := s.chats.AppendMessage(ctx, chat.ID, models.RoleSystem, policy.Content); err != nil {
		return fail("append_system", err)
	}
	span.AddEvent("append_user")
	if _, err := s.chats.AppendMessage(ctx, chat.ID, models.RoleUser, req.Message); err != nil {
		return fail("append_user", err)
	}

	span.AddEvent("generate")
	history, err := s.chats.Messages(ctx, chat.ID)
	if err != nil {
		return fail("generate", err)
	}
	msgs := make([]provider.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, provider.Message{Role: m.Role, Content: m.Text()})
	}
	summary, err := s.llm.Generate(ctx, SystemPrompt(policy.Type), msgs)
	if err != nil {
		return fail("generate", err)
	}

	span.AddEvent("append_assistant")
	if _, err := s.chats.AppendMessage(ctx, chat.ID, models.RoleAssistant, summary); err != nil {
		return fail("append_assistant", err)
	}
	s.countUsage(ctx, req.UserID)

	return Result{Summary: summary, ChatID: chat.ID, PolicyID: policy.ID, Chat: chat}, nil
}

// resolvePolicy reuses a stored policy for link or acquires it. Acquisitions
// of the same (hostname, type) are serialised and the store is re-checked
// once the lock is held.
func (s *Service) resolvePolicy(ctx context.Context, host, link string, req Request) (models.Policy, error) {
	p, err := s.policies.FindByLink(ctx, host, req.Type, link)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return models.Policy{}, err
	}

	unlock, err := s.locker.Lock(ctx, host+"|"+string(req.Type))
	if err != nil {
		return models.Policy{}, err
	}
	defer unlock()

	p, err = s.policies.FindByLink(ctx, host, req.Type, link)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return models.Policy{}, err
	}
	return s.policies.CreateFromLink(ctx, policies.CreateParams{
		Link:      link,
		Type:      req.Type,
		TimeoutMs: req.TimeoutMs,
		WaitFor:   req.WaitFor,
	})
}

func (s *Service) resolveChat(ctx context.Context, req Request, sc trace.SpanContext) (models.Chat, error) {
	chat, err := s.chats.FindByID(ctx, req.ChatID)
	if err == nil {
		if chat.UserID != req.UserID {
			return models.Chat{}, errs.NotFound("chat", req.ChatID)
		}
		return chat, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return models.Chat{}, err
	}
	in := chats.CreateInput{ID: req.ChatID, Title: chats.TitleFrom(req.Message), UserID: req.UserID}
	if sc.IsValid() {
		in.TraceID = sc.TraceID().String()
		in.ObservationID = sc.SpanID().String()
	}
	return s.chats.Create(ctx, in)
}

// countUsage is best-effort: the summary is already stored.
func (s *Service) countUsage(ctx context.Context, userID string) {
	if s.usage == nil {
		return
	}
	if err := s.usage.IncrementSummaries(ctx, userID); err != nil {
		s.logger.Printf("increment summaries for %s: %v", userID, err)
	}
}

// GetSummaryByPolicyID summarises an already stored policy in a new chat with
// a single prompt.
func (s *Service) GetSummaryByPolicyID(ctx context.Context, req PolicyRequest) (Result, error) {
	switch {
	case strings.TrimSpace(req.PolicyID) == "":
		return Result{}, errs.Validation("policyId required")
	case strings.TrimSpace(req.UserID) == "":
		return Result{}, errs.Validation("userId required")
	case strings.TrimSpace(req.Message) == "":
		return Result{}, errs.Validation("message required")
	}

	ctx, span := s.tracer.Start(ctx, "summary.by_policy", trace.WithAttributes(attribute.String("policy.id", req.PolicyID)))
	defer span.End()
	fail := func(step string, err error) (Result, error) {
		s.logger.Printf("%s policy=%s: %v", step, req.PolicyID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, step)
		return Result{}, err
	}

	policy, err := s.policies.Get(ctx, req.PolicyID)
	if err != nil {
		return fail("get_policy", err)
	}
	in := chats.CreateInput{ID: uuid.NewString(), Title: chats.TitleFrom(req.Message), UserID: req.UserID}
	if sc := span.SpanContext(); sc.IsValid() {
		in.TraceID = sc.TraceID().String()
		in.ObservationID = sc.SpanID().String()
	}
	chat, err := s.chats.Create(ctx, in)
	if err != nil {
		return fail("create_chat", err)
	}

	summary, err := s.llm.Generate(ctx, SystemPrompt(policy.Type), []provider.Message{
		{Role: models.RoleUser, Content: singleShotInput(policy, req.Message)},
	})
	if err != nil {
		return fail("generate", err)
	}
	if _, err := s.chats.AppendMessage(ctx, chat.ID, models.RoleUser, req.Message); err != nil {
		return fail("append_user", err)
	}
	if _, err := s.chats.AppendMessage(ctx, chat.ID, models.RoleAssistant, summary); err != nil {
		return fail("append_assistant", err)
	}
	s.countUsage(ctx, req.UserID)

	return Result{Summary: summary, ChatID: chat.ID, PolicyID: policy.ID, Chat: chat}, nil
}
