package openai_provider

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/policylens/config"
	"github.com/mohammad-safakhou/policylens/internal/helpers"
	"github.com/mohammad-safakhou/policylens/models"
	"github.com/mohammad-safakhou/policylens/provider"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// client implements provider.Provider on the OpenAI chat completions API.
type client struct {
	api             openai.Client
	chatModel       string
	extractionModel string
	temperature     float64
	maxTokens       int
	logger          *log.Logger
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(cfg config.LLMConfig, opts ...option.RequestOption) *client {
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.Timeout))
	}
	reqOpts = append(reqOpts, opts...)

	extractionModel := cfg.ExtractionModel
	if extractionModel == "" {
		extractionModel = cfg.ChatModel
	}
	return &client{
		api:             openai.NewClient(reqOpts...),
		chatModel:       cfg.ChatModel,
		extractionModel: extractionModel,
		temperature:     cfg.Temperature,
		maxTokens:       cfg.MaxTokens,
		logger:          log.New(log.Writer(), "[LLM] ", log.LstdFlags),
	}
}

var _ provider.Provider = (*client)(nil)

// Generate implements provider.Provider.
func (c *client) Generate(ctx context.Context, system string, msgs []provider.Message) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case models.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		default:
			return "", fmt.Errorf("unsupported message role %q", m.Role)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.chatModel),
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.maxTokens))
	}
	return c.complete(ctx, params)
}

// Extract implements provider.Provider with a strict json_schema response format.
// It is sent once regardless of the client's retry setting.
func (c *client) Extract(ctx context.Context, req provider.ExtractRequest, out any) error {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Input))

	schema := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:   req.Name,
		Schema: req.Schema,
		Strict: openai.Bool(true),
	}
	if req.Description != "" {
		schema.Description = openai.String(req.Description)
	}
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.extractionModel),
		Messages:    messages,
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schema},
		},
	}
	content, err := c.complete(ctx, params, option.WithMaxRetries(0))
	if err != nil {
		return err
	}
	if err := helpers.DecodeModelJSON(content, out); err != nil {
		return fmt.Errorf("decode %s: %w", req.Name, err)
	}
	return nil
}

func (c *client) complete(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		c.logger.Printf("completion model=%s failed: %v", params.Model, err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", provider.ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", provider.ErrEmptyResponse
	}
	return content, nil
}
