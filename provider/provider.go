package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/mohammad-safakhou/policylens/models"
)

// Message is one turn of model context.
type Message struct {
	Role    models.Role
	Content string
}

// ExtractRequest asks for a single JSON object conforming to Schema.
type ExtractRequest struct {
	Name        string
	Description string
	System      string
	Input       string
	Schema      map[string]any
}

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	// Generate returns the assistant reply to msgs under the system prompt.
	Generate(ctx context.Context, system string, msgs []Message) (string, error)
	// Extract decodes a schema-constrained reply into out.
	Extract(ctx context.Context, req ExtractRequest, out any) error
}

// ErrEmptyResponse is returned when the model produced no choices or no content.
var ErrEmptyResponse = errors.New("empty model response")

// GenerateSchema reflects T into a strict JSON schema: every field required and
// no additional properties.
func GenerateSchema[T any]() map[string]any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	raw, err := json.Marshal(r.Reflect(v))
	if err != nil {
		panic(fmt.Sprintf("reflect schema: %v", err))
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("decode schema: %v", err))
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}
