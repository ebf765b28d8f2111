package policies

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mohammad-safakhou/policylens/internal/errs"
	"github.com/mohammad-safakhou/policylens/provider"
)

const (
	// DefaultMaxExtractionChars caps the raw text handed to the model.
	DefaultMaxExtractionChars = 60000
	maxTags                   = 2
	dateLayout                = "2006-01-02"
)

// Metadata is what the extractor recovers from a legal document.
type Metadata struct {
	DatePublished string   `json:"datePublished" jsonschema:"description=Effective or last-updated date of the document formatted as yyyy-mm-dd. Empty string when absent."`
	Company       string   `json:"company" jsonschema:"description=Legal name of the company the document belongs to. Empty string when unknown."`
	Tags          []string `json:"tags" jsonschema:"description=At most two of the most specific business categories of the company (e.g. fintech or food delivery)."`
}

// Extractor recovers Metadata from raw page text.
type Extractor interface {
	Extract(ctx context.Context, rawText string) (Metadata, error)
}

var metadataSchema = provider.GenerateSchema[Metadata]()

const extractorPrompt = `You read privacy policies and terms of service and return metadata about them.

- datePublished: the date the document took effect or was last updated, formatted as yyyy-mm-dd (read day-first dates such as 15/01/2024 or 15.01.2024 as 2024-01-15). If several dates appear prefer "effective" or "last updated". Use an empty string if the text carries no date.
- company: the legal entity that publishes the document.
- tags: the one or two MOST SPECIFIC business categories describing what the company does. Prefer "payroll software" over "software" and "ride hailing" over "transportation". Never return more than two.

Answer with the JSON object only.`

// ModelExtractor implements Extractor with one schema-constrained model call.
type ModelExtractor struct {
	llm      provider.Provider
	maxChars int
}

func NewExtractor(llm provider.Provider, maxChars int) *ModelExtractor {
	if maxChars <= 0 {
		maxChars = DefaultMaxExtractionChars
	}
	return &ModelExtractor{llm: llm, maxChars: maxChars}
}

func (e *ModelExtractor) Extract(ctx context.Context, rawText string) (Metadata, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return Metadata{}, errs.Validation("document text is empty")
	}
	if r := []rune(text); len(r) > e.maxChars {
		text = string(r[:e.maxChars])
	}

	var md Metadata
	err := e.llm.Extract(ctx, provider.ExtractRequest{
		Name:        "policy_metadata",
		Description: "Publication date, company and business categories of a legal document",
		System:      extractorPrompt,
		Input:       text,
		Schema:      metadataSchema,
	}, &md)
	if err != nil {
		return Metadata{}, fmt.Errorf("extract metadata: %w", err)
	}
	return NormalizeMetadata(md)
}

// NormalizeMetadata canonicalises the date to yyyy-mm-dd and caps tags at two.
// A missing or unparseable date is errs.ErrExtractionIncomplete.
func NormalizeMetadata(md Metadata) (Metadata, error) {
	date, err := NormalizeDate(md.DatePublished)
	if err != nil {
		return Metadata{}, err
	}
	md.DatePublished = date
	md.Company = strings.TrimSpace(md.Company)
	if len(md.Tags) > maxTags {
		md.Tags = md.Tags[:maxTags]
	}
	return md, nil
}

var numericDate = regexp.MustCompile(`^\d{1,2}[./-]\d{1,2}[./-]\d{2,4}$`)

var numericSeparators = strings.NewReplacer(".", "/", "-", "/")

// NormalizeDate parses a free-form date and renders it as yyyy-mm-dd.
// Ambiguous numeric dates are read month-first; numeric dates that only make
// sense day-first (15/01/2024, 15.01.2024) are read day-first.
func NormalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: no publication date", errs.ErrExtractionIncomplete)
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.Format(dateLayout), nil
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil && numericDate.MatchString(raw) {
		t, err = dateparse.ParseAny(numericSeparators.Replace(raw), dateparse.PreferMonthFirst(false))
	}
	if err != nil {
		return "", fmt.Errorf("%w: unparseable publication date %q", errs.ErrExtractionIncomplete, raw)
	}
	return t.Format(dateLayout), nil
}
