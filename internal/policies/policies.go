// Package policies acquires, versions and stores legal documents.
package policies

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/policylens/internal/errs"
	"github.com/mohammad-safakhou/policylens/internal/helpers"
	"github.com/mohammad-safakhou/policylens/internal/store"
	"github.com/mohammad-safakhou/policylens/models"
	"github.com/mohammad-safakhou/policylens/tools/web_fetch"
	fetchmodels "github.com/mohammad-safakhou/policylens/tools/web_fetch/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Store is the policy persistence.
type Store interface {
	InsertPolicy(ctx context.Context, p models.Policy) (models.Policy, error)
	GetPolicyByKey(ctx context.Context, hostname string, typ models.PolicyType, version string) (models.Policy, error)
	GetPolicy(ctx context.Context, id string) (models.Policy, error)
	GetPolicyByLink(ctx context.Context, hostname string, typ models.PolicyType, link string) (models.Policy, error)
	ListPolicies(ctx context.Context, f store.PolicyFilter) ([]models.Policy, error)
	UpdatePolicy(ctx context.Context, p models.Policy) (models.Policy, error)
	DeletePolicy(ctx context.Context, id string) error
}

// TagResolver maps tag names to ids, creating missing tags.
type TagResolver interface {
	CreateOrGetIDs(ctx context.Context, names []string) ([]string, error)
}

type Service struct {
	store     Store
	fetcher   web_fetch.WebFetcher
	extractor Extractor
	tags      TagResolver
	logger    *log.Logger
}

func NewService(st Store, fetcher web_fetch.WebFetcher, extractor Extractor, tags TagResolver) *Service {
	return &Service{
		store:     st,
		fetcher:   fetcher,
		extractor: extractor,
		tags:      tags,
		logger:    log.New(log.Writer(), "[POLICY] ", log.LstdFlags),
	}
}

// Version derives the policy version from its publication date.
func Version(datePublished string) string {
	sum := sha256.Sum256([]byte(datePublished))
	return hex.EncodeToString(sum[:])
}

type CreateParams struct {
	Link      string            `json:"link"`
	Type      models.PolicyType `json:"type"`
	TimeoutMs int               `json:"timeoutMs"`
	WaitFor   string            `json:"waitFor"`
}

// Key is the unique identity of a stored policy.
type Key struct {
	Hostname string            `json:"hostname"`
	Type     models.PolicyType `json:"type"`
	Version  string            `json:"version"`
}

// Filter selects policies for FindByAny. Zero fields match everything.
type Filter struct {
	Hostname string            `query:"hostname"`
	Type     models.PolicyType `query:"type"`
	Version  string            `query:"version"`
	Link     string            `query:"link"`
	Company  string            `query:"company"`
	TagID    string            `query:"tag"`
	Offset   int               `query:"offset"`
	Limit    int               `query:"limit"`
}

// Projection chooses optional columns. The zero value omits the document body.
type Projection struct {
	Content bool
}

// PolicyUpdate carries administrative edits. Nil fields are left unchanged.
type PolicyUpdate struct {
	Content       *string   `json:"content"`
	Company       *string   `json:"company"`
	DatePublished *string   `json:"datePublished"`
	Tags          *[]string `json:"tags"`
}

// normalizeLink validates link and returns its canonical form and hostname.
func normalizeLink(link string) (canonical, host string, err error) {
	canonical, err = helpers.CanonicalLink(link)
	if err != nil {
		return "", "", errs.Validation("link: %v", err)
	}
	host, err = helpers.Hostname(canonical)
	if err != nil {
		return "", "", errs.Validation("link: %v", err)
	}
	return canonical, host, nil
}

// CreateFromLink acquires link, extracts its metadata and stores a new policy version.
// Acquisition always runs; a version that already exists fails with errs.ErrConflict.
func (s *Service) CreateFromLink(ctx context.Context, p CreateParams) (models.Policy, error) {
	if !p.Type.Valid() {
		return models.Policy{}, errs.Validation("type must be privacy or terms, got %q", p.Type)
	}
	if p.TimeoutMs < 0 {
		return models.Policy{}, errs.Validation("timeoutMs cannot be negative")
	}
	link, host, err := normalizeLink(p.Link)
	if err != nil {
		return models.Policy{}, err
	}

	doc, err := s.fetcher.Exec(ctx, link, fetchmodels.Options{
		Timeout: time.Duration(p.TimeoutMs) * time.Millisecond,
		WaitFor: p.WaitFor,
	})
	if err != nil {
		s.logger.Printf("acquire %s: %v", link, err)
		return models.Policy{}, err
	}

	md, err := s.extractor.Extract(ctx, doc.RawText)
	if err != nil {
		s.logger.Printf("extract %s: %v", link, err)
		return models.Policy{}, err
	}
	date, err := NormalizeDate(md.DatePublished)
	if err != nil {
		s.logger.Printf("extract %s: %v", link, err)
		return models.Policy{}, err
	}

	tagIDs, err := s.tags.CreateOrGetIDs(ctx, md.Tags)
	if err != nil {
		s.logger.Printf("tags for %s: %v", link, err)
		return models.Policy{}, err
	}

	created, err := s.store.InsertPolicy(ctx, models.Policy{
		ID:            uuid.NewString(),
		Hostname:      host,
		Type:          p.Type,
		Version:       Version(date),
		Link:          link,
		Content:       doc.Content,
		DatePublished: date,
		Company:       md.Company,
		Tags:          tagIDs,
	})
	if err != nil {
		s.logger.Printf("store %s (%s %s): %v", link, p.Type, date, err)
		return models.Policy{}, err
	}
	s.logger.Printf("stored %s policy for %s version %s in %dms", p.Type, host, created.Version[:12], doc.RenderMS)
	return created, nil
}

// FindByID looks a policy up by its (hostname, type, version) key.
func (s *Service) FindByID(ctx context.Context, k Key) (models.Policy, error) {
	if strings.TrimSpace(k.Hostname) == "" || strings.TrimSpace(k.Version) == "" {
		return models.Policy{}, errs.Validation("hostname and version required")
	}
	if !k.Type.Valid() {
		return models.Policy{}, errs.Validation("type must be privacy or terms, got %q", k.Type)
	}
	p, err := s.store.GetPolicyByKey(ctx, strings.ToLower(strings.TrimSpace(k.Hostname)), k.Type, strings.TrimSpace(k.Version))
	if err != nil {
		s.logger.Printf("find %s/%s/%s: %v", k.Hostname, k.Type, k.Version, err)
		return models.Policy{}, err
	}
	return p, nil
}

// Get looks a policy up by id.
func (s *Service) Get(ctx context.Context, id string) (models.Policy, error) {
	if strings.TrimSpace(id) == "" {
		return models.Policy{}, errs.Validation("policy id required")
	}
	p, err := s.store.GetPolicy(ctx, id)
	if err != nil {
		s.logger.Printf("get %s: %v", id, err)
		return models.Policy{}, err
	}
	return p, nil
}

// FindByLink returns the stored policy acquired from link, if any.
func (s *Service) FindByLink(ctx context.Context, hostname string, typ models.PolicyType, link string) (models.Policy, error) {
	canonical, host, err := normalizeLink(link)
	if err != nil {
		return models.Policy{}, err
	}
	if hostname == "" {
		hostname = host
	}
	p, err := s.store.GetPolicyByLink(ctx, hostname, typ, canonical)
	if err != nil {
		return models.Policy{}, err
	}
	return p, nil
}

// FindByAny lists policies matching f, newest first.
func (s *Service) FindByAny(ctx context.Context, f Filter, proj Projection) ([]models.Policy, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, errs.Validation("type must be privacy or terms, got %q", f.Type)
	}
	if f.Offset < 0 {
		return nil, errs.Validation("offset cannot be negative")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	link := f.Link
	if link != "" {
		canonical, _, err := normalizeLink(link)
		if err != nil {
			return nil, err
		}
		link = canonical
	}
	out, err := s.store.ListPolicies(ctx, store.PolicyFilter{
		Hostname:       strings.ToLower(strings.TrimSpace(f.Hostname)),
		Type:           f.Type,
		Version:        f.Version,
		Link:           link,
		Company:        f.Company,
		TagID:          f.TagID,
		IncludeContent: proj.Content,
		Offset:         f.Offset,
		Limit:          limit,
	})
	if err != nil {
		s.logger.Printf("list policies: %v", err)
		return nil, err
	}
	return out, nil
}

// Update applies an administrative edit. Changing the publication date
// recomputes the version.
func (s *Service) Update(ctx context.Context, id string, u PolicyUpdate) (models.Policy, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return models.Policy{}, err
	}
	if u.Content != nil {
		p.Content = *u.Content
	}
	if u.Company != nil {
		p.Company = strings.TrimSpace(*u.Company)
	}
	if u.DatePublished != nil {
		date, err := NormalizeDate(*u.DatePublished)
		if err != nil {
			return models.Policy{}, errs.Validation("datePublished: %v", err)
		}
		p.DatePublished = date
		p.Version = Version(date)
	}
	if u.Tags != nil {
		ids, err := s.tags.CreateOrGetIDs(ctx, *u.Tags)
		if err != nil {
			s.logger.Printf("tags for %s: %v", id, err)
			return models.Policy{}, err
		}
		p.Tags = ids
	}
	out, err := s.store.UpdatePolicy(ctx, p)
	if err != nil {
		s.logger.Printf("update %s: %v", id, err)
		return models.Policy{}, err
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errs.Validation("policy id required")
	}
	if err := s.store.DeletePolicy(ctx, id); err != nil {
		s.logger.Printf("delete %s: %v", id, err)
		return err
	}
	return nil
}
