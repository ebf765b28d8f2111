// Package tags is the tag registry: idempotent create-or-get of business
// category labels attached to policies.
package tags

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/policylens/internal/errs"
	"github.com/mohammad-safakhou/policylens/models"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence the registry needs.
type Store interface {
	UpsertTag(ctx context.Context, id, name string) (models.Tag, error)
	ListTags(ctx context.Context) ([]models.Tag, error)
}

type Service struct {
	store  Store
	logger *log.Logger
}

func NewService(st Store) *Service {
	return &Service{store: st, logger: log.New(log.Writer(), "[TAGS] ", log.LstdFlags)}
}

// Normalize trims and lowercases names, drops empties and removes duplicates
// while keeping first-seen order.
func Normalize(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// CreateOrGet upserts a single tag.
func (s *Service) CreateOrGet(ctx context.Context, name string) (models.Tag, error) {
	names := Normalize([]string{name})
	if len(names) == 0 {
		return models.Tag{}, errs.Validation("tag name required")
	}
	t, err := s.store.UpsertTag(ctx, uuid.NewString(), names[0])
	if err != nil {
		s.logger.Printf("upsert tag %q: %v", names[0], err)
		return models.Tag{}, err
	}
	return t, nil
}

// CreateOrGetIDs upserts every normalized name concurrently and returns the ids
// in normalized order. Any failure aborts the batch.
func (s *Service) CreateOrGetIDs(ctx context.Context, names []string) ([]string, error) {
	norm := Normalize(names)
	ids := make([]string, len(norm))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range norm {
		g.Go(func() error {
			t, err := s.store.UpsertTag(gctx, uuid.NewString(), name)
			if err != nil {
				return err
			}
			ids[i] = t.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Printf("resolve tags %v: %v", norm, err)
		return nil, err
	}
	return ids, nil
}

func (s *Service) List(ctx context.Context) ([]models.Tag, error) {
	out, err := s.store.ListTags(ctx)
	if err != nil {
		s.logger.Printf("list tags: %v", err)
		return nil, err
	}
	if out == nil {
		out = []models.Tag{}
	}
	return out, nil
}
