package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/mohammad-safakhou/policylens/models"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// PolicyFilter narrows ListPolicies. Zero fields are ignored.
type PolicyFilter struct {
	Hostname string
	Type     models.PolicyType
	Version  string
	Link     string
	Company  string
	TagID    string

	// IncludeContent selects the document body; it is blanked otherwise.
	IncludeContent bool
	Offset         int
	Limit          int
}

func policyColumns(includeContent bool) string {
	content := `''`
	if includeContent {
		content = `content`
	}
	return `id, hostname, type, version, link, ` + content + `, date_published, COALESCE(company,''), tag_ids, created_at, updated_at`
}

func scanPolicy(row interface{ Scan(...any) error }) (models.Policy, error) {
	var p models.Policy
	var typ string
	var tags []string
	if err := row.Scan(&p.ID, &p.Hostname, &typ, &p.Version, &p.Link, &p.Content, &p.DatePublished, &p.Company, pq.Array(&tags), &p.CreatedAt, &p.UpdatedAt); err != nil {
		return models.Policy{}, err
	}
	p.Type = models.PolicyType(typ)
	if tags == nil {
		tags = []string{}
	}
	p.Tags = tags
	return p, nil
}

// InsertPolicy persists p. A duplicate (hostname, type, version) yields errs.ErrConflict.
func (s *Store) InsertPolicy(ctx context.Context, p models.Policy) (models.Policy, error) {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO policies (id, hostname, type, version, link, content, date_published, company, tag_ids, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
RETURNING created_at, updated_at`,
		p.ID, p.Hostname, string(p.Type), p.Version, p.Link, p.Content, p.DatePublished, nullString(p.Company), pq.Array(p.Tags),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return models.Policy{}, mapErr(err, "policy", fmt.Sprintf("%s/%s/%s", p.Hostname, p.Type, p.Version))
	}
	metricsOnce.Do(initStoreMetrics)
	if metricsInitErr == nil && policyCounter != nil {
		policyCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("type", string(p.Type))))
	}
	return p, nil
}

// GetPolicyByKey looks a policy up by its unique triple.
func (s *Store) GetPolicyByKey(ctx context.Context, hostname string, typ models.PolicyType, version string) (models.Policy, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+policyColumns(true)+` FROM policies WHERE hostname=$1 AND type=$2 AND version=$3`, hostname, string(typ), version)
	p, err := scanPolicy(row)
	if err != nil {
		return models.Policy{}, mapErr(err, "policy", fmt.Sprintf("%s/%s/%s", hostname, typ, version))
	}
	return p, nil
}

func (s *Store) GetPolicy(ctx context.Context, id string) (models.Policy, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+policyColumns(true)+` FROM policies WHERE id=$1`, id)
	p, err := scanPolicy(row)
	if err != nil {
		return models.Policy{}, mapErr(err, "policy", id)
	}
	return p, nil
}

// GetPolicyByLink returns the most recently stored policy acquired from link.
func (s *Store) GetPolicyByLink(ctx context.Context, hostname string, typ models.PolicyType, link string) (models.Policy, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT `+policyColumns(true)+`
FROM policies
WHERE hostname=$1 AND type=$2 AND link=$3
ORDER BY created_at DESC
LIMIT 1`, hostname, string(typ), link)
	p, err := scanPolicy(row)
	if err != nil {
		return models.Policy{}, mapErr(err, "policy", link)
	}
	return p, nil
}

// ListPolicies returns policies matching f, newest first.
func (s *Store) ListPolicies(ctx context.Context, f PolicyFilter) ([]models.Policy, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Hostname != "" {
		add("hostname=$%d", f.Hostname)
	}
	if f.Type != "" {
		add("type=$%d", string(f.Type))
	}
	if f.Version != "" {
		add("version=$%d", f.Version)
	}
	if f.Link != "" {
		add("link=$%d", f.Link)
	}
	if f.Company != "" {
		add("company=$%d", f.Company)
	}
	if f.TagID != "" {
		add("$%d = ANY(tag_ids)", f.TagID)
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + policyColumns(f.IncludeContent) + ` FROM policies`)
	if len(where) > 0 {
		b.WriteString(` WHERE ` + strings.Join(where, " AND "))
	}
	b.WriteString(` ORDER BY created_at DESC`)
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&b, ` OFFSET $%d`, len(args))
	}

	rows, err := s.DB.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Policy{}
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdatePolicy overwrites the mutable fields of p.ID.
func (s *Store) UpdatePolicy(ctx context.Context, p models.Policy) (models.Policy, error) {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	row := s.DB.QueryRowContext(ctx, `
UPDATE policies SET
  content        = $2,
  company        = $3,
  date_published = $4,
  version        = $5,
  tag_ids        = $6,
  updated_at     = NOW()
WHERE id=$1
RETURNING `+policyColumns(true),
		p.ID, p.Content, nullString(p.Company), p.DatePublished, p.Version, pq.Array(p.Tags))
	out, err := scanPolicy(row)
	if err != nil {
		return models.Policy{}, mapErr(err, "policy", p.ID)
	}
	return out, nil
}

func (s *Store) DeletePolicy(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM policies WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return expectOne(res, "policy", id)
}
