package policies

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohammad-safakhou/policylens/internal/errs"
	"github.com/mohammad-safakhou/policylens/models"
	fetchmodels "github.com/mohammad-safakhou/policylens/tools/web_fetch/models"
)

const versionOf20240115 = "bb10628e8f758901783fd483aa1935740b8f25605a854bf4bd1a275ed1b45927"

func newTestService() (*Service, *memStore, *fakeFetcher, *fakeExtractor) {
	st := newMemStore()
	f := &fakeFetcher{result: fetchmodels.Result{RawText: "RAW privacy text", Content: "# Privacy\n\nreadable body"}}
	ex := &fakeExtractor{md: Metadata{DatePublished: "2024-01-15", Company: "Example Inc", Tags: []string{"saas"}}}
	return NewService(st, f, ex, &fakeTags{}), st, f, ex
}

func TestVersionIsDeterministic(t *testing.T) {
	if got := Version("2024-01-15"); got != versionOf20240115 {
		t.Fatalf("Version = %s", got)
	}
	if Version("2024-01-15") != Version("2024-01-15") {
		t.Fatalf("version not stable")
	}
	if Version("2024-01-16") == versionOf20240115 {
		t.Fatalf("different dates must not collide")
	}
}

func TestCreateFromLink(t *testing.T) {
	svc, st, f, ex := newTestService()
	p, err := svc.CreateFromLink(context.Background(), CreateParams{
		Link:      "https://Example.com/privacy?utm_source=x#top",
		Type:      models.PolicyTypePrivacy,
		TimeoutMs: 5000,
		WaitFor:   "main",
	})
	if err != nil {
		t.Fatalf("CreateFromLink: %v", err)
	}
	if f.gotLink != "https://example.com/privacy" {
		t.Fatalf("expected canonical link to be fetched, got %q", f.gotLink)
	}
	if f.gotOpts.Timeout != 5*time.Second || f.gotOpts.WaitFor != "main" {
		t.Fatalf("unexpected fetch options: %+v", f.gotOpts)
	}
	if ex.gotRaw != "RAW privacy text" {
		t.Fatalf("extractor must see raw text, got %q", ex.gotRaw)
	}
	if p.Hostname != "example.com" || p.Version != versionOf20240115 || p.DatePublished != "2024-01-15" {
		t.Fatalf("unexpected policy: %+v", p)
	}
	if p.Content != "# Privacy\n\nreadable body" || p.Company != "Example Inc" {
		t.Fatalf("unexpected content/company: %+v", p)
	}
	if len(p.Tags) != 1 || p.Tags[0] != "tag-saas" {
		t.Fatalf("unexpected tags: %v", p.Tags)
	}
	if _, ok := st.policies[p.ID]; !ok {
		t.Fatalf("policy not persisted")
	}
}

func TestCreateFromLinkDuplicateVersionConflicts(t *testing.T) {
	svc, st, f, _ := newTestService()
	ctx := context.Background()
	params := CreateParams{Link: "https://example.com/privacy", Type: models.PolicyTypePrivacy}
	if _, err := svc.CreateFromLink(ctx, params); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.CreateFromLink(ctx, params)
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if f.calls != 2 {
		t.Fatalf("acquisition must run before the unique check, got %d calls", f.calls)
	}
	if len(st.policies) != 1 {
		t.Fatalf("expected exactly one stored policy, got %d", len(st.policies))
	}
}

func TestCreateFromLinkMissingDate(t *testing.T) {
	svc, st, _, ex := newTestService()
	ex.md.DatePublished = ""
	_, err := svc.CreateFromLink(context.Background(), CreateParams{Link: "https://example.com/terms", Type: models.PolicyTypeTerms})
	if !errors.Is(err, errs.ErrExtractionIncomplete) {
		t.Fatalf("expected extraction incomplete, got %v", err)
	}
	if st.inserts != 0 {
		t.Fatalf("nothing should be persisted")
	}
}

func TestCreateFromLinkAcquisitionFailure(t *testing.T) {
	svc, st, f, _ := newTestService()
	f.err = errs.Acquisition("https://example.com/privacy", errors.New("timeout"))
	_, err := svc.CreateFromLink(context.Background(), CreateParams{Link: "https://example.com/privacy", Type: models.PolicyTypePrivacy})
	if !errors.Is(err, errs.ErrAcquisition) {
		t.Fatalf("expected acquisition error, got %v", err)
	}
	if st.inserts != 0 {
		t.Fatalf("nothing should be persisted")
	}
}

func TestCreateFromLinkValidation(t *testing.T) {
	svc, _, f, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.CreateFromLink(ctx, CreateParams{Link: "https://example.com", Type: "cookies"}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error for type, got %v", err)
	}
	if _, err := svc.CreateFromLink(ctx, CreateParams{Link: "ftp://example.com/terms", Type: models.PolicyTypeTerms}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error for link, got %v", err)
	}
	if f.calls != 0 {
		t.Fatalf("invalid input must not reach the acquirer")
	}
}

func TestFindByIDAndAny(t *testing.T) {
	svc, st, _, _ := newTestService()
	ctx := context.Background()
	created, err := svc.CreateFromLink(ctx, CreateParams{Link: "https://example.com/privacy", Type: models.PolicyTypePrivacy})
	if err != nil {
		t.Fatalf("CreateFromLink: %v", err)
	}

	got, err := svc.FindByID(ctx, Key{Hostname: "Example.com", Type: models.PolicyTypePrivacy, Version: versionOf20240115})
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, got.ID)
	}
	if _, err := svc.FindByID(ctx, Key{Hostname: "example.com", Type: models.PolicyTypeTerms, Version: versionOf20240115}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	list, err := svc.FindByAny(ctx, Filter{Hostname: "example.com"}, Projection{})
	if err != nil {
		t.Fatalf("FindByAny: %v", err)
	}
	if len(list) != 1 || list[0].Content != "" {
		t.Fatalf("default projection must exclude content: %+v", list)
	}
	if st.lastList.Limit != defaultListLimit || st.lastList.IncludeContent {
		t.Fatalf("unexpected filter passed to store: %+v", st.lastList)
	}
	if _, err := svc.FindByAny(ctx, Filter{Limit: 10000}, Projection{Content: true}); err != nil {
		t.Fatalf("FindByAny: %v", err)
	}
	if st.lastList.Limit != maxListLimit || !st.lastList.IncludeContent {
		t.Fatalf("expected capped limit with content, got %+v", st.lastList)
	}
}

func TestFindByLinkUsesCanonicalLink(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	created, err := svc.CreateFromLink(ctx, CreateParams{Link: "https://example.com/privacy", Type: models.PolicyTypePrivacy})
	if err != nil {
		t.Fatalf("CreateFromLink: %v", err)
	}
	got, err := svc.FindByLink(ctx, "", models.PolicyTypePrivacy, "example.com/privacy#section-2")
	if err != nil {
		t.Fatalf("FindByLink: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, got.ID)
	}
}

func TestUpdateRecomputesVersion(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	created, err := svc.CreateFromLink(ctx, CreateParams{Link: "https://example.com/privacy", Type: models.PolicyTypePrivacy})
	if err != nil {
		t.Fatalf("CreateFromLink: %v", err)
	}
	date := "March 1, 2024"
	tags := []string{"payments"}
	updated, err := svc.Update(ctx, created.ID, PolicyUpdate{DatePublished: &date, Tags: &tags})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.DatePublished != "2024-03-01" || updated.Version != Version("2024-03-01") {
		t.Fatalf("unexpected date/version: %+v", updated)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "tag-payments" {
		t.Fatalf("unexpected tags: %v", updated.Tags)
	}

	bad := "someday"
	if _, err := svc.Update(ctx, created.ID, PolicyUpdate{DatePublished: &bad}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
