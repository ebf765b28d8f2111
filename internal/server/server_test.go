package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/policylens/internal/chats"
	"github.com/mohammad-safakhou/policylens/internal/errs"
	"github.com/mohammad-safakhou/policylens/internal/policies"
	"github.com/mohammad-safakhou/policylens/internal/store"
	"github.com/mohammad-safakhou/policylens/internal/summary"
	"github.com/mohammad-safakhou/policylens/internal/tags"
	"github.com/mohammad-safakhou/policylens/models"
	"github.com/mohammad-safakhou/policylens/tools/web_fetch"
)

type fakePolicies struct {
	err       error
	gotFilter policies.Filter
	gotProj   policies.Projection
	gotKey    policies.Key
	gotCreate policies.CreateParams
}

func (f *fakePolicies) CreateFromLink(ctx context.Context, p policies.CreateParams) (models.Policy, error) {
	f.gotCreate = p
	if f.err != nil {
		return models.Policy{}, f.err
	}
	return models.Policy{ID: "p-1", Hostname: "example.com", Type: p.Type, Link: p.Link}, nil
}

func (f *fakePolicies) FindByID(ctx context.Context, k policies.Key) (models.Policy, error) {
	f.gotKey = k
	if f.err != nil {
		return models.Policy{}, f.err
	}
	return models.Policy{ID: "p-1", Hostname: k.Hostname, Type: k.Type, Version: k.Version}, nil
}

func (f *fakePolicies) Get(ctx context.Context, id string) (models.Policy, error) {
	if f.err != nil {
		return models.Policy{}, f.err
	}
	return models.Policy{ID: id}, nil
}

func (f *fakePolicies) FindByAny(ctx context.Context, filter policies.Filter, proj policies.Projection) ([]models.Policy, error) {
	f.gotFilter = filter
	f.gotProj = proj
	return []models.Policy{{ID: "p-1"}}, f.err
}

func (f *fakePolicies) Update(ctx context.Context, id string, u policies.PolicyUpdate) (models.Policy, error) {
	return models.Policy{ID: id}, f.err
}

func (f *fakePolicies) Delete(ctx context.Context, id string) error { return f.err }

type fakeSummaries struct {
	gotReq       summary.Request
	gotPolicyReq summary.PolicyRequest
	err          error
}

func (f *fakeSummaries) CreateSummary(ctx context.Context, req summary.Request) (summary.Result, error) {
	f.gotReq = req
	if f.err != nil {
		return summary.Result{}, f.err
	}
	return summary.Result{Summary: "short", ChatID: req.ChatID, PolicyID: "p-1"}, nil
}

func (f *fakeSummaries) GetSummaryByPolicyID(ctx context.Context, req summary.PolicyRequest) (summary.Result, error) {
	f.gotPolicyReq = req
	return summary.Result{Summary: "short", ChatID: "new", PolicyID: req.PolicyID}, f.err
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHTTPErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{errs.Validation("bad"), http.StatusBadRequest},
		{errs.Acquisition("https://example.com", errors.New("dns")), http.StatusBadGateway},
		{errs.Acquisition("https://example.com", web_fetch.ErrHostNotPermitted), http.StatusForbidden},
		{fmt.Errorf("%w: no date", errs.ErrExtractionIncomplete), http.StatusUnprocessableEntity},
		{errs.NotFound("chat", "c1"), http.StatusNotFound},
		{errs.Conflict("policy", errors.New("dup")), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		he, ok := httpError(tc.err).(*echo.HTTPError)
		if !ok || he.Code != tc.code {
			t.Fatalf("%v: expected %d, got %#v", tc.err, tc.code, httpError(tc.err))
		}
	}
}

func TestCreatePolicyConflict(t *testing.T) {
	e := echo.New()
	fp := &fakePolicies{err: errs.Conflict("policy example.com/privacy", errors.New("duplicate key"))}
	h := &PolicyHandler{Policies: fp}

	rec := httptest.NewRecorder()
	ctx := e.NewContext(jsonRequest(http.MethodPost, "/api/policies", `{"link":"https://example.com/privacy","type":"privacy","timeoutMs":5000,"waitFor":"main"}`), rec)
	err := h.create(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %#v", err)
	}
	if fp.gotCreate.Link != "https://example.com/privacy" || fp.gotCreate.Type != models.PolicyTypePrivacy || fp.gotCreate.TimeoutMs != 5000 || fp.gotCreate.WaitFor != "main" {
		t.Fatalf("unexpected params: %+v", fp.gotCreate)
	}
}

func TestListPoliciesBindsFilter(t *testing.T) {
	e := echo.New()
	fp := &fakePolicies{}
	h := &PolicyHandler{Policies: fp}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/policies?hostname=example.com&type=terms&tag=t-1&offset=10&limit=5&content=true", nil)
	if err := h.list(e.NewContext(req, rec)); err != nil {
		t.Fatalf("list: %v", err)
	}
	want := policies.Filter{Hostname: "example.com", Type: models.PolicyTypeTerms, TagID: "t-1", Offset: 10, Limit: 5}
	if fp.gotFilter != want {
		t.Fatalf("filter = %+v", fp.gotFilter)
	}
	if !fp.gotProj.Content {
		t.Fatalf("content projection not applied")
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/policies?content=maybe", nil)
	if err := h.list(e.NewContext(req, rec)); err == nil {
		t.Fatalf("expected error for bad content flag")
	}
}

func TestPolicyByKeyNotFoundThroughRouter(t *testing.T) {
	fp := &fakePolicies{err: errs.NotFound("policy", "v1")}
	e := New(Services{Policies: fp}, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/policies/key/example.com/privacy/v1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(body["error"], "not found") {
		t.Fatalf("unexpected body: %v", body)
	}
	if fp.gotKey != (policies.Key{Hostname: "example.com", Type: models.PolicyTypePrivacy, Version: "v1"}) {
		t.Fatalf("key = %+v", fp.gotKey)
	}
}

func TestHealthz(t *testing.T) {
	e := New(Services{}, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected healthz: %d %q", rec.Code, rec.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	e := New(Services{Ready: func(ctx context.Context) error { return errors.New("db down") }}, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}

	e = New(Services{Ready: func(ctx context.Context) error { return nil }}, nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestCreateTagUpsert(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	h := &TagHandler{Tags: tags.NewService(&store.Store{DB: db})}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO tags (id, name) VALUES ($1,$2)`)).
		WithArgs(sqlmock.AnyArg(), "fintech").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("t-1", "fintech"))

	rec := httptest.NewRecorder()
	if err := h.create(e.NewContext(jsonRequest(http.MethodPost, "/api/tags", `{"name":" Fintech "}`), rec)); err != nil {
		t.Fatalf("create: %v", err)
	}
	var tag models.Tag
	if err := json.Unmarshal(rec.Body.Bytes(), &tag); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tag.ID != "t-1" || tag.Name != "fintech" {
		t.Fatalf("unexpected tag: %+v", tag)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListChatsPaginated(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	h := &ChatHandler{Chats: chats.NewService(&store.Store{DB: db}, nil)}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM chats WHERE user_id=$1`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(23))
	rows := sqlmock.NewRows([]string{"id", "title", "user_id", "visibility", "trace_id", "observation_id", "created_at"})
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		rows.AddRow(fmt.Sprintf("c%d", i), "title", "u1", "private", "", "", now.Add(-time.Duration(i)*time.Minute))
	}
	mock.ExpectQuery(regexp.QuoteMeta(`FROM chats WHERE user_id=$1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`)).
		WithArgs("u1", 10, 20).
		WillReturnRows(rows)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/chats?userId=u1&page=3&limit=10", nil)
	if err := h.list(e.NewContext(req, rec)); err != nil {
		t.Fatalf("list: %v", err)
	}
	var page models.ChatPage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	p := page.Pagination
	if len(page.Chats) != 3 || p.Total != 23 || p.TotalPages != 3 || p.HasNext || !p.HasPrev {
		t.Fatalf("unexpected page: %+v", page)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListChatsRejectsBadLimit(t *testing.T) {
	e := echo.New()
	h := &ChatHandler{Chats: chats.NewService(nil, nil)}

	for _, target := range []string{"/api/chats?userId=u1&limit=101", "/api/chats?userId=u1&page=0", "/api/chats?userId=u1&page=x"} {
		rec := httptest.NewRecorder()
		err := h.list(e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), rec))
		httpErr, ok := err.(*echo.HTTPError)
		if !ok || httpErr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %#v", target, err)
		}
	}
}

func TestContinueEmptyChatIsNotFound(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	h := &ChatHandler{Chats: chats.NewService(&store.Store{DB: db}, nil)}
	mock.ExpectQuery(regexp.QuoteMeta(`FROM messages`)).
		WithArgs("c-empty").
		WillReturnRows(sqlmock.NewRows([]string{"id", "chat_id", "role", "parts", "attachments", "created_at"}))

	rec := httptest.NewRecorder()
	ctx := e.NewContext(jsonRequest(http.MethodPost, "/api/chats/c-empty/messages", `{"message":"and cookies?"}`), rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("c-empty")
	err = h.continueChat(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %#v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateSummaryHandler(t *testing.T) {
	e := echo.New()
	fs := &fakeSummaries{}
	h := &SummaryHandler{Summaries: fs}

	rec := httptest.NewRecorder()
	body := `{"link":"https://example.com/privacy","type":"privacy","userId":"u1","chatId":"c1","message":"summarize please"}`
	if err := h.create(e.NewContext(jsonRequest(http.MethodPost, "/api/summaries", body), rec)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if fs.gotReq.ChatID != "c1" || fs.gotReq.Type != models.PolicyTypePrivacy || fs.gotReq.Message != "summarize please" {
		t.Fatalf("unexpected request: %+v", fs.gotReq)
	}
	var res summary.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.ChatID != "c1" || res.Summary == "" {
		t.Fatalf("unexpected result: %+v", res)
	}

	fs.err = errs.Acquisition("https://example.com/privacy", errors.New("timeout"))
	rec = httptest.NewRecorder()
	err := h.create(e.NewContext(jsonRequest(http.MethodPost, "/api/summaries", body), rec))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %#v", err)
	}
}

func TestSummaryByPolicyHandler(t *testing.T) {
	e := echo.New()
	fs := &fakeSummaries{}
	h := &SummaryHandler{Summaries: fs}

	rec := httptest.NewRecorder()
	ctx := e.NewContext(jsonRequest(http.MethodPost, "/api/summaries/policies/p-9", `{"userId":"u1","message":"tl;dr"}`), rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("p-9")
	if err := h.byPolicy(ctx); err != nil {
		t.Fatalf("byPolicy: %v", err)
	}
	if fs.gotPolicyReq != (summary.PolicyRequest{PolicyID: "p-9", UserID: "u1", Message: "tl;dr"}) {
		t.Fatalf("unexpected request: %+v", fs.gotPolicyReq)
	}
}
