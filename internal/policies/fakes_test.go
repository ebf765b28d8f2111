package policies

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/mohammad-safakhou/policylens/internal/errs"
	"github.com/mohammad-safakhou/policylens/internal/store"
	"github.com/mohammad-safakhou/policylens/models"
	"github.com/mohammad-safakhou/policylens/provider"
	fetchmodels "github.com/mohammad-safakhou/policylens/tools/web_fetch/models"
)

type memStore struct {
	mu       sync.Mutex
	policies map[string]models.Policy
	inserts  int
	lastList store.PolicyFilter
}

func newMemStore() *memStore { return &memStore{policies: map[string]models.Policy{}} }

func (m *memStore) InsertPolicy(ctx context.Context, p models.Policy) (models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	for _, existing := range m.policies {
		if existing.Hostname == p.Hostname && existing.Type == p.Type && existing.Version == p.Version {
			return models.Policy{}, errs.Conflict("policy", errors.New("duplicate key"))
		}
	}
	m.policies[p.ID] = p
	return p, nil
}

func (m *memStore) GetPolicyByKey(ctx context.Context, hostname string, typ models.PolicyType, version string) (models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.policies {
		if p.Hostname == hostname && p.Type == typ && p.Version == version {
			return p, nil
		}
	}
	return models.Policy{}, errs.NotFound("policy", version)
}

func (m *memStore) GetPolicy(ctx context.Context, id string) (models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[id]
	if !ok {
		return models.Policy{}, errs.NotFound("policy", id)
	}
	return p, nil
}

func (m *memStore) GetPolicyByLink(ctx context.Context, hostname string, typ models.PolicyType, link string) (models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.policies {
		if p.Hostname == hostname && p.Type == typ && p.Link == link {
			return p, nil
		}
	}
	return models.Policy{}, errs.NotFound("policy", link)
}

func (m *memStore) ListPolicies(ctx context.Context, f store.PolicyFilter) ([]models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastList = f
	out := []models.Policy{}
	for _, p := range m.policies {
		if f.Hostname != "" && p.Hostname != f.Hostname {
			continue
		}
		if !f.IncludeContent {
			p.Content = ""
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdatePolicy(ctx context.Context, p models.Policy) (models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.policies[p.ID]; !ok {
		return models.Policy{}, errs.NotFound("policy", p.ID)
	}
	m.policies[p.ID] = p
	return p, nil
}

func (m *memStore) DeletePolicy(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.policies[id]; !ok {
		return errs.NotFound("policy", id)
	}
	delete(m.policies, id)
	return nil
}

type fakeFetcher struct {
	result  fetchmodels.Result
	err     error
	calls   int
	gotLink string
	gotOpts fetchmodels.Options
}

func (f *fakeFetcher) Exec(ctx context.Context, link string, opts fetchmodels.Options) (fetchmodels.Result, error) {
	f.calls++
	f.gotLink = link
	f.gotOpts = opts
	if f.err != nil {
		return fetchmodels.Result{}, f.err
	}
	r := f.result
	r.URL = link
	return r, nil
}

type fakeExtractor struct {
	md     Metadata
	err    error
	gotRaw string
}

func (f *fakeExtractor) Extract(ctx context.Context, raw string) (Metadata, error) {
	f.gotRaw = raw
	return f.md, f.err
}

type fakeTags struct {
	ids map[string]string
}

func (f *fakeTags) CreateOrGetIDs(ctx context.Context, names []string) ([]string, error) {
	if f.ids == nil {
		f.ids = map[string]string{}
	}
	out := []string{}
	for _, n := range names {
		id, ok := f.ids[n]
		if !ok {
			id = "tag-" + n
			f.ids[n] = id
		}
		out = append(out, id)
	}
	return out, nil
}

type fakeProvider struct {
	reply   string
	err     error
	gotReq  provider.ExtractRequest
	decoded any
}

func (f *fakeProvider) Generate(ctx context.Context, system string, msgs []provider.Message) (string, error) {
	return f.reply, f.err
}

func (f *fakeProvider) Extract(ctx context.Context, req provider.ExtractRequest, out any) error {
	f.gotReq = req
	if f.err != nil {
		return f.err
	}
	md, ok := out.(*Metadata)
	if ok {
		*md = f.decoded.(Metadata)
	}
	return nil
}
