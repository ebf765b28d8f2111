package summary

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/mohammad-safakhou/policylens/internal/errs"
	"github.com/mohammad-safakhou/policylens/internal/policies"
	"github.com/mohammad-safakhou/policylens/internal/store"
	"github.com/mohammad-safakhou/policylens/models"
	"github.com/mohammad-safakhou/policylens/provider"
	fetchmodels "github.com/mohammad-safakhou/policylens/tools/web_fetch/models"
)

type policyStore struct {
	mu       sync.Mutex
	policies map[string]models.Policy
}

func newPolicyStore() *policyStore { return &policyStore{policies: map[string]models.Policy{}} }

func (m *policyStore) InsertPolicy(ctx context.Context, p models.Policy) (models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.policies {
		if existing.Hostname == p.Hostname && existing.Type == p.Type && existing.Version == p.Version {
			return models.Policy{}, errs.Conflict("policy", errors.New("duplicate key"))
		}
	}
	m.policies[p.ID] = p
	return p, nil
}

func (m *policyStore) GetPolicyByKey(ctx context.Context, hostname string, typ models.PolicyType, version string) (models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.policies {
		if p.Hostname == hostname && p.Type == typ && p.Version == version {
			return p, nil
		}
	}
	return models.Policy{}, errs.NotFound("policy", version)
}

func (m *policyStore) GetPolicy(ctx context.Context, id string) (models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[id]
	if !ok {
		return models.Policy{}, errs.NotFound("policy", id)
	}
	return p, nil
}

func (m *policyStore) GetPolicyByLink(ctx context.Context, hostname string, typ models.PolicyType, link string) (models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.policies {
		if p.Hostname == hostname && p.Type == typ && p.Link == link {
			return p, nil
		}
	}
	return models.Policy{}, errs.NotFound("policy", link)
}

func (m *policyStore) ListPolicies(ctx context.Context, f store.PolicyFilter) ([]models.Policy, error) {
	return nil, errors.New("not used")
}

func (m *policyStore) UpdatePolicy(ctx context.Context, p models.Policy) (models.Policy, error) {
	return models.Policy{}, errors.New("not used")
}

func (m *policyStore) DeletePolicy(ctx context.Context, id string) error {
	return errors.New("not used")
}

type chatStore struct {
	mu       sync.Mutex
	chats    map[string]models.Chat
	messages map[string][]models.Message
}

func newChatStore() *chatStore {
	return &chatStore{chats: map[string]models.Chat{}, messages: map[string][]models.Message{}}
}

func (m *chatStore) InsertChat(ctx context.Context, c models.Chat) (models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[c.ID]; ok {
		return models.Chat{}, errs.Conflict("chat", errors.New("duplicate"))
	}
	c.CreatedAt = time.Now().UTC()
	m.chats[c.ID] = c
	return c, nil
}

func (m *chatStore) GetChat(ctx context.Context, id string) (models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return models.Chat{}, errs.NotFound("chat", id)
	}
	return c, nil
}

func (m *chatStore) ListChatsByUser(ctx context.Context, userID string, limit, offset int) ([]models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Chat
	for _, c := range m.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *chatStore) CountChatsByUser(ctx context.Context, userID string) (int, error) {
	all, _ := m.ListChatsByUser(ctx, userID, 0, 0)
	return len(all), nil
}

func (m *chatStore) UpdateChat(ctx context.Context, c models.Chat) (models.Chat, error) {
	return models.Chat{}, errors.New("not used")
}

func (m *chatStore) DeleteChat(ctx context.Context, id, userID string) error {
	return errors.New("not used")
}

func (m *chatStore) InsertMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], msg)
	return msg, nil
}

func (m *chatStore) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message(nil), m.messages[chatID]...), nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
}

func (f *fakeFetcher) Exec(ctx context.Context, link string, opts fetchmodels.Options) (fetchmodels.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return fetchmodels.Result{URL: link, RawText: "We collect your email. Updated January 15, 2024.", Content: "# Privacy\n\nWe collect your email."}, nil
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(ctx context.Context, raw string) (policies.Metadata, error) {
	return policies.Metadata{DatePublished: "2024-01-15", Company: "Example Inc", Tags: []string{"saas"}}, nil
}

type fakeTags struct{}

func (fakeTags) CreateOrGetIDs(ctx context.Context, names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, "tag-"+n)
	}
	return out, nil
}

type scriptedProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	systems []string
	calls   [][]provider.Message
}

func (p *scriptedProvider) Generate(ctx context.Context, system string, msgs []provider.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.systems = append(p.systems, system)
	p.calls = append(p.calls, msgs)
	return p.reply, p.err
}

func (p *scriptedProvider) Extract(ctx context.Context, req provider.ExtractRequest, out any) error {
	return errors.New("not used")
}

type usageCounter struct {
	mu    sync.Mutex
	err   error
	count map[string]int
}

func (u *usageCounter) IncrementSummaries(ctx context.Context, userID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return u.err
	}
	if u.count == nil {
		u.count = map[string]int{}
	}
	u.count[userID]++
	return nil
}
