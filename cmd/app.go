package main

import (
	"context"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/policylens/config"
	"github.com/mohammad-safakhou/policylens/internal/chats"
	"github.com/mohammad-safakhou/policylens/internal/keylock"
	"github.com/mohammad-safakhou/policylens/internal/policies"
	"github.com/mohammad-safakhou/policylens/internal/server"
	"github.com/mohammad-safakhou/policylens/internal/store"
	"github.com/mohammad-safakhou/policylens/internal/summary"
	"github.com/mohammad-safakhou/policylens/internal/tags"
	"github.com/mohammad-safakhou/policylens/internal/users"
	openai_provider "github.com/mohammad-safakhou/policylens/provider/openai"
	"github.com/mohammad-safakhou/policylens/tools/web_fetch"
	"github.com/redis/go-redis/v9"
)

// app holds the wired services and the resources they share.
type app struct {
	cfg      *config.Config
	store    *store.Store
	redis    *redis.Client
	policies *policies.Service
	services server.Services
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	st, err := store.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	a := &app{cfg: cfg, store: st}

	if cfg.Lock.Backend == "redis" {
		a.redis, err = keylock.Dial(ctx, cfg.Storage.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	locker, err := keylock.New(cfg.Lock, a.redis)
	if err != nil {
		a.Close()
		return nil, err
	}

	fetcher, err := web_fetch.NewWebFetcher(cfg.Fetch)
	if err != nil {
		a.Close()
		return nil, err
	}
	llm := openai_provider.NewOpenAIClient(cfg.LLM)

	tagSvc := tags.NewService(st)
	userSvc := users.NewService(st)
	chatSvc := chats.NewService(st, llm)
	a.policies = policies.NewService(st, fetcher, policies.NewExtractor(llm, cfg.LLM.MaxExtractionChars), tagSvc)
	a.services = server.Services{
		Policies:  a.policies,
		Tags:      tagSvc,
		Chats:     chatSvc,
		Summaries: summary.NewService(a.policies, chatSvc, userSvc, llm, locker),
		Users:     userSvc,
		Ready:     st.Ping,
	}
	log.Printf("wired services: fetch engine=%s lock=%s model=%s", cfg.Fetch.Engine, cfg.Lock.Backend, cfg.LLM.ChatModel)
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
