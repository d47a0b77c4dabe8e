package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"ai-chat-backend/internal/config"
	"ai-chat-backend/internal/domain/model"
	pg "ai-chat-backend/internal/infra/db/postgres"
)

// Seeds a few sample conversations for manual testing of the read paths
// (thread fetch, admin list, streaming against non-empty history).
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	repo := pg.NewThreadRepo(pool, nil, nil)

	// If threads already exist, do nothing.
	existing, err := repo.ListThreads(ctx, 0, 1)
	if err != nil {
		log.Fatalf("list threads: %v", err)
	}
	if len(existing) > 0 {
		fmt.Println("threads already present. No changes.")
		return
	}

	seed := map[string][]model.Turn{
		"default": {
			model.NewTurn(model.RoleUser, "Hello!"),
			model.NewTurn(model.RoleAssistant, "Hi! How can I help you today?"),
		},
		"demo-long": {
			model.NewTurn(model.RoleUser, "What is a goroutine?"),
			model.NewTurn(model.RoleAssistant, "A goroutine is a lightweight thread managed by the Go runtime."),
			model.NewTurn(model.RoleUser, "How do I start one?"),
			model.NewTurn(model.RoleAssistant, "Prefix a function call with the go keyword."),
		},
	}

	for threadID, turns := range seed {
		if err := repo.AppendTurns(ctx, threadID, 0, turns); err != nil {
			log.Fatalf("seed thread %s: %v", threadID, err)
		}
		fmt.Printf("seeded thread %q with %d turns\n", threadID, len(turns))
	}
}
