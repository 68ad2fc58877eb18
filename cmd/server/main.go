package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/niblr/concierge/internal/agent"
	"github.com/niblr/concierge/internal/catalog"
	"github.com/niblr/concierge/internal/chat"
	"github.com/niblr/concierge/internal/config"
	"github.com/niblr/concierge/internal/db"
	"github.com/niblr/concierge/internal/httpapi"
	"github.com/niblr/concierge/internal/store/bigquery"
	"github.com/niblr/concierge/internal/store/rabbitmq"
	"github.com/niblr/concierge/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	agentClient := agent.NewHTTPClient(cfg.AgentBaseURL, cfg.AgentTimeout)
	chatSvc := chat.NewService(chat.NewRepo(gdb), agentClient)

	// catalog item store; the API still serves saved references without it
	var itemStore catalog.ItemStore
	if cfg.GCPProject != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err := bigquery.New(ctx, cfg.GCPProject, cfg.CatalogPropertyTable, cfg.CatalogJobTable)
		cancel()
		if err != nil {
			log.Fatalf("bigquery: %v", err)
		}
		defer store.Close()
		itemStore = store
	} else {
		log.Printf("GOOGLE_CLOUD_PROJECT not set, catalog item data disabled")
	}

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CatalogCacheTTL)
	defer rds.Close()
	{
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rds.Ping(ctx); err != nil {
			log.Printf("redis unreachable, catalog cache disabled: %v", err)
		}
		cancel()
	}

	catalogSvc := catalog.NewService(catalog.NewRepo(gdb), itemStore, rds)

	rabbit, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Printf("rabbit unreachable, async chat disabled: %v", err)
		rabbit = nil
	} else {
		defer rabbit.Close()
	}

	r := httpapi.NewRouter(gdb, cfg, chatSvc, catalogSvc, rabbit)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8000"
	}
	log.Printf("server listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
