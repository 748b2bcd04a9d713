package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/config"
	"pairchat/backend/internal/logger"
	"pairchat/backend/internal/messaging"
	"pairchat/backend/internal/relationship"
	"pairchat/backend/internal/storage"

	"github.com/joho/godotenv"
)

const usage = `Usage: admin <command> [args]

Commands:
  migrate
  remove-friendship <user_id> <other_user_id>
  conversations <user_id>
  delete-message <conversation_id> <sender_id> <message_id>`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Println("config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Println("logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	db, err := storage.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect database", "error", err)
	}
	store := storage.NewStorageService(db)

	// Without local sessions the hub only matters for reaching running
	// servers through Redis.
	var bus chathub.Bus
	if cfg.Redis.Addr != "" {
		redisBus, err := chathub.NewRedisBus(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn("redis unavailable, live sessions will not be notified", "error", err)
		} else {
			defer redisBus.Close()
			bus = redisBus
		}
	}
	hub := chathub.NewHub(bus, nil, log)
	rel := relationship.NewService(store, hub, nil, log)
	msgs := messaging.NewService(store, hub, nil, log, cfg.Chat)

	args := os.Args[2:]
	switch os.Args[1] {
	case "migrate":
		if err := storage.Migrate(db); err != nil {
			log.Fatal("migration failed", "error", err)
		}
		fmt.Println("Migrations applied.")

	case "remove-friendship":
		ids := parseIDs(args, 2, "remove-friendship <user_id> <other_user_id>")
		if err := rel.Remove(ctx, ids[0], ids[1]); err != nil {
			log.Fatal("remove friendship failed", "error", err)
		}
		fmt.Printf("Friendship between %d and %d removed.\n", ids[0], ids[1])

	case "conversations":
		ids := parseIDs(args, 1, "conversations <user_id>")
		convs, err := rel.ListConversations(ctx, ids[0])
		if err != nil {
			log.Fatal("list conversations failed", "error", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(convs)

	case "delete-message":
		ids := parseIDs(args, 3, "delete-message <conversation_id> <sender_id> <message_id>")
		msg, err := msgs.Delete(ctx, ids[0], ids[1], ids[2])
		if err != nil {
			log.Fatal("delete message failed", "error", err)
		}
		fmt.Printf("Message %d replaced with tombstone.\n", msg.ID)

	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func parseIDs(args []string, n int, cmdUsage string) []uint {
	if len(args) != n {
		fmt.Println("Usage: admin " + cmdUsage)
		os.Exit(1)
	}
	out := make([]uint, n)
	for i, a := range args {
		v, err := strconv.ParseUint(a, 10, 64)
		if err != nil || v == 0 {
			fmt.Printf("Invalid id %q. Please provide a positive integer.\n", a)
			os.Exit(1)
		}
		out[i] = uint(v)
	}
	return out
}
