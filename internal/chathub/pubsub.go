package chathub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pairchat/backend/internal/config"
	"pairchat/backend/internal/logger"
	"pairchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	KindEvent = "event"
	KindEvict = "evict"
)

// Envelope is what hubs exchange over the bus.
type Envelope struct {
	Origin string       `json:"origin"`
	Kind   string       `json:"kind"`
	Group  string       `json:"group"`
	Event  models.Event `json:"event"`
}

// Bus fans envelopes out to the hubs of all server instances.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	StartForwarder(ctx context.Context, onMsg func(Envelope)) error
	Close() error
}

// RedisBus implements Bus over a single Redis pub/sub channel.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	log     *logger.Logger
}

// NewRedisBus connects to Redis and fails if the server does not answer.
func NewRedisBus(ctx context.Context, cfg config.Redis, log *logger.Logger) (*RedisBus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisBusFromClient(rdb, cfg.Channel, log), nil
}

func NewRedisBusFromClient(rdb *redis.Client, channel string, log *logger.Logger) *RedisBus {
	return &RedisBus{
		rdb:     rdb,
		channel: channel,
		log:     log.With("component", "RedisBus"),
	}
}

func (b *RedisBus) Publish(ctx context.Context, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder subscribes and calls onMsg for every envelope until ctx is
// done. It returns once the subscription is confirmed.
func (b *RedisBus) StartForwarder(ctx context.Context, onMsg func(Envelope)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					b.log.Warn("bad bus payload", "error", err)
					continue
				}
				onMsg(env)
			}
		}
	}()
	return nil
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}
