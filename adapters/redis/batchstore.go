// Package redis persists batch upload states in Redis so a resubmitted batch resumes
// across server restarts.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Abraxas-365/coursekb/batch"
	goredis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "coursekb:batch:"

type Options struct {
	// Prefix for keys, "coursekb:batch:" when empty
	Prefix string
	// TTL of a saved state; zero keeps it forever
	TTL time.Duration
}

type BatchStore struct {
	client goredis.UniversalClient
	opts   Options
}

var _ batch.Store = (*BatchStore)(nil)

// NewClient connects to addr and pings it
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func NewBatchStore(client goredis.UniversalClient, opts Options) *BatchStore {
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	return &BatchStore{client: client, opts: opts}
}

func (s *BatchStore) key(batchID string) string {
	return s.opts.Prefix + batchID
}

func (s *BatchStore) Get(ctx context.Context, batchID string) (*batch.State, error) {
	data, err := s.client.Get(ctx, s.key(batchID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, batch.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", batchID, err)
	}

	var state batch.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", batchID, err)
	}
	return &state, nil
}

func (s *BatchStore) Save(ctx context.Context, state *batch.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode batch %s: %w", state.BatchID, err)
	}
	if err := s.client.Set(ctx, s.key(state.BatchID), data, s.opts.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", state.BatchID, err)
	}
	return nil
}

func (s *BatchStore) Delete(ctx context.Context, batchID string) error {
	if err := s.client.Del(ctx, s.key(batchID)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", batchID, err)
	}
	return nil
}
