package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// Redis is a Directory stored in Redis: one string key per name plus a set
// of all names so List does not need a keyspace scan.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed directory
func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		client: client,
	}
}

// Register stores name -> endpoint and adds the name to the index set
func (r *Redis) Register(ctx context.Context, name, endpoint string) error {
	if name == "" {
		return fmt.Errorf("register: empty name")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, NameKey(name), endpoint, 0)
	pipe.SAdd(ctx, KeyAllNames, name)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to register %s: %w", name, err)
	}
	return nil
}

// Remove deletes the name and drops it from the index set
func (r *Redis) Remove(ctx context.Context, name string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, NameKey(name))
	pipe.SRem(ctx, KeyAllNames, name)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}

// Lookup returns the endpoint registered under name
func (r *Redis) Lookup(ctx context.Context, name string) (string, error) {
	endpoint, err := r.client.Get(ctx, NameKey(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("failed to lookup %s: %w", name, err)
	}
	return endpoint, nil
}

// List returns all registered names, sorted
func (r *Redis) List(ctx context.Context) ([]string, error) {
	names, err := r.client.SMembers(ctx, KeyAllNames).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list names: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Sweep drops name keys that are no longer referenced by the index set.
// They can be left behind when a supervisor is killed between the two writes
// of a non-transactional client.
func (r *Redis) Sweep(ctx context.Context) (int, error) {
	removed := 0
	iter := r.client.Scan(ctx, 0, KeyPrefixName+"*", 0).Iterator()
	for iter.Next(ctx) {
		name, err := ExtractName(iter.Val())
		if err != nil {
			continue
		}
		member, err := r.client.SIsMember(ctx, KeyAllNames, name).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to check %s: %w", name, err)
		}
		if member {
			continue
		}
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("failed to delete stale key %s: %w", iter.Val(), err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to sweep directory: %w", err)
	}
	return removed, nil
}
