package statestore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// metaSuffix keeps leaf metadata out of the subtree key space: "#" never
// appears in a path segment, so Scan patterns on Sep do not pick it up.
const metaSuffix = "#meta"

// RedisStore implements Store on a Redis key space, one key per leaf.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, logger: logger}
}

// Ping checks the connection to the Redis server.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) EnsureLeaf(ctx context.Context, path string, metadata map[string]string) error {
	if err := s.client.SetNX(ctx, path, "", 0).Err(); err != nil {
		return fmt.Errorf("%w: ensure %s: %v", ErrUnavailable, path, err)
	}
	if len(metadata) > 0 {
		fields := make(map[string]any, len(metadata))
		for k, v := range metadata {
			fields[k] = v
		}
		if err := s.client.HSet(ctx, path+metaSuffix, fields).Err(); err != nil {
			return fmt.Errorf("%w: ensure meta %s: %v", ErrUnavailable, path, err)
		}
	}
	return nil
}

func (s *RedisStore) WriteLeaf(ctx context.Context, path, value string, ack bool) error {
	// The SET reply is itself the acknowledgement; ack selects whether we
	// wait on the reply or fire through a pipeline without reading it.
	if !ack {
		pipe := s.client.Pipeline()
		pipe.Set(ctx, path, value, 0)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("%w: write %s: %v", ErrUnavailable, path, err)
		}
		return nil
	}
	if err := s.client.Set(ctx, path, value, 0).Err(); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrUnavailable, path, err)
	}
	return nil
}

func (s *RedisStore) DeleteSubtree(ctx context.Context, path string) error {
	keys, err := s.scan(ctx, path+Sep+"*")
	if err != nil {
		return err
	}
	keys = append(keys, path, path+metaSuffix)

	pipe := s.client.Pipeline()
	for _, k := range keys {
		pipe.Del(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, path, err)
	}
	s.logger.Debug("deleted subtree", "path", path, "keys", len(keys))
	return nil
}

func (s *RedisStore) ListSubtrees(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.scan(ctx, prefix+Sep+"*")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, k := range keys {
		if strings.HasSuffix(k, metaSuffix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix+Sep)
		if i := strings.Index(rest, Sep); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" {
			seen[rest] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (s *RedisStore) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan %s: %v", ErrUnavailable, pattern, err)
	}
	return keys, nil
}
