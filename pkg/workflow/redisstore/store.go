// Package redisstore keeps the workflow definition in Redis so that it survives restarts
// and is shared between API replicas.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/leadflow/pkg/workflow"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "leadflow:workflow"
	fieldVersion  = "version"
	fieldBody     = "body"
)

// saveScript bumps the version counter and stores the definition in one atomic step.
var saveScript = redis.NewScript(`
local version = redis.call('INCR', KEYS[1])
redis.call('HSET', KEYS[2], 'version', version, 'body', ARGV[1])
return version
`)

// Store implements workflow.DefinitionStore on Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// NewStore connects to the Redis server at url (redis://host:port/db).
func NewStore(ctx context.Context, logger *slog.Logger, url string) (*Store, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewStoreWithClient(logger, client, defaultPrefix), nil
}

// NewStoreWithClient uses an existing client and key prefix.
func NewStoreWithClient(logger *slog.Logger, client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &Store{
		client: client,
		prefix: prefix,
		logger: logger.With("module", "workflow_redis_store"),
	}
}

func (s *Store) versionKey() string    { return s.prefix + ":version" }
func (s *Store) definitionKey() string { return s.prefix + ":definition" }

// Current returns the saved definition or workflow.DefaultDefinition.
func (s *Store) Current(ctx context.Context) (workflow.Definition, error) {
	values, err := s.client.HMGet(ctx, s.definitionKey(), fieldVersion, fieldBody).Result()
	if err != nil {
		return workflow.Definition{}, fmt.Errorf("failed to load workflow definition: %w", err)
	}

	body, ok := values[1].(string)
	if !ok {
		return workflow.DefaultDefinition(), nil
	}

	var def workflow.Definition
	if err := json.Unmarshal([]byte(body), &def); err != nil {
		return workflow.Definition{}, fmt.Errorf("failed to decode workflow definition: %w", err)
	}

	if raw, ok := values[0].(string); ok {
		version, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return workflow.Definition{}, fmt.Errorf("invalid workflow definition version %q: %w", raw, err)
		}

		def.Version = version
	}

	return def, nil
}

// Save stores def under the next version.
func (s *Store) Save(ctx context.Context, def workflow.Definition) (workflow.Definition, error) {
	saved := def.Clone()
	saved.Version = 0
	saved.UpdatedAt = time.Now().UTC()

	body, err := json.Marshal(saved)
	if err != nil {
		return workflow.Definition{}, fmt.Errorf("failed to encode workflow definition: %w", err)
	}

	version, err := saveScript.Run(ctx, s.client, []string{s.versionKey(), s.definitionKey()}, body).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return workflow.Definition{}, errors.New("failed to save workflow definition: empty reply")
		}

		return workflow.Definition{}, fmt.Errorf("failed to save workflow definition: %w", err)
	}

	saved.Version = version

	s.logger.DebugContext(ctx, "Workflow definition saved", "version", version)

	return saved, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
