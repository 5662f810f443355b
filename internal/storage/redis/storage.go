package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/croftja/parley/internal/model"
	"github.com/croftja/parley/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Account operations

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}

	// SETNX keeps name uniqueness atomic under concurrent registration
	ok, err := s.client.SetNX(ctx, accountKey(account.Name), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrAccountExists
	}
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, name string) (*model.Account, error) {
	data, err := s.client.Get(ctx, accountKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}

	var account model.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Storage) AccountExists(ctx context.Context, name string) (bool, error) {
	n, err := s.client.Exists(ctx, accountKey(name)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Message operations

func (s *Storage) SaveMessage(ctx context.Context, msg *model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := messagesKey(msg.Time)

	// Append and refresh the day log's retention in one round trip
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	if s.cfg.MessageTTL > 0 {
		pipe.Expire(ctx, key, s.cfg.MessageTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) HistoryForRecipient(ctx context.Context, name string, day time.Time) ([]*model.Message, error) {
	entries, err := s.client.LRange(ctx, messagesKey(day), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var result []*model.Message
	for _, entry := range entries {
		var msg model.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, err
		}
		if msg.Target != name && msg.Target != model.TargetAll {
			continue
		}
		result = append(result, &msg)
	}
	return result, nil
}
