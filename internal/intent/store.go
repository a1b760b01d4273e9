package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// State of one conversation in the path state machine.
type State string

const (
	StateIdle       State = "idle"
	StateConfirming State = "confirming"
	StateConfirmed  State = "confirmed"
	StateCancelled  State = "cancelled"
)

// Intent statuses persisted on the conversation.
const (
	IntentPlanning   = "planning"
	IntentConfirming = "confirming"
	IntentConfirmed  = "confirmed"
	IntentFailed     = "failed"
)

// Conversation is the per-key machine context, keyed by wallet address or
// an anonymous identifier.
type Conversation struct {
	Key             string    `json:"key"`
	CurrentState    State     `json:"current_state"`
	CurrentPath     Path      `json:"current_path"`
	PendingIntent   string    `json:"pending_intent,omitempty"`
	PendingIntentID string    `json:"pending_intent_id,omitempty"`
	IntentStatus    string    `json:"intent_status,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ContextStore holds conversation contexts. Implementations expire entries
// after the configured TTL.
type ContextStore interface {
	Get(ctx context.Context, key string) (*Conversation, error)
	Put(ctx context.Context, convo *Conversation) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is the in-process ContextStore, used in local stage and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Conversation
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore creates a memory-backed store with an injected clock.
func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		items: make(map[string]*Conversation),
		ttl:   ttl,
		now:   now,
	}
}

// Get returns the conversation for key, or nil when absent or expired.
func (s *MemoryStore) Get(_ context.Context, key string) (*Conversation, error) {
	s.mu.RLock()
	convo, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if s.ttl > 0 && s.now().Sub(convo.UpdatedAt) > s.ttl {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return nil, nil
	}
	clone := *convo
	return &clone, nil
}

// Put stores the conversation.
func (s *MemoryStore) Put(_ context.Context, convo *Conversation) error {
	if convo.Key == "" {
		return errors.New("conversation key is empty")
	}
	clone := *convo
	s.mu.Lock()
	s.items[convo.Key] = &clone
	s.mu.Unlock()
	return nil
}

// Delete removes the conversation.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// RedisStore keeps conversation contexts in Redis with a TTL, so state
// survives restarts and is shared when more than one instance serves the
// conversational surface.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(key string) string {
	return "intent:context:" + key
}

// Get returns the conversation for key, or nil when absent.
func (s *RedisStore) Get(ctx context.Context, key string) (*Conversation, error) {
	raw, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation from redis: %w", err)
	}
	var convo Conversation
	if err := json.Unmarshal(raw, &convo); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return &convo, nil
}

// Put stores the conversation with the store TTL.
func (s *RedisStore) Put(ctx context.Context, convo *Conversation) error {
	if convo.Key == "" {
		return errors.New("conversation key is empty")
	}
	raw, err := json.Marshal(convo)
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(convo.Key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write conversation to redis: %w", err)
	}
	return nil
}

// Delete removes the conversation.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete conversation from redis: %w", err)
	}
	return nil
}
