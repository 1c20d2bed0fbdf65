package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"collections-dialer/internal/calls"
	"collections-dialer/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

var saveScript = redis.NewScript(`
-- KEYS[1] = checkpoint hash
-- ARGV[1] = version (int)
-- ARGV[2] = session json
-- ARGV[3] = ttl_ms (int)
--
-- Returns:
--  1 if stored
--  0 if the stored version is newer or equal
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) >= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'session', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// RedisStore keeps checkpoints in one hash per agent with a TTL, so a desk
// that never comes back does not leave state behind forever.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(agentID string) string {
	return utils.RedisKey(s.prefix, "checkpoint", agentID)
}

func (s *RedisStore) pendingKey(agentID string) string {
	return utils.RedisKey(s.prefix, "checkpoint", "pending", agentID)
}

func (s *RedisStore) Save(ctx context.Context, agentID string, sess calls.Session) error {
	if s.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	res, err := saveScript.Run(ctx, s.rdb, []string{s.key(agentID)}, sess.Version, payload, s.ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrStale
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, agentID string) (calls.Session, bool, error) {
	if s.rdb == nil {
		return calls.Session{}, false, fmt.Errorf("redis client is nil")
	}
	raw, err := s.rdb.HGet(ctx, s.key(agentID), "session").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return calls.Session{}, false, nil
		}
		return calls.Session{}, false, err
	}
	var sess calls.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return calls.Session{}, false, fmt.Errorf("decode checkpoint: %w", err)
	}
	return sess, true, nil
}

// SavePending stores s in the agent's pending hash and refreshes its TTL.
func (s *RedisStore) SavePending(ctx context.Context, agentID string, sess calls.Session) error {
	if s.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal pending wrap-up: %w", err)
	}
	key := s.pendingKey(agentID)
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, string(sess.ID), payload)
		p.PExpire(ctx, key, s.ttl)
		return nil
	})
	return err
}

func (s *RedisStore) DropPending(ctx context.Context, agentID string, id calls.SessionID) error {
	if s.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	return s.rdb.HDel(ctx, s.pendingKey(agentID), string(id)).Err()
}

func (s *RedisStore) LoadPending(ctx context.Context, agentID string) ([]calls.Session, error) {
	if s.rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	raw, err := s.rdb.HGetAll(ctx, s.pendingKey(agentID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]calls.Session, 0, len(raw))
	for id, payload := range raw {
		var sess calls.Session
		if err := json.Unmarshal([]byte(payload), &sess); err != nil {
			return nil, fmt.Errorf("decode pending wrap-up %s: %w", id, err)
		}
		out = append(out, sess)
	}
	return out, nil
}
