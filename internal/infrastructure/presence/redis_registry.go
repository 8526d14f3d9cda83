package presence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"agrolink/internal/domain/entity"
)

const (
	keyPrefix    = "presence"
	onlineAgents = "presence:agents"
	defaultTTL   = 2 * time.Minute
)

// RedisRegistry shares presence between processes. Each identity owns a
// sorted set of connection ids scored by registration time; keys expire unless
// refreshed through Touch, so a crashed process cannot pin an identity online.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRegistry(client *redis.Client, ttl time.Duration) *RedisRegistry {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisRegistry{client: client, ttl: ttl}
}

func connKey(k kind, id string) string {
	if k == kindAgent {
		return fmt.Sprintf("%s:agent:%s", keyPrefix, id)
	}
	return fmt.Sprintf("%s:user:%s", keyPrefix, id)
}

func (r *RedisRegistry) register(ctx context.Context, k kind, id, connID string) error {
	key := connKey(k, id)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(time.Now().UnixNano()), Member: connID})
		pipe.Expire(ctx, key, r.ttl)
		if k == kindAgent {
			pipe.SAdd(ctx, onlineAgents, id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to register presence for %s: %w", id, err)
	}
	return nil
}

func (r *RedisRegistry) RegisterUser(ctx context.Context, userID, connID string) error {
	return r.register(ctx, kindUser, userID, connID)
}

func (r *RedisRegistry) RegisterAgent(ctx context.Context, agentID, connID string) error {
	return r.register(ctx, kindAgent, agentID, connID)
}

func (r *RedisRegistry) Unregister(ctx context.Context, identity entity.Identity, connID string) (bool, error) {
	k, ok := kindOf(identity.Role)
	if !ok {
		return true, nil
	}

	key := connKey(k, identity.UserID)
	var remaining *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, key, connID)
		remaining = pipe.ZCard(ctx, key)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to unregister presence for %s: %w", identity.UserID, err)
	}
	if remaining.Val() > 0 {
		return false, nil
	}
	if k == kindAgent {
		if err := r.client.SRem(ctx, onlineAgents, identity.UserID).Err(); err != nil {
			return true, fmt.Errorf("failed to drop agent %s from online set: %w", identity.UserID, err)
		}
	}
	return true, nil
}

func (r *RedisRegistry) latest(ctx context.Context, k kind, id string) (string, bool, error) {
	conns, err := r.client.ZRevRange(ctx, connKey(k, id), 0, 0).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to read presence for %s: %w", id, err)
	}
	if len(conns) == 0 {
		return "", false, nil
	}
	return conns[0], true, nil
}

func (r *RedisRegistry) IsUserReachable(ctx context.Context, userID string) (bool, error) {
	_, ok, err := r.latest(ctx, kindUser, userID)
	return ok, err
}

func (r *RedisRegistry) UserConnection(ctx context.Context, userID string) (string, bool, error) {
	return r.latest(ctx, kindUser, userID)
}

func (r *RedisRegistry) AgentConnection(ctx context.Context, agentID string) (string, bool, error) {
	return r.latest(ctx, kindAgent, agentID)
}

// OnlineAgents lists agents in the online set whose connection key is still
// alive, pruning members whose keys have expired.
func (r *RedisRegistry) OnlineAgents(ctx context.Context) ([]string, error) {
	members, err := r.client.SMembers(ctx, onlineAgents).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list online agents: %w", err)
	}

	agents := make([]string, 0, len(members))
	for _, id := range members {
		n, err := r.client.Exists(ctx, connKey(kindAgent, id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check agent %s: %w", id, err)
		}
		if n == 0 {
			r.client.SRem(ctx, onlineAgents, id)
			continue
		}
		agents = append(agents, id)
	}
	sort.Strings(agents)
	return agents, nil
}

func (r *RedisRegistry) AnyAgentOnline(ctx context.Context) (bool, error) {
	agents, err := r.OnlineAgents(ctx)
	if err != nil {
		return false, err
	}
	return len(agents) > 0, nil
}

func (r *RedisRegistry) Touch(ctx context.Context, identity entity.Identity, _ string) error {
	k, ok := kindOf(identity.Role)
	if !ok {
		return nil
	}
	return r.client.Expire(ctx, connKey(k, identity.UserID), r.ttl).Err()
}
