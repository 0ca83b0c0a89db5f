package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fleetwatch/pkg/interfaces"

	"github.com/go-redis/redis/v8"
)

const (
	presenceKeyPrefix = "fleetwatch:presence:"        // fleetwatch:presence:{deviceID} -> connection ID
	presenceSetKey    = "fleetwatch:presence:devices" // IDs of devices marked online
)

// markOfflineScript removes the presence entry only when it still belongs to the closing connection
var markOfflineScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	redis.call("del", KEYS[1])
	redis.call("srem", KEYS[2], ARGV[2])
	return 1
end
return 0
`)

// PresenceRepository mirrors live agent connections into Redis with a TTL
type PresenceRepository struct {
	redis *redis.Client
	ttl   time.Duration
}

var _ interfaces.PresenceStore = (*PresenceRepository)(nil)

// NewPresenceRepository creates the presence mirror
func NewPresenceRepository(redisClient *RedisClient, ttl time.Duration) *PresenceRepository {
	return &PresenceRepository{
		redis: redisClient.GetClient(),
		ttl:   ttl,
	}
}

func presenceKey(deviceID string) string {
	return presenceKeyPrefix + deviceID
}

// MarkOnline records connectionID as the device's live connection
func (r *PresenceRepository) MarkOnline(ctx context.Context, deviceID, connectionID string) error {
	pipe := r.redis.Pipeline()
	pipe.Set(ctx, presenceKey(deviceID), connectionID, r.ttl)
	pipe.SAdd(ctx, presenceSetKey, deviceID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark device %s online: %w", deviceID, err)
	}
	return nil
}

// MarkOffline clears the entry if connectionID is still the bound connection
func (r *PresenceRepository) MarkOffline(ctx context.Context, deviceID, connectionID string) error {
	err := markOfflineScript.Run(ctx, r.redis,
		[]string{presenceKey(deviceID), presenceSetKey},
		connectionID, deviceID).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to mark device %s offline: %w", deviceID, err)
	}
	return nil
}

// Refresh extends the TTL of the given devices' entries
func (r *PresenceRepository) Refresh(ctx context.Context, deviceIDs []string) error {
	if len(deviceIDs) == 0 {
		return nil
	}
	pipe := r.redis.Pipeline()
	for _, id := range deviceIDs {
		pipe.Expire(ctx, presenceKey(id), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}
	return nil
}

// OnlineDevices returns IDs whose entry has not expired; expired IDs are pruned from the set
func (r *PresenceRepository) OnlineDevices(ctx context.Context) ([]string, error) {
	ids, err := r.redis.SMembers(ctx, presenceSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list online devices: %w", err)
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = presenceKey(id)
	}
	values, err := r.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read presence entries: %w", err)
	}

	online := make([]string, 0, len(ids))
	var stale []interface{}
	for i, v := range values {
		if v == nil {
			stale = append(stale, ids[i])
			continue
		}
		online = append(online, ids[i])
	}
	if len(stale) > 0 {
		if err := r.redis.SRem(ctx, presenceSetKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune presence set: %w", err)
		}
	}

	sort.Strings(online)
	return online, nil
}
