package cache

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// ProofFeedKey holds the global proof feed as a sorted set.
	ProofFeedKey = "proofs:feed"

	// ProofFeedCap is the number of newest proofs kept in the cache.
	// Pages reaching beyond it are served from Postgres.
	ProofFeedCap = 1000

	ProofFeedTTL = 24 * time.Hour
)

// ProofScore is a proof id with the timestamp used as its score.
type ProofScore struct {
	ProofID   int64
	CreatedAt time.Time
}

// ProofFeedCache keeps the ids of the newest proofs so the public feed can be
// paged without sorting the proofs table on every request.
//
// The cache is a single Redis sorted set:
//   - member: the proof id, zero-padded to 19 digits so equal scores order by id
//   - score:  created_at in Unix milliseconds
//
// Lifecycle:
//  1. The key is absent (first start, TTL expiry, Reset). Readers fall back to
//     Postgres and warm it with the newest ProofFeedCap proofs, then compare
//     the cached head with Postgres and drop the key if a proof committed
//     during the warm was missed.
//  2. While the key exists, every committed proof is added to it, directly by
//     the submitting request and again by the stream worker. Adding to an
//     absent key is a no-op, so a write never creates a partial cache.
//  3. When an add fails the key is dropped and the next read warms it again.
type ProofFeedCache interface {
	// AddProof inserts a proof and trims the set to ProofFeedCap, but only when
	// the cache is warm. Runs as one Lua script: EXISTS, ZADD,
	// ZREMRANGEBYRANK (maintain cap), EXPIRE (refresh TTL).
	AddProof(ctx context.Context, proofID int64, createdAt time.Time) error

	// Page returns proof ids newest first, skipping offset entries.
	Page(ctx context.Context, offset, limit int) ([]int64, error)

	// Warm bulk-inserts proofs, typically after a cache miss.
	// Uses one pipeline: ZADD + ZREMRANGEBYRANK + EXPIRE.
	Warm(ctx context.Context, proofs []ProofScore) error

	// Exists reports whether the key is present. The service warms the cache
	// when this returns false.
	Exists(ctx context.Context) (bool, error)

	Size(ctx context.Context) (int64, error)

	// Reset drops the cache; the next read warms it again.
	Reset(ctx context.Context) error
}

// RedisProofFeedCache implements ProofFeedCache using a Redis sorted set.
type RedisProofFeedCache struct {
	client *redis.Client
	key    string
}

func NewProofFeedCache(client *redis.Client) ProofFeedCache {
	return &RedisProofFeedCache{client: client, key: ProofFeedKey}
}

// member zero-pads ids so members with equal scores sort by id.
func member(proofID int64) string {
	return fmt.Sprintf("%019d", proofID)
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// addIfWarm adds one member only when the key already exists.
// KEYS[1]=feed key, ARGV = score, member, cap, ttl seconds. Returns 1 if added.
var addIfWarm = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[2])
redis.call("ZREMRANGEBYRANK", KEYS[1], 0, -tonumber(ARGV[3]) - 1)
redis.call("EXPIRE", KEYS[1], ARGV[4])
return 1
`)

func (c *RedisProofFeedCache) AddProof(ctx context.Context, proofID int64, createdAt time.Time) error {
	startTime := time.Now()

	added, err := addIfWarm.Run(ctx, c.client, []string{c.key},
		score(createdAt), member(proofID), ProofFeedCap, int64(ProofFeedTTL/time.Second)).Int()
	if err != nil {
		log.Printf("[ProofFeedCache] AddProof FAILED: proof=%d err=%v", proofID, err)
		return fmt.Errorf("add proof to feed: %w", err)
	}
	if added == 0 {
		log.Printf("[ProofFeedCache] AddProof skipped, cache cold: proof=%d", proofID)
		return nil
	}

	log.Printf("[ProofFeedCache] AddProof OK: proof=%d duration=%v", proofID, time.Since(startTime))
	return nil
}

func (c *RedisProofFeedCache) Page(ctx context.Context, offset, limit int) ([]int64, error) {
	if limit <= 0 {
		return []int64{}, nil
	}

	members, err := c.client.ZRevRange(ctx, c.key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		log.Printf("[ProofFeedCache] Page FAILED: offset=%d limit=%d err=%v", offset, limit, err)
		return nil, fmt.Errorf("get proof feed page: %w", err)
	}

	ids := make([]int64, len(members))
	for i, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse proof id %q: %w", m, err)
		}
		ids[i] = id
	}
	return ids, nil
}

func (c *RedisProofFeedCache) Warm(ctx context.Context, proofs []ProofScore) error {
	if len(proofs) == 0 {
		log.Printf("[ProofFeedCache] Warm: nothing to warm")
		return nil
	}

	startTime := time.Now()
	members := make([]redis.Z, len(proofs))
	for i, p := range proofs {
		members[i] = redis.Z{Score: score(p.CreatedAt), Member: member(p.ProofID)}
	}

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, c.key, members...)
	pipe.ZRemRangeByRank(ctx, c.key, 0, int64(-ProofFeedCap-1))
	pipe.Expire(ctx, c.key, ProofFeedTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[ProofFeedCache] Warm FAILED: proofs=%d err=%v", len(proofs), err)
		return fmt.Errorf("warm proof feed: %w", err)
	}

	log.Printf("[ProofFeedCache] Warm OK: proofs=%d duration=%v", len(proofs), time.Since(startTime))
	return nil
}

func (c *RedisProofFeedCache) Exists(ctx context.Context) (bool, error) {
	n, err := c.client.Exists(ctx, c.key).Result()
	if err != nil {
		return false, fmt.Errorf("check proof feed exists: %w", err)
	}
	return n > 0, nil
}

func (c *RedisProofFeedCache) Size(ctx context.Context) (int64, error) {
	size, err := c.client.ZCard(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("get proof feed size: %w", err)
	}
	return size, nil
}

func (c *RedisProofFeedCache) Reset(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		log.Printf("[ProofFeedCache] Reset FAILED: err=%v", err)
		return fmt.Errorf("reset proof feed: %w", err)
	}
	log.Printf("[ProofFeedCache] Reset OK")
	return nil
}
