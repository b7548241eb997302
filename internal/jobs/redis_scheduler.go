package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// claimScript first returns expired leases to the due set (unless the key was
// re-registered meanwhile), then moves up to ARGV[2] due jobs into the lease set.
//
// KEYS: due, data, leased, leasedData. ARGV: now, limit, leaseUntil.
var claimScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[3], '-inf', ARGV[1])
for _, k in ipairs(expired) do
  local v = redis.call('HGET', KEYS[4], k)
  redis.call('ZREM', KEYS[3], k)
  redis.call('HDEL', KEYS[4], k)
  if v and redis.call('HEXISTS', KEYS[2], k) == 0 then
    redis.call('HSET', KEYS[2], k, v)
    redis.call('ZADD', KEYS[1], ARGV[1], k)
  end
end
local keys = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
local out = {}
for _, k in ipairs(keys) do
  local v = redis.call('HGET', KEYS[2], k)
  redis.call('ZREM', KEYS[1], k)
  redis.call('HDEL', KEYS[2], k)
  if v then
    redis.call('ZADD', KEYS[3], ARGV[3], k)
    redis.call('HSET', KEYS[4], k, v)
    table.insert(out, v)
  end
end
return out
`)

// retryScript releases a lease and re-registers the job unless a newer
// registration already exists under the same key.
//
// KEYS: due, data, leased, leasedData. ARGV: key, runAt, envelope.
var retryScript = redis.NewScript(`
redis.call('ZREM', KEYS[3], ARGV[1])
redis.call('HDEL', KEYS[4], ARGV[1])
if redis.call('HEXISTS', KEYS[2], ARGV[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
return 1
`)

// RedisScheduler keeps jobs in a sorted set scored by run time, with job bodies
// in a hash keyed by job key.
type RedisScheduler struct {
	client     *redis.Client
	due        string
	data       string
	leased     string
	leasedData string
	lease      time.Duration
}

// NewRedisScheduler builds a scheduler under the given key namespace.
func NewRedisScheduler(client *redis.Client, namespace string, lease time.Duration) *RedisScheduler {
	if namespace == "" {
		namespace = "jobs"
	}
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	return &RedisScheduler{
		client:     client,
		due:        namespace + ":due",
		data:       namespace + ":data",
		leased:     namespace + ":leased",
		leasedData: namespace + ":leased:data",
		lease:      lease,
	}
}

// EnqueueAt registers or replaces the job stored under key.
func (s *RedisScheduler) EnqueueAt(ctx context.Context, key string, at time.Time, jobType Type, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", jobType, err)
	}
	envelope, err := json.Marshal(Job{Key: key, Type: jobType, Payload: raw, RunAt: at.UTC()})
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.data, key, envelope)
		pipe.ZAdd(ctx, s.due, redis.Z{Score: score(at), Member: key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", key, err)
	}
	return nil
}

// Cancel drops the job registered under key, if any.
func (s *RedisScheduler) Cancel(ctx context.Context, key string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, s.due, key)
		pipe.HDel(ctx, s.data, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cancel %s: %w", key, err)
	}
	return nil
}

// Get returns the pending registration under key.
func (s *RedisScheduler) Get(ctx context.Context, key string) (*Job, error) {
	raw, err := s.client.HGet(ctx, s.data, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", key, err)
	}
	return &job, nil
}

// ClaimDue leases up to limit jobs whose run time is at or before now.
func (s *RedisScheduler) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	raws, err := claimScript.Run(ctx, s.client,
		[]string{s.due, s.data, s.leased, s.leasedData},
		score(now), strconv.Itoa(limit), score(now.Add(s.lease)),
	).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}

	claimed := make([]Job, 0, len(raws))
	for _, raw := range raws {
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return claimed, fmt.Errorf("decode claimed job: %w", err)
		}
		claimed = append(claimed, job)
	}
	return claimed, nil
}

// Ack releases the lease of a completed job.
func (s *RedisScheduler) Ack(ctx context.Context, job Job) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, s.leased, job.Key)
		pipe.HDel(ctx, s.leasedData, job.Key)
		return nil
	})
	return err
}

// Retry releases the lease and schedules the job again at at. A registration
// made while the job was running takes precedence.
func (s *RedisScheduler) Retry(ctx context.Context, job Job, at time.Time) error {
	job.RunAt = at.UTC()
	envelope, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return retryScript.Run(ctx, s.client,
		[]string{s.due, s.data, s.leased, s.leasedData},
		job.Key, score(at), envelope,
	).Err()
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}
