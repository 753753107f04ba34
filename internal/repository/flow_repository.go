package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/osvaldoandrade/flowdb/pkg/domain"
	"github.com/osvaldoandrade/flowdb/pkg/persistence"

	"github.com/go-redis/redis/v8"
)

// FlowRepository keeps flow documents in Redis/KVRocks.
//
// Layout:
//
//	flowdb:flows              hash  id -> flow JSON
//	flowdb:flows:created      zset  id scored by created_at
//	flowdb:status:<status>    set   ids with that status
//	flowdb:statuses           set   every status seen so far
type FlowRepository interface {
	persistence.FlowStorage
}

type flowRedisRepo struct {
	rdb *redis.Client
}

func NewFlowRepository(rdb *redis.Client) FlowRepository {
	return &flowRedisRepo{rdb: rdb}
}

func (r *flowRedisRepo) keyFlowsHash() string { return "flowdb:flows" }
func (r *flowRedisRepo) keyCreated() string   { return "flowdb:flows:created" }
func (r *flowRedisRepo) keyStatuses() string  { return "flowdb:statuses" }
func (r *flowRedisRepo) keyStatus(status string) string {
	return fmt.Sprintf("flowdb:status:%s", status)
}

func (r *flowRedisRepo) Insert(ctx context.Context, rec *domain.FlowRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("insert flow: empty id")
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal flow: %w", err)
	}
	keys := []string{r.keyFlowsHash(), r.keyCreated(), r.keyStatus(rec.Status), r.keyStatuses()}
	n, err := insertFlowScript.Run(ctx, r.rdb, keys, rec.ID, string(b), rec.CreatedAt.UnixNano(), rec.Status).Int()
	if err != nil {
		return fmt.Errorf("redis insert flow: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("flow %s: %w", rec.ID, persistence.ErrAlreadyExists)
	}
	return nil
}

// insertFlowScript stores a flow document together with its indexes, so a
// flow is never readable by id while missing from List or the status sets.
// Key types are checked before the first write.
//
// KEYS[1] = flows hash
// KEYS[2] = created zset
// KEYS[3] = status set
// KEYS[4] = statuses set
// ARGV[1] = id, ARGV[2] = flow JSON, ARGV[3] = created_at score, ARGV[4] = status
var insertFlowScript = redis.NewScript(`
local want = {"hash", "zset", "set", "set"}
for i, key in ipairs(KEYS) do
  local t = redis.call("TYPE", key).ok
  if t ~= "none" and t ~= want[i] then
    return redis.error_reply("WRONGTYPE " .. key .. " holds a " .. t)
  end
end
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 1 then
  return 0
end
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[1])
redis.call("SADD", KEYS[3], ARGV[1])
redis.call("SADD", KEYS[4], ARGV[4])
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`)

func (r *flowRedisRepo) Get(ctx context.Context, id string) (*domain.FlowRecord, error) {
	js, err := r.rdb.HGet(ctx, r.keyFlowsHash(), id).Result()
	if err == redis.Nil || (err == nil && js == "") {
		return nil, fmt.Errorf("flow %s: %w", id, persistence.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis HGET flow: %w", err)
	}
	return decodeFlow(js)
}

func (r *flowRedisRepo) Delete(ctx context.Context, id string) error {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, r.keyFlowsHash(), id)
		p.ZRem(ctx, r.keyCreated(), id)
		p.SRem(ctx, r.keyStatus(rec.Status), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete flow: %w", err)
	}
	return nil
}

func (r *flowRedisRepo) List(ctx context.Context) ([]*domain.FlowRecord, error) {
	ids, err := r.rdb.ZRange(ctx, r.keyCreated(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ZRANGE created: %w", err)
	}
	return r.load(ctx, ids)
}

func (r *flowRedisRepo) FindByStatus(ctx context.Context, status string) ([]*domain.FlowRecord, error) {
	ids, err := r.rdb.SMembers(ctx, r.keyStatus(status)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis SMEMBERS status: %w", err)
	}
	out, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *flowRedisRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	statuses, err := r.rdb.SMembers(ctx, r.keyStatuses()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis SMEMBERS statuses: %w", err)
	}
	pipe := r.rdb.Pipeline()
	cmds := make(map[string]*redis.IntCmd, len(statuses))
	for _, s := range statuses {
		cmds[s] = pipe.SCard(ctx, r.keyStatus(s))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("redis SCARD status: %w", err)
	}
	out := make(map[string]int64, len(cmds))
	for s, c := range cmds {
		if n := c.Val(); n > 0 {
			out[s] = n
		}
	}
	return out, nil
}

// load fetches ids in order, skipping entries deleted since the index read.
func (r *flowRedisRepo) load(ctx context.Context, ids []string) ([]*domain.FlowRecord, error) {
	if len(ids) == 0 {
		return []*domain.FlowRecord{}, nil
	}
	vals, err := r.rdb.HMGet(ctx, r.keyFlowsHash(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HMGET flows: %w", err)
	}
	out := make([]*domain.FlowRecord, 0, len(vals))
	for _, v := range vals {
		js, ok := v.(string)
		if !ok || js == "" {
			continue
		}
		rec, err := decodeFlow(js)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeFlow(js string) (*domain.FlowRecord, error) {
	var rec domain.FlowRecord
	if err := json.Unmarshal([]byte(js), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal flow: %w", err)
	}
	return &rec, nil
}
