package leaderboard

import (
	"context"
	"log/slog"
	"strconv"

	redis "github.com/redis/go-redis/v9"
)

// Cache mirrors per-game leaderboards in redis sorted sets so hot top-N
// reads skip the database. The DB stays authoritative; every method is
// best-effort and callers fall back to the repo on a miss.
type Cache interface {
	Record(ctx context.Context, gameSlug string, userID uint, score int64)
	Top(ctx context.Context, gameSlug string, limit int) ([]Member, bool)
	Invalidate(ctx context.Context, gameSlug string)
}

type Member struct {
	UserID uint
	Score  int64
}

// NewCache builds a redis-backed cache from a URL, or a noop when the URL
// is empty or unparseable.
func NewCache(url string) Cache {
	if url == "" {
		return noopCache{}
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		slog.Warn("leaderboard cache disabled", "error", err)
		return noopCache{}
	}
	return &redisCache{cli: redis.NewClient(opt)}
}

type redisCache struct{ cli *redis.Client }

func key(slug string) string { return "lb:" + slug }

func (c *redisCache) Record(ctx context.Context, gameSlug string, userID uint, score int64) {
	// GT keeps the stored score when the new one is lower, matching the
	// upsert-best semantics of the DB row.
	err := c.cli.ZAddGT(ctx, key(gameSlug), redis.Z{
		Score:  float64(score),
		Member: strconv.FormatUint(uint64(userID), 10),
	}).Err()
	if err != nil {
		slog.Warn("leaderboard cache record", "game", gameSlug, "error", err)
	}
}

func (c *redisCache) Top(ctx context.Context, gameSlug string, limit int) ([]Member, bool) {
	if limit <= 0 {
		limit = 50
	}
	zs, err := c.cli.ZRevRangeWithScores(ctx, key(gameSlug), 0, int64(limit-1)).Result()
	if err != nil || len(zs) == 0 {
		return nil, false
	}
	out := make([]Member, 0, len(zs))
	for _, z := range zs {
		id, err := strconv.ParseUint(z.Member.(string), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Member{UserID: uint(id), Score: int64(z.Score)})
	}
	return out, true
}

func (c *redisCache) Invalidate(ctx context.Context, gameSlug string) {
	if err := c.cli.Del(ctx, key(gameSlug)).Err(); err != nil {
		slog.Warn("leaderboard cache invalidate", "game", gameSlug, "error", err)
	}
}

type noopCache struct{}

func (noopCache) Record(context.Context, string, uint, int64)      {}
func (noopCache) Top(context.Context, string, int) ([]Member, bool) { return nil, false }
func (noopCache) Invalidate(context.Context, string)               {}
