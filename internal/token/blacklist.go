package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// PGBlacklist stores revoked token ids in PostgreSQL. Expired rows are
// removed by Prune, which the worker runs on a schedule.
type PGBlacklist struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPGBlacklist constructs a PostgreSQL-backed blacklist.
func NewPGBlacklist(pool *pgxpool.Pool) *PGBlacklist {
	return &PGBlacklist{pool: pool, now: time.Now}
}

// Add records jti. Adding the same id twice is a no-op.
func (b *PGBlacklist) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := b.pool.Exec(ctx, `INSERT INTO token_blacklist (jti, expires_at, revoked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING`, jti, expiresAt.UTC(), b.now().UTC())
	return err
}

// Contains reports whether jti is revoked and not yet past expiry.
func (b *PGBlacklist) Contains(ctx context.Context, jti string) (bool, error) {
	var found bool
	err := b.pool.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM token_blacklist WHERE jti = $1 AND expires_at > $2
	)`, jti, b.now().UTC()).Scan(&found)
	return found, err
}

// Prune deletes entries whose tokens have expired and returns how many were removed.
func (b *PGBlacklist) Prune(ctx context.Context, now time.Time) (int64, error) {
	tag, err := b.pool.Exec(ctx, `DELETE FROM token_blacklist WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("token: prune blacklist: %w", err)
	}
	return tag.RowsAffected(), nil
}

const redisBlacklistPrefix = "bizboard:token:blacklist:"

// RedisBlacklist stores revoked token ids as keys that expire together with the token.
type RedisBlacklist struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisBlacklist constructs a Redis-backed blacklist.
func NewRedisBlacklist(client redis.UniversalClient) *RedisBlacklist {
	return &RedisBlacklist{client: client, now: time.Now}
}

// Add records jti until expiresAt.
func (b *RedisBlacklist) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(b.now())
	if ttl <= 0 {
		return nil
	}
	err := b.client.SetNX(ctx, redisBlacklistPrefix+jti, "1", ttl).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// Contains reports whether jti is revoked.
func (b *RedisBlacklist) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, redisBlacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var (
	_ Blacklist = (*PGBlacklist)(nil)
	_ Blacklist = (*RedisBlacklist)(nil)
)
