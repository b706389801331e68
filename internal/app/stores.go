package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/miniintern/bizboard/internal/accounts"
	"github.com/miniintern/bizboard/internal/board"
	"github.com/miniintern/bizboard/internal/businesses"
	"github.com/miniintern/bizboard/internal/shared"
	"github.com/miniintern/bizboard/internal/token"
)

// PostgresStores backs every store with PostgreSQL. The token blacklist lives
// in Redis when the config selects it.
func PostgresStores(cfg *Config, pool *pgxpool.Pool, client redis.UniversalClient) Stores {
	var blacklist token.Blacklist = token.NewPGBlacklist(pool)
	if cfg.BlacklistBackend == BlacklistRedis && client != nil {
		blacklist = token.NewRedisBlacklist(client)
	}
	return Stores{
		Accounts:   accounts.NewRepository(pool),
		Businesses: businesses.NewRepository(pool),
		Board:      board.NewRepository(pool),
		Blacklist:  blacklist,
		Audit:      shared.NewAuditLogger(pool),
		Redis:      client,
	}
}
