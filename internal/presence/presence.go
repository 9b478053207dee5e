// Package presence mirrors live room membership into Redis so that
// out-of-process tooling can see who is where. The mirror is strictly
// best-effort: the in-memory router is the source of truth and every Redis
// failure is logged and ignored.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/peerdial/signaling/config"
)

// peerSetTTL keeps abandoned sets from lingering if the process dies
// without cleaning up.
const peerSetTTL = 24 * time.Hour

const opTimeout = 2 * time.Second

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Tracker writes membership changes to Redis sets. A nil Tracker is valid
// and does nothing, so callers never need to branch on whether the mirror
// is configured.
type Tracker struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewTracker(rdb *redis.Client, logger *slog.Logger) *Tracker {
	return &Tracker{rdb: rdb, log: logger}
}

// Joined records connID as a peer of roomID.
func (t *Tracker) Joined(roomID, connID string) {
	if t == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	key := "room:" + roomID + ":peers"
	if err := t.rdb.SAdd(ctx, key, connID).Err(); err != nil {
		t.log.Warn("presence.joined", "room", roomID, "err", err)
		return
	}
	if err := t.rdb.Expire(ctx, key, peerSetTTL).Err(); err != nil {
		t.log.Warn("presence.expire", "room", roomID, "err", err)
	}
}

// Left removes connID from roomID's peer set.
func (t *Tracker) Left(roomID, connID string) {
	if t == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := t.rdb.SRem(ctx, "room:"+roomID+":peers", connID).Err(); err != nil {
		t.log.Warn("presence.left", "room", roomID, "err", err)
	}
}
