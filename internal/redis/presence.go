package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const connectionsPrefix = "connections:"

// PresenceStore tracks which users hold at least one open socket. Each user
// has a hash of client id -> last seen, and the user is online while that
// hash exists. Sockets refresh the TTL with Heartbeat, so a crashed process
// stops counting once the TTL lapses.
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{client: client, ttl: ttl}
}

func connectionsKey(userID string) string {
	return connectionsPrefix + userID
}

func (p *PresenceStore) SetOnline(ctx context.Context, userID, clientID string) error {
	return p.touch(ctx, userID, clientID)
}

// Heartbeat re-records the socket and extends the TTL. It also restores a
// hash that lapsed while the socket was still open.
func (p *PresenceStore) Heartbeat(ctx context.Context, userID, clientID string) error {
	return p.touch(ctx, userID, clientID)
}

func (p *PresenceStore) touch(ctx context.Context, userID, clientID string) error {
	pipe := p.client.TxPipeline()
	pipe.HSet(ctx, connectionsKey(userID), clientID, time.Now().UTC().Format(time.RFC3339))
	pipe.Expire(ctx, connectionsKey(userID), p.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// SetOffline forgets one socket. Redis drops the hash with its last field.
func (p *PresenceStore) SetOffline(ctx context.Context, userID, clientID string) error {
	return p.client.HDel(ctx, connectionsKey(userID), clientID).Err()
}

// OnlineMap reports presence for each id in one round trip.
func (p *PresenceStore) OnlineMap(ctx context.Context, userIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	pipe := p.client.Pipeline()
	cmds := make([]*goredis.IntCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.Exists(ctx, connectionsKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("presence lookup: %w", err)
	}
	for i, id := range userIDs {
		result[id] = cmds[i].Val() > 0
	}
	return result, nil
}
