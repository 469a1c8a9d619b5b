package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"marketplace-chat/internal/auth"

	goredis "github.com/redis/go-redis/v9"
)

// SessionStore backs the cookie session scheme. Keys are
// session:{sha256(token)} so raw cookie values never sit in redis.
type SessionStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewSessionStore(client *goredis.Client, ttl time.Duration) *SessionStore {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "session:" + hex.EncodeToString(sum[:])
}

func (s *SessionStore) GetSession(ctx context.Context, token string) (*auth.SessionRecord, error) {
	data, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec auth.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		// corrupt entries count as no session
		return nil, nil
	}
	return &rec, nil
}

// PutSession stores rec under token. ExpiresAt defaults to now+ttl.
func (s *SessionStore) PutSession(ctx context.Context, token string, rec auth.SessionRecord) error {
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = time.Now().Add(s.ttl)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, sessionKey(token), data, ttl).Err()
}
